package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/mdtext"
)

const fragmentSeparator = "\n---\n"

// ContextRenderer formats records into the text block handed to the model.
// Every fragment opens with the record's citation id so the model can quote
// it back verbatim.
type ContextRenderer struct{}

func NewContextRenderer() *ContextRenderer {
	return &ContextRenderer{}
}

func (c *ContextRenderer) Render(ctx context.Context, records []*model.Record) string {
	fragments := make([]string, 0, len(records))
	for _, record := range records {
		fragments = append(fragments, c.renderRecord(record))
	}
	return strings.Join(fragments, fragmentSeparator)
}

func (c *ContextRenderer) renderRecord(record *model.Record) string {
	switch record.Type {
	case model.RecordTypeEmail:
		return renderEmail(record.Email)
	case model.RecordTypeSchedule:
		return renderSchedule(record.Schedule)
	case model.RecordTypeFile:
		return renderFile(record.File)
	case model.RecordTypeAttachment:
		return renderAttachment(record.Attachment)
	}
	return ""
}

func renderEmail(email *model.Email) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Email ID: email_%s]\n", email.ID)
	fmt.Fprintf(&sb, "From: %s, To: %s\n", email.FromUser, email.ToUser)
	if email.CC != "" || email.BCC != "" {
		fmt.Fprintf(&sb, "CC: %s, BCC: %s\n", email.CC, email.BCC)
	}
	fmt.Fprintf(&sb, "Subject: %s, Date: %s\n", email.Subject, email.Date)
	fmt.Fprintf(&sb, "Content: %s", email.Body)
	return sb.String()
}

func renderSchedule(schedule *model.Schedule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Schedule ID: schedule_%s]\n", schedule.ID)
	fmt.Fprintf(&sb, "Title: %s\n", schedule.Summary)
	fmt.Fprintf(&sb, "Start: %s, End: %s\n", schedule.StartTime, schedule.EndTime)
	if schedule.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", schedule.Location)
	}
	fmt.Fprintf(&sb, "Description: %s", schedule.Description)
	return sb.String()
}

func renderFile(file *model.File) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[File ID: file_%s]\n", file.ID)
	fmt.Fprintf(&sb, "Name: %s, Type: %s\n", file.Name, file.MimeType)
	if file.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", file.Summary)
	}
	fmt.Fprintf(&sb, "Content: %s", fileText(file.MimeType, file.Content))
	return sb.String()
}

func renderAttachment(attachment *model.Attachment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Attachment ID: attachment_%s]\n", attachment.ID)
	fmt.Fprintf(&sb, "Filename: %s, Type: %s\n", attachment.Filename, attachment.MimeType)
	if attachment.EmailID != "" {
		fmt.Fprintf(&sb, "From Email: email_%s\n", attachment.EmailID)
	}
	if attachment.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", attachment.Summary)
	}
	fmt.Fprintf(&sb, "Content: %s", fileText(attachment.MimeType, attachment.Content))
	return sb.String()
}

// fileText flattens markdown bodies so prompts carry readable text instead of
// markup.
func fileText(mimeType, content string) string {
	if strings.Contains(mimeType, "markdown") || strings.HasSuffix(mimeType, "/md") {
		return mdtext.Flatten(content)
	}
	return content
}

// BuildReferences summarizes records for the response payload, one entry per
// record in context order.
func BuildReferences(records []*model.Record) []model.Reference {
	refs := make([]model.Reference, 0, len(records))
	for _, record := range records {
		ref := model.Reference{Type: record.Type, ID: record.ID()}
		switch record.Type {
		case model.RecordTypeEmail:
			ref.Title = record.Email.Subject
			ref.From = record.Email.FromUser
			ref.Date = record.Email.Date
		case model.RecordTypeSchedule:
			ref.Title = record.Schedule.Summary
			ref.StartTime = record.Schedule.StartTime
			ref.Location = record.Schedule.Location
		case model.RecordTypeFile:
			ref.Title = record.File.Name
			ref.Path = record.File.Path
			ref.MimeType = record.File.MimeType
		case model.RecordTypeAttachment:
			ref.Title = record.Attachment.Filename
			ref.MimeType = record.Attachment.MimeType
			ref.EmailID = record.Attachment.EmailID
		}
		refs = append(refs, ref)
	}
	return refs
}
