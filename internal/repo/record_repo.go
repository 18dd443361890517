package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

var (
	emailColumns      = []string{"id", "user_id", "subject", "body", "from_user", "to_user", "cc", "bcc", "date", "ctime"}
	scheduleColumns   = []string{"id", "user_id", "summary", "description", "location", "start_time", "end_time", "ctime"}
	fileColumns       = []string{"id", "user_id", "name", "path", "mime_type", "size", "content", "summary", "ctime"}
	attachmentColumns = []string{"id", "user_id", "email_id", "filename", "mime_type", "size", "content", "summary", "file_key", "ctime"}
)

// RecordRepo stores and fetches the four corpus record kinds. Every read is
// scoped to the owning user.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) CreateEmail(ctx context.Context, email *model.Email) error {
	data := map[string]interface{}{
		"id":        email.ID,
		"user_id":   email.UserID,
		"subject":   email.Subject,
		"body":      email.Body,
		"from_user": email.FromUser,
		"to_user":   email.ToUser,
		"cc":        email.CC,
		"bcc":       email.BCC,
		"date":      email.Date,
		"ctime":     email.Ctime,
	}
	return r.insert(ctx, "emails", data)
}

func (r *RecordRepo) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	data := map[string]interface{}{
		"id":          schedule.ID,
		"user_id":     schedule.UserID,
		"summary":     schedule.Summary,
		"description": schedule.Description,
		"location":    schedule.Location,
		"start_time":  schedule.StartTime,
		"end_time":    schedule.EndTime,
		"ctime":       schedule.Ctime,
	}
	return r.insert(ctx, "schedules", data)
}

func (r *RecordRepo) CreateFile(ctx context.Context, file *model.File) error {
	data := map[string]interface{}{
		"id":        file.ID,
		"user_id":   file.UserID,
		"name":      file.Name,
		"path":      file.Path,
		"mime_type": file.MimeType,
		"size":      file.Size,
		"content":   file.Content,
		"summary":   file.Summary,
		"ctime":     file.Ctime,
	}
	return r.insert(ctx, "files", data)
}

func (r *RecordRepo) CreateAttachment(ctx context.Context, attachment *model.Attachment) error {
	data := map[string]interface{}{
		"id":        attachment.ID,
		"user_id":   attachment.UserID,
		"email_id":  attachment.EmailID,
		"filename":  attachment.Filename,
		"mime_type": attachment.MimeType,
		"size":      attachment.Size,
		"content":   attachment.Content,
		"summary":   attachment.Summary,
		"file_key":  attachment.FileKey,
		"ctime":     attachment.Ctime,
	}
	return r.insert(ctx, "attachments", data)
}

func (r *RecordRepo) insert(ctx context.Context, table string, data map[string]interface{}) error {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Fetch loads one record of the given type for the user. Records belonging to
// other users come back as ErrNotFound, not as a distinct error.
func (r *RecordRepo) Fetch(ctx context.Context, userID string, typ model.RecordType, id string) (*model.Record, error) {
	switch typ {
	case model.RecordTypeEmail:
		email, err := r.GetEmail(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Type: typ, Email: email}, nil
	case model.RecordTypeSchedule:
		schedule, err := r.GetSchedule(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Type: typ, Schedule: schedule}, nil
	case model.RecordTypeFile:
		file, err := r.GetFile(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Type: typ, File: file}, nil
	case model.RecordTypeAttachment:
		attachment, err := r.GetAttachment(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Type: typ, Attachment: attachment}, nil
	}
	return nil, fmt.Errorf("%w: record type %q", appErr.ErrInvalid, typ)
}

func (r *RecordRepo) GetEmail(ctx context.Context, userID, id string) (*model.Email, error) {
	rows, err := r.queryOne(ctx, "emails", emailColumns, userID, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var email model.Email
	if err := rows.Scan(&email.ID, &email.UserID, &email.Subject, &email.Body, &email.FromUser,
		&email.ToUser, &email.CC, &email.BCC, &email.Date, &email.Ctime); err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *RecordRepo) GetSchedule(ctx context.Context, userID, id string) (*model.Schedule, error) {
	rows, err := r.queryOne(ctx, "schedules", scheduleColumns, userID, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var schedule model.Schedule
	if err := rows.Scan(&schedule.ID, &schedule.UserID, &schedule.Summary, &schedule.Description,
		&schedule.Location, &schedule.StartTime, &schedule.EndTime, &schedule.Ctime); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *RecordRepo) GetFile(ctx context.Context, userID, id string) (*model.File, error) {
	rows, err := r.queryOne(ctx, "files", fileColumns, userID, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var file model.File
	if err := rows.Scan(&file.ID, &file.UserID, &file.Name, &file.Path, &file.MimeType,
		&file.Size, &file.Content, &file.Summary, &file.Ctime); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *RecordRepo) GetAttachment(ctx context.Context, userID, id string) (*model.Attachment, error) {
	rows, err := r.queryOne(ctx, "attachments", attachmentColumns, userID, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var attachment model.Attachment
	if err := rows.Scan(&attachment.ID, &attachment.UserID, &attachment.EmailID, &attachment.Filename,
		&attachment.MimeType, &attachment.Size, &attachment.Content, &attachment.Summary,
		&attachment.FileKey, &attachment.Ctime); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *RecordRepo) queryOne(ctx context.Context, table string, columns []string, userID, id string) (*sql.Rows, error) {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect(table, where, columns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.db.QueryContext(ctx, sqlStr, args...)
}

func (r *RecordRepo) ListFilesMissingSummary(ctx context.Context, limit int) ([]model.File, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, user_id, name, content FROM files WHERE summary = '' AND content <> '' ORDER BY ctime LIMIT ?",
		[]interface{}{limit})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var files []model.File
	for rows.Next() {
		var file model.File
		if err := rows.Scan(&file.ID, &file.UserID, &file.Name, &file.Content); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (r *RecordRepo) ListAttachmentsMissingSummary(ctx context.Context, limit int) ([]model.Attachment, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, user_id, filename, content FROM attachments WHERE summary = '' AND content <> '' ORDER BY ctime LIMIT ?",
		[]interface{}{limit})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var attachments []model.Attachment
	for rows.Next() {
		var attachment model.Attachment
		if err := rows.Scan(&attachment.ID, &attachment.UserID, &attachment.Filename, &attachment.Content); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (r *RecordRepo) UpdateFileSummary(ctx context.Context, userID, id, summary string) error {
	return r.updateSummary(ctx, "files", userID, id, summary)
}

func (r *RecordRepo) UpdateAttachmentSummary(ctx context.Context, userID, id, summary string) error {
	return r.updateSummary(ctx, "attachments", userID, id, summary)
}

func (r *RecordRepo) updateSummary(ctx context.Context, table, userID, id, summary string) error {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"summary": summary,
	}
	sqlStr, args, err := builder.BuildUpdate(table, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
