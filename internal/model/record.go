package model

import "encoding/json"

type RecordType string

const (
	RecordTypeEmail      RecordType = "email"
	RecordTypeSchedule   RecordType = "schedule"
	RecordTypeFile       RecordType = "file"
	RecordTypeAttachment RecordType = "attachment"
)

func ParseRecordType(value string) (RecordType, bool) {
	switch RecordType(value) {
	case RecordTypeEmail, RecordTypeSchedule, RecordTypeFile, RecordTypeAttachment:
		return RecordType(value), true
	}
	return "", false
}

// UserID is never serialized: resolved references are returned to callers
// verbatim and must not leak the owning user.

type Email struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	CC       string `json:"cc,omitempty"`
	BCC      string `json:"bcc,omitempty"`
	Date     string `json:"date"`
	Ctime    int64  `json:"ctime"`
}

type Schedule struct {
	ID          string `json:"id"`
	UserID      string `json:"-"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Ctime       int64  `json:"ctime"`
}

type File struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Content  string `json:"content,omitempty"`
	Summary  string `json:"summary"`
	Ctime    int64  `json:"ctime"`
}

type Attachment struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	EmailID  string `json:"email_id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Content  string `json:"content,omitempty"`
	Summary  string `json:"summary"`
	FileKey  string `json:"file_key,omitempty"`
	Ctime    int64  `json:"ctime"`
}

// Record is a tagged union over the four corpus tables. Exactly one of the
// pointers matching Type is set.
type Record struct {
	Type       RecordType
	Email      *Email
	Schedule   *Schedule
	File       *File
	Attachment *Attachment
}

func (r *Record) ID() string {
	switch r.Type {
	case RecordTypeEmail:
		return r.Email.ID
	case RecordTypeSchedule:
		return r.Schedule.ID
	case RecordTypeFile:
		return r.File.ID
	case RecordTypeAttachment:
		return r.Attachment.ID
	}
	return ""
}

// RefID is the citation identifier handed to the model, e.g. "email_123".
func (r *Record) RefID() string {
	return string(r.Type) + "_" + r.ID()
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var inner interface{}
	switch r.Type {
	case RecordTypeEmail:
		inner = r.Email
	case RecordTypeSchedule:
		inner = r.Schedule
	case RecordTypeFile:
		inner = r.File
	case RecordTypeAttachment:
		inner = r.Attachment
	default:
		return []byte("null"), nil
	}
	data, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	typeTag, err := json.Marshal(r.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag
	return json.Marshal(fields)
}
