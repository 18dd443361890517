package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/filestore"
	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/repo"
)

const documentTaskType = "RETRIEVAL_DOCUMENT"

type CreateEmailInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
	To      string `json:"to"`
	CC      string `json:"cc"`
	BCC     string `json:"bcc"`
	Date    string `json:"date"`
}

type CreateScheduleInput struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

type CreateFileInput struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

type CreateAttachmentInput struct {
	EmailID  string `json:"email_id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

// CorpusService ingests the user's personal records and runs the deferred
// enrichment pipelines (summaries and embeddings).
type CorpusService struct {
	records    *repo.RecordRepo
	embeddings *repo.EmbeddingRepo
	aiMgr      *ai.Manager
	store      filestore.Store
	workers    int

	summariesDone  atomic.Int64
	embeddingsDone atomic.Int64
}

func NewCorpusService(records *repo.RecordRepo, embeddings *repo.EmbeddingRepo, aiMgr *ai.Manager, store filestore.Store, workers int) *CorpusService {
	if workers <= 0 {
		workers = 4
	}
	return &CorpusService{
		records:    records,
		embeddings: embeddings,
		aiMgr:      aiMgr,
		store:      store,
		workers:    workers,
	}
}

func (s *CorpusService) CreateEmail(ctx context.Context, userID string, in *CreateEmailInput) (*model.Email, error) {
	email := &model.Email{
		ID:       newID(),
		UserID:   userID,
		Subject:  in.Subject,
		Body:     in.Body,
		FromUser: in.From,
		ToUser:   in.To,
		CC:       in.CC,
		BCC:      in.BCC,
		Date:     in.Date,
		Ctime:    time.Now().Unix(),
	}
	if err := s.records.CreateEmail(ctx, email); err != nil {
		return nil, err
	}
	return email, nil
}

func (s *CorpusService) CreateSchedule(ctx context.Context, userID string, in *CreateScheduleInput) (*model.Schedule, error) {
	schedule := &model.Schedule{
		ID:          newID(),
		UserID:      userID,
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Ctime:       time.Now().Unix(),
	}
	if err := s.records.CreateSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *CorpusService) CreateFile(ctx context.Context, userID string, in *CreateFileInput, data []byte) (*model.File, error) {
	file := &model.File{
		ID:       newID(),
		UserID:   userID,
		Name:     in.Name,
		MimeType: in.MimeType,
		Size:     int64(len(data)),
		Content:  in.Content,
		Ctime:    time.Now().Unix(),
	}
	if len(data) > 0 {
		key := "file-" + file.ID
		if err := s.saveBlob(ctx, key, data); err != nil {
			return nil, err
		}
		file.Path = key
	}
	if err := s.records.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *CorpusService) CreateAttachment(ctx context.Context, userID string, in *CreateAttachmentInput, data []byte) (*model.Attachment, error) {
	if in.EmailID != "" {
		if _, err := s.records.GetEmail(ctx, userID, in.EmailID); err != nil {
			return nil, fmt.Errorf("attachment email: %w", err)
		}
	}
	attachment := &model.Attachment{
		ID:       newID(),
		UserID:   userID,
		EmailID:  in.EmailID,
		Filename: in.Filename,
		MimeType: in.MimeType,
		Size:     int64(len(data)),
		Content:  in.Content,
		Ctime:    time.Now().Unix(),
	}
	if len(data) > 0 {
		key := "attachment-" + attachment.ID
		if err := s.saveBlob(ctx, key, data); err != nil {
			return nil, err
		}
		attachment.FileKey = key
	}
	if err := s.records.CreateAttachment(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

func (s *CorpusService) saveBlob(ctx context.Context, key string, data []byte) error {
	if s.store == nil {
		return fmt.Errorf("file store not configured")
	}
	return s.store.Save(ctx, key, nopSeekCloser{bytes.NewReader(data)}, int64(len(data)))
}

func (s *CorpusService) OpenBlob(ctx context.Context, userID string, typ model.RecordType, id string) (string, int64, filestore.ReadSeekCloser, error) {
	record, err := s.records.Fetch(ctx, userID, typ, id)
	if err != nil {
		return "", 0, nil, err
	}
	var key, name string
	var size int64
	switch typ {
	case model.RecordTypeFile:
		key, name, size = record.File.Path, record.File.Name, record.File.Size
	case model.RecordTypeAttachment:
		key, name, size = record.Attachment.FileKey, record.Attachment.Filename, record.Attachment.Size
	default:
		return "", 0, nil, fmt.Errorf("record type %q has no blob", typ)
	}
	if key == "" {
		return "", 0, nil, fmt.Errorf("record has no stored blob")
	}
	reader, err := s.store.Open(ctx, key)
	if err != nil {
		return "", 0, nil, err
	}
	rsc, ok := reader.(filestore.ReadSeekCloser)
	if !ok {
		return "", 0, nil, fmt.Errorf("stored blob is not seekable")
	}
	return name, size, rsc, nil
}

func (s *CorpusService) Get(ctx context.Context, userID string, typ model.RecordType, id string) (*model.Record, error) {
	return s.records.Fetch(ctx, userID, typ, id)
}

// SummariesProcessed and EmbeddingsProcessed expose pipeline progress for
// health reporting.
func (s *CorpusService) SummariesProcessed() int64 {
	return s.summariesDone.Load()
}

func (s *CorpusService) EmbeddingsProcessed() int64 {
	return s.embeddingsDone.Load()
}

// ProcessPendingSummaries summarizes files and attachments that carry text
// but no summary yet. Returns how many records it handled this pass.
func (s *CorpusService) ProcessPendingSummaries(ctx context.Context, limit int) (int, error) {
	files, err := s.records.ListFilesMissingSummary(ctx, limit)
	if err != nil {
		return 0, err
	}
	attachments, err := s.records.ListAttachmentsMissingSummary(ctx, limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, file := range files {
		summary, err := s.aiMgr.Summarize(ctx, file.Content)
		if err != nil {
			logutil.GetLogger(ctx).Warn("summarize file failed", zap.String("id", file.ID), zap.Error(err))
			continue
		}
		if err := s.records.UpdateFileSummary(ctx, file.UserID, file.ID, summary); err != nil {
			logutil.GetLogger(ctx).Warn("save file summary failed", zap.String("id", file.ID), zap.Error(err))
			continue
		}
		processed++
		s.summariesDone.Add(1)
	}
	for _, attachment := range attachments {
		summary, err := s.aiMgr.Summarize(ctx, attachment.Content)
		if err != nil {
			logutil.GetLogger(ctx).Warn("summarize attachment failed", zap.String("id", attachment.ID), zap.Error(err))
			continue
		}
		if err := s.records.UpdateAttachmentSummary(ctx, attachment.UserID, attachment.ID, summary); err != nil {
			logutil.GetLogger(ctx).Warn("save attachment summary failed", zap.String("id", attachment.ID), zap.Error(err))
			continue
		}
		processed++
		s.summariesDone.Add(1)
	}
	return processed, nil
}

// ProcessPendingEmbeddings embeds records that have no embedding row yet,
// fanning the upstream calls out over a small worker pool.
func (s *CorpusService) ProcessPendingEmbeddings(ctx context.Context, limit int) (int, error) {
	pending, err := s.embeddings.ListMissing(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	var processed atomic.Int64
	jobs := make(chan model.PendingEmbedding)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := s.embedOne(ctx, item); err != nil {
					logutil.GetLogger(ctx).Warn("embed record failed",
						zap.String("type", string(item.Type)), zap.String("id", item.ID), zap.Error(err))
					continue
				}
				processed.Add(1)
				s.embeddingsDone.Add(1)
			}
		}()
	}
	for _, item := range pending {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
	return int(processed.Load()), nil
}

func (s *CorpusService) embedOne(ctx context.Context, item model.PendingEmbedding) error {
	text := item.Text
	if max := s.aiMgr.MaxInputChars(); max > 0 && len(text) > max {
		text = text[:max]
	}
	embedding, err := s.aiMgr.Embed(ctx, text, documentTaskType)
	if err != nil {
		return err
	}
	hash := sha256.Sum256([]byte(text))
	return s.embeddings.Save(ctx, &model.RecordEmbedding{
		RecordType:  item.Type,
		RecordID:    item.ID,
		UserID:      item.UserID,
		Embedding:   embedding,
		ContentHash: hex.EncodeToString(hash[:]),
		Mtime:       time.Now().Unix(),
	})
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error {
	return nil
}
