package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gorm.io/datatypes"

	"docrag/internal/model"
	"docrag/internal/storage"
)

const (
	DefaultMaxUploadBytes = 10 << 20

	msgNotScheduled = "ingestion could not be scheduled"
)

// IngestQueue schedules asynchronous ingestion of a document.
type IngestQueue interface {
	Enqueue(ctx context.Context, documentID uint) error
}

type DocumentService struct {
	docs     DocumentStore
	blobs    BlobStore
	queue    IngestQueue
	lock     Locker
	maxBytes int64
	now      func() time.Time
}

type UploadInput struct {
	UserID      uint
	FileName    string
	ContentType string
	Title       string
	Data        []byte
}

func NewDocumentService(docs DocumentStore, blobs BlobStore, queue IngestQueue, lock Locker, maxBytes int64) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DocumentService{
		docs:     docs,
		blobs:    blobs,
		queue:    queue,
		lock:     lock,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *DocumentService) MaxUploadBytes() int64 { return s.maxBytes }

// Upload stores the file, records a pending document and schedules its
// ingestion. When scheduling fails the document is kept and marked as
// errored so it can be reprocessed later.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	name := strings.TrimSpace(input.FileName)
	if input.UserID == 0 || name == "" {
		return nil, ErrInvalidInput
	}
	if len(input.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(input.Data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %s", ErrFileTooLarge,
			humanize.IBytes(uint64(len(input.Data))), humanize.IBytes(uint64(s.maxBytes)))
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = model.TitleFromFileName(name)
	}
	locator := storage.Locator(input.UserID, name, s.now())
	if err := s.blobs.Upload(ctx, locator, input.Data, input.ContentType); err != nil {
		return nil, fmt.Errorf("store upload failed: %w", err)
	}

	doc := &model.Document{
		UserID:      input.UserID,
		Title:       title,
		FileName:    name,
		FileType:    input.ContentType,
		FileSize:    int64(len(input.Data)),
		StoragePath: locator,
		Status:      model.DocumentPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), locator); delErr != nil {
			slog.Warn("remove orphaned upload failed", "locator", locator, "error", delErr)
		}
		return nil, err
	}

	s.schedule(ctx, doc)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByUserID(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Reprocess schedules a fresh ingestion run for an owned document.
func (s *DocumentService) Reprocess(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentPending); err != nil {
		return nil, err
	}
	doc.Status = model.DocumentPending
	s.schedule(ctx, doc)
	return doc, nil
}

// Delete removes the document, its chunks and its stored bytes. It takes the
// ingestion lock and returns ErrIngestionInProgress while a run is active.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	release, ok, err := s.lock.Acquire(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("acquire ingest lock failed: %w", err)
	}
	if !ok {
		return ErrIngestionInProgress
	}
	defer release()

	if err := s.docs.DeleteWithChunks(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
		slog.Warn("delete stored document failed", "document_id", doc.ID, "locator", doc.StoragePath, "error", err)
	}
	return nil
}

func (s *DocumentService) schedule(ctx context.Context, doc *model.Document) {
	err := s.queue.Enqueue(ctx, doc.ID)
	if err == nil {
		return
	}
	slog.Error("enqueue ingestion failed", "document_id", doc.ID, "error", err)

	at := s.now()
	meta := model.DocumentMetadata{ErrorMessage: msgNotScheduled, ErrorAt: &at}
	if err := s.docs.Finish(context.WithoutCancel(ctx), doc.ID, model.DocumentError, meta, nil); err != nil {
		slog.Error("mark document error failed", "document_id", doc.ID, "error", err)
		return
	}
	doc.Status = model.DocumentError
	doc.Metadata = datatypes.NewJSONType(meta)
}
