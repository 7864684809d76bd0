package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"docrag/internal/model"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the document does not exist.
func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uint, status model.DocumentStatus) error {
	err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

// Finish records a terminal ingestion outcome. processedAt may be nil for
// failures that never produced chunks. It returns ErrDocumentNotFound when
// the document was deleted in the meantime.
func (r *DocumentRepository) Finish(ctx context.Context, id uint, status model.DocumentStatus, meta model.DocumentMetadata, processedAt *time.Time) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]any{
		"status":       status,
		"metadata":     datatypes.NewJSONType(meta),
		"processed_at": processedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("finish document failed: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when nothing changed.
	var count int64
	if err := db.Model(&model.Document{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("finish document failed: %w", err)
	}
	if count == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteWithChunks removes the document and all of its chunks in one transaction.
func (r *DocumentRepository) DeleteWithChunks(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("delete document chunks failed: %w", err)
		}
		if err := tx.Delete(&model.Document{}, id).Error; err != nil {
			return fmt.Errorf("delete document failed: %w", err)
		}
		return nil
	})
}
