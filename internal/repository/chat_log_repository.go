package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docrag/internal/model"
)

type ChatLogRepository struct {
	db *gorm.DB
}

func NewChatLogRepository(db *gorm.DB) *ChatLogRepository {
	return &ChatLogRepository{db: db}
}

// Create inserts entry. A redelivered entry with a known RequestID is ignored.
func (r *ChatLogRepository) Create(ctx context.Context, entry *model.ChatLog) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("create chat log failed: %w", err)
	}
	return nil
}
