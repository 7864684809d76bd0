package model

import (
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentPartial    DocumentStatus = "partial"
	DocumentError      DocumentStatus = "error"
)

// DocumentMetadata holds the diagnostics written by the ingestion pipeline.
type DocumentMetadata struct {
	ErrorMessage  string     `json:"error_message,omitempty"`
	ErrorAt       *time.Time `json:"error_at,omitempty"`
	ChunksCreated int        `json:"chunks_created"`
	ChunksFailed  int        `json:"chunks_failed"`
	TextLength    int        `json:"text_length"`
}

type Document struct {
	ID          uint                                 `gorm:"primaryKey" json:"id"`
	UserID      uint                                 `gorm:"not null;index" json:"user_id"`
	Title       string                               `gorm:"size:256;not null" json:"title"`
	FileName    string                               `gorm:"size:256;not null" json:"file_name"`
	FileType    string                               `gorm:"size:128" json:"file_type"`
	FileSize    int64                                `gorm:"not null" json:"file_size"`
	StoragePath string                               `gorm:"size:512;not null" json:"storage_path"`
	Status      DocumentStatus                       `gorm:"size:16;not null;index;default:pending" json:"status"`
	Metadata    datatypes.JSONType[DocumentMetadata] `json:"metadata"`
	ProcessedAt *time.Time                           `json:"processed_at"`
	CreatedAt   time.Time                            `json:"created_at"`
	UpdatedAt   time.Time                            `json:"updated_at"`
}

// TitleFromFileName strips the last extension from a file name.
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
