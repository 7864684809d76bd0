package model

import "time"

// DocumentChunk is one embedded window of a document's extracted text.
// (DocumentID, ChunkIndex) is unique. The foreign key rejects chunks for a
// document that no longer exists and removes chunks with their document.
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;uniqueIndex:idx_document_chunk" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_document_chunk" json:"chunk_index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	Embedding  Vector    `gorm:"type:blob" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a chunk ranked against a query vector.
type ScoredChunk struct {
	DocumentChunk
	Similarity float64 `json:"similarity"`
}
