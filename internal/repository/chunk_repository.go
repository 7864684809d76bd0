package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"docrag/internal/embedding"
	"docrag/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Create(ctx context.Context, chunk *model.DocumentChunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uint) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

// Search ranks the chunks of userID's documents by cosine similarity to query
// and returns at most limit results scoring at least minScore, best first.
// MySQL has no vector type, so rows are streamed and scored in process.
func (r *ChunkRepository) Search(ctx context.Context, query []float32, limit int, minScore float64, userID uint) ([]model.ScoredChunk, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}

	rows, err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).
		Select("document_chunks.*").
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.user_id = ?", userID).
		Rows()
	if err != nil {
		return nil, fmt.Errorf("search chunks failed: %w", err)
	}
	defer rows.Close()

	var scored []model.ScoredChunk
	for rows.Next() {
		var chunk model.DocumentChunk
		if err := r.db.ScanRows(rows, &chunk); err != nil {
			return nil, fmt.Errorf("scan chunk failed: %w", err)
		}
		sim := embedding.Cosine(query, chunk.Embedding)
		if sim < minScore {
			continue
		}
		scored = append(scored, model.ScoredChunk{DocumentChunk: chunk, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks failed: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
