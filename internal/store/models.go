package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// CachedEmbedding is one cached sentence embedding.
// Vectors are stored in pgvector's text form so the same column works on SQLite.
type CachedEmbedding struct {
	ID         uint            `gorm:"primaryKey"`
	Model      string          `gorm:"size:64;not null;uniqueIndex:idx_cached_embeddings_key"`
	TextHash   string          `gorm:"size:64;not null;uniqueIndex:idx_cached_embeddings_key"`
	Dimensions int             `gorm:"not null"`
	Embedding  pgvector.Vector `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the default table name.
func (CachedEmbedding) TableName() string {
	return "cached_embeddings"
}
