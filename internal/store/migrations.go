package store

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: embedding cache table
		{
			ID: "001_cached_embeddings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CachedEmbedding{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("cached_embeddings")
			},
		},
	})
	return m.Migrate()
}
