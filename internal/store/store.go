// Package store provides a GORM-backed embedding cache for e5sim.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Store is an embedding cache on PostgreSQL or SQLite.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	DSN      string          // postgres://... or a SQLite file path (":memory:" works too)
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// Open connects to the database selected by cfg.DSN and runs migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("empty cache DSN")
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(dialector(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	if isSQLite(cfg.DSN) {
		// SQLite allows a single writer.
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Debug().Bool("sqlite", isSQLite(cfg.DSN)).Msg("Embedding cache opened")

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

func isSQLite(dsn string) bool {
	return !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://")
}

func dialector(dsn string) gorm.Dialector {
	if !isSQLite(dsn) {
		return postgres.Open(dsn)
	}
	return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
}

// HashText returns the cache key of a text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached embedding of text under model, if present.
func (s *Store) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	var row CachedEmbedding
	err := s.DB.WithContext(ctx).
		Where("model = ? AND text_hash = ?", model, HashText(text)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached embedding: %w", err)
	}

	vec := row.Embedding.Slice()
	if len(vec) != row.Dimensions {
		return nil, false, fmt.Errorf("cached embedding has %d values, row says %d", len(vec), row.Dimensions)
	}
	return vec, true, nil
}

// Put stores or replaces the embedding of text under model.
func (s *Store) Put(ctx context.Context, model, text string, vec []float32) error {
	row := CachedEmbedding{
		Model:      model,
		TextHash:   HashText(text),
		Dimensions: len(vec),
		Embedding:  pgvector.NewVector(vec),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model"}, {Name: "text_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"dimensions", "embedding", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("put cached embedding: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&CachedEmbedding{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count cached embeddings: %w", err)
	}
	return n, nil
}

// Purge deletes every cached embedding of model.
func (s *Store) Purge(ctx context.Context, model string) (int64, error) {
	res := s.DB.WithContext(ctx).Where("model = ?", model).Delete(&CachedEmbedding{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge cached embeddings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}
