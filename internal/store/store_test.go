package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	st, err := Open(Config{DSN: filepath.Join(s.T().TempDir(), "cache.db")})
	s.Require().NoError(err)
	s.store = st
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func (s *StoreSuite) TestGetMissing() {
	vec, ok, err := s.store.Get(s.ctx, "multilingual-e5-small", "query: nothing here")
	s.Require().NoError(err)
	s.False(ok)
	s.Nil(vec)
}

func (s *StoreSuite) TestPutThenGet() {
	want := []float32{0.6, -0.8, 0}
	s.Require().NoError(s.store.Put(s.ctx, "multilingual-e5-small", "passage: a cat", want))

	got, ok, err := s.store.Get(s.ctx, "multilingual-e5-small", "passage: a cat")
	s.Require().NoError(err)
	s.True(ok)
	s.InDeltaSlice(want, got, 1e-6)
}

func (s *StoreSuite) TestKeyedByModel() {
	s.Require().NoError(s.store.Put(s.ctx, "multilingual-e5-small", "same text", []float32{1, 0}))

	_, ok, err := s.store.Get(s.ctx, "multilingual-e5-base", "same text")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestPutReplaces() {
	s.Require().NoError(s.store.Put(s.ctx, "m", "t", []float32{1, 0}))
	s.Require().NoError(s.store.Put(s.ctx, "m", "t", []float32{0, 1, 0}))

	got, ok, err := s.store.Get(s.ctx, "m", "t")
	s.Require().NoError(err)
	s.True(ok)
	s.InDeltaSlice([]float32{0, 1, 0}, got, 1e-6)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *StoreSuite) TestPurge() {
	s.Require().NoError(s.store.Put(s.ctx, "a", "one", []float32{1}))
	s.Require().NoError(s.store.Put(s.ctx, "a", "two", []float32{1}))
	s.Require().NoError(s.store.Put(s.ctx, "b", "one", []float32{1}))

	removed, err := s.store.Purge(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(int64(2), removed)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := Open(Config{DSN: path})
	require.NoError(t, err)
	require.NoError(t, first.Put(context.Background(), "m", "t", []float32{1, 2}))
	require.NoError(t, first.Close())

	second, err := Open(Config{DSN: path})
	require.NoError(t, err)
	defer second.Close()

	_, ok, err := second.Get(context.Background(), "m", "t")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashText(t *testing.T) {
	assert.Equal(t, HashText("abc"), HashText("abc"))
	assert.NotEqual(t, HashText("abc"), HashText("abd"))
	assert.Len(t, HashText(""), 64)
}

func TestDialectorSelection(t *testing.T) {
	assert.False(t, isSQLite("postgres://user@localhost/e5"))
	assert.False(t, isSQLite("postgresql://user@localhost/e5"))
	assert.True(t, isSQLite("/var/lib/e5sim/cache.db"))
	assert.True(t, isSQLite(":memory:"))

	assert.Equal(t, "postgres", dialector("postgres://localhost/e5").Name())
	assert.Equal(t, "sqlite", dialector("cache.db").Name())
}
