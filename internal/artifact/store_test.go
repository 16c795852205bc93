package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	return s
}

func TestStoreArtifactAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	manifest, err := s.StoreArtifact(ctx, TypeCode, []byte("package main"), map[string]any{"lang": "go"})
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.ArtifactID)
	assert.Equal(t, 12, manifest.Size)

	result, err := s.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "package main", string(result.Content))
	assert.Equal(t, manifest.Checksum, result.Manifest.Checksum)
}

func TestRetrieveManifestOnlyOmitsContent(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	manifest, err := s.StoreArtifact(ctx, TypeDocumentation, []byte("# doc"), nil)
	require.NoError(t, err)

	result, err := s.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{ManifestOnly: true})
	require.NoError(t, err)
	assert.Nil(t, result.Content)
	assert.Equal(t, manifest.ArtifactID, result.Manifest.ArtifactID)
}

func TestRetrieveUnknownIDReturnsNotFound(t *testing.T) {
	s := newTestFileStore(t)
	_, err := s.Retrieve(context.Background(), "does-not-exist", RetrieveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveDetectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	manifest, err := s.StoreArtifact(ctx, TypeCode, []byte("original"), nil)
	require.NoError(t, err)

	contentPath := s.contentPath(manifest)
	require.NoError(t, os.WriteFile(contentPath, []byte("corrupted!"), 0o644))

	_, err = s.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestListFiltersByType(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.StoreArtifact(ctx, TypeCode, []byte("a"), nil)
	require.NoError(t, err)
	_, err = s.StoreArtifact(ctx, TypeDocumentation, []byte("b"), nil)
	require.NoError(t, err)

	docs, err := s.List(ctx, ListOptions{Type: TypeDocumentation})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, TypeDocumentation, docs[0].Type)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteRemovesContentAndManifest(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	manifest, err := s.StoreArtifact(ctx, TypeSchema, []byte("{}"), nil)
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, manifest.ArtifactID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	deletedAgain, err := s.Delete(ctx, manifest.ArtifactID)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestStatisticsAggregatesByType(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.StoreArtifact(ctx, TypeCode, []byte("1234"), nil)
	require.NoError(t, err)
	_, err = s.StoreArtifact(ctx, TypeCode, []byte("12345678"), nil)
	require.NoError(t, err)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalArtifacts)
	assert.Equal(t, 12, stats.TotalSize)
	assert.Equal(t, float64(6), stats.AverageSize)
	assert.Equal(t, 2, stats.ByType[TypeCode].Count)
}

func TestRebuildIndexFlagsMissingContentAsNotFound(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	manifest, err := s.StoreArtifact(ctx, TypeCode, []byte("x"), nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.contentPath(manifest)))

	reopened, err := NewFileStore(root)
	require.NoError(t, err)

	_, err = reopened.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewFileStoreRejectsEmptyRoot(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveLocationAcceptsFileURIAndBarePath(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, "x.txt")
	assert.Equal(t, bare, resolveLocation("file://"+bare))
	assert.Equal(t, bare, resolveLocation(bare))
}

func TestCachedStoreServesRepeatRetrievesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := newTestFileStore(t)
	cached, err := NewCachedStore(inner, 8)
	require.NoError(t, err)

	manifest, err := cached.StoreArtifact(ctx, TypeCode, []byte("cache me"), nil)
	require.NoError(t, err)

	// Remove content from disk directly; a cache hit should still succeed
	// because StoreArtifact seeded the cache with the just-written content.
	require.NoError(t, os.Remove(inner.contentPath(manifest)))

	result, err := cached.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cache me", string(result.Content))
}

func TestCachedStoreDeleteEvictsEntry(t *testing.T) {
	ctx := context.Background()
	inner := newTestFileStore(t)
	cached, err := NewCachedStore(inner, 8)
	require.NoError(t, err)

	manifest, err := cached.StoreArtifact(ctx, TypeCode, []byte("evict me"), nil)
	require.NoError(t, err)

	ok, err := cached.Delete(ctx, manifest.ArtifactID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = cached.Retrieve(ctx, manifest.ArtifactID, RetrieveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}
