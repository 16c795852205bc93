package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloneforge/internal/integrity"
)

// FileStore is the default local-filesystem artifact backend. Layout
// under root:
//
//	artifacts/<uuid>.<type-suffix>   content bytes exactly as supplied
//	manifests/<uuid>.json            one manifest JSON document
type FileStore struct {
	root         string
	artifactsDir string
	manifestsDir string

	mu          sync.RWMutex
	order       []string // insertion order of artifact ids
	index       map[string]Manifest
	missing     map[string]bool // manifest present, content file missing
	initialized bool
}

// NewFileStore constructs a FileStore rooted at root and rebuilds its
// in-memory index from any manifest files already on disk. A manifest
// whose content file is missing is flagged but does not block startup.
func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("%w: workspace root is required", ErrInvalidInput)
	}
	s := &FileStore{
		root:         root,
		artifactsDir: filepath.Join(root, "artifacts"),
		manifestsDir: filepath.Join(root, "manifests"),
		index:        map[string]Manifest{},
		missing:      map[string]bool{},
	}
	if err := os.MkdirAll(s.artifactsDir, 0o755); err != nil {
		return nil, &IOError{Err: err}
	}
	if err := os.MkdirAll(s.manifestsDir, 0o755); err != nil {
		return nil, &IOError{Err: err}
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, &IOError{Err: err}
	}
	s.initialized = true
	return s, nil
}

func (s *FileStore) rebuildIndex() error {
	entries, err := os.ReadDir(s.manifestsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	manifests := make([]Manifest, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.manifestsDir, e.Name()))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Timestamp.Before(manifests[j].Timestamp) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range manifests {
		s.index[m.ArtifactID] = m
		s.order = append(s.order, m.ArtifactID)
		if _, err := os.Stat(s.contentPath(m)); err != nil {
			s.missing[m.ArtifactID] = true
		}
	}
	return nil
}

func (s *FileStore) contentPath(m Manifest) string {
	return filepath.Join(s.artifactsDir, m.ArtifactID+"."+suffixFor(m.Type))
}

func (s *FileStore) locationURI(m Manifest) string {
	u := url.URL{Scheme: "file", Path: s.contentPath(m)}
	return u.String()
}

// resolveLocation accepts both the canonical file:// URI and a bare
// filesystem path, a read-side tolerance for manifests written by older
// implementations. New writes always emit the URI form.
func resolveLocation(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return location
}

// StoreArtifact generates a UUID, computes the checksum, writes content
// then the manifest (in that order), and cleans up partial writes on
// failure.
func (s *FileStore) StoreArtifact(ctx context.Context, typ Type, content []byte, metadata map[string]any) (Manifest, error) {
	if s == nil {
		return Manifest{}, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	manifest, _, err := newManifest(typ, content, metadata, "")
	if err != nil {
		return Manifest{}, err
	}
	manifest.Location = s.locationURI(manifest)

	contentPath := s.contentPath(manifest)
	if err := os.WriteFile(contentPath, content, 0o644); err != nil {
		return Manifest{}, &IOError{Err: err}
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = os.Remove(contentPath)
		return Manifest{}, &IOError{Err: err}
	}
	manifestPath := filepath.Join(s.manifestsDir, manifest.ArtifactID+".json")
	if err := os.WriteFile(manifestPath, manifestBytes, 0o644); err != nil {
		_ = os.Remove(contentPath)
		return Manifest{}, &IOError{Err: err}
	}

	s.mu.Lock()
	s.index[manifest.ArtifactID] = manifest
	s.order = append(s.order, manifest.ArtifactID)
	s.mu.Unlock()

	return manifest, nil
}

// Retrieve always reads the manifest first, reads content only when
// ManifestOnly is false, and always recomputes the checksum against the
// stored manifest, the artifact-layer guard against silent corruption.
func (s *FileStore) Retrieve(ctx context.Context, id string, opts RetrieveOptions) (RetrieveResult, error) {
	s.mu.RLock()
	manifest, ok := s.index[id]
	flaggedMissing := s.missing[id]
	s.mu.RUnlock()
	if !ok {
		return RetrieveResult{}, ErrNotFound
	}
	if flaggedMissing {
		return RetrieveResult{}, ErrNotFound
	}

	if opts.ManifestOnly {
		return RetrieveResult{Manifest: manifest}, nil
	}

	path := resolveLocation(manifest.Location)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RetrieveResult{}, ErrNotFound
		}
		return RetrieveResult{}, &IOError{Err: err}
	}

	ok2, err := integrity.VerifyChecksum(content, manifest.Checksum)
	if err != nil {
		return RetrieveResult{}, &IOError{Err: err}
	}
	if !ok2 {
		return RetrieveResult{}, ErrChecksumMismatch
	}
	return RetrieveResult{Manifest: manifest, Content: content}, nil
}

// List returns manifests in insertion order, optionally filtered by exact
// type match.
func (s *FileStore) List(ctx context.Context, opts ListOptions) ([]Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Manifest, 0, len(s.order))
	for _, id := range s.order {
		m, ok := s.index[id]
		if !ok {
			continue
		}
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Delete removes both files and returns true only if the manifest existed
// beforehand.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	manifest, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.index, id)
	delete(s.missing, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	_ = os.Remove(s.contentPath(manifest))
	_ = os.Remove(filepath.Join(s.manifestsDir, id+".json"))
	return true, nil
}

// Statistics summarizes the store's contents.
func (s *FileStore) Statistics(ctx context.Context) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Statistics{ByType: map[Type]TypeStats{}}
	for _, id := range s.order {
		m, ok := s.index[id]
		if !ok {
			continue
		}
		stats.TotalArtifacts++
		stats.TotalSize += m.Size
		ts := stats.ByType[m.Type]
		ts.Count++
		ts.Size += m.Size
		stats.ByType[m.Type] = ts
	}
	if stats.TotalArtifacts > 0 {
		stats.AverageSize = float64(stats.TotalSize) / float64(stats.TotalArtifacts)
	}
	return stats, nil
}

// IsInitialized reports whether directories exist and the index rebuild
// completed.
func (s *FileStore) IsInitialized() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}
