package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cloneforge/internal/integrity"
)

// S3Config configures an S3-compatible artifact backend.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store is an optional Store backend that keeps content objects in an
// S3-compatible bucket (via minio-go) while the manifest index remains
// local JSON, splitting blob storage from the small structured records
// that point at it.
type S3Store struct {
	client       *minio.Client
	bucket       string
	manifestsDir string

	initOnce sync.Once
	initErr  error

	mu    sync.RWMutex
	order []string
	index map[string]Manifest
}

// NewS3Store builds an S3-backed store. manifestsDir holds the local
// manifest JSON side-cars; manifests stay lightweight regardless of where
// content lives.
func NewS3Store(cfg S3Config, manifestsDir string) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", ErrInvalidInput)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", ErrInvalidInput)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", ErrInvalidInput)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, &IOError{Err: fmt.Errorf("init s3 client: %w", err)}
	}

	if err := os.MkdirAll(manifestsDir, 0o755); err != nil {
		return nil, &IOError{Err: err}
	}

	s := &S3Store{
		client:       client,
		bucket:       bucket,
		manifestsDir: manifestsDir,
		index:        map[string]Manifest{},
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, &IOError{Err: err}
	}
	return s, nil
}

func (s *S3Store) rebuildIndex() error {
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
	for _, m := range manifests {
		s.index[m.ArtifactID] = m
		s.order = append(s.order, m.ArtifactID)
	}
	return nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})
	return s.initErr
}

func objectKey(id string, typ Type) string {
	return id + "." + suffixFor(typ)
}

// StoreArtifact uploads content to the bucket then writes the manifest,
// cleaning up the uploaded object if the manifest write fails.
func (s *S3Store) StoreArtifact(ctx context.Context, typ Type, content []byte, metadata map[string]any) (Manifest, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return Manifest{}, &IOError{Err: err}
	}
	manifest, _, err := newManifest(typ, content, metadata, "")
	if err != nil {
		return Manifest{}, err
	}
	key := objectKey(manifest.ArtifactID, typ)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return Manifest{}, &IOError{Err: err}
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, time.Hour, nil)
	if err != nil {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return Manifest{}, &IOError{Err: err}
	}
	manifest.Location = u.String()

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return Manifest{}, &IOError{Err: err}
	}
	if err := os.WriteFile(filepath.Join(s.manifestsDir, manifest.ArtifactID+".json"), manifestBytes, 0o644); err != nil {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return Manifest{}, &IOError{Err: err}
	}

	s.mu.Lock()
	s.index[manifest.ArtifactID] = manifest
	s.order = append(s.order, manifest.ArtifactID)
	s.mu.Unlock()

	return manifest, nil
}

// Retrieve always recomputes the checksum against the downloaded object.
func (s *S3Store) Retrieve(ctx context.Context, id string, opts RetrieveOptions) (RetrieveResult, error) {
	s.mu.RLock()
	manifest, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return RetrieveResult{}, ErrNotFound
	}
	if opts.ManifestOnly {
		return RetrieveResult{Manifest: manifest}, nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return RetrieveResult{}, &IOError{Err: err}
	}

	key := objectKey(id, manifest.Type)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return RetrieveResult{}, &IOError{Err: err}
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
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

// List returns manifests in insertion order, filtered by exact type match.
func (s *S3Store) List(ctx context.Context, opts ListOptions) ([]Manifest, error) {
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

// Delete removes the bucket object and the local manifest.
func (s *S3Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	manifest, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.index, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	_ = s.client.RemoveObject(ctx, s.bucket, objectKey(id, manifest.Type), minio.RemoveObjectOptions{})
	_ = os.Remove(filepath.Join(s.manifestsDir, id+".json"))
	return true, nil
}

// Statistics summarizes the store's contents.
func (s *S3Store) Statistics(ctx context.Context) (Statistics, error) {
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

// IsInitialized reports whether the manifest index has been built.
func (s *S3Store) IsInitialized() bool {
	return s != nil
}
