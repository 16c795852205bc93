// Package artifact implements the content-addressed artifact store:
// checksummed write, verified read, and a manifest side-car index. The
// default backend is local-filesystem (filestore.go); S3-compatible
// (s3store.go) and Postgres-indexed (pgindex.go) backends are optional
// alternates selected at process construction.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cloneforge/internal/integrity"
)

// Type enumerates the kinds of artifact a worker may produce.
type Type string

const (
	TypeCode               Type = "code"
	TypeDocumentation      Type = "documentation"
	TypeSchema             Type = "schema"
	TypeConfiguration      Type = "configuration"
	TypeCodeAnalysis       Type = "code_analysis"
	TypeArchitectureDesign Type = "architecture_design"
	TypeTestSuite          Type = "test_suite"
)

// suffixFor maps a Type to the file extension used under artifacts/.
func suffixFor(t Type) string {
	switch t {
	case TypeCode:
		return "code.txt"
	case TypeDocumentation:
		return "md"
	case TypeSchema:
		return "schema.json"
	case TypeConfiguration:
		return "conf"
	case TypeCodeAnalysis:
		return "analysis.json"
	case TypeArchitectureDesign:
		return "design.md"
	case TypeTestSuite:
		return "tests.txt"
	default:
		return "bin"
	}
}

// Artifact is a content-addressed blob. Once written, Content and Checksum
// are immutable.
type Artifact struct {
	ArtifactID string         `json:"artifactId"`
	Type       Type           `json:"type"`
	Content    []byte         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Size       int            `json:"size"`
	Timestamp  time.Time      `json:"timestamp"`
	Checksum   string         `json:"checksum"`
}

// Manifest is the small index side-car for one artifact.
type Manifest struct {
	ArtifactID string         `json:"artifactId"`
	Type       Type           `json:"type"`
	Checksum   string         `json:"checksum"`
	Location   string         `json:"location"`
	Size       int            `json:"size"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sentinel errors for this component.
var (
	ErrInvalidInput     = errors.New("artifact: invalid input")
	ErrNotFound         = errors.New("artifact: not found")
	ErrChecksumMismatch = errors.New("artifact: checksum mismatch")
)

// IOError wraps a filesystem/backend failure. Partial writes are cleaned
// up by the caller before this propagates.
type IOError struct{ Err error }

func (e *IOError) Error() string { return "artifact: io error: " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// RetrieveOptions controls whether Retrieve reads content bytes.
type RetrieveOptions struct {
	ManifestOnly bool
}

// RetrieveResult is the outcome of Retrieve.
type RetrieveResult struct {
	Manifest Manifest
	Content  []byte // nil when ManifestOnly was requested
}

// ListOptions filters List.
type ListOptions struct {
	Type Type // empty matches every type
}

// TypeStats is the per-type breakdown in Statistics.
type TypeStats struct {
	Count int `json:"count"`
	Size  int `json:"size"`
}

// Statistics summarizes the store's contents.
type Statistics struct {
	TotalArtifacts int                `json:"totalArtifacts"`
	TotalSize      int                `json:"totalSize"`
	AverageSize    float64            `json:"averageSize"`
	ByType         map[Type]TypeStats `json:"byType"`
}

// Store is the artifact store contract every backend satisfies.
type Store interface {
	StoreArtifact(ctx context.Context, typ Type, content []byte, metadata map[string]any) (Manifest, error)
	Retrieve(ctx context.Context, id string, opts RetrieveOptions) (RetrieveResult, error)
	List(ctx context.Context, opts ListOptions) ([]Manifest, error)
	Delete(ctx context.Context, id string) (bool, error)
	Statistics(ctx context.Context) (Statistics, error)
	IsInitialized() bool
}

// newManifest builds a Manifest for a freshly stored artifact.
func newManifest(typ Type, content []byte, metadata map[string]any, location string) (Manifest, string, error) {
	if typ == "" {
		return Manifest{}, "", fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if content == nil {
		return Manifest{}, "", fmt.Errorf("%w: content is nil", ErrInvalidInput)
	}
	sum, err := integrity.Checksum(content)
	if err != nil {
		return Manifest{}, "", err
	}
	id := uuid.NewString()
	return Manifest{
		ArtifactID: id,
		Type:       typ,
		Checksum:   sum,
		Location:   location,
		Size:       len(content),
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}, id, nil
}
