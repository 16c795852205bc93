// Package evidence implements the audit/evidence pipeline: an in-memory
// record of every operation a worker performs, day-rotated on-disk JSON
// lines, and retention pruning.
package evidence

import (
	"time"

	"github.com/google/uuid"
)

// Execution markers. Exactly these two values are valid; anything else is
// a programming error.
const (
	ExecutionReal   = "real"
	ExecutionFailed = "failed"
)

// Record is one event in the audit stream.
type Record struct {
	EvidenceID       string         `json:"evidenceId"`
	Timestamp        time.Time      `json:"timestamp"`
	Operation        string         `json:"operation"`
	Execution        string         `json:"execution"`
	TaskID           string         `json:"taskId,omitempty"`
	Clone            string         `json:"clone,omitempty"`
	ExecutionTimeMs  int64          `json:"executionTimeMs,omitempty"`
	ChecksumVerified *bool          `json:"checksumVerified,omitempty"`
	Model            string         `json:"model,omitempty"`
	Error            string         `json:"error,omitempty"`
	Extras           map[string]any `json:"extras,omitempty"`
}

// complete fills EvidenceID and Timestamp when absent, matching the
// recorder's "complete on write" contract.
func (r Record) complete() Record {
	if r.EvidenceID == "" {
		r.EvidenceID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r
}
