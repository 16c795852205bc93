package evidence

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCompletesIDAndTimestamp(t *testing.T) {
	r := NewRecorder(nil)
	rec, err := r.Record(Record{Operation: "task_execution", Execution: ExecutionReal})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.EvidenceID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestRecordRejectsEmptyOperation(t *testing.T) {
	r := NewRecorder(nil)
	_, err := r.Record(Record{Execution: ExecutionReal})
	assert.Error(t, err)
}

func TestRecordsFilterByTaskID(t *testing.T) {
	r := NewRecorder(nil)
	_, _ = r.Record(Record{Operation: "task_execution", TaskID: "t1"})
	_, _ = r.Record(Record{Operation: "task_execution", TaskID: "t2"})
	_, _ = r.Record(Record{Operation: "task_execution", TaskID: "t1"})

	recs := r.Records("t1")
	assert.Len(t, recs, 2)

	trail := r.AuditTrail("t1")
	assert.Equal(t, 2, trail.TotalRecords)
	assert.False(t, trail.StartTime.IsZero())
	assert.False(t, trail.EndTime.Before(trail.StartTime))
}

func TestLastRecord(t *testing.T) {
	r := NewRecorder(nil)
	_, ok := r.LastRecord()
	assert.False(t, ok)

	_, _ = r.Record(Record{Operation: "a"})
	rec, _ := r.Record(Record{Operation: "b"})
	last, ok := r.LastRecord()
	require.True(t, ok)
	assert.Equal(t, rec.EvidenceID, last.EvidenceID)
}

func TestFileSinkAppendsOneJSONLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, 30)
	r := NewRecorder(sink)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec, err := r.Record(Record{Operation: "task_execution", Execution: ExecutionReal, Timestamp: now})
		require.NoError(t, err)
		require.NoError(t, r.WriteToAuditLog(rec))
	}

	path := filepath.Join(dir, now.Format("2006-01-02")+"-audit.log")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		count++
	}
	assert.Equal(t, 5, count)
}

func TestFileSinkPruneOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().UTC().AddDate(0, 0, -40)
	oldPath := filepath.Join(dir, old.Format("2006-01-02")+"-audit.log")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(oldPath, []byte("{}\n"), 0o644))

	sink := NewFileSink(dir, 30)
	require.NoError(t, sink.PruneOlderThan(30))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
}
