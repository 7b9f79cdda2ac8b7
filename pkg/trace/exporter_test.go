//go:build tracing

package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []TraceRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []TraceRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec TraceRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "line: %s", scanner.Text())
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func queryRecord() *TraceRecord {
	rec := NewRecord("query", time.Now())
	rec.DurationMs = 420
	rec.Status = "success"
	rec.Spans = []SpanRecord{
		{Name: "validate", DurationMs: 0, OK: true},
		{Name: "cache-get", DurationMs: 1, OK: true},
		{Name: "complete", DurationMs: 418, OK: true, Counters: map[string]int64{"prompts": 2}},
		{Name: "cache-set", DurationMs: 1, OK: true},
	}
	rec.IDs = map[string]interface{}{"cacheKey": "3f2a9c"}
	return rec
}

func TestFileExporter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	rec := queryRecord()
	require.NoError(t, exp.Export(context.Background(), rec))
	require.NoError(t, exp.Close())

	got := readRecords(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, rec.OperationID, got[0].OperationID)
	assert.Equal(t, "query", got[0].Operation)
	assert.Equal(t, "success", got[0].Status)
	require.Len(t, got[0].Spans, 4)
	assert.Equal(t, "complete", got[0].Spans[2].Name)
	assert.Equal(t, int64(2), got[0].Spans[2].Counters["prompts"])
}

func TestFileExporter_EmptyPathIsNoop(t *testing.T) {
	exp, err := NewFileExporter("")
	require.NoError(t, err)
	assert.IsType(t, &NoopExporter{}, exp)
	assert.NoError(t, exp.Export(context.Background(), queryRecord()))
	assert.NoError(t, exp.Close())
}

func TestFileExporter_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	for i := 0; i < 2; i++ {
		exp, err := NewFileExporter(path)
		require.NoError(t, err)
		require.NoError(t, exp.Export(context.Background(), queryRecord()))
		require.NoError(t, exp.Close())
	}

	assert.Len(t, readRecords(t, path), 2)
}

func TestFileExporter_ConcurrentExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, exp.Export(context.Background(), queryRecord()))
		}()
	}
	wg.Wait()
	require.NoError(t, exp.Close())

	assert.Len(t, readRecords(t, path), 20)
}

func TestFileExporter_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traces.jsonl")

	exp, err := NewFileExporter(path, WithMaxSize(512), WithMaxRotatedFiles(2))
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		require.NoError(t, exp.Export(context.Background(), queryRecord()))
	}
	require.NoError(t, exp.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "first rotated file should exist")
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err, "second rotated file should exist")
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "rotation should keep at most 2 files")

	for _, p := range []string{path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(2*512), "rotated file %s too large", p)
	}
}

func TestFileExporter_ErrorRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	rec := NewRecord("extract", time.Now())
	rec.Status = "error"
	rec.ErrorType = "schema_validation"
	rec.Spans = []SpanRecord{
		{Name: "locate", OK: true},
		{Name: "parse", OK: true},
		{Name: "validate", OK: false, ErrorType: "schema_validation"},
	}
	require.NoError(t, exp.Export(context.Background(), rec))
	require.NoError(t, exp.Close())

	got := readRecords(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, "schema_validation", got[0].ErrorType)
	assert.False(t, got[0].Spans[2].OK)
}

func TestFileExporter_NoContentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	require.NoError(t, exp.Export(context.Background(), queryRecord()))
	require.NoError(t, exp.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, field := range []string{"prompt\"", "response", "apiKey", "system"} {
		assert.NotContains(t, string(data), field)
	}
}

func TestFileExporter_CloseIdempotent(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, exp.Close())
	assert.NoError(t, exp.Close())
	assert.Error(t, exp.Export(context.Background(), queryRecord()))
}

func TestFileExporter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	require.NoError(t, exp.Close())

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestNewRecord(t *testing.T) {
	a := NewRecord("query", time.Now())
	b := NewRecord("query", time.Now())
	assert.NotEqual(t, a.OperationID, b.OperationID)
	assert.Len(t, a.OperationID, 36)
	assert.NotNil(t, a.Spans)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
	assert.Equal(t, "query", a.Operation)
}
