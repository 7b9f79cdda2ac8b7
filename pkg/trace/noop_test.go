//go:build !tracing

package trace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileExporter_DisabledBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exp, err := NewFileExporter(path, func(interface{}) {})
	require.NoError(t, err)
	assert.IsType(t, &NoopExporter{}, exp)

	rec := NewRecord("query", time.Now())
	assert.NoError(t, exp.Export(context.Background(), rec))
	assert.NoError(t, exp.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file should be written without the tracing tag")
}
