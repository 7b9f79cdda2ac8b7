//go:build tracing

package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileExporter appends traces to a JSON Lines file and rotates it by size.
type FileExporter struct {
	filePath        string
	maxSizeBytes    int64
	maxRotatedFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
	closed  bool
}

// WithMaxSize sets the maximum file size before rotation (default: 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(iface interface{}) {
		if fe, ok := iface.(*FileExporter); ok {
			fe.maxSizeBytes = bytes
		}
	}
}

// WithMaxRotatedFiles sets how many rotated files to keep (default: 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(iface interface{}) {
		if fe, ok := iface.(*FileExporter); ok {
			fe.maxRotatedFiles = count
		}
	}
}

// NewFileExporter creates a file-based trace exporter. An empty path disables export.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return &NoopExporter{}, nil
	}

	fe := &FileExporter{
		filePath:        filePath,
		maxSizeBytes:    10 * 1024 * 1024,
		maxRotatedFiles: 5,
	}
	for _, opt := range opts {
		opt(fe)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	if err := fe.open(); err != nil {
		return nil, err
	}
	return fe, nil
}

// open (re)opens the trace file for append and picks up its current size.
// Must be called with lock held or before the exporter is shared.
func (fe *FileExporter) open() error {
	file, err := os.OpenFile(fe.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat trace file: %w", err)
	}
	fe.file = file
	fe.written = info.Size()
	return nil
}

// Export writes one record as a single line, rotating afterwards if the file is full.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode trace record: %w", err)
	}
	line = append(line, '\n')

	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return fmt.Errorf("exporter closed")
	}

	n, err := fe.file.Write(line)
	fe.written += int64(n)
	if err != nil {
		return fmt.Errorf("write trace record: %w", err)
	}

	if fe.written >= fe.maxSizeBytes {
		if err := fe.rotate(); err != nil {
			return fmt.Errorf("rotate trace file: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the trace file. Calling it twice is harmless.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true

	if err := fe.file.Sync(); err != nil {
		fe.file.Close()
		return fmt.Errorf("sync trace file: %w", err)
	}
	return fe.file.Close()
}

// rotate shifts path.N-1 -> path.N, moves the live file to path.1 and reopens.
// Must be called with lock held.
func (fe *FileExporter) rotate() error {
	if err := fe.file.Close(); err != nil {
		return fmt.Errorf("close trace file for rotation: %w", err)
	}

	rotated := func(i int) string { return fmt.Sprintf("%s.%d", fe.filePath, i) }

	if err := os.Remove(rotated(fe.maxRotatedFiles)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest rotated file: %w", err)
	}
	for i := fe.maxRotatedFiles - 1; i >= 1; i-- {
		if err := os.Rename(rotated(i), rotated(i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shift rotated file %d: %w", i, err)
		}
	}
	if err := os.Rename(fe.filePath, rotated(1)); err != nil {
		return fmt.Errorf("rotate current file: %w", err)
	}

	return fe.open()
}
