package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

var errClosed = errors.New("sink closed")

// JSONL appends runs as JSON lines for later analysis.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONL creates/opens the target file and returns a sink.
func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONL{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Name returns the sink identifier.
func (j *JSONL) Name() string { return "jsonl" }

// Publish writes a single run to the underlying file.
func (j *JSONL) Publish(_ context.Context, run Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return errClosed
	}
	return j.enc.Encode(run)
}

// Close flushes and closes the file handle.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
