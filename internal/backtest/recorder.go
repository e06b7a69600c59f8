package backtest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"tradesim-go/internal/execution"
)

type recordedFill struct {
	RunID string `json:"run_id"`
	execution.Fill
}

// JSONLRecorder appends fills as JSON lines tagged with a run id.
type JSONLRecorder struct {
	mu    sync.Mutex
	runID string
	file  *os.File
	enc   *json.Encoder
	err   error
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path, runID string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		runID: runID,
		file:  file,
		enc:   json.NewEncoder(file),
	}, nil
}

// Record writes a single fill. The first write error is kept and returned by Close.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil || r.err != nil {
		return
	}
	r.err = r.enc.Encode(recordedFill{RunID: r.runID, Fill: fill})
}

// Close closes the file handle and reports any earlier write error.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	err := r.file.Close()
	r.file = nil
	if r.err != nil {
		return r.err
	}
	return err
}
