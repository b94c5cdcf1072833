package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// FileSink appends alerts as JSON lines to a local file, reopening it for
// every alert.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates the file and its parent directories if needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating alert directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &FileSink{path: path}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Path returns the file alerts are appended to.
func (s *FileSink) Path() string { return s.path }

// Send appends the alert as one JSON line.
func (s *FileSink) Send(_ context.Context, alert types.Alert) error {
	var line bytes.Buffer
	if err := json.NewEncoder(&line).Encode(alert); err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending to %s: %w", s.path, err)
	}
	return f.Close()
}
