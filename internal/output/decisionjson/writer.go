package decisionjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentinelir/internal/logger"
	"sentinelir/pkg/models"
)

// Record is one audited decision.
type Record struct {
	Timestamp  time.Time              `json:"timestamp"`
	IncidentID string                 `json:"incident_id,omitempty"`
	Action     *models.SecurityAction `json:"action"`
	Decision   models.DecisionResult  `json:"decision"`
}

// Writer appends decisions to a JSON lines file. With a positive size limit
// the file is rotated to <path>.1 before a write would exceed it; only one
// rotated file is kept. A failed rotation keeps appending to <path>.
type Writer struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
}

// NewWriter opens path for appending, creating parent directories.
// maxBytes <= 0 disables rotation.
func NewWriter(path string, maxBytes int64) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create decision log directory: %w", err)
		}
	}
	w := &Writer{path: path, maxBytes: maxBytes}
	if err := w.open(); err != nil {
		return nil, err
	}
	logger.Infof("Decision JSON writer initialized: %s", path)
	return w, nil
}

func (w *Writer) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat decision log: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// WriteDecision appends one record.
func (w *Writer) WriteDecision(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			if w.file == nil {
				return err
			}
			logger.Warnf("Decision log not rotated, appending to %s: %v", w.path, err)
		}
	}
	n, err := w.file.Write(line)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

func (w *Writer) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close decision log: %w", err)
	}
	w.file = nil
	if err := os.Rename(w.path, w.path+".1"); err != nil {
		return errors.Join(fmt.Errorf("rotate decision log: %w", err), w.open())
	}
	logger.Infof("Decision log rotated: %s", w.path)
	return w.open()
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
