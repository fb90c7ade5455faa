package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"sentinelir/internal/logger"
	"sentinelir/pkg/models"
)

// ErrUnavailable marks a catalog load that fell back to built-in defaults.
var ErrUnavailable = errors.New("catalog unavailable")

// ThreatIntelStore lists active threat indicators.
type ThreatIntelStore interface {
	ListActive(ctx context.Context) ([]models.ThreatIndicatorEntry, error)
}

// PlaybookStore serves playbooks.
type PlaybookStore interface {
	FindByCategorySeverity(ctx context.Context, category string, severity models.Severity) (*models.Playbook, error)
	ListActive(ctx context.Context) ([]models.Playbook, error)
}

// Load builds a snapshot from the stores. A store that is nil or fails is
// replaced by its default table; the snapshot is then marked degraded and the
// returned error wraps ErrUnavailable. The snapshot is never nil.
func Load(ctx context.Context, intel ThreatIntelStore, playbooks PlaybookStore) (*Snapshot, error) {
	var errs []error

	indicators := DefaultIndicators()
	if intel == nil {
		errs = append(errs, fmt.Errorf("%w: no threat-intel store configured", ErrUnavailable))
	} else if got, err := intel.ListActive(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%w: list threat indicators: %v", ErrUnavailable, err))
	} else {
		indicators = got
	}

	pbs := DefaultPlaybooks()
	if playbooks == nil {
		errs = append(errs, fmt.Errorf("%w: no playbook store configured", ErrUnavailable))
	} else if got, err := playbooks.ListActive(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%w: list playbooks: %v", ErrUnavailable, err))
	} else {
		pbs = got
	}

	snap := NewSnapshot(indicators, pbs)
	snap.degraded = len(errs) > 0
	return snap, errors.Join(errs...)
}

// Holder owns the current snapshot and swaps it on refresh.
type Holder struct {
	current   atomic.Pointer[Snapshot]
	intel     ThreatIntelStore
	playbooks PlaybookStore
}

// NewHolder loads the first snapshot. Load failures are logged and the holder
// starts degraded rather than failing.
func NewHolder(ctx context.Context, intel ThreatIntelStore, playbooks PlaybookStore) *Holder {
	h := &Holder{intel: intel, playbooks: playbooks}
	_ = h.Refresh(ctx)
	return h
}

// Current returns the active snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Refresh loads a new snapshot and installs it. A degraded load still
// replaces the current snapshot only if there is no healthy one yet.
func (h *Holder) Refresh(ctx context.Context) error {
	snap, err := Load(ctx, h.intel, h.playbooks)
	if err != nil {
		logger.Warnf("Catalog load degraded, using built-in defaults: %v", err)
		if cur := h.current.Load(); cur != nil && !cur.Degraded() {
			return err
		}
	}
	h.current.Store(snap)
	stats := snap.Stats()
	logger.Infof("Catalog loaded: indicators=%d playbooks=%d degraded=%t", stats.Indicators, stats.Playbooks, stats.Degraded)
	return err
}

// File is a YAML catalog document.
type File struct {
	Indicators []models.ThreatIndicatorEntry `yaml:"indicators"`
	Playbooks  []models.Playbook             `yaml:"playbooks"`
}

// FileSource serves threat indicators and playbooks from a YAML file.
// The file is re-read on every list call so refreshes see edits.
type FileSource struct {
	path string
}

// NewFileSource validates that path parses and returns a source for it.
func NewFileSource(path string) (*FileSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog path is empty")
	}
	src := &FileSource{path: path}
	if _, err := src.read(); err != nil {
		return nil, err
	}
	return src, nil
}

func (f *FileSource) read() (*File, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return &doc, nil
}

// ListActive implements ThreatIntelStore.
func (f *FileSource) ListActive(ctx context.Context) ([]models.ThreatIndicatorEntry, error) {
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]models.ThreatIndicatorEntry, 0, len(doc.Indicators))
	for _, ind := range doc.Indicators {
		if ind.IsActive {
			out = append(out, ind)
		}
	}
	return out, nil
}

// Playbooks returns the file as a PlaybookStore.
func (f *FileSource) Playbooks() PlaybookStore {
	return filePlaybooks{f}
}

type filePlaybooks struct {
	src *FileSource
}

func (p filePlaybooks) ListActive(ctx context.Context) ([]models.Playbook, error) {
	doc, err := p.src.read()
	if err != nil {
		return nil, err
	}
	out := make([]models.Playbook, 0, len(doc.Playbooks))
	for _, pb := range doc.Playbooks {
		if pb.IsActive {
			out = append(out, pb)
		}
	}
	return out, nil
}

func (p filePlaybooks) FindByCategorySeverity(ctx context.Context, category string, severity models.Severity) (*models.Playbook, error) {
	pbs, err := p.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pbs {
		if normalize(pbs[i].Category) == normalize(category) && models.ParseSeverity(string(pbs[i].Severity)) == severity {
			return &pbs[i], nil
		}
	}
	return nil, nil
}
