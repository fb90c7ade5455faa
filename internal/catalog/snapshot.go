package catalog

import (
	"sort"
	"strings"
	"time"

	"sentinelir/pkg/models"
)

// Snapshot is an immutable view over threat indicators and playbooks.
// It is safe for concurrent readers.
type Snapshot struct {
	indicators map[string]models.ThreatIndicatorEntry
	playbooks  map[string]models.Playbook
	degraded   bool
	loadedAt   time.Time
}

// Stats summarizes a snapshot.
type Stats struct {
	Indicators int       `json:"indicators"`
	Playbooks  int       `json:"playbooks"`
	Degraded   bool      `json:"degraded"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// NewSnapshot builds a snapshot from entries. Inactive entries are dropped.
func NewSnapshot(indicators []models.ThreatIndicatorEntry, playbooks []models.Playbook) *Snapshot {
	s := &Snapshot{
		indicators: make(map[string]models.ThreatIndicatorEntry, len(indicators)),
		playbooks:  make(map[string]models.Playbook, len(playbooks)),
		loadedAt:   time.Now(),
	}
	for _, ind := range indicators {
		if !ind.IsActive {
			continue
		}
		ind.Kind = normalize(ind.Kind)
		ind.Value = normalize(ind.Value)
		if ind.Kind == "" || ind.Value == "" {
			continue
		}
		s.indicators[ind.Key()] = ind
	}
	for _, pb := range playbooks {
		if !pb.IsActive {
			continue
		}
		pb.Category = normalize(pb.Category)
		pb.Severity = models.ParseSeverity(string(pb.Severity))
		pb.Steps = append([]string(nil), pb.Steps...)
		s.playbooks[pb.Key()] = pb
	}
	return s
}

// Lookup returns the active indicator for kind and value.
func (s *Snapshot) Lookup(kind, value string) (models.ThreatIndicatorEntry, bool) {
	if s == nil {
		return models.ThreatIndicatorEntry{}, false
	}
	ind, ok := s.indicators[models.IndicatorKey(normalize(kind), normalize(value))]
	return ind, ok
}

// IsKnownThreatIP reports whether ip is an active IP indicator.
func (s *Snapshot) IsKnownThreatIP(ip string) bool {
	if strings.TrimSpace(ip) == "" {
		return false
	}
	_, ok := s.Lookup(models.IndicatorIP, ip)
	return ok
}

// Playbook returns the active playbook for a category and severity.
func (s *Snapshot) Playbook(category string, severity models.Severity) (models.Playbook, bool) {
	if s == nil {
		return models.Playbook{}, false
	}
	pb, ok := s.playbooks[models.PlaybookKey(normalize(category), severity)]
	if !ok {
		return models.Playbook{}, false
	}
	pb.Steps = append([]string(nil), pb.Steps...)
	return pb, true
}

// Indicators returns active indicators sorted by key.
func (s *Snapshot) Indicators() []models.ThreatIndicatorEntry {
	out := make([]models.ThreatIndicatorEntry, 0, len(s.indicators))
	for _, ind := range s.indicators {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Degraded reports whether any part of the snapshot came from built-in defaults.
func (s *Snapshot) Degraded() bool {
	return s != nil && s.degraded
}

// Stats returns counters for logging and the catalog command.
func (s *Snapshot) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Indicators: len(s.indicators),
		Playbooks:  len(s.playbooks),
		Degraded:   s.degraded,
		LoadedAt:   s.loadedAt,
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
