package redis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sentinelir/pkg/models"
)

// DecodeEvent parses one queued security event. ID and type are required;
// severity is normalized and a missing timestamp becomes receivedAt.
func DecodeEvent(payload []byte, receivedAt time.Time) (*models.SecurityEvent, error) {
	var ev models.SecurityEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	ev.ID = strings.TrimSpace(ev.ID)
	ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
	if ev.ID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event %s: type is required", ev.ID)
	}
	ev.Severity = models.ParseSeverity(string(ev.Severity))
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = receivedAt
	}
	ev.IncidentID = ""
	return &ev, nil
}
