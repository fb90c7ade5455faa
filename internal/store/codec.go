package store

import (
	"encoding/json"
	"fmt"

	"sentinelir/pkg/models"
)

// EncodeStrings renders an ordered string list for text columns.
func EncodeStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

// DecodeStrings parses a list written by EncodeStrings. Empty input is an
// empty list.
func DecodeStrings(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// EncodeTimeline renders a timeline preserving entry order.
func EncodeTimeline(entries []models.TimelineEntry) (string, error) {
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode timeline: %w", err)
	}
	return string(data), nil
}

// DecodeTimeline parses a timeline written by EncodeTimeline.
func DecodeTimeline(raw string) ([]models.TimelineEntry, error) {
	out := []models.TimelineEntry{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return out, nil
}
