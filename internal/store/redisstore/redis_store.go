package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sentinelir/internal/incident"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

// RedisConfig configures Redis access for incident persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore persists events, incidents and blocked IPs in Redis.
//
// Incident documents live under <prefix>:incident:<id> without their
// timeline; the timeline is a Redis list so appends are atomic RPUSHes.
// Creation runs as one Lua script so two writers can never claim the same
// incident ID and an incident is never visible without its timeline.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed store and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis incident store: %w", err)
	}

	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sentinelir"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// PutEvent stores an ingested event.
func (s *RedisStore) PutEvent(ctx context.Context, event *models.SecurityEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.client.Set(ctx, s.eventKey(event.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store event %s: %w", event.ID, err)
	}
	return nil
}

// Get implements store.EventStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.SecurityEvent, error) {
	raw, err := s.client.Get(ctx, s.eventKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", id, err)
	}
	var ev models.SecurityEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", id, err)
	}
	link, err := s.client.Get(ctx, s.eventLinkKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read event link %s: %w", id, err)
	}
	if link != "" {
		ev.IncidentID = link
	}
	return &ev, nil
}

// LinkIncident implements store.EventStore.
func (s *RedisStore) LinkIncident(ctx context.Context, eventID, incidentID string) error {
	n, err := s.client.Exists(ctx, s.eventKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("check event %s: %w", eventID, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", eventID, store.ErrNotFound)
	}
	if err := s.client.Set(ctx, s.eventLinkKey(eventID), incidentID, 0).Err(); err != nil {
		return fmt.Errorf("link event %s: %w", eventID, err)
	}
	return nil
}

// Incidents returns the store.IncidentStore view.
func (s *RedisStore) Incidents() *Incidents {
	return &Incidents{s: s}
}

// BlockedIPs returns the store.BlockedIPStore view.
func (s *RedisStore) BlockedIPs() *BlockedIPs {
	return &BlockedIPs{s: s}
}

// Incidents is the incident view of a RedisStore.
type Incidents struct {
	s *RedisStore
}

// CountByYearPrefix counts incidents registered under a year prefix.
func (i *Incidents) CountByYearPrefix(ctx context.Context, prefix string) (int, error) {
	n, err := i.s.client.SCard(ctx, i.s.yearSetKey(prefix)).Result()
	if err != nil {
		return 0, fmt.Errorf("count incidents %s: %w", prefix, err)
	}
	return int(n), nil
}

// createIncident writes the timeline and year index before the document, so
// a script aborted by a failing command never leaves a readable incident.
// KEYS: document, year set, timeline. ARGV: document, incident ID, entries.
var createIncident = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('DEL', KEYS[3])
for i = 3, #ARGV do
	redis.call('RPUSH', KEYS[3], ARGV[i])
end
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// Create claims the incident ID and writes the document, year index and
// initial timeline in one script.
func (i *Incidents) Create(ctx context.Context, inc *models.SecurityIncident) error {
	prefix, err := yearPrefixOf(inc.IncidentID)
	if err != nil {
		return err
	}
	inc.Version = 1
	doc, err := encodeIncident(inc)
	if err != nil {
		return err
	}
	args := make([]interface{}, 0, len(inc.Timeline)+2)
	args = append(args, doc, inc.IncidentID)
	for _, entry := range inc.Timeline {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode timeline entry: %w", err)
		}
		args = append(args, data)
	}

	keys := []string{i.s.incidentKey(inc.IncidentID), i.s.yearSetKey(prefix), i.s.timelineKey(inc.IncidentID)}
	created, err := createIncident.Run(ctx, i.s.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("create incident %s: %w", inc.IncidentID, err)
	}
	if created == 0 {
		return fmt.Errorf("incident %s: %w", inc.IncidentID, store.ErrDuplicateID)
	}
	return nil
}

// Get loads an incident and its full timeline in order.
func (i *Incidents) Get(ctx context.Context, id string) (*models.SecurityIncident, error) {
	raw, err := i.s.client.Get(ctx, i.s.incidentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read incident %s: %w", id, err)
	}
	var inc models.SecurityIncident
	if err := json.Unmarshal(raw, &inc); err != nil {
		return nil, fmt.Errorf("decode incident %s: %w", id, err)
	}

	items, err := i.s.client.LRange(ctx, i.s.timelineKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read timeline %s: %w", id, err)
	}
	inc.Timeline = make([]models.TimelineEntry, 0, len(items))
	for _, item := range items {
		var entry models.TimelineEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode timeline %s: %w", id, err)
		}
		inc.Timeline = append(inc.Timeline, entry)
	}
	return &inc, nil
}

// UpdateWithEntry writes all fields except the timeline and pushes entry in
// one MULTI under a WATCH version check.
func (i *Incidents) UpdateWithEntry(ctx context.Context, inc *models.SecurityIncident, entry models.TimelineEntry) error {
	key := i.s.incidentKey(inc.IncidentID)
	next := inc.Version + 1
	item, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode timeline entry: %w", err)
	}

	err = i.s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("incident %s: %w", inc.IncidentID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var cur struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode incident %s: %w", inc.IncidentID, err)
		}
		if cur.Version != inc.Version {
			return fmt.Errorf("incident %s at version %d, got %d: %w", inc.IncidentID, cur.Version, inc.Version, store.ErrConflict)
		}

		updated := inc.Clone()
		updated.Version = next
		doc, err := encodeIncident(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.RPush(ctx, i.s.timelineKey(inc.IncidentID), item)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("incident %s changed concurrently: %w", inc.IncidentID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update incident %s: %w", inc.IncidentID, err)
	}
	inc.Version = next
	return nil
}

// AppendTimeline pushes one entry to the incident's timeline list.
func (i *Incidents) AppendTimeline(ctx context.Context, id string, entry models.TimelineEntry) error {
	n, err := i.s.client.Exists(ctx, i.s.incidentKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check incident %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode timeline entry: %w", err)
	}
	if err := i.s.client.RPush(ctx, i.s.timelineKey(id), data).Err(); err != nil {
		return fmt.Errorf("append timeline %s: %w", id, err)
	}
	return nil
}

// BlockedIPs is the blocked-IP view of a RedisStore.
type BlockedIPs struct {
	s *RedisStore
}

// Create records a blocked IP and indexes it by block time.
func (b *BlockedIPs) Create(ctx context.Context, blocked *models.BlockedIP) error {
	if blocked == nil || strings.TrimSpace(blocked.IPAddress) == "" {
		return fmt.Errorf("blocked ip address is required")
	}
	data, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("encode blocked ip: %w", err)
	}
	pipe := b.s.client.TxPipeline()
	pipe.Set(ctx, b.s.blockedKey(blocked.IPAddress), data, 0)
	pipe.ZAdd(ctx, b.s.blockedIndexKey(), redis.Z{Score: float64(blocked.CreatedAt.Unix()), Member: blocked.IPAddress})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store blocked ip %s: %w", blocked.IPAddress, err)
	}
	return nil
}

func encodeIncident(inc *models.SecurityIncident) ([]byte, error) {
	doc := inc.Clone()
	doc.Timeline = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode incident %s: %w", inc.IncidentID, err)
	}
	return data, nil
}

func yearPrefixOf(incidentID string) (string, error) {
	year, _, err := incident.ParseIncidentID(incidentID)
	if err != nil {
		return "", err
	}
	return incident.YearPrefix(year), nil
}

func (s *RedisStore) eventKey(id string) string {
	return s.prefix + ":event:" + id
}

func (s *RedisStore) eventLinkKey(id string) string {
	return s.prefix + ":event:" + id + ":incident"
}

func (s *RedisStore) incidentKey(id string) string {
	return s.prefix + ":incident:" + id
}

func (s *RedisStore) timelineKey(id string) string {
	return s.prefix + ":incident:" + id + ":timeline"
}

func (s *RedisStore) yearSetKey(prefix string) string {
	return s.prefix + ":incidents:" + prefix
}

func (s *RedisStore) blockedKey(ip string) string {
	return s.prefix + ":blocked_ip:" + ip
}

func (s *RedisStore) blockedIndexKey() string {
	return s.prefix + ":blocked_ips"
}
