package main

import (
	"context"
	"fmt"
	"strings"

	"sentinelir/config"
	"sentinelir/internal/catalog"
	"sentinelir/internal/decision"
	"sentinelir/internal/lifecycle"
	"sentinelir/internal/logger"
	"sentinelir/internal/metrics"
	"sentinelir/internal/notify"
	"sentinelir/internal/output/decisionjson"
	"sentinelir/internal/rules"
	"sentinelir/internal/scorer"
	"sentinelir/internal/service"
	"sentinelir/internal/store"
	"sentinelir/internal/store/postgres"
	"sentinelir/internal/store/redisstore"
)

// stores groups the persistence collaborators of one backend.
type stores struct {
	events    store.EventStore
	writer    store.EventWriter
	incidents store.IncidentStore
	blocked   store.BlockedIPStore
	close     func() error
}

func openStores(ctx context.Context, sc config.StoreConfig) (*stores, error) {
	switch sc.Mode {
	case "memory":
		mem := store.NewMemoryStore()
		return &stores{events: mem, writer: mem, incidents: mem.Incidents(), blocked: mem.BlockedIPs(), close: func() error { return nil }}, nil
	case "redis":
		rs, err := redisstore.NewRedisStore(redisstore.RedisConfig{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return &stores{events: rs, writer: rs, incidents: rs.Incidents(), blocked: rs.BlockedIPs(), close: rs.Close}, nil
	case "postgres":
		if strings.TrimSpace(sc.Postgres.DSN) == "" {
			return nil, fmt.Errorf("store.postgres.dsn is empty")
		}
		pg, err := postgres.Open(ctx, sc.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{events: pg, writer: pg, incidents: pg.Incidents(), blocked: pg.BlockedIPs(), close: pg.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store mode %q", sc.Mode)
	}
}

func openCatalog(ctx context.Context, cc config.CatalogConfig) *catalog.Holder {
	if strings.TrimSpace(cc.Path) == "" {
		logger.Warnf("catalog.path is empty; using built-in defaults")
		return catalog.NewHolder(ctx, nil, nil)
	}
	src, err := catalog.NewFileSource(cc.Path)
	if err != nil {
		logger.Warnf("Catalog file unusable, using built-in defaults: %v", err)
		return catalog.NewHolder(ctx, nil, nil)
	}
	return catalog.NewHolder(ctx, src, src.Playbooks())
}

func newScorer(sc config.ScorerConfig) (*scorer.Scorer, error) {
	loc, err := sc.Location()
	if err != nil {
		return nil, err
	}
	return scorer.New(scorer.Config{KnownRegions: sc.KnownRegions, Location: loc}), nil
}

func newRules(rc config.RulesConfig) (rules.Engine, error) {
	if !rc.Enabled {
		return &rules.NoopEngine{}, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; Sigma tagging disabled")
		return &rules.NoopEngine{}, nil
	}
	engine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load Sigma rules: %w", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded, stats.SkippedComplex, stats.SkippedDatasource, stats.SkippedInvalid, stats.TotalFiles)
	if dropped := engine.DropBelow(rc.MinLevel); dropped > 0 {
		logger.Infof("Sigma rules below level %q dropped: %d", rc.MinLevel, dropped)
	}
	if engine.Len() == 0 {
		logger.Warnf("No compatible Sigma rules loaded; matched rules will be empty")
	}
	return engine, nil
}

func newNotifier(nc config.NotifyConfig) (notify.Notifier, error) {
	switch nc.Mode {
	case "none", "":
		return notify.LogNotifier{}, nil
	case "nats":
		p, err := notify.NewNATSPublisher(notify.NATSConfig{
			URL:           nc.NATS.URL,
			Subject:       nc.NATS.Subject,
			MaxReconnects: nc.NATS.MaxReconnects,
			ReconnectWait: nc.NATS.ReconnectWait,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Notify mode: nats (%s)", nc.NATS.Subject)
		return p, nil
	case "http":
		w, err := notify.NewWebhook(notify.WebhookConfig{
			URL:          nc.HTTP.URL,
			Timeout:      nc.HTTP.Timeout,
			Headers:      nc.HTTP.Headers,
			Secret:       nc.HTTP.Secret,
			MaxRetries:   nc.HTTP.MaxRetries,
			RetryBackoff: nc.HTTP.RetryBackoff,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Notify mode: http (%s)", nc.HTTP.URL)
		return w, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", nc.Mode)
	}
}

// app is a fully wired service with its resources.
type app struct {
	svc      *service.Service
	stores   *stores
	catalog  *catalog.Holder
	notifier notify.Notifier
	audit    *decisionjson.Writer
	metrics  *metrics.Metrics
}

type buildOptions struct {
	// memory forces the in-memory store regardless of configuration.
	memory bool
	// audit enables the decision JSONL sink.
	audit bool
	// metrics registers Prometheus collectors.
	metrics bool
}

func buildApp(ctx context.Context, cfg *config.Config, opts buildOptions) (*app, error) {
	s := cfg.Sentinel
	a := &app{}

	storeCfg := s.Store
	if opts.memory {
		storeCfg.Mode = "memory"
	}
	st, err := openStores(ctx, storeCfg)
	if err != nil {
		return nil, err
	}
	a.stores = st

	if opts.metrics {
		a.metrics = metrics.New(nil)
	}

	a.catalog = openCatalog(ctx, s.Catalog)

	sc, err := newScorer(s.Scorer)
	if err != nil {
		a.close()
		return nil, err
	}
	engine, err := newRules(s.Rules)
	if err != nil {
		a.close()
		return nil, err
	}
	a.notifier, err = newNotifier(s.Notify)
	if err != nil {
		a.close()
		return nil, err
	}
	if opts.audit && s.Decisions.File.Path != "" {
		a.audit, err = decisionjson.NewWriter(s.Decisions.File.Path, s.Decisions.File.MaxBytes)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	actor := s.Service.Actor
	deps := service.Deps{
		Events:    st.events,
		Lifecycle: lifecycle.NewManager(st.incidents, st.events, lifecycle.Config{}),
		Catalog:   a.catalog,
		Scorer:    sc,
		Rules:     engine,
		Decider:   decision.NewEngine(),
		Executors: lifecycle.Executors{
			Block:   &lifecycle.BlockExecutor{Store: st.blocked, Actor: actor},
			Isolate: lifecycle.LogExecutor{Category: lifecycle.CategoryIsolate},
			Scan:    lifecycle.LogExecutor{Category: lifecycle.CategoryScan},
			Notify:  &lifecycle.NotifyExecutor{Notifier: a.notifier},
		},
		Metrics: a.metrics,
	}
	if a.audit != nil {
		deps.Audit = a.audit
	}
	a.svc, err = service.New(deps, service.Config{EventCacheSize: s.Service.EventCacheSize, Actor: actor})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Errorf("Failed to close decision writer: %v", err)
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			logger.Errorf("Failed to close notifier: %v", err)
		}
	}
	if a.stores != nil {
		if err := a.stores.close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}
}
