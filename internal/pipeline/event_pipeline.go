package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	inputredis "sentinelir/internal/input/redis"
	"sentinelir/internal/logger"
	"sentinelir/internal/service"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

// Source yields raw event payloads. A nil payload with a nil error means no
// message was available.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// Rejecter is implemented by sources that keep undecodable payloads.
type Rejecter interface {
	Reject(ctx context.Context, payload []byte, reason error) error
}

// Responder is the part of the service the pipeline drives.
type Responder interface {
	AnalyzeEvent(ctx context.Context, eventID string) (*models.SecurityEventAnalysis, error)
	CreateIncidentFromAnalysis(ctx context.Context, eventID string, analysis *models.SecurityEventAnalysis, reportedBy string) (*models.SecurityIncident, error)
	Respond(ctx context.Context, inc *models.SecurityIncident, knownThreat bool) (*service.ResponseSummary, error)
}

// Stats counts pipeline outcomes.
type Stats struct {
	Received  atomic.Int64
	Rejected  atomic.Int64
	Analyzed  atomic.Int64
	Incidents atomic.Int64
	Failures  atomic.Int64
}

// EventPipeline consumes queued events and runs each through analysis,
// incident creation and automated response.
type EventPipeline struct {
	source  Source
	events  store.EventWriter
	svc     Responder
	workers int
	stats   Stats
	now     func() time.Time
}

// NewEventPipeline creates a pipeline.
func NewEventPipeline(source Source, events store.EventWriter, svc Responder, workers int) *EventPipeline {
	return &EventPipeline{
		source:  source,
		events:  events,
		svc:     svc,
		workers: workers,
		now:     time.Now,
	}
}

// Stats returns the live counters.
func (p *EventPipeline) Stats() *Stats {
	return &p.stats
}

// Run starts the pipeline loop and blocks until ctx is done and in-flight
// events are processed.
func (p *EventPipeline) Run(ctx context.Context) error {
	logger.Infof("Event pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}

	msgCh := make(chan []byte, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, msgCh)
		}()
	}

	wg.Wait()
	logger.Infof("Event pipeline stopped: received=%d analyzed=%d incidents=%d failures=%d",
		p.stats.Received.Load(), p.stats.Analyzed.Load(), p.stats.Incidents.Load(), p.stats.Failures.Load())
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *EventPipeline) Close() error {
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *EventPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop event: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *EventPipeline) workerLoop(ctx context.Context, in <-chan []byte) {
	for payload := range in {
		p.stats.Received.Add(1)
		// Work on a detached context so an in-flight event finishes on shutdown.
		if err := p.Process(context.WithoutCancel(ctx), payload); err != nil {
			p.stats.Failures.Add(1)
			logger.Errorf("Failed to process event: %v", err)
		}
	}
}

// Process handles one payload end to end.
func (p *EventPipeline) Process(ctx context.Context, payload []byte) error {
	ev, err := inputredis.DecodeEvent(payload, p.now())
	if err != nil {
		p.stats.Rejected.Add(1)
		logger.Warnf("Rejected event: %v", err)
		if r, ok := p.source.(Rejecter); ok {
			if rerr := r.Reject(ctx, payload, err); rerr != nil {
				logger.Errorf("Failed to dead-letter event: %v", rerr)
			}
		}
		return nil
	}
	if err := p.events.PutEvent(ctx, ev); err != nil {
		return err
	}

	analysis, err := p.svc.AnalyzeEvent(ctx, ev.ID)
	if err != nil {
		return err
	}
	p.stats.Analyzed.Add(1)
	if !analysis.ShouldCreateIncident {
		return nil
	}

	inc, err := p.svc.CreateIncidentFromAnalysis(ctx, ev.ID, analysis, "")
	if err != nil {
		var perr *service.PersistenceError
		if !errors.As(err, &perr) || !perr.Stored {
			return err
		}
		logger.Warnf("Incident %s stored with error: %v", inc.IncidentID, err)
	}
	p.stats.Incidents.Add(1)

	summary, err := p.svc.Respond(ctx, inc, analysis.KnownThreat)
	if err != nil {
		return err
	}
	logger.Infof("Incident %s response: %s", inc.IncidentID, summary)
	return nil
}
