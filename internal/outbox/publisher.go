package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"saga_fulfillment/internal/sagamodel"
)

// ServiceURLResolver maps a target service name to its base URL
// (spec.md §4.3's "{service}_SERVICE_URL" table).
type ServiceURLResolver func(service sagamodel.TargetService) string

// Config tunes the publisher poll cycle, mirroring spec.md §4.3's
// enumerated options exactly.
type Config struct {
	BatchSize      int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// MaxRetries is not read by the poll cycle: terminal failure is
	// decided by each event's own MaxRetries, stored with the row when it
	// is appended (3 for every event the handlers append).
	MaxRetries  int
	Concurrency int
}

// Publisher is the background task that polls a service's outbox and
// delivers events over HTTP with an idempotency header. The poll-loop
// shape (ticker, fetch-then-dispatch-then-sleep, ctx.Done to stop) is
// the teacher's infrastructure/outbox/publisher.go structure; the
// dispatch itself is rewritten from an amqp channel.Publish to an HTTP
// POST per spec.md §4.3, and fan-out is now bounded by a semaphore
// instead of being unbounded.
type Publisher struct {
	store      *Store
	resolveURL ServiceURLResolver
	httpClient *http.Client
	cfg        Config
	log        *slog.Logger
}

func NewPublisher(store *Store, resolveURL ServiceURLResolver, cfg Config, log *slog.Logger) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Publisher{
		store:      store,
		resolveURL: resolveURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		log:        log,
	}
}

// Start runs the poll loop until ctx is cancelled. A shutdown signal
// interrupts the poll sleep and waits for in-flight dispatches to
// finish (or time out) before returning (spec.md §4.3 "Cancellation").
func (p *Publisher) Start(ctx context.Context) error {
	p.log.Info("outbox publisher started", "batch_size", p.cfg.BatchSize, "poll_interval", p.cfg.PollInterval)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopped")
			return nil
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.log.Error("outbox poll cycle failed", "error", err)
			}
		}
	}
}

func (p *Publisher) pollOnce(ctx context.Context) error {
	events, err := p.store.FindUnpublished(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch unpublished events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))

	for _, event := range events {
		event := event
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-cycle; let in-flight dispatches finish
			// and stop claiming new ones.
			break
		}
		go func() {
			defer sem.Release(1)
			p.dispatch(ctx, event)
		}()
	}

	// Wait for this cycle's dispatches to finish (cycles never overlap).
	// The wait is not tied to ctx so that a cancelled context still
	// waits for the in-flight dispatches.
	_ = sem.Acquire(context.Background(), int64(p.cfg.Concurrency))
	return nil
}

func (p *Publisher) dispatch(ctx context.Context, event sagamodel.OutboxEvent) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	baseURL := p.resolveURL(event.TargetService)
	url := baseURL + "/api/v1" + event.TargetEndpoint
	idempotencyKey := event.IdempotencyKey()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(event.Payload))
	if err != nil {
		p.fail(ctx, event, fmt.Sprintf("build request: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("idempotency-key", idempotencyKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.fail(ctx, event, fmt.Sprintf("transport error: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.fail(ctx, event, fmt.Sprintf("non-2xx response: %d", resp.StatusCode))
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.fail(ctx, event, fmt.Sprintf("read response body: %v", err))
		return
	}
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		p.fail(ctx, event, fmt.Sprintf("response body is not valid JSON: %v", err))
		return
	}

	now := time.Now().UTC()
	event.IsPublished = true
	event.PublishedAt = &now
	if err := p.store.Save(ctx, event); err != nil {
		p.log.Error("failed to record publish success", "event_id", event.ID, "error", err)
		return
	}
	p.log.Info("published outbox event", "event_id", event.ID, "event_type", event.EventType,
		"target_service", event.TargetService, "idempotency_key", idempotencyKey)
}

func (p *Publisher) fail(ctx context.Context, event sagamodel.OutboxEvent, reason string) {
	event.PublishAttempts++
	event.LastError = &reason
	if err := p.store.Save(ctx, event); err != nil {
		p.log.Error("failed to record publish failure", "event_id", event.ID, "error", err)
		return
	}
	if event.PublishAttempts >= event.MaxRetries {
		p.log.Warn("outbox event exhausted retries, terminal-failed", "event_id", event.ID,
			"event_type", event.EventType, "attempts", event.PublishAttempts, "reason", reason)
		return
	}
	p.log.Warn("outbox event publish failed, will retry", "event_id", event.ID,
		"attempt", event.PublishAttempts, "reason", reason)
}
