// Package worker provides async batch processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/harrier/internal/domain"
	"github.com/opensource-health/harrier/internal/triage"
)

// Worker triages claim batches asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	pipeline *triage.Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// ReportTTL bounds the cached rendered report lifetime
	ReportTTL time.Duration
}

// NewWorker creates a new async worker. cache may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, pipeline *triage.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicBatchReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchReceived,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// BatchMessage is the message payload for batch processing.
type BatchMessage struct {
	BatchID  string            `json:"batchId"`
	TenantID string            `json:"tenantId"`
	TraceID  string            `json:"traceId"`
	Claims   []domain.RawClaim `json:"claims"`
}

// processBatch triages a batch through the pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batchMsg BatchMessage
	if err := json.Unmarshal(msg.Payload, &batchMsg); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batchMsg.TenantID != "" {
		tenantID = batchMsg.TenantID
	}

	batchID := batchMsg.BatchID
	if batchID == "" {
		batchID = msg.ID
	}

	slog.Debug("processing batch",
		"batch_id", batchID,
		"tenant_id", tenantID,
		"claims", len(batchMsg.Claims),
	)

	result := w.pipeline.Run(ctx, batchMsg.Claims)
	result.BatchID = batchID
	result.TenantID = tenantID

	if w.repo != nil {
		if err := w.repo.SaveBatchResult(ctx, tenantID, result); err != nil {
			slog.Error("failed to save batch result",
				"batch_id", batchID,
				"error", err,
			)
		}
	}

	if w.cache != nil {
		if err := w.cache.SetReport(ctx, tenantID, batchID, result.Rendered, time.Hour); err != nil {
			slog.Warn("failed to cache report", "batch_id", batchID, "error", err)
		}
	}

	// Announce completion
	if payload, err := json.Marshal(map[string]any{
		"batchId":  batchID,
		"approved": result.Approved,
		"audited":  result.Audited,
	}); err == nil {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicBatchCompleted, payload); err != nil {
			slog.Error("failed to publish batch completion",
				"batch_id", batchID,
				"error", err,
			)
		}
	}

	// Announce each flagged claim
	for _, c := range result.Claims {
		if !c.Flagged() {
			continue
		}
		payload, err := json.Marshal(c)
		if err != nil {
			continue
		}
		if err := w.bus.Publish(ctx, tenantID, domain.TopicClaimFlagged, payload); err != nil {
			slog.Error("failed to publish flagged claim",
				"claim_id", c.ClaimID,
				"error", err,
			)
		}
	}

	// Publish the rendered report for downstream consumers
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAuditReport, []byte(result.Rendered)); err != nil {
		slog.Error("failed to publish audit report",
			"batch_id", batchID,
			"error", err,
		)
	}

	slog.Info("batch processed",
		"batch_id", batchID,
		"tenant_id", tenantID,
		"approved", result.Approved,
		"audited", result.Audited,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
