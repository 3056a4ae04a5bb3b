package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-health/harrier/internal/bus"
	"github.com/opensource-health/harrier/internal/cache"
	"github.com/opensource-health/harrier/internal/domain"
	"github.com/opensource-health/harrier/internal/reference"
	"github.com/opensource-health/harrier/internal/repository"
	"github.com/opensource-health/harrier/internal/triage"
)

type harness struct {
	bus    *bus.ChannelBus
	repo   domain.Repository
	cache  *cache.LRUCache
	worker *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "harrier_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	b := bus.NewChannelBus(100)
	t.Cleanup(func() { b.Close() })

	c := cache.NewLRUCache(100)

	ref, err := reference.NewStatic(domain.ReferenceConfig{})
	if err != nil {
		t.Fatalf("failed to create reference data: %v", err)
	}

	pipeline := triage.NewPipeline(domain.DefaultTriageConfig(), ref, nil, nil)

	return &harness{
		bus:    b,
		repo:   repo,
		cache:  c,
		worker: NewWorker(b, repo, c, pipeline),
	}
}

func rawClaim(claimID, memberID string) domain.RawClaim {
	return domain.RawClaim{
		"claim_id":        claimID,
		"member_id":       memberID,
		"provider_id":     "PRV001",
		"procedure_code":  "99213",
		"diagnosis_code":  "M54.5",
		"cost":            float64(100),
		"date_of_service": "2025-06-01",
		"claim_type":      "outpatient",
	}
}

func publishBatch(t *testing.T, h *harness, tenantID string, msg BatchMessage) {
	t.Helper()

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal batch message: %v", err)
	}
	if err := h.bus.Publish(context.Background(), tenantID, domain.TopicBatchReceived, payload); err != nil {
		t.Fatalf("failed to publish batch: %v", err)
	}
}

func waitForBatch(t *testing.T, h *harness, tenantID, batchID string) *domain.BatchResult {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		result, err := h.repo.GetBatchResult(context.Background(), tenantID, batchID)
		if err == nil {
			return result
		}

		select {
		case <-deadline:
			t.Fatalf("batch %s was never processed: %v", batchID, err)
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerProcessesBatch(t *testing.T) {
	h := newHarness(t)
	tenantID := "tenant-001"

	if err := h.worker.Start(Config{TenantIDs: []string{tenantID}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer h.worker.Stop()

	// Listen for the completion announcement
	completed := make(chan []byte, 1)
	sub, err := h.bus.Subscribe(context.Background(), tenantID, domain.TopicBatchCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed <- msg.Payload
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	publishBatch(t, h, tenantID, BatchMessage{
		BatchID:  "batch-001",
		TenantID: tenantID,
		Claims: []domain.RawClaim{
			rawClaim("CLM001", "MBR001"),
			rawClaim("CLM002", "MBR003"),
		},
	})

	result := waitForBatch(t, h, tenantID, "batch-001")
	if len(result.Claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(result.Claims))
	}
	if result.Approved != 1 || result.Audited != 1 {
		t.Errorf("expected 1 approved / 1 audited, got %d / %d", result.Approved, result.Audited)
	}

	select {
	case payload := <-completed:
		var event struct {
			BatchID  string `json:"batchId"`
			Approved int    `json:"approved"`
			Audited  int    `json:"audited"`
		}
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to decode completion event: %v", err)
		}
		if event.BatchID != "batch-001" || event.Approved != 1 || event.Audited != 1 {
			t.Errorf("unexpected completion event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("never received completion event")
	}

	// The rendered report lands in the cache
	rendered, err := h.cache.GetReport(context.Background(), tenantID, "batch-001")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if rendered == "" {
		t.Error("expected the rendered report to be cached")
	}
}

func TestWorkerPublishesFlaggedClaims(t *testing.T) {
	h := newHarness(t)
	tenantID := "tenant-001"

	if err := h.worker.Start(Config{TenantIDs: []string{tenantID}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer h.worker.Stop()

	flagged := make(chan []byte, 4)
	sub, err := h.bus.Subscribe(context.Background(), tenantID, domain.TopicClaimFlagged, func(ctx context.Context, msg *domain.Message) error {
		flagged <- msg.Payload
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	// MBR003 is ineligible so the claim routes to audit
	publishBatch(t, h, tenantID, BatchMessage{
		BatchID:  "batch-002",
		TenantID: tenantID,
		Claims:   []domain.RawClaim{rawClaim("CLM001", "MBR003")},
	})

	select {
	case payload := <-flagged:
		var c domain.Claim
		if err := json.Unmarshal(payload, &c); err != nil {
			t.Fatalf("failed to decode flagged claim: %v", err)
		}
		if c.ClaimID != "CLM001" || c.FinalRouting != domain.RoutingAudit {
			t.Errorf("unexpected flagged claim: %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("never received flagged claim event")
	}
}

func TestWorkerGlobalSubscription(t *testing.T) {
	h := newHarness(t)

	if err := h.worker.Start(Config{}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer h.worker.Stop()

	stats := h.worker.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Fatalf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if stats.Topics[0] != domain.TopicBatchReceived {
		t.Errorf("expected subscription to %s, got %s", domain.TopicBatchReceived, stats.Topics[0])
	}

	// The message's own tenant wins over the subscription tenant
	publishBatch(t, h, "_global", BatchMessage{
		BatchID:  "batch-003",
		TenantID: "tenant-embedded",
		Claims:   []domain.RawClaim{rawClaim("CLM001", "MBR001")},
	})

	result := waitForBatch(t, h, "tenant-embedded", "batch-003")
	if result.TenantID != "tenant-embedded" {
		t.Errorf("expected tenant-embedded, got %s", result.TenantID)
	}
}

func TestWorkerStop(t *testing.T) {
	h := newHarness(t)
	tenantID := "tenant-001"

	if err := h.worker.Start(Config{TenantIDs: []string{tenantID}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if err := h.worker.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if stats := h.worker.GetStats(); stats.SubscriptionCount != 0 {
		t.Errorf("expected no subscriptions after stop, got %d", stats.SubscriptionCount)
	}

	// Batches published after stop are ignored
	publishBatch(t, h, tenantID, BatchMessage{
		BatchID:  "batch-004",
		TenantID: tenantID,
		Claims:   []domain.RawClaim{rawClaim("CLM001", "MBR001")},
	})

	time.Sleep(50 * time.Millisecond)
	if _, err := h.repo.GetBatchResult(context.Background(), tenantID, "batch-004"); err == nil {
		t.Error("expected batch to be ignored after stop")
	}
}
