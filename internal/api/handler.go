package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-health/harrier/internal/domain"
	"github.com/opensource-health/harrier/internal/repository"
	"github.com/opensource-health/harrier/internal/rules"
	"github.com/opensource-health/harrier/internal/triage"
)

// reportCacheTTL bounds how long a rendered audit report stays cached.
const reportCacheTTL = time.Hour

// maxBatchBytes caps the accepted triage request body.
const maxBatchBytes = 8 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline *triage.Pipeline
	engine   *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, pipeline *triage.Pipeline, engine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		pipeline: pipeline,
		engine:   engine,
		version:  version,
	}
}

// TriageResponse is the response for POST /triage.
type TriageResponse struct {
	BatchID  string         `json:"batchId"`
	Received int            `json:"received"`
	Approved int            `json:"approved"`
	Audited  int            `json:"audited"`
	Claims   []domain.Claim `json:"claims"`
	Report   string         `json:"report"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// TriageBatch handles POST /triage requests. The body is a JSON array
// of claim records; the whole batch is triaged synchronously.
func (h *Handler) TriageBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "cannot read request body",
		})
		return
	}

	result, err := h.pipeline.RunRaw(ctx, data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must be a JSON array of claim objects",
		})
		return
	}

	result.BatchID = uuid.New().String()
	result.TenantID = tenantID

	// Persist the finished batch
	if h.repo != nil {
		if err := h.repo.SaveBatchResult(ctx, tenantID, result); err != nil {
			slog.Error("failed to save batch result",
				"batch_id", result.BatchID,
				"error", err,
			)
		}
	}

	// Cache the rendered report for fast re-delivery
	if h.cache != nil {
		if err := h.cache.SetReport(ctx, tenantID, result.BatchID, result.Rendered, reportCacheTTL); err != nil {
			slog.Warn("failed to cache report", "batch_id", result.BatchID, "error", err)
		}
	}

	h.publishBatchEvents(r, tenantID, result)

	resp := TriageResponse{
		BatchID:  result.BatchID,
		Received: len(result.Claims),
		Approved: result.Approved,
		Audited:  result.Audited,
		Claims:   result.Claims,
		Report:   result.Rendered,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// TriageAsync handles POST /triage/async requests. The batch is
// validated for shape, handed to the event bus and triaged by the
// worker. Responds 202 with the assigned batch ID.
func (h *Handler) TriageAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "cannot read request body",
		})
		return
	}

	records, err := triage.ParseBatch(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must be a JSON array of claim objects",
		})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	batchID := uuid.New().String()
	payload, err := json.Marshal(map[string]any{
		"batchId":  batchID,
		"tenantId": tenantID,
		"traceId":  traceID,
		"claims":   records,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode batch",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchReceived, payload); err != nil {
		slog.Error("failed to publish batch", "batch_id", batchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue batch",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"batchId":  batchID,
		"received": len(records),
		"status":   "queued",
	})
}

// publishBatchEvents announces a completed batch and its flagged
// claims. Failures are logged, never surfaced to the caller.
func (h *Handler) publishBatchEvents(r *http.Request, tenantID string, result *domain.BatchResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	if payload, err := json.Marshal(map[string]any{
		"batchId":  result.BatchID,
		"approved": result.Approved,
		"audited":  result.Audited,
	}); err == nil {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchCompleted, payload); err != nil {
			slog.Warn("failed to publish batch completion", "batch_id", result.BatchID, "error", err)
		}
	}

	for _, c := range result.Claims {
		if !c.Flagged() {
			continue
		}
		payload, err := json.Marshal(c)
		if err != nil {
			continue
		}
		if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimFlagged, payload); err != nil {
			slog.Warn("failed to publish flagged claim", "claim_id", c.ClaimID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetBatch retrieves a stored batch result by ID.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	batchID := chi.URLParam(r, "id")

	if batchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	result, err := h.repo.GetBatchResult(ctx, tenantID, batchID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get batch", "id", batchID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "batch not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetBatchReport serves the rendered audit report for a batch as
// markdown. The cache is consulted first, then the repository.
func (h *Handler) GetBatchReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	batchID := chi.URLParam(r, "id")

	if batchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch id is required",
		})
		return
	}

	if h.cache != nil {
		if rendered, err := h.cache.GetReport(ctx, tenantID, batchID); err == nil && rendered != "" {
			writeMarkdown(w, rendered)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	result, err := h.repo.GetBatchResult(ctx, tenantID, batchID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get batch report", "id", batchID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "batch not found",
		})
		return
	}

	// Refill the cache on the way out
	if h.cache != nil {
		if err := h.cache.SetReport(ctx, tenantID, batchID, result.Rendered, reportCacheTTL); err != nil {
			slog.Warn("failed to cache report", "batch_id", batchID, "error", err)
		}
	}

	writeMarkdown(w, result.Rendered)
}

// GetClaim retrieves the most recently stored copy of a claim by its
// submitted claim ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claim, err := h.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get claim", "id", claimID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// GetProviderClaims lists all stored claims for a provider.
func (h *Handler) GetProviderClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	providerID := chi.URLParam(r, "id")

	if providerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "provider id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claims, err := h.repo.GetClaimsByProvider(ctx, tenantID, providerID)
	if err != nil {
		slog.Error("failed to list provider claims", "provider_id", providerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"providerId": providerID,
		"claims":     claims,
		"count":      len(claims),
	})
}

// ListRules returns all flag rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a flag rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a flag rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Tag         string `json:"tag"`
	Severity    int    `json:"severity"`
	Fragment    string `json:"fragment,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new flag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.FlagRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Tag:         req.Tag,
		Severity:    req.Severity,
		Fragment:    req.Fragment,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save flag rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("flag rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all flag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMarkdown(w http.ResponseWriter, rendered string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rendered))
}
