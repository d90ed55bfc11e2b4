package httpx

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"encoding/json"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/github"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/service/validate"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/store"
)

// Pipeline is the slice of the validation service the router needs.
type Pipeline interface {
	Health(ctx context.Context) error
	Handle(ctx context.Context, req validate.Request) (validate.Outcome, error)
}

// Router exposes HTTP endpoints for the validation service.
type Router struct {
	mux                *http.ServeMux
	logger             *slog.Logger
	pipeline           Pipeline
	runs               store.RunStore
	webhookSecret      string
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	runResults         *prometheus.CounterVec
}

const (
	healthCheckTimeout = 2 * time.Second
	maxWebhookBody     = 1 << 20
	defaultRunsLimit   = 20
	maxRunsLimit       = 100
)

// New creates and registers handlers. An empty webhookSecret disables
// signature verification, which is only acceptable in development.
func New(logger *slog.Logger, pipeline Pipeline, runs store.RunStore, webhookSecret string) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		logger:        logger,
		pipeline:      pipeline,
		runs:          runs,
		webhookSecret: webhookSecret,
	}
	r.initMetrics()
	r.routes()
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealth))
	r.mux.HandleFunc("/webhooks/github", r.instrument("/webhooks/github", r.handleWebhook))
	r.mux.HandleFunc("/runs", r.instrument("/runs", r.handleRuns))
	r.mux.HandleFunc("/runs/", r.instrument("/runs/:id", r.handleRunByID))
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	component := map[string]any{"status": "up"}
	status := "ok"
	if err := r.pipeline.Health(ctx); err != nil {
		status = "degraded"
		component = map[string]any{
			"status": "down",
			"error":  err.Error(),
		}
	}
	payload := map[string]any{
		"status": status,
		"components": map[string]any{
			"docker": component,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	r.writeJSON(w, code, payload)
}

func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		r.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if r.webhookSecret != "" {
		signature := req.Header.Get(github.SignatureHeader)
		if err := github.ValidateSignature(body, []byte(r.webhookSecret), signature); err != nil {
			r.logger.Warn("webhook signature rejected", "error", err)
			r.writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}
	event := req.Header.Get(github.EventHeader)
	payload, err := github.ParsePullRequestEvent(event, body)
	if err != nil {
		if errors.Is(err, github.ErrUnsupportedEvent) {
			r.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": event})
			return
		}
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !payload.Triggering() {
		r.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "action": payload.Action})
		return
	}

	ref := payload.PullRequest.Head.SHA
	if ref == "" {
		ref = payload.PullRequest.Head.Ref
	}
	result, err := r.pipeline.Handle(req.Context(), validate.Request{
		Trigger:       payload.Event,
		RepoURL:       payload.Repository.CloneURL,
		RepoName:      payload.Repository.FullName,
		Ref:           ref,
		PRNumber:      payload.Number,
		EphemeralPort: true,
	})
	if err != nil {
		r.recordRunResult("rejected")
		r.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.recordRunResult("queued")
	r.writeJSON(w, http.StatusAccepted, result)
}

func (r *Router) handleRuns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultRunsLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			r.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxRunsLimit)
	}
	runs, err := r.runs.ReadLatestRuns(req.Context(), limit)
	if err != nil {
		r.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (r *Router) handleRunByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(req.URL.Path, "/runs/")
	runID = strings.Trim(runID, "/")
	if runID == "" {
		r.writeError(w, http.StatusBadRequest, "run id required")
		return
	}
	run, err := r.runs.ReadRunByID(req.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		r.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.writeJSON(w, http.StatusOK, run)
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

func (r *Router) writeError(w http.ResponseWriter, status int, msg string) {
	r.writeJSON(w, status, map[string]string{"error": msg})
}
