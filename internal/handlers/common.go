package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/grouping"
	"github.com/pl-listing/lister/internal/images"
	"github.com/pl-listing/lister/internal/results"
	"github.com/pl-listing/lister/internal/storage"
)

const (
	// DefaultQueueSize is how many submitted batches may wait for the worker.
	DefaultQueueSize = 16
	// DefaultMaxUploadBytes caps the whole multipart body of one submission.
	DefaultMaxUploadBytes = 1 << 30
)

type Handler struct {
	batchStore   *storage.BatchStore
	normalizer   batch.Normalizer
	classifier   batch.Classifier
	projector    *results.Projector
	grouper      *grouping.Grouper
	maxFileBytes int
	maxUpload    int64
	delay        time.Duration
	queue        chan string
	newID        func() string
}

type Option func(*Handler)

// WithDelay sets the pause between products for every batch.
func WithDelay(d time.Duration) Option {
	return func(h *Handler) { h.delay = d }
}

// WithMaxFiles caps how many image files one upload may contain.
func WithMaxFiles(n int) Option {
	return func(h *Handler) { h.grouper = grouping.NewGrouper(n) }
}

// WithMaxFileBytes sets the per-file read limit for uploads.
func WithMaxFileBytes(n int) Option {
	return func(h *Handler) { h.maxFileBytes = n }
}

// WithMaxUploadBytes caps the request body of one submission.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) { h.maxUpload = n }
}

// WithQueueSize sets how many batches may wait for the worker.
func WithQueueSize(n int) Option {
	return func(h *Handler) { h.queue = make(chan string, n) }
}

func New(n batch.Normalizer, c batch.Classifier, p *results.Projector, opts ...Option) *Handler {
	h := &Handler{
		batchStore:   storage.New(),
		normalizer:   n,
		classifier:   c,
		projector:    p,
		grouper:      grouping.NewGrouper(grouping.DefaultMaxFiles),
		maxFileBytes: images.DefaultMaxFileBytes,
		maxUpload:    DefaultMaxUploadBytes,
		delay:        batch.DefaultDelay,
		queue:        make(chan string, DefaultQueueSize),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/batches", h.HandleBatches)
	mux.HandleFunc("/api/batches/", h.HandleBatchDetail)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Work runs queued batches one at a time until ctx is done.
func (h *Handler) Work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-h.queue:
			h.runBatch(ctx, id)
		}
	}
}

func (h *Handler) runBatch(ctx context.Context, id string) {
	rec, ok := h.batchStore.Get(id)
	if !ok {
		slog.Error("Queued batch disappeared", "batch_id", id)
		return
	}

	groups := h.batchStore.TakeGroups(id)

	orch := batch.NewOrchestrator(h.normalizer, h.classifier,
		batch.WithDelay(h.delay),
		batch.WithHints(rec.Hints),
	)
	if _, err := orch.Run(ctx, groups, rec.Tracker); err != nil {
		if errors.Is(err, batch.ErrCanceled) {
			slog.Warn("Batch not started", "batch_id", id, "error", err)
			return
		}
		slog.Error("Batch failed to start", "batch_id", id, "error", err)
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, data, http.StatusOK)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

func (h *Handler) getBatchOrError(w http.ResponseWriter, id string) (*storage.BatchRecord, bool) {
	rec, exists := h.batchStore.Get(id)
	if !exists {
		h.writeError(w, "Batch not found", http.StatusNotFound)
		return nil, false
	}
	return rec, true
}
