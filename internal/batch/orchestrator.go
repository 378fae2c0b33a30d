package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pl-listing/lister/internal/grouping"
	"github.com/pl-listing/lister/internal/images"
	"github.com/pl-listing/lister/internal/models"
)

// DefaultDelay is the pause between two products.
const DefaultDelay = time.Second

// ErrCanceled is returned when the context is done before the run starts.
var ErrCanceled = errors.New("batch canceled before start")

// Normalizer prepares the images of one group.
type Normalizer interface {
	NormalizeGroup(ctx context.Context, group models.ImageGroup) ([]models.NormalizedImage, []images.Dropped)
}

// Classifier turns one request into an outcome and never fails.
type Classifier interface {
	Classify(ctx context.Context, req models.ClassificationRequest) models.Outcome
}

// Orchestrator processes groups strictly one after another.
type Orchestrator struct {
	normalizer Normalizer
	classifier Classifier
	delay      time.Duration
	hints      models.Hints
	sleep      func(ctx context.Context, d time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDelay sets the fixed pause between products. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithHints attaches operator hints to every request of the run.
func WithHints(h models.Hints) Option {
	return func(o *Orchestrator) { o.hints = h }
}

// NewOrchestrator returns an Orchestrator with the default delay.
func NewOrchestrator(n Normalizer, c Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		normalizer: n,
		classifier: c,
		delay:      DefaultDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every group in order and records one entry per group in
// tracker. Per-product problems become failed outcomes; the only errors
// returned are the ones detected before the first product starts.
func (o *Orchestrator) Run(ctx context.Context, groups []models.ImageGroup, tracker *Tracker) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	if len(groups) == 0 {
		return Summary{}, grouping.ErrNoImages
	}
	if tracker.total != len(groups) {
		return Summary{}, fmt.Errorf("tracker expects %d products, got %d groups", tracker.total, len(groups))
	}
	seen := make(map[models.ProductID]bool, len(groups))
	for _, g := range groups {
		if seen[g.ProductID] {
			return Summary{}, fmt.Errorf("%w: %s appears in more than one group", ErrAlreadyRecorded, g.ProductID)
		}
		seen[g.ProductID] = true
	}

	total := len(groups)
	slog.Info("Starting batch", "run_id", tracker.RunID(), "products", total, "delay", o.delay)

	for i, g := range groups {
		if i > 0 && o.delay > 0 {
			o.sleep(ctx, o.delay)
		}

		slog.Info("Processing product", "run_id", tracker.RunID(), "product_id", g.ProductID, "images", len(g.Images), "progress", fmt.Sprintf("%d/%d", i, total))
		entry := o.process(ctx, g)

		if err := tracker.Record(entry); err != nil {
			// unreachable with the duplicate check above
			slog.Error("Unable to record product", "product_id", g.ProductID, "error", err)
			continue
		}
		slog.Info("Product done", "run_id", tracker.RunID(), "product_id", g.ProductID, "status", entry.Outcome.Kind, "progress", fmt.Sprintf("%d/%d", i+1, total))
	}

	summary := tracker.Finish()
	slog.Info("Batch finished",
		"run_id", tracker.RunID(),
		"progress", summary.Progress(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"auto_approved", summary.AutoApproved,
		"needs_review", summary.NeedsReview,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return summary, nil
}

func (o *Orchestrator) process(ctx context.Context, g models.ImageGroup) Entry {
	entry := Entry{ProductID: g.ProductID, Previews: []string{}}

	if err := ctx.Err(); err != nil {
		entry.Outcome = models.Failure(fmt.Sprintf("not processed: %v", err))
		return entry
	}

	normalized, dropped := o.normalizer.NormalizeGroup(ctx, g)
	entry.Dropped = dropped
	if len(normalized) == 0 {
		reasons := make([]string, len(dropped))
		for i, d := range dropped {
			reasons[i] = d.Reason
		}
		reason := "no valid images"
		if len(reasons) > 0 {
			reason += ": " + strings.Join(reasons, "; ")
		}
		entry.Outcome = models.Failure(reason)
		return entry
	}

	for _, img := range normalized {
		entry.Previews = append(entry.Previews, img.SourceName)
	}

	entry.Outcome = o.classifier.Classify(ctx, models.ClassificationRequest{
		ProductID: g.ProductID,
		Images:    normalized,
		Hints:     o.hints,
	})
	return entry
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
