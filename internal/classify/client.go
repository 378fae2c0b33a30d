package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pl-listing/lister/internal/models"
	"github.com/pl-listing/lister/internal/providers"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.1
)

var (
	// ErrTimeout marks a call that exceeded the per-call timeout.
	ErrTimeout = errors.New("classification timed out")
	// ErrTransport marks a network or service-side failure.
	ErrTransport = errors.New("classification request failed")
)

// Client issues one classification call per product. It never returns an
// error: every failure is reported as a failed Outcome.
type Client struct {
	provider    providers.Provider
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithRateLimit caps calls per minute. Zero or less disables the cap.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// New returns a Client that sends requests to p using model.
func New(p providers.Provider, model string, opts ...Option) *Client {
	c := &Client{
		provider:    p,
		model:       model,
		temperature: DefaultTemperature,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Classify sends the request and interprets the reply.
func (c *Client) Classify(ctx context.Context, req models.ClassificationRequest) models.Outcome {
	if len(req.Images) == 0 {
		return models.Failure("no valid images")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(ctx, req.ProductID, err)
		}
	}

	start := time.Now()
	text, err := c.provider.ExtractText(ctx, providers.Config{
		Model:       c.model,
		Temperature: c.temperature,
		Prompt:      BuildPrompt(req.Hints, len(req.Images)),
		Images:      req.Images,
	})
	if err != nil {
		return c.fail(ctx, req.ProductID, err)
	}
	slog.Debug("Classification response received", "product_id", req.ProductID, "model", c.model, "duration_ms", time.Since(start).Milliseconds(), "length", len(text))

	var outcome models.Outcome
	switch r := ParseResponse(text).(type) {
	case Structured:
		outcome = models.Success(r.Products[0])
		if extra := len(r.Products) - 1; extra > 0 {
			slog.Warn("Response described several products, keeping the first", "product_id", req.ProductID, "discarded", extra)
			outcome.ExtraProducts = extra
		}
	case RawText:
		slog.Warn("Failed to parse JSON response, recovering from raw text", "product_id", req.ProductID, "error", r.Err)
		outcome = models.Success(AttributesFromText(r.Text))
		outcome.Partial = true
	default:
		return models.Failure(fmt.Sprintf("unexpected response type %T", r))
	}

	outcome.Attributes = applyHints(outcome.Attributes, req.Hints)
	return outcome
}

func (c *Client) fail(ctx context.Context, id models.ProductID, err error) models.Outcome {
	err = classifyError(ctx, err, c.timeout)
	slog.Error("Classification failed", "product_id", id, "model", c.model, "error", err)
	return models.Failure(err.Error())
}

// classifyError wraps err with ErrTimeout or ErrTransport.
func classifyError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// applyHints fills fields the service left unknown with operator hints.
func applyHints(a models.Attributes, h models.Hints) models.Attributes {
	fill := func(field *string, hint string) {
		if models.IsUnknown(*field) && !models.IsUnknown(hint) {
			*field = strings.TrimSpace(hint)
		}
	}
	fill(&a.Brand, h.Brand)
	fill(&a.ModelNumber, h.ModelNumber)
	fill(&a.Size, h.Size)
	fill(&a.ProductType, h.ProductType)
	fill(&a.Color, h.Color)
	return a
}
