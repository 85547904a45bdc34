// Package classifier maps task titles to a category, an ability stat and an
// experience award. A remote language-model provider is tried first; any
// failure falls back to the deterministic local keyword classifier.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/ability-tracker/internal/models"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 8
)

// Reason tells why the local classifier produced a result
type Reason string

const (
	ReasonDisabled     Reason = "provider_disabled"
	ReasonUnconfigured Reason = "provider_unconfigured"
	ReasonTransport    Reason = "transport_error"
	ReasonTimeout      Reason = "timeout"
	ReasonStatus       Reason = "bad_status"
	ReasonEnvelope     Reason = "malformed_envelope"
	ReasonPayload      Reason = "malformed_payload"
)

// RemoteError is returned by providers when a classification cannot be produced
type RemoteError struct {
	Reason Reason
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(reason Reason, err error) error {
	return &RemoteError{Reason: reason, Err: err}
}

// Provider classifies a title using a remote model
type Provider interface {
	Name() string
	Classify(ctx context.Context, title string) (models.Classification, error)
}

// Cache stores remote classifications by title
type Cache interface {
	Get(ctx context.Context, title string) (models.Classification, bool, error)
	Set(ctx context.Context, title string, c models.Classification) error
}

// Result is a classification tagged with the path that produced it.
// FallbackReason is empty when the remote provider answered.
type Result struct {
	models.Classification
	FallbackReason Reason `json:"fallbackReason,omitempty"`
}

// Remote reports whether the remote provider produced the result
func (r Result) Remote() bool {
	return r.Source == models.SourceRemote
}

// Option configures a Classifier
type Option func(*Classifier)

// WithTimeout bounds every remote call
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache caches successful remote classifications
func WithCache(cache Cache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// WithConcurrency limits in-flight classifications of a batch
func WithConcurrency(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Classifier combines a remote provider with the local fallback
type Classifier struct {
	provider    Provider
	local       *Local
	cache       Cache
	timeout     time.Duration
	concurrency int
}

// New creates a classifier. A nil provider always uses the local classifier.
func New(provider Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:    provider,
		local:       NewLocal(),
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: remote problems are logged and answered locally
func (c *Classifier) Classify(ctx context.Context, title string) Result {
	title = strings.TrimSpace(title)

	if c.provider == nil {
		return c.fallback(title, ReasonDisabled)
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, title)
		if err != nil {
			slog.Warn("classification cache read failed", "error", err)
		} else if ok {
			return Result{Classification: cached}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cls, err := c.provider.Classify(callCtx, title)
	if err != nil {
		reason := ReasonTransport
		var re *RemoteError
		if errors.As(err, &re) {
			reason = re.Reason
		}
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		slog.Warn("remote classification failed, using local classifier",
			"provider", c.provider.Name(),
			"reason", reason,
			"error", err,
		)
		return c.fallback(title, reason)
	}

	cls.Source = models.SourceRemote
	if c.cache != nil {
		if err := c.cache.Set(ctx, title, cls); err != nil {
			slog.Warn("classification cache write failed", "error", err)
		}
	}
	return Result{Classification: cls}
}

// ClassifyBatch classifies titles concurrently; results follow input order
func (c *Classifier) ClassifyBatch(ctx context.Context, titles []string) []Result {
	results := make([]Result, len(titles))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, title := range titles {
		g.Go(func() error {
			results[i] = c.Classify(ctx, title)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProviderName returns the configured remote provider, or "local"
func (c *Classifier) ProviderName() string {
	if c.provider == nil {
		return string(models.SourceLocal)
	}
	return c.provider.Name()
}

func (c *Classifier) fallback(title string, reason Reason) Result {
	return Result{
		Classification: c.local.Classify(title),
		FallbackReason: reason,
	}
}
