package studiosync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/reconciler"
)

// config holds the Syncer configuration.
type config struct {
	matcher     *matcher.Matcher
	primary     string
	concurrency int
	logger      *zerolog.Logger
	merge       []reconciler.Option
}

func defaultConfig() *config {
	return &config{
		primary:     constants.StashDBEndpoint,
		concurrency: constants.DefaultConcurrency,
	}
}

// Option is a function that configures a Syncer.
type Option func(*config) error

// WithMatcher sets the name matcher used for every registry.
func WithMatcher(m *matcher.Matcher) Option {
	return func(c *config) error {
		if m == nil {
			return errors.NewValidationError("matcher", nil, "cannot be nil")
		}
		c.matcher = m
		return nil
	}
}

// WithPrimaryRegistry sets the registry whose values win field conflicts.
func WithPrimaryRegistry(registryID string) Option {
	return func(c *config) error {
		if registryID != "" {
			c.primary = registryID
		}
		return nil
	}
}

// WithStrategy sets how conflicting registry values are resolved.
func WithStrategy(t reconciler.StrategyType) Option {
	return func(c *config) error {
		if t != "" {
			c.merge = append(c.merge, reconciler.WithStrategy(t))
		}
		return nil
	}
}

// WithAuthorities adds per-field registry priorities on top of the primary
// registry.
func WithAuthorities(fields ...authority.Field) Option {
	return func(c *config) error {
		c.merge = append(c.merge, reconciler.WithAuthorities(fields...))
		return nil
	}
}

// WithApplyStrategy limits the kinds of change written to the catalog.
func WithApplyStrategy(s differ.ApplyStrategy) Option {
	return func(c *config) error {
		if s != "" {
			c.merge = append(c.merge, reconciler.WithApplyStrategy(s))
		}
		return nil
	}
}

// WithConcurrency sets how many name groups a batch run processes at once.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		if n < 1 || n > constants.MaxConcurrency {
			return errors.NewValidationError("concurrency", n, "must be between 1 and 16")
		}
		c.concurrency = n
		return nil
	}
}

// WithLogger sets the logger attached to every operation's context.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// SyncOptions controls one sync call.
type SyncOptions struct {
	DryRun  bool
	Force   bool
	Limit   int
	Timeout time.Duration
}

// SyncOption configures a sync call.
type SyncOption func(*SyncOptions)

// WithDryRun reports plans without writing to the catalog.
func WithDryRun(enabled bool) SyncOption {
	return func(o *SyncOptions) {
		o.DryRun = enabled
	}
}

// WithForce lets registry values override populated local fields and
// processes studios that already look complete.
func WithForce(enabled bool) SyncOption {
	return func(o *SyncOptions) {
		o.Force = enabled
	}
}

// WithLimit caps how many studios a batch run processes. Zero means all.
func WithLimit(n int) SyncOption {
	return func(o *SyncOptions) {
		o.Limit = max(n, 0)
	}
}

// WithTimeout bounds the whole call.
func WithTimeout(d time.Duration) SyncOption {
	return func(o *SyncOptions) {
		o.Timeout = d
	}
}

// NewSyncOptions creates SyncOptions with defaults.
func NewSyncOptions(opts ...SyncOption) *SyncOptions {
	options := &SyncOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
