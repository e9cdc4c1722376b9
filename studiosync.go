// Package studiosync reconciles the studios of a local Stash catalog with
// stash-box registries and ThePornDB.
//
// A Syncer searches every credentialed registry for a studio's name, keeps
// the best accepted candidate of each, merges their details into a plan and
// applies it to the catalog. Parent studios are resolved to local records,
// created when no registry ref or name already identifies one.
//
//	sync, err := studiosync.New(cat, clients, studiosync.WithConcurrency(4))
//	report, err := sync.SyncAll(ctx, studiosync.WithDryRun(true))
package studiosync

import (
	"context"
	"fmt"

	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/parent"
	"github.com/agentstation/studiosync/pkg/reconciler"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Syncer runs reconciliation against one catalog and a fixed registry set.
type Syncer struct {
	catalog  catalog.Catalog
	config   *config
	matcher  *matcher.Matcher
	agg      *aggregator.Aggregator
	merger   *reconciler.Merger
	resolver *parent.Resolver
	hooks    *hooks
}

// New creates a Syncer. Registries without an API key are kept out of
// every search.
func New(cat catalog.Catalog, registries []registry.Client, opts ...Option) (*Syncer, error) {
	if cat == nil {
		return nil, errors.NewValidationError("catalog", nil, "cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if cfg.matcher == nil {
		cfg.matcher = matcher.New()
	}

	s := &Syncer{catalog: cat, config: cfg, matcher: cfg.matcher, hooks: newHooks()}
	s.agg = aggregator.New(s.context(context.Background()), registries, cfg.matcher)

	merger, err := reconciler.New(append([]reconciler.Option{reconciler.WithPrimaryRegistry(cfg.primary)}, cfg.merge...)...)
	if err != nil {
		return nil, fmt.Errorf("creating merger: %w", err)
	}
	s.merger = merger
	s.resolver = parent.New(cat, s.agg)
	return s, nil
}

// Matcher returns the name matcher.
func (s *Syncer) Matcher() *matcher.Matcher {
	return s.matcher
}

// Registries returns the registries searched, in order.
func (s *Syncer) Registries() []registry.Config {
	return s.agg.Registries()
}

// Catalog returns the host catalog.
func (s *Syncer) Catalog() catalog.Catalog {
	return s.catalog
}

func (s *Syncer) context(ctx context.Context) context.Context {
	if s.config.logger != nil && logging.FromContext(ctx) == logging.Default() {
		ctx = logging.WithLogger(ctx, s.config.logger)
	}
	return ctx
}
