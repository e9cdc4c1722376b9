// Package aggregator fans a studio name out to every configured registry,
// keeps the best accepted candidate of each and fetches its details.
package aggregator

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Match is the accepted studio of one registry.
type Match struct {
	Registry registry.Config  `json:"registry" yaml:"registry"`
	Result   matcher.Result   `json:"result" yaml:"result"`
	Detail   *registry.Detail `json:"detail" yaml:"detail"`
	// FromRef is set when the detail came from a ref the studio already
	// held rather than from a name search.
	FromRef bool `json:"from_ref,omitempty" yaml:"from_ref,omitempty"`
}

// RegistryID returns the id of the registry the match came from.
func (m Match) RegistryID() string {
	return m.Registry.ID
}

// Aggregator queries registries in configuration order.
type Aggregator struct {
	clients     []registry.Client
	matcher     *matcher.Matcher
	concurrency int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds how many registries are queried at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// New creates an Aggregator. Clients without an API key are dropped.
func New(ctx context.Context, clients []registry.Client, m *matcher.Matcher, opts ...Option) *Aggregator {
	if m == nil {
		m = matcher.New()
	}
	a := &Aggregator{matcher: m}
	for _, c := range clients {
		if !c.Config().Credentialed() {
			logging.Ctx(ctx).Debug().Str("registry", c.Config().DisplayName()).Msg("No API key configured, skipping registry")
			continue
		}
		a.clients = append(a.clients, c)
	}
	a.concurrency = len(a.clients)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Matcher returns the matcher used for candidate selection.
func (a *Aggregator) Matcher() *matcher.Matcher {
	return a.matcher
}

// Registries returns the configs of the queried registries, in order.
func (a *Aggregator) Registries() []registry.Config {
	out := make([]registry.Config, len(a.clients))
	for i, c := range a.clients {
		out[i] = c.Config()
	}
	return out
}

// Client returns the client for a registry id.
func (a *Aggregator) Client(registryID string) (registry.Client, bool) {
	for _, c := range a.clients {
		if c.Config().ID == registryID {
			return c, true
		}
	}
	return nil, false
}

func (a *Aggregator) mapper() iter.Mapper[registry.Client, *Match] {
	return iter.Mapper[registry.Client, *Match]{MaxGoroutines: max(a.concurrency, 1)}
}

// FindMatches returns the best accepted, detail-fetched match of every
// registry that has one, in registry order. A failing registry is logged and
// contributes nothing.
func (a *Aggregator) FindMatches(ctx context.Context, name string) []Match {
	results := a.mapper().Map(a.clients, func(c *registry.Client) *Match {
		return a.matchOne(ctx, *c, name)
	})
	return collect(results)
}

func (a *Aggregator) matchOne(ctx context.Context, c registry.Client, name string) *Match {
	cfg := c.Config()
	ctx = logging.WithRegistry(ctx, cfg.DisplayName())
	log := logging.Ctx(ctx)

	candidates, err := c.Search(ctx, name)
	if err != nil {
		logFailure(ctx, err, "Registry search failed")
		return nil
	}
	best, ok := a.matcher.Best(ctx, name, candidates)
	if !ok {
		log.Debug().Str("name", name).Int("candidates", len(candidates)).Msg("No accepted match")
		return nil
	}

	detail, err := c.Fetch(ctx, best.Candidate.RemoteID)
	if err != nil {
		logFailure(ctx, err, "Registry fetch failed")
		return nil
	}
	if detail == nil {
		log.Debug().Str("remote_id", best.Candidate.RemoteID).Msg("Matched studio has no detail record")
		return nil
	}

	matchType := "fuzzy"
	if best.Exact {
		matchType = "exact"
	}
	log.Info().
		Str("name", name).
		Str("match", best.Candidate.Name).
		Str("remote_id", best.Candidate.RemoteID).
		Float64("score", best.Score).
		Str("type", matchType).
		Msg("Matched studio")
	return &Match{Registry: cfg, Result: best, Detail: detail}
}

// FetchRefs fetches details through refs the studio already holds, for
// every registry not listed in skip.
func (a *Aggregator) FetchRefs(ctx context.Context, refs catalog.ExternalRefs, skip map[string]bool) []Match {
	results := a.mapper().Map(a.clients, func(c *registry.Client) *Match {
		cfg := (*c).Config()
		remoteID, ok := refs.Get(cfg.ID)
		if !ok || skip[cfg.ID] {
			return nil
		}
		rctx := logging.WithRegistry(ctx, cfg.DisplayName())
		detail, err := (*c).Fetch(rctx, remoteID)
		if err != nil {
			logFailure(rctx, err, "Fetching existing ref failed")
			return nil
		}
		if detail == nil {
			logging.Ctx(rctx).Warn().Str("remote_id", remoteID).Msg("Existing ref not found in registry")
			return nil
		}
		return &Match{
			Registry: cfg,
			Result:   matcher.Result{Candidate: registry.Candidate{RemoteID: detail.RemoteID, Name: detail.Name, RegistryID: cfg.ID}},
			Detail:   detail,
			FromRef:  true,
		}
	})
	return collect(results)
}

// Search is the raw candidate list of one registry.
type Search struct {
	Registry   registry.Config
	Candidates []registry.Candidate
}

// SearchAll searches every registry for name without scoring. Failed
// registries are logged and left out.
func (a *Aggregator) SearchAll(ctx context.Context, name string) []Search {
	type res struct {
		search Search
		ok     bool
	}
	results := iter.Mapper[registry.Client, res]{MaxGoroutines: max(a.concurrency, 1)}.Map(a.clients, func(c *registry.Client) res {
		cfg := (*c).Config()
		rctx := logging.WithRegistry(ctx, cfg.DisplayName())
		cands, err := (*c).Search(rctx, name)
		if err != nil {
			logFailure(rctx, err, "Registry search failed")
			return res{}
		}
		return res{search: Search{Registry: cfg, Candidates: cands}, ok: true}
	})

	out := make([]Search, 0, len(results))
	for _, r := range results {
		if r.ok {
			out = append(out, r.search)
		}
	}
	return out
}

func collect(results []*Match) []Match {
	out := make([]Match, 0, len(results))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

func logFailure(ctx context.Context, err error, msg string) {
	log := logging.Ctx(ctx)
	if errors.IsCanceled(err) {
		log.Debug().Err(err).Msg(msg)
		return
	}
	log.Error().Err(err).Msg(msg)
}
