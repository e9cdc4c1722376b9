// Package app wires configuration, logging and the commands of the
// studiosync CLI.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/studiosync"
	"github.com/agentstation/studiosync/internal/plugin"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/reconciler"
)

// App holds the configuration and dependencies shared by every command.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// test seams, nil in production
	catalogs   plugin.CatalogFactory
	registries plugin.RegistryBuilder

	mu      sync.Mutex
	release func()
}

// New creates an App with configuration from the environment and the
// default config file. The --config flag reloads it before a command runs.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	a.config = config
	logger := NewLogger(config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Matcher builds the name matcher from the matching section.
func (a *App) Matcher() *matcher.Matcher {
	return matcher.New(a.matcherOptions()...)
}

func (a *App) matcherOptions() []matcher.Option {
	m := a.config.Matching
	opts := []matcher.Option{matcher.WithFuzzy(m.Fuzzy)}
	if m.Threshold > 0 {
		opts = append(opts, matcher.WithThreshold(m.Threshold))
	}
	return opts
}

// Runner builds the task runner over the host catalog and the configured
// registries.
func (a *App) Runner() *plugin.Runner {
	cfg := a.config
	concurrency := cfg.Sync.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	opts := []plugin.Option{
		plugin.WithExtraRegistries(cfg.RegistryConfigs()...),
		plugin.WithLockFile(cfg.LockFile()),
		plugin.WithMatcherOptions(a.matcherOptions()...),
		plugin.WithSyncerOptions(
			studiosync.WithPrimaryRegistry(cfg.Matching.PrimaryRegistry),
			studiosync.WithStrategy(reconciler.StrategyType(cfg.Matching.Strategy)),
			studiosync.WithAuthorities(cfg.Matching.Authorities...),
			studiosync.WithApplyStrategy(differ.ApplyStrategy(cfg.Sync.Apply)),
			studiosync.WithConcurrency(concurrency),
			studiosync.WithLogger(a.logger),
		),
	}
	if a.catalogs != nil {
		opts = append(opts, plugin.WithCatalogFactory(a.catalogs))
	}
	if a.registries != nil {
		opts = append(opts, plugin.WithRegistryBuilder(a.registries))
	}
	return plugin.New(opts...)
}

// Syncer connects to the host and builds a Syncer over its registries.
func (a *App) Syncer(ctx context.Context) (*studiosync.Syncer, *plugin.Runner, error) {
	runner := a.Runner()
	cat, err := runner.Catalog(a.config.Stash.Connection())
	if err != nil {
		return nil, nil, err
	}
	s, err := runner.Syncer(ctx, cat)
	if err != nil {
		return nil, nil, err
	}
	return s, runner, nil
}

// hold records the release of a lock so Shutdown can free it.
func (a *App) hold(release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.release = release
}

// Shutdown releases anything a failed or interrupted command left held.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	release := a.release
	a.release = nil
	a.mu.Unlock()
	if release != nil {
		release()
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCatalogFactory replaces the Stash GraphQL catalog.
func WithCatalogFactory(f plugin.CatalogFactory) Option {
	return func(a *App) error {
		a.catalogs = f
		return nil
	}
}

// WithRegistryBuilder replaces the HTTP registry clients.
func WithRegistryBuilder(b plugin.RegistryBuilder) Option {
	return func(a *App) error {
		a.registries = b
		return nil
	}
}
