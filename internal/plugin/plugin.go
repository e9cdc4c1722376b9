// Package plugin runs studiosync as a task of the host server: a JSON
// request on stdin, a JSON response on stdout.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/agentstation/studiosync"
	"github.com/agentstation/studiosync/internal/lock"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Modes accepted in Args.Mode.
const (
	ModeAll    = "all"
	ModeSingle = "single"
	ModeName   = "name"
)

// Connection is the server connection handed over by the host.
type Connection struct {
	Scheme string `json:"Scheme"`
	Host   string `json:"Host"`
	Port   int    `json:"Port"`
	APIKey string `json:"ApiKey"`
}

// Args are the task arguments.
type Args struct {
	Mode     string `json:"mode"`
	DryRun   bool   `json:"dry_run"`
	Force    bool   `json:"force"`
	StudioID string `json:"studio_id"`
	Name     string `json:"name"`
	Limit    int    `json:"limit"`

	// Matching overrides; nil keeps the configured value.
	FuzzyThreshold *float64 `json:"fuzzy_threshold,omitempty"`
	UseFuzzy       *bool    `json:"use_fuzzy_matching,omitempty"`
}

// matcherOptions validates the matching overrides.
func (a Args) matcherOptions() ([]matcher.Option, error) {
	var opts []matcher.Option
	if a.FuzzyThreshold != nil {
		t := *a.FuzzyThreshold
		if t < 0 || t > constants.MaxScore {
			return nil, errors.NewValidationError("fuzzy_threshold", t, "must be between 0 and 100")
		}
		opts = append(opts, matcher.WithThreshold(t))
	}
	if a.UseFuzzy != nil {
		opts = append(opts, matcher.WithFuzzy(*a.UseFuzzy))
	}
	return opts, nil
}

// Input is the request read from stdin.
type Input struct {
	ServerConnection Connection `json:"server_connection"`
	Args             Args       `json:"args"`
}

// Output is the response written to stdout. Exactly one field is set.
type Output struct {
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CatalogFactory connects to the host catalog.
type CatalogFactory func(catalog.Connection) (catalog.Catalog, error)

// RegistryBuilder turns registry configs into clients.
type RegistryBuilder func([]registry.Config) ([]registry.Client, error)

// Runner executes plugin requests.
type Runner struct {
	catalogs   CatalogFactory
	registries RegistryBuilder
	extra      []registry.Config
	options    []studiosync.Option
	matching   []matcher.Option
	lockPath   string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCatalogFactory replaces the Stash GraphQL catalog.
func WithCatalogFactory(f CatalogFactory) Option {
	return func(r *Runner) {
		r.catalogs = f
	}
}

// WithRegistryBuilder replaces registry.Build.
func WithRegistryBuilder(b RegistryBuilder) Option {
	return func(r *Runner) {
		r.registries = b
	}
}

// WithExtraRegistries adds registries after the host's stash-boxes.
// Endpoints the host already configures are deduplicated away.
func WithExtraRegistries(configs ...registry.Config) Option {
	return func(r *Runner) {
		r.extra = append(r.extra, configs...)
	}
}

// WithSyncerOptions passes options through to studiosync.New.
func WithSyncerOptions(opts ...studiosync.Option) Option {
	return func(r *Runner) {
		r.options = append(r.options, opts...)
	}
}

// WithMatcherOptions sets the configured matcher. Request overrides are
// applied on top.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(r *Runner) {
		r.matching = append(r.matching, opts...)
	}
}

// WithLockFile guards batch runs with a lock file at path.
func WithLockFile(path string) Option {
	return func(r *Runner) {
		r.lockPath = path
	}
}

// New creates a Runner talking to the Stash GraphQL API.
func New(opts ...Option) *Runner {
	r := &Runner{
		catalogs: func(c catalog.Connection) (catalog.Catalog, error) {
			return catalog.NewStash(c), nil
		},
		registries: func(configs []registry.Config) ([]registry.Client, error) {
			return registry.Build(configs)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve reads one request from in and writes the response to out. The
// returned error is the task error, already reported on out.
func (r *Runner) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	var req Input
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		err = errors.WrapParse("json", "stdin", err)
		return r.reply(out, nil, err)
	}
	result, err := r.Run(ctx, req)
	return r.reply(out, result, err)
}

func (r *Runner) reply(out io.Writer, result any, err error) error {
	resp := Output{Output: result}
	if err != nil {
		resp = Output{Error: err.Error()}
	}
	if werr := json.NewEncoder(out).Encode(resp); werr != nil {
		return errors.WrapIO("write", "stdout", werr)
	}
	return err
}

// Run executes req and returns the value reported as output.
func (r *Runner) Run(ctx context.Context, req Input) (any, error) {
	ctx = logging.WithOperation(ctx, "plugin")
	log := logging.Ctx(ctx)
	args := req.Args
	if args.Mode == "" {
		args.Mode = ModeAll
		if args.StudioID != "" {
			args.Mode = ModeSingle
		}
	}
	overrides, err := args.matcherOptions()
	if err != nil {
		return nil, err
	}
	log.Info().Str("mode", args.Mode).Bool("dry_run", args.DryRun).Bool("force", args.Force).Msg("Plugin task started")

	conn := catalog.Connection{
		Scheme: req.ServerConnection.Scheme,
		Host:   req.ServerConnection.Host,
		Port:   req.ServerConnection.Port,
		APIKey: req.ServerConnection.APIKey,
	}
	cat, err := r.Catalog(conn)
	if err != nil {
		return nil, err
	}
	syncer, err := r.Syncer(ctx, cat, overrides...)
	if err != nil {
		return nil, err
	}
	log.Debug().Float64("threshold", syncer.Matcher().Threshold()).Bool("fuzzy", syncer.Matcher().Fuzzy()).Msg("Matcher ready")

	opts := []studiosync.SyncOption{
		studiosync.WithDryRun(args.DryRun),
		studiosync.WithForce(args.Force),
		studiosync.WithLimit(args.Limit),
	}
	switch args.Mode {
	case ModeAll:
		release, err := r.Lock()
		if err != nil {
			return nil, err
		}
		defer release()
		report, err := syncer.SyncAll(ctx, opts...)
		if report != nil {
			log.Info().Msg(report.String())
		}
		return report, err
	case ModeSingle:
		if args.StudioID == "" {
			return nil, errors.NewValidationError("studio_id", args.StudioID, "required in single mode")
		}
		return syncer.SyncStudio(ctx, args.StudioID, opts...)
	case ModeName:
		studio, err := syncer.FindStudioByName(ctx, args.Name)
		if err != nil {
			return nil, err
		}
		return syncer.ReconcileStudio(ctx, studio, opts...)
	default:
		return nil, errors.NewValidationError("mode", args.Mode, fmt.Sprintf("must be one of %s, %s, %s", ModeAll, ModeSingle, ModeName))
	}
}

// Catalog connects to the host at conn.
func (r *Runner) Catalog(conn catalog.Connection) (catalog.Catalog, error) {
	cat, err := r.catalogs(conn)
	if err != nil {
		return nil, errors.WrapResource("connect", "catalog", conn.URL(), err)
	}
	return cat, nil
}

// Registries returns the host's stash-boxes followed by the extra
// registries, deduplicated by endpoint. Keyless registries are kept.
func (r *Runner) Registries(ctx context.Context, cat catalog.Catalog) ([]registry.Config, error) {
	boxes, err := cat.StashBoxes(ctx)
	if err != nil {
		return nil, err
	}
	return registry.Dedupe(ctx, append(registry.FromStashBoxes(boxes), r.extra...)), nil
}

// Syncer builds a Syncer over every credentialed registry. overrides are
// applied after the configured matcher options.
func (r *Runner) Syncer(ctx context.Context, cat catalog.Catalog, overrides ...matcher.Option) (*studiosync.Syncer, error) {
	configs, err := r.Registries(ctx, cat)
	if err != nil {
		return nil, err
	}
	configs = registry.Credentialed(ctx, configs)
	if len(configs) == 0 {
		return nil, errors.NewConfigError("registries", "no credentialed registry configured", errors.ErrAPIKeyRequired)
	}
	clients, err := r.registries(configs)
	if err != nil {
		return nil, errors.WrapResource("build", "registries", "", err)
	}
	opts := r.options
	if m := append(slices.Clone(r.matching), overrides...); len(m) > 0 {
		opts = append(slices.Clone(opts), studiosync.WithMatcher(matcher.New(m...)))
	}
	return studiosync.New(cat, clients, opts...)
}

// Lock acquires the configured lock file. It returns a no-op release when
// none is configured.
func (r *Runner) Lock() (func(), error) {
	if r.lockPath == "" {
		return func() {}, nil
	}
	l, err := lock.Acquire(r.lockPath)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			logging.Warn().Err(err).Msg("Releasing lock file failed")
		}
	}, nil
}
