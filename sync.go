package studiosync

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

// SyncStudio reconciles the studio with the given local id.
func (s *Syncer) SyncStudio(ctx context.Context, id string, opts ...SyncOption) (*Result, error) {
	ctx = s.context(ctx)
	studio, err := s.catalog.FindStudio(ctx, id)
	if err != nil {
		return nil, errors.WrapResource("find", "studio", id, err)
	}
	if studio == nil {
		return nil, errors.NewNotFoundError("studio", id)
	}
	return s.ReconcileStudio(ctx, studio, opts...)
}

// ReconcileStudio searches the registries for studio and applies the
// resulting plan. The returned Result is set even when err is not nil.
func (s *Syncer) ReconcileStudio(ctx context.Context, studio *catalog.Studio, opts ...SyncOption) (*Result, error) {
	if studio == nil {
		return nil, errors.NewValidationError("studio", nil, "cannot be nil")
	}
	o := NewSyncOptions(opts...)
	ctx, cancel := withTimeout(s.context(ctx), o.Timeout)
	defer cancel()

	matches := s.agg.FindMatches(logging.WithStudio(ctx, studio.ID, studio.Name), studio.Name)
	res := s.reconcile(ctx, studio, matches, o)
	return res, res.Err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// reconcile merges matches into studio and applies the plan.
func (s *Syncer) reconcile(ctx context.Context, studio *catalog.Studio, matches []aggregator.Match, o *SyncOptions) *Result {
	ctx = logging.WithStudio(ctx, studio.ID, studio.Name)
	log := logging.Ctx(ctx)
	res := &Result{Studio: *studio.Clone(), DryRun: o.DryRun}

	if err := ctx.Err(); err != nil {
		return res.fail(errors.NewReconcileError(studio.ID, studio.Name, errors.StageMatch, err))
	}

	all := s.withRefMatches(ctx, studio, matches, o)
	res.Matches = all
	if len(all) == 0 {
		log.Info().Msg("No matches found")
		res.Status = StatusNoMatch
		return res
	}

	plan := s.merger.Merge(studio, all, o.Force)
	res.Plan = plan

	if plan.Parent != nil {
		id, err := s.resolver.Resolve(ctx, plan.Parent.Ref, plan.Parent.Registry, o.DryRun)
		if err != nil {
			rerr := errors.NewReconcileError(studio.ID, studio.Name, errors.StageParent, err)
			log.Error().Err(rerr).Msg("Parent resolution failed")
			return res.fail(rerr)
		}
		if id != "" {
			log.Info().Str("parent", plan.Parent.Ref.Name).Str("parent_id", id).Msg("Linking parent studio")
		}
		plan.SetParentID(id)
	}
	s.hooks.triggerPlan(plan)

	if plan.IsNoop() {
		log.Debug().Msg("No changes needed")
		res.Status = StatusComplete
		return res
	}
	res.Status = StatusUpdated

	if o.DryRun {
		log.Info().Str("changes", plan.Changes.Summary()).Bool("force", o.Force).Msg("[DRY RUN] Would update studio")
		return res
	}

	updated, err := s.catalog.UpdateStudio(ctx, plan.Update())
	if err != nil {
		rerr := errors.NewReconcileError(studio.ID, studio.Name, errors.StageApply, err)
		log.Error().Err(rerr).Msg("Update failed")
		return res.fail(rerr)
	}
	res.Applied = true
	s.resolver.Observe(updated)
	log.Info().Str("changes", plan.Changes.Summary()).Bool("force", o.Force).Msg("Updated studio")
	s.hooks.triggerStudioUpdated(*studio, *updated)
	return res
}

// withRefMatches adds details fetched through refs the studio already holds
// for registries where the name search found nothing, when the studio is
// still missing data. Results stay in registry order.
func (s *Syncer) withRefMatches(ctx context.Context, studio *catalog.Studio, matches []aggregator.Match, o *SyncOptions) []aggregator.Match {
	if len(studio.ExternalRefs) == 0 || !(o.Force || missingData(studio)) {
		return matches
	}
	matched := make(map[string]bool, len(matches))
	for _, m := range matches {
		matched[m.RegistryID()] = true
	}
	extra := s.agg.FetchRefs(ctx, studio.ExternalRefs, matched)
	if len(extra) == 0 {
		return matches
	}

	order := make(map[string]int)
	for i, cfg := range s.agg.Registries() {
		order[cfg.ID] = i
	}
	all := append(slices.Clone(matches), extra...)
	slices.SortStableFunc(all, func(a, b aggregator.Match) int {
		return cmp.Compare(order[a.RegistryID()], order[b.RegistryID()])
	})
	return all
}

func missingData(s *catalog.Studio) bool {
	return !s.HasParent() || s.URL == "" || s.ImageRef == ""
}

// needsProcessing reports whether a batch run without force should touch s.
func needsProcessing(s *catalog.Studio) bool {
	return !s.ExternalRefs.Has(constants.TPDBEndpoint) ||
		!s.ExternalRefs.Has(constants.StashDBEndpoint) ||
		!s.HasParent()
}

// group is a set of studios sharing a folded name.
type group struct {
	name    string
	studios []*catalog.Studio
}

func groupByName(studios []*catalog.Studio) []group {
	var groups []group
	index := make(map[string]int)
	for _, st := range studios {
		key := catalog.NameKey(st.Name)
		if i, ok := index[key]; ok {
			groups[i].studios = append(groups[i].studios, st)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{name: st.Name, studios: []*catalog.Studio{st}})
	}
	return groups
}

// SyncAll reconciles every studio that needs it. Studios sharing a name are
// searched once. A failing studio is counted and the run continues.
func (s *Syncer) SyncAll(ctx context.Context, opts ...SyncOption) (*Report, error) {
	o := NewSyncOptions(opts...)
	ctx, cancel := withTimeout(s.context(ctx), o.Timeout)
	defer cancel()

	report := &Report{RunID: uuid.NewString(), DryRun: o.DryRun, Force: o.Force, StartedAt: time.Now()}
	ctx = logging.WithRunID(ctx, report.RunID)
	log := logging.Ctx(ctx)

	studios, err := s.catalog.AllStudios(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "studios", "", err)
	}
	s.resolver.Refresh()

	work := make([]*catalog.Studio, 0, len(studios))
	for _, st := range studios {
		if o.Force || needsProcessing(st) {
			work = append(work, st)
		}
	}
	if o.Limit > 0 && len(work) > o.Limit {
		work = work[:o.Limit]
	}
	report.Total = len(work)
	log.Info().
		Int("studios", len(studios)).
		Int("to_process", len(work)).
		Bool("dry_run", o.DryRun).
		Bool("force", o.Force).
		Msg("Starting batch run")

	groups := groupByName(work)
	prog := &progress{total: len(work), start: time.Now()}
	seen := &processed{ids: make(map[string]bool)}

	results := iter.Mapper[group, []*Result]{MaxGoroutines: s.config.concurrency}.Map(groups, func(g *group) []*Result {
		return s.syncGroup(ctx, g, o, seen, prog)
	})
	for _, rs := range results {
		for _, r := range rs {
			report.Results = append(report.Results, r)
			report.count(r)
		}
	}
	report.Duration = time.Since(report.StartedAt)

	log.Info().
		Int("total", report.Total).
		Int("updated", report.Updated).
		Int("complete", report.Complete).
		Int("no_match", report.NoMatch).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Str("duration", report.Duration.Round(time.Millisecond).String()).
		Msg("Batch run finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch run interrupted: %w", err)
	}
	return report, nil
}

func (s *Syncer) syncGroup(ctx context.Context, g *group, o *SyncOptions, seen *processed, prog *progress) []*Result {
	if ctx.Err() != nil {
		return nil
	}
	var todo []*catalog.Studio
	var out []*Result
	for _, st := range g.studios {
		if !seen.add(st.ID) {
			logging.Ctx(ctx).Debug().Str("studio_id", st.ID).Str("studio", st.Name).Msg("Skipping already processed studio")
			out = append(out, &Result{Studio: *st.Clone(), Status: StatusSkipped, DryRun: o.DryRun})
			prog.step(ctx)
			continue
		}
		todo = append(todo, st)
	}
	if len(todo) == 0 {
		return out
	}

	var matches []aggregator.Match
	searchErr := safely(func() {
		matches = s.agg.FindMatches(logging.WithStudio(ctx, todo[0].ID, g.name), g.name)
	})
	for _, st := range todo {
		if searchErr != nil {
			out = append(out, s.crashed(ctx, st, o, searchErr))
			prog.step(ctx)
			continue
		}
		if s.resolver.Touched(st.ID) {
			// linked as a parent earlier in the run
			if fresh, err := s.catalog.FindStudio(ctx, st.ID); err == nil && fresh != nil {
				st = fresh
			}
		}
		var res *Result
		if err := safely(func() { res = s.reconcile(ctx, st, matches, o) }); err != nil {
			res = s.crashed(ctx, st, o, err)
		}
		out = append(out, res)
		prog.step(ctx)
	}
	return out
}

// crashed is the failed result for a studio whose sync panicked.
func (s *Syncer) crashed(ctx context.Context, st *catalog.Studio, o *SyncOptions, err error) *Result {
	rerr := errors.NewReconcileError(st.ID, st.Name, errors.StageMatch, err)
	logging.Ctx(ctx).Error().Err(rerr).Str("studio_id", st.ID).Str("studio", st.Name).Msg("Studio sync panicked")
	return (&Result{Studio: *st.Clone(), DryRun: o.DryRun}).fail(rerr)
}

// safely runs fn, turning a panic into an error.
func safely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sync: %v", r)
		}
	}()
	fn()
	return nil
}

// processed is the run-wide set of studio ids already handled.
type processed struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (p *processed) add(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ids[id] {
		return false
	}
	p.ids[id] = true
	return true
}

type progress struct {
	mu    sync.Mutex
	total int
	done  int
	start time.Time
}

// step logs progress for the first and last studio and every
// constants.ProgressEvery in between.
func (p *progress) step(ctx context.Context) {
	p.mu.Lock()
	p.done++
	done, total := p.done, p.total
	elapsed := time.Since(p.start)
	p.mu.Unlock()

	if done != 1 && done != total && done%constants.ProgressEvery != 0 {
		return
	}
	eta := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	logging.Ctx(ctx).Info().
		Int("done", done).
		Int("total", total).
		Str("percent", fmt.Sprintf("%.1f%%", float64(done)/float64(total)*100)).
		Str("eta", eta.Round(time.Second).String()).
		Msg("Progress")
}
