// Package parent resolves a remote parent studio reference to a local studio,
// reusing any local studio that a registry ref already identifies and
// creating one only when none exists.
package parent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/registry"
)

// DryRunPrefix starts every placeholder id handed out in dry-run.
const DryRunPrefix = "dry-run-"

// Resolver resolves parent refs against the local catalog. It is safe for
// concurrent use; resolutions of the same parent name are serialized.
type Resolver struct {
	catalog catalog.Catalog
	agg     *aggregator.Aggregator

	group singleflight.Group
	locks sync.Map // name key -> *sync.Mutex

	mu       sync.Mutex
	snapshot []*catalog.Studio
	loaded   bool
	touched  map[string]bool
}

// New creates a Resolver.
func New(cat catalog.Catalog, agg *aggregator.Aggregator) *Resolver {
	return &Resolver{catalog: cat, agg: agg, touched: make(map[string]bool)}
}

// Placeholder returns the deterministic id reported for a parent that a
// dry run would create.
func Placeholder(originRegistryID, remoteID string) string {
	return DryRunPrefix + uuid.NewSHA1(uuid.NameSpaceURL, []byte(originRegistryID+"#"+remoteID)).String()
}

// Resolve returns the local id of the studio ref points to in
// originRegistryID, or "" when ref is incomplete.
func (r *Resolver) Resolve(ctx context.Context, ref registry.ParentRef, originRegistryID string, dryRun bool) (string, error) {
	if ref.RemoteID == "" || ref.Name == "" || originRegistryID == "" {
		return "", nil
	}
	key := catalog.NameKey(ref.Name)
	flight := fmt.Sprintf("%s\x00%s\x00%s\x00%t", key, originRegistryID, ref.RemoteID, dryRun)

	v, err, _ := r.group.Do(flight, func() (any, error) {
		unlock := r.lock(key)
		defer unlock()
		return r.resolve(ctx, ref, originRegistryID, dryRun)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) lock(key string) func() {
	m, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *Resolver) resolve(ctx context.Context, ref registry.ParentRef, origin string, dryRun bool) (string, error) {
	ctx = logging.WithStudio(ctx, "", ref.Name)
	log := logging.Ctx(ctx)
	log.Debug().Str("remote_id", ref.RemoteID).Str("origin", origin).Msg("Looking for parent studio")

	refs := r.discover(ctx, ref, origin)

	studios, err := r.studios(ctx)
	if err != nil {
		return "", err
	}

	existing := findAnyRef(studios, refs)
	how := "ref"
	if existing == nil {
		existing = catalog.FindByName(studios, ref.Name)
		how = "name"
	}
	if existing != nil {
		log.Info().Str("parent_id", existing.ID).Str("matched_by", how).Msg("Found existing parent studio")
		if err := r.addMissingRefs(ctx, existing, refs, dryRun); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	if dryRun {
		id := Placeholder(origin, ref.RemoteID)
		// later lookups through any of refs must land on the same placeholder
		r.record(&catalog.Studio{ID: id, Name: ref.Name, ExternalRefs: refs})
		log.Info().Str("parent_id", id).Int("refs", len(refs)).Msg("[DRY RUN] Would create parent studio")
		return id, nil
	}

	input := catalog.StudioInput{Name: ref.Name, ExternalRefs: refs, Image: r.image(ctx, refs)}
	created, err := r.catalog.CreateStudio(ctx, input)
	if err != nil {
		return "", errors.WrapResource("create", "parent studio", ref.Name, err)
	}
	r.Observe(created)
	log.Info().Str("parent_id", created.ID).Int("refs", len(refs)).Msg("Created parent studio")
	return created.ID, nil
}

// discover collects the parent's ref in every registry: the origin's known
// id, plus each other registry's accepted best candidate.
func (r *Resolver) discover(ctx context.Context, ref registry.ParentRef, origin string) catalog.ExternalRefs {
	refs := catalog.ExternalRefs{{RegistryID: origin, RemoteID: ref.RemoteID}}
	for _, s := range r.agg.SearchAll(ctx, ref.Name) {
		if s.Registry.ID == origin {
			continue
		}
		best, ok := r.agg.Matcher().Best(logging.WithRegistry(ctx, s.Registry.DisplayName()), ref.Name, s.Candidates)
		if !ok {
			continue
		}
		refs, _ = refs.Upsert(s.Registry.ID, best.Candidate.RemoteID)
	}
	return refs
}

func findAnyRef(studios []*catalog.Studio, refs catalog.ExternalRefs) *catalog.Studio {
	for _, s := range studios {
		for _, ref := range refs {
			if s.ExternalRefs.Contains(ref.RegistryID, ref.RemoteID) {
				return s
			}
		}
	}
	return nil
}

func (r *Resolver) addMissingRefs(ctx context.Context, s *catalog.Studio, refs catalog.ExternalRefs, dryRun bool) error {
	merged, changed := s.ExternalRefs.AddMissing(refs)
	if !changed {
		return nil
	}
	log := logging.Ctx(ctx)
	if dryRun {
		virtual := s.Clone()
		virtual.ExternalRefs = merged
		r.record(virtual)
		log.Info().Str("parent_id", s.ID).Int("refs", len(merged)).Msg("[DRY RUN] Would add refs to parent studio")
		return nil
	}
	updated, err := r.catalog.UpdateStudio(ctx, catalog.StudioUpdate{ID: s.ID, ExternalRefs: merged})
	if err != nil {
		return errors.WrapResource("update", "parent studio", s.ID, err)
	}
	r.Observe(updated)
	log.Info().Str("parent_id", s.ID).Int("refs", len(merged)).Msg("Added refs to parent studio")
	return nil
}

// image fetches the first available image, trying refs in order.
func (r *Resolver) image(ctx context.Context, refs catalog.ExternalRefs) string {
	for _, ref := range refs {
		c, ok := r.agg.Client(ref.RegistryID)
		if !ok {
			continue
		}
		d, err := c.Fetch(ctx, ref.RemoteID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("registry", ref.RegistryID).Msg("Fetching parent image failed")
			continue
		}
		if img := d.Image(); registry.ValidURL(img) {
			return img
		}
	}
	return ""
}

func (r *Resolver) studios(ctx context.Context) ([]*catalog.Studio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		all, err := r.catalog.AllStudios(ctx)
		if err != nil {
			return nil, errors.WrapResource("list", "studios", "", err)
		}
		r.snapshot, r.loaded = all, true
	}
	return append([]*catalog.Studio(nil), r.snapshot...), nil
}

// Observe records a created or updated studio in the snapshot used for
// lookups.
func (r *Resolver) Observe(s *catalog.Studio) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.touched[s.ID] = true
	r.mu.Unlock()
	r.record(s)
}

// record puts s in the snapshot without marking it touched. Dry runs use it
// for studios that exist only in the plan.
func (r *Resolver) record(s *catalog.Studio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return
	}
	c := s.Clone()
	for i, old := range r.snapshot {
		if old.ID == s.ID {
			r.snapshot[i] = c
			return
		}
	}
	r.snapshot = append(r.snapshot, c)
}

// Touched reports whether the studio was created or updated through the
// resolver, so copies read before that are stale.
func (r *Resolver) Touched(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched[id]
}

// Refresh drops the snapshot so the next lookup reloads every studio.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot, r.loaded = nil, false
}
