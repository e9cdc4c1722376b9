// Package reconciler merges the registry matches of a studio with its local
// record into a Plan.
//
// Without force, url and image are only filled when the local value is
// empty, the parent only when none is linked, and the name never changes.
// With force, fetched values override. When several registries supply a
// field, the Strategy picks the winner; by default the primary registry,
// then configuration order. External refs are always upserted, one per
// registry, so a changed remote id replaces the old entry.
package reconciler

import (
	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Merger builds plans.
type Merger struct {
	strategy Strategy
	differ   *differ.Differ
}

// New creates a Merger.
func New(opts ...Option) (*Merger, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	strategy, err := NewStrategy(o.strategy, authority.New(o.primary, o.authorities...))
	if err != nil {
		return nil, err
	}
	return &Merger{strategy: strategy, differ: differ.New(differ.WithApplyStrategy(o.apply))}, nil
}

// Strategy returns the conflict resolution strategy in use.
func (m *Merger) Strategy() Strategy {
	return m.strategy
}

// Merge combines matches with existing. Matches without detail are ignored.
// The parent is only chosen, not resolved; see Plan.SetParentID.
func (m *Merger) Merge(existing *catalog.Studio, matches []aggregator.Match, force bool) *Plan {
	p := &Plan{
		StudioID: existing.ID,
		Existing: *existing.Clone(),
		Target:   *existing.Clone(),
		Sources:  make(map[string]string),
		Force:    force,
		differ:   m.differ,
	}

	details := make([]*registry.Detail, 0, len(matches))
	for _, match := range matches {
		if match.Detail == nil {
			continue
		}
		d := *match.Detail
		d.RegistryID = match.RegistryID()
		details = append(details, &d)
	}

	if force {
		if v, src, ok := m.pick(authority.FieldName, details, func(d *registry.Detail) string {
			return d.Name
		}); ok {
			p.Target.Name = v
			p.Sources[differ.PathName] = src
		}
	}

	if existing.URL == "" || force {
		if v, src, ok := m.pick(authority.FieldURL, details, func(d *registry.Detail) string {
			if registry.ValidURL(d.HomeURL) {
				return d.HomeURL
			}
			return ""
		}); ok {
			p.Target.URL = v
			p.Sources[differ.PathURL] = src
		}
	}

	if existing.ImageRef == "" || force {
		if v, src, ok := m.pick(authority.FieldImage, details, func(d *registry.Detail) string {
			if img := d.Image(); registry.ValidURL(img) {
				return img
			}
			return ""
		}); ok {
			p.Target.ImageRef = v
			p.Sources[differ.PathImage] = src
		}
	}

	if !existing.HasParent() || force {
		p.Parent = m.parent(details)
	}

	for _, d := range details {
		if d.RemoteID == "" {
			continue
		}
		p.Target.ExternalRefs, _ = p.Target.ExternalRefs.Upsert(d.RegistryID, d.RemoteID)
	}

	p.diff()
	return p
}

func (m *Merger) pick(field string, details []*registry.Detail, get func(*registry.Detail) string) (string, string, bool) {
	values := make([]Value, 0, len(details))
	for _, d := range details {
		if v := get(d); v != "" {
			values = append(values, Value{Registry: d.RegistryID, Value: v})
		}
	}
	i, _ := m.strategy.ResolveConflict(field, values)
	if i < 0 {
		return "", "", false
	}
	return values[i].Value, values[i].Registry, true
}

func (m *Merger) parent(details []*registry.Detail) *ParentSource {
	var (
		values  []Value
		parents []registry.ParentRef
	)
	for _, d := range details {
		if d.Parent == nil || d.Parent.RemoteID == "" || d.Parent.Name == "" {
			continue
		}
		values = append(values, Value{Registry: d.RegistryID, Value: d.Parent.RemoteID})
		parents = append(parents, *d.Parent)
	}
	i, _ := m.strategy.ResolveConflict(authority.FieldParent, values)
	if i < 0 {
		return nil
	}
	return &ParentSource{Registry: values[i].Registry, Ref: parents[i]}
}
