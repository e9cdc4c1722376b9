// Package catalog models studios held by the local host catalog and the
// operations the sync engine needs from it.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// ExternalRef links a local studio to its record in one remote registry.
type ExternalRef struct {
	RegistryID string `json:"endpoint" yaml:"endpoint"`
	RemoteID   string `json:"stash_id" yaml:"stash_id"`
}

// ExternalRefs holds at most one ref per registry.
type ExternalRefs []ExternalRef

// Get returns the remote id recorded for registryID.
func (r ExternalRefs) Get(registryID string) (string, bool) {
	for _, ref := range r {
		if ref.RegistryID == registryID {
			return ref.RemoteID, true
		}
	}
	return "", false
}

// Has reports whether any ref exists for registryID.
func (r ExternalRefs) Has(registryID string) bool {
	_, ok := r.Get(registryID)
	return ok
}

// Contains reports whether the exact pair is present.
func (r ExternalRefs) Contains(registryID, remoteID string) bool {
	id, ok := r.Get(registryID)
	return ok && id == remoteID
}

// Clone returns an independent copy.
func (r ExternalRefs) Clone() ExternalRefs {
	if r == nil {
		return nil
	}
	out := make(ExternalRefs, len(r))
	copy(out, r)
	return out
}

// Upsert sets the remote id for a registry, replacing any previous one.
// The receiver is not modified. The bool reports whether anything changed.
func (r ExternalRefs) Upsert(registryID, remoteID string) (ExternalRefs, bool) {
	out := make(ExternalRefs, 0, len(r)+1)
	changed, seen := false, false
	for _, ref := range r {
		if ref.RegistryID != registryID {
			out = append(out, ref)
			continue
		}
		if seen {
			// collapse duplicates left behind by other tools
			changed = true
			continue
		}
		seen = true
		if ref.RemoteID != remoteID {
			changed = true
		}
		out = append(out, ExternalRef{RegistryID: registryID, RemoteID: remoteID})
	}
	if !seen {
		out = append(out, ExternalRef{RegistryID: registryID, RemoteID: remoteID})
		changed = true
	}
	return out, changed
}

// Remove returns a copy without any ref for registryID.
func (r ExternalRefs) Remove(registryID string) ExternalRefs {
	out := make(ExternalRefs, 0, len(r))
	for _, ref := range r {
		if ref.RegistryID != registryID {
			out = append(out, ref)
		}
	}
	return out
}

// AddMissing adds refs for registries not yet present. Existing entries win.
func (r ExternalRefs) AddMissing(other ExternalRefs) (ExternalRefs, bool) {
	out := r.Clone()
	changed := false
	for _, ref := range other {
		if ref.RegistryID == "" || ref.RemoteID == "" || out.Has(ref.RegistryID) {
			continue
		}
		out = append(out, ref)
		changed = true
	}
	return out, changed
}

// Studio is a studio record in the local catalog.
type Studio struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	URL          string       `json:"url,omitempty" yaml:"url,omitempty"`
	ParentID     string       `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	ExternalRefs ExternalRefs `json:"stash_ids,omitempty" yaml:"stash_ids,omitempty"`
	ImageRef     string       `json:"image_path,omitempty" yaml:"image_path,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Studio) Clone() *Studio {
	if s == nil {
		return nil
	}
	c := *s
	c.ExternalRefs = s.ExternalRefs.Clone()
	return &c
}

// HasParent reports whether a parent studio is linked.
func (s *Studio) HasParent() bool {
	return s.ParentID != ""
}

// StudioUpdate is a partial update. Nil fields are left untouched; a nil
// ExternalRefs keeps the current refs.
type StudioUpdate struct {
	ID           string
	Name         *string
	URL          *string
	ParentID     *string
	Image        *string
	ExternalRefs ExternalRefs
}

// IsEmpty reports whether the update would change nothing.
func (u StudioUpdate) IsEmpty() bool {
	return u.Name == nil && u.URL == nil && u.ParentID == nil && u.Image == nil && u.ExternalRefs == nil
}

// StudioInput describes a studio to create.
type StudioInput struct {
	Name         string
	URL          string
	ParentID     string
	Image        string
	ExternalRefs ExternalRefs
}

// StashBox is a stash-box registry configured on the host.
type StashBox struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Name     string `json:"name"`
}

// NameKey folds a studio name for case-insensitive comparison and grouping.
func NameKey(name string) string {
	// a Caser holds state, so each call gets its own
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two names are equal ignoring case and surrounding space.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
