package differ

import (
	"strings"

	"github.com/agentstation/studiosync/pkg/catalog"
)

// Field paths reported by the differ.
const (
	PathName     = "name"
	PathURL      = "url"
	PathImage    = "image"
	PathParentID = "parent_id"
	PathRefs     = "stash_ids["
)

// RefPath returns the path of the external ref of a registry.
func RefPath(registryID string) string {
	return PathRefs + registryID + "]"
}

// RefRegistry returns the registry of a ref path built by RefPath.
func RefRegistry(path string) (string, bool) {
	id, ok := strings.CutPrefix(path, PathRefs)
	if !ok {
		return "", false
	}
	return strings.CutSuffix(id, "]")
}

// Differ compares studios.
type Differ struct {
	strategy ApplyStrategy
}

// New creates a Differ that reports every change.
func New(opts ...Option) *Differ {
	d := &Differ{strategy: ApplyAll}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Studio compares existing with target and drops the changes the apply
// strategy rejects. sources maps a field path to the
// registry that supplied its target value; ref changes are attributed to
// their own registry.
func (d *Differ) Studio(existing, target catalog.Studio, sources map[string]string) Changes {
	var changes Changes
	field := func(path, old, updated string) {
		if old == updated {
			return
		}
		changes = append(changes, FieldChange{
			Path:     path,
			OldValue: old,
			NewValue: updated,
			Type:     changeType(old, updated),
			Source:   sources[path],
		})
	}

	field(PathName, existing.Name, target.Name)
	field(PathURL, existing.URL, target.URL)
	field(PathImage, existing.ImageRef, target.ImageRef)
	field(PathParentID, existing.ParentID, target.ParentID)

	changes = append(changes, refs(existing.ExternalRefs, target.ExternalRefs)...)
	return changes.Filter(d.strategy)
}

func refs(existing, target catalog.ExternalRefs) Changes {
	var changes Changes
	for _, ref := range target {
		old, _ := existing.Get(ref.RegistryID)
		if old == ref.RemoteID {
			continue
		}
		changes = append(changes, FieldChange{
			Path:     RefPath(ref.RegistryID),
			OldValue: old,
			NewValue: ref.RemoteID,
			Type:     changeType(old, ref.RemoteID),
			Source:   ref.RegistryID,
		})
	}
	// every entry after the first for a registry is a duplicate to drop
	seen := make(map[string]bool, len(existing))
	for _, ref := range existing {
		dup := seen[ref.RegistryID]
		seen[ref.RegistryID] = true
		if dup || !target.Has(ref.RegistryID) {
			changes = append(changes, FieldChange{
				Path:     RefPath(ref.RegistryID),
				OldValue: ref.RemoteID,
				Type:     ChangeTypeRemove,
			})
		}
	}
	return changes
}

func changeType(old, updated string) ChangeType {
	switch {
	case old == "":
		return ChangeTypeAdd
	case updated == "":
		return ChangeTypeRemove
	default:
		return ChangeTypeUpdate
	}
}
