package reconciler

import (
	"fmt"
	"strings"

	"github.com/agentstation/studiosync/internal/utils/ptr"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/registry"
)

// ParentSource is the remote parent chosen for a studio, still to be
// resolved to a local id.
type ParentSource struct {
	Registry string             `json:"registry" yaml:"registry"`
	Ref      registry.ParentRef `json:"ref" yaml:"ref"`
}

// Plan is the reconciled target state of one studio and the changes that
// lead there from the local record.
type Plan struct {
	StudioID string            `json:"studio_id" yaml:"studio_id"`
	Existing catalog.Studio    `json:"existing" yaml:"existing"`
	Target   catalog.Studio    `json:"target" yaml:"target"`
	Parent   *ParentSource     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Sources  map[string]string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Changes  differ.Changes    `json:"changes" yaml:"changes"`
	Force    bool              `json:"force,omitempty" yaml:"force,omitempty"`

	differ *differ.Differ
}

// IsNoop reports whether the plan changes nothing.
func (p *Plan) IsNoop() bool {
	return !p.Changes.HasChanges()
}

// SetParentID records the resolved local parent and recomputes the changes.
// An empty id leaves the parent untouched.
func (p *Plan) SetParentID(id string) {
	if id == "" || id == p.StudioID {
		return
	}
	p.Target.ParentID = id
	if p.Parent != nil {
		p.Sources[differ.PathParentID] = p.Parent.Registry
	}
	p.diff()
}

func (p *Plan) diff() {
	if p.differ == nil {
		p.differ = differ.New()
	}
	p.Changes = p.differ.Studio(p.Existing, p.Target, p.Sources)
}

// Update returns the partial update that applies the plan. Only changed
// fields are set.
func (p *Plan) Update() catalog.StudioUpdate {
	u := catalog.StudioUpdate{ID: p.StudioID}
	if p.Changes.Has(differ.PathName) {
		u.Name = ptr.String(p.Target.Name)
	}
	if p.Changes.Has(differ.PathURL) {
		u.URL = ptr.String(p.Target.URL)
	}
	if p.Changes.Has(differ.PathImage) {
		u.Image = ptr.String(p.Target.ImageRef)
	}
	if p.Changes.Has(differ.PathParentID) {
		u.ParentID = ptr.String(p.Target.ParentID)
	}
	if p.Changes.Has(differ.PathRefs) {
		u.ExternalRefs = p.refs()
	}
	return u
}

// refs applies the ref changes that survived the apply strategy to the
// existing refs. A registry that is touched ends up with exactly its target
// ref, or none.
func (p *Plan) refs() catalog.ExternalRefs {
	out := p.Existing.ExternalRefs.Clone()
	for _, c := range p.Changes {
		id, ok := differ.RefRegistry(c.Path)
		if !ok {
			continue
		}
		if remote, ok := p.Target.ExternalRefs.Get(id); ok {
			out, _ = out.Upsert(id, remote)
		} else {
			out = out.Remove(id)
		}
	}
	return out
}

// String renders the plan for logs and dry-run reports.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): ", p.Existing.Name, p.StudioID)
	if p.IsNoop() {
		b.WriteString("no changes")
		return b.String()
	}
	b.WriteString(p.Changes.Summary())
	if p.Force {
		b.WriteString(" (forced)")
	}
	for _, c := range p.Changes {
		b.WriteString("\n  ")
		b.WriteString(c.String())
	}
	return b.String()
}
