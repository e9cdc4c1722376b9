package studiosync

import (
	"sync"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/reconciler"
)

// Hook function types for reconciliation events
type (
	// PlanHook is called for every plan built, applied or not
	PlanHook func(plan *reconciler.Plan)

	// StudioUpdatedHook is called after a plan is applied to the catalog
	StudioUpdatedHook func(old, updated catalog.Studio)
)

// hooks manages event callbacks
type hooks struct {
	mu              sync.RWMutex
	onPlan          []PlanHook
	onStudioUpdated []StudioUpdatedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnPlan registers a callback for every plan built.
func (s *Syncer) OnPlan(fn PlanHook) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onPlan = append(s.hooks.onPlan, fn)
}

// OnStudioUpdated registers a callback for when a studio is updated.
func (s *Syncer) OnStudioUpdated(fn StudioUpdatedHook) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onStudioUpdated = append(s.hooks.onStudioUpdated, fn)
}

func (h *hooks) triggerPlan(p *reconciler.Plan) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onPlan {
		hook(p)
	}
}

func (h *hooks) triggerStudioUpdated(old, updated catalog.Studio) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onStudioUpdated {
		hook(old, updated)
	}
}
