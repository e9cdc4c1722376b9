// Package testutil holds fakes shared by engine tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Registry is an in-memory registry.Client.
type Registry struct {
	mu        sync.Mutex
	cfg       registry.Config
	studios   []registry.Detail
	searchErr error
	fetchErr  error

	searches []string
	fetches  []string
}

var _ registry.Client = (*Registry)(nil)

// NewRegistry creates a credentialed stash-box style registry.
func NewRegistry(id, name string, studios ...registry.Detail) *Registry {
	r := &Registry{cfg: registry.Config{ID: id, Name: name, APIKey: "test-key", Kind: registry.KindStashBox}}
	for _, s := range studios {
		s.RegistryID = id
		r.studios = append(r.studios, s)
	}
	return r
}

// WithoutKey drops the API key.
func (r *Registry) WithoutKey() *Registry {
	r.cfg.APIKey = ""
	return r
}

// FailSearch makes every Search return err.
func (r *Registry) FailSearch(err error) *Registry {
	r.searchErr = err
	return r
}

// FailFetch makes every Fetch return err.
func (r *Registry) FailFetch(err error) *Registry {
	r.fetchErr = err
	return r
}

// Config implements registry.Client.
func (r *Registry) Config() registry.Config {
	return r.cfg
}

// Search returns every studio whose name contains the term, case-insensitively,
// in insertion order.
func (r *Registry) Search(_ context.Context, name string) ([]registry.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, name)
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	key := catalog.NameKey(name)
	var out []registry.Candidate
	for _, s := range r.studios {
		sk := catalog.NameKey(s.Name)
		if key != "" && (strings.Contains(sk, key) || strings.Contains(key, sk)) {
			out = append(out, registry.Candidate{RemoteID: s.RemoteID, Name: s.Name, RegistryID: r.cfg.ID, Parent: s.Parent})
		}
	}
	return out, nil
}

// Fetch implements registry.Client.
func (r *Registry) Fetch(_ context.Context, remoteID string) (*registry.Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, remoteID)
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	for _, s := range r.studios {
		if s.RemoteID == remoteID {
			d := s
			d.Images = append([]string(nil), s.Images...)
			return &d, nil
		}
	}
	return nil, nil
}

// Searches returns the terms searched so far.
func (r *Registry) Searches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.searches...)
}

// Fetches returns the ids fetched so far.
func (r *Registry) Fetches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fetches...)
}
