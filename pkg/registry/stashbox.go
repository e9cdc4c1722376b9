package registry

import (
	"context"
	"strings"

	"github.com/agentstation/studiosync/internal/transport"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

const (
	searchStudioQuery = `query SearchStudio($term: String!) {
	searchStudio(term: $term) {
		id
		name
		parent { id name }
	}
}`

	findStudioQuery = `query FindStudio($id: ID!) {
	findStudio(id: $id) {
		id
		name
		urls { url type }
		parent { id name }
		images { url }
	}
}`
)

// StashBox is a Client for stash-box GraphQL servers.
type StashBox struct {
	cfg    Config
	client *transport.Client
}

var _ Client = (*StashBox)(nil)

// NewStashBox creates a stash-box client.
func NewStashBox(cfg Config, opts ...Option) *StashBox {
	o := buildOptions(opts)
	return &StashBox{
		cfg:    cfg,
		client: transport.New(cfg.DisplayName(), transport.StashAuth(), cfg.APIKey, o.transport...),
	}
}

// Config implements Client.
func (s *StashBox) Config() Config {
	return s.cfg
}

type stashBoxParent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *stashBoxParent) ref() *ParentRef {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil
	}
	return &ParentRef{RemoteID: p.ID, Name: p.Name}
}

// Search implements Client.
func (s *StashBox) Search(ctx context.Context, name string) ([]Candidate, error) {
	ctx = logging.WithRegistry(ctx, s.cfg.DisplayName())
	var out struct {
		SearchStudio []struct {
			ID     string          `json:"id"`
			Name   string          `json:"name"`
			Parent *stashBoxParent `json:"parent"`
		} `json:"searchStudio"`
	}
	err := s.client.GraphQL(ctx, s.cfg.ID, searchStudioQuery, map[string]any{"term": name}, &out)
	if err != nil {
		if errors.IsProtocol(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("term", name).Msg("Registry rejected search")
			return nil, nil
		}
		return nil, err
	}

	candidates := make([]Candidate, 0, len(out.SearchStudio))
	for _, r := range out.SearchStudio {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			RemoteID:   r.ID,
			Name:       r.Name,
			RegistryID: s.cfg.ID,
			Parent:     r.Parent.ref(),
		})
	}
	logging.Ctx(ctx).Debug().Str("term", name).Int("results", len(candidates)).Msg("Searched registry")
	return candidates, nil
}

// Fetch implements Client.
func (s *StashBox) Fetch(ctx context.Context, remoteID string) (*Detail, error) {
	ctx = logging.WithRegistry(ctx, s.cfg.DisplayName())
	var out struct {
		FindStudio *struct {
			ID     string          `json:"id"`
			Name   string          `json:"name"`
			URLs   []typedURL      `json:"urls"`
			Parent *stashBoxParent `json:"parent"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"findStudio"`
	}
	err := s.client.GraphQL(ctx, s.cfg.ID, findStudioQuery, map[string]any{"id": remoteID}, &out)
	if err != nil {
		if errors.IsProtocol(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("remote_id", remoteID).Msg("Registry rejected lookup")
			return nil, nil
		}
		return nil, err
	}

	st := out.FindStudio
	if st == nil || strings.TrimSpace(st.ID) == "" {
		return nil, nil
	}
	assets := make([]asset, len(st.Images))
	for i, img := range st.Images {
		assets[i] = asset{URL: img.URL}
	}
	return &Detail{
		RemoteID:   st.ID,
		Name:       st.Name,
		RegistryID: s.cfg.ID,
		HomeURL:    pickHomeURL(st.URLs),
		Images:     normalizeImages(assets),
		Parent:     st.Parent.ref(),
	}, nil
}
