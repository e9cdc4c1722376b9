package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/studiosync/internal/transport"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

// TPDB is a Client for the ThePornDB sites REST API. Refs are still recorded
// under the registry's GraphQL endpoint id.
type TPDB struct {
	cfg    Config
	base   string
	client *transport.Client
}

var _ Client = (*TPDB)(nil)

// NewTPDB creates a TPDB client.
func NewTPDB(cfg Config, opts ...Option) *TPDB {
	o := buildOptions(opts)
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = constants.TPDBRESTURL
	}
	return &TPDB{
		cfg:    cfg,
		base:   base,
		client: transport.New(cfg.DisplayName(), transport.BearerAuth{}, cfg.APIKey, o.transport...),
	}
}

// Config implements Client.
func (t *TPDB) Config() Config {
	return t.cfg
}

type tpdbRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (r *tpdbRef) ref() *ParentRef {
	if r == nil || strings.TrimSpace(r.UUID) == "" {
		return nil
	}
	return &ParentRef{RemoteID: r.UUID, Name: r.Name}
}

type tpdbSite struct {
	UUID     string      `json:"uuid"`
	Name     string      `json:"name"`
	URL      string      `json:"url"`
	Logo     string      `json:"logo"`
	Poster   string      `json:"poster"`
	Favicon  string      `json:"favicon"`
	ParentID json.Number `json:"parent_id"`
	Parent   *tpdbRef    `json:"parent"`
	Network  *tpdbRef    `json:"network"`
}

// parent prefers the direct parent over the network.
func (s *tpdbSite) parent() *ParentRef {
	if p := s.Parent.ref(); p != nil {
		return p
	}
	return s.Network.ref()
}

// Search implements Client.
func (t *TPDB) Search(ctx context.Context, name string) ([]Candidate, error) {
	ctx = logging.WithRegistry(ctx, t.cfg.DisplayName())
	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", strconv.Itoa(constants.TPDBSearchLimit))
	q.Set("sort", "name")
	q.Set("status", "active")
	q.Set("include", "parent,network")
	q.Set("order", "desc")

	var out struct {
		Data []tpdbSite `json:"data"`
	}
	if err := t.client.GetJSON(ctx, t.base+"/sites?"+q.Encode(), constants.RESTTimeout, &out); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(out.Data))
	for i := range out.Data {
		site := &out.Data[i]
		if strings.TrimSpace(site.UUID) == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			RemoteID:   site.UUID,
			Name:       site.Name,
			RegistryID: t.cfg.ID,
			Parent:     site.parent(),
		})
	}
	logging.Ctx(ctx).Debug().Str("term", name).Int("results", len(candidates)).Msg("Searched registry")
	return candidates, nil
}

func (t *TPDB) site(ctx context.Context, id string) (*tpdbSite, error) {
	var out struct {
		Data *tpdbSite `json:"data"`
	}
	err := t.client.GetJSON(ctx, t.base+"/sites/"+url.PathEscape(id), constants.RESTTimeout, &out)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.Data, nil
}

// Fetch implements Client.
func (t *TPDB) Fetch(ctx context.Context, remoteID string) (*Detail, error) {
	ctx = logging.WithRegistry(ctx, t.cfg.DisplayName())
	site, err := t.site(ctx, remoteID)
	if err != nil || site == nil || strings.TrimSpace(site.UUID) == "" {
		return nil, err
	}

	parent := site.parent()
	if parent == nil && site.ParentID != "" && site.ParentID != "0" {
		// the parent was not embedded, look it up by its numeric id
		p, err := t.site(ctx, site.ParentID.String())
		switch {
		case err != nil:
			logging.Ctx(ctx).Warn().Err(err).Str("parent_id", site.ParentID.String()).Msg("Failed to resolve parent site")
		case p != nil && p.UUID != "":
			parent = &ParentRef{RemoteID: p.UUID, Name: p.Name}
		}
	}

	return &Detail{
		RemoteID:   site.UUID,
		Name:       site.Name,
		RegistryID: t.cfg.ID,
		HomeURL:    cleanURL(site.URL),
		Images: normalizeImages([]asset{
			{URL: site.Logo, Tag: "logo"},
			{URL: site.Poster, Tag: "poster"},
			{URL: site.Favicon},
		}),
		Parent: parent,
	}, nil
}
