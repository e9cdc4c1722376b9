package catalog

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/agentstation/studiosync/internal/transport"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

const studioFields = `
		id
		name
		url
		image_path
		parent_studio { id }
		stash_ids { endpoint stash_id }`

var (
	findStudioQuery = `query FindStudio($id: ID!) {
	findStudio(id: $id) {` + studioFields + `
	}
}`

	allStudiosQuery = `query AllStudios {
	allStudios {` + studioFields + `
	}
}`

	studioUpdateMutation = `mutation StudioUpdate($input: StudioUpdateInput!) {
	studioUpdate(input: $input) {` + studioFields + `
	}
}`

	studioCreateMutation = `mutation StudioCreate($input: StudioCreateInput!) {
	studioCreate(input: $input) {` + studioFields + `
	}
}`

	stashBoxesQuery = `query Configuration {
	configuration {
		general {
			stashBoxes { endpoint api_key name }
		}
	}
}`
)

// Connection locates a Stash server.
type Connection struct {
	Scheme string
	Host   string
	Port   int
	APIKey string
}

// URL returns the GraphQL endpoint of the server.
func (c Connection) URL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = constants.DefaultStashScheme
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = constants.DefaultStashHost
	}
	port := c.Port
	if port == 0 {
		port = constants.DefaultStashPort
	}
	return fmt.Sprintf("%s://%s/graphql", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// Stash is a Catalog backed by a Stash server's GraphQL API.
type Stash struct {
	client   *transport.Client
	endpoint string
}

var _ Catalog = (*Stash)(nil)

// NewStash creates a catalog client for the given server.
func NewStash(conn Connection, opts ...transport.Option) *Stash {
	return &Stash{
		client:   transport.New("stash", transport.StashAuth(), conn.APIKey, opts...),
		endpoint: conn.URL(),
	}
}

// Endpoint returns the GraphQL URL in use.
func (s *Stash) Endpoint() string {
	return s.endpoint
}

type stashStudio struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URL          *string      `json:"url"`
	ImagePath    *string      `json:"image_path"`
	ParentStudio *struct {
		ID string `json:"id"`
	} `json:"parent_studio"`
	StashIDs []ExternalRef `json:"stash_ids"`
}

func (s *stashStudio) toStudio() *Studio {
	if s == nil {
		return nil
	}
	st := &Studio{ID: s.ID, Name: s.Name, ExternalRefs: s.StashIDs}
	if s.URL != nil {
		st.URL = *s.URL
	}
	if s.ImagePath != nil && !isDefaultImage(*s.ImagePath) {
		st.ImageRef = *s.ImagePath
	}
	if s.ParentStudio != nil {
		st.ParentID = s.ParentStudio.ID
	}
	return st
}

// isDefaultImage detects the placeholder Stash serves for studios without artwork.
func isDefaultImage(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Query().Get("default") == "true"
}

// FindStudio implements Catalog.
func (s *Stash) FindStudio(ctx context.Context, id string) (*Studio, error) {
	var out struct {
		FindStudio *stashStudio `json:"findStudio"`
	}
	if err := s.client.GraphQL(ctx, s.endpoint, findStudioQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, errors.WrapResource("find", "studio", id, err)
	}
	return out.FindStudio.toStudio(), nil
}

// AllStudios implements Catalog.
func (s *Stash) AllStudios(ctx context.Context) ([]*Studio, error) {
	var out struct {
		AllStudios []*stashStudio `json:"allStudios"`
	}
	if err := s.client.GraphQL(ctx, s.endpoint, allStudiosQuery, nil, &out); err != nil {
		return nil, errors.WrapResource("list", "studios", "", err)
	}
	studios := make([]*Studio, 0, len(out.AllStudios))
	for _, st := range out.AllStudios {
		if st != nil {
			studios = append(studios, st.toStudio())
		}
	}
	logging.Ctx(ctx).Debug().Int("count", len(studios)).Msg("Loaded studios from host")
	return studios, nil
}

// UpdateStudio implements Catalog.
func (s *Stash) UpdateStudio(ctx context.Context, update StudioUpdate) (*Studio, error) {
	if update.ID == "" {
		return nil, errors.NewValidationError("id", update.ID, "studio id is required")
	}
	input := map[string]any{"id": update.ID}
	setOptional(input, "name", update.Name)
	setOptional(input, "url", update.URL)
	setOptional(input, "image", update.Image)
	if update.ParentID != nil {
		if *update.ParentID == "" {
			input["parent_id"] = nil
		} else {
			input["parent_id"] = *update.ParentID
		}
	}
	if update.ExternalRefs != nil {
		input["stash_ids"] = update.ExternalRefs
	}

	var out struct {
		StudioUpdate *stashStudio `json:"studioUpdate"`
	}
	if err := s.client.GraphQL(ctx, s.endpoint, studioUpdateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, errors.WrapResource("update", "studio", update.ID, err)
	}
	if out.StudioUpdate == nil {
		return nil, errors.NewNotFoundError("studio", update.ID)
	}
	return out.StudioUpdate.toStudio(), nil
}

// CreateStudio implements Catalog.
func (s *Stash) CreateStudio(ctx context.Context, in StudioInput) (*Studio, error) {
	if in.Name == "" {
		return nil, errors.NewValidationError("name", in.Name, "studio name is required")
	}
	input := map[string]any{"name": in.Name}
	if in.URL != "" {
		input["url"] = in.URL
	}
	if in.ParentID != "" {
		input["parent_id"] = in.ParentID
	}
	if in.Image != "" {
		input["image"] = in.Image
	}
	if len(in.ExternalRefs) > 0 {
		input["stash_ids"] = in.ExternalRefs
	}

	var out struct {
		StudioCreate *stashStudio `json:"studioCreate"`
	}
	if err := s.client.GraphQL(ctx, s.endpoint, studioCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, errors.WrapResource("create", "studio", in.Name, err)
	}
	if out.StudioCreate == nil {
		return nil, errors.NewResourceError("create", "studio", in.Name, errors.New("host returned no studio"))
	}
	return out.StudioCreate.toStudio(), nil
}

// StashBoxes implements Catalog.
func (s *Stash) StashBoxes(ctx context.Context) ([]StashBox, error) {
	var out struct {
		Configuration struct {
			General struct {
				StashBoxes []StashBox `json:"stashBoxes"`
			} `json:"general"`
		} `json:"configuration"`
	}
	if err := s.client.GraphQL(ctx, s.endpoint, stashBoxesQuery, nil, &out); err != nil {
		return nil, errors.WrapResource("read", "configuration", "stashBoxes", err)
	}
	return out.Configuration.General.StashBoxes, nil
}

func setOptional(input map[string]any, key string, v *string) {
	if v != nil {
		input[key] = *v
	}
}
