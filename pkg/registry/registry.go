// Package registry talks to remote studio metadata registries: stash-box
// GraphQL servers and the ThePornDB REST API. Both are normalized into the
// same Candidate and Detail shapes.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
)

// Kind selects the wire protocol of a registry.
type Kind string

// Registry kinds.
const (
	KindStashBox Kind = "stash-box"
	KindTPDB     Kind = "tpdb"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the kind names used in config files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stash-box", "stashbox", "stash_box":
		return KindStashBox, nil
	case "tpdb", "theporndb":
		return KindTPDB, nil
	}
	return "", errors.NewValidationError("kind", s, "unknown registry kind")
}

// KindForEndpoint infers the kind from an endpoint URL.
func KindForEndpoint(endpoint string) Kind {
	if strings.Contains(strings.ToLower(endpoint), constants.TPDBHostMarker) {
		return KindTPDB
	}
	return KindStashBox
}

// Config describes one registry. ID is the endpoint URL under which the
// host records cross references.
type Config struct {
	ID     string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`
	Kind   Kind   `json:"kind" yaml:"kind" mapstructure:"kind"`

	// BaseURL overrides the REST base for TPDB. Empty uses the public API.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// Credentialed reports whether an API key is configured.
func (c Config) Credentialed() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// DisplayName returns Name, falling back to the endpoint.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Validate checks the fields required to build a client.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.NewValidationError("endpoint", c.ID, "registry endpoint is required")
	}
	if c.Kind != KindStashBox && c.Kind != KindTPDB {
		return errors.NewValidationError("kind", c.Kind, "unknown registry kind")
	}
	return nil
}

// ParentRef points at a parent studio inside the same registry.
type ParentRef struct {
	RemoteID string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
}

// Candidate is a search hit.
type Candidate struct {
	RemoteID   string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	RegistryID string     `json:"registry" yaml:"registry"`
	Parent     *ParentRef `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Detail is the full remote record of a studio.
type Detail struct {
	RemoteID   string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	RegistryID string     `json:"registry" yaml:"registry"`
	HomeURL    string     `json:"url,omitempty" yaml:"url,omitempty"`
	Images     []string   `json:"images,omitempty" yaml:"images,omitempty"`
	Parent     *ParentRef `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Image returns the preferred image, if any.
func (d *Detail) Image() string {
	if d == nil || len(d.Images) == 0 {
		return ""
	}
	return d.Images[0]
}

// Client searches and fetches studios in one registry.
//
// Fetch returns (nil, nil) when the registry has no studio with that id.
type Client interface {
	Config() Config
	Search(ctx context.Context, name string) ([]Candidate, error)
	Fetch(ctx context.Context, remoteID string) (*Detail, error)
}

// New builds the client matching cfg.Kind.
func New(cfg Config, opts ...Option) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindTPDB:
		return NewTPDB(cfg, opts...), nil
	case KindStashBox:
		return NewStashBox(cfg, opts...), nil
	}
	return nil, fmt.Errorf("registry %s: %w", cfg.ID, errors.ErrInvalidInput)
}
