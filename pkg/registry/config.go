package registry

import (
	"context"
	"strings"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/logging"
)

// NormalizeEndpoint trims whitespace and trailing slashes so the same
// endpoint typed two ways dedupes to one registry.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

// Dedupe keeps the first config for every endpoint, preserving order.
// Kinds left empty are inferred from the endpoint.
func Dedupe(ctx context.Context, configs []Config) []Config {
	log := logging.Ctx(ctx)
	out := make([]Config, 0, len(configs))
	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		c.ID = NormalizeEndpoint(c.ID)
		if c.ID == "" {
			continue
		}
		if c.Kind == "" {
			c.Kind = KindForEndpoint(c.ID)
		}
		key := strings.ToLower(c.ID)
		if seen[key] {
			log.Debug().Str("endpoint", c.ID).Str("name", c.Name).Msg("Skipping duplicate registry")
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	if len(out) != len(configs) {
		log.Info().Int("configured", len(configs)).Int("unique", len(out)).Msg("Deduplicated registries")
	}
	return out
}

// FromStashBoxes converts the host's stash-box list into registry configs.
// A box on the TPDB host is switched to the REST client.
func FromStashBoxes(boxes []catalog.StashBox) []Config {
	configs := make([]Config, 0, len(boxes))
	for _, b := range boxes {
		cfg := Config{
			ID:     NormalizeEndpoint(b.Endpoint),
			Name:   b.Name,
			APIKey: b.APIKey,
			Kind:   KindForEndpoint(b.Endpoint),
		}
		if cfg.Kind == KindTPDB {
			// refs are recorded under the canonical TPDB id
			cfg.ID = constants.TPDBEndpoint
		}
		configs = append(configs, cfg)
	}
	return configs
}

// Credentialed drops configs without an API key, logging each at debug.
func Credentialed(ctx context.Context, configs []Config) []Config {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		if !c.Credentialed() {
			logging.Ctx(ctx).Debug().Str("registry", c.DisplayName()).Msg("No API key configured, skipping registry")
			continue
		}
		out = append(out, c)
	}
	return out
}

// Build creates cached clients for every config, in order.
func Build(configs []Config, opts ...Option) ([]Client, error) {
	clients := make([]Client, 0, len(configs))
	for _, cfg := range configs {
		c, err := New(cfg, opts...)
		if err != nil {
			return nil, err
		}
		clients = append(clients, NewCached(c, 0))
	}
	return clients, nil
}
