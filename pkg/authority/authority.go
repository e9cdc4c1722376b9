// Package authority decides which registry is authoritative for each studio
// field when several registries supply a value.
package authority

import (
	"path/filepath"
	"strings"

	"github.com/agentstation/studiosync/pkg/constants"
)

// Studio field paths.
const (
	FieldName   = "name"
	FieldURL    = "url"
	FieldImage  = "image"
	FieldParent = "parent"
)

// Authority determines which registry is authoritative for each field.
type Authority interface {
	// Find returns the authority configuration for a field and registry.
	Find(fieldPath, registryID string) *Field

	// List returns all configured authorities.
	List() []Field
}

// Field defines registry priority for a specific field.
type Field struct {
	Path     string `json:"path" yaml:"path"`         // e.g. "url", "*"
	Registry string `json:"registry" yaml:"registry"` // registry endpoint
	Priority int    `json:"priority" yaml:"priority"` // higher = more authoritative
}

type authorities struct {
	fields []Field
}

// New creates an Authority where primary outranks every other registry on
// every field. Extra fields are consulted alongside the default.
func New(primary string, extra ...Field) Authority {
	if primary == "" {
		primary = constants.StashDBEndpoint
	}
	fields := []Field{{Path: "*", Registry: primary, Priority: 100}}
	return &authorities{fields: append(fields, extra...)}
}

// Find returns the authority configuration for a field and registry.
func (a *authorities) Find(fieldPath, registryID string) *Field {
	return ByField(fieldPath, registryID, a.fields)
}

// List returns all configured authorities.
func (a *authorities) List() []Field {
	out := make([]Field, len(a.fields))
	copy(out, a.fields)
	return out
}

// Priority returns the priority of registryID for fieldPath, 0 when no
// authority covers it.
func Priority(a Authority, fieldPath, registryID string) int {
	if f := a.Find(fieldPath, registryID); f != nil {
		return f.Priority
	}
	return 0
}

// ByField returns the highest priority authority for a field path and
// registry.
func ByField(fieldPath, registryID string, fields []Field) *Field {
	var bestMatch *Field
	var bestPriority int
	var bestMatchLength int

	for i, f := range fields {
		if !sameRegistry(f.Registry, registryID) || !MatchesPattern(fieldPath, f.Path) {
			continue
		}
		// priority, then pattern specificity, then order
		patternLength := len(f.Path)
		if bestMatch == nil || f.Priority > bestPriority ||
			(f.Priority == bestPriority && patternLength > bestMatchLength) {
			bestMatch = &fields[i]
			bestPriority = f.Priority
			bestMatchLength = patternLength
		}
	}

	return bestMatch
}

func sameRegistry(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards).
func MatchesPattern(fieldPath, pattern string) bool {
	if fieldPath == pattern {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(fieldPath, prefix)
	}

	matched, err := filepath.Match(pattern, fieldPath)
	if err != nil {
		return false
	}
	return matched
}
