// Package differ compares a local studio with its reconciled target and
// reports the field changes between them.
package differ

import (
	"fmt"
	"strings"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a value was added where none existed.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a value was replaced.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a value was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`                     // Field path (e.g. "url", "stash_ids[https://stashdb.org/graphql]")
	OldValue string     `json:"old_value,omitempty" yaml:"old_value"` // Previous value
	NewValue string     `json:"new_value,omitempty" yaml:"new_value"` // New value
	Type     ChangeType `json:"type" yaml:"type"`                     // Type of change
	Source   string     `json:"source,omitempty" yaml:"source"`       // Registry that supplied the value
}

// String renders the change on one line.
func (c FieldChange) String() string {
	var b strings.Builder
	switch c.Type {
	case ChangeTypeAdd:
		fmt.Fprintf(&b, "+ %s: %s", c.Path, truncateString(c.NewValue, 80))
	case ChangeTypeRemove:
		fmt.Fprintf(&b, "- %s: %s", c.Path, truncateString(c.OldValue, 80))
	default:
		fmt.Fprintf(&b, "~ %s: %s -> %s", c.Path, truncateString(c.OldValue, 60), truncateString(c.NewValue, 60))
	}
	if c.Source != "" {
		fmt.Fprintf(&b, " (from %s)", c.Source)
	}
	return b.String()
}

// Changes is the ordered change list of one studio.
type Changes []FieldChange

// HasChanges returns true if there is at least one change.
func (c Changes) HasChanges() bool {
	return len(c) > 0
}

// Count returns the number of changes of the given type.
func (c Changes) Count(t ChangeType) int {
	n := 0
	for _, fc := range c {
		if fc.Type == t {
			n++
		}
	}
	return n
}

// Has reports whether any change touches path, or a path under it when
// path ends with "[".
func (c Changes) Has(path string) bool {
	for _, fc := range c {
		if fc.Path == path || (strings.HasSuffix(path, "[") && strings.HasPrefix(fc.Path, path)) {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the changes.
func (c Changes) String() string {
	if !c.HasChanges() {
		return "No changes detected"
	}
	lines := make([]string, len(c))
	for i, fc := range c {
		lines[i] = fc.String()
	}
	return strings.Join(lines, "\n")
}

// Summary returns a one-line count summary.
func (c Changes) Summary() string {
	if !c.HasChanges() {
		return "no changes"
	}
	var parts []string
	for _, t := range []ChangeType{ChangeTypeAdd, ChangeTypeUpdate, ChangeTypeRemove} {
		if n := c.Count(t); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	return strings.Join(parts, ", ")
}

// ApplyStrategy controls which kinds of change are kept.
type ApplyStrategy string

const (
	// ApplyAll applies every change.
	ApplyAll ApplyStrategy = "all"
	// ApplyAdditive applies additions and updates, never removals.
	ApplyAdditive ApplyStrategy = "additive"
	// ApplyAdditionsOnly only fills empty fields.
	ApplyAdditionsOnly ApplyStrategy = "additions-only"
)

// ApplyStrategies lists the accepted strategies.
func ApplyStrategies() []ApplyStrategy {
	return []ApplyStrategy{ApplyAll, ApplyAdditive, ApplyAdditionsOnly}
}

// Valid reports whether s is a known strategy.
func (s ApplyStrategy) Valid() bool {
	switch s {
	case ApplyAll, ApplyAdditive, ApplyAdditionsOnly:
		return true
	}
	return false
}

// Filter returns the changes allowed by strategy.
func (c Changes) Filter(strategy ApplyStrategy) Changes {
	if strategy == ApplyAll {
		return c
	}
	var out Changes
	for _, fc := range c {
		switch {
		case fc.Type == ChangeTypeRemove:
		case strategy == ApplyAdditionsOnly && fc.Type != ChangeTypeAdd:
		default:
			out = append(out, fc)
		}
	}
	return out
}

func truncateString(s string, maxLen int) string {
	if s == "" {
		return "(none)"
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
