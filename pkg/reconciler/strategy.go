package reconciler

import (
	"fmt"

	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/errors"
)

// StrategyType names a conflict resolution strategy.
type StrategyType string

const (
	// StrategyTypeFieldAuthority ranks registries by per-field priority.
	StrategyTypeFieldAuthority StrategyType = "field-authority"
	// StrategyTypeRegistryOrder takes the first registry that supplies a value.
	StrategyTypeRegistryOrder StrategyType = "registry-order"
)

// Valid reports whether t names a known strategy.
func (t StrategyType) Valid() bool {
	return t == StrategyTypeFieldAuthority || t == StrategyTypeRegistryOrder
}

// NewStrategy builds the strategy t names. authorities only matter to the
// field authority strategy.
func NewStrategy(t StrategyType, authorities authority.Authority) (Strategy, error) {
	switch t {
	case StrategyTypeFieldAuthority:
		return NewAuthorityStrategy(authorities), nil
	case StrategyTypeRegistryOrder:
		return NewRegistryOrderStrategy(), nil
	}
	return nil, errors.NewValidationError("strategy", t, "unknown strategy")
}

// Value is one registry's candidate value for a field.
type Value struct {
	Registry string
	Value    string
}

// Strategy decides which registry's value wins for a field.
type Strategy interface {
	Type() StrategyType

	// ResolveConflict returns the index of the winning value and why it
	// won, or -1 when values is empty.
	ResolveConflict(field string, values []Value) (int, string)
}

type authorityStrategy struct {
	authorities authority.Authority
}

// NewAuthorityStrategy picks the registry with the highest priority for the
// field. Equal priorities keep the order values were supplied in.
func NewAuthorityStrategy(authorities authority.Authority) Strategy {
	return authorityStrategy{authorities: authorities}
}

func (authorityStrategy) Type() StrategyType { return StrategyTypeFieldAuthority }

func (s authorityStrategy) ResolveConflict(field string, values []Value) (int, string) {
	best, bestPriority := -1, 0
	for i, v := range values {
		if p := authority.Priority(s.authorities, field, v.Registry); best == -1 || p > bestPriority {
			best, bestPriority = i, p
		}
	}
	switch {
	case best == -1:
		return -1, ""
	case bestPriority > 0:
		return best, fmt.Sprintf("authority (priority %d)", bestPriority)
	default:
		return best, "first registry"
	}
}

type registryOrderStrategy struct{}

// NewRegistryOrderStrategy makes configuration order win.
func NewRegistryOrderStrategy() Strategy {
	return registryOrderStrategy{}
}

func (registryOrderStrategy) Type() StrategyType { return StrategyTypeRegistryOrder }

func (registryOrderStrategy) ResolveConflict(_ string, values []Value) (int, string) {
	if len(values) == 0 {
		return -1, ""
	}
	return 0, "first registry"
}
