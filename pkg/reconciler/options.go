package reconciler

import (
	"fmt"

	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/errors"
)

type options struct {
	strategy    StrategyType
	primary     string
	authorities []authority.Field
	apply       differ.ApplyStrategy
}

func defaultOptions() *options {
	return &options{
		strategy: StrategyTypeFieldAuthority,
		apply:    differ.ApplyAll,
	}
}

// Option is a function that configures a Merger.
type Option func(*options) error

func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithStrategy sets the conflict resolution strategy.
func WithStrategy(t StrategyType) Option {
	return func(o *options) error {
		if !t.Valid() {
			return errors.NewValidationError("strategy", t,
				fmt.Sprintf("must be %s or %s", StrategyTypeFieldAuthority, StrategyTypeRegistryOrder))
		}
		o.strategy = t
		return nil
	}
}

// WithPrimaryRegistry makes registryID authoritative for every field.
func WithPrimaryRegistry(registryID string) Option {
	return func(o *options) error {
		o.primary = registryID
		return nil
	}
}

// WithAuthorities adds per-field priorities on top of the primary registry.
func WithAuthorities(fields ...authority.Field) Option {
	return func(o *options) error {
		for _, f := range fields {
			if f.Path == "" || f.Registry == "" {
				return errors.NewValidationError("authority", f, "needs a path and a registry")
			}
		}
		o.authorities = append(o.authorities, fields...)
		return nil
	}
}

// WithApplyStrategy limits which kinds of change a plan applies.
func WithApplyStrategy(s differ.ApplyStrategy) Option {
	return func(o *options) error {
		if !s.Valid() {
			return errors.NewValidationError("apply", s,
				fmt.Sprintf("must be one of %v", differ.ApplyStrategies()))
		}
		o.apply = s
		return nil
	}
}
