package differ

// Option is a functional option for configuring a Differ.
type Option func(*Differ)

// WithApplyStrategy filters the reported changes.
func WithApplyStrategy(s ApplyStrategy) Option {
	return func(d *Differ) {
		d.strategy = s
	}
}
