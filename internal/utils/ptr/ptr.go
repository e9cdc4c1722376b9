// Package ptr holds the pointer helpers used to build partial updates,
// where a nil field means "leave unchanged".
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return To(s)
}

// Apply stores *src into dst when src is set and reports whether it did.
func Apply[T any](dst *T, src *T) bool {
	if src == nil {
		return false
	}
	*dst = *src
	return true
}

// Value returns *p, or the zero value when p is nil.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
