package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTo(t *testing.T) {
	s := "blacked"
	p := To(s)
	assert.Equal(t, s, *p)
	assert.NotSame(t, &s, p)

	type studioID string
	assert.Equal(t, studioID("42"), *To(studioID("42")))
}

func TestString(t *testing.T) {
	assert.Equal(t, "", *String(""), "empty string clears a field")
	assert.Equal(t, "https://vixen.com", *String("https://vixen.com"))
}

func TestApply(t *testing.T) {
	name := "Tushy"
	assert.False(t, Apply(&name, nil))
	assert.Equal(t, "Tushy", name)

	assert.True(t, Apply(&name, String("Tushy Raw")))
	assert.Equal(t, "Tushy Raw", name)

	assert.True(t, Apply(&name, String("")))
	assert.Empty(t, name)
}

func TestValue(t *testing.T) {
	assert.Equal(t, "", Value[string](nil))
	assert.Equal(t, 7, Value(To(7)))
}
