package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIdentityNotName(t *testing.T) {
	a := New()
	b := New()
	require.NotEqual(t, a, b)

	a.SetName("x")
	b.SetName("x")
	// Same display name, still distinct identities.
	assert.NotSame(t, a, b)
	assert.True(t, a != b)
}

func TestLocalNameRoundTrip(t *testing.T) {
	l := New()
	_, ok := l.Name()
	assert.False(t, ok)
	assert.False(t, l.HasName())

	l.SetName("RunService")
	name, ok := l.Name()
	require.True(t, ok)
	assert.Equal(t, "RunService", name)
	assert.True(t, l.HasName())
}

func TestSetUnion(t *testing.T) {
	a, b, c := New(), New(), New()
	s1 := NewSet(a, b)
	s2 := NewSet(b, c)
	s1.Union(s2)

	assert.True(t, s1.Has(a))
	assert.True(t, s1.Has(b))
	assert.True(t, s1.Has(c))
}
