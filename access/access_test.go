package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccess_Equal(t *testing.T) {
	tests := []struct {
		name     string
		left     *Access
		right    *Access
		expected bool
	}{
		{
			name:     "same scalar",
			left:     Scalar("x"),
			right:    Scalar("x"),
			expected: true,
		},
		{
			name:     "different scalar",
			left:     Scalar("x"),
			right:    Scalar("y"),
			expected: false,
		},
		{
			name:     "call site tag participates",
			left:     Call(Scalar("foo"), 3, 1),
			right:    Call(Scalar("foo"), 4, 1),
			expected: false,
		},
		{
			name:     "same call site",
			left:     Call(Scalar("foo"), 3, 1),
			right:    Call(Scalar("foo"), 3, 1),
			expected: true,
		},
		{
			name:     "tagged vs untagged",
			left:     Call(Scalar("foo"), 3, 1),
			right:    Scalar("foo"),
			expected: false,
		},
		{
			name:     "structural",
			left:     Structural(Scalar("self"), Scalar("x")),
			right:    Structural(Scalar("self"), Scalar("x")),
			expected: true,
		},
		{
			name:     "structural different field",
			left:     Structural(Scalar("self"), Scalar("x")),
			right:    Structural(Scalar("self"), Scalar("y")),
			expected: false,
		},
		{
			name:     "array like",
			left:     ArrayLike(Scalar("xs"), Scalar("i")),
			right:    ArrayLike(Scalar("xs"), Scalar("i")),
			expected: true,
		},
		{
			name:     "array like different arity",
			left:     ArrayLike(Scalar("xs"), Scalar("i")),
			right:    ArrayLike(Scalar("xs"), Scalar("i"), Scalar("j")),
			expected: false,
		},
		{
			name:     "kind mismatch",
			left:     Scalar("xs"),
			right:    ArrayLike(Scalar("xs"), Scalar("i")),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.left.Equal(tt.right))
			assert.Equal(t, tt.expected, tt.right.Equal(tt.left))
			if tt.expected {
				assert.Equal(t, tt.left.Fingerprint(), tt.right.Fingerprint())
			}
		})
	}
}

func TestAccess_String(t *testing.T) {
	assert.Equal(t, "self.x", Structural(Scalar("self"), Scalar("x")).String())
	assert.Equal(t, "xs[i]", ArrayLike(Scalar("xs"), Scalar("i")).String())
	assert.Equal(t, "foo:3:1", Call(Scalar("foo"), 3, 1).String())
}

func TestMap_GetChecked(t *testing.T) {
	m := NewMap()

	id, inserted := m.GetChecked(Scalar("a"))
	assert.Equal(t, uint64(1), id)
	assert.True(t, inserted)

	// Structurally equal accesses share an id even as distinct pointers.
	id, inserted = m.GetChecked(Scalar("a"))
	assert.Equal(t, uint64(1), id)
	assert.False(t, inserted)

	id, inserted = m.GetChecked(Structural(Scalar("a"), Scalar("b")))
	assert.Equal(t, uint64(2), id)
	assert.True(t, inserted)

	assert.Equal(t, uint64(2), m.Get(Structural(Scalar("a"), Scalar("b"))))
}

func TestDedup(t *testing.T) {
	in := []*Access{
		Scalar("a"),
		Scalar("b"),
		Scalar("a"),
		Structural(Scalar("a"), Scalar("f")),
		Structural(Scalar("a"), Scalar("f")),
	}
	out := Dedup(in)
	assert.Len(t, out, 3)
	assert.Equal(t, "a", out[0].String())
	assert.Equal(t, "b", out[1].String())
	assert.Equal(t, "a.f", out[2].String())
}
