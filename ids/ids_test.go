package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	m := NewMap[string]()

	id, inserted := m.GetChecked("a")
	assert.Equal(t, uint64(1), id)
	assert.True(t, inserted)

	id, inserted = m.GetChecked("b")
	assert.Equal(t, uint64(2), id)
	assert.True(t, inserted)

	id, inserted = m.GetChecked("a")
	assert.Equal(t, uint64(1), id)
	assert.False(t, inserted)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestCounter(t *testing.T) {
	var c Counter
	assert.Equal(t, uint64(0), c.Next())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, Unique([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, Unique([]int(nil)))
}

func TestFileID(t *testing.T) {
	// A nonexistent path cannot be stat'ed; the canonical fallback is 0,
	// the hashing fallback must still distinguish distinct paths.
	assert.Equal(t, uint64(0), FileIDForPath("/does/not/exist.py"))

	a := FileID("/does/not/exist-a.py")
	b := FileID("/does/not/exist-b.py")
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, FileID("/does/not/exist-a.py"))
}
