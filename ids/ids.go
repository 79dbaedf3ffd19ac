// Package ids provides the id-assignment primitives shared by analysis,
// staticfile and instrumenter: a deduplicating map from value to a
// stable integer id (with the insertion-reporting lookup the
// instrumenter's no-new-ids invariant relies on), a monotonic counter,
// and a first-seen-order deduplicating collector for def/use lists.
package ids

import (
	"os"

	"github.com/minio/highwayhash"
)

// StmtID is a (file, statement) pair, matching the wire tuple written by
// write_stmt.
type StmtID struct {
	FileID uint64
	Stmt   uint64
}

// Counter hands out a monotonically increasing sequence.
type Counter struct{ next uint64 }

// Next returns the next value in the sequence, starting at 0.
func (c *Counter) Next() uint64 {
	v := c.next
	c.next++
	return v
}

// Map assigns a stable index to each distinct key on first sight and
// returns the same index on every subsequent lookup. Get behaves like a
// plain memoizing lookup; GetChecked additionally reports whether the
// key was newly inserted, which the instrumenter uses to enforce that
// rewriting an AST never creates new statement ids (a violation is a
// fatal, irrecoverable bug in the instrumenter itself).
type Map[K comparable] struct {
	index map[K]uint64
	order []K
	next  uint64
}

// NewMap returns a Map whose ids start at 1.
func NewMap[K comparable]() *Map[K] {
	return &Map[K]{index: make(map[K]uint64), next: 1}
}

// Get returns the id for key, assigning a new one if key is unseen.
func (m *Map[K]) Get(key K) uint64 {
	id, _ := m.GetChecked(key)
	return id
}

// GetChecked returns the id for key and whether it was newly inserted.
func (m *Map[K]) GetChecked(key K) (id uint64, inserted bool) {
	if id, ok := m.index[key]; ok {
		return id, false
	}
	id = m.next
	m.next++
	m.index[key] = id
	m.order = append(m.order, key)
	return id, true
}

// Len returns how many distinct keys have been assigned an id.
func (m *Map[K]) Len() int { return len(m.order) }

// Keys returns keys in assignment order.
func (m *Map[K]) Keys() []K { return m.order }

// Unique deduplicates a slice, keeping the first occurrence of each
// distinct value and the incoming relative order — the property the
// analysis relies on for first-seen-order def/use determinism.
func Unique[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var fileIDHashKey = []byte("AARDWOLF-FILEID-HASH-KEY-0123456")

// FileIDForPath returns the platform inode for path, or the canonical 0
// fallback when os.Stat cannot resolve one.
func FileIDForPath(path string) uint64 {
	id, ok := statFileID(path)
	if ok {
		return id
	}
	return 0
}

// FileID returns a stable identity for path: the platform inode when
// available, or — unlike FileIDForPath's literal-0 fallback — a hash of
// the path so multiple unresolvable files (e.g. in-memory sources
// passed to pipeline.ProcessSource) don't collide onto a single id.
func FileID(path string) uint64 {
	if id, ok := statFileID(path); ok {
		return id
	}
	h, err := highwayhash.New64(fileIDHashKey)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(path))
	return h.Sum64()
}

func statFileID(path string) (uint64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return platformFileID(info)
}
