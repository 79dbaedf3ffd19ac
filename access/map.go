package access

// Map assigns a stable, 1-based id to each structurally distinct Access,
// the way ids.Map does for comparable keys — except *Access pointers are
// not comparable by structural value, so Map buckets candidates by
// Fingerprint and falls back to Equal within a bucket. Backs the
// per-Scalar value-id table of the static file.
type Map struct {
	buckets map[uint64][]mapEntry
	next    uint64
}

type mapEntry struct {
	key *Access
	id  uint64
}

// NewMap returns a Map whose ids start at 1.
func NewMap() *Map {
	return &Map{buckets: make(map[uint64][]mapEntry), next: 1}
}

// Get returns the id for a, assigning a new one if a is unseen.
func (m *Map) Get(a *Access) uint64 {
	id, _ := m.GetChecked(a)
	return id
}

// GetChecked returns the id for a and whether it was newly inserted.
func (m *Map) GetChecked(a *Access) (id uint64, inserted bool) {
	fp := a.Fingerprint()
	for _, e := range m.buckets[fp] {
		if e.key.Equal(a) {
			return e.id, false
		}
	}
	id = m.next
	m.next++
	m.buckets[fp] = append(m.buckets[fp], mapEntry{key: a, id: id})
	return id, true
}

// Dedup removes structurally-equal duplicates from accesses, keeping
// the first occurrence of each and preserving relative order.
func Dedup(accesses []*Access) []*Access {
	if len(accesses) == 0 {
		return nil
	}
	out := make([]*Access, 0, len(accesses))
	for _, a := range accesses {
		dup := false
		for _, kept := range out {
			if kept.Equal(a) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	return out
}
