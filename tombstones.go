package taskpool

// Tombstones is a set of one-shot cancellation markers keyed by task id.
//
// It is not safe for concurrent use; every queue owns its own set and
// guards it with the queue's lock.
type Tombstones struct {
	ids map[string]struct{}
}

// NewTombstones returns an empty set.
func NewTombstones() *Tombstones {
	return &Tombstones{ids: make(map[string]struct{})}
}

// Plant marks id as canceled. It reports false if a marker already existed.
func (t *Tombstones) Plant(id string) bool {
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	return true
}

// Clear removes a stale marker so a fresh submission of id is not
// retroactively canceled.
func (t *Tombstones) Clear(id string) {
	delete(t.ids, id)
}

// Consume removes the marker for id and reports whether it was present.
// A nil set never matches.
func (t *Tombstones) Consume(id string) bool {
	if t == nil || len(t.ids) == 0 {
		return false
	}
	if _, ok := t.ids[id]; !ok {
		return false
	}
	delete(t.ids, id)
	return true
}

// Len returns the number of unmatched markers.
func (t *Tombstones) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}
