package mirror

import "container/list"

// defaultHistorySize is how many unique orders the dedup history remembers.
const defaultHistorySize = 30

// OrderRecord tracks one unique order that has been posted to the forum.
// Body grows append-only as more source channels report the same order;
// contributors gates one link per channel.
type OrderRecord struct {
	// MessageID is the forum post in the catch-all branch. Assigned once at
	// creation, never changes.
	MessageID int
	// DistrictMessageID is the copy posted to the primary district's branch,
	// or 0 when the order only has the catch-all post.
	DistrictMessageID int
	// Fingerprint is the canonical hash of the order text (equality key).
	Fingerprint string
	// Body is the full rendered post text including every appended link.
	Body string

	contributors []string
}

// HasContributor reports whether the channel already contributed a link.
func (r *OrderRecord) HasContributor(title string) bool {
	for _, c := range r.contributors {
		if c == title {
			return true
		}
	}
	return false
}

// addContributor records a channel title. Callers check HasContributor
// first; duplicates are still refused here to keep the set invariant local.
func (r *OrderRecord) addContributor(title string) {
	if r.HasContributor(title) {
		return
	}
	r.contributors = append(r.contributors, title)
}

// Contributors returns the channel titles in arrival order.
func (r *OrderRecord) Contributors() []string {
	out := make([]string, len(r.contributors))
	copy(out, r.contributors)
	return out
}

// History is the bounded, recency-ordered set of recently posted unique
// orders. Lookup by fingerprint and move-to-end are O(1). Capacity is the
// sole eviction trigger; evicting a record only forgets the dedup key. The
// forum post itself stays, so a late enough duplicate becomes a new order.
//
// History has no internal locking: all operations run on the engine's single
// worker goroutine.
type History struct {
	capacity int
	order    *list.List // front = oldest, back = most recent
	byFp     map[string]*list.Element
}

// NewHistory creates a History with the given capacity (default 30).
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistorySize
	}
	return &History{
		capacity: capacity,
		order:    list.New(),
		byFp:     make(map[string]*list.Element),
	}
}

// Lookup returns the record with the exact fingerprint, or nil.
func (h *History) Lookup(fingerprint string) *OrderRecord {
	if el, ok := h.byFp[fingerprint]; ok {
		return el.Value.(*OrderRecord)
	}
	return nil
}

// Insert appends a record at the most-recent end, evicting the single
// oldest record when capacity is exceeded. At most one record exists per
// fingerprint: inserting an already-present fingerprint replaces the old
// record in place.
func (h *History) Insert(rec *OrderRecord) {
	if el, ok := h.byFp[rec.Fingerprint]; ok {
		el.Value = rec
		h.order.MoveToBack(el)
		return
	}
	h.byFp[rec.Fingerprint] = h.order.PushBack(rec)
	if h.order.Len() > h.capacity {
		oldest := h.order.Front()
		h.order.Remove(oldest)
		delete(h.byFp, oldest.Value.(*OrderRecord).Fingerprint)
	}
}

// Touch moves a resident record to the most-recent end so frequently
// reposted orders resist eviction. Unknown records are ignored.
func (h *History) Touch(rec *OrderRecord) {
	if el, ok := h.byFp[rec.Fingerprint]; ok {
		h.order.MoveToBack(el)
	}
}

// Len returns the number of resident records.
func (h *History) Len() int {
	return h.order.Len()
}
