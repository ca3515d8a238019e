package domain

// ClusterSlot is one membership of a strand in a cluster family at a given
// braid level, with its own per-slot consumption flag. A strand carries a sequence of these rather than being copied once
// per cluster, which is what lets it re-braid under other families after one
// slot is consumed.
type ClusterSlot struct {
	ClusterType ClusterType `json:"cluster_type"`
	ClusterKey string `json:"cluster_key"`
	BraidLevel int `json:"braid_level"`
	Consumed bool `json:"consumed"`
}

// Key identifies the slot within a strand, ignoring Consumed. Two slots with
// the same Key on the same strand would violate the uniqueness invariant.
type ClusterSlotKey struct {
	ClusterType ClusterType
	ClusterKey string
	BraidLevel int
}

func (s ClusterSlot) Key() ClusterSlotKey {
	return ClusterSlotKey{ClusterType: s.ClusterType, ClusterKey: s.ClusterKey, BraidLevel: s.BraidLevel}
}

// ClusterSlots is the ordered (order-insignificant) sequence of
// cluster memberships carried on a strand.
type ClusterSlots []ClusterSlot

// HasKey reports whether a slot with the given key already exists, used to
// make cluster assignment idempotent.
func (s ClusterSlots) HasKey(k ClusterSlotKey) bool {
	for _, slot := range s {
		if slot.Key() == k {
			return true
		}
	}
	return false
}

// Find returns the slot whose key is k, consumed or not, and whether one
// exists. A strand carries at most one slot per key (invariant 5).
func (s ClusterSlots) Find(k ClusterSlotKey) (ClusterSlot, bool) {
	for _, slot := range s {
		if slot.Key() == k {
			return slot, true
		}
	}
	return ClusterSlot{}, false
}

// Clone returns a deep copy safe to store on a new strand.
func (s ClusterSlots) Clone() ClusterSlots {
	out := make(ClusterSlots, len(s))
	copy(out, s)
	return out
}
