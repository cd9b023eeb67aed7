package ledger

// registry is the ordered set of active lenders. Slots live in a dense slice and
// index maps an address back to its slot, so removal swaps the last slot into the
// hole in O(1).
type registry struct {
	slots []Address
	index map[Address]int
}

func newRegistry() *registry {
	return &registry{index: make(map[Address]int)}
}

func (r *registry) Len() int { return len(r.slots) }

func (r *registry) Contains(addr Address) bool {
	_, ok := r.index[addr]
	return ok
}

func (r *registry) At(i int) (Address, bool) {
	if i < 0 || i >= len(r.slots) {
		return "", false
	}
	return r.slots[i], true
}

// Position reports the slot of addr, or -1 when it is not registered.
func (r *registry) Position(addr Address) int {
	if i, ok := r.index[addr]; ok {
		return i
	}
	return -1
}

// Add appends addr and reports whether it was newly added.
func (r *registry) Add(addr Address) bool {
	if r.Contains(addr) {
		return false
	}
	r.index[addr] = len(r.slots)
	r.slots = append(r.slots, addr)
	return true
}

// Remove drops addr. When another lender was moved into the freed slot it is
// returned with moved=true.
func (r *registry) Remove(addr Address) (Address, bool) {
	i, ok := r.index[addr]
	if !ok {
		return "", false
	}
	last := len(r.slots) - 1
	delete(r.index, addr)
	if i == last {
		r.slots = r.slots[:last]
		return "", false
	}
	tail := r.slots[last]
	r.slots[i] = tail
	r.index[tail] = i
	r.slots = r.slots[:last]
	return tail, true
}

// Snapshot returns a copy of the slots in registry order.
func (r *registry) Snapshot() []Address {
	out := make([]Address, len(r.slots))
	copy(out, r.slots)
	return out
}
