package session

// slotAllocator enforces the editor cap. Admission is first come, first served.
type slotAllocator struct {
	limit       int
	editors     map[string]struct{}
	autoPromote bool
}

func newSlotAllocator(limit int, autoPromote bool) *slotAllocator {
	if limit < 0 {
		limit = 0
	}
	return &slotAllocator{
		limit:       limit,
		editors:     make(map[string]struct{}),
		autoPromote: autoPromote,
	}
}

// tryAdmit is the atomic check-and-insert; the caller holds the session lock.
func (a *slotAllocator) tryAdmit(id string) bool {
	if _, ok := a.editors[id]; ok {
		return true
	}
	if len(a.editors) >= a.limit {
		return false
	}
	a.editors[id] = struct{}{}
	return true
}

// release reports whether a slot was actually freed.
func (a *slotAllocator) release(id string) bool {
	if _, ok := a.editors[id]; !ok {
		return false
	}
	delete(a.editors, id)
	return true
}

func (a *slotAllocator) isEditor(id string) bool {
	_, ok := a.editors[id]
	return ok
}

func (a *slotAllocator) count() int { return len(a.editors) }

func (a *slotAllocator) hasFree() bool { return len(a.editors) < a.limit }

// promoteIfSlotAvailable admits the first waiting viewer when promotion is
// enabled and a slot is free. Without promotion the server never picks a
// viewer; it only publishes occupancy.
func (a *slotAllocator) promoteIfSlotAvailable(waiting []string) (string, bool) {
	if !a.autoPromote || !a.hasFree() || len(waiting) == 0 {
		return "", false
	}
	id := waiting[0]
	a.editors[id] = struct{}{}
	return id, true
}
