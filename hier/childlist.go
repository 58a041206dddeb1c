package hier

// ListStatus tracks whether a ChildList reflects the last remote fetch
// (OK) or needs a reload before the next read (Invalidated), per
// spec.md §4.3.
type ListStatus int

const (
	ListStatusOK ListStatus = iota
	ListStatusInvalidated
)

// ChildList is the ordered child-node container of C5. It carries no
// lock of its own: every method assumes the owning NodeEntry's lock is
// already held (spec.md §5). SNS indices are never stored on an entry;
// they are always derived from position within a name-bucket filtered
// to visible entries (neither terminal nor EXISTING_REMOVED, see
// Status.isHidden) (design notes §9), so the single
// []*NodeEntry slice below is the sole source of truth for ordering.
type ChildList struct {
	status ListStatus
	order  []*NodeEntry
	loaded bool
}

func newChildList() *ChildList {
	return &ChildList{status: ListStatusOK}
}

func (l *ChildList) indexOf(e *NodeEntry) int {
	for i, x := range l.order {
		if x == e {
			return i
		}
	}
	return -1
}

func (l *ChildList) insertAt(i int, e *NodeEntry) {
	l.order = append(l.order, nil)
	copy(l.order[i+1:], l.order[i:])
	l.order[i] = e
}

// add appends e at the end of the overall order.
func (l *ChildList) add(e *NodeEntry) {
	l.order = append(l.order, e)
}

// addBefore inserts e immediately before the given sibling, or appends
// if before is nil or not present.
func (l *ChildList) addBefore(e, before *NodeEntry) {
	if before == nil {
		l.add(e)
		return
	}
	idx := l.indexOf(before)
	if idx < 0 {
		l.add(e)
		return
	}
	l.insertAt(idx, e)
}

// bucketPositions returns the positions in l.order of visible (not
// hidden) entries named name, in list order.
func (l *ChildList) bucketPositions(name QualifiedName) []int {
	var out []int
	for i, x := range l.order {
		if x.name == name && !x.Status().isHidden() {
			out = append(out, i)
		}
	}
	return out
}

// addAt inserts e at the specified 1-based position within its own
// name-bucket (used when the server supplies an explicit SNS index).
// An index outside the current bucket bounds appends at the bucket's
// end.
func (l *ChildList) addAt(e *NodeEntry, explicitIndex int) {
	bucket := l.bucketPositions(e.name)
	if explicitIndex <= 0 || explicitIndex > len(bucket) {
		if len(bucket) == 0 {
			l.add(e)
			return
		}
		l.insertAt(bucket[len(bucket)-1]+1, e)
		return
	}
	l.insertAt(bucket[explicitIndex-1], e)
}

// remove detaches e from the list, O(n) (a slice is used over a linked
// list because n is small in practice and the bucket scans below are
// already O(n); a doubly linked list would only help remove()).
func (l *ChildList) remove(e *NodeEntry) {
	idx := l.indexOf(e)
	if idx < 0 {
		return
	}
	l.order = append(l.order[:idx], l.order[idx+1:]...)
}

// reorder moves e to immediately before the given sibling (nil means
// "to the end") and returns the sibling e sat immediately before prior
// to the move (nil if e was last), which the revert ledger passes back
// as before to reconstruct the pre-reorder position (spec.md §4.3, §4.5).
func (l *ChildList) reorder(e, before *NodeEntry) (previousBefore *NodeEntry, err error) {
	idx := l.indexOf(e)
	if idx < 0 {
		return nil, newErr(KindInternal, "reorder: %s is not a child of this list", e.name)
	}
	if idx+1 < len(l.order) {
		previousBefore = l.order[idx+1]
	}
	l.order = append(l.order[:idx], l.order[idx+1:]...)
	if before == nil {
		l.order = append(l.order, e)
		return previousBefore, nil
	}
	bidx := l.indexOf(before)
	if bidx < 0 {
		l.order = append(l.order, e)
		return previousBefore, newErr(KindInvalid, "reorder: before-sibling %s not found", before.name)
	}
	l.insertAt(bidx, e)
	return previousBefore, nil
}

// get returns the visible children named name, in list order.
func (l *ChildList) get(name QualifiedName) []*NodeEntry {
	var out []*NodeEntry
	for _, x := range l.order {
		if x.name == name && !x.Status().isHidden() {
			out = append(out, x)
		}
	}
	return out
}

// getIndex returns the 1-based indexed child named name, if any.
// index <= 0 is treated as 1.
func (l *ChildList) getIndex(name QualifiedName, index int) (*NodeEntry, bool) {
	if index <= 0 {
		index = 1
	}
	bucket := l.get(name)
	if index > len(bucket) {
		return nil, false
	}
	return bucket[index-1], true
}

// getByUniqueID returns the valid child named name with the given
// unique id, if any.
func (l *ChildList) getByUniqueID(name QualifiedName, uniqueID string) (*NodeEntry, bool) {
	if uniqueID == "" {
		return nil, false
	}
	for _, x := range l.get(name) {
		if x.uniqueID == uniqueID {
			return x, true
		}
	}
	return nil, false
}

// snsIndex derives e's 1-based SNS index from its position within its
// own name-bucket, filtered to visible siblings. Never cached (design
// notes §9): caching would go stale on the very next reorder.
func (l *ChildList) snsIndex(e *NodeEntry) int {
	idx := 1
	for _, x := range l.order {
		if x == e {
			return idx
		}
		if x.name == e.name && !x.Status().isHidden() {
			idx++
		}
	}
	return idx
}

// all returns every visible (not hidden) child, in list order.
func (l *ChildList) all() []*NodeEntry {
	out := make([]*NodeEntry, 0, len(l.order))
	for _, x := range l.order {
		if !x.Status().isHidden() {
			out = append(out, x)
		}
	}
	return out
}

// invalidate marks the list stale; the next read triggers reloadChildren.
func (l *ChildList) invalidate() {
	l.status = ListStatusInvalidated
}

// allRaw returns every child physically present in the list, in order,
// regardless of hidden/terminal status. Unlike all(), which backs every
// ordinary listing, this is for the two walks that must still see an
// entry after it's been hidden: collect_changes (an EXISTING_REMOVED
// child is a staged removal, and a STALE_* child must still be found so
// throw_on_stale can raise) and Revert (an EXISTING_REMOVED child is
// exactly what gets resumed back to EXISTING).
func (l *ChildList) allRaw() []*NodeEntry {
	return append([]*NodeEntry(nil), l.order...)
}
