package hier

// reorderLogEntry records one reorder performed among a parent's
// children: the entry that moved, and the sibling it sat immediately
// before beforehand (nil meaning "was at the end of the list").
type reorderLogEntry struct {
	entry          *NodeEntry
	previousBefore *NodeEntry
}

// RevertInfo is the per-entry snapshot of pre-transient identity plus a
// per-parent reorder log (spec.md C7, §4.5). A single NodeEntry may
// carry both halves at once: it snapshots its own identity when it is
// move()-d, and it accumulates a reorder log when *its own children*
// are reordered — these are independent uses of the same lazily
// created struct, matching "created lazily on the first transient
// identity change of an entry, and on the first reorder performed
// within a parent."
type RevertInfo struct {
	moved       bool
	indexPinned bool
	oldParent   *NodeEntry
	oldName     QualifiedName
	oldIndex    int

	reorderLog []reorderLogEntry

	listenerToken int
}

func newRevertInfo() *RevertInfo {
	return &RevertInfo{listenerToken: -1}
}

func (ri *RevertInfo) isMoved() bool { return ri.moved }

// setMoveSnapshot records e's pre-move identity, once: the first call
// (no revert_info existed, or one existed only to pin an SNS index)
// wins and is never overwritten by a later move, so the ledger always
// holds the *original* pre-transient identity.
func (ri *RevertInfo) setMoveSnapshot(oldParent *NodeEntry, oldName QualifiedName, oldIndex int) {
	if ri.moved {
		return
	}
	ri.moved = true
	ri.oldParent = oldParent
	ri.oldName = oldName
	ri.oldIndex = oldIndex
}

// pinIndex records e's workspace index the first time one of its
// unidentified (no unique_id) same-name siblings is reordered
// (spec.md §4.5), so a later reorder doesn't erase the original
// position. A no-op once the entry has its own move snapshot, since
// that already carries the authoritative oldIndex.
func (ri *RevertInfo) pinIndex(oldIndex int) {
	if ri.moved || ri.indexPinned {
		return
	}
	ri.indexPinned = true
	ri.oldIndex = oldIndex
}

// recordReorder appends one step to this node's children reorder log.
func (ri *RevertInfo) recordReorder(e, previousBefore *NodeEntry) {
	ri.reorderLog = append(ri.reorderLog, reorderLogEntry{entry: e, previousBefore: previousBefore})
}

// replayReorders undoes every logged reorder on list, most recent
// first, then clears the log.
func (ri *RevertInfo) replayReorders(list *ChildList) {
	for i := len(ri.reorderLog) - 1; i >= 0; i-- {
		step := ri.reorderLog[i]
		if list.indexOf(step.entry) < 0 {
			continue // sibling was independently removed/destroyed since
		}
		_, _ = list.reorder(step.entry, step.previousBefore)
	}
	ri.reorderLog = nil
}

// empty reports whether ri no longer carries any pending state, so its
// owner can drop the pointer entirely.
func (ri *RevertInfo) empty() bool {
	return !ri.moved && !ri.indexPinned && len(ri.reorderLog) == 0
}
