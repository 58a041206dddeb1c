package hier

import "context"

// loadChildren populates an as-yet-unloaded ChildList from the remote
// provider (spec.md C5, §4.3): the first read of a node's children.
func (n *NodeEntry) loadChildren(ctx context.Context, provider Provider) error {
	n.mu.Lock()
	if n.children.loaded {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()
	return n.reloadChildren(ctx, provider)
}

// reloadChildren merges a fresh remote listing into n's live ChildList
// (spec.md §4.3) in two passes, neither of which ever touches an entry
// this session created locally (a NEW child, never part of any remote
// listing, is left exactly where it is):
//
//  1. every local child the listing still names is reordered into the
//     server's order, anchored on the next such child still to be
//     placed;
//  2. every remote item with no local match is a fresh EXISTING child,
//     inserted immediately before the next already-known child that
//     follows it in the listing (or appended, if none does) — so a
//     newly observed child lands in the right relative position instead
//     of always at the end.
//
// A local child that the fresh listing no longer names at all is
// independently gone server-side: it transitions to STALE_DESTROYED
// regardless of whether it still carried unsaved local edits, per
// invariant 5's named exception to revert-ability. Disappearance from
// the listing is destruction; it is never merely "modified" — reload
// has no way to distinguish "changed" from "gone" other than absence,
// so absence always means gone.
//
// The remote call itself (ChildInfos) is the suspension point and must
// run with no NodeEntry lock held (spec.md §5); this function only
// takes n.mu to install the merged result.
func (n *NodeEntry) reloadChildren(ctx context.Context, provider Provider) error {
	nodeID := n.GetWorkspaceID()
	infos, err := provider.ChildInfos(ctx, nodeID)
	if err != nil {
		return wrapErr(KindTransport, err, "listing children of %s", nodeID)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	matched := make([]*NodeEntry, len(infos))
	seen := make(map[*NodeEntry]bool, len(infos))
	for i, info := range infos {
		if child, ok := n.resolveRemoteChild(info); ok {
			matched[i] = child
			seen[child] = true
		}
	}

	// nextKnownAfter returns the first already-materialized match that
	// follows position i in the remote listing, the shared anchor both
	// passes below reorder/insert relative to.
	nextKnownAfter := func(i int) *NodeEntry {
		for j := i + 1; j < len(matched); j++ {
			if matched[j] != nil {
				return matched[j]
			}
		}
		return nil
	}

	for i, child := range matched {
		if child == nil {
			continue
		}
		_, _ = n.children.reorder(child, nextKnownAfter(i))
	}

	for i, info := range infos {
		if matched[i] != nil {
			continue
		}
		child := n.store.allocate(n, info.Name, info.UniqueID, StatusExisting)
		n.children.addBefore(child, nextKnownAfter(i))
		seen[child] = true
	}

	for _, existing := range n.children.all() {
		if seen[existing] {
			continue
		}
		switch existing.Status() {
		case StatusExisting, StatusExistingModified:
			_ = existing.sm.transition(StatusStaleDestroyed)
			logger.WithFields(entryFields(existing)).Warn("child independently destroyed on workspace")
		}
	}

	n.children.status = ListStatusOK
	n.children.loaded = true
	return nil
}

// resolveRemoteChild finds the already-materialized local child that
// corresponds to a remote ChildInfo, preferring the unique id match.
func (n *NodeEntry) resolveRemoteChild(info ChildInfo) (*NodeEntry, bool) {
	if info.UniqueID != "" {
		if child, ok := n.children.getByUniqueID(info.Name, info.UniqueID); ok {
			return child, true
		}
		if child, ok := n.store.lookupByUniqueID(info.UniqueID); ok && child.parent == n {
			return child, true
		}
		return nil, false
	}
	if info.Index > 0 {
		if child, ok := n.children.getIndex(info.Name, info.Index); ok && child.uniqueID == "" {
			return child, true
		}
		return nil, false
	}
	return nil, false
}
