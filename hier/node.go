package hier

import (
	"context"
	"fmt"
	"sync"
)

// NodeEntry is the internal-node HierarchyEntry; it owns children and
// properties (spec.md C8, §3.1). Its mu guards children, childAttic,
// properties and revertInfo together (spec.md §5); status lives in the
// embedded statusMachine and is guarded separately so that a status
// transition never has to be made while holding the structural lock.
type NodeEntry struct {
	baseEntry

	mu sync.Mutex
	// seq orders NodeEntries for lockPair's deadlock-free two-parent
	// locking in move(); assigned once at allocation and never reused.
	seq int64

	uniqueID      string
	mixinTypes    []string
	children      *ChildList
	childAttic    *ChildAttic
	properties    *PropertyTable
	revertInfo    *RevertInfo
	resolvedState NodeState
}

var _ Entry = (*NodeEntry)(nil)

func indexSuffix(i int) string {
	if i > 1 {
		return fmt.Sprintf("[%d]", i)
	}
	return ""
}

// UniqueID returns the workspace-stable jcr:uuid-derived id, if any.
func (n *NodeEntry) UniqueID() string { return n.uniqueID }

// State returns the resolved payload, or nil if never loaded.
func (n *NodeEntry) State() NodeState { return n.resolvedState }

// setUniqueID installs id, updating the entry store's index (spec.md
// §4.1 notify_id_change).
func (n *NodeEntry) setUniqueID(id string) {
	old := n.uniqueID
	if old == id {
		return
	}
	n.uniqueID = id
	n.store.notifyIDChange(n, old)
}

// MixinTypes returns n's last-observed jcr:mixinTypes values.
func (n *NodeEntry) MixinTypes() []string { return n.mixinTypes }

// setMixinTypes installs a freshly observed jcr:mixinTypes set, the
// PROPERTY_CHANGED side effect of spec.md §4.7.
func (n *NodeEntry) setMixinTypes(types []string) {
	n.mixinTypes = append([]string(nil), types...)
}

// GetIndex derives n's 1-based SNS index from its live position among
// same-named siblings (design notes §9: never cached).
func (n *NodeEntry) GetIndex() int {
	if n.parent == nil {
		return 1
	}
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()
	return n.parent.children.snsIndex(n)
}

// GetID returns n's transient identity: its unique id if it has one,
// else (parent_id, name, index) (spec.md §4.6).
func (n *NodeEntry) GetID() string {
	if n.uniqueID != "" {
		return n.uniqueID
	}
	if n.parent == nil {
		return "/"
	}
	return n.parent.GetID() + "/" + n.name.String() + indexSuffix(n.GetIndex())
}

// workspaceIdentity returns the (parent, name, index) triple n had as
// last observed on the workspace, unwinding revert_info without
// performing any of the pending moves/reorders (spec.md §4.5).
func (n *NodeEntry) workspaceIdentity() (*NodeEntry, QualifiedName, int) {
	n.mu.Lock()
	ri := n.revertInfo
	n.mu.Unlock()
	if ri == nil {
		return n.parent, n.name, n.GetIndex()
	}
	if ri.moved {
		return ri.oldParent, ri.oldName, ri.oldIndex
	}
	if ri.indexPinned {
		return n.parent, n.name, ri.oldIndex
	}
	return n.parent, n.name, n.GetIndex()
}

// GetWorkspaceID reconstructs the identity the server currently sees
// for n, consulting revert_info instead of n's live parent/name
// (spec.md §4.6).
func (n *NodeEntry) GetWorkspaceID() string {
	if n.uniqueID != "" {
		return n.uniqueID
	}
	wp, wn, wi := n.workspaceIdentity()
	if wp == nil {
		return "/"
	}
	return wp.GetWorkspaceID() + "/" + wn.String() + indexSuffix(wi)
}

// BuildPath renders n's path from the root, either the transient
// (current) view or, with workspace=true, the pre-transient view
// (spec.md §4.5 "build_path(workspace=true)").
func (n *NodeEntry) BuildPath(workspace bool) []PathElement {
	if n.parent == nil {
		return nil
	}
	var parent *NodeEntry
	var name QualifiedName
	var index int
	if workspace {
		parent, name, index = n.workspaceIdentity()
	} else {
		parent, name, index = n.parent, n.name, n.GetIndex()
	}
	prefix := parent.BuildPath(workspace)
	return append(prefix, PathElement{Name: name, Index: index})
}

// Invalidate drops the resolved payload, marks the children list
// stale, and transitions status to INVALIDATED, preserving identity
// (spec.md §3.2).
func (n *NodeEntry) Invalidate() {
	if err := n.sm.transition(StatusInvalidated); err != nil {
		return
	}
	n.mu.Lock()
	n.resolvedState = nil
	n.children.invalidate()
	n.mu.Unlock()
}

// ensureRevertInfo lazily creates n.revertInfo, registering the
// auto-dispose listener described in spec.md §4.2/§4.5. Callers must
// hold n.mu.
func (n *NodeEntry) ensureRevertInfo() *RevertInfo {
	if n.revertInfo != nil {
		return n.revertInfo
	}
	ri := newRevertInfo()
	n.revertInfo = ri
	ri.listenerToken = n.sm.AddListener(func(_, current Status) {
		if current == StatusExisting || current.IsTerminal() {
			n.disposeRevertInfo()
		}
	})
	return ri
}

// disposeRevertInfo drops n.revertInfo and deregisters its listener.
// Never called while n.mu is held by the same goroutine (it is invoked
// synchronously from statusMachine.transition's listener fan-out,
// which runs after the status machine's own lock has been released —
// see status.go).
func (n *NodeEntry) disposeRevertInfo() {
	n.mu.Lock()
	ri := n.revertInfo
	n.revertInfo = nil
	n.mu.Unlock()
	if ri != nil && ri.listenerToken >= 0 {
		n.sm.RemoveListener(ri.listenerToken)
	}
}

// markLocallyModified picks up the EXISTING --mutate--> EXISTING_MODIFIED
// edge (spec.md §3.2) in response to any local edit that touches n
// without replacing its identity outright: moving n, or
// adding/editing/removing one of its own properties (OrderBefore does
// not call it; a reorder changes no status). A no-op outside
// plain EXISTING (e.g. already EXISTING_MODIFIED, or NEW with nothing
// yet to mark).
func (n *NodeEntry) markLocallyModified() {
	if n.Status() == StatusExisting {
		_ = n.sm.transition(StatusExistingModified)
	}
}

func isDescendant(candidate, ancestor *NodeEntry) bool {
	for p := candidate.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Move relocates n to newParent under newName (spec.md §4.5). transient
// is accepted for interface symmetry with the source API; the engine
// only ever performs transient moves (a "non-transient" move would
// imply an immediate, un-revertible workspace write, out of scope per
// spec.md §1).
func (n *NodeEntry) Move(newName QualifiedName, newParent *NodeEntry, transient bool) error {
	if n.parent == nil {
		return newErr(KindInvalid, "cannot move the root entry")
	}
	if newParent == nil {
		return newErr(KindInvalid, "move requires a destination parent")
	}
	if newParent == n || isDescendant(newParent, n) {
		return newErr(KindInvalid, "cannot move %s into its own subtree", n.name)
	}
	oldParent := n.parent
	unlock := lockPair(oldParent, newParent)
	defer unlock()

	n.mu.Lock()
	ri := n.ensureRevertInfo()
	ri.setMoveSnapshot(oldParent, n.name, oldParent.children.snsIndex(n))
	n.mu.Unlock()

	oldParent.children.remove(n)
	oldParent.childAttic.park(n, ri.oldName, ri.oldIndex)

	n.mu.Lock()
	n.parent = newParent
	n.name = newName
	n.mu.Unlock()

	newParent.children.add(n)

	n.markLocallyModified()
	logger.WithFields(entryFields(n)).Debug("node moved transiently")
	return nil
}

// OrderBefore reorders n among its siblings to sit immediately before
// before (nil moves it to the end), delegating to the parent's child
// list and recording the move in the parent's revert ledger (spec.md
// §4.5, §4.6).
func (n *NodeEntry) OrderBefore(before *NodeEntry) error {
	parent := n.parent
	if parent == nil {
		return newErr(KindInvalid, "cannot reorder the root entry")
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()

	// Pin the workspace index of every id-less sibling sharing n's
	// name, so a later reorder can't erase their original position
	// (spec.md §4.5, Open Question 2 notwithstanding for the common
	// case of siblings that are not themselves NEW).
	if n.uniqueID == "" {
		for _, sib := range parent.children.get(n.name) {
			if sib.uniqueID == "" {
				idx := parent.children.snsIndex(sib)
				sib.mu.Lock()
				sib.ensureRevertInfo().pinIndex(idx)
				sib.mu.Unlock()
			}
		}
	}

	previousBefore, err := parent.children.reorder(n, before)
	if err != nil {
		return err
	}

	pri := parent.ensureRevertInfo()
	pri.recordReorder(n, previousBefore)
	return nil
}

// AddNode allocates a new child NodeEntry in status EXISTING, the
// load_children/NODE_ADDED half of the entry lifecycle (spec.md §3.4).
func (n *NodeEntry) AddNode(name QualifiedName, uniqueID string, index int) (*NodeEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	child := n.store.allocate(n, name, uniqueID, StatusExisting)
	if index > 0 {
		n.children.addAt(child, index)
	} else {
		n.children.add(child)
	}
	return child, nil
}

// AddNewNode allocates a locally created child in status NEW and
// attaches state as its fresh NodeState, the add_new_node half of
// spec.md §4.6.
func (n *NodeEntry) AddNewNode(name QualifiedName, uniqueID string, state NodeState) (*NodeEntry, error) {
	// Whether a second same-named child is legal (SNS) is a node-type
	// policy question the engine doesn't know (Non-goal: schema
	// validation, spec.md §1); it never rejects same-name siblings
	// itself. Callers that need strict uniqueness enforce it through
	// their own node-type definitions before calling AddNewNode.
	n.mu.Lock()
	defer n.mu.Unlock()
	child := n.store.allocate(n, name, uniqueID, StatusNew)
	child.resolvedState = state
	n.children.add(child)
	return child, nil
}

// AddProperty allocates a property entry in status EXISTING (mirrors
// AddNode).
func (n *NodeEntry) AddProperty(name QualifiedName) (*PropertyEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := newPropertyEntry(n.store, n, name, StatusExisting)
	n.properties.put(p)
	return p, nil
}

// AddNewProperty allocates a locally created property in status NEW,
// applying the shadowing rule of invariant 4: if a property with this
// name currently exists in status EXISTING_REMOVED, it is parked in
// properties_attic before the new one is installed (spec.md §4.6).
func (n *NodeEntry) AddNewProperty(name QualifiedName, state PropertyState) (*PropertyEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if old, ok := n.properties.get(name); ok {
		if old.Status() == StatusExistingRemoved {
			n.properties.shadow(old)
		} else if !old.Status().IsTerminal() {
			return nil, newErr(KindExists, "property %s already exists", name)
		}
	}

	p := newPropertyEntry(n.store, n, name, StatusNew)
	p.resolvedState = state
	n.properties.put(p)
	n.markLocallyModified()
	return p, nil
}

// removeInternal is the shared body of Remove and TransientRemove: it
// walks the subtree, transitioning every descendant toward
// removal/terminal, then detaches n from its parent only once n's own
// status is actually terminal (spec.md §4.6).
func (n *NodeEntry) removeInternal() error {
	n.mu.Lock()
	children := n.children.allRaw()
	props := n.properties.list()
	n.mu.Unlock()

	for _, c := range children {
		if err := c.removeInternal(); err != nil {
			return err
		}
	}
	for _, p := range props {
		if err := p.remove(); err != nil {
			return err
		}
	}

	if err := n.selfRemoveTransition(); err != nil {
		return err
	}

	// Only a *terminal* status (REMOVED, STALE_DESTROYED) detaches n from
	// its parent's child list. EXISTING_REMOVED is deliberately left
	// reachable from parent.children (filtered out of all()/get() by
	// status, not by list membership) so collect_changes can still stage
	// it as a removal and Revert can still walk back onto it to resume
	// EXISTING.
	if n.Status().IsTerminal() {
		if n.parent != nil {
			n.parent.mu.Lock()
			n.parent.children.remove(n)
			n.parent.mu.Unlock()
		}
		n.store.forget(n)
	}
	return nil
}

func (n *NodeEntry) selfRemoveTransition() error {
	switch n.Status() {
	case StatusNew:
		return n.sm.transition(StatusRemoved)
	case StatusExisting, StatusExistingModified:
		return n.sm.transition(StatusExistingRemoved)
	case StatusInvalidated:
		n.sm.forceStatus(StatusExistingRemoved)
		return nil
	case StatusExistingRemoved, StatusRemoved, StatusStaleDestroyed:
		return nil
	default:
		return newErr(KindInvalid, "cannot remove node %s in status %s", n.name, n.Status())
	}
}

// externalDestroy drives n straight to STALE_DESTROYED in response to a
// NODE_REMOVED event naming n directly (spec.md §4.7, scenarios S2/S6):
// unlike Remove/TransientRemove, which stage a local, revertible removal
// intent, this records that the workspace already destroyed n — the
// named exception to revert-ability in invariant 5 — regardless of
// whether n carried unsaved local edits. Like EXISTING_REMOVED, n stays
// physically reachable from its parent (hidden from ordinary listings by
// isHidden, not detached) so collect_changes(throw_on_stale=true) can
// still walk onto it and raise (spec.md scenario S2).
func (n *NodeEntry) externalDestroy() error {
	switch n.Status() {
	case StatusNew:
		// The server never saw this entry; an event about its path or id
		// concerns something else.
		return nil
	case StatusExisting, StatusExistingModified, StatusExistingRemoved:
		return n.sm.transition(StatusStaleDestroyed)
	default:
		return nil // already STALE_*/REMOVED/INVALIDATED: idempotent
	}
}

// Remove marks n and its subtree for removal (spec.md §4.6).
func (n *NodeEntry) Remove() error { return n.removeInternal() }

// TransientRemove behaves like Remove, but first re-awakens any
// properties_attic entries so a subsequent Revert can still find them
// (spec.md §4.6): without this, an attic'd property would be orphaned
// by the removal instead of having its EXISTING_REMOVED predecessor
// correctly re-marked.
func (n *NodeEntry) TransientRemove() error {
	n.mu.Lock()
	n.properties.restoreAllAttic()
	n.mu.Unlock()
	return n.removeInternal()
}

// discardNewSubtree drops an entire NEW subtree immediately: nothing in
// it was ever observed by the workspace, so there is nothing to park
// in an attic and nothing to revert.
func (n *NodeEntry) discardNewSubtree() {
	n.mu.Lock()
	children := n.children.all()
	props := n.properties.list()
	n.mu.Unlock()

	for _, c := range children {
		c.discardNewSubtree()
	}
	for _, p := range props {
		_ = p.sm.transition(StatusRemoved)
	}
	_ = n.sm.transition(StatusRemoved)
	n.store.forget(n)
}

// undoMove reverses a pending move, reattaching n to its recorded
// workspace parent/name/index and releasing it from the attic it was
// parked in (spec.md §4.5).
func (n *NodeEntry) undoMove(ri *RevertInfo) {
	curParent := n.parent
	oldParent := ri.oldParent
	unlock := lockPair(curParent, oldParent)
	defer unlock()

	curParent.children.remove(n)

	n.mu.Lock()
	n.parent = oldParent
	n.name = ri.oldName
	n.mu.Unlock()

	oldParent.children.addAt(n, ri.oldIndex)
	oldParent.childAttic.release(n, ri.oldName, ri.oldIndex)
}

func (n *NodeEntry) selfStatusRevert() {
	switch n.Status() {
	case StatusExistingModified, StatusExistingRemoved, StatusStaleModified:
		n.sm.forceStatus(StatusExisting)
	case StatusStaleDestroyed:
		// Independently destroyed on the workspace: invariant 5's
		// named exception. Cannot be resurrected by revert.
	}
}

// Revert undoes every uncommitted edit in the subtree rooted at n,
// restoring it to the exact state last observed on the workspace
// (spec.md §4.6, invariant 5).
func (n *NodeEntry) Revert() error {
	if n.Status() == StatusNew {
		n.discardNewSubtree()
		return nil
	}

	// (a) move properties_attic back into properties.
	n.mu.Lock()
	restored := n.properties.restoreAllAttic()
	live := n.properties.list()
	n.mu.Unlock()

	for _, p := range restored {
		p.revert()
	}
	for _, p := range live {
		switch p.Status() {
		case StatusNew:
			n.mu.Lock()
			n.properties.delete(p.name)
			n.mu.Unlock()
			_ = p.sm.transition(StatusRemoved)
		case StatusExistingModified, StatusExistingRemoved:
			p.revert()
		}
	}

	// (b) replay revert_info: identity first, then this node's own
	// children reorders.
	n.mu.Lock()
	ri := n.revertInfo
	n.mu.Unlock()
	if ri != nil {
		if ri.moved {
			n.undoMove(ri)
		}
		n.mu.Lock()
		ri.replayReorders(n.children)
		n.mu.Unlock()
		n.disposeRevertInfo()
	}

	// (c) delegate to the state machine to revert payload/status.
	n.selfStatusRevert()

	n.mu.Lock()
	children := n.children.allRaw()
	n.mu.Unlock()
	for _, c := range children {
		if err := c.Revert(); err != nil {
			return err
		}
	}
	return nil
}

// GetDeepEntry resolves path relative to n, following spec.md §4.6's
// ordered rules, calling out to the remote provider for any suffix
// that isn't already materialized locally.
func (n *NodeEntry) GetDeepEntry(ctx context.Context, resolver NameResolver, provider Provider, path string) (Entry, error) {
	segments, absolute, err := ParsePath(resolver, path)
	if err != nil {
		return nil, err
	}
	anchor := n
	if absolute {
		for anchor.parent != nil {
			anchor = anchor.parent
		}
	}
	if len(segments) == 0 {
		return anchor, nil
	}
	return anchor.getDeepEntrySegments(ctx, provider, segments)
}

func (n *NodeEntry) getDeepEntrySegments(ctx context.Context, provider Provider, segments []PathElement) (Entry, error) {
	seg := segments[0]
	rest := segments[1:]

	n.mu.Lock()
	child, ok := n.children.getIndex(seg.Name, seg.Index)
	n.mu.Unlock()
	if ok {
		if len(rest) == 0 {
			return child, nil
		}
		return child.getDeepEntrySegments(ctx, provider, rest)
	}

	if len(rest) == 0 && seg.Index <= 1 {
		n.mu.Lock()
		prop, ok := n.properties.get(seg.Name)
		n.mu.Unlock()
		if ok {
			return prop, nil
		}
	}

	n.mu.Lock()
	_, inAttic := n.childAttic.byPositionLookup(seg.Name, seg.Index)
	n.mu.Unlock()
	if inAttic {
		return nil, newErr(KindNotFound, "entry %s was moved away transiently", seg.Name)
	}

	// Ask the remote provider to build the whole remaining suffix in
	// one call (spec.md §4.6 step 5 / scenario S5): it may materialize
	// any number of intermediate NodeEntries.
	resolved, err := provider.CreateDeepNodeState(ctx, n, segments)
	if err == nil {
		return resolved, nil
	}
	if !IsNotFound(err) {
		return nil, wrapErr(KindTransport, err, "resolving deep path")
	}

	// "If it fails with not found and the final segment has no index,
	// retry as a property id" (spec.md §4.6 step 5).
	finalSeg := segments[len(segments)-1]
	if finalSeg.Index > 1 {
		return nil, wrapErr(KindNotFound, err, "no entry for %s", finalSeg.Name)
	}
	var propParent *NodeEntry
	if len(segments) == 1 {
		propParent = n
	} else {
		parentEntry, pErr := n.getDeepEntrySegments(ctx, provider, segments[:len(segments)-1])
		if pErr != nil {
			return nil, wrapErr(KindNotFound, err, "no entry for %s", finalSeg.Name)
		}
		node, ok := parentEntry.(*NodeEntry)
		if !ok {
			return nil, wrapErr(KindNotFound, err, "no entry for %s", finalSeg.Name)
		}
		propParent = node
	}

	propParent.mu.Lock()
	prop, ok := propParent.properties.get(finalSeg.Name)
	propParent.mu.Unlock()
	if ok {
		return prop, nil
	}
	state, stateErr := provider.CreatePropertyState(ctx, propParent.GetID()+"/"+finalSeg.Name.String(), propParent)
	if stateErr != nil {
		return nil, wrapErr(KindNotFound, stateErr, "no property %s", finalSeg.Name)
	}
	p := newPropertyEntry(propParent.store, propParent, finalSeg.Name, StatusExisting)
	p.resolvedState = state
	propParent.mu.Lock()
	defer propParent.mu.Unlock()
	if prop, ok := propParent.properties.get(finalSeg.Name); ok {
		return prop, nil
	}
	propParent.properties.put(p)
	return p, nil
}

// LookupDeepEntry is the purely-local counterpart of GetDeepEntry: it
// never calls the remote provider and returns (nil, false) on miss
// (spec.md §4.6), used by event routing so an event about an unloaded
// subtree doesn't synthesize entries for it.
func (n *NodeEntry) LookupDeepEntry(resolver NameResolver, path string) (Entry, bool) {
	segments, absolute, err := ParsePath(resolver, path)
	if err != nil {
		return nil, false
	}
	anchor := n
	if absolute {
		for anchor.parent != nil {
			anchor = anchor.parent
		}
	}
	cur := Entry(anchor)
	for i, seg := range segments {
		node, ok := cur.(*NodeEntry)
		if !ok {
			return nil, false
		}
		node.mu.Lock()
		child, found := node.children.getIndex(seg.Name, seg.Index)
		if !found && i == len(segments)-1 && seg.Index <= 1 {
			if prop, ok := node.properties.get(seg.Name); ok {
				node.mu.Unlock()
				return prop, true
			}
		}
		node.mu.Unlock()
		if !found {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

func (n *NodeEntry) collectChanges(log *ChangeLog, throwOnStale bool) error {
	st := n.Status()
	if throwOnStale && (st == StatusStaleModified || st == StatusStaleDestroyed) {
		return newErr(KindStale, "node %s is stale", n.name)
	}
	if st.IsTerminal() {
		return nil
	}

	n.mu.Lock()
	children := n.children.allRaw()
	props := n.properties.list()
	n.mu.Unlock()

	for _, c := range children {
		if err := c.collectChanges(log, throwOnStale); err != nil {
			return err
		}
	}
	for _, p := range props {
		if err := p.collectChanges(log, throwOnStale); err != nil {
			return err
		}
	}

	switch st {
	case StatusNew, StatusExistingModified:
		log.append(n)
	case StatusExistingRemoved:
		log.appendRemoval(n)
	}
	return nil
}
