package hier

import "sync"

// EntryStore is the arena that owns every entry in a session (spec.md
// §4.1). A handle (here: a live *NodeEntry or *PropertyEntry pointer)
// obtained once remains valid until the entry reaches a terminal
// status and is reaped; Go's GC retains the memory for as long as any
// reference to the handle survives, so "reaping" here just means
// dropping the entry from the store's own indexes.
//
// The store's unique_id -> handle map is the one structure shared
// across every entry in the session (§5); it is guarded by its own
// mutex, independent of any NodeEntry's lock, because workspace events
// frequently reference entries by opaque id rather than by path and
// must be resolvable without taking a structural lock on some unrelated
// part of the tree.
type EntryStore struct {
	mu      sync.RWMutex
	byID    map[string]*NodeEntry
	handles int // monotonically increasing allocation counter; source of NodeEntry.seq
}

// NewEntryStore builds an empty arena.
func NewEntryStore() *EntryStore {
	return &EntryStore{byID: make(map[string]*NodeEntry)}
}

// allocate builds a new NodeEntry owned by this store, in the given
// status, under parent (nil for the root). It does not attach the
// entry to parent.children; callers do that themselves so the choice
// of children vs. child_attic is explicit at every call site.
func (s *EntryStore) allocate(parent *NodeEntry, name QualifiedName, uniqueID string, status Status) *NodeEntry {
	s.mu.Lock()
	s.handles++
	seq := int64(s.handles)
	s.mu.Unlock()

	n := &NodeEntry{
		baseEntry: baseEntry{
			store:  s,
			parent: parent,
			name:   name,
			sm:     newStatusMachine(status),
		},
		seq:        seq,
		uniqueID:   uniqueID,
		children:   newChildList(),
		childAttic: newChildAttic(),
		properties: newPropertyTable(),
	}
	if uniqueID != "" {
		s.notifyCreated(n)
	}
	return n
}

// notifyCreated indexes n by its current unique id, if any. Called by
// allocate; a later id change goes through notifyIDChange instead.
func (s *EntryStore) notifyCreated(n *NodeEntry) {
	if n.uniqueID == "" {
		return
	}
	s.mu.Lock()
	s.byID[n.uniqueID] = n
	s.mu.Unlock()
}

// notifyIDChange updates the unique_id index when n's id changes from
// oldID (possibly empty, meaning n previously had none) to its current
// n.uniqueID.
func (s *EntryStore) notifyIDChange(n *NodeEntry, oldID string) {
	s.mu.Lock()
	if oldID != "" {
		if cur, ok := s.byID[oldID]; ok && cur == n {
			delete(s.byID, oldID)
		}
	}
	if n.uniqueID != "" {
		s.byID[n.uniqueID] = n
	}
	s.mu.Unlock()
}

// lookupByUniqueID finds the live NodeEntry for id, if any is currently
// indexed.
func (s *EntryStore) lookupByUniqueID(id string) (*NodeEntry, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

// forget removes n from the unique_id index. Called when n reaches a
// terminal status and is reaped from its parent's structures.
func (s *EntryStore) forget(n *NodeEntry) {
	if n.uniqueID == "" {
		return
	}
	s.mu.Lock()
	if cur, ok := s.byID[n.uniqueID]; ok && cur == n {
		delete(s.byID, n.uniqueID)
	}
	s.mu.Unlock()
}
