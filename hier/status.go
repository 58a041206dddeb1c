package hier

import "sync"

// Status is the per-entry lifecycle state (spec.md §3.2).
type Status int

const (
	StatusNew Status = iota
	StatusExisting
	StatusExistingModified
	StatusExistingRemoved
	StatusStaleModified
	StatusStaleDestroyed
	StatusRemoved
	StatusInvalidated
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusExisting:
		return "EXISTING"
	case StatusExistingModified:
		return "EXISTING_MODIFIED"
	case StatusExistingRemoved:
		return "EXISTING_REMOVED"
	case StatusStaleModified:
		return "STALE_MODIFIED"
	case StatusStaleDestroyed:
		return "STALE_DESTROYED"
	case StatusRemoved:
		return "REMOVED"
	case StatusInvalidated:
		return "INVALIDATED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is one of the terminal states
// {REMOVED, STALE_DESTROYED} (invariant: terminal entries are filtered
// out of every query result).
func (s Status) IsTerminal() bool {
	return s == StatusRemoved || s == StatusStaleDestroyed
}

// isHidden reports whether s must be filtered out of child/property
// listings even though the entry may still be physically linked into
// its parent's structures. This is a superset of IsTerminal: a locally
// staged removal (EXISTING_REMOVED) disappears from view immediately,
// but — unlike a terminal entry — stays reachable so collect_changes
// can still stage it and Revert can still walk back onto it.
func (s Status) isHidden() bool {
	return s == StatusExistingRemoved || s.IsTerminal()
}

// StatusListener is notified of every (previous, current) transition on
// the entry it is registered against. Registration is used internally
// by the revert ledger to auto-dispose itself (§4.2); single-threaded
// mutation means a callback may safely deregister itself.
type StatusListener func(previous, current Status)

// legalTransitions encodes the edges drawn in spec.md §3.2. A
// transition not present here is rejected.
var legalTransitions = map[Status]map[Status]bool{
	StatusNew: {
		StatusExisting: true, // save
		StatusRemoved:  true, // revert
	},
	StatusExisting: {
		StatusExistingModified: true, // local mutate
		StatusExistingRemoved:  true, // local remove
		StatusStaleDestroyed:   true, // external_destroy
		StatusInvalidated:      true, // external refresh
	},
	StatusExistingModified: {
		StatusExisting:        true, // save
		StatusExistingRemoved: true, // local remove of a dirty entry
		StatusStaleModified:   true, // external_change_conflicts
		StatusStaleDestroyed:  true, // external_destroy: disappearance always wins over a local edit
		StatusInvalidated:     true, // external refresh
	},
	StatusExistingRemoved: {
		StatusRemoved:        true, // save
		StatusStaleDestroyed: true, // external_destroy
		StatusInvalidated:    true, // external refresh
	},
	StatusStaleModified: {
		StatusInvalidated: true,
	},
	StatusStaleDestroyed: {
		StatusInvalidated: true,
	},
	StatusInvalidated: {
		// an invalidated entry resumes its life once reloaded; the
		// caller re-derives the concrete status instead of routing
		// back through the machine, so no outbound edges are needed
		// here beyond the universal external_refresh self-loop.
		StatusInvalidated: true,
	},
}

// statusMachine is the single dispatch point for status mutation
// (spec.md §4.2). It is embedded in both NodeEntry and PropertyEntry
// via baseEntry.
type statusMachine struct {
	mu        sync.Mutex
	status    Status
	listeners []StatusListener
}

func newStatusMachine(initial Status) *statusMachine {
	return &statusMachine{status: initial}
}

func (m *statusMachine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// AddListener registers l to be called on every future transition.
// Returns a token usable with RemoveListener.
func (m *statusMachine) AddListener(l StatusListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
	return len(m.listeners) - 1
}

// RemoveListener deregisters the listener obtained from AddListener. A
// listener may call this on itself from within its own callback.
func (m *statusMachine) RemoveListener(token int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token < 0 || token >= len(m.listeners) {
		return
	}
	m.listeners[token] = nil
}

// transition validates and performs previous -> current, then fans the
// change out to listeners. It is the only validated way status changes;
// forceStatus bypasses it.
func (m *statusMachine) transition(current Status) error {
	m.mu.Lock()
	previous := m.status
	if previous == current {
		m.mu.Unlock()
		return nil
	}
	allowed := legalTransitions[previous]
	if allowed == nil || !allowed[current] {
		m.mu.Unlock()
		return newErr(KindInternal, "illegal status transition %s -> %s", previous, current)
	}
	m.status = current
	listeners := append([]StatusListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(previous, current)
		}
	}
	return nil
}

// forceStatus sets the status without transition validation and
// without notifying listeners. Used where no single named edge applies:
// a property resuming from INVALIDATED to EXISTING when its payload is
// set, removing an INVALIDATED node (to EXISTING_REMOVED), and revert
// returning a modified, removed or stale-modified entry to EXISTING.
func (m *statusMachine) forceStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}
