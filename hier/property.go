package hier

// PropertyEntry is a leaf HierarchyEntry owning a PropertyState
// (spec.md §3.1).
type PropertyEntry struct {
	baseEntry
	resolvedState PropertyState
}

var _ Entry = (*PropertyEntry)(nil)

func newPropertyEntry(store *EntryStore, parent *NodeEntry, name QualifiedName, status Status) *PropertyEntry {
	return &PropertyEntry{
		baseEntry: baseEntry{
			store:  store,
			parent: parent,
			name:   name,
			sm:     newStatusMachine(status),
		},
	}
}

// Invalidate drops the resolved payload and marks the entry
// INVALIDATED, preserving identity (spec.md §3.2, "* --external_refresh--> INVALIDATED").
func (p *PropertyEntry) Invalidate() {
	if err := p.sm.transition(StatusInvalidated); err == nil {
		p.resolvedState = nil
	}
}

// SetState installs a freshly-fetched or freshly-built payload and, if
// the entry was INVALIDATED, resumes it to EXISTING.
func (p *PropertyEntry) SetState(state PropertyState) {
	p.resolvedState = state
	if p.sm.Status() == StatusInvalidated {
		p.sm.forceStatus(StatusExisting)
	}
}

// State returns the resolved payload, or nil if never loaded.
func (p *PropertyEntry) State() PropertyState { return p.resolvedState }

// SetValue stages a local mutation to p's value: the EXISTING
// --mutate--> EXISTING_MODIFIED edge. The owning NodeEntry, if currently
// plain EXISTING, picks up the same EXISTING_MODIFIED status (spec.md
// scenario S2: "Locally set a property on x -> status becomes
// EXISTING_MODIFIED"): a property edit is an edit to its node.
func (p *PropertyEntry) SetValue(state PropertyState) error {
	switch p.sm.Status() {
	case StatusNew, StatusExistingModified:
		p.resolvedState = state
	case StatusExisting:
		if err := p.sm.transition(StatusExistingModified); err != nil {
			return err
		}
		p.resolvedState = state
	default:
		return newErr(KindInvalid, "cannot set value of property %s in status %s", p.name, p.sm.Status())
	}
	if p.parent != nil {
		p.parent.markLocallyModified()
	}
	return nil
}

// remove transitions p toward removal/terminal, the property half of
// NodeEntry.remove()/transient_remove() (spec.md §4.6).
func (p *PropertyEntry) remove() error {
	switch p.sm.Status() {
	case StatusNew:
		return p.sm.transition(StatusRemoved)
	case StatusExisting, StatusExistingModified:
		if err := p.sm.transition(StatusExistingRemoved); err != nil {
			return err
		}
		if p.parent != nil {
			p.parent.markLocallyModified()
		}
		return nil
	case StatusExistingRemoved, StatusRemoved, StatusStaleDestroyed:
		return nil // idempotent
	default:
		return newErr(KindInvalid, "cannot remove property %s in status %s", p.name, p.sm.Status())
	}
}

// externalDestroy drives p straight to STALE_DESTROYED in response to a
// PROPERTY_REMOVED event naming p directly (spec.md §4.7), the property
// counterpart of NodeEntry.externalDestroy. Like NodeEntry.externalDestroy,
// p stays reachable through its parent's PropertyTable rather than being
// forgotten, so collect_changes(throw_on_stale=true) can still find it.
func (p *PropertyEntry) externalDestroy() error {
	switch p.sm.Status() {
	case StatusNew:
		return nil
	case StatusExisting, StatusExistingModified, StatusExistingRemoved:
		return p.sm.transition(StatusStaleDestroyed)
	default:
		return nil
	}
}

// revert undoes a property's own transient state (it never owns a
// revert_info: NEW properties are simply dropped by the owning
// NodeEntry, and EXISTING_REMOVED properties just resume to EXISTING).
func (p *PropertyEntry) revert() {
	switch p.sm.Status() {
	case StatusExistingRemoved, StatusExistingModified:
		p.sm.forceStatus(StatusExisting)
	}
}

func (p *PropertyEntry) collectChanges(log *ChangeLog, throwOnStale bool) error {
	st := p.sm.Status()
	if throwOnStale && (st == StatusStaleModified || st == StatusStaleDestroyed) {
		return newErr(KindStale, "property %s is stale", p.name)
	}
	if st.IsTerminal() {
		return nil
	}
	switch st {
	case StatusNew, StatusExistingModified:
		log.append(p)
	case StatusExistingRemoved:
		log.appendRemoval(p)
	}
	return nil
}
