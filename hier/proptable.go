package hier

// PropertyTable is a NodeEntry's property map plus its shadow ("attic")
// map (spec.md C4, §3.1). It is a plain struct manipulated only while
// the owning NodeEntry's lock is held; it carries no lock of its own
// (spec.md §5: the NodeEntry's single fine-grained lock covers
// properties and properties_attic together).
type PropertyTable struct {
	props map[string]*PropertyEntry // keyed by QualifiedName.String()
	attic map[string]*PropertyEntry
}

func newPropertyTable() *PropertyTable {
	return &PropertyTable{
		props: make(map[string]*PropertyEntry),
		attic: make(map[string]*PropertyEntry),
	}
}

func (t *PropertyTable) get(name QualifiedName) (*PropertyEntry, bool) {
	p, ok := t.props[name.String()]
	return p, ok
}

func (t *PropertyTable) put(p *PropertyEntry) {
	t.props[p.name.String()] = p
}

func (t *PropertyTable) delete(name QualifiedName) {
	delete(t.props, name.String())
}

func (t *PropertyTable) getAttic(name QualifiedName) (*PropertyEntry, bool) {
	p, ok := t.attic[name.String()]
	return p, ok
}

// shadow parks old (an EXISTING_REMOVED property being shadowed by a
// new one of the same name) in the attic, enforcing invariant 4
// (property shadowing): properties_attic[n] implies properties[n]
// exists with a different PropertyState.
func (t *PropertyTable) shadow(old *PropertyEntry) {
	t.attic[old.name.String()] = old
}

// unshadow removes name from the attic, returning the parked entry if
// any. Used by revert() to restore the pre-transient property and by
// save() once the shadow is durably gone.
func (t *PropertyTable) unshadow(name QualifiedName) (*PropertyEntry, bool) {
	p, ok := t.attic[name.String()]
	if ok {
		delete(t.attic, name.String())
	}
	return p, ok
}

// restoreAllAttic moves every parked property back into props, clearing
// the attic. Used by TransientRemove (so a subsequent Revert can still
// find them) and by Revert's own attic-restoration step (spec.md §4.6).
func (t *PropertyTable) restoreAllAttic() []*PropertyEntry {
	var restored []*PropertyEntry
	for key, old := range t.attic {
		t.props[key] = old
		delete(t.attic, key)
		restored = append(restored, old)
	}
	return restored
}

func (t *PropertyTable) list() []*PropertyEntry {
	out := make([]*PropertyEntry, 0, len(t.props))
	for _, p := range t.props {
		out = append(out, p)
	}
	return out
}
