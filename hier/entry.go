package hier

// Entry is the capability set every HierarchyEntry exposes to callers
// that don't care whether they're holding a node or a property (design
// notes §9): status, parent, name, invalidation, and participation in
// collect_changes.
type Entry interface {
	Status() Status
	Parent() *NodeEntry
	Name() QualifiedName
	Invalidate()
	collectChanges(log *ChangeLog, throwOnStale bool) error
}

// baseEntry carries the fields common to NodeEntry and PropertyEntry
// (spec.md §3.1): a back-reference to the owning parent, the current
// qualified name, and the status machine. It is embedded, not
// inherited from, matching Go's composition-over-polymorphism idiom
// (design notes §9: "tagged variant with common fields shared").
type baseEntry struct {
	store  *EntryStore
	parent *NodeEntry
	name   QualifiedName
	sm     *statusMachine
}

func (b *baseEntry) Status() Status    { return b.sm.Status() }
func (b *baseEntry) Parent() *NodeEntry { return b.parent }
func (b *baseEntry) Name() QualifiedName { return b.name }
