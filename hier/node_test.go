package hier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNodeState struct{ v string }

func (testNodeState) NodeStateMarker() {}

type testPropState struct{ v string }

func (testPropState) PropertyStateMarker() {}
func (s testPropState) Equal(o PropertyState) bool {
	other, ok := o.(testPropState)
	return ok && other.v == s.v
}

func newTestRoot() (*EntryStore, *NodeEntry) {
	store := NewEntryStore()
	root := store.allocate(nil, RootName, "", StatusExisting)
	root.children.loaded = true
	return store, root
}

func TestAddNewNodeThenSaveTransition(t *testing.T) {
	_, root := newTestRoot()
	name := QualifiedName{Local: "foo"}
	child, err := root.AddNewNode(name, "", testNodeState{v: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, child.Status())
	assert.Equal(t, 1, child.GetIndex())

	require.NoError(t, child.sm.transition(StatusExisting))
	assert.Equal(t, StatusExisting, child.Status())
}

func TestGetIndexDerivesFromLivePosition(t *testing.T) {
	_, root := newTestRoot()
	name := QualifiedName{Local: "sib"}
	a, _ := root.AddNewNode(name, "", testNodeState{})
	b, _ := root.AddNewNode(name, "", testNodeState{})
	c, _ := root.AddNewNode(name, "", testNodeState{})

	assert.Equal(t, 1, a.GetIndex())
	assert.Equal(t, 2, b.GetIndex())
	assert.Equal(t, 3, c.GetIndex())

	require.NoError(t, b.Remove())
	assert.Equal(t, 1, a.GetIndex())
	assert.Equal(t, 2, c.GetIndex(), "index is derived live, not cached, once b is removed")
}

func TestMoveThenRevertRestoresOriginalParentAndName(t *testing.T) {
	_, root := newTestRoot()
	srcName := QualifiedName{Local: "src"}
	dstName := QualifiedName{Local: "dst"}
	src, _ := root.AddNode(srcName, "u-src", 0)
	dst, _ := root.AddNode(dstName, "u-dst", 0)
	child, _ := src.AddNode(QualifiedName{Local: "child"}, "u-child", 0)
	require.Equal(t, StatusExisting, child.Status())

	newName := QualifiedName{Local: "moved"}
	require.NoError(t, child.Move(newName, dst, true))
	assert.Equal(t, dst, child.Parent())
	assert.Equal(t, newName, child.Name())
	assert.Equal(t, StatusExistingModified, child.Status())

	// The source parent's attic still resolves the old identity.
	src.mu.Lock()
	_, inAttic := src.childAttic.byPositionLookup(QualifiedName{Local: "child"}, 1)
	src.mu.Unlock()
	assert.True(t, inAttic)

	require.NoError(t, child.Revert())
	assert.Equal(t, src, child.Parent())
	assert.Equal(t, QualifiedName{Local: "child"}, child.Name())
	assert.Equal(t, StatusExisting, child.Status())

	src.mu.Lock()
	_, stillInAttic := src.childAttic.byPositionLookup(QualifiedName{Local: "child"}, 1)
	src.mu.Unlock()
	assert.False(t, stillInAttic, "revert must release the attic entry")
}

func TestOrderBeforeThenRevertRestoresOrder(t *testing.T) {
	_, root := newTestRoot()
	a, _ := root.AddNode(QualifiedName{Local: "a"}, "u-a", 0)
	b, _ := root.AddNode(QualifiedName{Local: "b"}, "u-b", 0)
	c, _ := root.AddNode(QualifiedName{Local: "c"}, "u-c", 0)

	require.NoError(t, c.OrderBefore(a))
	root.mu.Lock()
	order := root.children.all()
	root.mu.Unlock()
	require.Equal(t, []*NodeEntry{c, a, b}, order)

	require.NoError(t, root.Revert())
	root.mu.Lock()
	order = root.children.all()
	root.mu.Unlock()
	assert.Equal(t, []*NodeEntry{a, b, c}, order)
}

func TestRemoveNewNodeDiscardsImmediately(t *testing.T) {
	_, root := newTestRoot()
	child, _ := root.AddNewNode(QualifiedName{Local: "n"}, "", testNodeState{})
	require.NoError(t, child.Remove())
	assert.Equal(t, StatusRemoved, child.Status())
	assert.Empty(t, root.children.all())
}

func TestRemoveThenAddNewPropertyThenRevertRestoresShadowedProperty(t *testing.T) {
	_, root := newTestRoot()
	propName := QualifiedName{Local: "p"}
	prop, err := root.AddProperty(propName)
	require.NoError(t, err)
	prop.SetState(testPropState{v: "original"})
	require.NoError(t, prop.remove())
	assert.Equal(t, StatusExistingRemoved, prop.Status())

	fresh, err := root.AddNewProperty(propName, testPropState{v: "new"})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, fresh.Status())

	_, shadowed := root.properties.getAttic(propName)
	assert.True(t, shadowed, "the old EXISTING_REMOVED property must be parked, not dropped")

	require.NoError(t, root.Revert())

	restored, ok := root.properties.get(propName)
	require.True(t, ok)
	assert.Equal(t, StatusExisting, restored.Status())
	assert.Equal(t, testPropState{v: "original"}, restored.State())
}

func TestRevertOnNewSubtreeDiscardsDescendants(t *testing.T) {
	_, root := newTestRoot()
	parent, _ := root.AddNewNode(QualifiedName{Local: "p"}, "", testNodeState{})
	child, _ := parent.AddNewNode(QualifiedName{Local: "c"}, "", testNodeState{})

	require.NoError(t, parent.Revert())
	assert.Equal(t, StatusRemoved, parent.Status())
	assert.Equal(t, StatusRemoved, child.Status())
	assert.Empty(t, root.children.all())
}

func TestMoveIntoOwnSubtreeRejected(t *testing.T) {
	_, root := newTestRoot()
	parent, _ := root.AddNode(QualifiedName{Local: "p"}, "u-p", 0)
	child, _ := parent.AddNode(QualifiedName{Local: "c"}, "u-c", 0)

	err := parent.Move(QualifiedName{Local: "p2"}, child, true)
	require.Error(t, err)
	assert.Equal(t, KindInvalid, ErrKind(err))
}

func TestCollectChangesOrdersNewBeforeRemovalsAndDedupes(t *testing.T) {
	_, root := newTestRoot()
	keep, _ := root.AddNewNode(QualifiedName{Local: "keep"}, "", testNodeState{})
	gone, _ := root.AddNode(QualifiedName{Local: "gone"}, "u-gone", 0)
	require.NoError(t, gone.Remove())

	log := NewChangeLog()
	require.NoError(t, CollectChanges(root, log, false))

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Same(t, keep, entries[0])
	assert.Same(t, gone, entries[1])
}
