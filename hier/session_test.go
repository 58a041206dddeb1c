package hier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiertree/hiertree/hier"
	"github.com/hiertree/hiertree/hiertest"
)

func newTestSession() (*hier.Session, *hiertest.Provider) {
	provider := hiertest.NewProvider()
	sess := hier.NewSession(provider, hiertest.Resolver{}, hiertest.IDFactory{}, hier.DefaultOptions)
	return sess, provider
}

func TestSessionChildrenLoadsFromProvider(t *testing.T) {
	sess, provider := newTestSession()
	provider.AddChild("/", "alpha", "a")
	provider.AddChild("/", "beta", "b")

	children, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "alpha", children[0].Name().Local)
	assert.Equal(t, "beta", children[1].Name().Local)
	assert.Equal(t, hier.StatusExisting, children[0].Status())
}

func TestSessionChildrenReloadReconcilesRemoteRemoval(t *testing.T) {
	sess, provider := newTestSession()
	id := provider.AddChild("/", "alpha", "a")

	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	provider.RemoveChild("/", id)
	sess.Root().Invalidate()

	children, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)
	assert.Empty(t, children, "a child independently destroyed remotely must disappear from listing")
}

func TestSessionChildrenReloadPreservesLocallyAddedNode(t *testing.T) {
	sess, provider := newTestSession()
	provider.AddChild("/", "alpha", "a")

	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	fresh, err := sess.Root().AddNewNode(hier.QualifiedName{Local: "local-only"}, "", hiertest.State{Value: "new"})
	require.NoError(t, err)

	sess.Root().Invalidate()
	children, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	require.Len(t, children, 2)
	assert.Contains(t, children, fresh)
	assert.Equal(t, hier.StatusNew, fresh.Status(), "reload must never overwrite a NEW entry's status")
}

func TestSessionRefreshInvalidatesTargetedNode(t *testing.T) {
	sess, provider := newTestSession()
	id := provider.AddChild("/", "alpha", "a")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	provider.AddChild(id, "grandchild", "g")
	require.NoError(t, sess.Refresh(context.Background(), hier.Event{
		Type:   hier.EventNodeAdded,
		QPath:  "/alpha/grandchild",
		ItemID: "",
	}))

	alpha, ok := sess.LookupDeepEntry("/alpha")
	require.True(t, ok)
	node := alpha.(*hier.NodeEntry)
	assert.Equal(t, hier.StatusInvalidated, node.Status())

	children, err := sess.Children(context.Background(), node)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "grandchild", children[0].Name().Local)
}

// TestSessionRefreshDestroysExternallyRemovedModifiedNode is spec.md
// scenario S2: a NODE_REMOVED event must win over a pending local
// modification, not leave the node EXISTING_MODIFIED.
func TestSessionRefreshDestroysExternallyRemovedModifiedNode(t *testing.T) {
	sess, provider := newTestSession()
	provider.AddChild("/", "x", "v1")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	x, ok := sess.LookupDeepEntry("/x")
	require.True(t, ok)
	xNode := x.(*hier.NodeEntry)

	prop, err := xNode.AddProperty(hier.QualifiedName{Local: "title"})
	require.NoError(t, err)
	require.NoError(t, prop.SetValue(hiertest.State{Value: "renamed"}))
	require.Equal(t, hier.StatusExistingModified, xNode.Status())

	require.NoError(t, sess.Refresh(context.Background(), hier.Event{
		Type:  hier.EventNodeRemoved,
		QPath: "/x",
	}))
	assert.Equal(t, hier.StatusStaleDestroyed, xNode.Status())

	_, err = sess.CollectChanges(true)
	require.Error(t, err)
	assert.True(t, hier.IsStale(err))
}

// TestSessionRefreshDestroysAtticdMovedChild is spec.md scenario S6: an
// event naming the old location of a moved child must still resolve to
// it (here through its unique_id, which the entry store indexes), and
// destroy it rather than merely invalidate it.
func TestSessionRefreshDestroysAtticdMovedChild(t *testing.T) {
	sess, provider := newTestSession()
	id := provider.AddChild("/", "x", "v1")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	folder, err := sess.Root().AddNewNode(hier.QualifiedName{Local: "y"}, "", hiertest.State{Value: "f"})
	require.NoError(t, err)

	x, ok := sess.LookupDeepEntry("/x")
	require.True(t, ok)
	xNode := x.(*hier.NodeEntry)
	require.NoError(t, xNode.Move(hier.QualifiedName{Local: "x"}, folder, true))

	require.NoError(t, sess.Refresh(context.Background(), hier.Event{
		Type:   hier.EventNodeRemoved,
		QPath:  "/x",
		ItemID: id,
	}))
	assert.Equal(t, hier.StatusStaleDestroyed, xNode.Status())
}

// TestSessionRefreshPropagatesUniqueIDChange covers the jcr:uuid half of
// spec.md §4.7's PROPERTY_CHANGED side effect.
func TestSessionRefreshPropagatesUniqueIDChange(t *testing.T) {
	sess, provider := newTestSession()
	id := provider.AddChild("/", "x", "v1")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	x, ok := sess.LookupDeepEntry("/x")
	require.True(t, ok)
	xNode := x.(*hier.NodeEntry)

	_, err = xNode.AddProperty(hier.QualifiedName{Local: "jcr:uuid"})
	require.NoError(t, err)
	provider.SetProperty(id, "jcr:uuid", "new-uuid-value")

	require.NoError(t, sess.Refresh(context.Background(), hier.Event{
		Type:  hier.EventPropertyChanged,
		QPath: "/x/jcr:uuid",
	}))
	assert.Equal(t, "new-uuid-value", xNode.UniqueID())
}

// TestSessionRefreshPropagatesMixinTypesChange covers the jcr:mixinTypes
// half of spec.md §4.7's PROPERTY_CHANGED side effect.
func TestSessionRefreshPropagatesMixinTypesChange(t *testing.T) {
	sess, provider := newTestSession()
	id := provider.AddChild("/", "x", "v1")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	x, ok := sess.LookupDeepEntry("/x")
	require.True(t, ok)
	xNode := x.(*hier.NodeEntry)

	_, err = xNode.AddProperty(hier.QualifiedName{Local: "jcr:mixinTypes"})
	require.NoError(t, err)
	provider.SetProperty(id, "jcr:mixinTypes", "mix:versionable,mix:referenceable")

	require.NoError(t, sess.Refresh(context.Background(), hier.Event{
		Type:  hier.EventPropertyChanged,
		QPath: "/x/jcr:mixinTypes",
	}))
	assert.Equal(t, []string{"mix:versionable", "mix:referenceable"}, xNode.MixinTypes())
}

// TestSessionChildrenReloadReordersKnownChildren covers spec.md §4.3's
// two-pass merge: a server-side reorder of still-present children must
// be reflected, not just additions/removals.
func TestSessionChildrenReloadReordersKnownChildren(t *testing.T) {
	sess, provider := newTestSession()
	idA := provider.AddChild("/", "a", "1")
	idB := provider.AddChild("/", "b", "2")

	children, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Name().Local)
	assert.Equal(t, "b", children[1].Name().Local)

	provider.ReorderChildren("/", []string{idB, idA})
	idC := provider.AddChild("/", "c", "3")
	provider.ReorderChildren("/", []string{idB, idC, idA})

	sess.Root().Invalidate()
	children, err = sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "b", children[0].Name().Local)
	assert.Equal(t, "c", children[1].Name().Local)
	assert.Equal(t, "a", children[2].Name().Local)
}

func TestSessionRefreshIgnoresUnmaterializedEntry(t *testing.T) {
	sess, _ := newTestSession()
	err := sess.Refresh(context.Background(), hier.Event{
		Type:  hier.EventNodeAdded,
		QPath: "/never/loaded",
	})
	assert.NoError(t, err)
}

func TestSessionCollectChangesAndRevert(t *testing.T) {
	sess, provider := newTestSession()
	provider.AddChild("/", "alpha", "a")
	_, err := sess.Children(context.Background(), sess.Root())
	require.NoError(t, err)

	_, err = sess.Root().AddNewNode(hier.QualifiedName{Local: "beta"}, "", hiertest.State{Value: "b"})
	require.NoError(t, err)

	log, err := sess.CollectChanges(false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.Len())

	require.NoError(t, sess.Revert())
	log, err = sess.CollectChanges(false)
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
}
