package hier

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Session is the engine's entry point: one Session per client connection
// to a single workspace, owning the EntryStore and the root NodeEntry
// (spec.md §2, "New: Session Wiring"). It is the Go-native analogue of
// rclone's vfs.VFS: a facade that wires a remote collaborator (Provider)
// to an in-memory tree and exposes the operations callers actually use.
type Session struct {
	store     *EntryStore
	root      *NodeEntry
	provider  Provider
	resolver  NameResolver
	idFactory IDFactory
	opt       Options
	log       logrus.FieldLogger

	// reloadGroup coalesces concurrent reload_children calls for the
	// same node into a single remote round trip (golang.org/x/sync/
	// singleflight), the same pattern rclone's backend/cache uses to
	// dedupe concurrent directory listings of one remote path.
	reloadGroup singleflight.Group
}

// NewSession builds a Session rooted at a fresh, empty root NodeEntry.
// The root always starts EXISTING: it is never NEW (invariant 6) and is
// lazily populated from provider on first access.
func NewSession(provider Provider, resolver NameResolver, idFactory IDFactory, opt Options) *Session {
	store := NewEntryStore()
	root := store.allocate(nil, RootName, "", StatusExisting)
	log := opt.Logger
	if log == nil {
		log = logger
	}
	return &Session{
		store:     store,
		root:      root,
		provider:  newRateLimitedProvider(provider, opt),
		resolver:  resolver,
		idFactory: idFactory,
		opt:       opt,
		log:       log,
	}
}

// Root returns the session's root NodeEntry.
func (s *Session) Root() *NodeEntry { return s.root }

// Children returns n's live children, reloading from the remote provider
// first if n's list has never been loaded or was invalidated.
func (s *Session) Children(ctx context.Context, n *NodeEntry) ([]*NodeEntry, error) {
	n.mu.Lock()
	needsLoad := !n.children.loaded || n.children.status == ListStatusInvalidated
	n.mu.Unlock()

	if needsLoad {
		if err := s.reloadSingleflight(ctx, n); err != nil {
			return nil, err
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children.all(), nil
}

// reloadSingleflight coalesces concurrent reloads of the same node's
// children into one call to Provider.ChildInfos.
func (s *Session) reloadSingleflight(ctx context.Context, n *NodeEntry) error {
	key := n.GetID()
	_, err, shared := s.reloadGroup.Do(key, func() (interface{}, error) {
		return nil, n.reloadChildren(ctx, s.provider)
	})
	s.log.WithFields(logrus.Fields{"id": key, "coalesced": shared}).Debug("reloaded children")
	return err
}

// GetDeepEntry resolves path relative to the root, consulting the
// remote provider for any suffix not already materialized (spec.md
// §4.6).
func (s *Session) GetDeepEntry(ctx context.Context, path string) (Entry, error) {
	return s.root.GetDeepEntry(ctx, s.resolver, s.provider, path)
}

// LookupDeepEntry is the purely local counterpart: never calls out to
// the remote provider, reports (nil, false) on miss.
func (s *Session) LookupDeepEntry(path string) (Entry, bool) {
	return s.root.LookupDeepEntry(s.resolver, path)
}

// CollectChanges stages every uncommitted edit in the whole session into
// a ChangeLog, the payload a caller hands to its own save()
// implementation (spec.md §6, C10).
func (s *Session) CollectChanges(throwOnStale bool) (*ChangeLog, error) {
	log := NewChangeLog()
	if err := CollectChanges(s.root, log, throwOnStale); err != nil {
		return nil, err
	}
	return log, nil
}

// Revert discards every uncommitted edit in the session, restoring the
// whole tree to its last-observed-workspace state (spec.md §4.6).
func (s *Session) Revert() error {
	return s.root.Revert()
}

// Refresh applies one externally observed Event to the local tree
// (spec.md C9, §3.4). Events about entries this session never
// materialized, or about NEW entries the server doesn't know exist yet,
// are silently ignored: there's nothing local to reconcile.
func (s *Session) Refresh(ctx context.Context, ev Event) error {
	return s.dispatchEvent(ctx, ev)
}
