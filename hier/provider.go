package hier

import "context"

// ChildInfo is one entry in the remote child listing of a node, as
// returned by Provider.ChildInfos (spec.md §6).
type ChildInfo struct {
	Name     QualifiedName
	UniqueID string // empty if the remote item has no stable id
	Index    int    // 1-based SNS index as the server orders it, 0 if N/A
}

// NodeState and PropertyState are opaque payloads the remote provider
// builds; the engine never looks inside them, only holds and discards
// them (resolved_state in spec.md §3.1).
type NodeState interface {
	NodeStateMarker()
}

type PropertyState interface {
	// Equal reports whether two property payloads represent the same
	// value. The engine itself does not call it: neither property
	// shadowing nor the PROPERTY_CHANGED refetch compares payloads.
	Equal(other PropertyState) bool
	PropertyStateMarker()
}

// UniqueIDValuer is an optional capability a PropertyState may implement
// to expose its payload as a single string, so a jcr:uuid PROPERTY_CHANGED
// event can propagate the new id onto the owning NodeEntry (spec.md §4.7).
type UniqueIDValuer interface {
	UniqueIDValue() string
}

// MixinTypesValuer is the jcr:mixinTypes counterpart of UniqueIDValuer:
// a PropertyState implementing it exposes its payload as a set of type
// names (spec.md §4.7).
type MixinTypesValuer interface {
	MixinTypesValue() []string
}

// Provider is the consumed remote-storage collaborator (spec.md §6).
// Every method may block (a suspension point, §5) and must not be
// called while the caller holds any NodeEntry lock.
type Provider interface {
	// ChildInfos lists the immediate children of node, in server
	// order, for C5's reload algorithm.
	ChildInfos(ctx context.Context, nodeID string) ([]ChildInfo, error)

	// CreateNodeState builds the payload for a single node entry.
	CreateNodeState(ctx context.Context, nodeID string, parent *NodeEntry) (NodeState, error)

	// CreatePropertyState builds the payload for a single property
	// entry.
	CreatePropertyState(ctx context.Context, propID string, parent *NodeEntry) (PropertyState, error)

	// CreateDeepNodeState resolves a suffix path below anchor in one
	// remote round trip, materializing any missing intermediate
	// entries (get_deep_entry step 5, §4.6). It returns the entry at
	// the end of the suffix.
	CreateDeepNodeState(ctx context.Context, anchor *NodeEntry, suffix []PathElement) (*NodeEntry, error)
}

// IDFactory is the consumed collaborator from spec.md §6: builds opaque
// node/property ids from either a unique id or a (parent id, path)
// pair.
type IDFactory interface {
	NodeID(uniqueID string, parentID string, name QualifiedName, index int) string
	PropertyID(parentID string, name QualifiedName) string
}

// EventType enumerates the external change events the engine's C9
// refresh dispatch understands.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventNodeRemoved
	EventPropertyAdded
	EventPropertyRemoved
	EventPropertyChanged
)

func (t EventType) String() string {
	switch t {
	case EventNodeAdded:
		return "NODE_ADDED"
	case EventNodeRemoved:
		return "NODE_REMOVED"
	case EventPropertyAdded:
		return "PROPERTY_ADDED"
	case EventPropertyRemoved:
		return "PROPERTY_REMOVED"
	case EventPropertyChanged:
		return "PROPERTY_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single item delivered by the remote event source
// (spec.md §6).
type Event struct {
	Type   EventType
	ItemID string // unique_id of the item the event concerns, if any
	QPath  string // the server's qualified path for the item
}
