// Package hiertest provides in-memory fakes for hier.Provider,
// hier.NameResolver and hier.IDFactory, the same role fstest/mockobject
// plays for rclone's fs.Fs in the teacher repo: a collaborator simple
// enough to drive deterministically from a table-driven test, standing
// in for a real remote workspace.
package hiertest

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hiertree/hiertree/hier"
)

// Resolver is a trivial hier.NameResolver with no namespace handling:
// Parse/Format are inverses of the identity function on the local part.
type Resolver struct{}

func (Resolver) Parse(raw string) (hier.QualifiedName, error) {
	return hier.QualifiedName{Local: raw}, nil
}

func (Resolver) Format(n hier.QualifiedName) (string, error) {
	return n.Local, nil
}

// IDFactory builds simple, readable ids for assertions in tests.
type IDFactory struct{}

func (IDFactory) NodeID(uniqueID, parentID string, name hier.QualifiedName, index int) string {
	if uniqueID != "" {
		return uniqueID
	}
	return parentID + "/" + name.Local
}

func (IDFactory) PropertyID(parentID string, name hier.QualifiedName) string {
	return parentID + "/" + name.Local
}

// State is a fake NodeState/PropertyState payload: a single opaque
// string value, equal to another State iff the strings match.
type State struct{ Value string }

func (State) NodeStateMarker()            {}
func (State) PropertyStateMarker()        {}
func (s State) Equal(o hier.PropertyState) bool {
	other, ok := o.(State)
	return ok && other.Value == s.Value
}

// UniqueIDValue satisfies hier.UniqueIDValuer, letting a test simulate a
// jcr:uuid PROPERTY_CHANGED event by storing the new id as a plain State.
func (s State) UniqueIDValue() string { return s.Value }

// MixinTypesValue satisfies hier.MixinTypesValuer, reading the fake's
// single string value as a comma-separated set of mixin type names.
func (s State) MixinTypesValue() []string {
	if s.Value == "" {
		return nil
	}
	return strings.Split(s.Value, ",")
}

// remoteNode is one node in the Provider's simulated server-side tree.
type remoteNode struct {
	uniqueID   string
	value      string
	children   []string // ordered child uniqueIDs
	properties map[string]string
}

// Provider is an in-memory stand-in for a real remote workspace. Its
// simulated state is mutated directly by tests (via AddChild,
// RemoveChild, SetProperty) to model server-side changes that arrive as
// hier.Events, independent of anything a Session does locally.
type Provider struct {
	mu    sync.Mutex
	nodes map[string]*remoteNode // keyed by uniqueID; "" is an unused sentinel
	names map[string]string      // uniqueID -> name, for ChildInfos ordering lookups
}

// NewProvider seeds a Provider with a single root node.
func NewProvider() *Provider {
	return &Provider{
		nodes: map[string]*remoteNode{
			"/": {uniqueID: "/", properties: map[string]string{}},
		},
		names: map[string]string{"/": ""},
	}
}

// AddChild creates a new remote child of parentID with the given name
// and value, returning its freshly minted unique id.
func (p *Provider) AddChild(parentID, name, value string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	p.nodes[id] = &remoteNode{uniqueID: id, value: value, properties: map[string]string{}}
	p.names[id] = name
	parent := p.nodes[parentID]
	parent.children = append(parent.children, id)
	return id
}

// RemoveChild deletes a remote child, simulating an independent
// server-side destroy.
func (p *Provider) RemoveChild(parentID, childID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	parent := p.nodes[parentID]
	for i, c := range parent.children {
		if c == childID {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	delete(p.nodes, childID)
	delete(p.names, childID)
}

// ReorderChildren replaces parentID's remote child order wholesale,
// simulating a server-side reorder a subsequent reload must reconcile.
// order must name exactly the child ids parentID currently has.
func (p *Provider) ReorderChildren(parentID string, order []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	parent := p.nodes[parentID]
	parent.children = append([]string(nil), order...)
}

// SetProperty sets a property value on a remote node, simulating a
// server-side edit.
func (p *Provider) SetProperty(nodeID, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[nodeID].properties[name] = value
}

func (p *Provider) ChildInfos(ctx context.Context, nodeID string) ([]hier.ChildInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	node, ok := p.nodes[nodeID]
	if !ok {
		return nil, hierNotFound(nodeID)
	}
	counts := map[string]int{}
	out := make([]hier.ChildInfo, 0, len(node.children))
	for _, id := range node.children {
		name := p.names[id]
		counts[name]++
		out = append(out, hier.ChildInfo{
			Name:     hier.QualifiedName{Local: name},
			UniqueID: id,
			Index:    counts[name],
		})
	}
	return out, nil
}

func (p *Provider) CreateNodeState(ctx context.Context, nodeID string, parent *hier.NodeEntry) (hier.NodeState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	node, ok := p.nodes[nodeID]
	if !ok {
		return nil, hierNotFound(nodeID)
	}
	return State{Value: node.value}, nil
}

// CreatePropertyState resolves a propID built by IDFactory.PropertyID
// (parentID + "/" + local name) back into the fake remote node's
// property map, so event-driven property refetches (hier.Session.Refresh
// on a PROPERTY_CHANGED event) observe values SetProperty installed.
func (p *Provider) CreatePropertyState(ctx context.Context, propID string, parent *hier.NodeEntry) (hier.PropertyState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sep := strings.LastIndex(propID, "/")
	if sep < 0 {
		return nil, hierNotFound(propID)
	}
	parentID, local := propID[:sep], propID[sep+1:]
	node, ok := p.nodes[parentID]
	if !ok {
		return nil, hierNotFound(propID)
	}
	value, ok := node.properties[local]
	if !ok {
		return nil, hierNotFound(propID)
	}
	return State{Value: value}, nil
}

func (p *Provider) CreateDeepNodeState(ctx context.Context, anchor *hier.NodeEntry, suffix []hier.PathElement) (*hier.NodeEntry, error) {
	return nil, hierNotFound("deep resolution is not modeled by this fake")
}

func hierNotFound(what string) error {
	return hier.NewNotFoundError("no such remote entry %s", what)
}
