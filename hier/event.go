package hier

import "context"

// dispatchEvent locates the local entry a server Event concerns and
// drives it the rest of the way itself (spec.md C9, §4.7): a NODE_ADDED
// event just invalidates the parent, letting C5's reload_children pick
// up the new child on the next Children call; a PROPERTY_ADDED event
// invalidates the property of that name if one is already materialized
// locally and is ignored otherwise (no property entry is allocated for
// it); a REMOVED or CHANGED event names a concrete, already-materialized
// entry and must resolve its fate now, not merely flag it stale.
func (s *Session) dispatchEvent(ctx context.Context, ev Event) error {
	target, ok := s.locateForEvent(ev)
	if !ok {
		s.log.WithField("path", ev.QPath).Debug("event refresh: no local entry to reconcile")
		return nil
	}
	// A NEW entry has no server-side counterpart yet; an event about its
	// path or id is either about an unrelated entry that happens to
	// share a transient identity, or stale, and must never override
	// locally staged work (spec.md §3.2, "SAVE/REVERT... not external
	// events" about NEW's transitions).
	if target.Status() == StatusNew {
		return nil
	}

	switch ev.Type {
	case EventNodeAdded, EventPropertyAdded:
		target.Invalidate()

	case EventNodeRemoved:
		node, ok := target.(*NodeEntry)
		if !ok {
			return nil
		}
		if err := node.externalDestroy(); err != nil {
			return err
		}
		s.log.WithFields(entryFields(node)).Warn("event refresh: node destroyed on workspace")

	case EventPropertyRemoved:
		prop, ok := target.(*PropertyEntry)
		if !ok {
			return nil
		}
		if err := prop.externalDestroy(); err != nil {
			return err
		}
		s.log.WithFields(entryFields(prop)).Warn("event refresh: property destroyed on workspace")

	case EventPropertyChanged:
		prop, ok := target.(*PropertyEntry)
		if !ok {
			return nil
		}
		if err := s.refreshChangedProperty(ctx, prop); err != nil {
			return err
		}
	}

	s.log.WithField("type", ev.Type.String()).Debug("event refresh dispatched")
	return nil
}

// refreshChangedProperty refetches prop's payload (the suspension point,
// run with no NodeEntry lock held, spec.md §5) and, if prop is jcr:uuid
// or jcr:mixinTypes, propagates the new value onto the owning NodeEntry
// (spec.md §4.7): these two property names are the only ones whose
// content the engine itself interprets, everything else is opaque.
func (s *Session) refreshChangedProperty(ctx context.Context, prop *PropertyEntry) error {
	parent := prop.Parent()
	if parent == nil {
		return nil
	}
	propID := s.idFactory.PropertyID(parent.GetWorkspaceID(), prop.Name())
	state, err := s.provider.CreatePropertyState(ctx, propID, parent)
	if err != nil {
		return wrapErr(KindTransport, err, "refetching changed property %s", prop.Name())
	}
	prop.SetState(state)

	switch prop.Name().Local {
	case "jcr:uuid":
		if carrier, ok := state.(UniqueIDValuer); ok {
			parent.setUniqueID(carrier.UniqueIDValue())
		}
	case "jcr:mixinTypes":
		if carrier, ok := state.(MixinTypesValuer); ok {
			parent.setMixinTypes(carrier.MixinTypesValue())
		}
	}
	return nil
}

// locateForEvent resolves an Event to the local Entry it concerns, if
// any is materialized. Resolution prefers the stable unique id (works
// across a local rename/move that the server doesn't know about yet)
// and falls back to the qualified path, checking the final segment's
// parent attic (the child attic for NODE_REMOVED, the property attic for
// property events) before concluding there's no local match (spec.md
// §4.4: an event about an entry parked in an attic must still resolve
// there, not silently miss). Intermediate segments are resolved through
// live child lists only.
func (s *Session) locateForEvent(ev Event) (Entry, bool) {
	if ev.ItemID != "" {
		if n, ok := s.store.lookupByUniqueID(ev.ItemID); ok {
			return n, true
		}
	}
	if ev.QPath == "" {
		return nil, false
	}
	segments, _, err := ParsePath(s.resolver, ev.QPath)
	if err != nil {
		return nil, false
	}
	if len(segments) == 0 {
		return s.root, true
	}

	switch ev.Type {
	case EventNodeAdded:
		parent, ok := s.lookupLocalNode(s.root, segments[:len(segments)-1])
		if !ok {
			return nil, false
		}
		return parent, true

	case EventNodeRemoved:
		parent, ok := s.lookupLocalNode(s.root, segments[:len(segments)-1])
		if !ok {
			return nil, false
		}
		last := segments[len(segments)-1]
		parent.mu.Lock()
		child, inAttic := parent.childAttic.byPositionLookup(last.Name, last.Index)
		if !inAttic {
			child, ok = parent.children.getIndex(last.Name, last.Index)
		} else {
			ok = true
		}
		parent.mu.Unlock()
		if !ok {
			// Nothing locally materialized at that position: nothing to
			// destroy.
			return nil, false
		}
		return child, true

	default: // property events
		parent, ok := s.lookupLocalNode(s.root, segments[:len(segments)-1])
		if !ok {
			return nil, false
		}
		last := segments[len(segments)-1]
		parent.mu.Lock()
		prop, found := parent.properties.get(last.Name)
		if !found {
			prop, found = parent.properties.getAttic(last.Name)
		}
		parent.mu.Unlock()
		if !found {
			// No locally materialized property: nothing staged that an
			// event could affect. Not an error; just a no-op.
			return nil, false
		}
		return prop, true
	}
}

// lookupLocalNode walks segs from anchor using only already-materialized
// children, never consulting the remote provider. Used by event
// dispatch, which must never synthesize entries for a subtree the
// session hasn't loaded.
func (s *Session) lookupLocalNode(anchor *NodeEntry, segs []PathElement) (*NodeEntry, bool) {
	cur := anchor
	for _, seg := range segs {
		cur.mu.Lock()
		child, ok := cur.children.getIndex(seg.Name, seg.Index)
		cur.mu.Unlock()
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}
