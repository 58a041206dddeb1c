package hier

// lockPair locks two distinct NodeEntries in a fixed order (by
// allocation sequence) so that two operations needing both locks can
// never deadlock against each other, generalizing the "lock entries in
// parent-to-child order" discipline of spec.md §5 to the one operation,
// move(), that touches two unrelated parents at once. The returned
// func unlocks both, in reverse order.
func lockPair(a, b *NodeEntry) func() {
	invariant(a != nil && b != nil, "lockPair called with a nil NodeEntry")
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if b.seq < a.seq {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
