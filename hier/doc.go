// Package hier implements a transient hierarchy engine: an in-memory
// graph of node and property entries that shadows a remote content
// repository workspace, accumulates uncommitted edits, and survives
// concurrent external change events while remaining revertible to the
// last state observed on the workspace.
package hier
