package hier

import (
	"strconv"
	"strings"
)

// QualifiedName is a namespace-resolved name: the engine never looks at
// prefixes, only at the (namespace, local) pair the NameResolver hands
// back. Parsing raw "prefix:local" strings is the session facade's job
// (out of scope, spec.md §6); the engine consumes already-qualified
// names plus the resolver for the one case it still needs it: turning
// a remote ChildInfo.Name or an incoming Event's path segment back into
// a QualifiedName.
type QualifiedName struct {
	Namespace string
	Local     string
}

// String renders "{namespace}local" in Clark notation, or just the
// local part when there is no namespace. Used for logging and as a map
// key source; never parsed back.
func (n QualifiedName) String() string {
	if n.Namespace == "" {
		return n.Local
	}
	return "{" + n.Namespace + "}" + n.Local
}

// RootName is the sentinel name of the single root entry (invariant 6).
var RootName = QualifiedName{Local: ""}

func (n QualifiedName) isRoot() bool { return n == RootName }

// NameResolver is the consumed collaborator from spec.md §6.
type NameResolver interface {
	Parse(raw string) (QualifiedName, error)
	Format(n QualifiedName) (string, error)
}

// PathElement is one segment of a path being walked by get_deep_entry /
// lookup_deep_entry: a qualified name plus an optional 1-based SNS
// index. Index == 0 means "not specified" (defaults to 1 for lookups,
// and to "next available" for inserts).
type PathElement struct {
	Name  QualifiedName
	Index int
}

// ParsePath splits a slash-separated path into segments, resolving each
// segment's name through resolver and extracting a trailing "[n]" index
// suffix the way a JCR path like "a/b[2]/c" is understood. A leading
// "/" denotes an absolute (root-relative) path; Absolute reports this.
func ParsePath(resolver NameResolver, raw string) (segments []PathElement, absolute bool, err error) {
	if raw == "" {
		return nil, false, newErr(KindInvalid, "empty path")
	}
	if strings.HasPrefix(raw, "/") {
		absolute = true
		raw = strings.TrimPrefix(raw, "/")
	}
	if raw == "" {
		// bare "/": root itself, zero segments.
		return nil, absolute, nil
	}
	parts := strings.Split(raw, "/")
	segments = make([]PathElement, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, false, newErr(KindInvalid, "empty path segment in %q", raw)
		}
		local := part
		index := 0
		if strings.HasSuffix(part, "]") {
			open := strings.LastIndex(part, "[")
			if open < 0 {
				return nil, false, newErr(KindInvalid, "malformed index in segment %q", part)
			}
			idxStr := part[open+1 : len(part)-1]
			idx, convErr := strconv.Atoi(idxStr)
			if convErr != nil || idx < 1 {
				return nil, false, newErr(KindInvalid, "malformed index in segment %q", part)
			}
			local = part[:open]
			index = idx
		}
		qn, parseErr := resolver.Parse(local)
		if parseErr != nil {
			return nil, false, wrapErr(KindInvalid, parseErr, "malformed name %q", local)
		}
		segments = append(segments, PathElement{Name: qn, Index: index})
	}
	return segments, absolute, nil
}

// FormatPath renders segments back to a slash-separated string using
// resolver, the inverse of ParsePath; it can render the segments
// BuildPath returns. GetWorkspaceID and GetID build their strings
// without it.
func FormatPath(resolver NameResolver, segments []PathElement) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		s, err := resolver.Format(seg.Name)
		if err != nil {
			return "", wrapErr(KindInvalid, err, "cannot format name %v", seg.Name)
		}
		if seg.Index > 1 {
			s = s + "[" + strconv.Itoa(seg.Index) + "]"
		}
		parts = append(parts, s)
	}
	return "/" + strings.Join(parts, "/"), nil
}
