package hier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughResolver struct{}

func (passthroughResolver) Parse(raw string) (QualifiedName, error) {
	return QualifiedName{Local: raw}, nil
}

func (passthroughResolver) Format(n QualifiedName) (string, error) {
	return n.Local, nil
}

func TestParsePathAbsoluteWithIndices(t *testing.T) {
	segs, absolute, err := ParsePath(passthroughResolver{}, "/a/b[2]/c")
	require.NoError(t, err)
	assert.True(t, absolute)
	require.Len(t, segs, 3)
	assert.Equal(t, "a", segs[0].Name.Local)
	assert.Equal(t, 0, segs[0].Index)
	assert.Equal(t, "b", segs[1].Name.Local)
	assert.Equal(t, 2, segs[1].Index)
	assert.Equal(t, "c", segs[2].Name.Local)
}

func TestParsePathRelative(t *testing.T) {
	segs, absolute, err := ParsePath(passthroughResolver{}, "a/b")
	require.NoError(t, err)
	assert.False(t, absolute)
	assert.Len(t, segs, 2)
}

func TestParsePathBareRootIsZeroSegments(t *testing.T) {
	segs, absolute, err := ParsePath(passthroughResolver{}, "/")
	require.NoError(t, err)
	assert.True(t, absolute)
	assert.Empty(t, segs)
}

func TestParsePathRejectsEmptySegment(t *testing.T) {
	_, _, err := ParsePath(passthroughResolver{}, "a//b")
	require.Error(t, err)
	assert.Equal(t, KindInvalid, ErrKind(err))
}

func TestParsePathRejectsMalformedIndex(t *testing.T) {
	_, _, err := ParsePath(passthroughResolver{}, "a[x]")
	require.Error(t, err)
	assert.Equal(t, KindInvalid, ErrKind(err))
}

func TestFormatPathRoundTrip(t *testing.T) {
	segs, _, err := ParsePath(passthroughResolver{}, "/a/b[2]")
	require.NoError(t, err)
	out, err := FormatPath(passthroughResolver{}, segs)
	require.NoError(t, err)
	assert.Equal(t, "/a/b[2]", out)
}

func TestFormatPathOmitsIndexOne(t *testing.T) {
	segs := []PathElement{{Name: QualifiedName{Local: "a"}, Index: 1}}
	out, err := FormatPath(passthroughResolver{}, segs)
	require.NoError(t, err)
	assert.Equal(t, "/a", out)
}
