package export

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/numeric"
	"github.com/samwillis/solidtype-core/internal/rebuild"
)

func boxEntry(t *testing.T) *rebuild.BodyEntry {
	t.Helper()
	k := kernel.NewBuiltin(numeric.Default())
	s := k.CreateSketch(kernel.PlaneXY)
	s.AddPoint("p1", 0, 0, false)
	s.AddPoint("p2", 10, 0, false)
	s.AddPoint("p3", 10, 5, false)
	s.AddPoint("p4", 0, 5, false)
	require.NoError(t, s.AddLine("e1", "p1", "p2", false))
	require.NoError(t, s.AddLine("e2", "p2", "p3", false))
	require.NoError(t, s.AddLine("e3", "p3", "p4", false))
	require.NoError(t, s.AddLine("e4", "p4", "p1", false))
	profile, err := s.ToProfile(nil)
	require.NoError(t, err)
	body, err := k.Extrude(profile, kernel.PlaneXY, 3)
	require.NoError(t, err)
	return &rebuild.BodyEntry{ID: "b1", Feature: "f1", Name: "Box", Body: body}
}

func TestSTL_Binary(t *testing.T) {
	entry := boxEntry(t)

	data, err := New().STL([]*rebuild.BodyEntry{entry}, true)
	require.NoError(t, err)

	require.Greater(t, len(data), 84)
	count := binary.LittleEndian.Uint32(data[80:84])
	assert.Equal(t, uint32(12), count, "a box tessellates to twelve triangles")
	assert.Len(t, data, 84+int(count)*50)
}

func TestSTL_ASCII(t *testing.T) {
	entry := boxEntry(t)

	data, err := New().STL([]*rebuild.BodyEntry{entry}, false)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "solid solidtype\n"))
	assert.True(t, strings.HasSuffix(text, "endsolid solidtype\n"))
	assert.Equal(t, 12, strings.Count(text, "facet normal"))
}

func TestSTEP(t *testing.T) {
	entry := boxEntry(t)

	data, err := New().STEP([]*rebuild.BodyEntry{entry}, "box")
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "ISO-10303-21;\n"))
	assert.True(t, strings.HasSuffix(text, "END-ISO-10303-21;\n"))
	assert.Contains(t, text, "FACETED_BREP('box_0'")
	assert.Equal(t, 12, strings.Count(text, "POLY_LOOP"))
}
