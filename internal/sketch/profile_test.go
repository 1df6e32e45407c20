package sketch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwillis/solidtype-core/internal/geom"
)

func rectangleSketch(t *testing.T) *Sketch {
	t.Helper()
	s := newTest()
	s.AddPoint("p1", 0, 0, false)
	s.AddPoint("p2", 10, 0, false)
	s.AddPoint("p3", 10, 5, false)
	s.AddPoint("p4", 0, 5, false)
	require.NoError(t, s.AddLine("e1", "p1", "p2", false))
	require.NoError(t, s.AddLine("e2", "p2", "p3", false))
	require.NoError(t, s.AddLine("e3", "p3", "p4", false))
	require.NoError(t, s.AddLine("e4", "p4", "p1", false))
	return s
}

func TestToProfile_Rectangle(t *testing.T) {
	s := rectangleSketch(t)

	p, err := s.ToProfile(nil)
	require.NoError(t, err)

	require.Len(t, p.Regions, 1)
	r := p.Regions[0]
	assert.Empty(t, r.Holes)
	require.Len(t, r.Outer.Curves, 4)

	ring := r.Outer.Polyline()
	assert.Len(t, ring, 4)
	assert.Positive(t, SignedArea(ring), "outer loops are counter-clockwise")
}

func TestToProfile_RectangleWithHole(t *testing.T) {
	s := rectangleSketch(t)
	s.AddPoint("pc", 5, 2.5, false)
	require.NoError(t, s.AddCircle("e5", "pc", 1, false))

	p, err := s.ToProfile(nil)
	require.NoError(t, err)

	require.Len(t, p.Regions, 1)
	r := p.Regions[0]
	require.Len(t, r.Holes, 1)
	assert.True(t, r.Holes[0].Hole)
	assert.Negative(t, SignedArea(r.Holes[0].Polyline()), "holes are clockwise")
	assert.Equal(t, "e5", r.Holes[0].Curves[0].Entity)
}

func TestToProfile_StandaloneCircle(t *testing.T) {
	s := newTest()
	s.AddPoint("pc", 0, 0, false)
	require.NoError(t, s.AddCircle("e1", "pc", 2, false))

	p, err := s.ToProfile(nil)
	require.NoError(t, err)
	require.Len(t, p.Regions, 1)
	assert.Len(t, p.Regions[0].Outer.Polyline(), circleSegments)
}

func TestToProfile_OpenChainFails(t *testing.T) {
	s := newTest()
	s.AddPoint("p1", 0, 0, false)
	s.AddPoint("p2", 10, 0, false)
	s.AddPoint("p3", 10, 5, false)
	require.NoError(t, s.AddLine("e1", "p1", "p2", false))
	require.NoError(t, s.AddLine("e2", "p2", "p3", false))

	_, err := s.ToProfile(nil)
	assert.ErrorIs(t, err, ErrOpenProfile)
}

func TestToProfile_ConstructionExcluded(t *testing.T) {
	s := rectangleSketch(t)
	// A construction diagonal must not break or join the profile.
	require.NoError(t, s.AddLine("e9", "p1", "p3", true))

	p, err := s.ToProfile(nil)
	require.NoError(t, err)
	require.Len(t, p.Regions, 1)
	assert.Len(t, p.Regions[0].Outer.Curves, 4)
}

func TestToProfile_MarkConstruction(t *testing.T) {
	s := rectangleSketch(t)
	s.MarkConstruction("e1")

	_, err := s.ToProfile(nil)
	assert.ErrorIs(t, err, ErrOpenProfile, "removing one side opens the loop")
}

func TestToProfile_ArcCap(t *testing.T) {
	// A slot: bottom line, right arc up, top line back, left arc down.
	s := newTest()
	s.AddPoint("p1", 0, 0, false)
	s.AddPoint("p2", 10, 0, false)
	s.AddPoint("p3", 10, 2, false)
	s.AddPoint("p4", 0, 2, false)
	s.AddPoint("cr", 10, 1, false)
	s.AddPoint("cl", 0, 1, false)
	require.NoError(t, s.AddLine("e1", "p1", "p2", false))
	require.NoError(t, s.AddArc("e2", "p2", "p3", "cr", true, false))
	require.NoError(t, s.AddLine("e3", "p3", "p4", false))
	require.NoError(t, s.AddArc("e4", "p4", "p1", "cl", true, false))

	p, err := s.ToProfile(nil)
	require.NoError(t, err)
	require.Len(t, p.Regions, 1)
	outer := p.Regions[0].Outer
	require.Len(t, outer.Curves, 4)
	assert.Positive(t, SignedArea(outer.Polyline()))
}

func TestToProfile_SelfIntersecting(t *testing.T) {
	// A bowtie: two triangles sharing a crossing, traced as one loop.
	s := newTest()
	s.AddPoint("p1", 0, 0, false)
	s.AddPoint("p2", 10, 5, false)
	s.AddPoint("p3", 10, 0, false)
	s.AddPoint("p4", 0, 5, false)
	require.NoError(t, s.AddLine("e1", "p1", "p2", false))
	require.NoError(t, s.AddLine("e2", "p2", "p3", false))
	require.NoError(t, s.AddLine("e3", "p3", "p4", false))
	require.NoError(t, s.AddLine("e4", "p4", "p1", false))

	_, err := s.ToProfile(nil)
	assert.ErrorIs(t, err, ErrSelfIntersecting)
}

func TestPointInRing(t *testing.T) {
	square := []geom.Vec2{geom.V2(0, 0), geom.V2(4, 0), geom.V2(4, 4), geom.V2(0, 4)}

	assert.True(t, PointInRing(geom.V2(2, 2), square))
	assert.False(t, PointInRing(geom.V2(5, 2), square))
	assert.False(t, PointInRing(geom.V2(-1, -1), square))
}
