package sketch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

func newTest() *Sketch { return New(numeric.Default()) }

func TestSolve_CoincidentPullsTogether(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 3, 4, false)
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintCoincident, Points: []string{"a", "b"},
	}))

	status := s.Solve()

	b, _ := s.Point("b")
	assert.InDelta(t, 0, b.X, 1e-8)
	assert.InDelta(t, 0, b.Y, 1e-8)
	assert.Equal(t, StatusSolved, status)
}

func TestSolve_DistanceAndHorizontal(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 3, 1, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Lines: []string{"l1"},
	}))
	require.NoError(t, s.AddConstraint("c2", feature.SketchConstraint{
		Kind: feature.ConstraintDistance, Lines: []string{"l1"}, Value: 5,
	}))

	status := s.Solve()

	a, _ := s.Point("a")
	b, _ := s.Point("b")
	assert.InDelta(t, 0, b.Y, 1e-8)
	assert.InDelta(t, 5, b.Sub(a).Len(), 1e-8)
	assert.Equal(t, StatusSolved, status)
	assert.True(t, s.AnalyzeDOF().IsFullyConstrained)
}

func TestSolve_PerpendicularAndParallel(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 10, 0, true)
	s.AddPoint("c", 10.5, 4, false)
	s.AddPoint("d", 0.5, 4.2, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddLine("l2", "b", "c", false))
	require.NoError(t, s.AddLine("l3", "c", "d", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintPerpendicular, Lines: []string{"l1", "l2"},
	}))
	require.NoError(t, s.AddConstraint("c2", feature.SketchConstraint{
		Kind: feature.ConstraintParallel, Lines: []string{"l1", "l3"},
	}))

	s.Solve()

	c, _ := s.Point("c")
	d, _ := s.Point("d")
	assert.InDelta(t, 10, c.X, 1e-6, "l2 stays vertical above b")
	assert.InDelta(t, c.Y, d.Y, 1e-6, "l3 parallel to the horizontal l1")
}

func TestSolve_FixedConstraint(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 1, 1, false)
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintFixed, Points: []string{"a"}, TX: 7, TY: -2,
	}))

	status := s.Solve()

	a, _ := s.Point("a")
	assert.InDelta(t, 7, a.X, 1e-8)
	assert.InDelta(t, -2, a.Y, 1e-8)
	assert.Equal(t, StatusSolved, status)
}

func TestSolve_OverConstrained(t *testing.T) {
	// One line, both endpoints pinned, plus a distance that contradicts the
	// pinned span.
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 10, 0, true)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintDistance, Lines: []string{"l1"}, Value: 4,
	}))

	status := s.Solve()
	dof := s.AnalyzeDOF()

	assert.Equal(t, StatusOverConstrained, status)
	assert.True(t, dof.IsOverConstrained)
	assert.Equal(t, 0, dof.Total)
}

func TestSolve_UnderConstrained(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, false)
	s.AddPoint("b", 10, 3, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Lines: []string{"l1"},
	}))

	status := s.Solve()
	dof := s.AnalyzeDOF()

	assert.Equal(t, StatusUnderConstrained, status)
	assert.Equal(t, 4, dof.Total)
	assert.Equal(t, 3, dof.Remaining)
	assert.False(t, dof.IsOverConstrained)
}

func TestSolve_RedundantConsistent(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 5, 0, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	// Same horizontal stated twice: redundant but consistent.
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Lines: []string{"l1"},
	}))
	require.NoError(t, s.AddConstraint("c2", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Points: []string{"a", "b"},
	}))

	status := s.Solve()

	assert.Equal(t, StatusSolvedWithWarnings, status)
	assert.False(t, s.AnalyzeDOF().IsOverConstrained)
}

func TestSolve_Symmetric(t *testing.T) {
	s := newTest()
	s.AddPoint("a0", 0, -5, true)
	s.AddPoint("a1", 0, 5, true)
	s.AddPoint("p", -3, 2, true)
	s.AddPoint("q", 2.5, 1.5, false)
	require.NoError(t, s.AddLine("axis", "a0", "a1", true))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintSymmetric, Points: []string{"p", "q"}, Lines: []string{"axis"},
	}))

	s.Solve()

	q, _ := s.Point("q")
	assert.InDelta(t, 3, q.X, 1e-6)
	assert.InDelta(t, 2, q.Y, 1e-6)
}

func TestSolve_EqualLength(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 10, 0, true)
	s.AddPoint("c", 0, 3, true)
	s.AddPoint("d", 4, 3, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddLine("l2", "c", "d", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintEqualLength, Lines: []string{"l1", "l2"},
	}))
	require.NoError(t, s.AddConstraint("c2", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Lines: []string{"l2"},
	}))

	s.Solve()

	c, _ := s.Point("c")
	d, _ := s.Point("d")
	assert.InDelta(t, 10, d.Sub(c).Len(), 1e-6)
	assert.InDelta(t, 3, d.Y, 1e-6)
}

func TestSolve_Deterministic(t *testing.T) {
	build := func() *Sketch {
		s := newTest()
		s.AddPoint("a", 0, 0, true)
		s.AddPoint("b", 9.7, 0.3, false)
		s.AddPoint("c", 9.5, 5.2, false)
		require.NoError(t, s.AddLine("l1", "a", "b", false))
		require.NoError(t, s.AddLine("l2", "b", "c", false))
		require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
			Kind: feature.ConstraintHorizontal, Lines: []string{"l1"},
		}))
		require.NoError(t, s.AddConstraint("c2", feature.SketchConstraint{
			Kind: feature.ConstraintDistance, Lines: []string{"l1"}, Value: 10,
		}))
		require.NoError(t, s.AddConstraint("c3", feature.SketchConstraint{
			Kind: feature.ConstraintPerpendicular, Lines: []string{"l1", "l2"},
		}))
		return s
	}

	s1 := build()
	s2 := build()
	s1.Solve()
	s2.Solve()

	for _, id := range s1.PointIDs() {
		p1, _ := s1.Point(id)
		p2, _ := s2.Point(id)
		assert.Equal(t, p1, p2, "point %s must be bit-identical", id)
	}
}

func TestSolve_FixpointStable(t *testing.T) {
	s := newTest()
	s.AddPoint("a", 0, 0, true)
	s.AddPoint("b", 3, 1, false)
	require.NoError(t, s.AddLine("l1", "a", "b", false))
	require.NoError(t, s.AddConstraint("c1", feature.SketchConstraint{
		Kind: feature.ConstraintHorizontal, Lines: []string{"l1"},
	}))

	s.Solve()
	b1, _ := s.Point("b")
	s.Solve()
	b2, _ := s.Point("b")

	assert.Equal(t, b1, b2, "re-solving a solved sketch must not move points")
}
