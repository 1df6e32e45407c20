package sketch

import (
	"math"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

const (
	maxIterations = 100
	jacobianStep  = 1e-7
	rankTolerance = 1e-8
	lambdaInitial = 1e-10
	lambdaMax     = 1e8
)

// system is the parameter layout for one solve: free points in lexicographic
// order, two params each.
type system struct {
	freeIDs []string
	offset  map[string]int // point id -> param offset, free points only
}

func (s *Sketch) buildSystem() *system {
	sys := &system{offset: make(map[string]int)}
	for _, id := range s.PointIDs() {
		if !s.points[id].fixed {
			sys.offset[id] = len(sys.freeIDs) * 2
			sys.freeIDs = append(sys.freeIDs, id)
		}
	}
	return sys
}

func (s *Sketch) initialParams(sys *system) []float64 {
	x := make([]float64, len(sys.freeIDs)*2)
	for i, id := range sys.freeIDs {
		p := s.points[id]
		x[i*2] = p.x
		x[i*2+1] = p.y
	}
	return x
}

func (s *Sketch) position(sys *system, x []float64, id string) geom.Vec2 {
	if off, ok := sys.offset[id]; ok {
		return geom.V2(x[off], x[off+1])
	}
	p := s.points[id]
	return geom.V2(p.x, p.y)
}

func (s *Sketch) lineDir(sys *system, x []float64, lineID string) geom.Vec2 {
	e := s.entities[lineID]
	return s.position(sys, x, e.end).Sub(s.position(sys, x, e.start))
}

// residuals evaluates every constraint equation at x, in constraint id order.
func (s *Sketch) residuals(sys *system, x []float64) []float64 {
	var out []float64
	for _, rec := range s.constraints {
		c := rec.c
		switch c.Kind {
		case feature.ConstraintCoincident:
			a := s.position(sys, x, c.Points[0])
			b := s.position(sys, x, c.Points[1])
			out = append(out, a.X-b.X, a.Y-b.Y)

		case feature.ConstraintHorizontal, feature.ConstraintVertical:
			var a, b geom.Vec2
			if len(c.Lines) == 1 {
				e := s.entities[c.Lines[0]]
				a = s.position(sys, x, e.start)
				b = s.position(sys, x, e.end)
			} else {
				a = s.position(sys, x, c.Points[0])
				b = s.position(sys, x, c.Points[1])
			}
			if c.Kind == feature.ConstraintHorizontal {
				out = append(out, b.Y-a.Y)
			} else {
				out = append(out, b.X-a.X)
			}

		case feature.ConstraintFixed:
			p := s.position(sys, x, c.Points[0])
			out = append(out, p.X-c.TX, p.Y-c.TY)

		case feature.ConstraintDistance:
			var a, b geom.Vec2
			if len(c.Lines) == 1 {
				e := s.entities[c.Lines[0]]
				a = s.position(sys, x, e.start)
				b = s.position(sys, x, e.end)
			} else {
				a = s.position(sys, x, c.Points[0])
				b = s.position(sys, x, c.Points[1])
			}
			out = append(out, b.Sub(a).Len()-c.Value)

		case feature.ConstraintAngle:
			d1 := s.lineDir(sys, x, c.Lines[0])
			d2 := s.lineDir(sys, x, c.Lines[1])
			got := math.Atan2(d1.Cross(d2), d1.Dot(d2))
			out = append(out, normalizeAngle(got-numeric.Radians(c.Value)))

		case feature.ConstraintParallel:
			d1 := s.lineDir(sys, x, c.Lines[0]).Normalize()
			d2 := s.lineDir(sys, x, c.Lines[1]).Normalize()
			out = append(out, d1.Cross(d2))

		case feature.ConstraintPerpendicular:
			d1 := s.lineDir(sys, x, c.Lines[0]).Normalize()
			d2 := s.lineDir(sys, x, c.Lines[1]).Normalize()
			out = append(out, d1.Dot(d2))

		case feature.ConstraintEqualLength:
			l1 := s.lineDir(sys, x, c.Lines[0]).Len()
			l2 := s.lineDir(sys, x, c.Lines[1]).Len()
			out = append(out, l1-l2)

		case feature.ConstraintTangent:
			e := s.entities[c.Lines[0]]
			a := s.position(sys, x, e.start)
			d := s.position(sys, x, e.end).Sub(a)
			arc := s.entities[c.Arc]
			center := s.position(sys, x, arc.center)
			var radius float64
			if arc.kind == feature.EntityCircle {
				radius = arc.radius
			} else {
				radius = s.position(sys, x, arc.start).Sub(center).Len()
			}
			length := d.Len()
			if length == 0 {
				out = append(out, radius)
				break
			}
			perp := math.Abs(d.Cross(center.Sub(a))) / length
			out = append(out, perp-radius)

		case feature.ConstraintSymmetric:
			p := s.position(sys, x, c.Points[0])
			q := s.position(sys, x, c.Points[1])
			e := s.entities[c.Lines[0]]
			a := s.position(sys, x, e.start)
			u := s.position(sys, x, e.end).Sub(a).Normalize()
			mid := p.Add(q).Scale(0.5)
			out = append(out, u.Cross(mid.Sub(a)), u.Dot(p.Sub(q)))
		}
	}
	return out
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, e := range v {
		if a := math.Abs(e); a > m {
			m = a
		}
	}
	return m
}

// jacobian computes dr/dx by central differences. Deterministic: fixed step,
// fixed evaluation order.
func (s *Sketch) jacobian(sys *system, x []float64, rows int) [][]float64 {
	n := len(x)
	J := make([][]float64, rows)
	for i := range J {
		J[i] = make([]float64, n)
	}
	xp := make([]float64, n)
	for j := 0; j < n; j++ {
		copy(xp, x)
		xp[j] = x[j] + jacobianStep
		rPlus := s.residuals(sys, xp)
		xp[j] = x[j] - jacobianStep
		rMinus := s.residuals(sys, xp)
		for i := 0; i < rows; i++ {
			J[i][j] = (rPlus[i] - rMinus[i]) / (2 * jacobianStep)
		}
	}
	return J
}

// Solve runs damped Gauss-Newton until the residuals drop below the solve
// epsilon or the iteration budget runs out, then classifies the outcome and
// writes the solved positions back into the sketch points.
func (s *Sketch) Solve() Status {
	sys := s.buildSystem()
	x := s.initialParams(sys)
	n := len(x)

	r := s.residuals(sys, x)
	rows := len(r)
	tol := s.ctx.SolveEps
	if tol <= 0 {
		tol = 1e-9
	}

	converged := maxAbs(r) < tol
	if !converged && n > 0 {
		lambda := lambdaInitial
		for iter := 0; iter < maxIterations; iter++ {
			norm := maxAbs(r)
			if norm < tol {
				converged = true
				break
			}
			J := s.jacobian(sys, x, rows)
			delta, ok := solveNormal(J, r, lambda)
			if !ok {
				lambda *= 10
				if lambda > lambdaMax {
					break
				}
				continue
			}
			trial := make([]float64, n)
			for j := range trial {
				trial[j] = x[j] + delta[j]
			}
			rTrial := s.residuals(sys, trial)
			if maxAbs(rTrial) <= norm {
				x = trial
				r = rTrial
				if lambda > lambdaInitial {
					lambda /= 4
				}
			} else {
				lambda *= 10
				if lambda > lambdaMax {
					break
				}
			}
		}
		if maxAbs(r) < tol {
			converged = true
		}
	}

	// Write solved positions back.
	for i, id := range sys.freeIDs {
		p := s.points[id]
		p.x = x[i*2]
		p.y = x[i*2+1]
	}

	rank := 0
	if rows > 0 && n > 0 {
		rank = matrixRank(s.jacobian(sys, x, rows))
	}

	dof := DOF{
		Total:       n,
		Constrained: rank,
		Remaining:   n - rank,
	}
	dof.IsOverConstrained = !converged && rows > 0
	dof.IsFullyConstrained = converged && dof.Remaining == 0

	var status Status
	switch {
	case !converged && rows > 0:
		status = StatusOverConstrained
	case rows > rank:
		// Redundant but consistent constraints.
		status = StatusSolvedWithWarnings
	case dof.Remaining > 0:
		status = StatusUnderConstrained
	default:
		status = StatusSolved
	}

	s.lastStatus = status
	s.lastDOF = dof
	s.solvedOnce = true
	return status
}

// AnalyzeDOF reports the degree-of-freedom counts from the last solve.
func (s *Sketch) AnalyzeDOF() DOF {
	if !s.solvedOnce {
		sys := s.buildSystem()
		return DOF{Total: len(sys.freeIDs) * 2, Remaining: len(sys.freeIDs) * 2}
	}
	return s.lastDOF
}

// solveNormal solves (JᵀJ + λI) δ = -Jᵀ r by Gaussian elimination.
func solveNormal(J [][]float64, r []float64, lambda float64) ([]float64, bool) {
	rows := len(J)
	if rows == 0 {
		return nil, false
	}
	n := len(J[0])
	A := make([][]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		A[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			sum := 0.0
			for k := 0; k < rows; k++ {
				sum += J[k][i] * J[k][j]
			}
			A[i][j] = sum
		}
		A[i][i] += lambda
		sum := 0.0
		for k := 0; k < rows; k++ {
			sum += J[k][i] * r[k]
		}
		b[i] = -sum
	}
	return gaussSolve(A, b)
}

// gaussSolve solves Ax=b with partial pivoting. Returns false on a singular
// system.
func gaussSolve(A [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(A[row][col]) > math.Abs(A[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(A[pivot][col]) < 1e-300 {
			return nil, false
		}
		A[col], A[pivot] = A[pivot], A[col]
		b[col], b[pivot] = b[pivot], b[col]
		inv := 1 / A[col][col]
		for row := col + 1; row < n; row++ {
			f := A[row][col] * inv
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				A[row][k] -= f * A[col][k]
			}
			b[row] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= A[row][k] * x[k]
		}
		x[row] = sum / A[row][row]
	}
	return x, true
}

// matrixRank estimates rank by row-echelon elimination with a fixed
// tolerance.
func matrixRank(M [][]float64) int {
	rows := len(M)
	if rows == 0 {
		return 0
	}
	cols := len(M[0])
	A := make([][]float64, rows)
	for i := range M {
		A[i] = append([]float64(nil), M[i]...)
	}
	rank := 0
	for col := 0; col < cols && rank < rows; col++ {
		pivot := -1
		best := rankTolerance
		for row := rank; row < rows; row++ {
			if a := math.Abs(A[row][col]); a > best {
				best = a
				pivot = row
			}
		}
		if pivot < 0 {
			continue
		}
		A[rank], A[pivot] = A[pivot], A[rank]
		inv := 1 / A[rank][col]
		for row := rank + 1; row < rows; row++ {
			f := A[row][col] * inv
			if f == 0 {
				continue
			}
			for k := col; k < cols; k++ {
				A[row][k] -= f * A[rank][k]
			}
		}
		rank++
	}
	return rank
}
