package kernel

import (
	"math"
	"sort"

	"github.com/samwillis/solidtype-core/internal/geom"
)

// triangulatePolygon triangulates an outer ring (counter-clockwise) with
// holes (clockwise) by bridging each hole into the outer ring and ear
// clipping the result. Deterministic for identical input.
func triangulatePolygon(outer []geom.Vec2, holes [][]geom.Vec2) [][3]geom.Vec2 {
	ring := append([]geom.Vec2(nil), outer...)

	// Bridge holes right-to-left so earlier bridges cannot block later ones.
	order := make([]int, len(holes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return maxXIndexValue(holes[order[a]]) > maxXIndexValue(holes[order[b]])
	})
	for _, hi := range order {
		ring = bridgeHole(ring, holes[hi])
	}

	return earClip(ring)
}

func maxXIndexValue(ring []geom.Vec2) float64 {
	best := math.Inf(-1)
	for _, p := range ring {
		if p.X > best {
			best = p.X
		}
	}
	return best
}

func maxXIndex(ring []geom.Vec2) int {
	best := 0
	for i, p := range ring {
		if p.X > ring[best].X || (p.X == ring[best].X && p.Y < ring[best].Y) {
			best = i
		}
	}
	return best
}

// bridgeHole splices a hole ring into the outer ring with a two-way bridge
// at a mutually visible vertex pair.
func bridgeHole(outer []geom.Vec2, hole []geom.Vec2) []geom.Vec2 {
	m := maxXIndex(hole)
	mp := hole[m]

	bridge := findBridgeVertex(outer, mp)

	// outer[0..bridge] ++ [outer[bridge], hole[m..], hole[..m], hole[m]] ++ outer[bridge..]
	out := make([]geom.Vec2, 0, len(outer)+len(hole)+2)
	out = append(out, outer[:bridge+1]...)
	for i := 0; i <= len(hole); i++ {
		out = append(out, hole[(m+i)%len(hole)])
	}
	out = append(out, outer[bridge:]...)
	return out
}

// findBridgeVertex picks the outer-ring vertex visible from the hole point by
// casting a ray toward +X and refining to the best candidate inside the
// triangle formed by the ray hit.
func findBridgeVertex(outer []geom.Vec2, mp geom.Vec2) int {
	n := len(outer)
	bestT := math.Inf(1)
	hitEdge := -1
	var hit geom.Vec2
	for i := 0; i < n; i++ {
		a := outer[i]
		b := outer[(i+1)%n]
		if (a.Y > mp.Y) == (b.Y > mp.Y) {
			continue
		}
		x := a.X + (mp.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
		if x >= mp.X-1e-12 && x-mp.X < bestT {
			bestT = x - mp.X
			hitEdge = i
			hit = geom.V2(x, mp.Y)
		}
	}
	if hitEdge < 0 {
		// Hole outside the ring; degrade to the nearest vertex.
		return nearestVertex(outer, mp)
	}

	// Prefer the endpoint of the hit edge with the larger x; verify no
	// reflex vertex of the outer ring sits inside triangle (mp, hit, cand).
	cand := hitEdge
	if outer[(hitEdge+1)%n].X > outer[hitEdge].X {
		cand = (hitEdge + 1) % n
	}
	tri := [3]geom.Vec2{mp, hit, outer[cand]}
	bestDist := math.Inf(1)
	result := cand
	for i := 0; i < n; i++ {
		if i == cand {
			continue
		}
		p := outer[i]
		if p.X < mp.X {
			continue
		}
		if pointInTriangle(p, tri[0], tri[1], tri[2]) {
			d := math.Hypot(p.X-mp.X, p.Y-mp.Y)
			if d < bestDist {
				bestDist = d
				result = i
			}
		}
	}
	return result
}

func nearestVertex(ring []geom.Vec2, p geom.Vec2) int {
	best := 0
	bestD := math.Inf(1)
	for i, v := range ring {
		d := math.Hypot(v.X-p.X, v.Y-p.Y)
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

func cross2(o, a, b geom.Vec2) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func pointInTriangle(p, a, b, c geom.Vec2) bool {
	d1 := cross2(a, b, p)
	d2 := cross2(b, c, p)
	d3 := cross2(c, a, p)
	hasNeg := d1 < -1e-12 || d2 < -1e-12 || d3 < -1e-12
	hasPos := d1 > 1e-12 || d2 > 1e-12 || d3 > 1e-12
	return !(hasNeg && hasPos)
}

// earClip triangulates a simple (possibly bridged) counter-clockwise ring.
func earClip(ring []geom.Vec2) [][3]geom.Vec2 {
	idx := make([]int, len(ring))
	for i := range idx {
		idx[i] = i
	}
	var out [][3]geom.Vec2

	isEar := func(i int) bool {
		n := len(idx)
		prev := ring[idx[(i-1+n)%n]]
		cur := ring[idx[i]]
		next := ring[idx[(i+1)%n]]
		if cross2(prev, cur, next) <= 1e-12 {
			return false // reflex or collinear
		}
		for j := 0; j < n; j++ {
			if j == (i-1+n)%n || j == i || j == (i+1)%n {
				continue
			}
			p := ring[idx[j]]
			// Bridge duplicates share coordinates with corners; skip them.
			if samePoint(p, prev) || samePoint(p, cur) || samePoint(p, next) {
				continue
			}
			if pointInTriangle(p, prev, cur, next) {
				return false
			}
		}
		return true
	}

	guard := 0
	for len(idx) > 3 {
		n := len(idx)
		clipped := false
		for i := 0; i < n; i++ {
			if isEar(i) {
				prev := ring[idx[(i-1+n)%n]]
				cur := ring[idx[i]]
				next := ring[idx[(i+1)%n]]
				out = append(out, [3]geom.Vec2{prev, cur, next})
				idx = append(idx[:i], idx[i+1:]...)
				clipped = true
				break
			}
		}
		if !clipped {
			// Degenerate input: clip the first convex vertex to guarantee
			// termination.
			for i := 0; i < len(idx); i++ {
				n := len(idx)
				prev := ring[idx[(i-1+n)%n]]
				cur := ring[idx[i]]
				next := ring[idx[(i+1)%n]]
				if cross2(prev, cur, next) > 1e-12 {
					out = append(out, [3]geom.Vec2{prev, cur, next})
					idx = append(idx[:i], idx[i+1:]...)
					clipped = true
					break
				}
			}
			if !clipped {
				idx = idx[:len(idx)-1]
			}
		}
		guard++
		if guard > 100000 {
			break
		}
	}
	if len(idx) == 3 {
		a, b, c := ring[idx[0]], ring[idx[1]], ring[idx[2]]
		if math.Abs(cross2(a, b, c)) > 1e-12 {
			out = append(out, [3]geom.Vec2{a, b, c})
		}
	}
	return out
}

func samePoint(a, b geom.Vec2) bool {
	return math.Abs(a.X-b.X) < 1e-12 && math.Abs(a.Y-b.Y) < 1e-12
}
