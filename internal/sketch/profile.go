package sketch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
)

// ErrOpenProfile reports that the sketch's entities do not form closed loops.
var ErrOpenProfile = errors.New("profile is not closed")

// ErrSelfIntersecting reports a loop crossing itself.
var ErrSelfIntersecting = errors.New("profile is self-intersecting")

// circleSegments is the discretization of a full circle. Arcs use a
// proportional share, never fewer than 8 segments.
const circleSegments = 32

// Curve is one profile edge: the polyline approximation plus the analytic
// data downstream surface typing needs. The source entity id is the stable
// identity a lateral face inherits.
type Curve struct {
	Entity string
	Kind   feature.EntityKind
	// Points runs start to end in traversal order. The last point of one
	// curve equals the first of the next.
	Points []geom.Vec2
	Center geom.Vec2
	Radius float64
}

// Loop is one closed chain of curves.
type Loop struct {
	Hole   bool
	Curves []Curve
}

// Polyline concatenates the curve points, dropping duplicate joints. The ring
// is open: the last point connects back to the first implicitly.
func (l *Loop) Polyline() []geom.Vec2 {
	var out []geom.Vec2
	for _, c := range l.Curves {
		pts := c.Points
		if len(out) > 0 {
			pts = pts[1:]
		}
		out = append(out, pts...)
	}
	// The final point closes onto the first; drop it.
	if len(out) > 1 && nearlyEqual(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func nearlyEqual(a, b geom.Vec2) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

// Region is one face of the profile: an outer boundary and its holes.
type Region struct {
	Outer *Loop
	Holes []*Loop
}

// Profile is the closed planar region set extracted from a sketch.
type Profile struct {
	Regions []Region
}

// Loops flattens the regions back to a loop list, outers first per region.
func (p *Profile) Loops() []*Loop {
	var out []*Loop
	for _, r := range p.Regions {
		out = append(out, r.Outer)
		out = append(out, r.Holes...)
	}
	return out
}

// ToProfile extracts closed loops from the sketch's non-construction
// entities. A non-nil only list restricts the candidate entities. Fails with
// ErrOpenProfile when any chain does not close, ErrSelfIntersecting when a
// loop crosses itself.
func (s *Sketch) ToProfile(only []string) (*Profile, error) {
	candidates := s.profileCandidates(only)
	if len(candidates) == 0 {
		return nil, ErrOpenProfile
	}

	var loops []*Loop

	// Circles close on their own.
	var chained []string
	for _, id := range candidates {
		e := s.entities[id]
		if e.kind == feature.EntityCircle {
			loops = append(loops, s.circleLoop(id, e))
		} else {
			chained = append(chained, id)
		}
	}

	// Chain lines and arcs by shared endpoint ids.
	use := make(map[string][][2]string) // point id -> (entity, which end)
	for _, id := range chained {
		e := s.entities[id]
		use[e.start] = append(use[e.start], [2]string{id, "start"})
		use[e.end] = append(use[e.end], [2]string{id, "end"})
	}
	for _, ends := range use {
		if len(ends) != 2 {
			return nil, ErrOpenProfile
		}
	}

	visited := make(map[string]bool)
	for _, id := range chained {
		if visited[id] {
			continue
		}
		loop, err := s.walkLoop(id, use, visited)
		if err != nil {
			return nil, err
		}
		loops = append(loops, loop)
	}

	for _, l := range loops {
		if selfIntersects(l.Polyline()) {
			return nil, ErrSelfIntersecting
		}
	}

	return groupRegions(loops)
}

func (s *Sketch) profileCandidates(only []string) []string {
	var ids []string
	if only != nil {
		ids = append(ids, only...)
	} else {
		for id := range s.entities {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := ids[:0]
	for _, id := range ids {
		e, ok := s.entities[id]
		if ok && !e.construction {
			out = append(out, id)
		}
	}
	return out
}

func (s *Sketch) circleLoop(id string, e *entity) *Loop {
	center, _ := s.Point(e.center)
	pts := make([]geom.Vec2, circleSegments+1)
	for i := 0; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = geom.V2(center.X+e.radius*math.Cos(a), center.Y+e.radius*math.Sin(a))
	}
	return &Loop{Curves: []Curve{{
		Entity: id,
		Kind:   feature.EntityCircle,
		Points: pts,
		Center: center,
		Radius: e.radius,
	}}}
}

// walkLoop follows shared endpoints from a starting entity until the chain
// returns to its first point.
func (s *Sketch) walkLoop(startID string, use map[string][][2]string, visited map[string]bool) (*Loop, error) {
	loop := &Loop{}
	loopStart := s.entities[startID].start
	currentID := startID
	fromPoint := loopStart
	for {
		e := s.entities[currentID]
		visited[currentID] = true

		forward := fromPoint == e.start
		toPoint := e.start
		if forward {
			toPoint = e.end
		}
		loop.Curves = append(loop.Curves, s.curveFor(currentID, e, forward))

		if toPoint == loopStart {
			return loop, nil
		}

		// Find the other entity using toPoint.
		nextID := ""
		for _, u := range use[toPoint] {
			if u[0] != currentID {
				nextID = u[0]
				break
			}
		}
		if nextID == "" {
			return nil, ErrOpenProfile
		}
		if visited[nextID] {
			return nil, fmt.Errorf("%w: entity %s revisited", ErrOpenProfile, nextID)
		}
		currentID = nextID
		fromPoint = toPoint
	}
}

func (s *Sketch) curveFor(id string, e *entity, forward bool) Curve {
	switch e.kind {
	case feature.EntityLine:
		a, _ := s.Point(e.start)
		b, _ := s.Point(e.end)
		if !forward {
			a, b = b, a
		}
		return Curve{Entity: id, Kind: feature.EntityLine, Points: []geom.Vec2{a, b}}

	default: // arc
		start, _ := s.Point(e.start)
		end, _ := s.Point(e.end)
		center, _ := s.Point(e.center)
		radius := start.Sub(center).Len()
		a0 := math.Atan2(start.Y-center.Y, start.X-center.X)
		a1 := math.Atan2(end.Y-center.Y, end.X-center.X)
		sweep := a1 - a0
		if e.ccw && sweep <= 0 {
			sweep += 2 * math.Pi
		}
		if !e.ccw && sweep >= 0 {
			sweep -= 2 * math.Pi
		}
		segs := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi / circleSegments)))
		if segs < 8 {
			segs = 8
		}
		pts := make([]geom.Vec2, segs+1)
		for i := 0; i <= segs; i++ {
			a := a0 + sweep*float64(i)/float64(segs)
			pts[i] = geom.V2(center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
		}
		// Endpoints snap exactly to the shared sketch points.
		pts[0] = start
		pts[segs] = end
		if !forward {
			for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
				pts[i], pts[j] = pts[j], pts[i]
			}
		}
		return Curve{Entity: id, Kind: feature.EntityArc, Points: pts, Center: center, Radius: radius}
	}
}

// SignedArea of an open polyline ring; positive means counter-clockwise.
func SignedArea(pts []geom.Vec2) float64 {
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

// PointInRing reports whether p lies inside the ring by even-odd ray casting.
func PointInRing(p geom.Vec2, ring []geom.Vec2) bool {
	inside := false
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func (l *Loop) reverse() {
	for i, j := 0, len(l.Curves)-1; i < j; i, j = i+1, j-1 {
		l.Curves[i], l.Curves[j] = l.Curves[j], l.Curves[i]
	}
	for k := range l.Curves {
		pts := l.Curves[k].Points
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
}

// groupRegions classifies loops as outers or holes by containment depth and
// normalizes orientation: outers counter-clockwise, holes clockwise.
func groupRegions(loops []*Loop) (*Profile, error) {
	rings := make([][]geom.Vec2, len(loops))
	for i, l := range loops {
		rings[i] = l.Polyline()
		if len(rings[i]) < 3 {
			return nil, ErrOpenProfile
		}
	}

	depth := make([]int, len(loops))
	parent := make([]int, len(loops))
	for i := range loops {
		parent[i] = -1
		bestArea := math.Inf(1)
		probe := rings[i][0]
		for j := range loops {
			if i == j {
				continue
			}
			if PointInRing(probe, rings[j]) {
				depth[i]++
				if a := math.Abs(SignedArea(rings[j])); a < bestArea {
					bestArea = a
					parent[i] = j
				}
			}
		}
	}

	regionOf := make(map[int]*Region)
	var order []int
	for i, l := range loops {
		if depth[i]%2 == 0 {
			l.Hole = false
			if SignedArea(rings[i]) < 0 {
				l.reverse()
			}
			regionOf[i] = &Region{Outer: l}
			order = append(order, i)
		}
	}
	for i, l := range loops {
		if depth[i]%2 == 1 {
			l.Hole = true
			if SignedArea(rings[i]) > 0 {
				l.reverse()
			}
			r, ok := regionOf[parent[i]]
			if !ok {
				return nil, fmt.Errorf("%w: hole with no enclosing loop", ErrOpenProfile)
			}
			r.Holes = append(r.Holes, l)
		}
	}

	p := &Profile{}
	for _, i := range order {
		p.Regions = append(p.Regions, *regionOf[i])
	}
	return p, nil
}

// selfIntersects tests non-adjacent segment pairs for proper crossings.
func selfIntersects(ring []geom.Vec2) bool {
	n := len(ring)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := ring[i]
		a2 := ring[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent around the wrap
			}
			b1 := ring[j]
			b2 := ring[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 geom.Vec2) bool {
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orient(a, b, c geom.Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
