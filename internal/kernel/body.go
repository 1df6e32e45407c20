package kernel

import (
	"fmt"
	"math"
	"sort"

	"github.com/samwillis/solidtype-core/internal/geom"
)

// Role classifies a face geometrically; persistent references select on it.
type Role string

const (
	RoleTop     Role = "top"
	RoleBottom  Role = "bottom"
	RoleSide    Role = "side"
	RoleLateral Role = "lateral"
	RoleCap     Role = "cap"
)

// SurfaceKind is the underlying surface type of a face.
type SurfaceKind string

const (
	SurfacePlanar      SurfaceKind = "plane"
	SurfaceCylindrical SurfaceKind = "cylinder"
	SurfaceUnknown     SurfaceKind = "unknown"
)

// Surface describes the analytic surface a face lies on.
type Surface struct {
	Kind SurfaceKind
	// Plane is valid for planar surfaces.
	Plane Plane
	// AxisOrigin/AxisDir/Radius are valid for cylindrical surfaces.
	AxisOrigin geom.Vec3
	AxisDir    geom.Vec3
	Radius     float64
}

// faceInfo is the identity a face keeps through boolean operations: polygons
// split and regroup, the info pointer survives.
type faceInfo struct {
	role         Role
	sourceEntity string
	surface      Surface
}

// Triangle is one oriented facet; vertices wind counter-clockwise around the
// outward normal.
type Triangle struct {
	A, B, C geom.Vec3
	info    *faceInfo
}

func (t Triangle) Normal() geom.Vec3 {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Normalize()
}

func (t Triangle) Area() float64 {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Len() / 2
}

func (t Triangle) Centroid() geom.Vec3 {
	return t.A.Add(t.B).Add(t.C).Scale(1.0 / 3.0)
}

// Face is one boundary face of a body: a group of triangles sharing surface
// identity.
type Face struct {
	Index int
	Role  Role
	// SourceEntity is the sketch entity id a lateral face inherits, "" for
	// caps.
	SourceEntity string
	Surface      Surface
	Triangles    []Triangle
	// Reversed reports that the face normal opposes its surface normal.
	Reversed bool
}

// IsPlanar reports whether the face lies on a plane.
func (f *Face) IsPlanar() bool { return f.Surface.Kind == SurfacePlanar }

// PlaneOf returns the face plane with the face's outward orientation.
func (f *Face) PlaneOf() (Plane, bool) {
	if !f.IsPlanar() || len(f.Triangles) == 0 {
		return Plane{}, false
	}
	pl := f.Surface.Plane
	n := f.Triangles[0].Normal()
	if n.Dot(pl.Normal) < 0 {
		pl = pl.Flipped()
	}
	pl.Origin = f.Triangles[0].A
	return pl, true
}

// Centroid is the area-weighted center of the face.
func (f *Face) Centroid() geom.Vec3 {
	var sum geom.Vec3
	total := 0.0
	for _, t := range f.Triangles {
		a := t.Area()
		sum = sum.Add(t.Centroid().Scale(a))
		total += a
	}
	if total == 0 {
		return sum
	}
	return sum.Scale(1 / total)
}

// Body is a closed solid: a set of faces whose triangles bound the volume.
type Body struct {
	Faces []*Face
}

// newBodyFromTriangles groups a triangle soup into faces by shared identity,
// ordered by first occurrence. Degenerate triangles are dropped.
func newBodyFromTriangles(tris []Triangle) *Body {
	b := &Body{}
	byInfo := make(map[*faceInfo]*Face)
	for _, t := range tris {
		if t.Area() < 1e-12 {
			continue
		}
		f, ok := byInfo[t.info]
		if !ok {
			f = &Face{
				Index:        len(b.Faces),
				Role:         t.info.role,
				SourceEntity: t.info.sourceEntity,
				Surface:      t.info.surface,
			}
			byInfo[t.info] = f
			b.Faces = append(b.Faces, f)
		}
		f.Triangles = append(f.Triangles, t)
	}
	return b
}

func (b *Body) triangles() []Triangle {
	var out []Triangle
	for _, f := range b.Faces {
		out = append(out, f.Triangles...)
	}
	return out
}

// Face returns the face at a kernel index.
func (b *Body) Face(i int) (*Face, bool) {
	if i < 0 || i >= len(b.Faces) {
		return nil, false
	}
	return b.Faces[i], true
}

// FaceCount returns the number of faces.
func (b *Body) FaceCount() int { return len(b.Faces) }

// Volume computes the enclosed volume by the divergence theorem. Negative
// volume means inverted orientation.
func (b *Body) Volume() float64 {
	sum := 0.0
	for _, f := range b.Faces {
		for _, t := range f.Triangles {
			sum += t.A.Dot(t.B.Cross(t.C))
		}
	}
	return sum / 6
}

// Bounds returns the axis-aligned bounding box.
func (b *Body) Bounds() (min, max geom.Vec3) {
	min = geom.V3(math.Inf(1), math.Inf(1), math.Inf(1))
	max = geom.V3(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	for _, f := range b.Faces {
		for _, t := range f.Triangles {
			for _, v := range []geom.Vec3{t.A, t.B, t.C} {
				min = geom.V3(math.Min(min.X, v.X), math.Min(min.Y, v.Y), math.Min(min.Z, v.Z))
				max = geom.V3(math.Max(max.X, v.X), math.Max(max.Y, v.Y), math.Max(max.Z, v.Z))
			}
		}
	}
	return min, max
}

// Edge is one topological edge: the polyline where two faces meet.
type Edge struct {
	Index  int
	FaceA  int
	FaceB  int
	Points []geom.Vec3
}

// Start returns the first edge point.
func (e *Edge) Start() geom.Vec3 { return e.Points[0] }

// End returns the last edge point.
func (e *Edge) End() geom.Vec3 { return e.Points[len(e.Points)-1] }

// PointAt interpolates along the edge by arc length; t in [0,1].
func (e *Edge) PointAt(t float64) geom.Vec3 {
	if len(e.Points) == 1 {
		return e.Points[0]
	}
	total := 0.0
	for i := 0; i+1 < len(e.Points); i++ {
		total += e.Points[i].DistanceTo(e.Points[i+1])
	}
	if total == 0 {
		return e.Points[0]
	}
	want := t * total
	run := 0.0
	for i := 0; i+1 < len(e.Points); i++ {
		seg := e.Points[i].DistanceTo(e.Points[i+1])
		if run+seg >= want || i+2 == len(e.Points) {
			f := 0.0
			if seg > 0 {
				f = (want - run) / seg
			}
			return e.Points[i].Lerp(e.Points[i+1], f)
		}
		run += seg
	}
	return e.End()
}

// segment is one boundary segment of a face's triangulation.
type segment struct{ a, b geom.Vec3 }

type quantKey [3]int64

func quantize(v geom.Vec3) quantKey {
	const scale = 1e7
	return quantKey{
		int64(math.Round(v.X * scale)),
		int64(math.Round(v.Y * scale)),
		int64(math.Round(v.Z * scale)),
	}
}

type segKey struct{ a, b quantKey }

func orderedSegKey(a, b geom.Vec3) segKey {
	ka, kb := quantize(a), quantize(b)
	if less(kb, ka) {
		ka, kb = kb, ka
	}
	return segKey{ka, kb}
}

func less(a, b quantKey) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Edges derives the topological edges: per face, triangle edges used exactly
// once are boundary segments; boundary segments shared between two faces are
// chained into edges. Edge indices are stable for a given construction: the
// list is sorted by the owning face pair, then geometry.
func (b *Body) Edges() []*Edge {
	// Boundary segments per face.
	perFace := make([][]segment, len(b.Faces))
	for fi, f := range b.Faces {
		count := make(map[segKey]int)
		segs := make(map[segKey]segment)
		for _, t := range f.Triangles {
			verts := [3]geom.Vec3{t.A, t.B, t.C}
			for i := 0; i < 3; i++ {
				a, c := verts[i], verts[(i+1)%3]
				k := orderedSegKey(a, c)
				count[k]++
				segs[k] = segment{a, c}
			}
		}
		keys := make([]segKey, 0, len(count))
		for k, n := range count {
			if n == 1 {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].a != keys[j].a {
				return less(keys[i].a, keys[j].a)
			}
			return less(keys[i].b, keys[j].b)
		})
		for _, k := range keys {
			perFace[fi] = append(perFace[fi], segs[k])
		}
	}

	// Match boundary segments across face pairs.
	type pair struct{ a, b int }
	shared := make(map[pair][]segment)
	owner := make(map[segKey]int)
	for fi := range perFace {
		for _, sg := range perFace[fi] {
			k := orderedSegKey(sg.a, sg.b)
			if prev, ok := owner[k]; ok && prev != fi {
				shared[pair{prev, fi}] = append(shared[pair{prev, fi}], sg)
			} else {
				owner[k] = fi
			}
		}
	}

	pairs := make([]pair, 0, len(shared))
	for p := range shared {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	var edges []*Edge
	for _, p := range pairs {
		for _, chain := range chainSegments(shared[p]) {
			edges = append(edges, &Edge{FaceA: p.a, FaceB: p.b, Points: chain})
		}
	}
	for i, e := range edges {
		e.Index = i
	}
	return edges
}

// chainSegments joins segments sharing endpoints into polylines,
// deterministically: chains start from the lexicographically smallest free
// endpoint.
func chainSegments(segs []segment) [][]geom.Vec3 {
	adj := make(map[quantKey][]int)
	used := make([]bool, len(segs))
	pos := make(map[quantKey]geom.Vec3)
	for i, s := range segs {
		ka, kb := quantize(s.a), quantize(s.b)
		adj[ka] = append(adj[ka], i)
		adj[kb] = append(adj[kb], i)
		pos[ka] = s.a
		pos[kb] = s.b
	}

	keys := make([]quantKey, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	var chains [][]geom.Vec3
	// Open chains first (endpoints with a single segment), then closed rings.
	for _, openOnly := range []bool{true, false} {
		for _, start := range keys {
			if openOnly && len(adj[start]) != 1 {
				continue
			}
			for _, si := range adj[start] {
				if used[si] {
					continue
				}
				chain := walkChain(segs, adj, used, start, si)
				if len(chain) > 1 {
					chains = append(chains, chain)
				}
			}
		}
	}
	return chains
}

func walkChain(segs []segment, adj map[quantKey][]int, used []bool, start quantKey, first int) []geom.Vec3 {
	var chain []geom.Vec3
	cur := start
	si := first
	for {
		used[si] = true
		s := segs[si]
		var next geom.Vec3
		if quantize(s.a) == cur {
			if len(chain) == 0 {
				chain = append(chain, s.a)
			}
			next = s.b
		} else {
			if len(chain) == 0 {
				chain = append(chain, s.b)
			}
			next = s.a
		}
		chain = append(chain, next)
		cur = quantize(next)

		found := -1
		for _, cand := range adj[cur] {
			if !used[cand] {
				found = cand
				break
			}
		}
		if found < 0 {
			return chain
		}
		si = found
	}
}

// Vertices returns the body's topological vertices: open-edge endpoints,
// deduplicated and sorted.
func (b *Body) Vertices() []geom.Vec3 {
	seen := make(map[quantKey]geom.Vec3)
	for _, e := range b.Edges() {
		seen[quantize(e.Start())] = e.Start()
		seen[quantize(e.End())] = e.End()
	}
	keys := make([]quantKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	out := make([]geom.Vec3, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

func (b *Body) String() string {
	return fmt.Sprintf("body{faces: %d, volume: %.3f}", len(b.Faces), b.Volume())
}
