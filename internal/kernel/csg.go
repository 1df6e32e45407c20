package kernel

import "github.com/samwillis/solidtype-core/internal/geom"

// Boolean solids via BSP trees. Polygons carry their face identity through
// splitting so the result body regroups into faces afterwards.

const csgEps = 1e-5

type csgPolygon struct {
	verts []geom.Vec3
	info  *faceInfo
}

func (p *csgPolygon) flip() {
	for i, j := 0, len(p.verts)-1; i < j; i, j = i+1, j-1 {
		p.verts[i], p.verts[j] = p.verts[j], p.verts[i]
	}
}

func (p *csgPolygon) clone() *csgPolygon {
	return &csgPolygon{verts: append([]geom.Vec3(nil), p.verts...), info: p.info}
}

type csgPlane struct {
	normal geom.Vec3
	w      float64
}

func planeFromPoints(a, b, c geom.Vec3) (csgPlane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() < 1e-12 {
		return csgPlane{}, false
	}
	n = n.Normalize()
	return csgPlane{normal: n, w: n.Dot(a)}, true
}

func (pl *csgPlane) flip() {
	pl.normal = pl.normal.Neg()
	pl.w = -pl.w
}

const (
	sideCoplanar = 0
	sideFront    = 1
	sideBack     = 2
	sideSpanning = 3
)

// splitPolygon classifies the polygon against the plane and routes the
// pieces.
func (pl *csgPlane) splitPolygon(p *csgPolygon, coplanarFront, coplanarBack, front, back *[]*csgPolygon) {
	polyType := 0
	types := make([]int, len(p.verts))
	for i, v := range p.verts {
		t := pl.normal.Dot(v) - pl.w
		side := sideCoplanar
		if t < -csgEps {
			side = sideBack
		} else if t > csgEps {
			side = sideFront
		}
		polyType |= side
		types[i] = side
	}

	switch polyType {
	case sideCoplanar:
		if pl.normal.Dot(polygonNormal(p)) > 0 {
			*coplanarFront = append(*coplanarFront, p)
		} else {
			*coplanarBack = append(*coplanarBack, p)
		}
	case sideFront:
		*front = append(*front, p)
	case sideBack:
		*back = append(*back, p)
	default:
		var f, b []geom.Vec3
		n := len(p.verts)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := p.verts[i], p.verts[j]
			if ti != sideBack {
				f = append(f, vi)
			}
			if ti != sideFront {
				b = append(b, vi)
			}
			if (ti | tj) == sideSpanning {
				t := (pl.w - pl.normal.Dot(vi)) / pl.normal.Dot(vj.Sub(vi))
				v := vi.Lerp(vj, t)
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*front = append(*front, &csgPolygon{verts: f, info: p.info})
		}
		if len(b) >= 3 {
			*back = append(*back, &csgPolygon{verts: b, info: p.info})
		}
	}
}

func polygonNormal(p *csgPolygon) geom.Vec3 {
	return p.verts[1].Sub(p.verts[0]).Cross(p.verts[2].Sub(p.verts[0]))
}

type csgNode struct {
	plane    *csgPlane
	front    *csgNode
	back     *csgNode
	polygons []*csgPolygon
}

func newCSGNode(polygons []*csgPolygon) *csgNode {
	n := &csgNode{}
	if len(polygons) > 0 {
		n.build(polygons)
	}
	return n
}

func (n *csgNode) build(polygons []*csgPolygon) {
	if len(polygons) == 0 {
		return
	}
	if n.plane == nil {
		for _, p := range polygons {
			if pl, ok := planeFromPoints(p.verts[0], p.verts[1], p.verts[2]); ok {
				n.plane = &pl
				break
			}
		}
		if n.plane == nil {
			return
		}
	}
	var front, back []*csgPolygon
	for _, p := range polygons {
		n.plane.splitPolygon(p, &n.polygons, &n.polygons, &front, &back)
	}
	if len(front) > 0 {
		if n.front == nil {
			n.front = &csgNode{}
		}
		n.front.build(front)
	}
	if len(back) > 0 {
		if n.back == nil {
			n.back = &csgNode{}
		}
		n.back.build(back)
	}
}

func (n *csgNode) invert() {
	for _, p := range n.polygons {
		p.flip()
	}
	if n.plane != nil {
		n.plane.flip()
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of the polygons inside this node's solid.
func (n *csgNode) clipPolygons(polygons []*csgPolygon) []*csgPolygon {
	if n.plane == nil {
		return append([]*csgPolygon(nil), polygons...)
	}
	var front, back []*csgPolygon
	for _, p := range polygons {
		n.plane.splitPolygon(p, &front, &back, &front, &back)
	}
	if n.front != nil {
		front = n.front.clipPolygons(front)
	}
	if n.back != nil {
		back = n.back.clipPolygons(back)
	} else {
		back = nil
	}
	return append(front, back...)
}

func (n *csgNode) clipTo(other *csgNode) {
	n.polygons = other.clipPolygons(n.polygons)
	if n.front != nil {
		n.front.clipTo(other)
	}
	if n.back != nil {
		n.back.clipTo(other)
	}
}

func (n *csgNode) allPolygons() []*csgPolygon {
	out := append([]*csgPolygon(nil), n.polygons...)
	if n.front != nil {
		out = append(out, n.front.allPolygons()...)
	}
	if n.back != nil {
		out = append(out, n.back.allPolygons()...)
	}
	return out
}

func bodyToPolygons(b *Body) []*csgPolygon {
	var out []*csgPolygon
	for _, f := range b.Faces {
		for _, t := range f.Triangles {
			out = append(out, &csgPolygon{verts: []geom.Vec3{t.A, t.B, t.C}, info: t.info})
		}
	}
	return out
}

func clonePolygons(ps []*csgPolygon) []*csgPolygon {
	out := make([]*csgPolygon, len(ps))
	for i, p := range ps {
		out[i] = p.clone()
	}
	return out
}

func polygonsToBody(ps []*csgPolygon) *Body {
	var tris []Triangle
	for _, p := range ps {
		// Fan-triangulate; split pieces stay convex.
		for i := 1; i+1 < len(p.verts); i++ {
			tris = append(tris, Triangle{A: p.verts[0], B: p.verts[i], C: p.verts[i+1], info: p.info})
		}
	}
	return newBodyFromTriangles(tris)
}

func csgUnion(a, b *Body) *Body {
	an := newCSGNode(clonePolygons(bodyToPolygons(a)))
	bn := newCSGNode(clonePolygons(bodyToPolygons(b)))
	an.clipTo(bn)
	bn.clipTo(an)
	bn.invert()
	bn.clipTo(an)
	bn.invert()
	an.build(bn.allPolygons())
	return polygonsToBody(an.allPolygons())
}

func csgSubtract(a, b *Body) *Body {
	an := newCSGNode(clonePolygons(bodyToPolygons(a)))
	bn := newCSGNode(clonePolygons(bodyToPolygons(b)))
	an.invert()
	an.clipTo(bn)
	bn.clipTo(an)
	bn.invert()
	bn.clipTo(an)
	bn.invert()
	an.build(bn.allPolygons())
	an.invert()
	return polygonsToBody(an.allPolygons())
}

func csgIntersect(a, b *Body) *Body {
	an := newCSGNode(clonePolygons(bodyToPolygons(a)))
	bn := newCSGNode(clonePolygons(bodyToPolygons(b)))
	an.invert()
	bn.clipTo(an)
	bn.invert()
	an.clipTo(bn)
	bn.clipTo(an)
	an.build(bn.allPolygons())
	an.invert()
	return polygonsToBody(an.allPolygons())
}
