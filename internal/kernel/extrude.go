package kernel

import (
	"fmt"
	"math"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/sketch"
)

// buildPrism sweeps a profile along the plane normal by a signed distance.
// The cap in the sweep direction is the top face; the cap at the sketch plane
// is the bottom; each profile curve yields one side face.
func buildPrism(p *sketch.Profile, plane Plane, distance float64) (*Body, error) {
	if math.Abs(distance) < 1e-12 {
		return nil, fmt.Errorf("extrude: zero distance")
	}
	n := plane.Normal
	z0 := math.Min(0, distance)
	z1 := math.Max(0, distance)
	forward := distance > 0

	lift := func(v geom.Vec2, z float64) geom.Vec3 {
		return plane.ToWorld(v).Add(n.Scale(z))
	}

	var tris []Triangle
	for _, region := range p.Regions {
		outerRing := region.Outer.Polyline()
		var holeRings [][]geom.Vec2
		for _, h := range region.Holes {
			holeRings = append(holeRings, h.Polyline())
		}
		capTris := triangulatePolygon(outerRing, holeRings)

		farZ, nearZ := z1, z0
		if !forward {
			farZ, nearZ = z0, z1
		}
		topInfo := &faceInfo{
			role:    RoleTop,
			surface: Surface{Kind: SurfacePlanar, Plane: orientPlane(plane.Offset(farZ), forward)},
		}
		bottomInfo := &faceInfo{
			role:    RoleBottom,
			surface: Surface{Kind: SurfacePlanar, Plane: orientPlane(plane.Offset(nearZ), !forward)},
		}
		for _, t := range capTris {
			a, b, c := lift(t[0], farZ), lift(t[1], farZ), lift(t[2], farZ)
			if forward {
				tris = append(tris, Triangle{A: a, B: b, C: c, info: topInfo})
			} else {
				tris = append(tris, Triangle{A: a, B: c, C: b, info: topInfo})
			}
			a, b, c = lift(t[0], nearZ), lift(t[1], nearZ), lift(t[2], nearZ)
			if forward {
				tris = append(tris, Triangle{A: a, B: c, C: b, info: bottomInfo})
			} else {
				tris = append(tris, Triangle{A: a, B: b, C: c, info: bottomInfo})
			}
		}

		for _, loop := range loopsOf(region) {
			for _, curve := range loop.Curves {
				info := &faceInfo{
					role:         RoleSide,
					sourceEntity: curve.Entity,
					surface:      sideSurface(curve, plane, z0),
				}
				for i := 0; i+1 < len(curve.Points); i++ {
					a0 := lift(curve.Points[i], z0)
					b0 := lift(curve.Points[i+1], z0)
					b1 := lift(curve.Points[i+1], z1)
					a1 := lift(curve.Points[i], z1)
					tris = append(tris,
						Triangle{A: a0, B: b0, C: b1, info: info},
						Triangle{A: a0, B: b1, C: a1, info: info},
					)
				}
			}
		}
	}

	body := newBodyFromTriangles(tris)
	if len(body.Faces) < 3 {
		return nil, fmt.Errorf("extrude: degenerate profile")
	}
	return body, nil
}

func loopsOf(r sketch.Region) []*sketch.Loop {
	out := []*sketch.Loop{r.Outer}
	return append(out, r.Holes...)
}

// orientPlane flips the plane so its normal points outward when outwardAlong
// is false.
func orientPlane(p Plane, outwardAlong bool) Plane {
	if outwardAlong {
		return p
	}
	return p.Flipped()
}

// sideSurface types the lateral surface a profile curve sweeps into.
func sideSurface(c sketch.Curve, plane Plane, z0 float64) Surface {
	switch c.Kind {
	case feature.EntityLine:
		a := plane.ToWorld(c.Points[0]).Add(plane.Normal.Scale(z0))
		b := plane.ToWorld(c.Points[len(c.Points)-1]).Add(plane.Normal.Scale(z0))
		t := b.Sub(a).Normalize()
		outward := t.Cross(plane.Normal).Normalize()
		return Surface{
			Kind:  SurfacePlanar,
			Plane: Plane{Origin: a, Normal: outward, XDir: t},
		}
	default:
		return Surface{
			Kind:       SurfaceCylindrical,
			AxisOrigin: plane.ToWorld(c.Center),
			AxisDir:    plane.Normal,
			Radius:     c.Radius,
		}
	}
}
