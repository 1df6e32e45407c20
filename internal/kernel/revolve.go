package kernel

import (
	"fmt"
	"math"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/sketch"
)

// buildRevolve sweeps a profile about an axis lying in the sketch plane.
// Lateral faces inherit the profile curves; a partial sweep closes with two
// cap faces.
func buildRevolve(p *sketch.Profile, plane Plane, axisOrigin, axisDir geom.Vec3, angle float64) (*Body, error) {
	if math.Abs(angle) < 1e-9 {
		return nil, fmt.Errorf("revolve: zero angle")
	}
	u := axisDir.Normalize()
	if u.Len() == 0 {
		return nil, fmt.Errorf("revolve: degenerate axis")
	}
	full := math.Abs(angle) >= 2*math.Pi-1e-9

	steps := int(math.Ceil(math.Abs(angle) / (2 * math.Pi / 32)))
	if steps < 8 {
		steps = 8
	}

	rot := func(v geom.Vec3, k int) geom.Vec3 {
		return v.RotateAround(axisOrigin, u, angle*float64(k)/float64(steps))
	}

	var tris []Triangle
	for _, region := range p.Regions {
		outerRing := region.Outer.Polyline()
		var holeRings [][]geom.Vec2
		for _, h := range region.Holes {
			holeRings = append(holeRings, h.Polyline())
		}

		// Material side: does the sweep start off toward +normal or -normal?
		centroid := ringCentroid(outerRing)
		w := plane.ToWorld(centroid).Sub(axisOrigin)
		sigma := plane.Normal.Dot(u.Cross(w))
		if angle < 0 {
			sigma = -sigma
		}
		reversed := sigma < 0

		for _, loop := range loopsOf(region) {
			for _, curve := range loop.Curves {
				info := &faceInfo{
					role:         RoleLateral,
					sourceEntity: curve.Entity,
					surface:      lateralSurface(curve, plane, axisOrigin, u),
				}
				world := make([]geom.Vec3, len(curve.Points))
				for i, v := range curve.Points {
					world[i] = plane.ToWorld(v)
				}
				for k := 0; k < steps; k++ {
					for i := 0; i+1 < len(world); i++ {
						a0 := rot(world[i], k)
						b0 := rot(world[i+1], k)
						b1 := rot(world[i+1], k+1)
						a1 := rot(world[i], k+1)
						if reversed {
							tris = append(tris,
								Triangle{A: a0, B: b1, C: b0, info: info},
								Triangle{A: a0, B: a1, C: b1, info: info},
							)
						} else {
							tris = append(tris,
								Triangle{A: a0, B: b0, C: b1, info: info},
								Triangle{A: a0, B: b1, C: a1, info: info},
							)
						}
					}
				}
			}
		}

		if !full {
			capTris := triangulatePolygon(outerRing, holeRings)
			startInfo := &faceInfo{
				role:    RoleCap,
				surface: Surface{Kind: SurfacePlanar, Plane: plane},
			}
			endInfo := &faceInfo{
				role:    RoleCap,
				surface: Surface{Kind: SurfacePlanar, Plane: plane.RotateAround(axisOrigin, u, angle)},
			}
			for _, t := range capTris {
				a := plane.ToWorld(t[0])
				b := plane.ToWorld(t[1])
				c := plane.ToWorld(t[2])
				// The start cap faces away from the sweep, the end cap with
				// it.
				if sigma >= 0 {
					tris = append(tris, Triangle{A: a, B: c, C: b, info: startInfo})
					tris = append(tris, Triangle{A: rot(a, steps), B: rot(b, steps), C: rot(c, steps), info: endInfo})
				} else {
					tris = append(tris, Triangle{A: a, B: b, C: c, info: startInfo})
					tris = append(tris, Triangle{A: rot(a, steps), B: rot(c, steps), C: rot(b, steps), info: endInfo})
				}
			}
		}
	}

	body := newBodyFromTriangles(tris)
	if len(body.Faces) == 0 {
		return nil, fmt.Errorf("revolve: degenerate profile")
	}
	return body, nil
}

func ringCentroid(ring []geom.Vec2) geom.Vec2 {
	var c geom.Vec2
	for _, p := range ring {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(ring)))
}

// lateralSurface types a revolved curve: a line parallel to the axis sweeps a
// cylinder; everything else is left untyped.
func lateralSurface(c sketch.Curve, plane Plane, axisOrigin, u geom.Vec3) Surface {
	if c.Kind == feature.EntityLine {
		a := plane.ToWorld(c.Points[0])
		b := plane.ToWorld(c.Points[len(c.Points)-1])
		d := b.Sub(a).Normalize()
		if math.Abs(math.Abs(d.Dot(u))-1) < 1e-9 {
			r := distanceToAxis(a, axisOrigin, u)
			return Surface{Kind: SurfaceCylindrical, AxisOrigin: axisOrigin, AxisDir: u, Radius: r}
		}
	}
	return Surface{Kind: SurfaceUnknown}
}

func distanceToAxis(p, axisOrigin, u geom.Vec3) float64 {
	d := p.Sub(axisOrigin)
	return d.Sub(u.Scale(d.Dot(u))).Len()
}
