package kernel

import "github.com/samwillis/solidtype-core/internal/geom"

// Plane is an oriented sketch plane: origin, unit normal and an in-plane x
// direction. The y direction completes a right-handed basis.
type Plane struct {
	Origin geom.Vec3
	Normal geom.Vec3
	XDir   geom.Vec3
}

// NewPlane orthonormalizes the inputs into a well-formed plane basis.
func NewPlane(origin, normal, xDir geom.Vec3) Plane {
	n := normal.Normalize()
	x := xDir.Sub(n.Scale(xDir.Dot(n))).Normalize()
	if x.Len() == 0 {
		x = arbitraryPerpendicular(n)
	}
	return Plane{Origin: origin, Normal: n, XDir: x}
}

func arbitraryPerpendicular(n geom.Vec3) geom.Vec3 {
	ref := geom.V3(1, 0, 0)
	if absf(n.X) > 0.9 {
		ref = geom.V3(0, 1, 0)
	}
	return n.Cross(ref).Normalize()
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// YDir is the in-plane y direction (Normal × XDir).
func (p Plane) YDir() geom.Vec3 { return p.Normal.Cross(p.XDir) }

// ToWorld lifts sketch coordinates into model space.
func (p Plane) ToWorld(v geom.Vec2) geom.Vec3 {
	return p.Origin.Add(p.XDir.Scale(v.X)).Add(p.YDir().Scale(v.Y))
}

// ToLocal projects a world point onto the plane basis.
func (p Plane) ToLocal(v geom.Vec3) geom.Vec2 {
	d := v.Sub(p.Origin)
	return geom.V2(d.Dot(p.XDir), d.Dot(p.YDir()))
}

// Offset translates the plane along its normal.
func (p Plane) Offset(d float64) Plane {
	p.Origin = p.Origin.Add(p.Normal.Scale(d))
	return p
}

// Flipped reverses the plane normal, keeping the x direction.
func (p Plane) Flipped() Plane {
	p.Normal = p.Normal.Neg()
	return p
}

// DistanceTo returns the signed distance from a world point to the plane.
func (p Plane) DistanceTo(v geom.Vec3) float64 {
	return v.Sub(p.Origin).Dot(p.Normal)
}

// Datum planes. XY maps sketch axes straight onto model X/Y; XZ and YZ are
// oriented so sketch +y runs up the model +Z axis.
var (
	PlaneXY = Plane{Origin: geom.Vec3{}, Normal: geom.V3(0, 0, 1), XDir: geom.V3(1, 0, 0)}
	PlaneXZ = Plane{Origin: geom.Vec3{}, Normal: geom.V3(0, -1, 0), XDir: geom.V3(1, 0, 0)}
	PlaneYZ = Plane{Origin: geom.Vec3{}, Normal: geom.V3(1, 0, 0), XDir: geom.V3(0, 1, 0)}
)

// DatumPlane returns the canonical plane for a role, or false for unknown
// roles.
func DatumPlane(role string) (Plane, bool) {
	switch role {
	case "xy":
		return PlaneXY, true
	case "xz":
		return PlaneXZ, true
	case "yz":
		return PlaneYZ, true
	}
	return Plane{}, false
}

// RotateAround returns the plane rotated about an axis.
func (p Plane) RotateAround(origin, dir geom.Vec3, angle float64) Plane {
	return Plane{
		Origin: p.Origin.RotateAround(origin, dir, angle),
		Normal: p.Normal.RotateAround(geom.Vec3{}, dir, angle),
		XDir:   p.XDir.RotateAround(geom.Vec3{}, dir, angle),
	}
}
