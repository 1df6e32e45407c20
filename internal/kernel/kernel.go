// Package kernel is the modeling contract the rebuild pipeline consumes:
// sketch handles on planes, swept solids, booleans, tessellation and the
// topological queries external attachments need. The built-in implementation
// models solids as triangle-bounded faces and computes booleans with BSP
// trees; any kernel honoring the interface can substitute.
package kernel

import (
	"fmt"
	"math"

	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/numeric"
	"github.com/samwillis/solidtype-core/internal/sketch"
)

// Sketch is a solver sketch bound to its plane.
type Sketch struct {
	*sketch.Sketch
	Plane Plane
}

// LiftPoint raises a sketch point into model space.
func (s *Sketch) LiftPoint(id string) (geom.Vec3, bool) {
	p, ok := s.Point(id)
	if !ok {
		return geom.Vec3{}, false
	}
	return s.Plane.ToWorld(p), true
}

// Kernel is the modeling dependency of the rebuild pipeline.
type Kernel interface {
	// CreateSketch opens a solver sketch on a plane.
	CreateSketch(plane Plane) *Sketch
	// Extrude sweeps a profile along the sketch plane normal by a signed
	// distance.
	Extrude(p *sketch.Profile, plane Plane, distance float64) (*Body, error)
	// Revolve sweeps a profile about a world-space axis by an angle in
	// radians.
	Revolve(p *sketch.Profile, plane Plane, axisOrigin, axisDir geom.Vec3, angle float64) (*Body, error)
	// Union, Subtract and Intersect combine closed bodies.
	Union(a, b *Body) (*Body, error)
	Subtract(a, b *Body) (*Body, error)
	Intersect(a, b *Body) (*Body, error)
	// SharesVolume reports whether two bodies overlap by more than the
	// volume epsilon.
	SharesVolume(a, b *Body) bool
}

type builtin struct {
	ctx numeric.Context
}

// NewBuiltin returns the built-in kernel.
func NewBuiltin(ctx numeric.Context) Kernel {
	return &builtin{ctx: ctx}
}

func (k *builtin) CreateSketch(plane Plane) *Sketch {
	return &Sketch{Sketch: sketch.New(k.ctx), Plane: plane}
}

func (k *builtin) Extrude(p *sketch.Profile, plane Plane, distance float64) (*Body, error) {
	if p == nil || len(p.Regions) == 0 {
		return nil, fmt.Errorf("extrude: empty profile")
	}
	return buildPrism(p, plane, distance)
}

func (k *builtin) Revolve(p *sketch.Profile, plane Plane, axisOrigin, axisDir geom.Vec3, angle float64) (*Body, error) {
	if p == nil || len(p.Regions) == 0 {
		return nil, fmt.Errorf("revolve: empty profile")
	}
	return buildRevolve(p, plane, axisOrigin, axisDir, angle)
}

func (k *builtin) Union(a, b *Body) (*Body, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	out := csgUnion(a, b)
	if len(out.Faces) == 0 {
		return nil, fmt.Errorf("union: empty result")
	}
	return out, nil
}

// Subtract may legitimately consume the whole target; the result is then an
// empty body, not an error.
func (k *builtin) Subtract(a, b *Body) (*Body, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	return csgSubtract(a, b), nil
}

// Intersect of disjoint bodies is an empty body, not an error.
func (k *builtin) Intersect(a, b *Body) (*Body, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	return csgIntersect(a, b), nil
}

func (k *builtin) SharesVolume(a, b *Body) bool {
	if a == nil || b == nil {
		return false
	}
	// Cheap reject on bounding boxes first.
	aMin, aMax := a.Bounds()
	bMin, bMax := b.Bounds()
	if aMin.X > bMax.X || bMin.X > aMax.X ||
		aMin.Y > bMax.Y || bMin.Y > aMax.Y ||
		aMin.Z > bMax.Z || bMin.Z > aMax.Z {
		return false
	}
	overlap := csgIntersect(a, b)
	return math.Abs(overlap.Volume()) > k.ctx.VolumeEps
}

func checkOperands(a, b *Body) error {
	if a == nil || b == nil {
		return fmt.Errorf("boolean: nil operand")
	}
	if len(a.Faces) == 0 || len(b.Faces) == 0 {
		return fmt.Errorf("boolean: empty operand")
	}
	return nil
}
