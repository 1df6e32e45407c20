package rebuild

import (
	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

// axisValue is a resolved axis feature.
type axisValue struct {
	origin geom.Vec3
	dir    geom.Vec3
}

// pointWrite is one solver-moved point pending write-back to the document.
type pointWrite struct {
	sketch string
	point  string
	x, y   float64
}

// session is the owned state of one rebuild pass. Nothing here outlives the
// pass except the registry handed to the result.
type session struct {
	o     *Orchestrator
	scale float64 // document unit -> millimetres

	reg      *Registry
	planes   map[string]kernel.Plane
	axes     map[string]axisValue
	sketches map[string]*kernel.Sketch

	statuses   map[string]Status
	errors     []*Error
	bodySeq    int
	writebacks []pointWrite
}

func (s *session) scaleVec(v geom.Vec3) geom.Vec3 { return v.Scale(s.scale) }

// interpretPlane resolves a plane feature to a concrete basis.
func (s *session) interpretPlane(f *feature.Feature) *Error {
	def := f.Def.(feature.Plane)
	d := def.Definition

	var pl kernel.Plane
	switch d.Kind {
	case feature.PlaneDatum:
		if def.Role != feature.RoleNone {
			base, ok := kernel.DatumPlane(string(def.Role))
			if !ok {
				return failf(f.ID, CodeBuildError, "unknown datum role %q", def.Role)
			}
			pl = base
		} else {
			if def.Normal.Len() == 0 {
				return failf(f.ID, CodeBuildError, "datum plane without role or basis")
			}
			pl = kernel.NewPlane(s.scaleVec(def.Origin), def.Normal, def.XDir)
		}

	case feature.PlaneOffsetPlane:
		base, ok := s.planes[d.Base]
		if !ok {
			return failf(f.ID, CodeInvalidReference, "plane %s is not available", d.Base)
		}
		pl = base.Offset(d.Offset * s.scale)

	case feature.PlaneOffsetFace:
		facePlane, err := s.planeFromFaceRef(f.ID, d.Face)
		if err != nil {
			return err
		}
		pl = facePlane.Offset(d.Offset * s.scale)

	case feature.PlaneMidplane:
		a, okA := s.planes[d.Base]
		b, okB := s.planes[d.Other]
		if !okA || !okB {
			return failf(f.ID, CodeInvalidReference, "midplane inputs are not available")
		}
		normal := b.Normal
		if a.Normal.Dot(b.Normal) < 0 {
			normal = b.Normal.Neg()
		}
		pl = kernel.NewPlane(
			a.Origin.Add(b.Origin).Scale(0.5),
			a.Normal.Add(normal),
			a.XDir,
		)

	case feature.PlaneAxisAngle:
		base, ok := s.planes[d.Base]
		if !ok {
			return failf(f.ID, CodeInvalidReference, "plane %s is not available", d.Base)
		}
		axis, ok := s.axes[d.Axis]
		if !ok {
			return failf(f.ID, CodeInvalidReference, "axis %s is not available", d.Axis)
		}
		pl = base.RotateAround(axis.origin, axis.dir.Normalize(), numeric.Radians(d.AngleDeg))

	case feature.PlaneThreePoint:
		p1 := s.scaleVec(d.Points[0])
		p2 := s.scaleVec(d.Points[1])
		p3 := s.scaleVec(d.Points[2])
		normal := p2.Sub(p1).Cross(p3.Sub(p1))
		if normal.Len() == 0 {
			return failf(f.ID, CodeBuildError, "three-point plane is degenerate")
		}
		pl = kernel.NewPlane(p1, normal, p2.Sub(p1))

	default:
		return failf(f.ID, CodeBuildError, "unknown plane definition %q", d.Kind)
	}

	s.planes[f.ID] = pl
	return nil
}

// interpretAxis resolves an axis feature to an origin and direction.
func (s *session) interpretAxis(f *feature.Feature) *Error {
	def := f.Def.(feature.Axis)
	d := def.Definition

	var val axisValue
	switch d.Kind {
	case feature.AxisDatum:
		if def.Direction.Len() == 0 {
			return failf(f.ID, CodeBuildError, "datum axis without direction")
		}
		val = axisValue{origin: s.scaleVec(def.Origin), dir: def.Direction.Normalize()}

	case feature.AxisAlongEdge:
		ref, err := feature.ParseRef(d.Edge)
		if err != nil {
			return failf(f.ID, CodeInvalidReference, "%v", err)
		}
		edge, ferr := s.resolveEdge(f.ID, ref)
		if ferr != nil {
			return ferr
		}
		dir := edge.End().Sub(edge.Start())
		if dir.Len() == 0 {
			return failf(f.ID, CodeBuildError, "edge %s is degenerate", d.Edge)
		}
		val = axisValue{origin: edge.Start(), dir: dir.Normalize()}

	case feature.AxisTwoPoint:
		dir := d.P2.Sub(d.P1)
		if dir.Len() == 0 {
			return failf(f.ID, CodeBuildError, "two-point axis is degenerate")
		}
		val = axisValue{origin: s.scaleVec(d.P1), dir: dir.Normalize()}

	case feature.AxisSketchLine:
		sk, ok := s.sketches[d.Sketch]
		if !ok {
			return failf(f.ID, CodeSketchNotFound, "sketch %s is not available", d.Sketch)
		}
		kind, ok := sk.Entity(d.Entity)
		if !ok || kind != feature.EntityLine {
			return failf(f.ID, CodeInvalidReference, "entity %s is not a sketch line", d.Entity)
		}
		startID, endID, _ := sk.EntityEndpoints(d.Entity)
		a, _ := sk.LiftPoint(startID)
		b, _ := sk.LiftPoint(endID)
		dir := b.Sub(a)
		if dir.Len() == 0 {
			return failf(f.ID, CodeBuildError, "sketch line %s is degenerate", d.Entity)
		}
		val = axisValue{origin: a, dir: dir.Normalize()}

	default:
		return failf(f.ID, CodeBuildError, "unknown axis definition %q", d.Kind)
	}

	s.axes[f.ID] = val
	return nil
}

// planeFromFaceRef resolves a face reference to the face's oriented plane.
// The face must exist and be planar; a reversed face contributes its flipped
// normal.
func (s *session) planeFromFaceRef(featureID, raw string) (kernel.Plane, *Error) {
	ref, err := feature.ParseRef(raw)
	if err != nil {
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "%v", err)
	}
	entry, ok := s.reg.GetByFeature(ref.Feature)
	if !ok {
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "no body produced by feature %s", ref.Feature)
	}
	face, ok := ResolveFaceOn(entry, ref)
	if !ok {
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "face %s does not exist", raw)
	}
	if !face.IsPlanar() {
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "face %s is not planar", raw)
	}
	pl, ok := face.PlaneOf()
	if !ok {
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "face %s has no plane", raw)
	}
	if face.Reversed {
		pl = pl.Flipped()
	}
	return pl, nil
}

// resolveSketchPlane resolves a sketch's plane reference.
func (s *session) resolveSketchPlane(featureID string, ref feature.PlaneRef) (kernel.Plane, *Error) {
	switch ref.Kind {
	case feature.PlaneRefFeature:
		pl, ok := s.planes[ref.Ref]
		if !ok {
			return kernel.Plane{}, failf(featureID, CodeInvalidReference, "plane %s is not available", ref.Ref)
		}
		return pl, nil
	case feature.PlaneRefFace:
		return s.planeFromFaceRef(featureID, ref.Ref)
	default:
		return kernel.Plane{}, failf(featureID, CodeInvalidReference, "unknown plane reference kind %q", ref.Kind)
	}
}

// resolveEdge finds a topological edge of a prior body.
func (s *session) resolveEdge(featureID string, ref feature.Ref) (*kernel.Edge, *Error) {
	entry, ok := s.reg.GetByFeature(ref.Feature)
	if !ok {
		return nil, failf(featureID, CodeInvalidReference, "no body produced by feature %s", ref.Feature)
	}
	edges := entry.Body.Edges()
	if !ref.HasIndex || ref.Index >= len(edges) {
		return nil, failf(featureID, CodeInvalidReference, "edge %s does not exist", ref.String())
	}
	return edges[ref.Index], nil
}

// resolveAttachment computes the world position of an external attachment:
// for edges, interpolation by param between the edge ends; for vertices, the
// vertex itself.
func (s *session) resolveAttachment(featureID string, ref feature.Ref, param float64) (geom.Vec3, *Error) {
	switch ref.Kind {
	case feature.RefEdge:
		edge, err := s.resolveEdge(featureID, ref)
		if err != nil {
			return geom.Vec3{}, err
		}
		return edge.PointAt(param), nil
	case feature.RefVertex:
		entry, ok := s.reg.GetByFeature(ref.Feature)
		if !ok {
			return geom.Vec3{}, failf(featureID, CodeInvalidReference, "no body produced by feature %s", ref.Feature)
		}
		verts := entry.Body.Vertices()
		if !ref.HasIndex || ref.Index >= len(verts) {
			return geom.Vec3{}, failf(featureID, CodeInvalidReference, "vertex %s does not exist", ref.String())
		}
		return verts[ref.Index], nil
	default:
		return geom.Vec3{}, failf(featureID, CodeInvalidReference, "reference %s cannot anchor a sketch point", ref.String())
	}
}
