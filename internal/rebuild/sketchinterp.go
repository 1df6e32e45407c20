package rebuild

import (
	"math"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/sketch"
)

// SolvedSketch is what the orchestrator publishes per sketch.
type SolvedSketch struct {
	SketchID       string                `json:"sketchId"`
	Points         map[string][2]float64 `json:"points"`
	Status         sketch.Status         `json:"status"`
	PlaneTransform [16]float64           `json:"planeTransform"`
	DOF            sketch.DOF            `json:"dof"`
}

// planeTransform is the column-major sketch-to-world matrix.
func planeTransform(pl kernel.Plane) [16]float64 {
	x, y, n, o := pl.XDir, pl.YDir(), pl.Normal, pl.Origin
	return [16]float64{
		x.X, x.Y, x.Z, 0,
		y.X, y.Y, y.Z, 0,
		n.X, n.Y, n.Z, 0,
		o.X, o.Y, o.Z, 1,
	}
}

// interpretSketch materializes the solver sketch on its plane, anchors
// external attachments, solves, and queues write-backs for points the solver
// moved beyond the fixpoint epsilon.
func (s *session) interpretSketch(f *feature.Feature, pub Publisher) *Error {
	def := f.Def.(feature.Sketch)

	pl, err := s.resolveSketchPlane(f.ID, def.Plane)
	if err != nil {
		return err
	}

	sk := s.o.kernel.CreateSketch(pl)
	data := def.Data

	for _, pid := range data.PointIDs() {
		p := data.Points[pid]
		sk.AddPoint(pid, p.X*s.scale, p.Y*s.scale, p.Fixed)
	}

	// External attachments pin their points at the projected world position.
	for _, pid := range data.PointIDs() {
		p := data.Points[pid]
		if p.AttachedTo == nil {
			continue
		}
		ref, perr := feature.ParseRef(p.AttachedTo.Ref)
		if perr != nil {
			return failf(f.ID, CodeInvalidReference, "%v", perr)
		}
		world, aerr := s.resolveAttachment(f.ID, ref, p.AttachedTo.Param)
		if aerr != nil {
			return aerr
		}
		local := pl.ToLocal(world)
		sk.SetPoint(pid, local.X, local.Y)
		sk.FixPoint(pid)
	}

	for _, eid := range data.EntityIDs() {
		e := data.Entities[eid]
		var aerr error
		switch e.Kind {
		case feature.EntityLine:
			aerr = sk.AddLine(eid, e.Start, e.End, e.Construction)
		case feature.EntityArc:
			aerr = sk.AddArc(eid, e.Start, e.End, e.Center, e.CCW, e.Construction)
		case feature.EntityCircle:
			aerr = sk.AddCircle(eid, e.Center, e.Radius*s.scale, e.Construction)
		}
		if aerr != nil {
			return failf(f.ID, CodeBuildError, "entity %s: %v", eid, aerr)
		}
	}

	for _, cid := range data.ConstraintIDs() {
		c := data.Constraints[cid]
		switch c.Kind {
		case feature.ConstraintDistance:
			c.Value *= s.scale
		case feature.ConstraintFixed:
			c.TX *= s.scale
			c.TY *= s.scale
		}
		if aerr := sk.AddConstraint(cid, c); aerr != nil {
			return failf(f.ID, CodeBuildError, "constraint %s: %v", cid, aerr)
		}
	}

	status := sk.Solve()
	dof := sk.AnalyzeDOF()

	points := make(map[string][2]float64, len(data.Points))
	eps := s.o.ctx.SolveEps
	for _, pid := range data.PointIDs() {
		cur, _ := sk.Point(pid)
		x, y := cur.X/s.scale, cur.Y/s.scale
		points[pid] = [2]float64{x, y}
		orig := data.Points[pid]
		if math.Abs(x-orig.X) > eps || math.Abs(y-orig.Y) > eps {
			s.writebacks = append(s.writebacks, pointWrite{sketch: f.ID, point: pid, x: x, y: y})
		}
	}

	if pub != nil {
		pub.SketchSolved(&SolvedSketch{
			SketchID:       f.ID,
			Points:         points,
			Status:         status,
			PlaneTransform: planeTransform(pl),
			DOF:            dof,
		})
	}

	s.sketches[f.ID] = sk
	return nil
}
