package rebuild

import (
	"fmt"

	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

// PreviewExtrude describes a transient extrude preview request.
type PreviewExtrude struct {
	SketchID  string
	Distance  float64
	Direction feature.Direction
	Op        feature.BodyOp
}

// PreviewRevolve describes a transient revolve preview request.
type PreviewRevolve struct {
	SketchID     string
	AxisEntityID string
	AngleDeg     float64
	Op           feature.BodyOp
}

// runSilent executes a rebuild pass without publishing, returning the
// session. Preview requests resolve sketches against it.
func (o *Orchestrator) runSilent(d *doc.Document) *session {
	unit, err := numeric.ParseUnit(d.Units())
	if err != nil {
		unit = numeric.Millimetre
	}
	s := &session{
		o:        o,
		scale:    unit.Factor(),
		reg:      NewRegistry(),
		planes:   make(map[string]kernel.Plane),
		axes:     make(map[string]axisValue),
		sketches: make(map[string]*kernel.Sketch),
		statuses: make(map[string]Status),
	}
	for _, fid := range d.FeatureOrder() {
		f, perr := feature.ParseFeature(d.FeatureRecord(fid))
		if perr != nil || f.Suppressed {
			continue
		}
		if ierr := s.safeInterpret(f, nil); ierr != nil {
			continue
		}
	}
	return s
}

// BuildPreviewExtrude produces the ghost mesh for an extrude about to be
// committed. The body registry is never touched.
func (o *Orchestrator) BuildPreviewExtrude(d *doc.Document, req PreviewExtrude) (*kernel.Mesh, error) {
	s := o.runSilent(d)
	sk, ok := s.sketches[req.SketchID]
	if !ok {
		return nil, fmt.Errorf("sketch %s is not available", req.SketchID)
	}
	profile, err := sk.ToProfile(nil)
	if err != nil {
		return nil, err
	}
	dist := req.Distance * s.scale
	if req.Direction == feature.DirReverse {
		dist = -dist
	}
	body, err := o.kernel.Extrude(profile, sk.Plane, dist)
	if err != nil {
		return nil, err
	}
	return body.Tessellate(), nil
}

// BuildPreviewRevolve produces the ghost mesh for a revolve about to be
// committed.
func (o *Orchestrator) BuildPreviewRevolve(d *doc.Document, req PreviewRevolve) (*kernel.Mesh, error) {
	s := o.runSilent(d)
	sk, ok := s.sketches[req.SketchID]
	if !ok {
		return nil, fmt.Errorf("sketch %s is not available", req.SketchID)
	}
	kind, ok := sk.Entity(req.AxisEntityID)
	if !ok || kind != feature.EntityLine {
		return nil, fmt.Errorf("axis entity %s is not a sketch line", req.AxisEntityID)
	}
	sk.MarkConstruction(req.AxisEntityID)
	profile, err := sk.ToProfile(nil)
	if err != nil {
		return nil, err
	}
	startID, endID, _ := sk.EntityEndpoints(req.AxisEntityID)
	a, _ := sk.LiftPoint(startID)
	b, _ := sk.LiftPoint(endID)
	dir := b.Sub(a)
	if dir.Len() == 0 {
		return nil, fmt.Errorf("axis line %s is degenerate", req.AxisEntityID)
	}
	body, err := o.kernel.Revolve(profile, sk.Plane, a, dir.Normalize(), numeric.Radians(req.AngleDeg))
	if err != nil {
		return nil, err
	}
	return body.Tessellate(), nil
}
