// Package sketch implements the 2D geometric constraint system: points,
// entities and constraints are fed in, solved with damped Gauss-Newton, and
// closed profiles are extracted for the swept-volume operations.
//
// Everything iterates in lexicographic id order so the same sketch produces
// bit-identical solved positions on every replica.
package sketch

import (
	"fmt"
	"sort"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

// Status classifies a solve outcome. None of these block a rebuild.
type Status string

const (
	StatusSolved             Status = "solved"
	StatusSolvedWithWarnings Status = "solvedWithWarnings"
	StatusOverConstrained    Status = "overConstrained"
	StatusUnderConstrained   Status = "underConstrained"
)

// DOF is the degree-of-freedom report for a solved sketch.
type DOF struct {
	Total              int  `json:"total"`
	Constrained        int  `json:"constrained"`
	Remaining          int  `json:"remaining"`
	IsFullyConstrained bool `json:"isFullyConstrained"`
	IsOverConstrained  bool `json:"isOverConstrained"`
}

type point struct {
	x, y  float64
	fixed bool
}

type entity struct {
	kind         feature.EntityKind
	start, end   string
	center       string
	radius       float64
	ccw          bool
	construction bool
}

type constraintRec struct {
	id string
	c  feature.SketchConstraint
}

// Sketch is one solver session. Not safe for concurrent use; the rebuild
// domain owns it.
type Sketch struct {
	ctx         numeric.Context
	points      map[string]*point
	entities    map[string]*entity
	constraints []constraintRec

	lastStatus Status
	lastDOF    DOF
	solvedOnce bool
}

// New creates an empty solver sketch.
func New(ctx numeric.Context) *Sketch {
	return &Sketch{
		ctx:      ctx,
		points:   make(map[string]*point),
		entities: make(map[string]*entity),
	}
}

// AddPoint registers a point. Fixed points never move during a solve.
func (s *Sketch) AddPoint(id string, x, y float64, fixed bool) {
	s.points[id] = &point{x: x, y: y, fixed: fixed}
}

// FixPoint pins an existing point at its current position.
func (s *Sketch) FixPoint(id string) {
	if p, ok := s.points[id]; ok {
		p.fixed = true
	}
}

// SetPoint moves a point (used for external attachments before solving).
func (s *Sketch) SetPoint(id string, x, y float64) {
	if p, ok := s.points[id]; ok {
		p.x, p.y = x, y
	}
}

// AddLine registers a line between two known points.
func (s *Sketch) AddLine(id, start, end string, construction bool) error {
	if err := s.needPoints(start, end); err != nil {
		return err
	}
	s.entities[id] = &entity{kind: feature.EntityLine, start: start, end: end, construction: construction}
	return nil
}

// AddArc registers a circular arc from start to end about center.
func (s *Sketch) AddArc(id, start, end, center string, ccw, construction bool) error {
	if err := s.needPoints(start, end, center); err != nil {
		return err
	}
	s.entities[id] = &entity{kind: feature.EntityArc, start: start, end: end, center: center, ccw: ccw, construction: construction}
	return nil
}

// AddCircle registers a full circle about center.
func (s *Sketch) AddCircle(id, center string, radius float64, construction bool) error {
	if err := s.needPoints(center); err != nil {
		return err
	}
	if radius <= 0 {
		return fmt.Errorf("circle %s: non-positive radius", id)
	}
	s.entities[id] = &entity{kind: feature.EntityCircle, center: center, radius: radius, construction: construction}
	return nil
}

// AddConstraint registers a constraint. Referenced points and entities must
// already exist.
func (s *Sketch) AddConstraint(id string, c feature.SketchConstraint) error {
	for _, pid := range c.Points {
		if _, ok := s.points[pid]; !ok {
			return fmt.Errorf("constraint %s: unknown point %q", id, pid)
		}
	}
	for _, lid := range c.Lines {
		if _, ok := s.entities[lid]; !ok {
			return fmt.Errorf("constraint %s: unknown line %q", id, lid)
		}
	}
	if c.Arc != "" {
		if _, ok := s.entities[c.Arc]; !ok {
			return fmt.Errorf("constraint %s: unknown arc %q", id, c.Arc)
		}
	}
	s.constraints = append(s.constraints, constraintRec{id: id, c: c})
	sort.Slice(s.constraints, func(i, j int) bool { return s.constraints[i].id < s.constraints[j].id })
	return nil
}

// MarkConstruction flags an entity as construction geometry after the fact
// (revolve axes are excluded from profiles this way).
func (s *Sketch) MarkConstruction(entityID string) {
	if e, ok := s.entities[entityID]; ok {
		e.construction = true
	}
}

// Entity returns the kind of a registered entity.
func (s *Sketch) Entity(id string) (feature.EntityKind, bool) {
	e, ok := s.entities[id]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// EntityEndpoints returns the start/end point ids of a line or arc.
func (s *Sketch) EntityEndpoints(id string) (start, end string, ok bool) {
	e, exists := s.entities[id]
	if !exists || e.kind == feature.EntityCircle {
		return "", "", false
	}
	return e.start, e.end, true
}

// Point returns a point's current position.
func (s *Sketch) Point(id string) (geom.Vec2, bool) {
	p, ok := s.points[id]
	if !ok {
		return geom.Vec2{}, false
	}
	return geom.V2(p.x, p.y), true
}

// PointIDs returns all point ids in lexicographic order.
func (s *Sketch) PointIDs() []string {
	ids := make([]string, 0, len(s.points))
	for id := range s.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status returns the most recent solve classification.
func (s *Sketch) Status() Status {
	if !s.solvedOnce {
		return StatusUnderConstrained
	}
	return s.lastStatus
}

func (s *Sketch) needPoints(ids ...string) error {
	for _, id := range ids {
		if _, ok := s.points[id]; !ok {
			return fmt.Errorf("unknown point %q", id)
		}
	}
	return nil
}
