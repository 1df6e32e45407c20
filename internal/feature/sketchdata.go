package feature

import "sort"

// SketchData holds a sketch's points, entities and constraints, each keyed by
// opaque ids. Consumers must iterate the maps in lexicographic key order.
type SketchData struct {
	Points      map[string]SketchPoint
	Entities    map[string]SketchEntity
	Constraints map[string]SketchConstraint
}

// SketchPoint is one 2D point in sketch coordinates.
type SketchPoint struct {
	X, Y  float64
	Fixed bool
	// AttachedTo pins the point to an edge or vertex of a prior body.
	AttachedTo *Attachment
}

// Attachment targets an external edge or vertex; Param positions the point
// along an edge, in [0,1].
type Attachment struct {
	Ref   string
	Param float64
}

// EntityKind discriminates sketch entities.
type EntityKind string

const (
	EntityLine   EntityKind = "line"
	EntityArc    EntityKind = "arc"
	EntityCircle EntityKind = "circle"
)

// SketchEntity is a line, arc or circle. Endpoints and centers are point ids
// inside the same sketch.
type SketchEntity struct {
	Kind         EntityKind
	Start        string
	End          string
	Center       string
	Radius       float64
	CCW          bool
	Construction bool
}

// ConstraintKind discriminates sketch constraints.
type ConstraintKind string

const (
	ConstraintCoincident    ConstraintKind = "coincident"
	ConstraintHorizontal    ConstraintKind = "horizontal"
	ConstraintVertical      ConstraintKind = "vertical"
	ConstraintFixed         ConstraintKind = "fixed"
	ConstraintDistance      ConstraintKind = "distance"
	ConstraintAngle         ConstraintKind = "angle"
	ConstraintParallel      ConstraintKind = "parallel"
	ConstraintPerpendicular ConstraintKind = "perpendicular"
	ConstraintEqualLength   ConstraintKind = "equalLength"
	ConstraintTangent       ConstraintKind = "tangent"
	ConstraintSymmetric     ConstraintKind = "symmetric"
)

// SketchConstraint is one constraint instance. Which fields are populated
// depends on the kind:
//
//	coincident              Points[0..1]
//	horizontal / vertical   Points[0..1] or Lines[0]
//	fixed                   Points[0], TX, TY
//	distance                Points[0..1] or Lines[0], Value
//	angle                   Lines[0..1], Value (degrees)
//	parallel/perpendicular  Lines[0..1]
//	equalLength             Lines[0..1]
//	tangent                 Lines[0], Arc
//	symmetric               Points[0..1], Lines[0] (axis)
type SketchConstraint struct {
	Kind   ConstraintKind
	Points []string
	Lines  []string
	Arc    string
	Value  float64
	TX, TY float64
}

// sortedKeys returns map keys in the iteration order the engine guarantees.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PointIDs returns the sketch's point ids in lexicographic order.
func (s SketchData) PointIDs() []string { return sortedKeys(s.Points) }

// EntityIDs returns the sketch's entity ids in lexicographic order.
func (s SketchData) EntityIDs() []string { return sortedKeys(s.Entities) }

// ConstraintIDs returns the sketch's constraint ids in lexicographic order.
func (s SketchData) ConstraintIDs() []string { return sortedKeys(s.Constraints) }
