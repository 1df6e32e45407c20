// Package feature materializes typed features from raw document records and
// serializes them back. Parsing happens once at ingress; the rebuild pipeline
// never branches on raw string discriminants.
package feature

import "github.com/samwillis/solidtype-core/internal/geom"

// Type discriminates the feature variants.
type Type string

const (
	TypeOrigin  Type = "origin"
	TypePlane   Type = "plane"
	TypeAxis    Type = "axis"
	TypeSketch  Type = "sketch"
	TypeExtrude Type = "extrude"
	TypeRevolve Type = "revolve"
	TypeBoolean Type = "boolean"
)

// Feature is one node of the parametric history.
type Feature struct {
	ID         string
	Type       Type
	Name       string
	Suppressed bool
	Visible    bool
	Def        Definition
}

// Definition is the per-variant payload.
type Definition interface{ featureDef() }

// Origin is the fixed world origin.
type Origin struct{}

func (Origin) featureDef() {}

// PlaneRole pins a datum plane's basis.
type PlaneRole string

const (
	RoleNone PlaneRole = ""
	RoleXY   PlaneRole = "xy"
	RoleXZ   PlaneRole = "xz"
	RoleYZ   PlaneRole = "yz"
)

// PlaneDefKind discriminates how a plane feature derives its placement.
type PlaneDefKind string

const (
	PlaneDatum       PlaneDefKind = "datum"
	PlaneOffsetPlane PlaneDefKind = "offset-from-plane"
	PlaneOffsetFace  PlaneDefKind = "offset-from-face"
	PlaneMidplane    PlaneDefKind = "midplane"
	PlaneAxisAngle   PlaneDefKind = "axis-angle"
	PlaneThreePoint  PlaneDefKind = "three-point"
)

// PlaneDefinition carries the derivation inputs; unused fields stay zero.
type PlaneDefinition struct {
	Kind PlaneDefKind
	// Base is a plane feature id (offset-from-plane, axis-angle, midplane A).
	Base string
	// Other is the second plane feature id for midplane.
	Other string
	// Face is a face reference string for offset-from-face.
	Face string
	// Axis is an axis feature id for axis-angle.
	Axis string
	// Offset is the plane offset distance.
	Offset float64
	// AngleDeg is the axis-angle rotation, degrees.
	AngleDeg float64
	// Points are the three point literals for three-point planes.
	Points [3]geom.Vec3
}

// Plane is a datum or derived plane feature.
type Plane struct {
	Origin     geom.Vec3
	Normal     geom.Vec3
	XDir       geom.Vec3
	Role       PlaneRole
	Definition PlaneDefinition
}

func (Plane) featureDef() {}

// AxisDefKind discriminates axis derivations.
type AxisDefKind string

const (
	AxisDatum      AxisDefKind = "datum"
	AxisAlongEdge  AxisDefKind = "along-edge"
	AxisTwoPoint   AxisDefKind = "two-point"
	AxisSketchLine AxisDefKind = "along-sketch-line"
)

// AxisDefinition carries axis derivation inputs.
type AxisDefinition struct {
	Kind AxisDefKind
	// Edge is an edge reference string for along-edge.
	Edge string
	// P1, P2 are the point literals for two-point.
	P1, P2 geom.Vec3
	// Sketch and Entity name a sketch line for along-sketch-line.
	Sketch string
	Entity string
}

// Axis is a datum or derived axis feature.
type Axis struct {
	Origin     geom.Vec3
	Direction  geom.Vec3
	Definition AxisDefinition
}

func (Axis) featureDef() {}

// PlaneRefKind discriminates sketch plane references.
type PlaneRefKind string

const (
	PlaneRefFeature PlaneRefKind = "planeFeatureId"
	PlaneRefFace    PlaneRefKind = "faceRef"
)

// PlaneRef names the plane a sketch lives on: either a plane feature id or a
// face reference into a prior body.
type PlaneRef struct {
	Kind PlaneRefKind
	Ref  string
}

// Sketch is a 2D sketch feature.
type Sketch struct {
	Plane PlaneRef
	Data  SketchData
}

func (Sketch) featureDef() {}

// ExtentKind is how far an extrude reaches.
type ExtentKind string

const (
	ExtentBlind      ExtentKind = "blind"
	ExtentThroughAll ExtentKind = "throughAll"
	ExtentToFace     ExtentKind = "toFace"
	ExtentToVertex   ExtentKind = "toVertex"
)

// Direction flips an extrude along its sketch normal.
type Direction string

const (
	DirNormal  Direction = "normal"
	DirReverse Direction = "reverse"
)

// BodyOp is whether a swept volume adds material or cuts it.
type BodyOp string

const (
	OpAdd BodyOp = "add"
	OpCut BodyOp = "cut"
)

// MergeScope controls which existing bodies an added volume unions into.
type MergeScope string

const (
	MergeAuto     MergeScope = "auto"
	MergeNew      MergeScope = "new"
	MergeSpecific MergeScope = "specific"
)

// Extrude sweeps a sketch profile along its plane normal.
type Extrude struct {
	Sketch          string
	Distance        float64
	Extent          ExtentKind
	ExtentRef       string
	Direction       Direction
	Op              BodyOp
	MergeScope      MergeScope
	TargetBodies    []string
	ResultBodyName  string
	ResultBodyColor string
}

func (Extrude) featureDef() {}

// Revolve sweeps a sketch profile about one of its own lines.
type Revolve struct {
	Sketch          string
	Axis            string // sketch entity id of the construction axis line
	AngleDeg        float64
	Op              BodyOp
	MergeScope      MergeScope
	TargetBodies    []string
	ResultBodyName  string
	ResultBodyColor string
}

func (Revolve) featureDef() {}

// BooleanOp discriminates explicit boolean features.
type BooleanOp string

const (
	BoolUnion     BooleanOp = "union"
	BoolSubtract  BooleanOp = "subtract"
	BoolIntersect BooleanOp = "intersect"
)

// Boolean combines two prior bodies; the tool is consumed.
type Boolean struct {
	Operation BooleanOp
	Target    string
	Tool      string
}

func (Boolean) featureDef() {}

// References lists every cross-feature reference the feature carries, for the
// reference-before-use check.
func (f *Feature) References() []string {
	switch def := f.Def.(type) {
	case Plane:
		var out []string
		d := def.Definition
		for _, id := range []string{d.Base, d.Other, d.Axis} {
			if id != "" {
				out = append(out, id)
			}
		}
		if d.Face != "" {
			if r, err := ParseRef(d.Face); err == nil {
				out = append(out, r.Feature)
			}
		}
		return out
	case Axis:
		d := def.Definition
		var out []string
		if d.Edge != "" {
			if r, err := ParseRef(d.Edge); err == nil {
				out = append(out, r.Feature)
			}
		}
		if d.Sketch != "" {
			out = append(out, d.Sketch)
		}
		return out
	case Sketch:
		var out []string
		if def.Plane.Kind == PlaneRefFeature {
			out = append(out, def.Plane.Ref)
		} else if r, err := ParseRef(def.Plane.Ref); err == nil {
			out = append(out, r.Feature)
		}
		for _, pid := range sortedKeys(def.Data.Points) {
			p := def.Data.Points[pid]
			if p.AttachedTo != nil {
				if r, err := ParseRef(p.AttachedTo.Ref); err == nil {
					out = append(out, r.Feature)
				}
			}
		}
		return out
	case Extrude:
		out := []string{def.Sketch}
		if def.ExtentRef != "" {
			if r, err := ParseRef(def.ExtentRef); err == nil {
				out = append(out, r.Feature)
			}
		}
		out = append(out, def.TargetBodies...)
		return out
	case Revolve:
		return append([]string{def.Sketch}, def.TargetBodies...)
	case Boolean:
		return []string{def.Target, def.Tool}
	}
	return nil
}
