package feature

import "github.com/samwillis/solidtype-core/internal/geom"

func vec3Record(v geom.Vec3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func pointLiteral(v geom.Vec3) string {
	return Ref{Kind: RefPoint, Point: v}.String()
}

// SerializeFeature produces the canonical raw record for a feature.
// ParseFeature(SerializeFeature(f)) round-trips exactly.
func SerializeFeature(f *Feature) map[string]any {
	rec := map[string]any{
		"id":         f.ID,
		"type":       string(f.Type),
		"name":       f.Name,
		"suppressed": f.Suppressed,
		"visible":    f.Visible,
	}

	switch def := f.Def.(type) {
	case Origin:
	case Plane:
		if def.Origin != (geom.Vec3{}) || def.Normal != (geom.Vec3{}) || def.XDir != (geom.Vec3{}) {
			rec["origin"] = vec3Record(def.Origin)
			rec["normal"] = vec3Record(def.Normal)
			rec["xDir"] = vec3Record(def.XDir)
		}
		if def.Role != RoleNone {
			rec["role"] = string(def.Role)
		}
		rec["definition"] = serializePlaneDef(def.Definition)
	case Axis:
		if def.Origin != (geom.Vec3{}) || def.Direction != (geom.Vec3{}) {
			rec["origin"] = vec3Record(def.Origin)
			rec["direction"] = vec3Record(def.Direction)
		}
		rec["definition"] = serializeAxisDef(def.Definition)
	case Sketch:
		rec["plane"] = map[string]any{"kind": string(def.Plane.Kind), "ref": def.Plane.Ref}
		rec["data"] = serializeSketchData(def.Data)
	case Extrude:
		rec["sketch"] = def.Sketch
		rec["distance"] = def.Distance
		rec["extent"] = string(def.Extent)
		if def.ExtentRef != "" {
			rec["extentRef"] = def.ExtentRef
		}
		rec["direction"] = string(def.Direction)
		rec["op"] = string(def.Op)
		rec["mergeScope"] = string(def.MergeScope)
		if len(def.TargetBodies) > 0 {
			rec["targetBodies"] = strAny(def.TargetBodies)
		}
		if def.ResultBodyName != "" {
			rec["resultBodyName"] = def.ResultBodyName
		}
		if def.ResultBodyColor != "" {
			rec["resultBodyColor"] = def.ResultBodyColor
		}
	case Revolve:
		rec["sketch"] = def.Sketch
		rec["axis"] = def.Axis
		rec["angle"] = def.AngleDeg
		rec["op"] = string(def.Op)
		rec["mergeScope"] = string(def.MergeScope)
		if len(def.TargetBodies) > 0 {
			rec["targetBodies"] = strAny(def.TargetBodies)
		}
		if def.ResultBodyName != "" {
			rec["resultBodyName"] = def.ResultBodyName
		}
		if def.ResultBodyColor != "" {
			rec["resultBodyColor"] = def.ResultBodyColor
		}
	case Boolean:
		rec["operation"] = string(def.Operation)
		rec["target"] = def.Target
		rec["tool"] = def.Tool
	}
	return rec
}

func strAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func serializePlaneDef(d PlaneDefinition) map[string]any {
	out := map[string]any{"kind": string(d.Kind)}
	switch d.Kind {
	case PlaneOffsetPlane:
		out["base"] = d.Base
		out["offset"] = d.Offset
	case PlaneOffsetFace:
		out["face"] = d.Face
		out["offset"] = d.Offset
	case PlaneMidplane:
		out["a"] = d.Base
		out["b"] = d.Other
	case PlaneAxisAngle:
		out["base"] = d.Base
		out["axis"] = d.Axis
		out["angle"] = d.AngleDeg
	case PlaneThreePoint:
		out["p1"] = pointLiteral(d.Points[0])
		out["p2"] = pointLiteral(d.Points[1])
		out["p3"] = pointLiteral(d.Points[2])
	}
	return out
}

func serializeAxisDef(d AxisDefinition) map[string]any {
	out := map[string]any{"kind": string(d.Kind)}
	switch d.Kind {
	case AxisAlongEdge:
		out["edge"] = d.Edge
	case AxisTwoPoint:
		out["p1"] = pointLiteral(d.P1)
		out["p2"] = pointLiteral(d.P2)
	case AxisSketchLine:
		out["sketch"] = d.Sketch
		out["entity"] = d.Entity
	}
	return out
}

func serializeSketchData(d SketchData) map[string]any {
	points := map[string]any{}
	for _, pid := range d.PointIDs() {
		p := d.Points[pid]
		m := map[string]any{"x": p.X, "y": p.Y}
		if p.Fixed {
			m["fixed"] = true
		}
		if p.AttachedTo != nil {
			m["attachedTo"] = map[string]any{
				"ref":   p.AttachedTo.Ref,
				"param": p.AttachedTo.Param,
			}
		}
		points[pid] = m
	}

	entities := map[string]any{}
	for _, eid := range d.EntityIDs() {
		e := d.Entities[eid]
		m := map[string]any{"kind": string(e.Kind)}
		switch e.Kind {
		case EntityLine:
			m["start"] = e.Start
			m["end"] = e.End
		case EntityArc:
			m["start"] = e.Start
			m["end"] = e.End
			m["center"] = e.Center
			m["ccw"] = e.CCW
		case EntityCircle:
			m["center"] = e.Center
			m["radius"] = e.Radius
		}
		if e.Construction {
			m["construction"] = true
		}
		entities[eid] = m
	}

	constraints := map[string]any{}
	for _, cid := range d.ConstraintIDs() {
		c := d.Constraints[cid]
		m := map[string]any{"kind": string(c.Kind)}
		if len(c.Points) > 0 {
			m["points"] = strAny(c.Points)
		}
		if len(c.Lines) > 0 {
			m["lines"] = strAny(c.Lines)
		}
		if c.Arc != "" {
			m["arc"] = c.Arc
		}
		switch c.Kind {
		case ConstraintDistance, ConstraintAngle:
			m["value"] = c.Value
		case ConstraintFixed:
			m["tx"] = c.TX
			m["ty"] = c.TY
		}
		constraints[cid] = m
	}

	return map[string]any{
		"pointsById":      points,
		"entitiesById":    entities,
		"constraintsById": constraints,
	}
}
