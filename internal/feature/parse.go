package feature

import (
	"fmt"
	"math"

	"github.com/samwillis/solidtype-core/internal/geom"
)

func v3of(v [3]float64) geom.Vec3 { return geom.V3(v[0], v[1], v[2]) }

// ParseError reports a malformed or under-specified feature record.
type ParseError struct {
	FeatureID string
	Field     string
	Msg       string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("feature %s: %s", e.FeatureID, e.Msg)
	}
	return fmt.Sprintf("feature %s: field %s: %s", e.FeatureID, e.Field, e.Msg)
}

// reader pulls typed fields out of a raw record, recording the first failure.
type reader struct {
	rec map[string]any
	id  string
	err *ParseError
}

func (r *reader) fail(field, format string, args ...any) {
	if r.err == nil {
		r.err = &ParseError{FeatureID: r.id, Field: field, Msg: fmt.Sprintf(format, args...)}
	}
}

func (r *reader) str(field string) string {
	v, ok := r.rec[field]
	if !ok {
		r.fail(field, "required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, "want string, got %T", v)
		return ""
	}
	return s
}

func (r *reader) optStr(field string) string {
	v, ok := r.rec[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, "want string, got %T", v)
		return ""
	}
	return s
}

func (r *reader) num(field string) float64 {
	v, ok := r.rec[field]
	if !ok {
		r.fail(field, "required")
		return 0
	}
	return r.toNum(field, v)
}

func (r *reader) optNum(field string, def float64) float64 {
	v, ok := r.rec[field]
	if !ok || v == nil {
		return def
	}
	return r.toNum(field, v)
}

func (r *reader) toNum(field string, v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			r.fail(field, "not finite")
			return 0
		}
		return n
	case int:
		return float64(n)
	default:
		r.fail(field, "want number, got %T", v)
		return 0
	}
}

func (r *reader) boolOr(field string, def bool) bool {
	v, ok := r.rec[field]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(field, "want bool, got %T", v)
		return def
	}
	return b
}

func (r *reader) sub(field string) map[string]any {
	v, ok := r.rec[field]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		r.fail(field, "want mapping, got %T", v)
		return nil
	}
	return m
}

func (r *reader) strList(field string) []string {
	v, ok := r.rec[field]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		r.fail(field, "want list, got %T", v)
		return nil
	}
	out := make([]string, 0, len(raw))
	for i, e := range raw {
		s, ok := e.(string)
		if !ok {
			r.fail(field, "element %d: want string, got %T", i, e)
			return nil
		}
		out = append(out, s)
	}
	return out
}

// ParseFeature materializes a typed feature from a raw tree record. Reference
// strings are validated for shape only; whether they resolve to an earlier
// feature is the rebuilder's job.
func ParseFeature(rec map[string]any) (*Feature, error) {
	if rec == nil {
		return nil, &ParseError{Msg: "nil record"}
	}
	id, _ := rec["id"].(string)
	r := &reader{rec: rec, id: id}

	f := &Feature{
		ID:         r.str("id"),
		Type:       Type(r.str("type")),
		Name:       r.str("name"),
		Suppressed: r.boolOr("suppressed", false),
		Visible:    r.boolOr("visible", true),
	}
	if r.err != nil {
		return nil, r.err
	}

	switch f.Type {
	case TypeOrigin:
		f.Def = Origin{}
	case TypePlane:
		f.Def = parsePlane(r)
	case TypeAxis:
		f.Def = parseAxis(r)
	case TypeSketch:
		f.Def = parseSketch(r)
	case TypeExtrude:
		f.Def = parseExtrude(r)
	case TypeRevolve:
		f.Def = parseRevolve(r)
	case TypeBoolean:
		f.Def = parseBoolean(r)
	default:
		r.fail("type", "unknown feature type %q", f.Type)
	}

	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

func (r *reader) vec3(field string, sub map[string]any) [3]float64 {
	if sub == nil {
		return [3]float64{}
	}
	inner := &reader{rec: sub, id: r.id}
	v := [3]float64{inner.num("x"), inner.num("y"), inner.num("z")}
	if inner.err != nil && r.err == nil {
		inner.err.Field = field + "." + inner.err.Field
		r.err = inner.err
	}
	return v
}

func (r *reader) refShape(field, value string, want RefKind) {
	if value == "" {
		return
	}
	ref, err := ParseRef(value)
	if err != nil {
		r.fail(field, "%v", err)
		return
	}
	if ref.Kind != want {
		r.fail(field, "want %s reference, got %s", want, ref.Kind)
	}
}

func parsePlane(r *reader) Plane {
	var p Plane

	if o := r.sub("origin"); o != nil {
		v := r.vec3("origin", o)
		p.Origin = v3of(v)
	}
	if n := r.sub("normal"); n != nil {
		v := r.vec3("normal", n)
		p.Normal = v3of(v)
	}
	if x := r.sub("xDir"); x != nil {
		v := r.vec3("xDir", x)
		p.XDir = v3of(v)
	}

	role := PlaneRole(r.optStr("role"))
	switch role {
	case RoleNone, RoleXY, RoleXZ, RoleYZ:
		p.Role = role
	default:
		r.fail("role", "unknown role %q", role)
	}

	def := r.sub("definition")
	if def == nil {
		p.Definition = PlaneDefinition{Kind: PlaneDatum}
		return p
	}
	dr := &reader{rec: def, id: r.id}
	kind := PlaneDefKind(dr.str("kind"))
	d := PlaneDefinition{Kind: kind}
	switch kind {
	case PlaneDatum:
	case PlaneOffsetPlane:
		d.Base = dr.str("base")
		d.Offset = dr.num("offset")
	case PlaneOffsetFace:
		d.Face = dr.str("face")
		d.Offset = dr.optNum("offset", 0)
		r.refShape("definition.face", d.Face, RefFace)
	case PlaneMidplane:
		d.Base = dr.str("a")
		d.Other = dr.str("b")
	case PlaneAxisAngle:
		d.Base = dr.str("base")
		d.Axis = dr.str("axis")
		d.AngleDeg = dr.num("angle")
	case PlaneThreePoint:
		for i, field := range []string{"p1", "p2", "p3"} {
			lit := dr.str(field)
			if dr.err != nil {
				break
			}
			ref, err := ParseRef(lit)
			if err != nil || ref.Kind != RefPoint {
				dr.fail(field, "want point literal")
				break
			}
			d.Points[i] = ref.Point
		}
	default:
		dr.fail("kind", "unknown plane definition %q", kind)
	}
	if dr.err != nil && r.err == nil {
		dr.err.Field = "definition." + dr.err.Field
		r.err = dr.err
	}
	p.Definition = d
	return p
}

func parseAxis(r *reader) Axis {
	var a Axis
	if o := r.sub("origin"); o != nil {
		a.Origin = v3of(r.vec3("origin", o))
	}
	if dv := r.sub("direction"); dv != nil {
		a.Direction = v3of(r.vec3("direction", dv))
	}

	def := r.sub("definition")
	if def == nil {
		a.Definition = AxisDefinition{Kind: AxisDatum}
		return a
	}
	dr := &reader{rec: def, id: r.id}
	kind := AxisDefKind(dr.str("kind"))
	d := AxisDefinition{Kind: kind}
	switch kind {
	case AxisDatum:
	case AxisAlongEdge:
		d.Edge = dr.str("edge")
		r.refShape("definition.edge", d.Edge, RefEdge)
	case AxisTwoPoint:
		for i, field := range []string{"p1", "p2"} {
			lit := dr.str(field)
			if dr.err != nil {
				break
			}
			ref, err := ParseRef(lit)
			if err != nil || ref.Kind != RefPoint {
				dr.fail(field, "want point literal")
				break
			}
			if i == 0 {
				d.P1 = ref.Point
			} else {
				d.P2 = ref.Point
			}
		}
	case AxisSketchLine:
		d.Sketch = dr.str("sketch")
		d.Entity = dr.str("entity")
	default:
		dr.fail("kind", "unknown axis definition %q", kind)
	}
	if dr.err != nil && r.err == nil {
		dr.err.Field = "definition." + dr.err.Field
		r.err = dr.err
	}
	a.Definition = d
	return a
}

func parseSketch(r *reader) Sketch {
	var s Sketch

	plane := r.sub("plane")
	if plane == nil {
		r.fail("plane", "required")
		return s
	}
	pr := &reader{rec: plane, id: r.id}
	kind := PlaneRefKind(pr.str("kind"))
	ref := pr.str("ref")
	if pr.err != nil {
		if r.err == nil {
			pr.err.Field = "plane." + pr.err.Field
			r.err = pr.err
		}
		return s
	}
	switch kind {
	case PlaneRefFeature:
	case PlaneRefFace:
		r.refShape("plane.ref", ref, RefFace)
	default:
		r.fail("plane.kind", "unknown plane ref kind %q", kind)
	}
	s.Plane = PlaneRef{Kind: kind, Ref: ref}

	data := r.sub("data")
	s.Data = parseSketchData(r, data)
	return s
}

func parseSketchData(r *reader, data map[string]any) SketchData {
	out := SketchData{
		Points:      map[string]SketchPoint{},
		Entities:    map[string]SketchEntity{},
		Constraints: map[string]SketchConstraint{},
	}
	if data == nil {
		return out
	}
	dr := &reader{rec: data, id: r.id}

	points := dr.sub("pointsById")
	for _, pid := range sortedKeys(points) {
		m, ok := points[pid].(map[string]any)
		if !ok {
			r.fail("data.pointsById."+pid, "want mapping")
			return out
		}
		pr := &reader{rec: m, id: r.id}
		p := SketchPoint{
			X:     pr.num("x"),
			Y:     pr.num("y"),
			Fixed: pr.boolOr("fixed", false),
		}
		if att := pr.sub("attachedTo"); att != nil {
			ar := &reader{rec: att, id: r.id}
			a := Attachment{Ref: ar.str("ref"), Param: ar.optNum("param", 0)}
			if a.Param < 0 || a.Param > 1 {
				ar.fail("param", "want value in [0,1], got %v", a.Param)
			}
			if ar.err == nil {
				if ref, err := ParseRef(a.Ref); err != nil {
					ar.fail("ref", "%v", err)
				} else if ref.Kind != RefEdge && ref.Kind != RefVertex {
					ar.fail("ref", "want edge or vertex reference")
				}
			}
			if ar.err != nil && r.err == nil {
				ar.err.Field = fmt.Sprintf("data.pointsById.%s.attachedTo.%s", pid, ar.err.Field)
				r.err = ar.err
			}
			p.AttachedTo = &a
		}
		if pr.err != nil && r.err == nil {
			pr.err.Field = fmt.Sprintf("data.pointsById.%s.%s", pid, pr.err.Field)
			r.err = pr.err
		}
		out.Points[pid] = p
	}

	entities := dr.sub("entitiesById")
	for _, eid := range sortedKeys(entities) {
		m, ok := entities[eid].(map[string]any)
		if !ok {
			r.fail("data.entitiesById."+eid, "want mapping")
			return out
		}
		er := &reader{rec: m, id: r.id}
		e := SketchEntity{
			Kind:         EntityKind(er.str("kind")),
			Construction: er.boolOr("construction", false),
		}
		switch e.Kind {
		case EntityLine:
			e.Start = er.str("start")
			e.End = er.str("end")
		case EntityArc:
			e.Start = er.str("start")
			e.End = er.str("end")
			e.Center = er.str("center")
			e.CCW = er.boolOr("ccw", true)
		case EntityCircle:
			e.Center = er.str("center")
			e.Radius = er.num("radius")
			if er.err == nil && e.Radius <= 0 {
				er.fail("radius", "want positive radius, got %v", e.Radius)
			}
		default:
			er.fail("kind", "unknown entity kind %q", e.Kind)
		}
		// Endpoints must resolve inside the same sketch.
		if er.err == nil {
			for _, pid := range []string{e.Start, e.End, e.Center} {
				if pid == "" {
					continue
				}
				if _, ok := out.Points[pid]; !ok {
					er.fail("kind", "references unknown point %q", pid)
					break
				}
			}
		}
		if er.err != nil && r.err == nil {
			er.err.Field = fmt.Sprintf("data.entitiesById.%s.%s", eid, er.err.Field)
			r.err = er.err
		}
		out.Entities[eid] = e
	}

	constraints := dr.sub("constraintsById")
	for _, cid := range sortedKeys(constraints) {
		m, ok := constraints[cid].(map[string]any)
		if !ok {
			r.fail("data.constraintsById."+cid, "want mapping")
			return out
		}
		cr := &reader{rec: m, id: r.id}
		c := SketchConstraint{
			Kind:   ConstraintKind(cr.str("kind")),
			Points: cr.strList("points"),
			Lines:  cr.strList("lines"),
			Arc:    cr.optStr("arc"),
			Value:  cr.optNum("value", 0),
			TX:     cr.optNum("tx", 0),
			TY:     cr.optNum("ty", 0),
		}
		validateConstraintArity(cr, &c)
		if cr.err == nil {
			for _, pid := range c.Points {
				if _, ok := out.Points[pid]; !ok {
					cr.fail("points", "references unknown point %q", pid)
					break
				}
			}
			for _, lid := range c.Lines {
				if _, ok := out.Entities[lid]; !ok {
					cr.fail("lines", "references unknown entity %q", lid)
					break
				}
			}
			if c.Arc != "" {
				if _, ok := out.Entities[c.Arc]; !ok {
					cr.fail("arc", "references unknown entity %q", c.Arc)
				}
			}
		}
		if cr.err != nil && r.err == nil {
			cr.err.Field = fmt.Sprintf("data.constraintsById.%s.%s", cid, cr.err.Field)
			r.err = cr.err
		}
		out.Constraints[cid] = c
	}

	if dr.err != nil && r.err == nil {
		dr.err.Field = "data." + dr.err.Field
		r.err = dr.err
	}
	return out
}

func validateConstraintArity(cr *reader, c *SketchConstraint) {
	np, nl := len(c.Points), len(c.Lines)
	switch c.Kind {
	case ConstraintCoincident:
		if np != 2 {
			cr.fail("points", "coincident wants 2 points, got %d", np)
		}
	case ConstraintHorizontal, ConstraintVertical:
		if !(np == 2 && nl == 0) && !(np == 0 && nl == 1) {
			cr.fail("points", "%s wants 2 points or 1 line", c.Kind)
		}
	case ConstraintFixed:
		if np != 1 {
			cr.fail("points", "fixed wants 1 point, got %d", np)
		}
	case ConstraintDistance:
		if !(np == 2 && nl == 0) && !(np == 0 && nl == 1) {
			cr.fail("points", "distance wants 2 points or 1 line")
		}
		if c.Value < 0 {
			cr.fail("value", "want non-negative distance, got %v", c.Value)
		}
	case ConstraintAngle:
		if nl != 2 {
			cr.fail("lines", "angle wants 2 lines, got %d", nl)
		}
	case ConstraintParallel, ConstraintPerpendicular, ConstraintEqualLength:
		if nl != 2 {
			cr.fail("lines", "%s wants 2 lines, got %d", c.Kind, nl)
		}
	case ConstraintTangent:
		if nl != 1 || c.Arc == "" {
			cr.fail("lines", "tangent wants 1 line and 1 arc")
		}
	case ConstraintSymmetric:
		if np != 2 || nl != 1 {
			cr.fail("points", "symmetric wants 2 points and 1 axis line")
		}
	default:
		cr.fail("kind", "unknown constraint kind %q", c.Kind)
	}
}

func parseExtrude(r *reader) Extrude {
	e := Extrude{
		Sketch:          r.str("sketch"),
		Distance:        r.optNum("distance", 0),
		Extent:          ExtentKind(r.optStr("extent")),
		ExtentRef:       r.optStr("extentRef"),
		Direction:       Direction(r.optStr("direction")),
		Op:              BodyOp(r.optStr("op")),
		MergeScope:      MergeScope(r.optStr("mergeScope")),
		TargetBodies:    r.strList("targetBodies"),
		ResultBodyName:  r.optStr("resultBodyName"),
		ResultBodyColor: r.optStr("resultBodyColor"),
	}
	if e.Extent == "" {
		e.Extent = ExtentBlind
	}
	if e.Direction == "" {
		e.Direction = DirNormal
	}
	if e.Op == "" {
		e.Op = OpAdd
	}
	if e.MergeScope == "" {
		e.MergeScope = MergeAuto
	}

	switch e.Extent {
	case ExtentBlind:
		if _, ok := r.rec["distance"]; !ok {
			r.fail("distance", "required for blind extent")
		}
	case ExtentThroughAll:
	case ExtentToFace:
		if e.ExtentRef == "" {
			r.fail("extentRef", "required for toFace extent")
		} else {
			r.refShape("extentRef", e.ExtentRef, RefFace)
		}
	case ExtentToVertex:
		if e.ExtentRef == "" {
			r.fail("extentRef", "required for toVertex extent")
		} else {
			r.refShape("extentRef", e.ExtentRef, RefVertex)
		}
	default:
		r.fail("extent", "unknown extent %q", e.Extent)
	}

	validateSweepCommon(r, string(e.Direction), string(e.Op), string(e.MergeScope), e.TargetBodies)
	return e
}

func parseRevolve(r *reader) Revolve {
	v := Revolve{
		Sketch:          r.str("sketch"),
		Axis:            r.str("axis"),
		AngleDeg:        r.num("angle"),
		Op:              BodyOp(r.optStr("op")),
		MergeScope:      MergeScope(r.optStr("mergeScope")),
		TargetBodies:    r.strList("targetBodies"),
		ResultBodyName:  r.optStr("resultBodyName"),
		ResultBodyColor: r.optStr("resultBodyColor"),
	}
	if v.Op == "" {
		v.Op = OpAdd
	}
	if v.MergeScope == "" {
		v.MergeScope = MergeAuto
	}
	if r.err == nil && (v.AngleDeg <= 0 || v.AngleDeg > 360) {
		r.fail("angle", "want angle in (0,360], got %v", v.AngleDeg)
	}
	validateSweepCommon(r, string(DirNormal), string(v.Op), string(v.MergeScope), v.TargetBodies)
	return v
}

func validateSweepCommon(r *reader, dir, op, merge string, targets []string) {
	switch Direction(dir) {
	case DirNormal, DirReverse:
	default:
		r.fail("direction", "unknown direction %q", dir)
	}
	switch BodyOp(op) {
	case OpAdd, OpCut:
	default:
		r.fail("op", "unknown op %q", op)
	}
	switch MergeScope(merge) {
	case MergeAuto, MergeNew, MergeSpecific:
		if MergeScope(merge) == MergeSpecific && len(targets) == 0 {
			r.fail("targetBodies", "required for specific merge scope")
		}
	default:
		r.fail("mergeScope", "unknown merge scope %q", merge)
	}
}

func parseBoolean(r *reader) Boolean {
	b := Boolean{
		Operation: BooleanOp(r.str("operation")),
		Target:    r.str("target"),
		Tool:      r.str("tool"),
	}
	switch b.Operation {
	case BoolUnion, BoolSubtract, BoolIntersect:
	default:
		r.fail("operation", "unknown operation %q", b.Operation)
	}
	if r.err == nil && b.Target == b.Tool {
		r.fail("tool", "target and tool must differ")
	}
	return b
}
