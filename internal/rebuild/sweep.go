package rebuild

import (
	"errors"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/numeric"
	"github.com/samwillis/solidtype-core/internal/sketch"
)

func profileError(featureID string, err error) *Error {
	switch {
	case errors.Is(err, sketch.ErrSelfIntersecting):
		return failf(featureID, CodeSelfIntersecting, "%v", err)
	default:
		return failf(featureID, CodeNoClosedProfile, "%v", err)
	}
}

// interpretExtrude sweeps the referenced sketch's profile along its plane
// normal and applies the cut or merge policy.
func (s *session) interpretExtrude(f *feature.Feature) *Error {
	def := f.Def.(feature.Extrude)

	sk, ok := s.sketches[def.Sketch]
	if !ok {
		return failf(f.ID, CodeSketchNotFound, "sketch %s is not available", def.Sketch)
	}
	profile, perr := sk.ToProfile(nil)
	if perr != nil {
		return profileError(f.ID, perr)
	}

	dist, derr := s.extentDistance(f.ID, def, sk.Plane)
	if derr != nil {
		return derr
	}

	if def.Op == feature.OpCut {
		basePlane := sk.Plane
		d := dist
		if def.Extent == feature.ExtentThroughAll {
			// Overshoot on both sides so the tool fully spans every body and
			// never leaves a coplanar sliver at the sketch plane.
			span := s.o.cfg.ThroughAllDistance
			sign := 1.0
			if dist < 0 {
				sign = -1
			}
			basePlane = sk.Plane.Offset(-sign * span)
			d = sign * 2 * span
		}
		tool, kerr := s.o.kernel.Extrude(profile, basePlane, d)
		if kerr != nil {
			return failf(f.ID, CodeBuildError, "%v", kerr)
		}
		return s.applyCut(f.ID, tool)
	}

	body, kerr := s.o.kernel.Extrude(profile, sk.Plane, dist)
	if kerr != nil {
		return failf(f.ID, CodeBuildError, "%v", kerr)
	}
	return s.applyAdd(f.ID, f.Name, body, def.MergeScope, def.TargetBodies,
		def.ResultBodyName, def.ResultBodyColor)
}

// extentDistance computes the signed sweep distance in internal units.
func (s *session) extentDistance(featureID string, def feature.Extrude, pl kernel.Plane) (float64, *Error) {
	sign := 1.0
	if def.Direction == feature.DirReverse {
		sign = -1
	}

	switch def.Extent {
	case feature.ExtentBlind:
		return sign * def.Distance * s.scale, nil

	case feature.ExtentThroughAll:
		return sign * s.o.cfg.ThroughAllDistance, nil

	case feature.ExtentToFace:
		ref, err := feature.ParseRef(def.ExtentRef)
		if err != nil {
			return 0, failf(featureID, CodeInvalidReference, "%v", err)
		}
		entry, ok := s.reg.GetByFeature(ref.Feature)
		if !ok {
			return 0, failf(featureID, CodeInvalidReference, "no body produced by feature %s", ref.Feature)
		}
		face, ok := ResolveFaceOn(entry, ref)
		if !ok {
			return 0, failf(featureID, CodeInvalidReference, "face %s does not exist", def.ExtentRef)
		}
		d := face.Centroid().Sub(pl.Origin).Dot(pl.Normal)
		return d, nil

	case feature.ExtentToVertex:
		ref, err := feature.ParseRef(def.ExtentRef)
		if err != nil {
			return sign * def.Distance * s.scale, nil // fall back to blind
		}
		entry, ok := s.reg.GetByFeature(ref.Feature)
		if !ok {
			return sign * def.Distance * s.scale, nil
		}
		verts := entry.Body.Vertices()
		if !ref.HasIndex || ref.Index >= len(verts) {
			return sign * def.Distance * s.scale, nil
		}
		return verts[ref.Index].Sub(pl.Origin).Dot(pl.Normal), nil

	default:
		return 0, failf(featureID, CodeBuildError, "unknown extent %q", def.Extent)
	}
}

// interpretRevolve sweeps the profile about one of the sketch's own lines.
// The axis line is construction geometry and never part of the profile.
func (s *session) interpretRevolve(f *feature.Feature) *Error {
	def := f.Def.(feature.Revolve)

	sk, ok := s.sketches[def.Sketch]
	if !ok {
		return failf(f.ID, CodeSketchNotFound, "sketch %s is not available", def.Sketch)
	}
	kind, ok := sk.Entity(def.Axis)
	if !ok || kind != feature.EntityLine {
		return failf(f.ID, CodeInvalidReference, "axis entity %s is not a sketch line", def.Axis)
	}
	sk.MarkConstruction(def.Axis)

	profile, perr := sk.ToProfile(nil)
	if perr != nil {
		return profileError(f.ID, perr)
	}

	startID, endID, _ := sk.EntityEndpoints(def.Axis)
	a, _ := sk.LiftPoint(startID)
	b, _ := sk.LiftPoint(endID)
	dir := b.Sub(a)
	if dir.Len() == 0 {
		return failf(f.ID, CodeBuildError, "axis line %s is degenerate", def.Axis)
	}

	body, kerr := s.o.kernel.Revolve(profile, sk.Plane, a, dir.Normalize(), numeric.Radians(def.AngleDeg))
	if kerr != nil {
		return failf(f.ID, CodeBuildError, "%v", kerr)
	}

	if def.Op == feature.OpCut {
		return s.applyCut(f.ID, body)
	}
	return s.applyAdd(f.ID, f.Name, body, def.MergeScope, def.TargetBodies,
		def.ResultBodyName, def.ResultBodyColor)
}

// applyCut subtracts the tool from every existing body in insertion order,
// consuming the tool. The registry is untouched unless the whole operation
// succeeds.
func (s *session) applyCut(featureID string, tool *kernel.Body) *Error {
	if s.reg.Len() == 0 {
		return failf(featureID, CodeBuildError, "nothing to cut")
	}

	work := s.reg.Clone()
	var emptied []string
	for _, entry := range work.List() {
		res, err := s.o.kernel.Subtract(entry.Body, tool)
		if err != nil {
			return failf(featureID, CodeBuildError, "%v", err)
		}
		if res.FaceCount() == 0 {
			emptied = append(emptied, entry.ID)
			continue
		}
		entry.Body = res
	}
	for _, id := range emptied {
		work.Remove(id)
	}
	s.reg.ReplaceWith(work)
	return nil
}

// applyAdd merges a new volume into the registry under the feature's merge
// policy. The registry is untouched unless the whole operation succeeds.
func (s *session) applyAdd(featureID, featureName string, body *kernel.Body, scope feature.MergeScope, targets []string, name, color string) *Error {
	if name == "" {
		name = featureName
	}

	newEntry := func(b *kernel.Body) *BodyEntry {
		c := color
		if c == "" {
			palette := s.o.cfg.Palette
			c = palette[s.bodySeq%len(palette)]
		}
		s.bodySeq++
		return &BodyEntry{ID: featureID, Feature: featureID, Name: name, Color: c, Body: b}
	}

	switch scope {
	case feature.MergeNew:
		s.reg.Add(newEntry(body))
		return nil

	case feature.MergeSpecific:
		work := s.reg.Clone()
		merged := body
		var first *BodyEntry
		for _, target := range targets {
			entry, ok := work.GetByFeature(target)
			if !ok {
				return failf(featureID, CodeInvalidReference, "target body %s does not exist", target)
			}
			res, err := s.o.kernel.Union(entry.Body, merged)
			if err != nil {
				return failf(featureID, CodeBuildError, "%v", err)
			}
			merged = res
			if first == nil {
				first = entry
			} else {
				work.Remove(entry.ID)
			}
		}
		if first == nil {
			return failf(featureID, CodeInvalidReference, "no target bodies named")
		}
		first.Body = merged
		s.reg.ReplaceWith(work)
		return nil

	default: // auto
		work := s.reg.Clone()
		merged := body
		var first *BodyEntry
		for _, entry := range work.List() {
			if !s.o.kernel.SharesVolume(entry.Body, body) {
				continue
			}
			res, err := s.o.kernel.Union(entry.Body, merged)
			if err != nil {
				return failf(featureID, CodeBuildError, "%v", err)
			}
			merged = res
			if first == nil {
				first = entry
			} else {
				work.Remove(entry.ID)
			}
		}
		if first == nil {
			s.reg.Add(newEntry(body))
			return nil
		}
		first.Body = merged
		s.reg.ReplaceWith(work)
		return nil
	}
}

// interpretBoolean combines two prior bodies; the target entry keeps its
// identity with the new volume and the tool entry is consumed.
func (s *session) interpretBoolean(f *feature.Feature) *Error {
	def := f.Def.(feature.Boolean)

	target, ok := s.reg.GetByFeature(def.Target)
	if !ok {
		return failf(f.ID, CodeInvalidReference, "target body %s does not exist", def.Target)
	}
	tool, ok := s.reg.GetByFeature(def.Tool)
	if !ok {
		return failf(f.ID, CodeInvalidReference, "tool body %s does not exist", def.Tool)
	}

	var (
		res *kernel.Body
		err error
	)
	switch def.Operation {
	case feature.BoolUnion:
		res, err = s.o.kernel.Union(target.Body, tool.Body)
	case feature.BoolSubtract:
		res, err = s.o.kernel.Subtract(target.Body, tool.Body)
	case feature.BoolIntersect:
		res, err = s.o.kernel.Intersect(target.Body, tool.Body)
	default:
		return failf(f.ID, CodeBuildError, "unknown operation %q", def.Operation)
	}
	if err != nil {
		return failf(f.ID, CodeBuildError, "%v", err)
	}
	if res.FaceCount() == 0 {
		return failf(f.ID, CodeBuildError, "%s left no material", def.Operation)
	}

	work := s.reg.Clone()
	workTarget, _ := work.Get(target.ID)
	workTarget.Body = res
	work.Remove(tool.ID)
	s.reg.ReplaceWith(work)
	return nil
}
