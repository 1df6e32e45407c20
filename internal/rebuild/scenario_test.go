package rebuild

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/geom"
	"github.com/samwillis/solidtype-core/internal/kernel"
)

// capture collects everything a rebuild publishes, in order.
type capture struct {
	starts    int
	sketches  []*SolvedSketch
	completes []*Result
	meshes    []capturedMesh
}

type capturedMesh struct {
	feature string
	mesh    *kernel.Mesh
	color   string
}

func (c *capture) RebuildStart()                { c.starts++ }
func (c *capture) SketchSolved(s *SolvedSketch) { c.sketches = append(c.sketches, s) }
func (c *capture) RebuildComplete(r *Result)    { c.completes = append(c.completes, r) }
func (c *capture) Mesh(f string, m *kernel.Mesh, color string) {
	c.meshes = append(c.meshes, capturedMesh{feature: f, mesh: m, color: color})
}

func runRebuild(t *testing.T, d *doc.Document) (*Result, *capture) {
	t.Helper()
	cap := &capture{}
	result := New(Options{}).Rebuild(d, cap)
	require.Len(t, cap.completes, 1, "exactly one rebuild-complete per pass")
	return result, cap
}

func standardDoc(t *testing.T) (*doc.Document, [4]string) {
	t.Helper()
	return doc.NewStandard("test", nil)
}

func rectSketchRecord(id, planeID string) map[string]any {
	return map[string]any{
		"id": id, "type": "sketch", "name": "Sketch 1",
		"suppressed": false, "visible": true,
		"plane": map[string]any{"kind": "planeFeatureId", "ref": planeID},
		"data": map[string]any{
			"pointsById": map[string]any{
				"p1": map[string]any{"x": 0.0, "y": 0.0},
				"p2": map[string]any{"x": 10.0, "y": 0.0},
				"p3": map[string]any{"x": 10.0, "y": 5.0},
				"p4": map[string]any{"x": 0.0, "y": 5.0},
			},
			"entitiesById": map[string]any{
				"e1": map[string]any{"kind": "line", "start": "p1", "end": "p2"},
				"e2": map[string]any{"kind": "line", "start": "p2", "end": "p3"},
				"e3": map[string]any{"kind": "line", "start": "p3", "end": "p4"},
				"e4": map[string]any{"kind": "line", "start": "p4", "end": "p1"},
			},
		},
	}
}

func circleSketchRecord(id string, plane map[string]any, cx, cy, r float64, attach map[string]any) map[string]any {
	center := map[string]any{"x": cx, "y": cy}
	if attach != nil {
		center["attachedTo"] = attach
	}
	return map[string]any{
		"id": id, "type": "sketch", "name": "Sketch 2",
		"suppressed": false, "visible": true,
		"plane": plane,
		"data": map[string]any{
			"pointsById": map[string]any{
				"pc": center,
			},
			"entitiesById": map[string]any{
				"e1": map[string]any{"kind": "circle", "center": "pc", "radius": r},
			},
		},
	}
}

func extrudeRecord(id, sketchID string, overrides map[string]any) map[string]any {
	rec := map[string]any{
		"id": id, "type": "extrude", "name": "Extrude",
		"suppressed": false, "visible": true,
		"sketch": sketchID, "distance": 3.0, "extent": "blind",
		"direction": "normal", "op": "add", "mergeScope": "auto",
	}
	for k, v := range overrides {
		rec[k] = v
	}
	return rec
}

func featurePlaneRef(planeID string) map[string]any {
	return map[string]any{"kind": "planeFeatureId", "ref": planeID}
}

// s1Doc is the rectangle-extrude document: origin, datums, one sketch on xy,
// one blind extrude.
func s1Doc(t *testing.T) (*doc.Document, map[string]string) {
	d, ids := standardDoc(t)
	xy := ids[1]
	sketchID := doc.NewFeatureID()
	extrudeID := doc.NewFeatureID()
	d.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(sketchID, rectSketchRecord(sketchID, xy))
		tx.PutFeature(extrudeID, extrudeRecord(extrudeID, sketchID, nil))
	})
	return d, map[string]string{
		"xy": xy, "sketch1": sketchID, "extrude1": extrudeID,
	}
}

// s2Doc adds the through-all circular cut to s1.
func s2Doc(t *testing.T) (*doc.Document, map[string]string) {
	d, ids := s1Doc(t)
	sketch2 := doc.NewFeatureID()
	extrude2 := doc.NewFeatureID()
	d.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(sketch2, circleSketchRecord(sketch2, featurePlaneRef(ids["xy"]), 5, 2.5, 1, nil))
		tx.PutFeature(extrude2, extrudeRecord(extrude2, sketch2, map[string]any{
			"extent": "throughAll", "op": "cut",
		}))
	})
	ids["sketch2"] = sketch2
	ids["extrude2"] = extrude2
	return d, ids
}

func TestScenario_RectangleExtrude(t *testing.T) {
	d, ids := s1Doc(t)

	result, cap := runRebuild(t, d)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Bodies, 1)
	assert.Equal(t, 6, result.Bodies[0].FaceCount)
	assert.Equal(t, ids["extrude1"], result.Bodies[0].Feature)
	assert.Equal(t, "#6699cc", result.Bodies[0].Color, "first palette entry")

	for _, fid := range d.FeatureOrder() {
		assert.Equal(t, StatusComputed, result.Status[fid], "feature %s", fid)
	}

	require.Len(t, cap.meshes, 1)
	assert.Equal(t, 1, cap.starts)
	assert.NotEmpty(t, cap.meshes[0].mesh.Positions)
}

func TestScenario_CutThrough(t *testing.T) {
	d, _ := s2Doc(t)

	result, _ := runRebuild(t, d)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Bodies, 1)
	assert.Equal(t, 7, result.Bodies[0].FaceCount,
		"top and bottom keep identity, the hole adds one cylindrical face")
}

func TestScenario_GatedRebuild(t *testing.T) {
	d, ids := s1Doc(t)
	d.Transact("user", func(tx *doc.Tx) { tx.SetRebuildGate(ids["sketch1"]) })

	result, _ := runRebuild(t, d)

	assert.Equal(t, StatusComputed, result.Status[ids["sketch1"]])
	assert.Equal(t, StatusGated, result.Status[ids["extrude1"]])
	assert.Empty(t, result.Bodies)
}

func TestScenario_SuppressedUpstream(t *testing.T) {
	d, ids := s2Doc(t)
	d.Transact("user", func(tx *doc.Tx) {
		tx.SetFeatureField(ids["extrude1"], "suppressed", true)
	})

	result, _ := runRebuild(t, d)

	assert.Equal(t, StatusComputed, result.Status[ids["sketch1"]])
	assert.Equal(t, StatusSuppressed, result.Status[ids["extrude1"]])
	assert.Equal(t, StatusComputed, result.Status[ids["sketch2"]])
	assert.Equal(t, StatusError, result.Status[ids["extrude2"]])
	assert.Empty(t, result.Bodies)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeBuildError, result.Errors[0].Code)
	assert.Equal(t, ids["extrude2"], result.Errors[0].FeatureID)
}

func TestScenario_OverConstrainedSketch(t *testing.T) {
	d, ids := standardDoc(t)
	sketchID := doc.NewFeatureID()
	extrudeID := doc.NewFeatureID()

	rec := rectSketchRecord(sketchID, ids[1])
	data := rec["data"].(map[string]any)
	points := data["pointsById"].(map[string]any)
	points["p1"].(map[string]any)["fixed"] = true
	points["p2"].(map[string]any)["fixed"] = true
	data["constraintsById"] = map[string]any{
		"c1": map[string]any{"kind": "distance", "lines": []any{"e1"}, "value": 4.0},
	}

	d.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(sketchID, rec)
		tx.PutFeature(extrudeID, extrudeRecord(extrudeID, sketchID, nil))
	})

	result, cap := runRebuild(t, d)

	require.Len(t, cap.sketches, 1)
	assert.Equal(t, "overConstrained", string(cap.sketches[0].Status))
	assert.True(t, cap.sketches[0].DOF.IsOverConstrained)
	assert.Equal(t, StatusComputed, result.Status[sketchID],
		"solver outcomes are status, not errors")
	assert.Equal(t, StatusComputed, result.Status[extrudeID],
		"a closed profile still extrudes")
	assert.Len(t, result.Bodies, 1)
}

func TestScenario_ExternalAttachment(t *testing.T) {
	build := func(height float64) (*doc.Document, map[string]string) {
		d, ids := standardDoc(t)
		sketch1 := doc.NewFeatureID()
		extrude1 := doc.NewFeatureID()
		sketch2 := doc.NewFeatureID()
		extrude2 := doc.NewFeatureID()
		d.Transact("user", func(tx *doc.Tx) {
			tx.PutFeature(sketch1, rectSketchRecord(sketch1, ids[1]))
			tx.PutFeature(extrude1, extrudeRecord(extrude1, sketch1, map[string]any{
				"distance": height,
			}))
			// Sketch on the box top face, its circle centered on the
			// midpoint of a top edge.
			tx.PutFeature(sketch2, circleSketchRecord(sketch2,
				map[string]any{"kind": "faceRef", "ref": "face:" + extrude1 + ":top"},
				0, 0, 1,
				map[string]any{"ref": "edge:" + extrude1 + ":0", "param": 0.5}))
			tx.PutFeature(extrude2, extrudeRecord(extrude2, sketch2, map[string]any{
				"extent": "throughAll", "op": "cut",
			}))
		})
		return d, map[string]string{"sketch2": sketch2}
	}

	centerWorld := func(cap *capture, sketchID string) geom.Vec3 {
		for _, s := range cap.sketches {
			if s.SketchID != sketchID {
				continue
			}
			p := s.Points["pc"]
			m := s.PlaneTransform
			origin := geom.V3(m[12], m[13], m[14])
			x := geom.V3(m[0], m[1], m[2])
			y := geom.V3(m[4], m[5], m[6])
			return origin.Add(x.Scale(p[0])).Add(y.Scale(p[1]))
		}
		return geom.Vec3{}
	}

	d3, ids3 := build(3)
	result3, cap3 := runRebuild(t, d3)
	require.Empty(t, result3.Errors)
	c3 := centerWorld(cap3, ids3["sketch2"])
	assert.InDelta(t, 5, c3.X, 1e-6)
	assert.InDelta(t, 0, c3.Y, 1e-6)
	assert.InDelta(t, 3, c3.Z, 1e-6)

	// Re-run with the base extrude grown 3 -> 5: the cut stays anchored to
	// the edge midpoint, which rode up with the top face.
	d5, ids5 := build(5)
	result5, cap5 := runRebuild(t, d5)
	require.Empty(t, result5.Errors)
	c5 := centerWorld(cap5, ids5["sketch2"])
	assert.InDelta(t, 5, c5.X, 1e-6)
	assert.InDelta(t, 0, c5.Y, 1e-6)
	assert.InDelta(t, 5, c5.Z, 1e-6)

	// Volume check: a half-cylinder notch through the full height.
	for _, tc := range []struct {
		result *Result
		h      float64
	}{{result3, 3}, {result5, 5}} {
		require.Len(t, tc.result.Bodies, 1)
		entry := tc.result.Registry.List()[0]
		want := 50*tc.h - math.Pi/2*tc.h
		assert.InDelta(t, want, entry.Body.Volume(), want*0.02)
	}
}

func TestMergePolicy(t *testing.T) {
	overlapRecord := func(id, planeID string) map[string]any {
		rec := rectSketchRecord(id, planeID)
		points := rec["data"].(map[string]any)["pointsById"].(map[string]any)
		points["p1"] = map[string]any{"x": 5.0, "y": 0.0}
		points["p2"] = map[string]any{"x": 15.0, "y": 0.0}
		points["p3"] = map[string]any{"x": 15.0, "y": 5.0}
		points["p4"] = map[string]any{"x": 5.0, "y": 5.0}
		return rec
	}

	testCases := []struct {
		name       string
		overrides  func(firstExtrude string) map[string]any
		wantBodies int
	}{
		{"auto merges overlapping volumes", func(string) map[string]any {
			return map[string]any{"mergeScope": "auto"}
		}, 1},
		{"new always yields a fresh body", func(string) map[string]any {
			return map[string]any{"mergeScope": "new"}
		}, 2},
		{"specific unions into its target", func(first string) map[string]any {
			return map[string]any{"mergeScope": "specific", "targetBodies": []any{first}}
		}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, ids := s1Doc(t)
			sketch2 := doc.NewFeatureID()
			extrude2 := doc.NewFeatureID()
			d.Transact("user", func(tx *doc.Tx) {
				tx.PutFeature(sketch2, overlapRecord(sketch2, ids["xy"]))
				tx.PutFeature(extrude2, extrudeRecord(extrude2, sketch2, tc.overrides(ids["extrude1"])))
			})

			result, _ := runRebuild(t, d)

			assert.Empty(t, result.Errors)
			assert.Len(t, result.Bodies, tc.wantBodies)
		})
	}
}

func TestMergeNew_DisjointKeepsPaletteCycling(t *testing.T) {
	d, ids := s1Doc(t)
	sketch2 := doc.NewFeatureID()
	extrude2 := doc.NewFeatureID()
	rec := rectSketchRecord(sketch2, ids["xy"])
	points := rec["data"].(map[string]any)["pointsById"].(map[string]any)
	points["p1"] = map[string]any{"x": 20.0, "y": 0.0}
	points["p2"] = map[string]any{"x": 30.0, "y": 0.0}
	points["p3"] = map[string]any{"x": 30.0, "y": 5.0}
	points["p4"] = map[string]any{"x": 20.0, "y": 5.0}
	d.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(sketch2, rec)
		tx.PutFeature(extrude2, extrudeRecord(extrude2, sketch2, map[string]any{
			"mergeScope": "new",
		}))
	})

	result, _ := runRebuild(t, d)

	require.Len(t, result.Bodies, 2)
	assert.Equal(t, "#6699cc", result.Bodies[0].Color)
	assert.Equal(t, "#99cc99", result.Bodies[1].Color)
}

func TestRebuild_Determinism(t *testing.T) {
	d, _ := s2Doc(t)

	r1, c1 := runRebuild(t, d)
	r2, c2 := runRebuild(t, d)

	assert.Equal(t, r1.Status, r2.Status)
	assert.Equal(t, r1.Bodies, r2.Bodies)
	assert.Equal(t, r1.RefIndex, r2.RefIndex)
	require.Equal(t, len(c1.meshes), len(c2.meshes))
	for i := range c1.meshes {
		assert.Equal(t, c1.meshes[i].mesh.Positions, c2.meshes[i].mesh.Positions,
			"mesh buffers must be bit-identical")
	}
}

func TestRebuild_DeterminismAcrossReplicas(t *testing.T) {
	a, _ := s2Doc(t)
	b := doc.New("replica", nil)
	for _, u := range a.DiffSince(doc.StateVector{}) {
		require.NoError(t, b.ApplyUpdate(u))
	}

	ra, _ := runRebuild(t, a)
	rb, _ := runRebuild(t, b)

	assert.Equal(t, ra.Status, rb.Status)
	assert.Equal(t, ra.Bodies, rb.Bodies)
}

func TestRebuild_SolverFixpoint(t *testing.T) {
	d, ids := standardDoc(t)
	sketchID := doc.NewFeatureID()
	rec := rectSketchRecord(sketchID, ids[1])
	// Skew one point so the horizontal constraint moves it on first solve.
	rec["data"].(map[string]any)["pointsById"].(map[string]any)["p2"] =
		map[string]any{"x": 10.0, "y": 0.5}
	rec["data"].(map[string]any)["constraintsById"] = map[string]any{
		"c1": map[string]any{"kind": "horizontal", "points": []any{"p1", "p2"}},
	}
	d.Transact("user", func(tx *doc.Tx) { tx.PutFeature(sketchID, rec) })

	r1, _ := runRebuild(t, d)
	assert.NotNil(t, r1.SolverUpdate, "first pass moves the skewed point")

	r2, _ := runRebuild(t, d)
	assert.Nil(t, r2.SolverUpdate, "a fixpoint rebuild writes nothing back")
}

func TestRebuild_SuppressionEquivalence(t *testing.T) {
	// Suppressing a feature produces the same outputs as removing it plus
	// every downstream feature referencing it.
	dSuppressed, ids := s2Doc(t)
	dSuppressed.Transact("user", func(tx *doc.Tx) {
		tx.SetFeatureField(ids["extrude2"], "suppressed", true)
	})

	dRemoved, ids2 := s1Doc(t)
	sketch2 := doc.NewFeatureID()
	dRemoved.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(sketch2, circleSketchRecord(sketch2, featurePlaneRef(ids2["xy"]), 5, 2.5, 1, nil))
	})

	rs, _ := runRebuild(t, dSuppressed)
	rr, _ := runRebuild(t, dRemoved)

	require.Len(t, rs.Bodies, 1)
	require.Len(t, rr.Bodies, 1)
	assert.Equal(t, rs.Bodies[0].FaceCount, rr.Bodies[0].FaceCount)
	assert.Empty(t, rs.Errors)
	assert.Empty(t, rr.Errors)
}

func TestRebuild_ErrorDoesNotTruncate(t *testing.T) {
	// A failing middle feature leaves independent later features computed.
	d, ids := s1Doc(t)
	badExtrude := doc.NewFeatureID()
	sketch3 := doc.NewFeatureID()
	extrude3 := doc.NewFeatureID()
	rec := rectSketchRecord(sketch3, ids["xy"])
	points := rec["data"].(map[string]any)["pointsById"].(map[string]any)
	points["p1"] = map[string]any{"x": 20.0, "y": 0.0}
	points["p2"] = map[string]any{"x": 30.0, "y": 0.0}
	points["p3"] = map[string]any{"x": 30.0, "y": 5.0}
	points["p4"] = map[string]any{"x": 20.0, "y": 5.0}
	d.Transact("user", func(tx *doc.Tx) {
		tx.PutFeature(badExtrude, extrudeRecord(badExtrude, "missing-sketch", nil))
		tx.PutFeature(sketch3, rec)
		tx.PutFeature(extrude3, extrudeRecord(extrude3, sketch3, nil))
	})

	result, _ := runRebuild(t, d)

	assert.Equal(t, StatusError, result.Status[badExtrude])
	assert.Equal(t, StatusComputed, result.Status[extrude3])
	assert.Len(t, result.Bodies, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeSketchNotFound, result.Errors[0].Code)
}

func TestRefIndex_RoleSelectors(t *testing.T) {
	d, ids := s1Doc(t)

	result, _ := runRebuild(t, d)

	loc, ok := result.RefIndex.Lookup("face:" + ids["extrude1"] + ":top")
	require.True(t, ok)
	entry, face, ok := result.RefIndex.ResolveFace(result.Registry, "face:"+ids["extrude1"]+":top")
	require.True(t, ok)
	assert.Equal(t, ids["extrude1"], entry.Feature)
	assert.Equal(t, kernel.RoleTop, face.Role)
	assert.Equal(t, loc.FaceIndex, face.Index)

	// Numeric selectors resolve the same face table.
	_, ok = result.RefIndex.Lookup("face:" + ids["extrude1"] + ":0")
	assert.True(t, ok)

	// Deleted features miss.
	_, ok = result.RefIndex.Lookup("face:nonexistent:top")
	assert.False(t, ok)
}
