// Package rebuild re-derives the body set from the feature document: a
// topologically-ordered, gate-aware walk over featureOrder that interprets
// each feature, tracks per-feature status, and publishes bodies, meshes and
// the persistent-reference index. Errors never truncate the walk; the gate
// does.
package rebuild

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/samwillis/solidtype-core/internal/config"
	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/numeric"
)

// BodySummary is the published description of one registry entry.
type BodySummary struct {
	ID        string `json:"id"`
	Feature   string `json:"feature"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	FaceCount int    `json:"faceCount"`
}

// Result is everything one rebuild pass publishes, plus the registry for
// follow-up tessellation and the solver write-back update.
type Result struct {
	Bodies   []BodySummary     `json:"bodies"`
	Status   map[string]Status `json:"status"`
	Errors   []*Error          `json:"errors"`
	RefIndex RefIndex          `json:"refIndex"`

	Registry     *Registry `json:"-"`
	SolverUpdate []byte    `json:"-"`
}

// Publisher receives the rebuild's emissions in order: RebuildStart, then any
// SketchSolved, then RebuildComplete, then one Mesh per body.
type Publisher interface {
	RebuildStart()
	SketchSolved(s *SolvedSketch)
	RebuildComplete(r *Result)
	Mesh(featureID string, mesh *kernel.Mesh, color string)
}

// Orchestrator runs rebuild passes. It owns the kernel session; one pass runs
// at a time.
type Orchestrator struct {
	cfg    *config.Config
	ctx    numeric.Context
	kernel kernel.Kernel
	logger *zap.Logger
}

// Options configures an orchestrator. Nil fields get working defaults.
type Options struct {
	Config *config.Config
	Kernel kernel.Kernel
	Logger *zap.Logger
}

// New builds an orchestrator.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ctx := cfg.NumericContext()
	k := opts.Kernel
	if k == nil {
		k = kernel.NewBuiltin(ctx)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, ctx: ctx, kernel: k, logger: logger}
}

// Rebuild walks the document's feature order from scratch and publishes the
// outcome. The document is this domain's mirror; solver write-backs are
// committed to it under the "solver" origin.
func (o *Orchestrator) Rebuild(d *doc.Document, pub Publisher) *Result {
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

	order := d.FeatureOrder()
	gate := d.RebuildGate()

	o.logger.Debug("rebuild pass starting",
		zap.Int("features", len(order)), zap.String("gate", gate))
	if pub != nil {
		pub.RebuildStart()
	}

	gated := false
	for _, fid := range order {
		if gated {
			s.statuses[fid] = StatusGated
			continue
		}

		rec := d.FeatureRecord(fid)
		f, perr := feature.ParseFeature(rec)
		if perr != nil {
			s.statuses[fid] = StatusError
			s.errors = append(s.errors, failf(fid, CodeBuildError, "parse: %v", perr))
		} else if f.Suppressed {
			s.statuses[fid] = StatusSuppressed
		} else if ierr := s.safeInterpret(f, pub); ierr != nil {
			s.statuses[fid] = StatusError
			s.errors = append(s.errors, ierr)
			o.logger.Debug("feature failed",
				zap.String("feature", fid), zap.String("code", string(ierr.Code)))
		} else {
			s.statuses[fid] = StatusComputed
		}

		if fid == gate {
			gated = true
		}
		// Cooperative yield between features; a single feature interprets
		// synchronously end-to-end.
		runtime.Gosched()
	}

	result := &Result{
		Status:   s.statuses,
		Errors:   s.errors,
		RefIndex: BuildRefIndex(s.reg),
		Registry: s.reg,
	}
	if result.Errors == nil {
		result.Errors = []*Error{}
	}
	for _, e := range s.reg.List() {
		result.Bodies = append(result.Bodies, BodySummary{
			ID:        e.ID,
			Feature:   e.Feature,
			Name:      e.Name,
			Color:     e.Color,
			FaceCount: e.Body.FaceCount(),
		})
	}

	// Solver write-backs commit as one tagged transaction so the undo layer
	// and the observers can tell them from user edits.
	if len(s.writebacks) > 0 {
		result.SolverUpdate = d.Transact("solver", func(tx *doc.Tx) {
			for _, w := range s.writebacks {
				tx.SetSketchPoint(w.sketch, w.point, w.x, w.y)
			}
		})
	}

	if pub != nil {
		pub.RebuildComplete(result)
		for _, e := range s.reg.List() {
			pub.Mesh(e.Feature, e.Body.Tessellate(), e.Color)
		}
	}

	o.logger.Debug("rebuild pass complete",
		zap.Int("bodies", s.reg.Len()), zap.Int("errors", len(result.Errors)))
	return result
}

// safeInterpret dispatches one feature, coercing any kernel panic into a
// build error so the walk continues.
func (s *session) safeInterpret(f *feature.Feature, pub Publisher) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = failf(f.ID, CodeBuildError, "unexpected kernel failure: %v", r)
		}
	}()

	switch f.Type {
	case feature.TypeOrigin:
		return nil
	case feature.TypePlane:
		return s.interpretPlane(f)
	case feature.TypeAxis:
		return s.interpretAxis(f)
	case feature.TypeSketch:
		return s.interpretSketch(f, pub)
	case feature.TypeExtrude:
		return s.interpretExtrude(f)
	case feature.TypeRevolve:
		return s.interpretRevolve(f)
	case feature.TypeBoolean:
		return s.interpretBoolean(f)
	default:
		return failf(f.ID, CodeBuildError, "no interpreter for %q", f.Type)
	}
}
