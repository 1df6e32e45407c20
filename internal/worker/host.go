// Package worker is the rebuild domain's host: it owns the document mirror,
// the kernel session and the body registry, consumes control messages from
// the authoring domain, debounces invalidations, and publishes rebuild
// results. Single-threaded by construction; the two domains share nothing
// but messages.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/samwillis/solidtype-core/internal/config"
	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/rebuild"
)

// Exporter is the seam export encoders plug into.
type Exporter interface {
	STL(bodies []*rebuild.BodyEntry, binary bool) ([]byte, error)
	STEP(bodies []*rebuild.BodyEntry, name string) ([]byte, error)
}

// Options configures a host.
type Options struct {
	// Site is the mirror replica's site id.
	Site      string
	Config    *config.Config
	Logger    *zap.Logger
	Transport Transport
	Exporter  Exporter
}

// Host runs the rebuild domain over a transport.
type Host struct {
	cfg       *config.Config
	logger    *zap.Logger
	transport Transport
	exporter  Exporter

	mirror *doc.Document
	orch   *rebuild.Orchestrator

	dirty bool
	last  *rebuild.Result
}

// NewHost wires a rebuild domain around a fresh mirror.
func NewHost(opts Options) *Host {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	site := opts.Site
	if site == "" {
		site = "mirror-" + doc.NewFeatureID()
	}

	h := &Host{
		cfg:       cfg,
		logger:    logger,
		transport: opts.Transport,
		exporter:  opts.Exporter,
		mirror:    doc.New(site, logger.Named("mirror")),
		orch: rebuild.New(rebuild.Options{
			Config: cfg,
			Logger: logger.Named("rebuild"),
		}),
	}

	// One "document changed" edge is all the rebuilder needs. Solver
	// write-backs echoing home must not re-trigger a pass; the fixpoint
	// would still terminate, but the edge is pure noise.
	h.mirror.ObserveDeep("", func(c doc.Change) {
		if c.Origin != "solver" {
			h.dirty = true
		}
	})
	return h
}

// Mirror exposes the worker-side replica (tests and embedding hosts).
func (h *Host) Mirror() *doc.Document { return h.mirror }

// LastResult returns the most recently published rebuild result.
func (h *Host) LastResult() *rebuild.Result { return h.last }

// Run services the transport until the context ends. Invalidations are
// debounced; a burst of edits produces one rebuild, and a new invalidation
// arriving during a pass schedules another instead of aborting it.
func (h *Host) Run(ctx context.Context) error {
	h.logger.Info("rebuild domain started", zap.Int("debounce_ms", h.cfg.DebounceMillis))

	var debounce *time.Timer
	var debounceC <-chan time.Time
	stopTimer := func() {
		if debounce != nil {
			debounce.Stop()
			debounce, debounceC = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-h.transport.Recv():
			if !ok {
				return nil
			}
			h.handle(msg)

		case <-debounceC:
			debounce, debounceC = nil, nil
			h.runRebuild()
		}

		if h.dirty && debounce == nil {
			debounce = time.NewTimer(time.Duration(h.cfg.DebounceMillis) * time.Millisecond)
			debounceC = debounce.C
		}
	}
}

// runRebuild executes one pass and forwards solver write-backs home.
func (h *Host) runRebuild() {
	h.dirty = false
	res := h.orch.Rebuild(h.mirror, &publisher{h: h})
	h.last = res

	if res.SolverUpdate != nil {
		h.send(MsgDocumentUpdate, DocumentUpdatePayload{Update: res.SolverUpdate})
	}
}

func (h *Host) handle(msg Message) {
	switch msg.Type {
	case MsgInitSync:
		var p InitSyncPayload
		if err := msg.Decode(&p); err != nil {
			h.sendError(err.Error())
			return
		}
		for _, u := range p.Updates {
			if err := h.mirror.ApplyUpdate(u); err != nil {
				h.sendError(err.Error())
				return
			}
		}
		sv, err := doc.EncodeStateVector(h.mirror.StateVector())
		if err != nil {
			h.sendError(err.Error())
			return
		}
		h.send(MsgReady, ReadyPayload{StateVector: sv})
		h.dirty = true

	case MsgDocumentUpdate:
		var p DocumentUpdatePayload
		if err := msg.Decode(&p); err != nil {
			h.sendError(err.Error())
			return
		}
		if err := h.mirror.ApplyUpdate(p.Update); err != nil {
			h.sendError(err.Error())
		}

	case MsgPreviewExtrude:
		var p PreviewExtrudePayload
		if err := msg.Decode(&p); err != nil {
			h.sendPreviewError(err.Error())
			return
		}
		mesh, err := h.orch.BuildPreviewExtrude(h.mirror, rebuild.PreviewExtrude{
			SketchID:  p.SketchID,
			Distance:  p.Distance,
			Direction: feature.Direction(p.Direction),
			Op:        feature.BodyOp(p.Op),
		})
		if err != nil {
			h.sendPreviewError(err.Error())
			return
		}
		h.send(MsgPreviewMesh, MeshPayload{FeatureID: "preview:" + p.SketchID, Mesh: mesh})

	case MsgPreviewRevolve:
		var p PreviewRevolvePayload
		if err := msg.Decode(&p); err != nil {
			h.sendPreviewError(err.Error())
			return
		}
		mesh, err := h.orch.BuildPreviewRevolve(h.mirror, rebuild.PreviewRevolve{
			SketchID:     p.SketchID,
			AxisEntityID: p.AxisEntityID,
			AngleDeg:     p.Angle,
			Op:           feature.BodyOp(p.Op),
		})
		if err != nil {
			h.sendPreviewError(err.Error())
			return
		}
		h.send(MsgPreviewMesh, MeshPayload{FeatureID: "preview:" + p.SketchID, Mesh: mesh})

	case MsgClearPreview:
		// Previews are transient viewer state; nothing to tear down here.

	case MsgExportSTL:
		var p ExportSTLPayload
		if len(msg.Payload) > 0 {
			if err := msg.Decode(&p); err != nil {
				h.sendError(err.Error())
				return
			}
		}
		entries, ok := h.exportEntries()
		if !ok {
			return
		}
		data, err := h.exporter.STL(entries, p.Binary)
		if err != nil {
			h.sendError(err.Error())
			return
		}
		h.send(MsgSTLExported, ExportedPayload{Name: p.Name, Data: data})

	case MsgExportSTEP:
		var p ExportSTEPPayload
		if len(msg.Payload) > 0 {
			if err := msg.Decode(&p); err != nil {
				h.sendError(err.Error())
				return
			}
		}
		entries, ok := h.exportEntries()
		if !ok {
			return
		}
		data, err := h.exporter.STEP(entries, p.Name)
		if err != nil {
			h.sendError(err.Error())
			return
		}
		h.send(MsgSTEPExported, ExportedPayload{Name: p.Name, Data: data})

	case MsgExportJSON:
		data, err := h.mirror.ExportJSON()
		if err != nil {
			h.sendError(err.Error())
			return
		}
		h.send(MsgJSONExported, JSONExportedPayload{Content: string(data)})

	default:
		h.sendError("unknown message type " + string(msg.Type))
	}
}

// exportEntries returns the current body set, rebuilding first if no pass has
// published yet.
func (h *Host) exportEntries() ([]*rebuild.BodyEntry, bool) {
	if h.exporter == nil {
		h.sendError("no exporter configured")
		return nil, false
	}
	if h.last == nil {
		h.runRebuild()
	}
	return h.last.Registry.List(), true
}

func (h *Host) send(t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		h.logger.Error("encode message", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := h.transport.Send(msg); err != nil {
		h.logger.Warn("send failed", zap.String("type", string(t)), zap.Error(err))
	}
}

func (h *Host) sendError(message string) {
	h.send(MsgError, ErrorPayload{Message: message})
}

func (h *Host) sendPreviewError(message string) {
	h.send(MsgPreviewError, ErrorPayload{Message: message})
}

// publisher forwards orchestrator emissions onto the transport, preserving
// their order: rebuild-start, sketch-solved*, rebuild-complete, mesh*.
type publisher struct {
	h *Host
}

func (p *publisher) RebuildStart() {
	p.h.send(MsgRebuildStart, nil)
}

func (p *publisher) SketchSolved(s *rebuild.SolvedSketch) {
	p.h.send(MsgSketchSolved, s)
}

func (p *publisher) RebuildComplete(r *rebuild.Result) {
	p.h.send(MsgRebuildComplete, RebuildCompletePayload{
		Bodies:   r.Bodies,
		Status:   r.Status,
		Errors:   r.Errors,
		RefIndex: r.RefIndex,
	})
}

func (p *publisher) Mesh(featureID string, mesh *kernel.Mesh, color string) {
	p.h.send(MsgMesh, MeshPayload{FeatureID: featureID, Mesh: mesh, Color: color})
}
