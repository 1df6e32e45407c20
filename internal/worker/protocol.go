package worker

import (
	"encoding/json"
	"fmt"

	"github.com/samwillis/solidtype-core/internal/kernel"
	"github.com/samwillis/solidtype-core/internal/rebuild"
)

// MessageType enumerates the control and result messages between the
// authoring domain and the rebuild domain.
type MessageType string

// Control messages (authoring -> rebuild).
const (
	MsgInitSync       MessageType = "init-sync"
	MsgDocumentUpdate MessageType = "document-update"
	MsgPreviewExtrude MessageType = "preview-extrude"
	MsgPreviewRevolve MessageType = "preview-revolve"
	MsgClearPreview   MessageType = "clear-preview"
	MsgExportSTL      MessageType = "export-stl"
	MsgExportSTEP     MessageType = "export-step"
	MsgExportJSON     MessageType = "export-json"
)

// Result messages (rebuild -> authoring). document-update also flows this
// way, carrying solver write-backs.
const (
	MsgReady           MessageType = "ready"
	MsgRebuildStart    MessageType = "rebuild-start"
	MsgRebuildComplete MessageType = "rebuild-complete"
	MsgMesh            MessageType = "mesh"
	MsgSketchSolved    MessageType = "sketch-solved"
	MsgPreviewMesh     MessageType = "preview-mesh"
	MsgPreviewError    MessageType = "preview-error"
	MsgError           MessageType = "error"
	MsgSTLExported     MessageType = "stl-exported"
	MsgSTEPExported    MessageType = "step-exported"
	MsgJSONExported    MessageType = "json-exported"
)

// Message is the JSON envelope both transports speak.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage wraps a typed payload.
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: data}, nil
}

// Decode unpacks the payload into a typed struct.
func (m Message) Decode(into any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, into); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// InitSyncPayload carries the authoring replica's update backlog plus its
// state vector, so the mirror can both catch up and report what it holds.
type InitSyncPayload struct {
	StateVector json.RawMessage `json:"stateVector,omitempty"`
	Updates     [][]byte        `json:"updates"`
}

// DocumentUpdatePayload carries one opaque document update, either way.
type DocumentUpdatePayload struct {
	Update []byte `json:"update"`
}

// ReadyPayload announces the mirror's state vector after initial sync.
type ReadyPayload struct {
	StateVector json.RawMessage `json:"stateVector"`
}

// PreviewExtrudePayload requests a transient extrude ghost.
type PreviewExtrudePayload struct {
	SketchID  string  `json:"sketchId"`
	Distance  float64 `json:"distance"`
	Direction string  `json:"direction"`
	Op        string  `json:"op"`
}

// PreviewRevolvePayload requests a transient revolve ghost.
type PreviewRevolvePayload struct {
	SketchID     string  `json:"sketchId"`
	AxisEntityID string  `json:"axisEntityId"`
	Angle        float64 `json:"angle"`
	Op           string  `json:"op"`
}

// MeshPayload carries one body tessellation. The mesh buffers are freshly
// allocated per publish and ownership moves with the message; the rebuild
// domain never touches them again.
type MeshPayload struct {
	FeatureID string       `json:"featureId"`
	Mesh      *kernel.Mesh `json:"mesh"`
	Color     string       `json:"color"`
}

// RebuildCompletePayload is the rebuild.Result wire shape.
type RebuildCompletePayload struct {
	Bodies   []rebuild.BodySummary     `json:"bodies"`
	Status   map[string]rebuild.Status `json:"status"`
	Errors   []*rebuild.Error          `json:"errors"`
	RefIndex rebuild.RefIndex          `json:"refIndex"`
}

// ErrorPayload carries a human-readable failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ExportSTLPayload requests an STL export.
type ExportSTLPayload struct {
	Binary bool   `json:"binary"`
	Name   string `json:"name,omitempty"`
}

// ExportSTEPPayload requests a STEP export.
type ExportSTEPPayload struct {
	Name string `json:"name,omitempty"`
}

// ExportedPayload returns an encoded export buffer.
type ExportedPayload struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data"`
}

// JSONExportedPayload returns the loss-less document snapshot.
type JSONExportedPayload struct {
	Content string `json:"content"`
}
