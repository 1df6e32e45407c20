package feature

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samwillis/solidtype-core/internal/geom"
)

// RefKind discriminates reference strings embedded in feature records.
type RefKind string

const (
	RefFace   RefKind = "face"
	RefEdge   RefKind = "edge"
	RefVertex RefKind = "vertex"
	RefPoint  RefKind = "point"
)

// Ref is a parsed reference string.
//
//	face:<featureId>:<selector>    selector: numeric index or role token
//	edge:<featureId>:<edgeIndex>
//	vertex:<featureId>:<vertexIndex>
//	point:<x>,<y>,<z>
type Ref struct {
	Kind    RefKind
	Feature string
	// Selector is the raw third segment for face refs (may be a role token).
	Selector string
	// Index is the numeric selector, valid when HasIndex.
	Index    int
	HasIndex bool
	// Point is the coordinate literal for point refs.
	Point geom.Vec3
}

// ParseRef validates a reference string's shape. Cross-feature validity is
// checked at rebuild time, not here.
func ParseRef(s string) (Ref, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("reference %q: missing kind separator", s)
	}
	switch RefKind(kind) {
	case RefPoint:
		parts := strings.Split(rest, ",")
		if len(parts) != 3 {
			return Ref{}, fmt.Errorf("reference %q: point needs three coordinates", s)
		}
		var coords [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return Ref{}, fmt.Errorf("reference %q: bad coordinate %q", s, p)
			}
			coords[i] = v
		}
		return Ref{Kind: RefPoint, Point: geom.V3(coords[0], coords[1], coords[2])}, nil

	case RefFace, RefEdge, RefVertex:
		featureID, selector, ok := strings.Cut(rest, ":")
		if !ok || featureID == "" || selector == "" {
			return Ref{}, fmt.Errorf("reference %q: want %s:<featureId>:<selector>", s, kind)
		}
		r := Ref{Kind: RefKind(kind), Feature: featureID, Selector: selector}
		if idx, err := strconv.Atoi(selector); err == nil {
			if idx < 0 {
				return Ref{}, fmt.Errorf("reference %q: negative index", s)
			}
			r.Index = idx
			r.HasIndex = true
		} else if RefKind(kind) != RefFace {
			// Only faces may use role selectors.
			return Ref{}, fmt.Errorf("reference %q: non-numeric index", s)
		}
		return r, nil

	default:
		return Ref{}, fmt.Errorf("reference %q: unknown kind %q", s, kind)
	}
}

// String reassembles the canonical reference string.
func (r Ref) String() string {
	switch r.Kind {
	case RefPoint:
		return fmt.Sprintf("point:%v,%v,%v", r.Point.X, r.Point.Y, r.Point.Z)
	default:
		return fmt.Sprintf("%s:%s:%s", r.Kind, r.Feature, r.Selector)
	}
}

// FaceRef formats a numeric face reference.
func FaceRef(featureID string, index int) string {
	return fmt.Sprintf("face:%s:%d", featureID, index)
}

// FaceRoleRef formats a role-selector face reference.
func FaceRoleRef(featureID, role string) string {
	return fmt.Sprintf("face:%s:%s", featureID, role)
}

// EdgeRef formats an edge reference.
func EdgeRef(featureID string, index int) string {
	return fmt.Sprintf("edge:%s:%d", featureID, index)
}

// VertexRef formats a vertex reference.
func VertexRef(featureID string, index int) string {
	return fmt.Sprintf("vertex:%s:%d", featureID, index)
}
