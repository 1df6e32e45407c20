// Package export holds the default geometry encoders plugged in behind the
// worker's export seam. A host can substitute its own.
package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samwillis/solidtype-core/internal/rebuild"
)

// Encoder implements the export formats over registry entries.
type Encoder struct{}

// New returns the default encoder.
func New() *Encoder { return &Encoder{} }

// STL encodes the bodies as one STL, binary or ASCII.
func (e *Encoder) STL(bodies []*rebuild.BodyEntry, binary bool) ([]byte, error) {
	if binary {
		return e.binarySTL(bodies)
	}
	return e.asciiSTL(bodies)
}

func (e *Encoder) binarySTL(bodies []*rebuild.BodyEntry) ([]byte, error) {
	count := 0
	for _, b := range bodies {
		for _, f := range b.Body.Faces {
			count += len(f.Triangles)
		}
	}

	var buf bytes.Buffer
	header := make([]byte, 80)
	copy(header, []byte("solidtype export"))
	buf.Write(header)
	if err := binary.Write(&buf, stlByteOrder, uint32(count)); err != nil {
		return nil, err
	}

	for _, b := range bodies {
		for _, f := range b.Body.Faces {
			for _, t := range f.Triangles {
				n := t.Normal()
				for _, v := range [][3]float64{
					{n.X, n.Y, n.Z},
					{t.A.X, t.A.Y, t.A.Z},
					{t.B.X, t.B.Y, t.B.Z},
					{t.C.X, t.C.Y, t.C.Z},
				} {
					for _, c := range v {
						if err := binary.Write(&buf, stlByteOrder, float32(c)); err != nil {
							return nil, err
						}
					}
				}
				if err := binary.Write(&buf, stlByteOrder, uint16(0)); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

func (e *Encoder) asciiSTL(bodies []*rebuild.BodyEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("solid solidtype\n")
	for _, b := range bodies {
		for _, f := range b.Body.Faces {
			for _, t := range f.Triangles {
				n := t.Normal()
				fmt.Fprintf(&buf, "  facet normal %s %s %s\n", fnum(n.X), fnum(n.Y), fnum(n.Z))
				buf.WriteString("    outer loop\n")
				for _, v := range []struct{ X, Y, Z float64 }{
					{t.A.X, t.A.Y, t.A.Z},
					{t.B.X, t.B.Y, t.B.Z},
					{t.C.X, t.C.Y, t.C.Z},
				} {
					fmt.Fprintf(&buf, "      vertex %s %s %s\n", fnum(v.X), fnum(v.Y), fnum(v.Z))
				}
				buf.WriteString("    endloop\n")
				buf.WriteString("  endfacet\n")
			}
		}
	}
	buf.WriteString("endsolid solidtype\n")
	return buf.Bytes(), nil
}

// fnum formats a coordinate without exponent noise for small models.
func fnum(v float64) string {
	if math.Abs(v) < 1e-12 {
		v = 0
	}
	return fmt.Sprintf("%g", v)
}

// stlByteOrder aliases the byte order used by binary STL.
var stlByteOrder = binary.LittleEndian
