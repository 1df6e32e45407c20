package export

import (
	"bytes"
	"fmt"

	"github.com/samwillis/solidtype-core/internal/rebuild"
)

// STEP encodes the bodies as a minimal AP203 faceted B-rep: each triangle
// becomes a POLY_LOOP face of a CLOSED_SHELL. Coarse, but loads anywhere.
func (e *Encoder) STEP(bodies []*rebuild.BodyEntry, name string) ([]byte, error) {
	if name == "" {
		name = "solidtype"
	}

	var buf bytes.Buffer
	buf.WriteString("ISO-10303-21;\n")
	buf.WriteString("HEADER;\n")
	buf.WriteString("FILE_DESCRIPTION((''),'2;1');\n")
	fmt.Fprintf(&buf, "FILE_NAME('%s','',(''),(''),'','','');\n", name)
	buf.WriteString("FILE_SCHEMA(('CONFIG_CONTROL_DESIGN'));\n")
	buf.WriteString("ENDSEC;\n")
	buf.WriteString("DATA;\n")

	id := 0
	next := func() int { id++; return id }

	for bi, b := range bodies {
		var faceIDs []int
		for _, f := range b.Body.Faces {
			for _, t := range f.Triangles {
				var ptIDs [3]int
				for i, v := range [][3]float64{
					{t.A.X, t.A.Y, t.A.Z},
					{t.B.X, t.B.Y, t.B.Z},
					{t.C.X, t.C.Y, t.C.Z},
				} {
					ptIDs[i] = next()
					fmt.Fprintf(&buf, "#%d=CARTESIAN_POINT('',(%g,%g,%g));\n",
						ptIDs[i], v[0], v[1], v[2])
				}
				loop := next()
				fmt.Fprintf(&buf, "#%d=POLY_LOOP('',(#%d,#%d,#%d));\n",
					loop, ptIDs[0], ptIDs[1], ptIDs[2])
				bound := next()
				fmt.Fprintf(&buf, "#%d=FACE_OUTER_BOUND('',#%d,.T.);\n", bound, loop)
				face := next()
				fmt.Fprintf(&buf, "#%d=FACE_SURFACE('',(#%d),$,.T.);\n", face, bound)
				faceIDs = append(faceIDs, face)
			}
		}
		shell := next()
		fmt.Fprintf(&buf, "#%d=CLOSED_SHELL('',(", shell)
		for i, fid := range faceIDs {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "#%d", fid)
		}
		buf.WriteString("));\n")
		brep := next()
		fmt.Fprintf(&buf, "#%d=FACETED_BREP('%s_%d',#%d);\n", brep, name, bi, shell)
	}

	buf.WriteString("ENDSEC;\n")
	buf.WriteString("END-ISO-10303-21;\n")
	return buf.Bytes(), nil
}
