package kernel

// FaceSpan maps a face to its index range in the mesh buffers.
type FaceSpan struct {
	Face  int    `json:"face"`
	Start uint32 `json:"start"`
	Count uint32 `json:"count"`
}

// Mesh is the transfer-ready tessellation of a body: flat float32 buffers and
// a face map tying index ranges back to kernel faces.
type Mesh struct {
	Positions []float32  `json:"positions"`
	Normals   []float32  `json:"normals"`
	Indices   []uint32   `json:"indices"`
	FaceMap   []FaceSpan `json:"faceMap"`
}

// Tessellate emits the body's triangles with flat per-vertex normals. The
// buffers are freshly allocated so callers can transfer them without copying.
func (b *Body) Tessellate() *Mesh {
	m := &Mesh{}
	for _, f := range b.Faces {
		start := uint32(len(m.Indices))
		for _, t := range f.Triangles {
			n := t.Normal()
			base := uint32(len(m.Positions) / 3)
			for _, v := range [3][3]float64{
				{t.A.X, t.A.Y, t.A.Z},
				{t.B.X, t.B.Y, t.B.Z},
				{t.C.X, t.C.Y, t.C.Z},
			} {
				m.Positions = append(m.Positions, float32(v[0]), float32(v[1]), float32(v[2]))
				m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			}
			m.Indices = append(m.Indices, base, base+1, base+2)
		}
		m.FaceMap = append(m.FaceMap, FaceSpan{
			Face:  f.Index,
			Start: start,
			Count: uint32(len(m.Indices)) - start,
		})
	}
	return m
}
