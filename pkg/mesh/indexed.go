// Package mesh builds indexed geometry from parsed triangle soup.
package mesh

import (
	"fmt"

	"github.com/Faultbox/uvfconv/pkg/formats"
	"github.com/Faultbox/uvfconv/pkg/math"
)

// IndexRange is a half-open range of offsets into Indexed.Indices.
type IndexRange struct {
	Start, End int
}

// Len returns the number of index elements in the range.
func (r IndexRange) Len() int {
	return r.End - r.Start
}

// Solid is a source solid after indexing: its range now counts index
// elements, not vertices.
type Solid struct {
	Name      string
	Indices   IndexRange
	Triangles int
}

// Indexed is shared-vertex geometry for a whole document. Every element
// of Indices is an offset into Vertices.
type Indexed struct {
	Vertices []math.Vec3
	Indices  []uint32
	Solids   []Solid

	// SourceVertices is the duplicated corner count the geometry was built from.
	SourceVertices int
}

// Stats summarizes an indexing run.
type Stats struct {
	SourceVertices int
	UniqueVertices int
	Indices        int
	Triangles      int
	Ratio          float64 // source / unique
}

// Build converts parsed triangle soup into indexed geometry. With dedup
// enabled, identical positions inside one solid share a vertex; solids
// never share vertices with each other, so each solid's triangles stay a
// contiguous run of Indices.
func Build(stl *formats.STL, dedup bool) *Indexed {
	out := &Indexed{
		Vertices:       make([]math.Vec3, 0, len(stl.Vertices)),
		Indices:        make([]uint32, 0, len(stl.Vertices)),
		Solids:         make([]Solid, 0, len(stl.Solids)),
		SourceVertices: len(stl.Vertices),
	}

	for _, src := range stl.Solids {
		corners := src.Vertices.Slice(stl.Vertices)
		start := len(out.Indices)

		if dedup {
			out.appendDeduplicated(corners)
		} else {
			out.appendAll(corners)
		}

		out.Solids = append(out.Solids, Solid{
			Name:      src.Name,
			Indices:   IndexRange{Start: start, End: len(out.Indices)},
			Triangles: (len(out.Indices) - start) / 3,
		})
	}

	return out
}

func (m *Indexed) appendAll(corners []math.Vec3) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, corners...)
	for i := range corners {
		m.Indices = append(m.Indices, base+uint32(i))
	}
}

// appendDeduplicated assigns local ids in first-seen order, then shifts
// them by the number of vertices already emitted by earlier solids.
func (m *Indexed) appendDeduplicated(corners []math.Vec3) {
	local := make(map[math.Vec3]uint32, len(corners))
	unique := make([]math.Vec3, 0, len(corners))
	localIndices := make([]uint32, len(corners))

	for i, v := range corners {
		id, ok := local[v]
		if !ok {
			id = uint32(len(unique))
			local[v] = id
			unique = append(unique, v)
		}
		localIndices[i] = id
	}

	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, unique...)
	for _, id := range localIndices {
		m.Indices = append(m.Indices, base+id)
	}
}

// TriangleCount returns the number of indexed triangles.
func (m *Indexed) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle decodes triangle i back to its three positions.
func (m *Indexed) Triangle(i int) ([3]math.Vec3, error) {
	if i < 0 || 3*i+2 >= len(m.Indices) {
		return [3]math.Vec3{}, fmt.Errorf("triangle %d out of range (%d triangles)", i, m.TriangleCount())
	}
	var tri [3]math.Vec3
	for c := range tri {
		idx := m.Indices[3*i+c]
		if int(idx) >= len(m.Vertices) {
			return [3]math.Vec3{}, fmt.Errorf("triangle %d references vertex %d of %d", i, idx, len(m.Vertices))
		}
		tri[c] = m.Vertices[idx]
	}
	return tri, nil
}

// Bounds returns the bounding box of all vertices.
func (m *Indexed) Bounds() math.Box3 {
	var b math.Box3
	for _, v := range m.Vertices {
		b.Extend(v)
	}
	return b
}

// Stats returns the vertex reduction achieved by the build.
func (m *Indexed) Stats() Stats {
	return Stats{
		SourceVertices: m.SourceVertices,
		UniqueVertices: len(m.Vertices),
		Indices:        len(m.Indices),
		Triangles:      m.TriangleCount(),
		Ratio:          float64(m.SourceVertices) / float64(max(1, len(m.Vertices))),
	}
}
