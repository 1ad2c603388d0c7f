package uvf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ReadManifest loads a manifest file.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}

// Format re-indents a manifest document with two spaces. Key order and
// non-ASCII text are preserved.
func Format(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, fmt.Errorf("formatting manifest: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// FaceReport describes one face of a geometry.
type FaceReport struct {
	ID        string
	Triangles int
}

// GeometryReport describes one SolidGeometry node. Counts come from the
// section byte lengths: 12 bytes per triangle of uint32 indices and 12
// bytes per float32 x,y,z position.
type GeometryReport struct {
	ID           string
	Triangles    int
	Vertices     int
	ScalarFields []string
	Faces        []FaceReport
	BinaryPath   string
}

// Report summarizes a manifest.
type Report struct {
	Total      int
	Groups     int
	Geometries int
	Faces      int

	// Root is the id of the root group, empty when the manifest has none.
	Root       string
	Members    []GeometryReport
	Triangles  int
	Vertices   int
	Binaries   []string
	Unresolved []string // ids referenced but not present
}

// Analyze builds a report. Nodes may appear in any order; references are
// resolved by id.
func Analyze(m Manifest) Report {
	r := Report{Total: len(m)}

	for i := range m {
		switch m[i].Type {
		case TypeGeometryGroup:
			r.Groups++
		case TypeSolidGeometry:
			r.Geometries++
		case TypeFace:
			r.Faces++
		}
	}

	binaries := make(map[string]struct{})
	for _, node := range m.OfType(TypeSolidGeometry) {
		if node.Geometry == nil {
			continue
		}
		g := analyzeGeometry(m, node, &r.Unresolved)
		r.Triangles += g.Triangles
		r.Vertices += g.Vertices
		if g.BinaryPath != "" {
			binaries[g.BinaryPath] = struct{}{}
		}
	}
	for p := range binaries {
		r.Binaries = append(r.Binaries, p)
	}
	sort.Strings(r.Binaries)

	if root, ok := m.Find(RootGroupID); ok && root.Group != nil {
		r.Root = root.ID
		for _, id := range root.Group.Members {
			member, ok := m.Find(id)
			if !ok {
				r.Unresolved = append(r.Unresolved, id)
				continue
			}
			if member.Geometry != nil {
				r.Members = append(r.Members, analyzeGeometry(m, member, nil))
			}
		}
	}

	return r
}

func analyzeGeometry(m Manifest, node *Node, unresolved *[]string) GeometryReport {
	g := GeometryReport{ID: node.ID, BinaryPath: node.Geometry.Buffers.Path}

	for _, s := range node.Geometry.Buffers.Sections {
		switch s.Name {
		case SectionIndices:
			g.Triangles += s.Length / (3 * indexElementSize)
		case SectionPosition:
			g.Vertices += s.Length / vertexSize
		default:
			g.ScalarFields = append(g.ScalarFields, s.Name)
		}
	}

	for _, id := range node.Geometry.Faces {
		face, ok := m.Find(id)
		if !ok || face.Face == nil {
			if unresolved != nil {
				*unresolved = append(*unresolved, id)
			}
			continue
		}
		g.Faces = append(g.Faces, FaceReport{ID: id, Triangles: face.Face.Triangles()})
	}
	return g
}

// Print writes the report in a human-readable layout.
func (r Report) Print(w io.Writer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "UVF MANIFEST ANALYSIS REPORT")
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "OVERVIEW:")
	fmt.Fprintf(w, "- Total Objects: %d\n", r.Total)
	fmt.Fprintf(w, "- GeometryGroups: %d\n", r.Groups)
	fmt.Fprintf(w, "- SolidGeometries: %d\n", r.Geometries)
	fmt.Fprintf(w, "- Faces: %d\n", r.Faces)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "HIERARCHY STRUCTURE:")
	if r.Root == "" {
		fmt.Fprintln(w, "  (no root group)")
	} else {
		fmt.Fprintf(w, "%s (Root)\n", r.Root)
		for _, g := range r.Members {
			fmt.Fprintf(w, "  %s (%d triangles)\n", g.ID, g.Triangles)
			for _, f := range g.Faces {
				fmt.Fprintf(w, "    %s (%d triangles)\n", f.ID, f.Triangles)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "DATA ANALYSIS:")
	for _, g := range r.Members {
		if len(g.ScalarFields) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", g.ID)
		fmt.Fprintf(w, "    - Triangles: %d\n", g.Triangles)
		fmt.Fprintf(w, "    - Vertices: %d\n", g.Vertices)
		fmt.Fprintf(w, "    - Scalar Fields: %s\n", strings.Join(g.ScalarFields, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TOTAL STATISTICS:")
	fmt.Fprintf(w, "- Total Triangles: %d\n", r.Triangles)
	fmt.Fprintf(w, "- Total Vertices: %d\n", r.Vertices)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "FILE STRUCTURE:")
	for _, b := range r.Binaries {
		fmt.Fprintf(w, "  %s\n", b)
	}

	if len(r.Unresolved) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "UNRESOLVED REFERENCES: %s\n", strings.Join(r.Unresolved, ", "))
	}
}
