package uvf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/uvfconv/pkg/formats"
	"github.com/Faultbox/uvfconv/pkg/math"
	"github.com/Faultbox/uvfconv/pkg/mesh"
)

// fan builds a solid of n triangles that all share the vertex at origin.
func fan(name string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "solid %s\n", name)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "facet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex %d 1 0\nvertex %d 1 0\nendloop\nendfacet\n", i, i+1)
	}
	fmt.Fprintf(&b, "endsolid %s\n", name)
	return b.String()
}

func build(t *testing.T, doc string, dedup bool) *mesh.Indexed {
	t.Helper()
	stl, err := formats.ParseSTL([]byte(doc))
	require.NoError(t, err)
	return mesh.Build(stl, dedup)
}

func buildCube(t *testing.T, dedup bool) *mesh.Indexed {
	t.Helper()
	stl, err := formats.ParseSTLFile("../formats/testdata/cube.stl")
	require.NoError(t, err)
	return mesh.Build(stl, dedup)
}

func TestAssemble_Cube(t *testing.T) {
	scene, err := Assemble(buildCube(t, true), DefaultOptions("cube"))
	require.NoError(t, err)

	require.Len(t, scene.Manifest, 3)
	assert.Equal(t, "resources/cube/cube.bin", scene.BinaryPath)
	assert.Len(t, scene.Payload, 36*4+8*12)

	root := scene.Manifest[0]
	assert.Equal(t, RootGroupID, root.ID)
	assert.Equal(t, TypeGeometryGroup, root.Type)
	assert.Equal(t, []string{"cube-geom"}, root.Group.Members)
	assert.Equal(t, math.Identity(), root.Group.Transform)
	assert.Equal(t, 0, root.Group.Kind)

	geom := scene.Manifest[1]
	assert.Equal(t, "cube-geom", geom.ID)
	assert.Equal(t, []string{"Cube-0"}, geom.Geometry.Faces)
	assert.Equal(t, []string{"geometry:surface", "source:stl", "indexed:true"}, geom.Geometry.Tags)
	assert.Equal(t, BuffersType, geom.Geometry.Buffers.Type)

	face := scene.Manifest[2]
	assert.Equal(t, "Cube-0", face.ID)
	assert.Equal(t, "cube-geom", face.Face.PackedParentID)
	assert.Equal(t, []IndexLocation{{BufNum: 0, StartIndex: 0, EndIndex: 36}}, face.Face.Indices)
	assert.Equal(t, []string{"solid:Cube", "triangles:12", "rangeSemantics:indexElements"}, face.Face.Tags)
	assert.Equal(t, 12, face.Face.Triangles())
	assert.Equal(t, DefaultColor, face.Face.Color)
	assert.Equal(t, DefaultAlpha, face.Face.Alpha)
}

func TestAssemble_Sections(t *testing.T) {
	scene, err := Assemble(buildCube(t, false), DefaultOptions("cube"))
	require.NoError(t, err)

	assert.Equal(t, []BufferSection{
		{DType: "uint32", Dimension: 1, Length: 144, Name: SectionIndices, Offset: 0},
		{DType: "float32", Dimension: 3, Length: 432, Name: SectionPosition, Offset: 144},
	}, scene.Sections)

	pos, ok := scene.Manifest[1].Geometry.Buffers.Section(SectionPosition)
	require.True(t, ok)
	assert.Equal(t, 36, pos.Elements())

	last := scene.Sections[len(scene.Sections)-1]
	assert.Equal(t, len(scene.Payload), last.Offset+last.Length)
}

func TestAssemble_PayloadLayout(t *testing.T) {
	m := buildCube(t, true)
	scene, err := Assemble(m, DefaultOptions("cube"))
	require.NoError(t, err)

	r := bytes.NewReader(scene.Payload)
	indices := make([]uint32, len(m.Indices))
	require.NoError(t, binary.Read(r, binary.LittleEndian, indices))
	positions := make([]float32, 3*len(m.Vertices))
	require.NoError(t, binary.Read(r, binary.LittleEndian, positions))
	assert.Zero(t, r.Len())

	assert.Equal(t, m.Indices, indices)
	for i, v := range m.Vertices {
		assert.Equal(t, []float32{v.X, v.Y, v.Z}, positions[3*i:3*i+3], "vertex %d", i)
	}
}

func TestAssemble_TwoSolids(t *testing.T) {
	scene, err := Assemble(build(t, fan("A", 3)+fan("B", 2), true), DefaultOptions("parts"))
	require.NoError(t, err)

	require.Len(t, scene.Manifest, 4)
	assert.Equal(t, []string{"A-0", "B-1"}, scene.Manifest[1].Geometry.Faces)
	assert.Equal(t, []IndexLocation{{StartIndex: 0, EndIndex: 9}}, scene.Manifest[2].Face.Indices)
	assert.Equal(t, []IndexLocation{{StartIndex: 9, EndIndex: 15}}, scene.Manifest[3].Face.Indices)
	assert.Equal(t, "triangles:2", scene.Manifest[3].Face.Tags[1])
}

func TestAssemble_Options(t *testing.T) {
	opts := DefaultOptions("part")
	opts.Color = 0xFF0000
	opts.Alpha = 0.5
	opts.Transform = math.Scale(2)
	opts.ResourcesDir = "bin"

	scene, err := Assemble(build(t, fan("p", 1), true), opts)
	require.NoError(t, err)

	assert.Equal(t, "bin/part/part.bin", scene.BinaryPath)
	assert.Equal(t, math.Scale(2), scene.Manifest[0].Group.Transform)
	assert.Equal(t, uint32(0xFF0000), scene.Manifest[2].Face.Color)
	assert.Equal(t, 0.5, scene.Manifest[2].Face.Alpha)
}

func TestAssemble_ZeroOptions(t *testing.T) {
	scene, err := Assemble(build(t, fan("p", 1), true), Options{BaseName: "p"})
	require.NoError(t, err)

	assert.Equal(t, math.Identity(), scene.Manifest[0].Group.Transform)
	assert.Equal(t, "resources/p/p.bin", scene.BinaryPath)
	assert.Equal(t, ManifestFileName, scene.ManifestName)

	_, err = Assemble(build(t, fan("p", 1), true), Options{})
	assert.Error(t, err)
}

func TestAssemble_Empty(t *testing.T) {
	scene, err := Assemble(mesh.Build(&formats.STL{}, true), DefaultOptions("empty"))
	require.NoError(t, err)

	require.Len(t, scene.Manifest, 2)
	assert.Empty(t, scene.Payload)

	data, err := scene.MarshalManifest()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"faces": []`)
}

func TestAssemble_Idempotent(t *testing.T) {
	render := func() ([]byte, []byte) {
		scene, err := Assemble(build(t, fan("A", 3)+fan("B", 2), true), DefaultOptions("parts"))
		require.NoError(t, err)
		data, err := scene.MarshalManifest()
		require.NoError(t, err)
		return data, scene.Payload
	}
	m1, p1 := render()
	m2, p2 := render()
	assert.Equal(t, m1, m2)
	assert.Equal(t, p1, p2)
}

func TestValidate(t *testing.T) {
	valid := func() *mesh.Indexed {
		return &mesh.Indexed{
			Vertices: []math.Vec3{{}, {X: 1}, {Y: 1}},
			Indices:  []uint32{0, 1, 2, 2, 1, 0},
			Solids: []mesh.Solid{
				{Name: "a", Indices: mesh.IndexRange{Start: 0, End: 3}, Triangles: 1},
				{Name: "b", Indices: mesh.IndexRange{Start: 3, End: 6}, Triangles: 1},
			},
		}
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(m *mesh.Indexed)
	}{
		{"partial triangle", func(m *mesh.Indexed) { m.Indices = m.Indices[:5] }},
		{"index out of range", func(m *mesh.Indexed) { m.Indices[4] = 3 }},
		{"gap between solids", func(m *mesh.Indexed) { m.Solids[1].Indices.Start = 4 }},
		{"overlapping solids", func(m *mesh.Indexed) { m.Solids[0].Indices.End = 6 }},
		{"uncovered tail", func(m *mesh.Indexed) { m.Solids = m.Solids[:1] }},
		{"range not whole triangles", func(m *mesh.Indexed) {
			m.Solids[0].Indices.End = 2
			m.Solids[1].Indices.Start = 2
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := Validate(m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvariant))

			_, err = Assemble(m, DefaultOptions("x"))
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}

func TestFaceID(t *testing.T) {
	assert.Equal(t, "Cube-0", FaceID("Cube", 0))
	assert.Equal(t, "part-3", FaceID("part", 3))
	assert.Equal(t, "face-2", FaceID("", 2))
	assert.Equal(t, "face-1", FaceID(formats.DefaultSolidName, 1))
}

func TestManifestJSONFields(t *testing.T) {
	scene, err := Assemble(buildCube(t, true), DefaultOptions("cube"))
	require.NoError(t, err)
	data, err := scene.MarshalManifest()
	require.NoError(t, err)

	var nodes []map[string]any
	require.NoError(t, json.Unmarshal(data, &nodes))
	require.Len(t, nodes, 3)

	root := nodes[0]
	assert.Equal(t, "GeometryGroup", root["type"])
	props := root["properties"].(map[string]any)
	assert.Len(t, props["transform"], 16)
	assert.Equal(t, 0.0, props["type"])

	geom := nodes[1]
	attrs := geom["attributions"].(map[string]any)
	assert.Equal(t, []any{}, attrs["edges"])
	assert.Equal(t, []any{}, attrs["vertices"])
	buffers := geom["resources"].(map[string]any)["buffers"].(map[string]any)
	assert.Equal(t, "resources/cube/cube.bin", buffers["path"])
	assert.Equal(t, "buffers", buffers["type"])
	section := buffers["sections"].([]any)[0].(map[string]any)
	assert.Equal(t, "uint32", section["dType"])
	assert.Equal(t, 1.0, section["dimension"])

	face := nodes[2]
	assert.Equal(t, "cube-geom", face["attributions"].(map[string]any)["packedParentId"])
	fprops := face["properties"].(map[string]any)
	assert.Equal(t, 16777215.0, fprops["color"])
	assert.Equal(t, 1.0, fprops["alpha"])
	loc := fprops["bufferLocations"].(map[string]any)["indices"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"bufNum": 0.0, "startIndex": 0.0, "endIndex": 36.0}, loc)
}
