package uvf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path"

	"github.com/Faultbox/uvfconv/pkg/formats"
	"github.com/Faultbox/uvfconv/pkg/math"
	"github.com/Faultbox/uvfconv/pkg/mesh"
)

// ErrInvariant reports indexed geometry that cannot be serialized
// without producing an out-of-range or misaligned payload.
var ErrInvariant = errors.New("invariant violation")

// Section names and layout constants.
const (
	SectionIndices  = "indices"
	SectionPosition = "position"

	indexElementSize = 4  // uint32
	vertexSize       = 12 // 3 x float32

	// RootGroupID is the id of the scene's top-level group.
	RootGroupID = "root_group"

	// ManifestFileName is the default manifest file name.
	ManifestFileName = "manifest.json"
	// ResourcesDir is the default directory for binary payloads.
	ResourcesDir = "resources"
)

// Default face display properties.
const (
	DefaultColor uint32  = 0xFFFFFF
	DefaultAlpha float64 = 1.0
)

// Options control manifest assembly.
type Options struct {
	BaseName     string
	Color        uint32
	Alpha        float64
	Transform    math.Mat4
	ResourcesDir string
	ManifestName string
}

// DefaultOptions returns options for a scene named base.
func DefaultOptions(base string) Options {
	return Options{
		BaseName:     base,
		Color:        DefaultColor,
		Alpha:        DefaultAlpha,
		Transform:    math.Identity(),
		ResourcesDir: ResourcesDir,
		ManifestName: ManifestFileName,
	}
}

// Scene is an assembled manifest with the payload it references.
type Scene struct {
	Manifest Manifest
	Payload  []byte
	Sections []BufferSection

	// BinaryPath is the payload path relative to the output directory,
	// slash-separated as written in the manifest.
	BinaryPath   string
	ManifestName string
}

// Validate checks the indexed geometry before anything is written.
func Validate(m *mesh.Indexed) error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", ErrInvariant, len(m.Indices))
	}
	if uint64(len(m.Vertices)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d vertices exceed uint32 index space", ErrInvariant, len(m.Vertices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("%w: index %d at position %d >= vertex count %d", ErrInvariant, idx, i, len(m.Vertices))
		}
	}

	next := 0
	for _, s := range m.Solids {
		r := s.Indices
		if r.Start != next || r.End < r.Start {
			return fmt.Errorf("%w: solid %q range [%d,%d) does not continue at %d", ErrInvariant, s.Name, r.Start, r.End, next)
		}
		if r.Len()%3 != 0 {
			return fmt.Errorf("%w: solid %q range length %d is not a multiple of 3", ErrInvariant, s.Name, r.Len())
		}
		next = r.End
	}
	if next != len(m.Indices) {
		return fmt.Errorf("%w: solid ranges cover %d of %d indices", ErrInvariant, next, len(m.Indices))
	}
	return nil
}

// Layout returns the payload sections: indices first, then positions.
func Layout(indexCount, vertexCount int) []BufferSection {
	indexBytes := indexCount * indexElementSize
	return []BufferSection{
		{DType: "uint32", Dimension: 1, Length: indexBytes, Name: SectionIndices, Offset: 0},
		{DType: "float32", Dimension: 3, Length: vertexCount * vertexSize, Name: SectionPosition, Offset: indexBytes},
	}
}

// EncodePayload packs indices then x,y,z positions, little-endian, with
// no header or padding.
func EncodePayload(m *mesh.Indexed) []byte {
	var buf bytes.Buffer
	buf.Grow(len(m.Indices)*indexElementSize + len(m.Vertices)*vertexSize)

	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, m.Indices)
	_ = binary.Write(&buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

// FaceID names the face of the seq-th solid.
func FaceID(name string, seq int) string {
	if name == "" || name == formats.DefaultSolidName {
		return fmt.Sprintf("face-%d", seq)
	}
	return fmt.Sprintf("%s-%d", name, seq)
}

// GeometryID names the geometry node of a scene.
func GeometryID(base string) string {
	return base + "-geom"
}

// Assemble validates m and builds the manifest and payload for it.
func Assemble(m *mesh.Indexed, opts Options) (*Scene, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	if opts.BaseName == "" {
		return nil, errors.New("assembling scene: empty base name")
	}
	if opts.ResourcesDir == "" {
		opts.ResourcesDir = ResourcesDir
	}
	if opts.ManifestName == "" {
		opts.ManifestName = ManifestFileName
	}
	if opts.Transform == (math.Mat4{}) {
		opts.Transform = math.Identity()
	}

	sections := Layout(len(m.Indices), len(m.Vertices))
	binPath := path.Join(opts.ResourcesDir, opts.BaseName, opts.BaseName+".bin")
	geomID := GeometryID(opts.BaseName)

	faces := make([]Node, 0, len(m.Solids))
	faceIDs := make([]string, 0, len(m.Solids))
	for seq, s := range m.Solids {
		id := FaceID(s.Name, seq)
		faceIDs = append(faceIDs, id)
		faces = append(faces, Node{
			ID:   id,
			Type: TypeFace,
			Face: &Face{
				PackedParentID: geomID,
				Alpha:          opts.Alpha,
				Color:          opts.Color,
				Indices: []IndexLocation{{
					BufNum:     0,
					StartIndex: s.Indices.Start,
					EndIndex:   s.Indices.End,
				}},
				Tags: []string{
					"solid:" + s.Name,
					fmt.Sprintf("triangles:%d", s.Triangles),
					"rangeSemantics:indexElements",
				},
			},
		})
	}

	manifest := make(Manifest, 0, 2+len(faces))
	manifest = append(manifest,
		Node{
			ID:   RootGroupID,
			Type: TypeGeometryGroup,
			Group: &Group{
				Members:   []string{geomID},
				Transform: opts.Transform,
			},
		},
		Node{
			ID:   geomID,
			Type: TypeSolidGeometry,
			Geometry: &Geometry{
				Faces: faceIDs,
				Tags:  []string{"geometry:surface", "source:stl", "indexed:true"},
				Buffers: Buffers{
					Path:     binPath,
					Sections: sections,
					Type:     BuffersType,
				},
			},
		},
	)
	manifest = append(manifest, faces...)

	return &Scene{
		Manifest:     manifest,
		Payload:      EncodePayload(m),
		Sections:     sections,
		BinaryPath:   binPath,
		ManifestName: opts.ManifestName,
	}, nil
}
