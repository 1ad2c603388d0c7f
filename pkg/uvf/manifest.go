// Package uvf assembles UVF scenes: a JSON manifest of nodes plus a packed
// binary payload the manifest points into.
package uvf

import (
	"encoding/json"
	"fmt"

	"github.com/Faultbox/uvfconv/pkg/math"
)

// NodeType tags a manifest node.
type NodeType string

// Node types.
const (
	TypeGeometryGroup NodeType = "GeometryGroup"
	TypeSolidGeometry NodeType = "SolidGeometry"
	TypeFace          NodeType = "Face"
)

// BuffersType is the resource type of a packed binary buffer.
const BuffersType = "buffers"

// BufferSection describes one contiguous run of the binary payload.
// Length and Offset are in bytes.
type BufferSection struct {
	DType     string `json:"dType"`
	Dimension int    `json:"dimension"`
	Length    int    `json:"length"`
	Name      string `json:"name"`
	Offset    int    `json:"offset"`
}

// ElementSize returns the byte size of one element (all components).
func (s BufferSection) ElementSize() int {
	return dtypeSize(s.DType) * s.Dimension
}

// Elements returns the number of elements the section holds, or 0 for
// an unknown dtype.
func (s BufferSection) Elements() int {
	size := s.ElementSize()
	if size == 0 {
		return 0
	}
	return s.Length / size
}

func dtypeSize(dtype string) int {
	switch dtype {
	case "uint8", "int8":
		return 1
	case "uint16", "int16":
		return 2
	case "uint32", "int32", "float32":
		return 4
	case "float64":
		return 8
	default:
		return 0
	}
}

// Buffers references a binary payload file.
type Buffers struct {
	Path     string          `json:"path"`
	Sections []BufferSection `json:"sections"`
	Type     string          `json:"type"`
}

// Section returns the section with the given name.
func (b Buffers) Section(name string) (BufferSection, bool) {
	for _, s := range b.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return BufferSection{}, false
}

// IndexLocation is a half-open run of index elements inside the
// "indices" section of buffer BufNum.
type IndexLocation struct {
	BufNum     int `json:"bufNum"`
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// Group is a GeometryGroup node.
type Group struct {
	Members   []string
	Transform math.Mat4
	Kind      int
}

// Geometry is a SolidGeometry node.
type Geometry struct {
	Faces    []string
	Edges    []string
	Vertices []string
	Tags     []string
	Buffers  Buffers
}

// Face is a Face node: a range of the parent geometry's index list.
type Face struct {
	PackedParentID string
	Alpha          float64
	Color          uint32
	Indices        []IndexLocation
	Tags           []string
}

// Triangles returns the number of triangles covered by the face.
func (f *Face) Triangles() int {
	n := 0
	for _, loc := range f.Indices {
		n += (loc.EndIndex - loc.StartIndex) / 3
	}
	return n
}

// Node is one manifest entry. Exactly one of Group, Geometry or Face is
// set, matching Type. Nodes of any other type keep their raw JSON.
type Node struct {
	ID       string
	Type     NodeType
	Group    *Group
	Geometry *Geometry
	Face     *Face

	raw json.RawMessage
}

// Manifest is the ordered node list of a scene.
type Manifest []Node

// Find returns the node with the given id. Nodes may appear in any
// order, so this is a linear scan.
func (m Manifest) Find(id string) (*Node, bool) {
	for i := range m {
		if m[i].ID == id {
			return &m[i], true
		}
	}
	return nil, false
}

// OfType returns the nodes of type t in manifest order.
func (m Manifest) OfType(t NodeType) []*Node {
	var out []*Node
	for i := range m {
		if m[i].Type == t {
			out = append(out, &m[i])
		}
	}
	return out
}

// Wire layouts. Field order is the serialized key order.

type groupWire struct {
	Attributions struct {
		Members []string `json:"members"`
	} `json:"attributions"`
	ID         string `json:"id"`
	Properties struct {
		Transform []float64 `json:"transform"`
		Type      int       `json:"type"`
	} `json:"properties"`
	Type NodeType `json:"type"`
}

type geometryWire struct {
	Attributions struct {
		Edges    []string `json:"edges"`
		Faces    []string `json:"faces"`
		Vertices []string `json:"vertices"`
	} `json:"attributions"`
	ID         string `json:"id"`
	Properties struct {
		Tags []string `json:"tags"`
	} `json:"properties"`
	Resources struct {
		Buffers Buffers `json:"buffers"`
	} `json:"resources"`
	Type NodeType `json:"type"`
}

type faceWire struct {
	Attributions struct {
		PackedParentID string `json:"packedParentId"`
	} `json:"attributions"`
	ID         string `json:"id"`
	Properties struct {
		Alpha           float64 `json:"alpha"`
		BufferLocations struct {
			Indices []IndexLocation `json:"indices"`
		} `json:"bufferLocations"`
		Color uint32   `json:"color"`
		Tags  []string `json:"tags"`
	} `json:"properties"`
	Type NodeType `json:"type"`
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.Type == TypeGeometryGroup && n.Group != nil:
		var w groupWire
		w.Attributions.Members = nonNil(n.Group.Members)
		w.ID = n.ID
		w.Properties.Transform = n.Group.Transform.Float64s()
		w.Properties.Type = n.Group.Kind
		w.Type = n.Type
		return json.Marshal(w)

	case n.Type == TypeSolidGeometry && n.Geometry != nil:
		var w geometryWire
		w.Attributions.Edges = nonNil(n.Geometry.Edges)
		w.Attributions.Faces = nonNil(n.Geometry.Faces)
		w.Attributions.Vertices = nonNil(n.Geometry.Vertices)
		w.ID = n.ID
		w.Properties.Tags = nonNil(n.Geometry.Tags)
		w.Resources.Buffers = n.Geometry.Buffers
		w.Type = n.Type
		return json.Marshal(w)

	case n.Type == TypeFace && n.Face != nil:
		var w faceWire
		w.Attributions.PackedParentID = n.Face.PackedParentID
		w.ID = n.ID
		w.Properties.Alpha = n.Face.Alpha
		w.Properties.BufferLocations.Indices = n.Face.Indices
		w.Properties.Color = n.Face.Color
		w.Properties.Tags = nonNil(n.Face.Tags)
		w.Type = n.Type
		return json.Marshal(w)

	case n.raw != nil:
		return n.raw, nil
	}
	return nil, fmt.Errorf("node %q: no payload for type %q", n.ID, n.Type)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var head struct {
		ID   string   `json:"id"`
		Type NodeType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*n = Node{ID: head.ID, Type: head.Type}

	switch head.Type {
	case TypeGeometryGroup:
		var w groupWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("node %q: %w", head.ID, err)
		}
		g := &Group{Members: w.Attributions.Members, Kind: w.Properties.Type}
		for i := 0; i < len(g.Transform) && i < len(w.Properties.Transform); i++ {
			g.Transform[i] = float32(w.Properties.Transform[i])
		}
		n.Group = g

	case TypeSolidGeometry:
		var w geometryWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("node %q: %w", head.ID, err)
		}
		n.Geometry = &Geometry{
			Faces:    w.Attributions.Faces,
			Edges:    w.Attributions.Edges,
			Vertices: w.Attributions.Vertices,
			Tags:     w.Properties.Tags,
			Buffers:  w.Resources.Buffers,
		}

	case TypeFace:
		var w faceWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("node %q: %w", head.ID, err)
		}
		n.Face = &Face{
			PackedParentID: w.Attributions.PackedParentID,
			Alpha:          w.Properties.Alpha,
			Color:          w.Properties.Color,
			Indices:        w.Properties.BufferLocations.Indices,
			Tags:           w.Properties.Tags,
		}

	default:
		n.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}
