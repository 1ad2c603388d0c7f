// Package formats provides parsers for mesh source formats.
// STL (stereolithography) ASCII format parser.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Faultbox/uvfconv/pkg/encoding"
	"github.com/Faultbox/uvfconv/pkg/math"
	"github.com/Faultbox/uvfconv/pkg/source"
)

// STL format errors.
var (
	ErrBinarySTL            = errors.New("binary STL not supported (NUL found)")
	ErrEndFacetOutsideSolid = errors.New("endfacet outside solid")
)

// DefaultSolidName is used for solids whose header carries no name.
const DefaultSolidName = "unnamed"

// maxLineLength bounds a single line read from a stream. In-memory
// documents have no bound.
const maxLineLength = 1 << 20

// Binary STL layout: 80-byte header, uint32 triangle count, 50 bytes per triangle.
const (
	binarySTLHeaderSize   = 84
	binarySTLTriangleSize = 50
)

// numberPattern matches an optionally signed decimal or scientific float.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseError is a grammar failure. Line is 1-based, or 0 when the whole
// document was rejected.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("STL parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("STL parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsGrammarError reports whether err is (or wraps) a *ParseError.
func IsGrammarError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// VertexRange is a half-open range of offsets into STL.Vertices.
type VertexRange struct {
	Start, End int
}

// Len returns the number of vertices in the range.
func (r VertexRange) Len() int {
	return r.End - r.Start
}

// Slice returns the vertices covered by r.
func (r VertexRange) Slice(vertices []math.Vec3) []math.Vec3 {
	return vertices[r.Start:r.End]
}

// Solid is one named triangle group of the document.
type Solid struct {
	Name     string
	Vertices VertexRange
}

// Triangles returns the number of triangles in the solid.
func (s Solid) Triangles() int {
	return s.Vertices.Len() / 3
}

// STL is a parsed ASCII STL document. Vertices holds one entry per
// triangle corner in document order, without deduplication.
type STL struct {
	Vertices []math.Vec3
	Solids   []Solid

	// Warnings lists irregularities that were tolerated, such as facets
	// with a vertex count other than three.
	Warnings []string
}

// TriangleCount returns the number of complete triangles.
func (s *STL) TriangleCount() int {
	return len(s.Vertices) / 3
}

// ParseSTL parses an ASCII STL document from raw bytes.
func ParseSTL(data []byte) (*STL, error) {
	if IsBinarySTL(data) {
		return nil, &ParseError{Err: ErrBinarySTL}
	}
	text := encoding.DecodeText(data)
	return parseLines(bufio.NewScanner(bytes.NewReader(text)), len(text)+1)
}

// ParseSTLFile parses an ASCII STL file from disk. Compressed files are
// unwrapped first.
func ParseSTLFile(path string) (*STL, error) {
	doc, err := source.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading STL file: %w", err)
	}
	return ParseSTL(doc.Data)
}

// ParseSTLReader parses already-decoded UTF-8 text line by line.
// Lines longer than 1 MiB fail the parse.
func ParseSTLReader(r io.Reader) (*STL, error) {
	return parseLines(bufio.NewScanner(r), maxLineLength)
}

func parseLines(scanner *bufio.Scanner, maxLine int) (*STL, error) {
	p := &stlParser{}
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if err := p.feed(lineNumber, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading STL line %d: %w", lineNumber+1, err)
	}

	return p.finish(), nil
}

// IsBinarySTL reports whether data looks like a binary STL: it contains
// a NUL and its size matches the triangle count stored after the header.
// Binary headers may start with "solid", so the prefix is not checked.
func IsBinarySTL(data []byte) bool {
	if len(data) < binarySTLHeaderSize || !encoding.HasNUL(data) {
		return false
	}
	count := uint64(binary.LittleEndian.Uint32(data[80:binarySTLHeaderSize]))
	return uint64(len(data)) == binarySTLHeaderSize+binarySTLTriangleSize*count
}

// parseState is the grammar position between lines.
type parseState uint8

const (
	stateIdle parseState = iota
	stateInSolid
	stateInFacet
	stateInLoop
)

// String returns the state name.
func (s parseState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateInSolid:
		return "InSolid"
	case stateInFacet:
		return "InFacet"
	case stateInLoop:
		return "InLoop"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// tokenKind classifies one source line.
type tokenKind uint8

const (
	tokOther tokenKind = iota
	tokBlank
	tokSolid
	tokStraySolid // starts with "solid" but is not a solid header
	tokEndSolid
	tokFacet
	tokOuterLoop
	tokVertex
	tokEndLoop
	tokEndFacet
)

type token struct {
	kind   tokenKind
	name   string    // tokSolid
	vertex math.Vec3 // tokVertex
	nul    bool      // line contains a NUL byte
}

// classifyLine turns a line into a token. Keywords are case-insensitive
// and any amount of surrounding whitespace is accepted.
func classifyLine(line string) token {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return token{kind: tokBlank}
	}
	nul := strings.IndexByte(trimmed, 0) >= 0
	fields := strings.Fields(trimmed)

	switch strings.ToLower(fields[0]) {
	case "solid":
		name := strings.TrimSpace(trimmed[len(fields[0]):])
		return token{kind: tokSolid, name: name, nul: nul}
	case "endsolid":
		return token{kind: tokEndSolid, nul: nul}
	case "facet":
		if len(fields) == 5 && strings.EqualFold(fields[1], "normal") {
			// The normal is validated but not kept.
			if _, ok := parseVec3(fields[2:]); ok {
				return token{kind: tokFacet}
			}
		}
	case "outer":
		if len(fields) == 2 && strings.EqualFold(fields[1], "loop") {
			return token{kind: tokOuterLoop}
		}
	case "vertex":
		if len(fields) == 4 {
			if v, ok := parseVec3(fields[1:]); ok {
				return token{kind: tokVertex, vertex: v}
			}
		}
	case "endloop":
		if len(fields) == 1 {
			return token{kind: tokEndLoop}
		}
	case "endfacet":
		if len(fields) == 1 {
			return token{kind: tokEndFacet}
		}
	}

	if strings.HasPrefix(strings.ToLower(trimmed), "solid") {
		return token{kind: tokStraySolid, nul: nul}
	}
	return token{kind: tokOther, nul: nul}
}

func parseVec3(fields []string) (math.Vec3, bool) {
	var c [3]float32
	for i := range c {
		f, ok := parseCoord(fields[i])
		if !ok {
			return math.Vec3{}, false
		}
		c[i] = f
	}
	return math.Vec3{X: c[0], Y: c[1], Z: c[2]}, true
}

func parseCoord(s string) (float32, bool) {
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return float32(f), true
}

type actionKind uint8

const (
	actOpenSolid actionKind = iota + 1
	actCloseSolid
	actBeginFacet
	actAppendVertex
	actEndFacet
	actRejectBinary
)

type action struct {
	kind   actionKind
	name   string
	vertex math.Vec3
}

// transition is the grammar: given the current state and a line token it
// returns the next state and the effects to apply, in order.
func transition(state parseState, tok token) (parseState, []action) {
	switch state {
	case stateIdle:
		switch tok.kind {
		case tokSolid:
			return stateInSolid, []action{{kind: actOpenSolid, name: tok.name}}
		case tokBlank, tokStraySolid:
			return stateIdle, nil
		}
		if tok.nul {
			return stateIdle, []action{{kind: actRejectBinary}}
		}
		return stateIdle, nil

	case stateInSolid:
		switch tok.kind {
		case tokEndSolid:
			return stateIdle, []action{{kind: actCloseSolid}}
		case tokFacet:
			return stateInFacet, []action{{kind: actBeginFacet}}
		case tokSolid:
			// Missing endsolid: the new header implicitly ends the previous solid.
			return stateInSolid, []action{{kind: actCloseSolid}, {kind: actOpenSolid, name: tok.name}}
		}
		return stateInSolid, nil

	case stateInFacet:
		switch tok.kind {
		case tokOuterLoop:
			return stateInLoop, nil
		case tokVertex:
			// Missing "outer loop": keep the vertex.
			return stateInLoop, []action{{kind: actAppendVertex, vertex: tok.vertex}}
		}
		return stateInFacet, nil

	case stateInLoop:
		switch tok.kind {
		case tokVertex:
			return stateInLoop, []action{{kind: actAppendVertex, vertex: tok.vertex}}
		case tokEndLoop:
			// Only endfacet ends the facet.
			return stateInLoop, nil
		case tokEndFacet:
			return stateInSolid, []action{{kind: actEndFacet}}
		case tokEndSolid:
			return stateIdle, []action{{kind: actCloseSolid}}
		}
		return stateInLoop, nil
	}
	return state, nil
}

// stlParser applies transition effects to the growing document.
type stlParser struct {
	state    parseState
	vertices []math.Vec3
	solids   []Solid
	warnings []string

	solidOpen   bool
	facetOpen   bool
	facetLine   int
	facetOffset int
}

func (p *stlParser) feed(lineNumber int, line string) error {
	next, actions := transition(p.state, classifyLine(line))
	for _, a := range actions {
		if err := p.apply(lineNumber, a); err != nil {
			return err
		}
	}
	p.state = next
	return nil
}

func (p *stlParser) apply(lineNumber int, a action) error {
	switch a.kind {
	case actOpenSolid:
		name := a.name
		if name == "" {
			name = DefaultSolidName
		}
		p.solids = append(p.solids, Solid{
			Name:     name,
			Vertices: VertexRange{Start: len(p.vertices), End: len(p.vertices)},
		})
		p.solidOpen = true
	case actCloseSolid:
		p.closeSolid()
	case actBeginFacet:
		p.facetOpen = true
		p.facetLine = lineNumber
		p.facetOffset = len(p.vertices)
	case actAppendVertex:
		p.vertices = append(p.vertices, a.vertex)
	case actEndFacet:
		if !p.solidOpen {
			return &ParseError{Line: lineNumber, Err: ErrEndFacetOutsideSolid}
		}
		p.closeFacet()
	case actRejectBinary:
		return &ParseError{Line: lineNumber, Err: ErrBinarySTL}
	}
	return nil
}

// closeFacet records a warning for facets that did not carry exactly
// three vertices. They are kept as-is.
func (p *stlParser) closeFacet() {
	if !p.facetOpen {
		return
	}
	p.facetOpen = false
	if n := len(p.vertices) - p.facetOffset; n != 3 {
		p.warnings = append(p.warnings, fmt.Sprintf("line %d: facet has %d vertices", p.facetLine, n))
	}
}

func (p *stlParser) closeSolid() {
	p.closeFacet()
	if !p.solidOpen {
		return
	}
	p.solids[len(p.solids)-1].Vertices.End = len(p.vertices)
	p.solidOpen = false
}

// finish closes a solid left open at end of input.
func (p *stlParser) finish() *STL {
	p.closeSolid()
	p.state = stateIdle
	return &STL{
		Vertices: p.vertices,
		Solids:   p.solids,
		Warnings: p.warnings,
	}
}
