// Package convert runs the STL to UVF pipeline: load, parse, index,
// assemble and write.
package convert

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/uvfconv/internal/config"
	"github.com/Faultbox/uvfconv/pkg/formats"
	"github.com/Faultbox/uvfconv/pkg/math"
	"github.com/Faultbox/uvfconv/pkg/mesh"
	"github.com/Faultbox/uvfconv/pkg/source"
	"github.com/Faultbox/uvfconv/pkg/uvf"
)

// ErrEmptyBaseName is returned when no output name can be derived.
var ErrEmptyBaseName = errors.New("cannot derive output name from input path")

// Summary describes a finished conversion.
type Summary struct {
	Source      string
	Compression source.Compression
	BaseName    string
	Solids      []mesh.Solid
	Stats       mesh.Stats
	Bounds      math.Box3
	Warnings    []string
	Output      *uvf.Output
}

// Converter converts STL files with a fixed configuration.
type Converter struct {
	cfg *config.Config
	log *zap.Logger
}

// New creates a converter. A nil logger discards log output.
func New(cfg *config.Config, log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{cfg: cfg, log: log}
}

// Convert converts the STL file at path. Nothing is written unless
// parsing and validation succeed.
func (c *Converter) Convert(path string) (*Summary, error) {
	base := c.cfg.Convert.BaseName
	if base == "" {
		base = source.BaseName(path)
	}
	if base == "" || base == "." {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBaseName, path)
	}

	doc, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	c.log.Debug("loaded source",
		zap.String("path", path),
		zap.Stringer("compression", doc.Compression),
		zap.Int("stored_bytes", doc.StoredSize),
		zap.Int("bytes", len(doc.Data)))

	stl, err := formats.ParseSTL(doc.Data)
	if err != nil {
		return nil, err
	}
	for _, w := range stl.Warnings {
		c.log.Warn("irregular STL input", zap.String("path", path), zap.String("detail", w))
	}
	c.log.Info("parsed STL",
		zap.Int("solids", len(stl.Solids)),
		zap.Int("vertices", len(stl.Vertices)),
		zap.Int("triangles", stl.TriangleCount()))
	for _, s := range stl.Solids {
		c.log.Debug("solid", zap.String("name", s.Name), zap.Int("triangles", s.Triangles()))
	}

	indexed := mesh.Build(stl, c.cfg.Convert.Deduplicate)
	stats := indexed.Stats()
	c.log.Info("indexed geometry",
		zap.Bool("dedup", c.cfg.Convert.Deduplicate),
		zap.Int("source_vertices", stats.SourceVertices),
		zap.Int("unique_vertices", stats.UniqueVertices),
		zap.Float64("reduction", stats.Ratio))

	scene, err := uvf.Assemble(indexed, c.cfg.Options(base))
	if err != nil {
		return nil, err
	}

	out, err := scene.SaveTo(c.cfg.Convert.OutputDir)
	if err != nil {
		return nil, err
	}
	c.log.Info("wrote scene",
		zap.String("manifest", out.ManifestPath),
		zap.String("binary", out.BinaryPath),
		zap.Int("binary_bytes", out.BinaryBytes))

	return &Summary{
		Source:      path,
		Compression: doc.Compression,
		BaseName:    base,
		Solids:      indexed.Solids,
		Stats:       stats,
		Bounds:      indexed.Bounds(),
		Warnings:    stl.Warnings,
		Output:      out,
	}, nil
}

// Run converts path with cfg using a throwaway converter.
func Run(cfg *config.Config, path string, log *zap.Logger) (*Summary, error) {
	return New(cfg, log).Convert(path)
}

// Print writes the summary in the converter's plain-text layout.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Parsed solids=%d total_vertices=%d triangles=%d\n",
		len(s.Solids), s.Stats.SourceVertices, s.Stats.Triangles)
	for _, solid := range s.Solids {
		fmt.Fprintf(w, "  solid %s triangles=%d dupVerts=%d\n", solid.Name, solid.Triangles, solid.Triangles*3)
	}
	fmt.Fprintf(w, "Indexed: original_vertices=%d unique_vertices=%d reduction=%.2fx\n",
		s.Stats.SourceVertices, s.Stats.UniqueVertices, s.Stats.Ratio)
	if !s.Bounds.Empty() {
		size := s.Bounds.Size()
		fmt.Fprintf(w, "Bounds: min=(%g, %g, %g) size=(%g, %g, %g) diagonal=%g\n",
			s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Min.Z, size.X, size.Y, size.Z, s.Bounds.Diagonal())
	}
	if s.Compression != source.CompressionNone {
		fmt.Fprintf(w, "Source: %s (%s)\n", s.Source, s.Compression)
	}

	dir := s.Output.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	fmt.Fprintln(w, "Done")
	fmt.Fprintln(w, "Output dir:", dir)
	fmt.Fprintln(w, "Manifest:", s.Output.ManifestPath)
}
