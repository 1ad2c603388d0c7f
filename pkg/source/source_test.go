package source

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSTL = "solid tri\n facet normal 0 0 1\n  outer loop\n   vertex 0 0 0\n   vertex 1 0 0\n   vertex 0 1 0\n  endloop\n endfacet\nendsolid tri\n"

func compressGzip(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func compressZlib(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func compressZstd(t *testing.T, data []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func compressLZ4(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	plain := []byte(sampleSTL)

	tests := []struct {
		name string
		raw  []byte
		want Compression
	}{
		{"plain", plain, CompressionNone},
		{"gzip", compressGzip(t, plain), CompressionGzip},
		{"zlib", compressZlib(t, plain), CompressionZlib},
		{"zstd", compressZstd(t, plain), CompressionZstd},
		{"lz4", compressLZ4(t, plain), CompressionLZ4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.raw))

			out, c, err := Decompress(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, sampleSTL, string(out))
		})
	}
}

func TestDecompressCorrupt(t *testing.T) {
	raw := compressGzip(t, []byte(sampleSTL))
	raw = raw[:len(raw)/2]

	_, c, err := Decompress(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecompress)
	assert.Equal(t, CompressionGzip, c)
}

func TestDetectTextStartingWithX(t *testing.T) {
	assert.Equal(t, CompressionNone, Detect([]byte("x y z\n")))
	assert.Equal(t, CompressionNone, Detect(nil))
}

func TestDecompressTextWithZlibHeader(t *testing.T) {
	raw := []byte("x^ scanned part\n" + sampleSTL)
	require.Equal(t, CompressionZlib, Detect(raw))

	out, c, err := Decompress(raw)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)
	assert.Equal(t, raw, out)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.stl.zst")
	raw := compressZstd(t, []byte(sampleSTL))
	require.NoError(t, os.WriteFile(path, raw, 0644))

	doc, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, doc.Compression)
	assert.Equal(t, len(raw), doc.StoredSize)
	assert.Equal(t, sampleSTL, string(doc.Data))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.stl"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"cube.stl":              "cube",
		"/data/models/cube.STL": "cube",
		"cube.stl.gz":           "cube",
		"cube.stl.ZST":          "cube",
		"archive.v2.stl.lz4":    "archive.v2",
		"noext":                 "noext",
		"dir/part.ascii.stl.zz": "part.ascii",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}
