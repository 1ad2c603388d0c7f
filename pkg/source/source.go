// Package source loads mesh source documents from disk, transparently
// decompressing gzip, zlib, zstd and lz4-framed files.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Source errors.
var (
	ErrNotFound    = errors.New("source file not found")
	ErrDecompress  = errors.New("decompressing source")
	ErrIsDirectory = errors.New("source path is a directory")
)

// Compression identifies the container a source document was stored in.
type Compression uint8

// Supported containers.
const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
	CompressionZstd
	CompressionLZ4
)

// String returns the container name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// compressedExts are stripped from file names when deriving a base name.
var compressedExts = []string{".gz", ".gzip", ".zz", ".zlib", ".zst", ".zstd", ".lz4"}

// Document is a loaded source file.
type Document struct {
	Path        string
	Compression Compression
	StoredSize  int    // size on disk
	Data        []byte // decompressed bytes, not yet text-decoded
}

// Open reads and decompresses the document at path.
func Open(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	data, c, err := Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Document{
		Path:        path,
		Compression: c,
		StoredSize:  len(raw),
		Data:        data,
	}, nil
}

// Detect sniffs the container from the leading magic bytes.
func Detect(raw []byte) Compression {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(raw, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(raw, lz4Magic):
		return CompressionLZ4
	case isZlibHeader(raw):
		return CompressionZlib
	default:
		return CompressionNone
	}
}

// isZlibHeader accepts only a deflate CMF with a 32K window and one of
// the four standard FLG bytes, so a text document starting with 'x' is
// not mistaken for a zlib stream.
func isZlibHeader(raw []byte) bool {
	if len(raw) < 2 || raw[0] != 0x78 {
		return false
	}
	switch raw[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	}
	return false
}

// Decompress unwraps raw according to its detected container. Plain
// input is returned unchanged, as is input that only looked like zlib.
func Decompress(raw []byte) ([]byte, Compression, error) {
	c := Detect(raw)

	var (
		out []byte
		err error
	)
	switch c {
	case CompressionNone:
		return raw, c, nil
	case CompressionGzip:
		out, err = readAllFrom(gzip.NewReader(bytes.NewReader(raw)))
	case CompressionZlib:
		out, err = readAllFrom(zlib.NewReader(bytes.NewReader(raw)))
	case CompressionZstd:
		out, err = decodeZstd(raw)
	case CompressionLZ4:
		out, err = io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
	}
	if err != nil {
		if c == CompressionZlib {
			// "x^" is both a valid zlib header and plain text.
			return raw, CompressionNone, nil
		}
		return nil, c, fmt.Errorf("%w (%s): %v", ErrDecompress, c, err)
	}
	return out, c, nil
}

func readAllFrom(r io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func decodeZstd(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

// BaseName derives an output base name from a source path: the file
// name without compression suffixes and without its format extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	for {
		ext := strings.ToLower(filepath.Ext(name))
		stripped := false
		for _, c := range compressedExts {
			if ext == c {
				name = strings.TrimSuffix(name, filepath.Ext(name))
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
