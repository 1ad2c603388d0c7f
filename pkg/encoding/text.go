// Package encoding provides best-effort text decoding for source documents.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts a source document to UTF-8.
// A byte order mark selects UTF-8 or UTF-16 decoding and is stripped;
// without one the input is taken as UTF-8. Invalid sequences are dropped
// rather than failing the document. NUL bytes survive decoding so that
// callers can still detect binary input.
func DecodeText(data []byte) []byte {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		// Return as-is if decoding fails
		out = data
	}
	if utf8.Valid(out) {
		return out
	}
	return bytes.ToValidUTF8(out, nil)
}

// HasNUL reports whether data contains a NUL byte.
func HasNUL(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
