// Package formats provides parsers for mesh source formats.
package formats

// Note: ASCII STL is fully implemented in stl.go
// Note: binary STL is detected (IsBinarySTL) and rejected, not parsed
