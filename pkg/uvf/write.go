package uvf

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Output lists the files written for a scene.
type Output struct {
	Dir          string
	ManifestPath string
	BinaryPath   string
	BinaryBytes  int
}

// MarshalManifest renders the manifest with two-space indentation.
func (s *Scene) MarshalManifest() ([]byte, error) {
	data, err := json.MarshalIndent(s.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveTo writes the payload and then the manifest under dir, creating
// directories as needed.
func (s *Scene) SaveTo(dir string) (*Output, error) {
	manifest, err := s.MarshalManifest()
	if err != nil {
		return nil, err
	}

	binPath := filepath.Join(dir, filepath.FromSlash(s.BinaryPath))
	if err := os.MkdirAll(filepath.Dir(binPath), 0755); err != nil {
		return nil, fmt.Errorf("creating resources directory: %w", err)
	}
	if err := writeFile(binPath, func(w io.Writer) error {
		_, err := w.Write(s.Payload)
		return err
	}); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}

	name := s.ManifestName
	if name == "" {
		name = ManifestFileName
	}
	manifestPath := filepath.Join(dir, name)
	if err := writeFile(manifestPath, func(w io.Writer) error {
		_, err := w.Write(manifest)
		return err
	}); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	return &Output{
		Dir:          dir,
		ManifestPath: manifestPath,
		BinaryPath:   binPath,
		BinaryBytes:  len(s.Payload),
	}, nil
}

// writeFile creates path and streams write into it through a buffer.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	return bw.Flush()
}
