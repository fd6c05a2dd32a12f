package pak

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTarGz extracts a gzipped tarball into targetDir, rejecting
// entries that would escape it.
func extractTarGz(archive, targetDir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archive, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip %s: %w", archive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		if err := extractEntry(header, tr, targetDir); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry extracts a single tar entry, validating that its path
// stays inside targetDir.
func extractEntry(header *tar.Header, tr *tar.Reader, targetDir string) error {
	if filepath.IsAbs(header.Name) {
		return fmt.Errorf("illegal file path in tar: %s", header.Name)
	}

	target := filepath.Join(targetDir, header.Name)
	cleanTarget := filepath.Clean(target)
	cleanTargetDir := filepath.Clean(targetDir)
	if !strings.HasPrefix(cleanTarget, cleanTargetDir+string(os.PathSeparator)) &&
		cleanTarget != cleanTargetDir {
		return fmt.Errorf("illegal file path in tar: %s", header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", target, err)
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating parent directory for %s: %w", target, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
		if err != nil {
			return fmt.Errorf("creating file %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("writing file %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing file %s: %w", target, err)
		}
	}

	return nil
}
