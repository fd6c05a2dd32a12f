package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/manifests"
)

// kindPrefix orders manifest files so that a plain `oc apply -f dir`
// processes them in dependency order.
var kindPrefix = map[string]string{
	"Namespace":     "00",
	"CatalogSource": "01",
	"OperatorGroup": "02",
	"Subscription":  "03",
}

// File records where one manifest was written.
type File struct {
	Manifest manifests.Manifest
	Path     string
}

// ManifestWriter writes manifests to files.
type ManifestWriter struct {
	outputDir string
}

// New creates a new manifest writer.
func New(outputDir string) *ManifestWriter {
	return &ManifestWriter{
		outputDir: outputDir,
	}
}

// WriteAll writes every manifest in the set, in apply order, and
// returns the written files in the same order.
//
// Creates:
//   - catalog/ - Namespace and CatalogSource manifests
//   - subscription/ - OperatorGroup and Subscription manifests
func (w *ManifestWriter) WriteAll(set *manifests.Set) ([]File, error) {
	catalogDir := filepath.Join(w.outputDir, "catalog")
	subscriptionDir := filepath.Join(w.outputDir, "subscription")

	for _, dir := range []string{w.outputDir, catalogDir, subscriptionDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	var files []File
	for _, m := range set.Ordered() {
		dir := catalogDir
		if m.Kind == "OperatorGroup" || m.Kind == "Subscription" {
			dir = subscriptionDir
		}

		path := filepath.Join(dir, Filename(m))
		if err := w.writeManifest(path, m.Object); err != nil {
			return nil, fmt.Errorf("writing %s: %w", m.ID(), err)
		}
		files = append(files, File{Manifest: m, Path: path})
	}

	return files, nil
}

// Filename derives the file name for a manifest from its kind,
// owning operator, and namespace. Pure function of the manifest
// identity, so re-runs overwrite the same files.
func Filename(m manifests.Manifest) string {
	parts := []string{kindPrefix[m.Kind], strings.ToLower(m.Kind)}
	if m.Operator != "" {
		parts = append(parts, m.Operator)
	}
	if m.Namespace != "" {
		parts = append(parts, m.Namespace)
	}
	if m.Operator == "" && m.Namespace == "" {
		parts = append(parts, m.Name)
	}
	return strings.Join(parts, "-") + ".yaml"
}

// writeManifest writes a single manifest to a file as YAML.
func (w *ManifestWriter) writeManifest(path string, manifest any) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	return nil
}

// WriteSingle writes raw content to a file in the output directory.
func (w *ManifestWriter) WriteSingle(filename string, data []byte) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(w.outputDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	return nil
}
