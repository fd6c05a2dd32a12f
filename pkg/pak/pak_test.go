package pak

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

const catalogSourcesYAML = `apiVersion: operators.coreos.com/v1alpha1
kind: CatalogSource
metadata:
  name: ibmmq-operator-catalogsource
  namespace: openshift-marketplace
spec:
  displayName: IBM MQ Operators
  image: icr.io/cpopen/ibm-mq-operator-catalog@sha256:abc
  sourceType: grpc
`

// fakeRunner records plugin invocations and lays down the mirror tree
// that ibm-pak generate would produce.
type fakeRunner struct {
	workDir  string
	commands []string
	envs     [][]string
}

func (f *fakeRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	f.commands = append(f.commands, name+" "+strings.Join(args, " "))
	f.envs = append(f.envs, env)

	if len(args) > 0 && args[0] == "generate" {
		caseName := args[2]
		dir := filepath.Join(f.workDir, downloadDir, "data", "mirror", caseName, "1.2.0", "image-content-source-policy")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "catalog-sources.yaml")
		if err := os.WriteFile(path, []byte(catalogSourcesYAML), 0644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestDownloadPreparesCatalogSources(t *testing.T) {
	workDir := t.TempDir()
	runner := &fakeRunner{workDir: workDir}
	c := New(workDir, nil, slog.New(slog.DiscardHandler), WithRunner(runner))

	entry := &operator.Entry{
		Name:        "ibm-mq",
		Channel:     "v3.2",
		CaseName:    "ibm-mq",
		CaseVersion: "3.2.1",
	}
	if err := c.Download(context.Background(), entry); err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	wantCommands := []string{
		c.PluginPath() + " get ibm-mq --version 3.2.1",
		c.PluginPath() + " generate mirror-manifests ibm-mq icr.io --version 3.2.1",
	}
	if len(runner.commands) != len(wantCommands) {
		t.Fatalf("ran %d commands, want %d: %v", len(runner.commands), len(wantCommands), runner.commands)
	}
	for i, want := range wantCommands {
		if runner.commands[i] != want {
			t.Errorf("command[%d] = %q, want %q", i, runner.commands[i], want)
		}
	}
	for _, env := range runner.envs {
		if len(env) != 1 || env[0] != "IBMPAK_HOME="+workDir {
			t.Errorf("env = %v, want IBMPAK_HOME=%s", env, workDir)
		}
	}

	if len(entry.CatalogFiles) != 1 {
		t.Fatalf("entry.CatalogFiles = %v, want one file", entry.CatalogFiles)
	}
	if entry.CatalogSource != "ibmmq-operator-catalogsource" {
		t.Errorf("entry.CatalogSource = %q, want the name declared by the CASE", entry.CatalogSource)
	}

	data, err := os.ReadFile(entry.CatalogFiles[0])
	if err != nil {
		t.Fatalf("reading prepared file: %v", err)
	}
	if strings.Contains(string(data), "namespace:") {
		t.Errorf("prepared file still carries a namespace field:\n%s", data)
	}
}

func TestDownloadKeepsDeclaredCatalogSource(t *testing.T) {
	workDir := t.TempDir()
	c := New(workDir, nil, slog.New(slog.DiscardHandler), WithRunner(&fakeRunner{workDir: workDir}))

	entry := &operator.Entry{
		Name:          "ibm-mq",
		Channel:       "v3.2",
		CatalogSource: "ibmmq-operator-catalogsource-from-docs",
		CaseName:      "ibm-mq",
		CaseVersion:   "3.2.1",
	}
	if err := c.Download(context.Background(), entry); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if entry.CatalogSource != "ibmmq-operator-catalogsource-from-docs" {
		t.Errorf("CatalogSource = %q, the docs value must not be overwritten", entry.CatalogSource)
	}
}

func TestDownloadRejectsMissingCase(t *testing.T) {
	c := New(t.TempDir(), nil, slog.New(slog.DiscardHandler), WithRunner(&fakeRunner{}))
	err := c.Download(context.Background(), &operator.Entry{Name: "ibm-mq", Channel: "v3.2"})
	if err == nil {
		t.Fatal("Download() succeeded for an entry without a CASE reference")
	}
}

func TestStripNamespaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog-sources.yaml")
	if err := os.WriteFile(path, []byte(catalogSourcesYAML), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := stripNamespaces(path)
	if err != nil {
		t.Fatalf("stripNamespaces() error: %v", err)
	}
	if len(names) != 1 || names[0] != "ibmmq-operator-catalogsource" {
		t.Errorf("names = %v, want [ibmmq-operator-catalogsource]", names)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if strings.Contains(got, "namespace:") {
		t.Errorf("namespace line survived:\n%s", got)
	}
	if !strings.Contains(got, "sourceType: grpc") {
		t.Errorf("unrelated lines were dropped:\n%s", got)
	}
}

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0755, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "plugin.tar.gz")
	writeTarGz(t, archive, map[string]string{
		fmt.Sprintf("%s-linux-amd64", pluginBinary): "#!binary",
	})

	target := filepath.Join(dir, "out")
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}
	if err := extractTarGz(archive, target); err != nil {
		t.Fatalf("extractTarGz() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(target, pluginBinary+"-linux-amd64"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "#!binary" {
		t.Errorf("extracted content = %q", data)
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"../escape": "nope",
	})

	if err := extractTarGz(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("extractTarGz() accepted a path-traversal entry")
	}
}
