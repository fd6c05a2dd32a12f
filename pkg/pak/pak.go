package pak

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

const (
	// PluginVersion is the ibm-pak release the installer bootstraps
	// when the plugin is not already present.
	PluginVersion = "v1.18.1"

	pluginBinary     = "oc-ibm_pak"
	releaseURLFormat = "https://github.com/IBM/ibm-pak/releases/download/%s/oc-ibm_pak-%s-%s.tar.gz"

	downloadDir      = ".ibm-pak"
	catalogMirrorReg = "icr.io"
	catsrcFilePrefix = "catalog-sources"
)

// Downloader fetches a URL to a local file. The docs fetcher's HTTP
// client satisfies this through installer wiring.
type Downloader interface {
	Download(ctx context.Context, url, path string) error
}

// Runner executes the ibm-pak plugin with an explicit environment.
// Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Client downloads CASE archives through the oc-ibm_pak plugin and
// prepares the catalog-source manifests they contain.
type Client struct {
	workDir    string
	runner     Runner
	downloader Downloader
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner substitutes the plugin runner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// New creates a CASE download client rooted at workDir.
func New(workDir string, downloader Downloader, logger *slog.Logger, options ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		workDir:    workDir,
		runner:     execRunner{},
		downloader: downloader,
		logger:     logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// PluginPath returns the location of the oc-ibm_pak binary.
func (c *Client) PluginPath() string {
	return filepath.Join(c.workDir, pluginBinary)
}

// EnsurePlugin makes the oc-ibm_pak plugin available, downloading
// and extracting the release tarball when missing.
func (c *Client) EnsurePlugin(ctx context.Context) error {
	if _, err := os.Stat(c.PluginPath()); err == nil {
		return nil
	}

	osName := runtime.GOOS
	arch := runtime.GOARCH
	url := fmt.Sprintf(releaseURLFormat, PluginVersion, osName, arch)
	archive := filepath.Join(c.workDir, pluginBinary+".tar.gz")

	c.logger.Info("downloading ibm-pak plugin", slog.String("url", url))
	if err := c.downloader.Download(ctx, url, archive); err != nil {
		return fmt.Errorf("downloading ibm-pak: %w", err)
	}

	if err := extractTarGz(archive, c.workDir); err != nil {
		return fmt.Errorf("extracting ibm-pak: %w", err)
	}

	extracted := filepath.Join(c.workDir, fmt.Sprintf("%s-%s-%s", pluginBinary, osName, arch))
	if err := os.Rename(extracted, c.PluginPath()); err != nil {
		return fmt.Errorf("installing ibm-pak binary: %w", err)
	}

	return os.Remove(archive)
}

// Reset removes any previous CASE downloads so a run starts clean.
func (c *Client) Reset() error {
	dir := filepath.Join(c.workDir, downloadDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

// Download fetches the CASE archive for one operator and generates
// its mirror manifests. The entry is updated in place with the
// catalog-source files found and, when the docs snippet did not name
// one, the catalog source declared by the CASE.
func (c *Client) Download(ctx context.Context, entry *operator.Entry) error {
	if entry.CaseName == "" || entry.CaseVersion == "" {
		return fmt.Errorf("operator %s has no CASE reference", entry.Name)
	}

	env := []string{"IBMPAK_HOME=" + c.workDir}

	c.logger.Info("downloading CASE",
		slog.String("operator", entry.Name),
		slog.String("case", entry.BundleRef()))

	if out, err := c.runner.Run(ctx, env, c.PluginPath(), "get", entry.CaseName, "--version", entry.CaseVersion); err != nil {
		return fmt.Errorf("ibm-pak get %s: %w (output: %s)", entry.BundleRef(), err, strings.TrimSpace(string(out)))
	}

	if out, err := c.runner.Run(ctx, env, c.PluginPath(), "generate", "mirror-manifests", entry.CaseName, catalogMirrorReg, "--version", entry.CaseVersion); err != nil {
		return fmt.Errorf("ibm-pak generate mirror-manifests %s: %w (output: %s)", entry.BundleRef(), err, strings.TrimSpace(string(out)))
	}

	files, names, err := c.prepareCatalogSources(entry.CaseName)
	if err != nil {
		return err
	}

	entry.CatalogFiles = files
	if entry.CatalogSource == "" && len(names) > 0 {
		entry.CatalogSource = names[0]
	}

	return nil
}

// prepareCatalogSources finds the catalog-sources manifests produced
// for a CASE, strips their namespace fields so the applier controls
// placement, and returns the file paths and declared catalog source
// names.
func (c *Client) prepareCatalogSources(caseName string) ([]string, []string, error) {
	mirrorDir := filepath.Join(c.workDir, downloadDir, "data", "mirror", caseName)

	var files []string
	err := filepath.WalkDir(mirrorDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasPrefix(d.Name(), catsrcFilePrefix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking mirror manifests for %s: %w", caseName, err)
	}
	sort.Strings(files)

	var names []string
	for _, path := range files {
		fileNames, err := stripNamespaces(path)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, fileNames...)
		c.logger.Debug("prepared catalog-sources file", slog.String("file", path))
	}

	return files, names, nil
}

// stripNamespaces rewrites a catalog-sources manifest without its
// namespace lines and returns the catalog source names it declares.
func stripNamespaces(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var out bytes.Buffer
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "namespace:") {
			continue
		}
		if strings.HasPrefix(trimmed, "name:") {
			names = append(names, strings.TrimSpace(strings.TrimPrefix(trimmed, "name:")))
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", path, err)
	}

	return names, nil
}
