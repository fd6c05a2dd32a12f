package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/catalog"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/cluster"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/docs"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/manifests"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/pak"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/writer"
)

// ErrLegacyVersion rejects the pre-16.x version scheme.
var ErrLegacyVersion = errors.New("versions 202x are not supported, use the 202x branch instead")

// ValidateVersion checks a requested CP4I version string.
func ValidateVersion(version string) error {
	if version == "" {
		return errors.New("version is required")
	}
	if strings.HasPrefix(version, "202") {
		return ErrLegacyVersion
	}
	return nil
}

// Config holds every knob for one run. All values flow in
// explicitly; nothing is read from ambient globals.
type Config struct {
	Version        string
	Operators      []string // Selection; empty or "all" keeps everything
	Namespaces     []string // Target namespaces; empty means the conventional pair
	OutputDir      string
	WorkDir        string // ibm-pak home
	SkipApply      bool   // Generate and write only
	SkipDownload   bool   // Skip CASE downloads
	PinDigests     bool   // Resolve catalog image tags to digests
	VerifyChannels bool   // Check extracted channels against the catalog images
	SettleDelay    time.Duration
}

// Summary reports what a run did. The orchestrator aggregates it
// across stages so a late failure never hides earlier results.
type Summary struct {
	RunID     string             `json:"run_id"`
	Version   string             `json:"version"`
	Operators []operator.Entry   `json:"operators"`
	Skipped   []operator.Skipped `json:"skipped,omitempty"`
	Written   []string           `json:"written,omitempty"`
	Applied   []string           `json:"applied,omitempty"`
	Failed    string             `json:"failed,omitempty"`
}

// Installer wires the pipeline: fetch, extract, download, generate,
// write, apply. One instance per run.
type Installer struct {
	config    Config
	fetcher   *docs.Fetcher
	extractor *docs.Extractor
	pak       *pak.Client
	cluster   *cluster.Client
	confirm   func() (bool, error)
	logger    *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithFetcher substitutes the documentation fetcher.
func WithFetcher(f *docs.Fetcher) Option {
	return func(i *Installer) {
		i.fetcher = f
	}
}

// WithExtractor substitutes the metadata extractor.
func WithExtractor(e *docs.Extractor) Option {
	return func(i *Installer) {
		i.extractor = e
	}
}

// WithCluster substitutes the cluster client.
func WithCluster(c *cluster.Client) Option {
	return func(i *Installer) {
		i.cluster = c
	}
}

// WithPak substitutes the CASE download client.
func WithPak(p *pak.Client) Option {
	return func(i *Installer) {
		i.pak = p
	}
}

// WithConfirm sets the confirmation hook invoked before applying.
// Returning false skips the apply stage without error.
func WithConfirm(confirm func() (bool, error)) Option {
	return func(i *Installer) {
		i.confirm = confirm
	}
}

// New creates an installer for one run.
func New(config Config, logger *slog.Logger, options ...Option) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Namespaces) == 0 {
		config.Namespaces = manifests.DefaultNamespaces()
	}

	i := &Installer{
		config: config,
		logger: logger,
	}
	for _, opt := range options {
		opt(i)
	}

	if i.fetcher == nil {
		i.fetcher = docs.NewFetcher()
	}
	if i.extractor == nil {
		i.extractor = docs.NewExtractor(docs.NewStandardLayout(), logger)
	}
	if i.cluster == nil {
		i.cluster = cluster.New(logger, cluster.WithSettleDelay(config.SettleDelay))
	}
	if i.pak == nil {
		i.pak = pak.New(config.WorkDir, i.fetcher, logger)
	}
	return i
}

// Discover runs the fetch and extract stages only and returns the
// filtered operator set. Used by the list command and as the first
// half of Run.
func (i *Installer) Discover(ctx context.Context) (*docs.Result, error) {
	if err := ValidateVersion(i.config.Version); err != nil {
		return nil, err
	}

	i.logger.Info("fetching documentation",
		slog.String("version", i.config.Version),
		slog.String("url", i.fetcher.InstallPageURL(i.config.Version)))

	installHTML, err := i.fetcher.FetchInstallPage(ctx, i.config.Version)
	if err != nil {
		return nil, fmt.Errorf("is version %s valid? %w", i.config.Version, err)
	}
	catalogHTML, err := i.fetcher.FetchCatalogPage(ctx, i.config.Version)
	if err != nil {
		return nil, fmt.Errorf("is version %s valid? %w", i.config.Version, err)
	}

	result, err := i.extractor.Extract(installHTML, catalogHTML)
	if err != nil {
		return nil, err
	}

	filtered, err := result.Operators.Filter(i.config.Operators)
	if err != nil {
		return nil, err
	}
	result.Operators = filtered

	return result, nil
}

// Run executes the full pipeline and returns a summary alongside any
// stage error. The summary is populated as far as the run got.
func (i *Installer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Version: i.config.Version,
	}
	logger := i.logger.With(slog.String("run_id", summary.RunID))

	result, err := i.Discover(ctx)
	if err != nil {
		return summary, err
	}
	summary.Skipped = result.Skipped

	entries := result.Operators.Entries()
	if err := i.resolveImages(ctx, entries); err != nil {
		return summary, err
	}

	if !i.config.SkipDownload {
		if err := i.downloadCases(ctx, entries); err != nil {
			return summary, err
		}
	}
	summary.Operators = entries

	generator := manifests.NewGenerator(manifests.Config{
		Version:    i.config.Version,
		Namespaces: i.config.Namespaces,
	})
	set, err := generator.Generate(operator.NewSet(entries))
	if err != nil {
		return summary, err
	}
	logger.Info("generated manifests", slog.Int("count", set.Len()))

	files, err := writer.New(i.config.OutputDir).WriteAll(set)
	if err != nil {
		return summary, err
	}
	for _, f := range files {
		summary.Written = append(summary.Written, f.Path)
	}

	if i.config.SkipApply {
		return summary, nil
	}

	if i.confirm != nil {
		proceed, err := i.confirm()
		if err != nil {
			return summary, err
		}
		if !proceed {
			logger.Info("apply skipped on user request")
			return summary, nil
		}
	}

	if err := i.cluster.CheckLogin(ctx); err != nil {
		return summary, err
	}
	if err := i.cluster.EnsureNamespaces(ctx, customNamespaces(i.config.Namespaces)); err != nil {
		return summary, err
	}

	applied, err := i.cluster.Apply(ctx, files)
	summary.Applied = applied
	if err != nil {
		var applyErr *cluster.ApplyError
		if errors.As(err, &applyErr) {
			summary.Failed = applyErr.Manifest
		}
		return summary, err
	}

	logger.Info("run complete",
		slog.Int("operators", len(summary.Operators)),
		slog.Int("applied", len(summary.Applied)))
	return summary, nil
}

// resolveImages pins catalog images to digests and verifies channels
// when requested.
func (i *Installer) resolveImages(ctx context.Context, entries []operator.Entry) error {
	if !i.config.PinDigests && !i.config.VerifyChannels {
		return nil
	}

	for idx := range entries {
		entry := &entries[idx]
		imageRef := entry.CatalogImage()

		if i.config.PinDigests {
			pinned, err := catalog.ResolveDigest(ctx, imageRef)
			if err != nil {
				return fmt.Errorf("pinning catalog image for %s: %w", entry.Name, err)
			}
			entry.PinnedImage = pinned
			imageRef = pinned
		}

		if i.config.VerifyChannels {
			if err := catalog.VerifyChannel(ctx, imageRef, entry.Name, entry.Channel); err != nil {
				return fmt.Errorf("verifying channel for %s: %w", entry.Name, err)
			}
		}
	}
	return nil
}

// downloadCases bootstraps the ibm-pak plugin and downloads every
// selected CASE.
func (i *Installer) downloadCases(ctx context.Context, entries []operator.Entry) error {
	if err := i.pak.EnsurePlugin(ctx); err != nil {
		return err
	}
	if err := i.pak.Reset(); err != nil {
		return err
	}
	for idx := range entries {
		if err := i.pak.Download(ctx, &entries[idx]); err != nil {
			return err
		}
	}
	return nil
}

// customNamespaces returns the namespaces that are not part of every
// OpenShift cluster and may need creating.
func customNamespaces(namespaces []string) []string {
	var custom []string
	for _, ns := range namespaces {
		if ns == manifests.MarketplaceNamespace || ns == manifests.OperatorsNamespace {
			continue
		}
		custom = append(custom, ns)
	}
	return custom
}
