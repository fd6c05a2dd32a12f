package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/installer"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/manifests"
	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

// DefaultManifestsDir is where generated manifests land unless
// overridden.
const DefaultManifestsDir = "auto-generated/manifests"

// errUsage marks flag combinations the tool refuses to run with.
var errUsage = errors.New("invalid flag combination")

// GlobalContext contains global dependencies injected into commands.
type GlobalContext struct {
	Context context.Context
	Logger  *slog.Logger
}

// CLI defines the command-line interface structure.
type CLI struct {
	Deploy DeployCmd `cmd:"deploy" help:"Discover operators for a CP4I version, download their CASEs, and generate and apply the install manifests"`
	List   ListCmd   `cmd:"list" help:"List the operators documented for a CP4I version"`

	// Global flags
	LogLevel  string `env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)"`
	LogFormat string `env:"LOG_FORMAT" default:"text" help:"Log format (text, json)"`
}

// DeployCmd runs the full pipeline for one CP4I version.
type DeployCmd struct {
	Version        string        `required:"" help:"CP4I version, e.g. 16.1.0"`
	Operator       []string      `short:"o" help:"Operator(s) to install; repeatable (default: all)"`
	TargetNS       string        `default:"openshift-operators" help:"Namespace for operator subscriptions"`
	Namespaced     bool          `help:"Apply catalog sources to the target namespace instead of openshift-marketplace"`
	OutputDir      string        `default:"${default_manifests_dir}" help:"Output directory for generated manifests"`
	WorkDir        string        `default:"." help:"Working directory for the ibm-pak plugin and CASE downloads"`
	SkipApply      bool          `help:"Generate and write manifests without applying them"`
	SkipDownload   bool          `help:"Skip downloading CASE archives"`
	PinDigests     bool          `help:"Resolve catalog image tags to digests"`
	VerifyChannels bool          `help:"Verify extracted channels against the catalog images (needs podman or docker)"`
	NonInteractive bool          `help:"Do not ask for confirmation before applying"`
	SettleDelay    time.Duration `default:"30s" help:"Pause after each applied subscription"`
}

// ListCmd shows the operators discovered for a version.
type ListCmd struct {
	Version  string   `required:"" help:"CP4I version, e.g. 16.1.0"`
	Operator []string `short:"o" help:"Restrict the listing to the named operator(s)"`
	Format   string   `default:"text" enum:"text,json" help:"Output format (text, json)"`
}

// namespaces translates the namespace flags into the run's namespace
// targets: the catalog-source namespace plus the subscription
// namespace.
func (r *DeployCmd) namespaces() ([]string, error) {
	catsrcNS := manifests.MarketplaceNamespace
	if r.Namespaced {
		catsrcNS = r.TargetNS
		if catsrcNS == manifests.OperatorsNamespace {
			return nil, fmt.Errorf("%w: --namespaced requires --target-ns pointing at a dedicated namespace", errUsage)
		}
	}
	return []string{catsrcNS, r.TargetNS}, nil
}

func (r *DeployCmd) Run(globals *GlobalContext) error {
	if filepath.Clean(r.OutputDir) == "." {
		return fmt.Errorf("output directory cannot be the current working directory, please specify a named subdirectory like '%s'", DefaultManifestsDir)
	}

	namespaces, err := r.namespaces()
	if err != nil {
		return err
	}

	if err := os.RemoveAll(r.OutputDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cleaning output directory: %w", err)
	}

	config := installer.Config{
		Version:        r.Version,
		Operators:      r.Operator,
		Namespaces:     namespaces,
		OutputDir:      r.OutputDir,
		WorkDir:        r.WorkDir,
		SkipApply:      r.SkipApply,
		SkipDownload:   r.SkipDownload,
		PinDigests:     r.PinDigests,
		VerifyChannels: r.VerifyChannels,
		SettleDelay:    r.SettleDelay,
	}

	var options []installer.Option
	if !r.NonInteractive && !r.SkipApply {
		options = append(options, installer.WithConfirm(confirmApply))
	}

	inst := installer.New(config, globals.Logger, options...)
	summary, runErr := inst.Run(globals.Context)

	output, err := installer.FormatSummary(summary, "text")
	if err != nil {
		return err
	}
	fmt.Print(output)

	return runErr
}

func (r *ListCmd) Run(globals *GlobalContext) error {
	config := installer.Config{
		Version:   r.Version,
		Operators: r.Operator,
	}

	inst := installer.New(config, globals.Logger)
	result, err := inst.Discover(globals.Context)
	if err != nil {
		return err
	}

	if r.Format == "json" {
		output, err := formatOperatorsJSON(result.Operators.Entries(), result.Skipped)
		if err != nil {
			return fmt.Errorf("formatting JSON output: %w", err)
		}
		fmt.Println(output)
	} else {
		formatOperatorsText(r.Version, result.Operators.Entries(), result.Skipped)
	}

	return nil
}

func formatOperatorsText(version string, entries []operator.Entry, skipped []operator.Skipped) {
	fmt.Printf("Operators for CP4I version %s\n", version)
	for _, e := range entries {
		fmt.Printf("%s (%s): CASE %s, channel %s\n", e.Name, e.FriendlyName, e.BundleRef(), e.Channel)
	}
	for _, s := range skipped {
		fmt.Printf("%s: skipped (%s)\n", s.Name, s.Reason)
	}
}

func formatOperatorsJSON(entries []operator.Entry, skipped []operator.Skipped) (string, error) {
	type output struct {
		Count     int                `json:"count"`
		Operators []operator.Entry   `json:"operators"`
		Skipped   []operator.Skipped `json:"skipped,omitempty"`
	}

	out := output{
		Count:     len(entries),
		Operators: entries,
		Skipped:   skipped,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// confirmApply asks before anything touches the cluster.
func confirmApply() (bool, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Press 'a' to apply the manifests, 'c' to continue without applying, Ctrl-C to abort: ")
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		switch strings.TrimSpace(answer) {
		case "a":
			return true, nil
		case "c":
			return false, nil
		}
	}
}

func main() {
	var cli CLI

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kongCtx := kong.Parse(&cli,
		kong.Name("cp4i-installer"),
		kong.Description("Install IBM Cloud Pak for Integration operators from the product documentation"),
		kong.UsageOnError(),
		kong.Vars{
			"default_manifests_dir": DefaultManifestsDir,
		},
	)

	logger := setupLogger(cli.LogLevel, cli.LogFormat)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	globals := &GlobalContext{
		Context: ctx,
		Logger:  logger,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- kongCtx.Run(globals)
	}()

	select {
	case sig := <-sigChan:
		logger.Debug("received signal", slog.String("signal", sig.String()))
		cancel()
		exitOnError(logger, <-errChan)
	case err := <-errChan:
		exitOnError(logger, err)
	}
}

func exitOnError(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logger.Debug("command failed", slog.String("error", err.Error()))
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	os.Exit(1)
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
