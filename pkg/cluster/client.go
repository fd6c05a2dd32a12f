package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/writer"
)

// Runner executes an external command and returns its combined
// output. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return exec.CommandContext(ctx, path, args...).CombinedOutput()
}

// ApplyError reports a failed manifest apply. It carries the
// identity of the manifest that failed and everything applied before
// it; nothing is rolled back.
type ApplyError struct {
	Manifest string
	Applied  []string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying %s (after %d applied): %v", e.Manifest, len(e.Applied), e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Client wraps the oc CLI. The caller's oc context and credentials
// are assumed to be established already.
type Client struct {
	runner      Runner
	logger      *slog.Logger
	ocPath      string
	settleDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRunner substitutes the command runner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithOCPath overrides the oc binary name or path.
func WithOCPath(path string) Option {
	return func(c *Client) {
		c.ocPath = path
	}
}

// WithSettleDelay pauses after each applied subscription to let OLM
// settle before the next one.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) {
		c.settleDelay = d
	}
}

// New creates a cluster client.
func New(logger *slog.Logger, options ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		runner: execRunner{},
		logger: logger,
		ocPath: "oc",
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// CheckLogin verifies oc is installed and logged in to a cluster.
func (c *Client) CheckLogin(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.ocPath, "cluster-info"); err != nil {
		return fmt.Errorf("oc is not logged in, log in to the target cluster first: %w", err)
	}
	return nil
}

// NamespaceExists reports whether the namespace is present.
func (c *Client) NamespaceExists(ctx context.Context, namespace string) bool {
	_, err := c.runner.Run(ctx, c.ocPath, "get", "ns", namespace)
	return err == nil
}

// EnsureNamespaces creates any of the given namespaces that do not
// exist yet.
func (c *Client) EnsureNamespaces(ctx context.Context, namespaces []string) error {
	for _, ns := range namespaces {
		if c.NamespaceExists(ctx, ns) {
			continue
		}
		c.logger.Info("creating namespace", slog.String("namespace", ns))
		if out, err := c.runner.Run(ctx, c.ocPath, "new-project", ns); err != nil {
			return fmt.Errorf("creating namespace %s: %w (output: %s)", ns, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// Apply applies the manifest files in order and returns the IDs of
// every manifest applied. Catalog sources precede subscriptions in
// the input order produced by the generator; the first failure stops
// the run and is returned as an ApplyError, with prior applies left
// in place.
func (c *Client) Apply(ctx context.Context, files []writer.File) ([]string, error) {
	var applied []string

	for _, f := range files {
		args := []string{"apply", "-f", f.Path}
		if ns := f.Manifest.Namespace; ns != "" {
			args = []string{"apply", "-n", ns, "-f", f.Path}
		}

		c.logger.Info("applying manifest",
			slog.String("manifest", f.Manifest.ID()),
			slog.String("file", f.Path))

		out, err := c.runner.Run(ctx, c.ocPath, args...)
		if err != nil {
			return applied, &ApplyError{
				Manifest: f.Manifest.ID(),
				Applied:  applied,
				Err:      fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out))),
			}
		}
		applied = append(applied, f.Manifest.ID())

		if f.Manifest.Kind == "Subscription" && c.settleDelay > 0 {
			c.logger.Info("waiting for subscription to settle",
				slog.Duration("delay", c.settleDelay))
			select {
			case <-time.After(c.settleDelay):
			case <-ctx.Done():
				return applied, &ApplyError{Manifest: f.Manifest.ID(), Applied: applied, Err: ctx.Err()}
			}
		}
	}

	return applied, nil
}
