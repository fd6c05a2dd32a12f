package docs

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	// The IBM docs site rejects most user agents; curl is known to
	// pass.
	userAgent = "curl/8.6.0"

	defaultBaseURL = "https://www.ibm.com/docs/en/cloud-paks/cp-integration"

	defaultTimeout               = 60 * time.Second
	defaultConnectTimeout        = 10 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
)

// FetchError reports a failed documentation page retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the versioned CP4I documentation pages. It holds
// no mutable state beyond the HTTP client and is safe to reuse.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBaseURL overrides the documentation base URL.
func WithBaseURL(url string) FetcherOption {
	return func(f *Fetcher) {
		f.baseURL = url
	}
}

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a fetcher with bounded transport timeouts.
func NewFetcher(options ...FetcherOption) *Fetcher {
	f := &Fetcher{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: defaultConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
				ResponseHeaderTimeout: defaultResponseHeaderTimeout,
				ForceAttemptHTTP2:     true,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}

	for _, opt := range options {
		opt(f)
	}

	return f
}

// InstallPageURL returns the URL of the CLI-install page for a
// version. The page lists every operator with its subscription
// snippet.
func (f *Fetcher) InstallPageURL(version string) string {
	return fmt.Sprintf("%s/%s?topic=operators-installing-by-using-cli", f.baseURL, version)
}

// CatalogPageURL returns the URL of the catalog-sources page for a
// version. The page lists the CASE name and version per operator.
func (f *Fetcher) CatalogPageURL(version string) string {
	return fmt.Sprintf("%s/%s?topic=images-adding-catalog-sources-openshift-cluster", f.baseURL, version)
}

// FetchInstallPage retrieves the raw CLI-install page content.
func (f *Fetcher) FetchInstallPage(ctx context.Context, version string) ([]byte, error) {
	return f.get(ctx, f.InstallPageURL(version))
}

// FetchCatalogPage retrieves the raw catalog-sources page content.
func (f *Fetcher) FetchCatalogPage(ctx context.Context, version string) ([]byte, error) {
	return f.get(ctx, f.CatalogPageURL(version))
}

// Download fetches a URL and writes the body to path. Used for the
// installer bundle artefacts referenced by extracted metadata.
func (f *Fetcher) Download(ctx context.Context, url, path string) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return body, nil
}
