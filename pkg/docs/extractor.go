package docs

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

// ExtractionError reports a total parse failure: the documentation
// content did not match the expected layout at all. Pages that parse
// but yield no operators are an empty, valid result instead.
type ExtractionError struct {
	Layout string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting operator metadata (layout %s): %v", e.Layout, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Result holds the outcome of one extraction run.
type Result struct {
	Operators *operator.Set
	Skipped   []operator.Skipped
}

// Extractor turns raw documentation content into operator entries
// using a pluggable page layout. Identical input always produces an
// identical ordered result.
type Extractor struct {
	layout PageLayout
	logger *slog.Logger
}

// NewExtractor creates an extractor for the given layout.
func NewExtractor(layout PageLayout, logger *slog.Logger) *Extractor {
	if layout == nil {
		layout = NewStandardLayout()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{layout: layout, logger: logger}
}

// Extract parses the two raw documentation pages into an ordered
// operator set. Entries missing a required field are excluded and
// reported in the result, not defaulted.
func (e *Extractor) Extract(installHTML, catalogHTML []byte) (*Result, error) {
	install, err := goquery.NewDocumentFromReader(bytes.NewReader(installHTML))
	if err != nil {
		return nil, &ExtractionError{Layout: e.layout.Name(), Err: fmt.Errorf("parsing CLI-install page: %w", err)}
	}

	catalog, err := goquery.NewDocumentFromReader(bytes.NewReader(catalogHTML))
	if err != nil {
		return nil, &ExtractionError{Layout: e.layout.Name(), Err: fmt.Errorf("parsing catalog-sources page: %w", err)}
	}

	entries, skipped, err := e.layout.Extract(install, catalog)
	if err != nil {
		return nil, &ExtractionError{Layout: e.layout.Name(), Err: err}
	}

	var valid []operator.Entry
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			skipped = append(skipped, operator.Skipped{
				Name:   entry.Name,
				Reason: err.Error(),
			})
			continue
		}
		valid = append(valid, entry)
	}

	for _, s := range skipped {
		e.logger.Warn("skipping operator", slog.String("name", s.Name), slog.String("reason", s.Reason))
	}

	return &Result{
		Operators: operator.NewSet(valid),
		Skipped:   skipped,
	}, nil
}
