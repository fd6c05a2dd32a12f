package docs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"sigs.k8s.io/yaml"

	"github.com/cloud-pak-automation/cp4i-installer/pkg/operator"
)

// PageLayout extracts operator entries from a known documentation
// page layout. A docs redesign means a new implementation, not
// changes to the extractor.
type PageLayout interface {
	// Name identifies the layout version.
	Name() string

	// Extract walks both parsed pages and returns the discovered
	// entries in document order, plus entries that lacked a
	// required field. It returns an error only when the expected
	// structural markers are entirely absent.
	Extract(install, catalog *goquery.Document) ([]operator.Entry, []operator.Skipped, error)
}

// catalogSourcesHeading is the section header on the catalog-sources
// page under which the per-operator CASE commands are listed.
const catalogSourcesHeading = "Catalog sources for operators"

// caseCommandPatterns is the pattern set for pulling CASE name and
// version out of the command shown for each operator. Two variants
// exist: the export-based commands used up to 16.1.0, and the direct
// "oc apply" URLs introduced with 16.1.0.
type caseCommandPatterns struct {
	exportName    *regexp.Regexp
	exportVersion *regexp.Regexp
	applyPath     *regexp.Regexp
}

var defaultPatterns = caseCommandPatterns{
	exportName:    regexp.MustCompile(`export .*_NAME=([^\s]+)`),
	exportVersion: regexp.MustCompile(`export .*_VERSION=([^\s]+)`),
	applyPath:     regexp.MustCompile(`/([a-zA-Z0-9_\-]+)/(\d+\.\d+\.\d+)/`),
}

// matchCase extracts (name, version) from a CASE command line.
func (p caseCommandPatterns) matchCase(command string) (string, string, error) {
	if strings.Contains(command, "oc apply") {
		m := p.applyPath.FindStringSubmatch(command)
		if m == nil {
			return "", "", fmt.Errorf("no CASE path in apply command %q", command)
		}
		return m[1], m[2], nil
	}

	name := p.exportName.FindStringSubmatch(command)
	version := p.exportVersion.FindStringSubmatch(command)
	if name == nil || version == nil {
		return "", "", fmt.Errorf("no CASE exports in command %q", command)
	}
	return name[1], version[1], nil
}

// subscriptionSnippet is the shape of the YAML snippet shown under
// each operator bullet on the CLI-install page.
type subscriptionSnippet struct {
	Kind     string `json:"kind"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Spec struct {
		Channel string `json:"channel"`
		Source  string `json:"source"`
	} `json:"spec"`
}

// standardLayout parses the CP4I docs layout used by the 16.x
// releases.
type standardLayout struct {
	patterns caseCommandPatterns
}

// NewStandardLayout returns the layout for the 16.x documentation
// pages.
func NewStandardLayout() PageLayout {
	return &standardLayout{patterns: defaultPatterns}
}

func (l *standardLayout) Name() string {
	return "cp4i-docs-16x"
}

func (l *standardLayout) Extract(install, catalog *goquery.Document) ([]operator.Entry, []operator.Skipped, error) {
	entries, skipped, err := l.extractInstallPage(install)
	if err != nil {
		return nil, nil, err
	}

	cases, err := l.extractCatalogPage(catalog)
	if err != nil {
		return nil, nil, err
	}

	for i := range entries {
		c, ok := cases[entries[i].FriendlyName]
		if !ok {
			continue
		}
		entries[i].CaseName = c.name
		entries[i].CaseVersion = c.version
	}

	return entries, skipped, nil
}

// extractInstallPage walks the CLI-install page. Each operator is a
// bullet whose next code block holds a Subscription snippet; the
// bullet text before the first dash is the friendly name.
func (l *standardLayout) extractInstallPage(doc *goquery.Document) ([]operator.Entry, []operator.Skipped, error) {
	var entries []operator.Entry
	var skipped []operator.Skipped
	seen := make(map[string]bool)

	// Walk bullets and code blocks in document order, pairing each
	// bullet with the code block that follows it.
	var pendingFriendly string
	doc.Find("li, pre").Each(func(_ int, sel *goquery.Selection) {
		if sel.Is("li") {
			text := strings.TrimSpace(sel.Text())
			if text != "" {
				pendingFriendly = strings.TrimSpace(strings.SplitN(text, "-", 2)[0])
			}
			return
		}

		if pendingFriendly == "" {
			return
		}
		friendly := pendingFriendly
		pendingFriendly = ""

		var snippet subscriptionSnippet
		if err := yaml.Unmarshal([]byte(sel.Text()), &snippet); err != nil {
			return
		}
		if snippet.Kind != "Subscription" {
			return
		}
		if seen[snippet.Metadata.Name] {
			return
		}

		entry := operator.Entry{
			FriendlyName:  friendly,
			Name:          snippet.Metadata.Name,
			Channel:       snippet.Spec.Channel,
			CatalogSource: snippet.Spec.Source,
		}

		switch {
		case entry.Name == "":
			skipped = append(skipped, operator.Skipped{
				Name:   friendly,
				Reason: "subscription snippet has no metadata.name",
			})
		case entry.Channel == "":
			skipped = append(skipped, operator.Skipped{
				Name:   entry.Name,
				Reason: "subscription snippet has no spec.channel",
			})
		default:
			seen[entry.Name] = true
			entries = append(entries, entry)
		}
	})

	if doc.Find("pre").Length() == 0 {
		return nil, nil, fmt.Errorf("layout %s: no code blocks found on the CLI-install page", l.Name())
	}

	return entries, skipped, nil
}

type caseRef struct {
	name    string
	version string
}

// extractCatalogPage reads the CASE name and version per friendly
// name from the catalog-sources page.
func (l *standardLayout) extractCatalogPage(doc *goquery.Document) (map[string]caseRef, error) {
	var heading *goquery.Selection
	doc.Find("h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) == catalogSourcesHeading {
			heading = sel
			return false
		}
		return true
	})
	if heading == nil {
		return nil, fmt.Errorf("layout %s: heading %q not found on the catalog-sources page", l.Name(), catalogSourcesHeading)
	}

	cases := make(map[string]caseRef)
	heading.Parent().Find("ul").First().Find("li").Each(func(_ int, sel *goquery.Selection) {
		lines := strings.Split(strings.TrimSpace(sel.Text()), "\n")
		if len(lines) < 2 {
			return
		}

		friendly := strings.TrimSpace(lines[0])
		command := strings.TrimSpace(lines[1])

		name, version, err := l.patterns.matchCase(command)
		if err != nil {
			return
		}
		cases[friendly] = caseRef{name: name, version: version}
	})

	return cases, nil
}
