package operator

import (
	"fmt"
	"strings"
)

// Entry describes one installable operator discovered from the
// product documentation.
type Entry struct {
	FriendlyName  string   `json:"friendly_name"`           // Display name from the docs bullet
	Name          string   `json:"name"`                    // Literal operator package name
	Channel       string   `json:"channel"`                 // Release channel for the subscription
	CatalogSource string   `json:"catalog_source"`          // Catalog source the subscription binds to
	CaseName      string   `json:"case_name,omitempty"`     // CASE archive name
	CaseVersion   string   `json:"case_version,omitempty"`  // CASE archive version
	PinnedImage   string   `json:"pinned_image,omitempty"`  // Digest-pinned catalog image, when resolved
	CatalogFiles  []string `json:"catalog_files,omitempty"` // Downloaded catalog-source manifests
}

// BundleRef returns the CASE locator for the entry, e.g.
// "ibm-mq:3.1.0".
func (e Entry) BundleRef() string {
	if e.CaseName == "" || e.CaseVersion == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", e.CaseName, e.CaseVersion)
}

// catalogImageRepo is the registry path under which IBM publishes
// the per-CASE catalog images.
const catalogImageRepo = "icr.io/cpopen"

// CatalogImage returns the catalog image reference for the entry's
// CASE. PinnedImage takes precedence when a run resolved the tag to
// a digest.
func (e Entry) CatalogImage() string {
	if e.PinnedImage != "" {
		return e.PinnedImage
	}
	if e.CaseName == "" || e.CaseVersion == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s-catalog:%s", catalogImageRepo, e.CaseName, e.CaseVersion)
}

// CatalogSourceName returns the catalog source the subscription
// binds to. Falls back to a name derived from the literal name when
// the docs snippet did not declare one.
func (e Entry) CatalogSourceName() string {
	if e.CatalogSource != "" {
		return e.CatalogSource
	}
	return e.Name + "-catalog"
}

// Validate reports whether the entry carries everything needed to
// generate manifests for it.
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("operator has no literal name (friendly name %q)", e.FriendlyName)
	}
	if e.Channel == "" {
		return fmt.Errorf("operator %s has no channel", e.Name)
	}
	if e.BundleRef() == "" {
		return fmt.Errorf("operator %s has no CASE reference", e.Name)
	}
	return nil
}

// Skipped records an entry excluded from a run together with the
// reason it was excluded.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Set is an ordered collection of operator entries. Order is the
// order of discovery in the documentation and is preserved through
// filtering.
type Set struct {
	entries []Entry
}

// NewSet creates a set from entries, preserving their order.
func NewSet(entries []Entry) *Set {
	return &Set{entries: entries}
}

// Entries returns the entries in order.
func (s *Set) Entries() []Entry {
	return s.entries
}

// Len returns the number of entries.
func (s *Set) Len() int {
	return len(s.entries)
}

// Names returns the literal names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Get returns the entry with the given literal name.
func (s *Set) Get(name string) (Entry, bool) {
	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// supersededBy maps an operator to the operator whose presence makes
// it redundant. Installing both breaks the subordinate one.
var supersededBy = map[string]string{
	"datapower-operator": "ibm-apiconnect",
	"ibm-eem-operator":   "ibm-eventstreams",
}

// Filter restricts the set to the named operators. The selection
// value "all" keeps every entry. Unknown names are an error. Entries
// superseded by another selected entry are pruned.
func (s *Set) Filter(selection []string) (*Set, error) {
	keep := s.entries

	if !containsAll(selection) {
		var filtered []Entry
		for _, name := range selection {
			e, ok := s.Get(name)
			if !ok {
				return nil, fmt.Errorf("operator %q is not a valid operator name (known: %s)", name, strings.Join(s.Names(), ", "))
			}
			filtered = append(filtered, e)
		}
		keep = filtered
	}

	result := &Set{}
	selected := make(map[string]bool, len(keep))
	for _, e := range keep {
		selected[e.Name] = true
	}
	for _, e := range keep {
		if winner, ok := supersededBy[e.Name]; ok && selected[winner] {
			continue
		}
		result.entries = append(result.entries, e)
	}

	return result, nil
}

func containsAll(selection []string) bool {
	if len(selection) == 0 {
		return true
	}
	for _, s := range selection {
		if s == "all" {
			return true
		}
	}
	return false
}
