package operator

import (
	"strings"
	"testing"
)

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr string
	}{
		{
			name: "complete entry",
			entry: Entry{
				FriendlyName: "IBM MQ",
				Name:         "ibm-mq",
				Channel:      "v3.1",
				CaseName:     "ibm-mq",
				CaseVersion:  "3.1.0",
			},
		},
		{
			name:    "missing literal name",
			entry:   Entry{FriendlyName: "IBM MQ", Channel: "v3.1"},
			wantErr: "no literal name",
		},
		{
			name:    "missing channel",
			entry:   Entry{Name: "ibm-mq", CaseName: "ibm-mq", CaseVersion: "3.1.0"},
			wantErr: "no channel",
		},
		{
			name:    "missing CASE version",
			entry:   Entry{Name: "ibm-mq", Channel: "v3.1", CaseName: "ibm-mq"},
			wantErr: "no CASE reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEntryCatalogImage(t *testing.T) {
	entry := Entry{Name: "ibm-mq", CaseName: "ibm-mq", CaseVersion: "3.1.0"}
	want := "icr.io/cpopen/ibm-mq-catalog:3.1.0"
	if got := entry.CatalogImage(); got != want {
		t.Errorf("CatalogImage() = %q, want %q", got, want)
	}

	entry.PinnedImage = "icr.io/cpopen/ibm-mq-catalog@sha256:abc"
	if got := entry.CatalogImage(); got != entry.PinnedImage {
		t.Errorf("CatalogImage() = %q, want pinned %q", got, entry.PinnedImage)
	}
}

func TestEntryCatalogSourceName(t *testing.T) {
	entry := Entry{Name: "ibm-mq", CatalogSource: "ibmmq-operator-catalogsource"}
	if got := entry.CatalogSourceName(); got != "ibmmq-operator-catalogsource" {
		t.Errorf("CatalogSourceName() = %q, want declared source", got)
	}

	entry.CatalogSource = ""
	if got := entry.CatalogSourceName(); got != "ibm-mq-catalog" {
		t.Errorf("CatalogSourceName() = %q, want derived ibm-mq-catalog", got)
	}
}

func testSet() *Set {
	return NewSet([]Entry{
		{Name: "ibm-apiconnect", Channel: "v5.2", CaseName: "ibm-apiconnect", CaseVersion: "5.2.0"},
		{Name: "datapower-operator", Channel: "v1.11", CaseName: "ibm-datapower-operator", CaseVersion: "1.11.0"},
		{Name: "ibm-mq", Channel: "v3.1", CaseName: "ibm-mq", CaseVersion: "3.1.0"},
		{Name: "ibm-eventstreams", Channel: "v3.5", CaseName: "ibm-eventstreams", CaseVersion: "3.5.0"},
		{Name: "ibm-eem-operator", Channel: "v11.3", CaseName: "ibm-eventendpointmanagement", CaseVersion: "11.3.0"},
	})
}

func TestSetFilter(t *testing.T) {
	tests := []struct {
		name      string
		selection []string
		want      []string
		wantErr   bool
	}{
		{
			name:      "all prunes superseded operators",
			selection: []string{"all"},
			want:      []string{"ibm-apiconnect", "ibm-mq", "ibm-eventstreams"},
		},
		{
			name:      "empty selection means all",
			selection: nil,
			want:      []string{"ibm-apiconnect", "ibm-mq", "ibm-eventstreams"},
		},
		{
			name:      "explicit selection keeps order",
			selection: []string{"ibm-mq"},
			want:      []string{"ibm-mq"},
		},
		{
			name:      "datapower alone survives",
			selection: []string{"datapower-operator"},
			want:      []string{"datapower-operator"},
		},
		{
			name:      "datapower pruned when apiconnect selected",
			selection: []string{"ibm-apiconnect", "datapower-operator"},
			want:      []string{"ibm-apiconnect"},
		},
		{
			name:      "unknown operator",
			selection: []string{"no-such-operator"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testSet().Filter(tt.selection)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Filter() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Filter() error: %v", err)
			}

			names := got.Names()
			if len(names) != len(tt.want) {
				t.Fatalf("Filter() kept %v, want %v", names, tt.want)
			}
			for i := range names {
				if names[i] != tt.want[i] {
					t.Errorf("Filter()[%d] = %s, want %s", i, names[i], tt.want[i])
				}
			}
		})
	}
}
