package catalog

import (
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestParseImageRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ImageRef
		wantErr bool
	}{
		{
			name:  "tagged catalog image",
			input: "icr.io/cpopen/ibm-mq-operator-catalog:3.2.1",
			want: ImageRef{
				Registry:   "icr.io",
				Namespace:  "cpopen",
				Repository: "ibm-mq-operator-catalog",
				Tag:        "3.2.1",
			},
		},
		{
			name:  "digest reference",
			input: "icr.io/cpopen/ibm-apiconnect-catalog@sha256:0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
			want: ImageRef{
				Registry:   "icr.io",
				Namespace:  "cpopen",
				Repository: "ibm-apiconnect-catalog",
				Digest:     digest.Digest("sha256:0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b"),
			},
		},
		{
			name:  "docker transport prefix",
			input: "docker://icr.io/cpopen/ibm-mq-operator-catalog:latest",
			want: ImageRef{
				Registry:   "icr.io",
				Namespace:  "cpopen",
				Repository: "ibm-mq-operator-catalog",
				Tag:        "latest",
			},
		},
		{
			name:  "registry with port",
			input: "localhost:5000/cpopen/ibm-mq-operator-catalog:dev",
			want: ImageRef{
				Registry:   "localhost:5000",
				Namespace:  "cpopen",
				Repository: "ibm-mq-operator-catalog",
				Tag:        "dev",
			},
		},
		{
			name:  "no registry defaults to docker.io",
			input: "library/busybox:1.36",
			want: ImageRef{
				Registry:   "docker.io",
				Namespace:  "library",
				Repository: "busybox",
				Tag:        "1.36",
			},
		},
		{
			name:  "nested namespace",
			input: "quay.io/org/team/catalog:v1",
			want: ImageRef{
				Registry:   "quay.io",
				Namespace:  "org/team",
				Repository: "catalog",
				Tag:        "v1",
			},
		},
		{
			name:    "bare repository",
			input:   "busybox",
			wantErr: true,
		},
		{
			name:    "malformed digest",
			input:   "icr.io/cpopen/catalog@sha256:short",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseImageRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseImageRef(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseImageRef(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseImageRef(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestImageRefString(t *testing.T) {
	ref := ImageRef{
		Registry:   "icr.io",
		Namespace:  "cpopen",
		Repository: "ibm-mq-operator-catalog",
		Tag:        "3.2.1",
	}
	if got := ref.String(); got != "icr.io/cpopen/ibm-mq-operator-catalog:3.2.1" {
		t.Errorf("String() = %q", got)
	}

	ref.Digest = digest.Digest("sha256:0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	want := "icr.io/cpopen/ibm-mq-operator-catalog@" + string(ref.Digest)
	if got := ref.String(); got != want {
		t.Errorf("String() with digest = %q, want %q", got, want)
	}
	if got := ref.DigestRef(); got != want {
		t.Errorf("DigestRef() = %q, want %q", got, want)
	}
}
