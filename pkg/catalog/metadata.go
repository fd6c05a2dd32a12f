package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/containers/image/v5/docker"
	"github.com/containers/image/v5/types"
	"github.com/opencontainers/go-digest"
	"github.com/operator-framework/operator-registry/alpha/declcfg"
	"github.com/operator-framework/operator-registry/pkg/containertools"
	"github.com/operator-framework/operator-registry/pkg/image"
	"github.com/operator-framework/operator-registry/pkg/image/execregistry"
	"github.com/sirupsen/logrus"
)

// ImageRef is a parsed container image reference.
type ImageRef struct {
	Registry   string        // e.g. icr.io
	Namespace  string        // e.g. cpopen
	Repository string        // e.g. ibm-mq-catalog
	Tag        string        // e.g. 3.1.0
	Digest     digest.Digest // set when the reference is digest-based
}

// ParseImageRef parses an image reference into its components.
func ParseImageRef(imageRef string) (ImageRef, error) {
	imageRef = strings.TrimPrefix(imageRef, "docker://")

	var ref ImageRef
	baseRef := imageRef
	if idx := strings.Index(baseRef, "@"); idx != -1 {
		digestStr := baseRef[idx+1:]
		baseRef = baseRef[:idx]
		d, err := digest.Parse(digestStr)
		if err != nil {
			return ImageRef{}, fmt.Errorf("parsing digest in %s: %w", imageRef, err)
		}
		ref.Digest = d
	}

	if idx := strings.LastIndex(baseRef, ":"); idx != -1 && !strings.Contains(baseRef[idx:], "/") {
		ref.Tag = baseRef[idx+1:]
		baseRef = baseRef[:idx]
	}

	pathParts := strings.Split(baseRef, "/")
	if len(pathParts) < 2 {
		return ImageRef{}, fmt.Errorf("invalid image reference format: %s", imageRef)
	}

	if strings.Contains(pathParts[0], ".") || strings.Contains(pathParts[0], ":") {
		ref.Registry = pathParts[0]
		pathParts = pathParts[1:]
	} else {
		ref.Registry = "docker.io"
	}

	ref.Repository = pathParts[len(pathParts)-1]
	if len(pathParts) > 1 {
		ref.Namespace = strings.Join(pathParts[:len(pathParts)-1], "/")
	}

	return ref, nil
}

// String returns the reference with its tag or digest.
func (r ImageRef) String() string {
	var b strings.Builder
	b.WriteString(r.Registry)
	if r.Namespace != "" {
		b.WriteString("/")
		b.WriteString(r.Namespace)
	}
	b.WriteString("/")
	b.WriteString(r.Repository)
	if r.Digest != "" {
		b.WriteString("@")
		b.WriteString(string(r.Digest))
	} else if r.Tag != "" {
		b.WriteString(":")
		b.WriteString(r.Tag)
	}
	return b.String()
}

// DigestRef returns the digest-pinned form of the reference. The
// digest must have been resolved already.
func (r ImageRef) DigestRef() string {
	pinned := r
	pinned.Tag = ""
	return pinned.String()
}

// ResolveDigest fetches the manifest for a tag-based reference and
// returns the same reference pinned to its digest. Digest-based
// references are returned unchanged.
func ResolveDigest(ctx context.Context, imageRef string) (string, error) {
	ref, err := ParseImageRef(imageRef)
	if err != nil {
		return "", err
	}
	if ref.Digest != "" {
		return ref.DigestRef(), nil
	}

	dockerRef, err := docker.ParseReference("//" + ref.String())
	if err != nil {
		return "", fmt.Errorf("parsing image reference: %w", err)
	}

	src, err := dockerRef.NewImageSource(ctx, &types.SystemContext{})
	if err != nil {
		return "", fmt.Errorf("creating image source: %w", err)
	}
	defer src.Close()

	manifestBlob, _, err := src.GetManifest(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("getting manifest: %w", err)
	}

	ref.Digest = digest.FromBytes(manifestBlob)
	return ref.DigestRef(), nil
}

// PackageChannels lists the channels a catalog image declares for a
// package, plus the package's default channel. The catalog image is
// pulled and unpacked with podman or docker, whichever is available.
func PackageChannels(ctx context.Context, imageRef, packageName string) (channels []string, defaultChannel string, err error) {
	tmpDir, err := os.MkdirTemp("", "catalog-extract-*")
	if err != nil {
		return nil, "", fmt.Errorf("creating temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	logger := logrus.NewEntry(logrus.New())
	logger.Logger.SetLevel(logrus.ErrorLevel) // Minimise logging noise.

	registry, err := execregistry.NewRegistry(containertools.PodmanTool, logger)
	if err != nil {
		registry, err = execregistry.NewRegistry(containertools.DockerTool, logger)
		if err != nil {
			return nil, "", fmt.Errorf("creating container registry client: %w", err)
		}
	}
	defer registry.Destroy()

	imgRef := image.SimpleReference(imageRef)

	if err := registry.Pull(ctx, imgRef); err != nil {
		return nil, "", fmt.Errorf("pulling catalog image: %w", err)
	}

	if err := registry.Unpack(ctx, imgRef, tmpDir); err != nil {
		return nil, "", fmt.Errorf("unpacking catalog image: %w", err)
	}

	labels, err := registry.Labels(ctx, imgRef)
	if err != nil {
		return nil, "", fmt.Errorf("getting image labels: %w", err)
	}

	configsDir := "/configs" // Default location.
	if loc, ok := labels[containertools.ConfigsLocationLabel]; ok {
		configsDir = loc
	}

	configsPath := filepath.Join(tmpDir, configsDir)
	if _, err := os.Stat(configsPath); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("configs directory not found at %s", configsPath)
	}

	cfg, err := declcfg.LoadFS(ctx, os.DirFS(configsPath))
	if err != nil {
		return nil, "", fmt.Errorf("loading FBC catalog from %s: %w", configsPath, err)
	}

	var pkg *declcfg.Package
	for _, p := range cfg.Packages {
		if p.Name == packageName {
			pkg = &p
			break
		}
	}
	if pkg == nil {
		return nil, "", fmt.Errorf("package %s not found in catalog %s", packageName, imageRef)
	}

	for _, ch := range cfg.Channels {
		if ch.Package == packageName {
			channels = append(channels, ch.Name)
		}
	}
	if len(channels) == 0 {
		return nil, "", fmt.Errorf("no channels found for package %s in catalog %s", packageName, imageRef)
	}

	defaultChannel = pkg.DefaultChannel
	if defaultChannel == "" {
		defaultChannel = channels[0]
	}

	return channels, defaultChannel, nil
}

// VerifyChannel confirms the channel extracted from the docs exists
// in the catalog image for the given package.
func VerifyChannel(ctx context.Context, imageRef, packageName, channel string) error {
	channels, _, err := PackageChannels(ctx, imageRef, packageName)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if ch == channel {
			return nil
		}
	}
	return fmt.Errorf("channel %s not declared for package %s in catalog %s (available: %s)",
		channel, packageName, imageRef, strings.Join(channels, ", "))
}
