// Package oci fetches shared schema bundles from an OCI registry so a
// schema's `include:` directive can reference a published package of
// type definitions instead of only a local file.
package oci

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/regclient/regclient"
	"github.com/regclient/regclient/types/manifest"
	"github.com/regclient/regclient/types/ref"
)

// IsOCIPath reports whether path looks like an OCI reference rather than a
// local filesystem path: it does not exist on disk, and it parses as a
// valid image reference.
func IsOCIPath(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return false
	}
	_, err := ref.New(path)
	return err == nil
}

// PullBundle fetches the first layer of the OCI artifact at ref and returns
// its raw bytes — expected to be a tar archive of one or more schema
// documents forming a shared include bundle.
func PullBundle(ctx context.Context, path string) (*bytes.Buffer, error) {
	r, err := ref.New(path)
	if err != nil {
		return nil, fmt.Errorf("parse oci ref %q: %w", path, err)
	}

	rc := regclient.New()
	defer rc.Close(ctx, r)

	m, err := rc.ManifestGet(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}

	mi, ok := m.(manifest.Imager)
	if !ok {
		return nil, fmt.Errorf("manifest for %q does not describe an image", path)
	}

	layers, err := mi.GetLayers()
	if err != nil {
		return nil, fmt.Errorf("get layers: %w", err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers in bundle %q", path)
	}

	layer := layers[0]
	if err := layer.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("layer has invalid digest: %w", err)
	}

	rdr, err := rc.BlobGet(ctx, r, layer)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	defer rdr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rdr); err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return &buf, nil
}

// TarReader wraps raw as a tar reader, transparently decompressing it
// first if it looks gzip-compressed. [PullBundle]'s result is a bundle
// layer's raw bytes, which may be either form depending on how the
// artifact was published.
func TarReader(raw []byte) (*tar.Reader, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		return tar.NewReader(gz), nil
	}
	return tar.NewReader(bytes.NewReader(raw)), nil
}
