// Package publish uploads built kernel artifacts to a storage backend,
// optionally xz-compressed, alongside a sha256sum-style checksum file.
package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/storage"
	"github.com/ulikunitz/xz"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the publish package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Options control how artifacts are published
type Options struct {
	// Prefix is prepended to every object key
	Prefix string

	// Compress uploads xz-compressed artifacts with a .xz suffix
	Compress bool

	// PresignExpiry requests download URLs from backends that support them
	PresignExpiry time.Duration

	// Force uploads even when the stored object already matches
	Force bool
}

// Published describes one uploaded artifact
type Published struct {
	Artifact   layout.Artifact `json:"artifact" yaml:"artifact"`
	Key        string          `json:"key" yaml:"key"`
	Size       int64           `json:"size" yaml:"size"`
	SHA256     string          `json:"sha256" yaml:"sha256"`
	Compressed bool            `json:"compressed" yaml:"compressed"`
	URL        string          `json:"url,omitempty" yaml:"url,omitempty"`
	Skipped    bool            `json:"skipped" yaml:"skipped"`
}

// Publisher uploads the final artifacts of a variant
type Publisher struct {
	layout  *layout.Layout
	backend storage.Backend
	opts    Options
}

// New creates a publisher
func New(l *layout.Layout, backend storage.Backend, opts Options) *Publisher {
	return &Publisher{layout: l, backend: backend, opts: opts}
}

// Key returns the object key an artifact is published under
func (p *Publisher) Key(a layout.Artifact) string {
	name := filepath.Base(a.Path)
	if p.opts.Compress {
		name += ".xz"
	}
	return path.Join(p.variantPrefix(a.Variant), name)
}

func (p *Publisher) variantPrefix(v layout.Variant) string {
	return path.Join(p.opts.Prefix, string(v))
}

// Publish uploads every final artifact of v. Nothing is uploaded unless all
// of them exist.
func (p *Publisher) Publish(ctx context.Context, v layout.Variant) ([]Published, error) {
	artifacts := p.layout.Artifacts(v)
	for _, a := range artifacts {
		if !paths.IsFile(a.Path) {
			return nil, errors.ErrArtifactMissing.WithMessagef("%s not found at %s; run `kforge build --variant %s` first", a.Kind, a.Path, v)
		}
	}

	var out []Published
	for _, a := range artifacts {
		pub, err := p.publishOne(ctx, a)
		if err != nil {
			return out, err
		}
		if pub.Skipped {
			log.Info("Artifact up to date", "key", pub.Key, "sha256", pub.SHA256)
		} else {
			log.Info("Artifact published", "key", pub.Key, "size", pub.Size, "sha256", pub.SHA256, "backend", p.backend.Type())
		}
		out = append(out, *pub)
	}
	return out, nil
}

func (p *Publisher) publishOne(ctx context.Context, a layout.Artifact) (*Published, error) {
	body, cleanup, err := p.payload(a.Path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to size %s: %w", a.Path, err)
	}
	sum := sha256.New()
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", a.Path, err)
	}
	if _, err := io.Copy(sum, body); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", a.Path, err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", a.Path, err)
	}

	key := p.Key(a)
	digest := hex.EncodeToString(sum.Sum(nil))
	contentType := "application/octet-stream"
	if p.opts.Compress {
		contentType = "application/x-xz"
	}

	pub := &Published{
		Artifact:   a,
		Key:        key,
		Size:       size,
		SHA256:     digest,
		Compressed: p.opts.Compress,
		Skipped:    !p.opts.Force && p.upToDate(ctx, key, size, digest),
	}

	if !pub.Skipped {
		if err := p.backend.Upload(ctx, key, body, size, contentType); err != nil {
			return nil, errors.ErrStorageUploadFailed.WithMessagef("failed to upload %s to %s", a.Path, p.backend.Location()).WithCause(err)
		}

		checksum := []byte(fmt.Sprintf("%s  %s\n", digest, path.Base(key)))
		if err := p.backend.Upload(ctx, checksumKey(key), bytes.NewReader(checksum), int64(len(checksum)), "text/plain"); err != nil {
			return nil, errors.ErrStorageUploadFailed.WithMessagef("failed to upload checksum for %s", key).WithCause(err)
		}
	}

	if resolver, ok := p.backend.(storage.PathResolver); ok {
		pub.URL = "file://" + resolver.ResolvePath(key)
	}
	if presigner, ok := p.backend.(storage.Presigner); ok && p.opts.PresignExpiry > 0 {
		url, err := presigner.PresignedURL(ctx, key, p.opts.PresignExpiry)
		if err != nil {
			log.Warn("Failed to presign artifact URL", "key", key, "error", err)
		} else {
			pub.URL = url
		}
	}
	return pub, nil
}

func checksumKey(key string) string {
	return key + ".sha256"
}

// upToDate reports whether key already holds an object of size bytes whose
// stored checksum is digest. Any lookup failure means it is not.
func (p *Publisher) upToDate(ctx context.Context, key string, size int64, digest string) bool {
	if ok, err := p.backend.Exists(ctx, key); err != nil || !ok {
		return false
	}
	info, err := p.backend.GetInfo(ctx, key)
	if err != nil || info.Size != size {
		return false
	}

	rc, err := p.backend.Download(ctx, checksumKey(key))
	if err != nil {
		log.Debug("No stored checksum", "key", key, "error", err)
		return false
	}
	defer rc.Close()
	line, err := io.ReadAll(io.LimitReader(rc, 512))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(line))
	return len(fields) > 0 && fields[0] == digest
}

// List returns the objects published for v
func (p *Publisher) List(ctx context.Context, v layout.Variant) ([]storage.ObjectInfo, error) {
	objs, err := p.backend.List(ctx, p.variantPrefix(v)+"/")
	if err != nil {
		return nil, errors.ErrStorageUnavailable.WithMessagef("failed to list %s", p.backend.Location()).WithCause(err)
	}
	return objs, nil
}

// Remove deletes every object published for v, checksums included, and
// returns the deleted keys
func (p *Publisher) Remove(ctx context.Context, v layout.Variant) ([]string, error) {
	objs, err := p.List(ctx, v)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, o := range objs {
		if err := p.backend.Delete(ctx, o.Key); err != nil {
			return removed, errors.ErrStorageUnavailable.WithMessagef("failed to delete %s", o.Key).WithCause(err)
		}
		log.Info("Published object removed", "key", o.Key)
		removed = append(removed, o.Key)
	}
	return removed, nil
}

// payload opens the artifact, or an xz-compressed temp copy of it
func (p *Publisher) payload(src string) (io.ReadSeeker, func(), error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	if !p.opts.Compress {
		return f, func() { f.Close() }, nil
	}
	defer f.Close()

	tmp, err := os.CreateTemp("", "kforge-publish-*.xz")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	if err := compress(tmp, f); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to compress %s: %w", src, err)
	}
	return tmp, cleanup, nil
}

// compress writes the xz stream of r to w
func compress(w io.Writer, r io.Reader) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := io.Copy(xw, r); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}
