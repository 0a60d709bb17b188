package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/common/errors"
)

func TestNew_SelectsBackend(t *testing.T) {
	b, err := New(Config{Type: "local", Local: LocalConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Type())

	b, err = New(Config{Type: "s3", S3: S3Config{Bucket: "kernels", Endpoint: "http://minio:9000"}})
	require.NoError(t, err)
	assert.Equal(t, "s3", b.Type())
	assert.Equal(t, "http://minio:9000/kernels", b.Location())

	_, err = New(Config{Type: "ftp"})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

	_, err = New(Config{Type: "s3"})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestLocalBackend_UploadAndInfo(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	data := []byte("kernel image")
	require.NoError(t, b.Upload(ctx, "release/kernel.elf", bytes.NewReader(data), int64(len(data)), "application/x-executable"))

	ok, err := b.Exists(ctx, "release/kernel.elf")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := b.GetInfo(ctx, "release/kernel.elf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "application/x-executable", info.ContentType)
	assert.NotEmpty(t, info.ETag)

	got, err := os.ReadFile(b.ResolvePath("release/kernel.elf"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalBackend_SizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	err = b.Upload(ctx, "debug/rootfs.img", strings.NewReader("short"), 100, "")
	require.Error(t, err)

	ok, err := b.Exists(ctx, "debug/rootfs.img")
	require.NoError(t, err)
	assert.False(t, ok)

	objs, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestLocalBackend_KeysCannotEscape(t *testing.T) {
	base := t.TempDir()
	b, err := NewLocal(LocalConfig{BasePath: base})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "etc", "passwd"), b.ResolvePath("../../etc/passwd"))
	assert.Equal(t, filepath.Join(base, "abs"), b.ResolvePath("/abs"))
}

func TestLocalBackend_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	b, err := NewLocal(LocalConfig{BasePath: base})
	require.NoError(t, err)

	for _, key := range []string{"kforge/release/kernel.elf", "kforge/debug/kernel_debug.elf", "other/x"} {
		require.NoError(t, b.Upload(ctx, key, strings.NewReader("x"), 1, ""))
	}

	objs, err := b.List(ctx, "kforge/")
	require.NoError(t, err)
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"kforge/release/kernel.elf", "kforge/debug/kernel_debug.elf"}, keys)

	require.NoError(t, b.Delete(ctx, "kforge/debug/kernel_debug.elf"))
	require.NoError(t, b.Delete(ctx, "kforge/debug/kernel_debug.elf"))
	assert.NoDirExists(t, filepath.Join(base, "kforge", "debug"))

	_, err = b.GetInfo(ctx, "kforge/debug/kernel_debug.elf")
	assert.True(t, errors.Is(err, errors.ErrArtifactMissing))
	assert.NoError(t, b.Ping(ctx))
}

func TestS3Backend_UploadUsesPathStyle(t *testing.T) {
	var mu sync.Mutex
	var method, path string
	var body []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewS3(S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "kernels",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	data := []byte("kernel image")
	require.NoError(t, b.Upload(context.Background(), "kforge/release/kernel.elf", bytes.NewReader(data), int64(len(data)), "application/x-executable"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/kernels/kforge/release/kernel.elf", path)
	assert.Contains(t, string(body), "kernel image")
}

func TestLocalBackend_Download(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	data := []byte("abc123  kernel.elf\n")
	require.NoError(t, b.Upload(ctx, "release/kernel.elf.sha256", bytes.NewReader(data), int64(len(data)), "text/plain"))

	rc, err := b.Download(ctx, "release/kernel.elf.sha256")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	_, err = b.Download(ctx, "release/missing")
	assert.True(t, errors.Is(err, errors.ErrArtifactMissing))
}

func TestS3Backend_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/kernels/kforge/release/kernel.elf.sha256" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("abc123  kernel.elf\n"))
	}))
	defer srv.Close()

	b, err := NewS3(S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "kernels",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	rc, err := b.Download(context.Background(), "kforge/release/kernel.elf.sha256")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc123  kernel.elf\n", string(got))
}
