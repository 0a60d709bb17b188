package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

// RootfsStage creates the FAT32 filesystem image attached to debug runs
type RootfsStage struct{}

// NewRootfsStage creates a new rootfs stage
func NewRootfsStage() *RootfsStage {
	return &RootfsStage{}
}

// Name returns the stage name
func (s *RootfsStage) Name() StageName {
	return StageRootfs
}

// State returns the pipeline state while imaging
func (s *RootfsStage) State() State {
	return StateImagingFilesystem
}

// Enabled reports whether the profile builds a filesystem image
func (s *RootfsStage) Enabled(p layout.Profile) bool {
	return p.BuildsRootfs
}

// Validate checks the rootfs settings
func (s *RootfsStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Config.Rootfs.SizeMiB <= 0 {
		return errors.ErrConfigInvalid.WithMessage("rootfs size must be positive")
	}
	return nil
}

// Execute formats a fresh image, writes the sentinel file into it and
// unmounts it. A failed image is deleted.
func (s *RootfsStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) Outcome {
	image := sc.Layout.RootfsImage()

	if err := s.build(ctx, sc, image, progress); err != nil {
		if rmErr := os.Remove(image); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("Failed to remove partial rootfs image", "path", image, "error", rmErr)
		}
		return Failed(s, err)
	}

	log.Info("Rootfs image created", "path", image, "size_mib", sc.Config.Rootfs.SizeMiB, "label", sc.Config.Rootfs.Label)
	progress(100, "Created "+sc.Layout.Rel(image))
	return Succeeded(s, layout.Artifact{Path: image, Kind: layout.KindFilesystemImage, Variant: sc.Variant})
}

func (s *RootfsStage) build(ctx context.Context, sc *StageContext, image string, progress ProgressFunc) error {
	cfg := sc.Config.Rootfs

	progress(0, fmt.Sprintf("Allocating %d MiB image", cfg.SizeMiB))
	if err := allocateImage(image, sc.Config.rootfsBytes()); err != nil {
		return err
	}

	progress(20, "Formatting FAT32 filesystem")
	mkfs := toolchain.New(string(StageRootfs), sc.Config.Tools.MkfsFat,
		toolchain.Option("-F", "32"),
		toolchain.Option("-n", cfg.Label),
		toolchain.Positional(image),
	)
	mkfs.Dir = sc.Layout.Root()
	if err := sc.Runner.Run(ctx, mkfs); err != nil {
		return errors.ErrPrivilegedOperation.WithMessagef("failed to format %s", image).WithCause(err)
	}

	progress(50, "Writing sentinel file")
	return s.withMount(ctx, sc, image, func(dir string) error {
		target := filepath.Join(dir, cfg.SentinelName)
		if err := os.WriteFile(target, []byte(cfg.SentinelContent), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfg.SentinelName, err)
		}
		return nil
	})
}

// withMount loop-mounts image on a fresh directory and runs fn. Once the
// mount succeeds, unmount runs on every exit path, including cancellation.
// The mount directory is removed only after a successful unmount.
func (s *RootfsStage) withMount(ctx context.Context, sc *StageContext, image string, fn func(dir string) error) (err error) {
	dir, err := os.MkdirTemp("", "kforge-rootfs-")
	if err != nil {
		return fmt.Errorf("failed to create mount point: %w", err)
	}

	mount := toolchain.New(string(StageRootfs), sc.Config.Tools.Mount,
		toolchain.Option("-o", "loop,uid="+strconv.Itoa(os.Getuid())+",gid="+strconv.Itoa(os.Getgid())),
		toolchain.Positional(image),
		toolchain.Positional(dir),
	).WithPrefix(sc.Config.Rootfs.PrivilegeCommand)
	mount.Dir = sc.Layout.Root()

	if mountErr := sc.Runner.Run(ctx, mount); mountErr != nil {
		os.Remove(dir)
		return errors.ErrPrivilegedOperation.WithMessagef("failed to mount %s", image).WithCause(mountErr)
	}
	log.Debug("Rootfs image mounted", "image", image, "dir", dir)

	defer func() {
		umount := toolchain.New(string(StageRootfs), sc.Config.Tools.Umount,
			toolchain.Positional(dir),
		).WithPrefix(sc.Config.Rootfs.PrivilegeCommand)
		umount.Dir = sc.Layout.Root()

		if umountErr := sc.Runner.Run(context.WithoutCancel(ctx), umount); umountErr != nil {
			log.Error("Rootfs image left mounted", "dir", dir, "error", umountErr)
			err = stderrors.Join(err, errors.ErrPrivilegedOperation.WithMessagef("failed to unmount %s", dir).WithCause(umountErr))
			return
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("Failed to remove mount point", "dir", dir, "error", rmErr)
		}
	}()

	return fn(dir)
}

// allocateImage creates or truncates path to exactly size bytes
func allocateImage(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create rootfs image: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("failed to size rootfs image: %w", err)
	}
	return f.Close()
}
