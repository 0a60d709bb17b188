package run

import (
	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
)

// CheckPreconditions verifies every artifact the configuration references
// exists. It only reads the filesystem.
func CheckPreconditions(cfg Configuration) error {
	if err := requireArtifact("kernel image", cfg.KernelImage, cfg); err != nil {
		return err
	}
	if cfg.DiskImage != "" {
		if err := requireArtifact("disk image", cfg.DiskImage, cfg); err != nil {
			return err
		}
	}
	return nil
}

func requireArtifact(what, path string, cfg Configuration) error {
	if path == "" {
		return errors.ErrArtifactMissing.WithMessagef("%s path is not set", what)
	}
	if !paths.IsFile(path) {
		return errors.ErrArtifactMissing.WithMessagef("%s not found at %s; run `kforge build --variant %s` first", what, path, cfg.Variant)
	}
	return nil
}
