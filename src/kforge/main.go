// kforge builds, runs and debugs a bare-metal Rust kernel for the
// Raspberry Pi Zero (BCM2835) under QEMU.
package main

import (
	"os"

	"github.com/bitswalk/kforge/src/kforge/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
