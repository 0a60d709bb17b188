package toolchain

import (
	"os/exec"
)

// Tools names the external binaries kforge drives
type Tools struct {
	Assembler string
	Cargo     string
	MkfsFat   string
	Mount     string
	Umount    string
	Emulator  string
	Debugger  string
}

// DefaultTools returns the tool names used for the ARM1176 target
func DefaultTools() Tools {
	return Tools{
		Assembler: "arm-none-eabi-as",
		Cargo:     "cargo",
		MkfsFat:   "mkfs.fat",
		Mount:     "mount",
		Umount:    "umount",
		Emulator:  "qemu-system-arm",
		Debugger:  "gdb-multiarch",
	}
}

// Requirement is one required binary and what it is needed for
type Requirement struct {
	Tool    string `json:"tool" yaml:"tool"`
	Purpose string `json:"purpose" yaml:"purpose"`
	// Optional tools only produce a warning when missing
	Optional bool `json:"optional" yaml:"optional"`
}

// Requirements lists the binaries needed by build and run commands
func (t Tools) Requirements() []Requirement {
	return []Requirement{
		{Tool: t.Assembler, Purpose: "assemble boot sources"},
		{Tool: t.Cargo, Purpose: "compile and link the kernel"},
		{Tool: t.MkfsFat, Purpose: "format the debug filesystem image"},
		{Tool: t.Mount, Purpose: "mount the debug filesystem image"},
		{Tool: t.Umount, Purpose: "unmount the debug filesystem image"},
		{Tool: t.Emulator, Purpose: "run the kernel"},
		{Tool: t.Debugger, Purpose: "attach to a halted kernel", Optional: true},
	}
}

// Availability is the PATH lookup result for a requirement
type Availability struct {
	Requirement `yaml:",inline"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Found       bool   `json:"found" yaml:"found"`
}

// LookPathFunc resolves a binary name to a path
type LookPathFunc func(file string) (string, error)

// CheckAvailability looks up every requirement using lookPath
// (exec.LookPath when nil).
func CheckAvailability(reqs []Requirement, lookPath LookPathFunc) []Availability {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	result := make([]Availability, 0, len(reqs))
	for _, req := range reqs {
		a := Availability{Requirement: req}
		if path, err := lookPath(req.Tool); err == nil {
			a.Path = path
			a.Found = true
		}
		result = append(result, a)
	}
	return result
}

// Missing returns the required (non-optional) tools that were not found
func Missing(avail []Availability) []string {
	var missing []string
	for _, a := range avail {
		if !a.Found && !a.Optional {
			missing = append(missing, a.Tool)
		}
	}
	return missing
}
