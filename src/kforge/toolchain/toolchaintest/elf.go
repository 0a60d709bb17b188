package toolchaintest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

// WriteELF writes a minimal 32-bit little-endian executable ELF header for
// machine, followed by payload. debug/elf accepts the result.
func WriteELF(path string, machine elf.Machine, payload []byte) error {
	var buf bytes.Buffer

	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F'}
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	hdr := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     0x8000,
		Ehsize:    52,
		Phentsize: 32,
		Shentsize: 40,
	}
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	buf.Write(payload)

	return os.WriteFile(path, buf.Bytes(), 0755)
}
