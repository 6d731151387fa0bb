package cpu

import (
	"github.com/juju/errors"
)

// CHIP-8 memory map:
//
//	0x000-0x1FF: interpreter area, font table at FontBase
//	0x200-0xFFF: program and work RAM
const (
	MemorySize      = 4096
	ProgramStart    = 0x200
	ProgramCapacity = MemorySize - ProgramStart

	FontBase       = 0x050
	FontGlyphBytes = 5
	fontEnd        = FontBase + len(fontSet)
)

// fontSet holds the 4x5 hexadecimal digit glyphs 0-F.
var fontSet = [16 * FontGlyphBytes]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// Glyph returns the font sprite for hex digit d (low nibble only).
func Glyph(d byte) []byte {
	start := int(d&0x0F) * FontGlyphBytes
	out := make([]byte, FontGlyphBytes)
	copy(out, fontSet[start:start+FontGlyphBytes])
	return out
}

// Memory is the flat 4KB byte store. The zero value is blank; call reset to
// install the font table.
type Memory struct {
	bytes [MemorySize]byte
}

func (m *Memory) reset() {
	m.bytes = [MemorySize]byte{}
	copy(m.bytes[FontBase:], fontSet[:])
}

// Read returns the byte at addr.
func (m *Memory) Read(addr uint16) (byte, error) {
	if int(addr) >= MemorySize {
		return 0, errors.Annotatef(ErrAddressOutOfRange, "read 0x%04X", addr)
	}
	return m.bytes[addr], nil
}

// Write stores v at addr. The font table is read-only once installed.
func (m *Memory) Write(addr uint16, v byte) error {
	if int(addr) >= MemorySize {
		return errors.Annotatef(ErrAddressOutOfRange, "write 0x%04X", addr)
	}
	if int(addr) >= FontBase && int(addr) < fontEnd {
		return errors.Annotatef(ErrFontProtected, "write 0x%04X", addr)
	}
	m.bytes[addr] = v
	return nil
}

// Slice returns a copy of n bytes starting at addr.
func (m *Memory) Slice(addr uint16, n int) ([]byte, error) {
	if n < 0 || int(addr)+n > MemorySize {
		return nil, errors.Annotatef(ErrAddressOutOfRange, "read %d bytes at 0x%04X", n, addr)
	}
	out := make([]byte, n)
	copy(out, m.bytes[int(addr):int(addr)+n])
	return out, nil
}

// Load copies a program image to ProgramStart.
func (m *Memory) Load(program []byte) error {
	if len(program) > ProgramCapacity {
		return errors.Annotatef(ErrProgramTooLarge, "%d bytes > %d bytes", len(program), ProgramCapacity)
	}
	copy(m.bytes[ProgramStart:], program)
	return nil
}
