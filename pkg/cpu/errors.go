package cpu

import (
	"fmt"

	"github.com/juju/errors"
)

var (
	ErrAddressOutOfRange = errors.New("memory address out of range")
	ErrFontProtected     = errors.New("write into font table")
	ErrProgramTooLarge   = errors.New("program too large")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrPCOutOfRange      = errors.New("program counter outside program area")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrNotLoaded         = errors.New("no program loaded")
	ErrHalted            = errors.New("interpreter halted")
)

// FaultKind classifies a fault raised during an instruction cycle.
type FaultKind int

const (
	FaultUnknownOpcode FaultKind = iota
	FaultStack
	FaultMemory
	FaultProgramCounter
)

func (k FaultKind) String() string {
	switch k {
	case FaultUnknownOpcode:
		return "unknown-opcode"
	case FaultStack:
		return "stack"
	case FaultMemory:
		return "memory"
	case FaultProgramCounter:
		return "program-counter"
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is the diagnostic event attached to the cycle that produced it.
// Only FaultUnknownOpcode is recoverable; every other kind halts the CPU.
type Fault struct {
	Kind FaultKind
	PC   uint16 // address of the faulting instruction
	Word uint16 // instruction word, zero if it could not be fetched
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault at 0x%03X (word 0x%04X): %v", f.Kind, f.PC, f.Word, f.Err)
}

// Cause returns the sentinel error behind the fault, so errors.Cause
// classifies faults like any other annotated error.
func (f *Fault) Cause() error {
	return errors.Cause(f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Fatal reports whether execution can continue after the fault.
func (f *Fault) Fatal() bool {
	return f.Kind != FaultUnknownOpcode
}

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	f, ok := err.(*Fault)
	return f, ok
}

// IsFatal reports whether err stops cycle execution. Errors that are not
// faults (not loaded, halted) are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if f, ok := AsFault(err); ok {
		return f.Fatal()
	}
	return true
}
