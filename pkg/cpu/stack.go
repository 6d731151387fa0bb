package cpu

import (
	"github.com/juju/errors"
)

// StackSize is the maximum call depth.
const StackSize = 16

// Stack holds saved return addresses. Depth is never negative and never
// exceeds StackSize.
type Stack struct {
	entries [StackSize]uint16
	depth   int
}

// Push saves a return address.
func (s *Stack) Push(addr uint16) error {
	if s.depth >= StackSize {
		return errors.Annotatef(ErrStackOverflow, "push 0x%03X at depth %d", addr, s.depth)
	}
	s.entries[s.depth] = addr
	s.depth++
	return nil
}

// Pop removes and returns the most recent return address.
func (s *Stack) Pop() (uint16, error) {
	if s.depth == 0 {
		return 0, errors.Trace(ErrStackUnderflow)
	}
	s.depth--
	addr := s.entries[s.depth]
	s.entries[s.depth] = 0
	return addr, nil
}

// Depth returns the number of saved addresses.
func (s *Stack) Depth() int {
	return s.depth
}

// Entries returns the saved addresses, oldest first.
func (s *Stack) Entries() []uint16 {
	out := make([]uint16, s.depth)
	copy(out, s.entries[:s.depth])
	return out
}
