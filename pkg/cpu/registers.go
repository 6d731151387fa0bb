package cpu

// RegisterCount is the number of general purpose registers V0-VF.
const RegisterCount = 16

// FlagRegister is VF, overwritten with carry, borrow, shift-out and
// collision results.
const FlagRegister = 0xF

// Registers holds V0-VF, the index register I and the program counter.
type Registers struct {
	V  [RegisterCount]byte
	I  uint16
	PC uint16
}

// Get returns Vx. x comes from a 4-bit instruction field.
func (r *Registers) Get(x uint8) byte {
	return r.V[x&0x0F]
}

// Set stores v in Vx.
func (r *Registers) Set(x uint8, v byte) {
	r.V[x&0x0F] = v
}

func (r *Registers) setFlag(set bool) {
	if set {
		r.V[FlagRegister] = 1
	} else {
		r.V[FlagRegister] = 0
	}
}
