package cpu

// KeyCount is the number of keys on the hexadecimal keypad.
const KeyCount = 16

// Keypad is the input latch. The host writes it between cycles; the core
// only reads it.
type Keypad struct {
	down [KeyCount]bool
}

func (k *Keypad) Press(key uint8)   { k.down[key&0x0F] = true }
func (k *Keypad) Release(key uint8) { k.down[key&0x0F] = false }

// Set stores the pressed state of key.
func (k *Keypad) Set(key uint8, down bool) {
	k.down[key&0x0F] = down
}

// IsDown reports whether key is held.
func (k *Keypad) IsDown(key uint8) bool {
	return k.down[key&0x0F]
}

// State returns a copy of all key states.
func (k *Keypad) State() [KeyCount]bool {
	return k.down
}

// ReleaseAll clears every key.
func (k *Keypad) ReleaseAll() {
	k.down = [KeyCount]bool{}
}
