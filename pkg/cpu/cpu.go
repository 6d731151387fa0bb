package cpu

import (
	"math/rand/v2"

	"github.com/juju/errors"
)

// Quirks select between historical interpretations of ambiguous
// instructions. The zero value is the CHIP-48 convention.
type Quirks struct {
	// ShiftUsesVY makes 8XY6/8XYE shift VY into VX (COSMAC VIP) instead of
	// shifting VX in place.
	ShiftUsesVY bool
	// LoadStoreIncrementsI makes FX55/FX65 leave I at I+X+1.
	LoadStoreIncrementsI bool
	// JumpUsesVX makes BNNN jump to XNN+VX instead of NNN+V0.
	JumpUsesVX bool
	// LogicResetsVF makes 8XY1/8XY2/8XY3 clear VF.
	LogicResetsVF bool
	// IndexOverflowFlag makes FX1E set VF when I+VX leaves 12 bits.
	IndexOverflowFlag bool
}

// Option configures a CPU at construction.
type Option func(*CPU)

// WithQuirks selects the quirk set.
func WithQuirks(q Quirks) Option {
	return func(c *CPU) { c.Quirks = q }
}

// WithSeed makes CXNN deterministic.
func WithSeed(seed uint64) Option {
	return func(c *CPU) { c.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)) }
}

// WithRand supplies the random source used by CXNN.
func WithRand(r *rand.Rand) Option {
	return func(c *CPU) { c.rng = r }
}

// CPU is one interpreter instance. All state is owned by the instance;
// nothing is shared between CPUs.
type CPU struct {
	Memory  Memory
	Regs    Registers
	Stack   Stack
	Display Framebuffer
	Timers  Timers
	Keys    Keypad
	Quirks  Quirks

	// Waiting is set while FX0A waits for a key press. Step then polls the
	// keypad without fetching.
	Waiting bool
	// Halted is set by a fatal fault; only Reset or LoadProgram clear it.
	Halted bool
	// Cycles counts completed instruction cycles.
	Cycles uint64

	loaded  bool
	waitReg uint8
	waitPC  uint16
	waitRef [KeyCount]bool
	rng     *rand.Rand
}

// NewCPU creates a CPU with zeroed state and the font table installed.
// It must be given a program with LoadProgram before it can Step.
func NewCPU(opts ...Option) *CPU {
	c := &CPU{}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c.Reset()
	return c
}

// Reset zeroes all state, reinstalls the font and drops the loaded
// program. Quirks and the random source are kept.
func (c *CPU) Reset() {
	c.Memory.reset()
	c.Regs = Registers{PC: ProgramStart}
	c.Stack = Stack{}
	c.Display = Framebuffer{}
	c.Timers = Timers{}
	c.Keys.ReleaseAll()
	c.Waiting = false
	c.Halted = false
	c.Cycles = 0
	c.loaded = false
	c.waitReg = 0
	c.waitPC = 0
	c.waitRef = [KeyCount]bool{}
}

// LoadProgram resets the CPU and copies program to ProgramStart. On
// failure the CPU stays unloaded.
func (c *CPU) LoadProgram(program []byte) error {
	c.Reset()
	if err := c.Memory.Load(program); err != nil {
		return errors.Trace(err)
	}
	c.loaded = true
	return nil
}

// Loaded reports whether a program has been loaded.
func (c *CPU) Loaded() bool {
	return c.loaded
}

// Fetch reads the big-endian instruction word at addr.
func (c *CPU) Fetch(addr uint16) (uint16, error) {
	hi, err := c.Memory.Read(addr)
	if err != nil {
		return 0, err
	}
	lo, err := c.Memory.Read(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// Step runs one fetch/decode/execute cycle. A returned *Fault describes
// the cycle's failure; when it is fatal the CPU halts.
func (c *CPU) Step() error {
	if !c.loaded {
		return errors.Trace(ErrNotLoaded)
	}
	if c.Halted {
		return errors.Trace(ErrHalted)
	}
	if c.Waiting {
		c.pollKeyWait()
		return nil
	}

	pc := c.Regs.PC
	if pc < ProgramStart || int(pc)+InstructionSize > MemorySize {
		return c.fault(FaultProgramCounter, pc, 0, errors.Annotatef(ErrPCOutOfRange, "pc 0x%04X", pc))
	}
	word, err := c.Fetch(pc)
	if err != nil {
		return c.fault(FaultMemory, pc, 0, err)
	}

	if err := c.execute(Decode(word)); err != nil {
		return err
	}
	// FX0A completes, and is counted, in pollKeyWait.
	if !c.Waiting {
		c.Cycles++
	}
	return nil
}

// fault records a cycle failure. Fatal kinds halt the CPU; the unknown
// opcode kind skips the word so execution can continue.
func (c *CPU) fault(kind FaultKind, pc, word uint16, err error) error {
	f := &Fault{Kind: kind, PC: pc, Word: word, Err: err}
	if f.Fatal() {
		c.Halted = true
	} else {
		c.Regs.PC = pc + InstructionSize
		c.Cycles++
	}
	return f
}

func (c *CPU) next() {
	c.Regs.PC += InstructionSize
}

func (c *CPU) skipIf(cond bool) {
	if cond {
		c.Regs.PC += 2 * InstructionSize
		return
	}
	c.Regs.PC += InstructionSize
}

// execute runs one decoded instruction. Every case either advances PC or
// sets it explicitly.
func (c *CPU) execute(ins Instruction) error {
	pc := c.Regs.PC
	r := &c.Regs
	vx, vy := r.Get(ins.X), r.Get(ins.Y)

	switch ins.Op {
	case OpCLS:
		c.Display.Clear()
		c.next()

	case OpRET:
		addr, err := c.Stack.Pop()
		if err != nil {
			return c.fault(FaultStack, pc, ins.Word, err)
		}
		r.PC = addr

	case OpJP:
		r.PC = ins.NNN

	case OpCALL:
		if err := c.Stack.Push(pc + InstructionSize); err != nil {
			return c.fault(FaultStack, pc, ins.Word, err)
		}
		r.PC = ins.NNN

	case OpSEImm:
		c.skipIf(vx == ins.NN)

	case OpSNEImm:
		c.skipIf(vx != ins.NN)

	case OpSEReg:
		c.skipIf(vx == vy)

	case OpSNEReg:
		c.skipIf(vx != vy)

	case OpLDImm:
		r.Set(ins.X, ins.NN)
		c.next()

	case OpADDImm:
		r.Set(ins.X, vx+ins.NN)
		c.next()

	case OpLDReg:
		r.Set(ins.X, vy)
		c.next()

	case OpOR, OpAND, OpXOR:
		switch ins.Op {
		case OpOR:
			r.Set(ins.X, vx|vy)
		case OpAND:
			r.Set(ins.X, vx&vy)
		default:
			r.Set(ins.X, vx^vy)
		}
		if c.Quirks.LogicResetsVF {
			r.setFlag(false)
		}
		c.next()

	case OpADDReg:
		sum := uint16(vx) + uint16(vy)
		r.Set(ins.X, byte(sum))
		r.setFlag(sum > 0xFF)
		c.next()

	case OpSUB:
		r.Set(ins.X, vx-vy)
		r.setFlag(vx >= vy)
		c.next()

	case OpSUBN:
		r.Set(ins.X, vy-vx)
		r.setFlag(vy >= vx)
		c.next()

	case OpSHR:
		src := vx
		if c.Quirks.ShiftUsesVY {
			src = vy
		}
		r.Set(ins.X, src>>1)
		r.setFlag(src&0x01 != 0)
		c.next()

	case OpSHL:
		src := vx
		if c.Quirks.ShiftUsesVY {
			src = vy
		}
		r.Set(ins.X, src<<1)
		r.setFlag(src&0x80 != 0)
		c.next()

	case OpLDI:
		r.I = ins.NNN
		c.next()

	case OpJPV0:
		base := r.Get(0)
		if c.Quirks.JumpUsesVX {
			base = vx
		}
		r.PC = (ins.NNN + uint16(base)) & 0x0FFF

	case OpRND:
		r.Set(ins.X, byte(c.rng.UintN(256))&ins.NN)
		c.next()

	case OpDRW:
		sprite, err := c.Memory.Slice(r.I, int(ins.N))
		if err != nil {
			return c.fault(FaultMemory, pc, ins.Word, err)
		}
		collision := c.Display.DrawSprite(vx, vy, sprite)
		r.setFlag(collision)
		c.Display.markChanged()
		c.next()

	case OpSKP:
		c.skipIf(c.Keys.IsDown(vx))

	case OpSKNP:
		c.skipIf(!c.Keys.IsDown(vx))

	case OpLDVxDT:
		r.Set(ins.X, c.Timers.Delay())
		c.next()

	case OpLDVxK:
		c.Waiting = true
		c.waitReg = ins.X
		c.waitPC = pc
		c.waitRef = c.Keys.State()

	case OpLDDTVx:
		c.Timers.SetDelay(vx)
		c.next()

	case OpLDSTVx:
		c.Timers.SetSound(vx)
		c.next()

	case OpADDIVx:
		sum := r.I + uint16(vx)
		if c.Quirks.IndexOverflowFlag {
			r.setFlag(sum > 0x0FFF)
		}
		r.I = sum & 0x0FFF
		c.next()

	case OpLDFVx:
		r.I = FontBase + uint16(vx&0x0F)*FontGlyphBytes
		c.next()

	case OpLDBVx:
		digits := [3]byte{vx / 100, (vx / 10) % 10, vx % 10}
		for i, d := range digits {
			if err := c.Memory.Write(r.I+uint16(i), d); err != nil {
				return c.fault(FaultMemory, pc, ins.Word, err)
			}
		}
		c.next()

	case OpLDIVx:
		for i := uint16(0); i <= uint16(ins.X); i++ {
			if err := c.Memory.Write(r.I+i, r.V[i]); err != nil {
				return c.fault(FaultMemory, pc, ins.Word, err)
			}
		}
		if c.Quirks.LoadStoreIncrementsI {
			r.I += uint16(ins.X) + 1
		}
		c.next()

	case OpLDVxI:
		block, err := c.Memory.Slice(r.I, int(ins.X)+1)
		if err != nil {
			return c.fault(FaultMemory, pc, ins.Word, err)
		}
		copy(r.V[:], block)
		if c.Quirks.LoadStoreIncrementsI {
			r.I += uint16(ins.X) + 1
		}
		c.next()

	default:
		return c.fault(FaultUnknownOpcode, pc, ins.Word, errors.Annotatef(ErrUnknownOpcode, "word 0x%04X", ins.Word))
	}
	return nil
}

// pollKeyWait completes a pending FX0A once any key goes down that was
// not down at the previous poll.
func (c *CPU) pollKeyWait() {
	now := c.Keys.State()
	for k := uint8(0); k < KeyCount; k++ {
		if now[k] && !c.waitRef[k] {
			c.Regs.Set(c.waitReg, k)
			c.Waiting = false
			c.Regs.PC = c.waitPC + InstructionSize
			c.Cycles++
			return
		}
	}
	c.waitRef = now
}

// Tick advances the timers by one 60 Hz period. It is never driven by
// instruction cycles; see Runner.
func (c *CPU) Tick() bool {
	return c.Timers.Tick()
}
