package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/errors"
)

// loadProgram encodes words big-endian and loads them at ProgramStart.
func loadProgram(t *testing.T, c *CPU, words ...uint16) {
	t.Helper()
	image := make([]byte, 0, len(words)*2)
	for _, w := range words {
		image = append(image, byte(w>>8), byte(w))
	}
	if err := c.LoadProgram(image); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
}

func newCPU(t *testing.T, words ...uint16) *CPU {
	t.Helper()
	c := NewCPU(WithSeed(1))
	loadProgram(t, c, words...)
	return c
}

// w16 writes a big-endian word at addr, bypassing the font guard.
func w16(c *CPU, addr uint16, val uint16) {
	c.Memory.bytes[addr] = byte(val >> 8)
	c.Memory.bytes[addr+1] = byte(val)
}

func step(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("Step %d at PC=0x%03X: %v", i, c.Regs.PC, err)
		}
	}
}

func TestNewCPU(t *testing.T) {
	c := NewCPU()
	if c.Regs.PC != ProgramStart {
		t.Errorf("PC: expected 0x%03X, got 0x%03X", ProgramStart, c.Regs.PC)
	}
	if c.Loaded() {
		t.Errorf("Loaded: expected false before LoadProgram")
	}
	if err := c.Step(); errors.Cause(err) != ErrNotLoaded {
		t.Errorf("Step before load: expected ErrNotLoaded, got %v", err)
	}
	for d := byte(0); d < 16; d++ {
		got, _ := c.Memory.Slice(FontBase+uint16(d)*FontGlyphBytes, FontGlyphBytes)
		if diff := cmp.Diff(Glyph(d), got); diff != "" {
			t.Errorf("glyph %X mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestClearDisplay(t *testing.T) {
	c := newCPU(t, 0x00E0)
	c.Display.DrawSprite(10, 10, []byte{0xFF, 0xFF})
	c.Display.ConsumeChanged()

	step(t, c, 1)

	snap := c.Display.Snapshot()
	if snap.Lit() != 0 {
		t.Errorf("CLS: expected 0 lit pixels, got %d", snap.Lit())
	}
	if !c.Display.ConsumeChanged() {
		t.Errorf("CLS: expected changed signal")
	}
	if c.Regs.PC != 0x202 {
		t.Errorf("CLS: expected PC=0x202, got 0x%03X", c.Regs.PC)
	}
}

func TestAddCarryAllPairs(t *testing.T) {
	c := newCPU(t, 0x8014) // ADD V0, V1
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			c.Regs.PC = ProgramStart
			c.Regs.V[0] = byte(a)
			c.Regs.V[1] = byte(b)
			if err := c.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
			wantFlag := byte(0)
			if a+b >= 256 {
				wantFlag = 1
			}
			if c.Regs.V[0] != byte((a+b)%256) || c.Regs.V[0xF] != wantFlag {
				t.Fatalf("ADD %d+%d: expected V0=%d VF=%d, got V0=%d VF=%d",
					a, b, (a+b)%256, wantFlag, c.Regs.V[0], c.Regs.V[0xF])
			}
		}
	}
}

func TestALU(t *testing.T) {
	tests := []struct {
		name     string
		word     uint16
		quirks   Quirks
		vx, vy   byte
		vf       byte
		wantVX   byte
		wantFlag byte
	}{
		{"LD", 0x8120, Quirks{}, 0x11, 0x22, 7, 0x22, 7},
		{"OR", 0x8121, Quirks{}, 0xF0, 0x0F, 7, 0xFF, 7},
		{"AND", 0x8122, Quirks{}, 0xF0, 0x3C, 7, 0x30, 7},
		{"XOR", 0x8123, Quirks{}, 0xFF, 0x0F, 7, 0xF0, 7},
		{"OR resets VF", 0x8121, Quirks{LogicResetsVF: true}, 0xF0, 0x0F, 7, 0xFF, 0},
		{"ADD no carry", 0x8124, Quirks{}, 10, 20, 7, 30, 0},
		{"ADD carry", 0x8124, Quirks{}, 200, 100, 7, 44, 1},
		{"SUB no borrow", 0x8125, Quirks{}, 30, 10, 7, 20, 1},
		{"SUB equal", 0x8125, Quirks{}, 10, 10, 7, 0, 1},
		{"SUB borrow", 0x8125, Quirks{}, 10, 30, 7, 236, 0},
		{"SUBN no borrow", 0x8127, Quirks{}, 10, 30, 7, 20, 1},
		{"SUBN borrow", 0x8127, Quirks{}, 30, 10, 7, 236, 0},
		{"SHR odd", 0x8126, Quirks{}, 0x05, 0xFF, 7, 0x02, 1},
		{"SHR even", 0x8126, Quirks{}, 0x04, 0xFF, 7, 0x02, 0},
		{"SHR uses VY", 0x8126, Quirks{ShiftUsesVY: true}, 0x04, 0x03, 7, 0x01, 1},
		{"SHL high bit", 0x812E, Quirks{}, 0x81, 0x00, 7, 0x02, 1},
		{"SHL no high bit", 0x812E, Quirks{}, 0x41, 0x00, 7, 0x82, 0},
		{"SHL uses VY", 0x812E, Quirks{ShiftUsesVY: true}, 0x01, 0x80, 7, 0x00, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCPU(WithQuirks(tc.quirks))
			loadProgram(t, c, tc.word)
			c.Regs.V[1] = tc.vx
			c.Regs.V[2] = tc.vy
			c.Regs.V[0xF] = tc.vf
			step(t, c, 1)
			if c.Regs.V[1] != tc.wantVX {
				t.Errorf("VX: expected 0x%02X, got 0x%02X", tc.wantVX, c.Regs.V[1])
			}
			if c.Regs.V[0xF] != tc.wantFlag {
				t.Errorf("VF: expected %d, got %d", tc.wantFlag, c.Regs.V[0xF])
			}
			if c.Regs.PC != 0x202 {
				t.Errorf("PC: expected 0x202, got 0x%03X", c.Regs.PC)
			}
		})
	}
}

func TestFlagWinsWhenDestinationIsVF(t *testing.T) {
	c := newCPU(t, 0x8F14) // ADD VF, V1
	c.Regs.V[0xF] = 0xF0
	c.Regs.V[1] = 0x20
	step(t, c, 1)
	if c.Regs.V[0xF] != 1 {
		t.Errorf("ADD VF, V1: expected VF=1 (carry), got %d", c.Regs.V[0xF])
	}
}

func TestImmediates(t *testing.T) {
	c := newCPU(t,
		0x6A42, // LD VA, 0x42
		0x7AFF, // ADD VA, 0xFF (wraps, no flag)
		0xA123, // LD I, 0x123
	)
	c.Regs.V[0xF] = 9
	step(t, c, 3)
	if c.Regs.V[0xA] != 0x41 {
		t.Errorf("VA: expected 0x41, got 0x%02X", c.Regs.V[0xA])
	}
	if c.Regs.V[0xF] != 9 {
		t.Errorf("7XNN must not touch VF: got %d", c.Regs.V[0xF])
	}
	if c.Regs.I != 0x123 {
		t.Errorf("I: expected 0x123, got 0x%03X", c.Regs.I)
	}
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name   string
		word   uint16
		vx, vy byte
		wantPC uint16
	}{
		{"SE imm taken", 0x3142, 0x42, 0, 0x204},
		{"SE imm not taken", 0x3142, 0x41, 0, 0x202},
		{"SNE imm taken", 0x4142, 0x41, 0, 0x204},
		{"SNE imm not taken", 0x4142, 0x42, 0, 0x202},
		{"SE reg taken", 0x5120, 7, 7, 0x204},
		{"SE reg not taken", 0x5120, 7, 8, 0x202},
		{"SNE reg taken", 0x9120, 7, 8, 0x204},
		{"SNE reg not taken", 0x9120, 7, 7, 0x202},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCPU(t, tc.word)
			c.Regs.V[1] = tc.vx
			c.Regs.V[2] = tc.vy
			step(t, c, 1)
			if c.Regs.PC != tc.wantPC {
				t.Errorf("PC: expected 0x%03X, got 0x%03X", tc.wantPC, c.Regs.PC)
			}
		})
	}
}

func TestJumps(t *testing.T) {
	c := newCPU(t, 0x1300) // JP 0x300
	step(t, c, 1)
	if c.Regs.PC != 0x300 {
		t.Errorf("JP: expected PC=0x300, got 0x%03X", c.Regs.PC)
	}
	if c.Stack.Depth() != 0 {
		t.Errorf("JP: expected empty stack, got depth %d", c.Stack.Depth())
	}

	c = newCPU(t, 0xB300) // JP V0, 0x300
	c.Regs.V[0] = 0x10
	c.Regs.V[3] = 0x20
	step(t, c, 1)
	if c.Regs.PC != 0x310 {
		t.Errorf("JP V0: expected PC=0x310, got 0x%03X", c.Regs.PC)
	}

	c = NewCPU(WithQuirks(Quirks{JumpUsesVX: true}))
	loadProgram(t, c, 0xB300)
	c.Regs.V[0] = 0x10
	c.Regs.V[3] = 0x20
	step(t, c, 1)
	if c.Regs.PC != 0x320 {
		t.Errorf("JP V0 with JumpUsesVX: expected PC=0x320, got 0x%03X", c.Regs.PC)
	}
}

func TestSubroutine(t *testing.T) {
	c := newCPU(t, 0x2300) // 0x200: CALL 0x300
	w16(c, 0x300, 0x00EE)  // 0x300: RET

	step(t, c, 1)
	if c.Regs.PC != 0x300 || c.Stack.Depth() != 1 {
		t.Fatalf("CALL: expected PC=0x300 depth=1, got PC=0x%03X depth=%d", c.Regs.PC, c.Stack.Depth())
	}
	step(t, c, 1)
	if c.Regs.PC != 0x202 {
		t.Errorf("RET: expected PC=0x202, got 0x%03X", c.Regs.PC)
	}
	if c.Stack.Depth() != 0 {
		t.Errorf("RET: expected depth 0, got %d", c.Stack.Depth())
	}
}

func TestCallDepth(t *testing.T) {
	// 0x200 + 2k: CALL 0x200 + 2(k+1), sixteen deep, then RETs.
	words := make([]uint16, 0, StackSize+1)
	for k := 0; k < StackSize; k++ {
		words = append(words, 0x2000|uint16(ProgramStart+2*(k+1)))
	}
	words = append(words, 0x00EE)
	c := newCPU(t, words...)

	step(t, c, StackSize)
	if c.Stack.Depth() != StackSize {
		t.Fatalf("expected depth %d, got %d", StackSize, c.Stack.Depth())
	}

	// Each return lands on the instruction after its call.
	for k := StackSize - 1; k >= 0; k-- {
		step(t, c, 1)
		want := uint16(ProgramStart + 2*(k+1))
		if c.Regs.PC != want {
			t.Fatalf("RET %d: expected PC=0x%03X, got 0x%03X", k, want, c.Regs.PC)
		}
		if c.Regs.PC != 0x200+2*StackSize {
			// Returned into the call chain; re-point at the RET.
			c.Regs.PC = 0x200 + 2*StackSize
		}
	}
	if c.Stack.Depth() != 0 {
		t.Errorf("expected empty stack, got depth %d", c.Stack.Depth())
	}
}

func TestCallOverflow(t *testing.T) {
	words := make([]uint16, 0, StackSize+1)
	for k := 0; k <= StackSize; k++ {
		words = append(words, 0x2000|uint16(ProgramStart+2*(k+1)))
	}
	c := newCPU(t, words...)
	step(t, c, StackSize)

	err := c.Step()
	if errors.Cause(err) != ErrStackOverflow {
		t.Fatalf("17th CALL: expected ErrStackOverflow, got %v", err)
	}
	f, ok := AsFault(err)
	if !ok || f.Kind != FaultStack || !f.Fatal() {
		t.Errorf("expected fatal stack fault, got %#v", err)
	}
	if f.PC != 0x200+2*StackSize || f.Word != words[StackSize] {
		t.Errorf("fault: expected PC=0x%03X word=0x%04X, got PC=0x%03X word=0x%04X",
			0x200+2*StackSize, words[StackSize], f.PC, f.Word)
	}
	if !c.Halted {
		t.Errorf("expected CPU halted after overflow")
	}
	if err := c.Step(); errors.Cause(err) != ErrHalted {
		t.Errorf("Step after fatal: expected ErrHalted, got %v", err)
	}
}

func TestReturnUnderflow(t *testing.T) {
	c := newCPU(t, 0x00EE)
	err := c.Step()
	if errors.Cause(err) != ErrStackUnderflow {
		t.Fatalf("RET on empty stack: expected ErrStackUnderflow, got %v", err)
	}
	if !IsFatal(err) || !c.Halted {
		t.Errorf("expected fatal and halted")
	}

	// LoadProgram brings a halted CPU back.
	loadProgram(t, c, 0x6005)
	step(t, c, 1)
	if c.Regs.V[0] != 5 {
		t.Errorf("after reload: expected V0=5, got %d", c.Regs.V[0])
	}
}

func TestDrawXorInvolution(t *testing.T) {
	c := newCPU(t,
		0xA300, // LD I, 0x300
		0xD125, // DRW V1, V2, 5
		0xD125, // DRW V1, V2, 5
	)
	sprite := []byte{0x3C, 0x42, 0x81, 0x42, 0x3C}
	for i, b := range sprite {
		c.Memory.bytes[0x300+i] = b
	}
	c.Regs.V[1] = 60 // straddles the right edge
	c.Regs.V[2] = 30 // and the bottom edge
	c.Display.DrawSprite(0, 0, []byte{0xAA})
	before := c.Display.Snapshot()

	step(t, c, 2)
	if c.Regs.V[0xF] != 0 {
		t.Errorf("first DRW: expected VF=0, got %d", c.Regs.V[0xF])
	}
	mid := c.Display.Snapshot()
	if mid.Lit() != before.Lit()+14 {
		t.Errorf("first DRW: expected %d lit pixels, got %d", before.Lit()+14, mid.Lit())
	}
	if !mid[31][61] || !mid[0][60] || !mid[0][3] {
		t.Errorf("first DRW: expected wrapped pixels at (61,31), (60,0) and (3,0)")
	}

	step(t, c, 1)
	if c.Regs.V[0xF] != 1 {
		t.Errorf("second DRW: expected VF=1, got %d", c.Regs.V[0xF])
	}
	if diff := cmp.Diff(before, c.Display.Snapshot()); diff != "" {
		t.Errorf("second DRW did not restore display (-want +got):\n%s", diff)
	}
	if !c.Display.ConsumeChanged() {
		t.Errorf("DRW: expected changed signal")
	}
}

func TestFontGlyphScenario(t *testing.T) {
	c := newCPU(t,
		0xA000|FontBase, // LD I, FontBase
		0xD005,          // DRW V0, V0, 5
	)
	step(t, c, 2)

	snap := c.Display.Snapshot()
	glyph := Glyph(0)
	for row := 0; row < 5; row++ {
		for col := 0; col < 8; col++ {
			want := glyph[row]&(0x80>>col) != 0
			if snap[row][col] != want {
				t.Errorf("pixel (%d,%d): expected %v, got %v", col, row, want, snap[row][col])
			}
		}
	}
	if snap.Lit() != 14 {
		t.Errorf("expected 14 lit pixels for glyph 0, got %d", snap.Lit())
	}
	if !c.Display.ConsumeChanged() {
		t.Errorf("expected changed signal")
	}
}

func TestDrawOutOfMemory(t *testing.T) {
	c := newCPU(t, 0xAFFE, 0xD005)
	step(t, c, 1)
	err := c.Step()
	if errors.Cause(err) != ErrAddressOutOfRange {
		t.Fatalf("DRW past 0xFFF: expected ErrAddressOutOfRange, got %v", err)
	}
	if f, _ := AsFault(err); f == nil || f.Kind != FaultMemory {
		t.Errorf("expected memory fault, got %v", err)
	}
}

func TestBCD(t *testing.T) {
	tests := []struct {
		v    byte
		want []byte
	}{
		{0, []byte{0, 0, 0}},
		{7, []byte{0, 0, 7}},
		{42, []byte{0, 4, 2}},
		{100, []byte{1, 0, 0}},
		{255, []byte{2, 5, 5}},
	}
	for _, tc := range tests {
		c := newCPU(t, 0xA400, 0xF333)
		c.Regs.V[3] = tc.v
		step(t, c, 2)
		got, _ := c.Memory.Slice(0x400, 3)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("BCD %d (-want +got):\n%s", tc.v, diff)
		}
	}
}

func TestBCDIntoFontFaults(t *testing.T) {
	c := newCPU(t, 0xA000|FontBase, 0xF033)
	step(t, c, 1)
	if err := c.Step(); errors.Cause(err) != ErrFontProtected {
		t.Errorf("BCD into font: expected ErrFontProtected, got %v", err)
	}
}

func TestStoreLoadRegisters(t *testing.T) {
	c := newCPU(t,
		0xA400, // LD I, 0x400
		0xF355, // LD [I], V3
		0xA400, // LD I, 0x400
		0xF265, // LD V2, [I]
	)
	c.Regs.V = [RegisterCount]byte{1, 2, 3, 4, 5}
	step(t, c, 2)
	got, _ := c.Memory.Slice(0x400, 5)
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 0}, got); diff != "" {
		t.Errorf("FX55 (-want +got):\n%s", diff)
	}
	if c.Regs.I != 0x400 {
		t.Errorf("FX55: expected I unchanged, got 0x%03X", c.Regs.I)
	}

	c.Regs.V = [RegisterCount]byte{}
	step(t, c, 2)
	if diff := cmp.Diff([RegisterCount]byte{1, 2, 3}, c.Regs.V); diff != "" {
		t.Errorf("FX65 (-want +got):\n%s", diff)
	}

	c = NewCPU(WithQuirks(Quirks{LoadStoreIncrementsI: true}))
	loadProgram(t, c, 0xA400, 0xF355)
	step(t, c, 2)
	if c.Regs.I != 0x404 {
		t.Errorf("FX55 with LoadStoreIncrementsI: expected I=0x404, got 0x%03X", c.Regs.I)
	}
}

func TestIndexAndFont(t *testing.T) {
	c := newCPU(t, 0xAFFF, 0xF11E, 0xF229)
	c.Regs.V[1] = 2
	c.Regs.V[2] = 0xAB // only the low nibble selects a glyph
	step(t, c, 2)
	if c.Regs.I != 0x001 {
		t.Errorf("ADD I, V1: expected I=0x001 (12-bit wrap), got 0x%03X", c.Regs.I)
	}
	if c.Regs.V[0xF] != 0 {
		t.Errorf("ADD I, V1: expected VF untouched, got %d", c.Regs.V[0xF])
	}
	step(t, c, 1)
	if want := uint16(FontBase + 0xB*FontGlyphBytes); c.Regs.I != want {
		t.Errorf("LD F, V2: expected I=0x%03X, got 0x%03X", want, c.Regs.I)
	}

	c = NewCPU(WithQuirks(Quirks{IndexOverflowFlag: true}))
	loadProgram(t, c, 0xAFFF, 0xF11E)
	c.Regs.V[1] = 2
	step(t, c, 2)
	if c.Regs.V[0xF] != 1 {
		t.Errorf("ADD I with IndexOverflowFlag: expected VF=1, got %d", c.Regs.V[0xF])
	}
}

func TestTimerInstructions(t *testing.T) {
	c := newCPU(t,
		0xF115, // LD DT, V1
		0xF218, // LD ST, V2
		0xF307, // LD V3, DT
	)
	c.Regs.V[1] = 30
	c.Regs.V[2] = 40
	step(t, c, 2)
	if c.Timers.Delay() != 30 || c.Timers.Sound() != 40 {
		t.Errorf("expected DT=30 ST=40, got DT=%d ST=%d", c.Timers.Delay(), c.Timers.Sound())
	}
	c.Tick()
	step(t, c, 1)
	if c.Regs.V[3] != 29 {
		t.Errorf("LD V3, DT: expected 29, got %d", c.Regs.V[3])
	}
}

func TestRandomMask(t *testing.T) {
	c := newCPU(t, 0xC10F)
	for i := 0; i < 200; i++ {
		c.Regs.PC = ProgramStart
		step(t, c, 1)
		if c.Regs.V[1]&0xF0 != 0 {
			t.Fatalf("RND V1, 0x0F: got 0x%02X outside mask", c.Regs.V[1])
		}
	}

	a, b := NewCPU(WithSeed(42)), NewCPU(WithSeed(42))
	loadProgram(t, a, 0xC1FF)
	loadProgram(t, b, 0xC1FF)
	step(t, a, 1)
	step(t, b, 1)
	if a.Regs.V[1] != b.Regs.V[1] {
		t.Errorf("same seed: expected equal values, got 0x%02X and 0x%02X", a.Regs.V[1], b.Regs.V[1])
	}

	// A supplied source is used as is: one UintN(256) draw per CXNN.
	want := byte(rand.New(rand.NewPCG(7, 11)).UintN(256)) & 0x3C
	c = NewCPU(WithRand(rand.New(rand.NewPCG(7, 11))))
	loadProgram(t, c, 0xC23C)
	step(t, c, 1)
	if c.Regs.V[2] != want {
		t.Errorf("WithRand: expected 0x%02X, got 0x%02X", want, c.Regs.V[2])
	}
}

func TestSkipOnKey(t *testing.T) {
	c := newCPU(t, 0xE19E)
	c.Regs.V[1] = 0x5
	step(t, c, 1)
	if c.Regs.PC != 0x202 {
		t.Errorf("SKP up: expected PC=0x202, got 0x%03X", c.Regs.PC)
	}
	c.Regs.PC = ProgramStart
	c.Keys.Press(0x5)
	step(t, c, 1)
	if c.Regs.PC != 0x204 {
		t.Errorf("SKP down: expected PC=0x204, got 0x%03X", c.Regs.PC)
	}

	c = newCPU(t, 0xE1A1)
	c.Regs.V[1] = 0x5
	step(t, c, 1)
	if c.Regs.PC != 0x204 {
		t.Errorf("SKNP up: expected PC=0x204, got 0x%03X", c.Regs.PC)
	}
}

func TestKeyWait(t *testing.T) {
	c := newCPU(t, 0xF40A, 0x6001)
	c.Keys.Press(0x2) // held before the wait starts, never counts

	step(t, c, 1)
	if !c.Waiting || c.Regs.PC != ProgramStart {
		t.Fatalf("FX0A: expected waiting at 0x200, got waiting=%v PC=0x%03X", c.Waiting, c.Regs.PC)
	}

	step(t, c, 3)
	if !c.Waiting {
		t.Fatalf("FX0A: expected still waiting with only a held key")
	}

	// Memory changes while waiting are not refetched.
	w16(c, ProgramStart, 0x6099)

	c.Keys.Press(0xB)
	step(t, c, 1)
	if c.Waiting {
		t.Fatalf("FX0A: expected wait to complete on new key")
	}
	if c.Regs.V[4] != 0xB {
		t.Errorf("FX0A: expected V4=0xB, got 0x%X", c.Regs.V[4])
	}
	if c.Regs.PC != 0x202 {
		t.Errorf("FX0A: expected PC=0x202, got 0x%03X", c.Regs.PC)
	}
	if c.Regs.V[0] != 0 {
		t.Errorf("FX0A: instruction was refetched, V0=0x%02X", c.Regs.V[0])
	}
}

func TestKeyWaitRepress(t *testing.T) {
	c := newCPU(t, 0xF10A)
	c.Keys.Press(0x3)
	step(t, c, 1)
	c.Keys.Release(0x3)
	step(t, c, 1)
	c.Keys.Press(0x3)
	step(t, c, 1)
	if c.Waiting || c.Regs.V[1] != 0x3 {
		t.Errorf("released and pressed again: expected V1=3 and done, got V1=%d waiting=%v", c.Regs.V[1], c.Waiting)
	}
}

func TestUnknownOpcode(t *testing.T) {
	for _, word := range []uint16{0x0000, 0x0123, 0x5121, 0x800F, 0x9AB1, 0xE100, 0xF1FF} {
		c := newCPU(t, word, 0x6107)
		before := c.Regs

		err := c.Step()
		if errors.Cause(err) != ErrUnknownOpcode {
			t.Fatalf("0x%04X: expected ErrUnknownOpcode, got %v", word, err)
		}
		f, ok := AsFault(err)
		if !ok || f.Fatal() || f.Word != word || f.PC != ProgramStart {
			t.Errorf("0x%04X: expected recoverable fault with word and PC, got %v", word, err)
		}
		if c.Halted {
			t.Errorf("0x%04X: expected CPU to keep running", word)
		}
		if diff := cmp.Diff(before.V, c.Regs.V); diff != "" {
			t.Errorf("0x%04X: registers changed (-want +got):\n%s", word, diff)
		}
		step(t, c, 1)
		if c.Regs.V[1] != 7 {
			t.Errorf("0x%04X: expected execution to continue at 0x202", word)
		}
	}
}

func TestProgramCounterLeavesProgramArea(t *testing.T) {
	c := newCPU(t, 0x1100) // JP 0x100
	step(t, c, 1)
	err := c.Step()
	if errors.Cause(err) != ErrPCOutOfRange {
		t.Fatalf("expected ErrPCOutOfRange, got %v", err)
	}
	if f, _ := AsFault(err); f == nil || f.Kind != FaultProgramCounter {
		t.Errorf("expected program-counter fault, got %v", err)
	}

	c = newCPU(t, 0x1FFF) // last byte cannot hold a full instruction
	step(t, c, 1)
	if err := c.Step(); errors.Cause(err) != ErrPCOutOfRange {
		t.Errorf("PC=0xFFF: expected ErrPCOutOfRange, got %v", err)
	}
}

func TestIndependentInstances(t *testing.T) {
	a := newCPU(t, 0x6011)
	b := newCPU(t, 0x6022)
	step(t, a, 1)
	step(t, b, 1)
	if a.Regs.V[0] != 0x11 || b.Regs.V[0] != 0x22 {
		t.Errorf("expected independent state, got a.V0=0x%02X b.V0=0x%02X", a.Regs.V[0], b.Regs.V[0])
	}
}
