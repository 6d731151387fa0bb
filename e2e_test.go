package main

import (
	"path/filepath"
	"testing"
	"time"

	"gochip8/pkg/cpu"
	"gochip8/pkg/sound"
	"gochip8/pkg/utils"
)

func TestDigitsProgram(t *testing.T) {
	// 1. Assemble the program from source
	image, err := utils.ReadProgram(filepath.Join("_roms", "digits.asm"))
	if err != nil {
		t.Fatalf("ReadProgram failed: %v", err)
	}

	// 2. Instantiate CPU and load code
	vm := cpu.NewCPU()
	if err := vm.LoadProgram(image); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	// 3. Mount a recorder so the beep is observable
	rec := sound.NewRecorder(filepath.Join(t.TempDir(), "beep.wav"), sound.NewTone(6000, 500, 1))
	runner := cpu.NewRunner(vm, cpu.RunnerOptions{})
	runner.Mount(rec)

	// 4. Run half a second of emulated time
	if err := runner.Simulate(500 * time.Millisecond); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	// 5. Assertions

	// "1" has 8 lit pixels and "2" has 14.
	screen := vm.Display.Snapshot()
	if screen.Lit() != 22 {
		t.Errorf("Expected 22 lit pixels, got %d", screen.Lit())
	}
	if !vm.Display.Pixel(4, 2) || !vm.Display.Pixel(7, 2) {
		t.Errorf("Expected the top rows of both digits to be lit")
	}
	if vm.Regs.V[0xF] != 0 {
		t.Errorf("Expected no collision, got VF=%d", vm.Regs.V[0xF])
	}
	if vm.Regs.PC != 0x218 {
		t.Errorf("Expected PC to spin at 0x218, got 0x%03X", vm.Regs.PC)
	}
	if vm.Timers.Sound() != 0 {
		t.Errorf("Expected the sound timer to expire, got %d", vm.Timers.Sound())
	}
	if rec.Pulses() != 1 {
		t.Errorf("Expected exactly 1 beep, got %d", rec.Pulses())
	}
}

func TestKeyWaitProgram(t *testing.T) {
	image, err := utils.ReadProgram(filepath.Join("_roms", "keywait.asm"))
	if err != nil {
		t.Fatalf("ReadProgram failed: %v", err)
	}
	vm := cpu.NewCPU()
	if err := vm.LoadProgram(image); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	runner := cpu.NewRunner(vm, cpu.RunnerOptions{})

	// The program parks on LD V3, K with "0" on screen.
	if err := runner.Simulate(100 * time.Millisecond); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !vm.Waiting {
		t.Fatalf("Expected the program to wait for a key")
	}
	zero := vm.Display.Snapshot()

	// Press and hold 7; the digit on screen becomes 7 and the program waits again.
	vm.Keys.Press(0x7)
	if err := runner.Simulate(100 * time.Millisecond); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if vm.Regs.V[3] != 0x7 {
		t.Errorf("Expected V3=7, got %d", vm.Regs.V[3])
	}
	if !vm.Waiting {
		t.Errorf("Expected the program to wait for the next key")
	}
	seven := vm.Display.Snapshot()
	if seven == zero {
		t.Errorf("Expected the digit to change")
	}

	// Holding the key does not complete the next wait.
	if err := runner.Simulate(100 * time.Millisecond); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if vm.Display.Snapshot() != seven {
		t.Errorf("Expected a held key to be ignored")
	}
}
