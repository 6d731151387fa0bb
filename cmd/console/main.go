package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/grid"
	"gochip8/pkg/utils"
)

var logger = loggo.GetLogger("gochip8.console")

const (
	keyCtrlC = 0x03
	keyEsc   = 0x1B

	// Terminals report key presses but not releases, so a pressed key is
	// held for this long after its last repeat.
	defaultHold = 200 * time.Millisecond
)

// keyLatch turns a stream of key presses into held keypad state.
type keyLatch struct {
	hold    time.Duration
	expires [cpu.KeyCount]time.Time
}

func (l *keyLatch) press(key uint8, now time.Time) {
	l.expires[key&0x0F] = now.Add(l.hold)
}

// apply sets every keypad key that is still held at now.
func (l *keyLatch) apply(k *cpu.Keypad, now time.Time) {
	for key, until := range l.expires {
		k.Set(uint8(key), now.Before(until))
	}
}

// resolveKeys maps single character key names to keypad indices. Longer
// names only make sense for the desktop host and are skipped.
func resolveKeys(names map[string]uint8) map[byte]uint8 {
	out := make(map[byte]uint8, len(names))
	for name, digit := range names {
		if len(name) != 1 {
			logger.Debugf("ignoring key %q", name)
			continue
		}
		out[name[0]] = digit
	}
	return out
}

// Half block glyphs, indexed by top | bottom<<1.
var halfBlocks = [4]string{" ", "▀", "▄", "█"}

// renderHalfBlocks draws two pixel rows per text line, homing the cursor
// first so each frame overwrites the last.
func renderHalfBlocks(g cpu.Grid) string {
	var sb strings.Builder
	sb.WriteString("\x1b[H")
	for i := 0; i < cpu.ScreenWidth*cpu.ScreenHeight/2; i++ {
		x, row := grid.GetGridCoords(i, cpu.ScreenWidth)
		cell := 0
		if g[row*2][x] {
			cell |= 1
		}
		if g[row*2+1][x] {
			cell |= 2
		}
		sb.WriteString(halfBlocks[cell])
		if x == cpu.ScreenWidth-1 {
			sb.WriteString("\r\n")
		}
	}
	return sb.String()
}

// console drives one interpreter from terminal input.
type console struct {
	runner *cpu.Runner
	vm     *cpu.CPU
	keys   map[byte]uint8
	latch  keyLatch
	clock  clock.Clock
	out    io.Writer
	beeps  int
}

func newConsole(vm *cpu.CPU, opts cpu.RunnerOptions, keys map[byte]uint8, out io.Writer) *console {
	c := &console{
		vm:    vm,
		keys:  keys,
		latch: keyLatch{hold: defaultHold},
		clock: opts.Clock,
		out:   out,
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	opts.Clock = c.clock
	c.runner = cpu.NewRunner(vm, opts)
	c.runner.Mount(cpu.PeripheralFunc(func(_ *cpu.Timers, pulse bool) {
		if pulse {
			c.beeps++
		}
	}))
	return c
}

// handleByte records one byte of input. It returns false on a quit key.
func (c *console) handleByte(b byte) bool {
	if b == keyCtrlC || b == keyEsc {
		return false
	}
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	if digit, ok := c.keys[b]; ok {
		c.latch.press(digit, c.clock.Now())
	}
	return true
}

// frame advances the interpreter and redraws if anything changed.
func (c *console) frame() error {
	c.latch.apply(&c.vm.Keys, c.clock.Now())
	err := c.runner.Advance()
	if c.vm.Display.ConsumeChanged() {
		if _, werr := io.WriteString(c.out, renderHalfBlocks(c.vm.Display.Snapshot())); werr != nil {
			return errors.Trace(werr)
		}
	}
	for ; c.beeps > 0; c.beeps-- {
		if _, werr := io.WriteString(c.out, "\a"); werr != nil {
			return errors.Trace(werr)
		}
	}
	return err
}

func (c *console) run(ctx context.Context, input <-chan byte) error {
	for {
		if err := c.frame(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case b := <-input:
			if !c.handleByte(b) {
				return nil
			}
		case <-c.clock.After(cpu.DefaultFrameInterval):
		}
	}
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: console [-config file] <program.ch8|program.asm>")
		os.Exit(2)
	}
	if err := run(*configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath, programPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return errors.Trace(err)
		}
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return errors.Trace(err)
	}

	fullPath, _, err := utils.GetPathInfo(programPath)
	if err != nil {
		return errors.Trace(err)
	}
	image, err := utils.ReadProgram(fullPath)
	if err != nil {
		return errors.Trace(err)
	}
	names, err := cfg.Keys()
	if err != nil {
		return errors.Trace(err)
	}

	vm := cpu.NewCPU(cfg.CPUOptions()...)
	if err := vm.LoadProgram(image); err != nil {
		return errors.Trace(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := newTerminal()
	if err := t.Start(); err != nil {
		return errors.Trace(err)
	}
	defer t.Stop()
	if w := t.Width(); w > 0 && w < cpu.ScreenWidth {
		logger.Warningf("terminal is %d columns wide, the display needs %d", w, cpu.ScreenWidth)
	}

	// Clear the screen and hide the cursor; show it again on the way out.
	fmt.Print("\x1b[2J\x1b[?25l")
	defer fmt.Print("\x1b[?25h\r\n")

	c := newConsole(vm, cfg.RunnerOptions(), resolveKeys(names), os.Stdout)
	return errors.Trace(c.run(ctx, t.Bytes))
}
