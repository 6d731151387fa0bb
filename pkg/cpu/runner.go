package cpu

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("gochip8.cpu")

const (
	DefaultCyclesPerSecond = 700
	MaxCyclesPerSecond     = 1_000_000
	DefaultMaxCatchUp      = 250 * time.Millisecond
	DefaultFrameInterval   = time.Second / 60
)

// RunnerOptions configures the execution loop.
type RunnerOptions struct {
	// CyclesPerSecond is the instruction rate. Zero means
	// DefaultCyclesPerSecond; rates above MaxCyclesPerSecond are clamped.
	CyclesPerSecond int
	// TimerHz is the timer rate. Zero means TimerHz (60).
	TimerHz int
	// Clock supplies elapsed time. Nil means clock.WallClock.
	Clock clock.Clock
	// MaxCatchUp bounds the time credited by one Advance, so a stalled
	// host does not replay an unbounded burst of cycles.
	MaxCatchUp time.Duration
	// FrameInterval is how often Run calls Advance.
	FrameInterval time.Duration
	// OnDiagnostic receives every fault, recoverable or not.
	OnDiagnostic func(*Fault)
}

// Runner is the execution loop. It credits elapsed real time to two
// independent schedules: instruction cycles at CyclesPerSecond and timer
// ticks at TimerHz. The two are interleaved in time order and never
// derived from each other.
type Runner struct {
	cpu         *CPU
	clock       clock.Clock
	cyclePeriod time.Duration
	tickPeriod  time.Duration
	maxCatchUp  time.Duration
	frame       time.Duration
	onDiag      func(*Fault)
	peripherals []Peripheral

	last      time.Time
	started   bool
	cycleDebt time.Duration
	tickDebt  time.Duration
	ticks     uint64
}

// NewRunner creates an execution loop for c.
func NewRunner(c *CPU, opts RunnerOptions) *Runner {
	cps := opts.CyclesPerSecond
	if cps <= 0 {
		cps = DefaultCyclesPerSecond
	}
	if cps > MaxCyclesPerSecond {
		logger.Warningf("%d cycles per second clamped to %d", cps, MaxCyclesPerSecond)
		cps = MaxCyclesPerSecond
	}
	hz := opts.TimerHz
	if hz <= 0 {
		hz = TimerHz
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	maxCatchUp := opts.MaxCatchUp
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	frame := opts.FrameInterval
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Runner{
		cpu:         c,
		clock:       clk,
		cyclePeriod: time.Second / time.Duration(cps),
		tickPeriod:  time.Second / time.Duration(hz),
		maxCatchUp:  maxCatchUp,
		frame:       frame,
		onDiag:      opts.OnDiagnostic,
	}
}

// Mount attaches a peripheral that is clocked on every timer tick.
func (r *Runner) Mount(p Peripheral) {
	r.peripherals = append(r.peripherals, p)
}

// CPU returns the driven interpreter.
func (r *Runner) CPU() *CPU {
	return r.cpu
}

// Ticks returns the number of timer ticks performed.
func (r *Runner) Ticks() uint64 {
	return r.ticks
}

// Advance runs every cycle and timer tick that has come due since the
// previous call. The first call only starts the clock. A fatal fault stops
// the batch and is returned; recoverable faults are reported and skipped.
func (r *Runner) Advance() error {
	now := r.clock.Now()
	if !r.started {
		r.started = true
		r.last = now
		return nil
	}
	elapsed := now.Sub(r.last)
	r.last = now
	if elapsed <= 0 {
		return nil
	}
	if elapsed > r.maxCatchUp {
		logger.Debugf("host stalled for %v, crediting %v", elapsed, r.maxCatchUp)
		elapsed = r.maxCatchUp
	}
	return r.credit(elapsed)
}

// Simulate runs the cycles and ticks that fit into d of emulated time
// without consulting the clock. Headless hosts and tests use it for
// deterministic runs.
func (r *Runner) Simulate(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return r.credit(d)
}

func (r *Runner) credit(elapsed time.Duration) error {
	r.cycleDebt += elapsed
	r.tickDebt += elapsed

	for r.cycleDebt >= r.cyclePeriod || r.tickDebt >= r.tickPeriod {
		// The event whose debt exceeds its period by more came due first.
		cycleLate := r.cycleDebt - r.cyclePeriod
		tickLate := r.tickDebt - r.tickPeriod
		if r.tickDebt >= r.tickPeriod && (r.cycleDebt < r.cyclePeriod || tickLate >= cycleLate) {
			r.tickDebt -= r.tickPeriod
			r.tick()
			continue
		}
		r.cycleDebt -= r.cyclePeriod
		if err := r.step(); err != nil {
			r.cycleDebt = 0
			return err
		}
	}
	return nil
}

func (r *Runner) tick() {
	r.ticks++
	pulse := r.cpu.Tick()
	for _, p := range r.peripherals {
		p.TimerTick(&r.cpu.Timers, pulse)
	}
}

func (r *Runner) step() error {
	err := r.cpu.Step()
	if err == nil {
		return nil
	}
	f, ok := AsFault(err)
	if !ok {
		return err
	}
	if r.onDiag != nil {
		r.onDiag(f)
	}
	if f.Fatal() {
		logger.Errorf("%v", f)
		return f
	}
	logger.Warningf("%v", f)
	return nil
}

// Run calls Advance once per frame until ctx is done or a fatal fault
// occurs. Cancellation is only observed between batches, which always end
// on a cycle boundary.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.Advance(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-r.clock.After(r.frame):
		}
	}
}
