// Package sound turns the sound timer into audio: a square-wave Tone that
// is gated by the timer, a live Player and a WAV Recorder.
package sound

import (
	"math"
	"sync/atomic"

	"github.com/juju/loggo"

	"gochip8/pkg/cpu"
)

var logger = loggo.GetLogger("gochip8.sound")

const (
	DefaultSampleRate = 44100
	DefaultFrequency  = 440.0
	DefaultVolume     = 0.2
)

// Tone is a mono square-wave generator. The gate is written from the
// emulation goroutine and read from the audio callback, so it is atomic;
// the phase belongs to the reader.
type Tone struct {
	sampleRate int
	step       float64
	level      float32
	phase      float64
	gate       atomic.Bool
}

// NewTone creates a tone of freq Hz at the given amplitude in [0, 1].
func NewTone(sampleRate int, freq, volume float64) *Tone {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	volume = math.Max(0, math.Min(1, volume))
	return &Tone{
		sampleRate: sampleRate,
		step:       freq / float64(sampleRate),
		level:      float32(volume),
	}
}

// SampleRate returns the output rate in Hz.
func (t *Tone) SampleRate() int {
	return t.sampleRate
}

// SetGate switches the tone on or off.
func (t *Tone) SetGate(on bool) {
	if t.gate.Swap(on) != on {
		logger.Tracef("tone gate %v", on)
	}
}

// Gate reports whether the tone is sounding.
func (t *Tone) Gate() bool {
	return t.gate.Load()
}

// Fill writes the next len(buf) samples. A closed gate yields silence but
// the oscillator keeps running so reopening does not click mid-cycle.
func (t *Tone) Fill(buf []float32) {
	on := t.gate.Load()
	for i := range buf {
		s := float32(0)
		if on {
			if t.phase < 0.5 {
				s = t.level
			} else {
				s = -t.level
			}
		}
		buf[i] = s
		t.phase += t.step
		if t.phase >= 1 {
			t.phase -= math.Floor(t.phase)
		}
	}
}

// TimerTick gates the tone on the sound timer. Tone is a cpu.Peripheral.
func (t *Tone) TimerTick(timers *cpu.Timers, _ bool) {
	t.SetGate(timers.SoundActive())
}
