package cpu

// TimerHz is the fixed rate at which Tick must be called.
const TimerHz = 60

// Timers are the delay and sound countdown counters.
type Timers struct {
	delay byte
	sound byte
}

// Tick decrements both timers, clamped at zero. It returns true when the
// sound timer stepped from 1 to 0, the signal to emit one audio pulse.
func (t *Timers) Tick() bool {
	if t.delay > 0 {
		t.delay--
	}
	pulse := false
	if t.sound > 0 {
		pulse = t.sound == 1
		t.sound--
	}
	return pulse
}

func (t *Timers) SetDelay(v byte) { t.delay = v }
func (t *Timers) SetSound(v byte) { t.sound = v }
func (t *Timers) Delay() byte     { return t.delay }
func (t *Timers) Sound() byte     { return t.sound }

// SoundActive reports whether a tone should currently be audible.
func (t *Timers) SoundActive() bool {
	return t.sound > 0
}
