package cpu

// Peripheral is a host collaborator clocked by the 60 Hz timer. The audio
// boundary is a Peripheral: pulse reports the sound timer stepping from
// 1 to 0 on this tick.
type Peripheral interface {
	TimerTick(t *Timers, pulse bool)
}

// PeripheralFunc adapts a function to Peripheral.
type PeripheralFunc func(t *Timers, pulse bool)

func (f PeripheralFunc) TimerTick(t *Timers, pulse bool) {
	f(t, pulse)
}
