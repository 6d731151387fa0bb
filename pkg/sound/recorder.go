package sound

import (
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/juju/errors"

	"gochip8/pkg/cpu"
)

const bitDepth = 16

// Recorder captures the gated tone into memory, one timer period at a
// time, and writes a 16-bit mono WAV file on Close.
type Recorder struct {
	filename string
	tone     *Tone
	perTick  int
	scratch  []float32
	buffer   []int
	pulses   int
}

// NewRecorder creates a recorder writing to filename.
func NewRecorder(filename string, tone *Tone) *Recorder {
	perTick := tone.SampleRate() / cpu.TimerHz
	return &Recorder{
		filename: filename,
		tone:     tone,
		perTick:  perTick,
		scratch:  make([]float32, perTick),
	}
}

// TimerTick renders one timer period of audio. Recorder is a
// cpu.Peripheral.
func (r *Recorder) TimerTick(timers *cpu.Timers, pulse bool) {
	r.tone.SetGate(timers.SoundActive())
	if pulse {
		r.pulses++
	}
	r.tone.Fill(r.scratch)
	for _, s := range r.scratch {
		r.buffer = append(r.buffer, int(math.Round(float64(s)*math.MaxInt16)))
	}
}

// Samples returns the number of samples captured so far.
func (r *Recorder) Samples() int {
	return len(r.buffer)
}

// Pulses returns the number of sound timer expiries seen.
func (r *Recorder) Pulses() int {
	return r.pulses
}

// Close encodes the captured audio to the WAV file.
func (r *Recorder) Close() (rerr error) {
	f, err := os.Create(r.filename)
	if err != nil {
		return errors.Annotate(err, "wav recorder")
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Annotate(err, "wav recorder")
		}
	}()

	enc := wav.NewEncoder(f, r.tone.SampleRate(), bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: r.tone.SampleRate()},
		Data:           r.buffer,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Annotatef(err, "encoding %s", r.filename)
	}
	if err := enc.Close(); err != nil {
		return errors.Annotatef(err, "finishing %s", r.filename)
	}
	logger.Infof("wrote %d samples to %s", len(r.buffer), r.filename)
	return nil
}
