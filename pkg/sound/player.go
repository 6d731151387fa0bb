//go:build !headless

package sound

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/juju/errors"
)

// Player streams a Tone to the default audio device.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	tone   *Tone
	buf    []float32
	mutex  sync.Mutex
}

// NewPlayer opens the audio device at the tone's sample rate. Only one oto
// context may exist per process.
func NewPlayer(tone *Tone) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   tone.SampleRate(),
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Annotate(err, "opening audio device")
	}
	<-ready

	p := &Player{ctx: ctx, tone: tone}
	p.player = ctx.NewPlayer(p)
	return p, nil
}

// Read implements io.Reader for oto: little-endian float32 samples.
func (p *Player) Read(b []byte) (int, error) {
	n := len(b) / 4
	if cap(p.buf) < n {
		p.buf = make([]float32, n)
	}
	samples := p.buf[:n]
	p.tone.Fill(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

// Start begins playback.
func (p *Player) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.player != nil && !p.player.IsPlaying() {
		p.player.Play()
	}
}

// Close stops playback and releases the player.
func (p *Player) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return errors.Trace(err)
}
