//go:build headless

package sound

import "github.com/juju/errors"

// Player is unavailable in headless builds.
type Player struct{}

func NewPlayer(tone *Tone) (*Player, error) {
	return nil, errors.NotSupportedf("audio output in headless build")
}

func (p *Player) Start() {}

func (p *Player) Close() error { return nil }
