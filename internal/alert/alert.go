// Package alert plays the panel's notification sounds.
//
// Output stays locked until Unlock is called, mirroring audio that may only
// start after a user gesture. A locked or closed Player drops every sound.
package alert

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/metrics"
)

// SoundOrder is played for an order without a named kitchen.
const SoundOrder = "order"

// bell is written to the output for every played sound.
var bell = []byte("\a")

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("alert: player closed")

// Player writes a terminal bell per sound and logs it.
type Player struct {
	mu       sync.Mutex
	out      io.Writer
	log      *logrus.Logger
	unlocked bool
	closed   bool
}

// NewPlayer creates a locked Player. A nil out only logs.
func NewPlayer(out io.Writer, log *logrus.Logger) *Player {
	if out == nil {
		out = io.Discard
	}

	return &Player{out: out, log: log}
}

// Unlock enables playback.
func (p *Player) Unlock() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.unlocked = true
	}
}

// Unlocked reports whether sounds are currently audible.
func (p *Player) Unlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.unlocked && !p.closed
}

// Play plays one sound. A locked player drops it silently.
func (p *Player) Play(sound string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if !p.unlocked {
		p.log.WithField("sound", sound).Debug("alert dropped: player locked")
		return nil
	}

	if _, err := p.out.Write(bell); err != nil {
		return err
	}

	metrics.AlertsTotal.WithLabelValues(sound).Inc()
	p.log.WithField("sound", sound).Info("alert played")

	return nil
}

// Close releases the player. Further calls to Play fail.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.unlocked = false

	return nil
}
