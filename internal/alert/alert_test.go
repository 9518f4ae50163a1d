package alert_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/alert"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

func TestPlayer_LockedDropsSounds(t *testing.T) {
	var out bytes.Buffer
	p := alert.NewPlayer(&out, testLogger())

	if err := p.Play(alert.SoundOrder); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("locked player wrote %q", out.String())
	}
}

func TestPlayer_UnlockedWritesBell(t *testing.T) {
	var out bytes.Buffer
	p := alert.NewPlayer(&out, testLogger())
	p.Unlock()

	for range 2 {
		if err := p.Play("bar"); err != nil {
			t.Fatalf("Play: %v", err)
		}
	}

	if out.String() != "\a\a" {
		t.Errorf("expected two bells, got %q", out.String())
	}
}

func TestPlayer_CloseEndsLifetime(t *testing.T) {
	var out bytes.Buffer
	p := alert.NewPlayer(&out, testLogger())
	p.Unlock()

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := p.Play("bar"); !errors.Is(err, alert.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	p.Unlock()
	if p.Unlocked() {
		t.Error("closed player must stay locked")
	}
	if out.Len() != 0 {
		t.Errorf("closed player wrote %q", out.String())
	}
}
