package main

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/session"
)

type fakeSource struct {
	kitchensErr error
}

func (f fakeSource) Me(context.Context) (model.Doc, error) {
	return model.Doc{"_id": "u1", "name": "Ada", "role": map[string]any{"_id": float64(2)}}, nil
}

func (f fakeSource) Kitchens(context.Context) ([]model.Doc, error) {
	if f.kitchensErr != nil {
		return nil, f.kitchensErr
	}
	return []model.Doc{{"_id": float64(3), "name": "bar"}}, nil
}

func (f fakeSource) Categories(context.Context) ([]model.Doc, error) {
	return []model.Doc{{"_id": float64(7), "isAutoServed": true}}, nil
}

func TestSeedSession(t *testing.T) {
	mirror := session.NewMirror(session.Snapshot{LocationID: "1", Date: "2024-01-01"})

	if err := seedSession(context.Background(), fakeSource{}, mirror); err != nil {
		t.Fatalf("seedSession: %v", err)
	}

	snap := mirror.Load()
	if snap.User.ID != "u1" || snap.User.Role != "2" {
		t.Errorf("user = %+v", snap.User)
	}
	if len(snap.Kitchens) != 1 || snap.Kitchens[0].ID != "3" {
		t.Errorf("kitchens = %+v", snap.Kitchens)
	}
	if c, ok := snap.Category("7"); !ok || !c.IsAutoServed {
		t.Errorf("category 7 = %+v, %v", c, ok)
	}
	if snap.LocationID != "1" || snap.Date != "2024-01-01" {
		t.Errorf("seed overwrote selection: %+v", snap)
	}
}

func TestSeedSession_ErrorLeavesMirrorUntouched(t *testing.T) {
	boom := errors.New("boom")
	mirror := session.NewMirror(session.Snapshot{LocationID: "1"})

	err := seedSession(context.Background(), fakeSource{kitchensErr: boom}, mirror)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if mirror.Load().User.ID != "" {
		t.Error("mirror updated despite failure")
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T", log.Formatter)
	}

	if _, err := newLogger("loud", "text"); err == nil {
		t.Error("expected error for bad level")
	}
}
