package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const rolloverInterval = time.Minute

// Today formats now in loc as a snapshot date.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// WatchDate advances the selected date at local midnight. A date the user
// picked by hand (anything other than the previous "today") is left alone.
// It blocks until ctx is cancelled.
func (m *Mirror) WatchDate(ctx context.Context, loc *time.Location, now func() time.Time, log *logrus.Logger) {
	ticker := time.NewTicker(rolloverInterval)
	defer ticker.Stop()

	today := Today(now(), loc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			today = m.rollover(today, Today(now(), loc), log)
		}
	}
}

// rollover moves the selected date from prev to next when it still points
// at prev, and returns the new "today".
func (m *Mirror) rollover(prev, next string, log *logrus.Logger) string {
	if next == prev {
		return prev
	}

	m.Update(func(s *Snapshot) {
		if s.Date == prev {
			s.Date = next
		}
	})
	log.WithFields(logrus.Fields{"from": prev, "to": next}).Info("day rolled over")

	return next
}
