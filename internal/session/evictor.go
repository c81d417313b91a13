// internal/session/evictor.go
package session

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// evictParser accepts standard 5-field cron expressions, an optional
// seconds field, and descriptors like "@every 1m".
var evictParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Evictor periodically sweeps idle sessions out of a Store.
type Evictor struct {
	store *Store
	cron  *cron.Cron
}

// NewEvictor schedules EvictIdle on the given cron expression.
func NewEvictor(store *Store, schedule string) (*Evictor, error) {
	ev := &Evictor{
		store: store,
		cron:  cron.New(cron.WithParser(evictParser)),
	}
	_, err := ev.cron.AddFunc(schedule, func() {
		if n := store.EvictIdle(time.Now()); n > 0 {
			slog.Info("evicted idle sessions", "count", n, "live", store.Len())
		}
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Start begins the sweep schedule.
func (e *Evictor) Start() {
	e.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (e *Evictor) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
}
