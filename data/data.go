package data

import (
	"sync"
	"time"

	"github.com/gr-butler/telemetry/aggregator"
)

// holder for the latest results of the sampling loop. The loop is the only
// writer, the web handlers read it from their own goroutines.

type Snapshot struct {
	Reading       aggregator.SmoothedReading `json:"reading"`
	ReadingTime   time.Time                  `json:"reading_time"`
	Outcome       string                     `json:"outcome"`
	OutcomeTime   time.Time                  `json:"outcome_time"`
	Cycles        int                        `json:"cycles"`
	DroppedCycles int                        `json:"dropped_cycles"`
}

type Latest struct {
	lock sync.RWMutex
	snap Snapshot
}

func CreateLatest() *Latest {
	return &Latest{}
}

// SetReading records the reading of a finished sampling phase.
func (l *Latest) SetReading(r aggregator.SmoothedReading, at time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.snap.Cycles++
	if !r.Valid {
		l.snap.DroppedCycles++
		return
	}
	l.snap.Reading = r
	l.snap.ReadingTime = at
}

func (l *Latest) SetOutcome(outcome string, at time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.snap.Outcome = outcome
	l.snap.OutcomeTime = at
}

func (l *Latest) Get() Snapshot {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.snap
}
