package scan

import (
	"sync/atomic"
	"time"
)

// SessionStats counts what one session's decode loop saw.
type SessionStats struct {
	Frames int64 `json:"frames"`
	Misses int64 `json:"misses"`

	// DecodeErrors counts the misses where the decoder failed rather than
	// finding no code.
	DecodeErrors int64     `json:"decodeErrors"`
	Admitted     int64     `json:"admitted"`
	Suppressed   int64     `json:"suppressed"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt"`
}

type counters struct {
	frames       atomic.Int64
	misses       atomic.Int64
	decodeErrors atomic.Int64
	admitted     atomic.Int64
	suppressed   atomic.Int64
}

func (c *counters) snapshot(started, ended time.Time) SessionStats {
	return SessionStats{
		Frames:       c.frames.Load(),
		Misses:       c.misses.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Admitted:     c.admitted.Load(),
		Suppressed:   c.suppressed.Load(),
		StartedAt:    started,
		EndedAt:      ended,
	}
}
