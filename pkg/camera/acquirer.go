package camera

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ActiveStream is an open camera stream. It has exactly one owner, the
// caller of Acquire, and only Acquirer.Release may stop its tracks.
type ActiveStream struct {
	ID         string
	DeviceID   string
	Facing     FacingMode
	AcquiredAt time.Time

	stream   Stream
	video    VideoTrack
	once     sync.Once
	released atomic.Bool
}

// Video returns the stream's video track for frame reads. Borrowers must
// stop using it before the owner releases the stream.
func (s *ActiveStream) Video() VideoTrack {
	return s.video
}

// Released reports whether the stream's tracks have been stopped.
func (s *ActiveStream) Released() bool {
	return s.released.Load()
}

// Acquirer opens and releases streams.
type Acquirer struct {
	platform Platform
	logger   *slog.Logger
}

// NewAcquirer creates an acquirer over platform. A nil logger uses
// slog.Default.
func NewAcquirer(platform Platform, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{platform: platform, logger: logger}
}

// Acquire opens exactly one stream. It is all or nothing: when the stream
// cannot be used, every track it opened is stopped before the error
// returns.
func (a *Acquirer) Acquire(ctx context.Context, c Constraints) (*ActiveStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := a.platform.GetStream(ctx, c)
	if err != nil {
		return nil, wrap("acquire", err)
	}

	var video VideoTrack
	for _, t := range raw.Tracks() {
		if vt, ok := t.(VideoTrack); ok {
			video = vt
			break
		}
	}
	if video == nil {
		if serr := stopTracks(raw); serr != nil {
			a.logger.Warn("stream cleanup failed", "error", serr)
		}
		return nil, &Error{Kind: KindStreamFailed, Op: "acquire", Err: ErrNoVideoTrack}
	}

	s := &ActiveStream{
		ID:         uuid.NewString(),
		DeviceID:   c.DeviceID,
		Facing:     c.Facing,
		AcquiredAt: time.Now(),
		stream:     raw,
		video:      video,
	}
	a.logger.Debug("stream acquired", "stream", s.ID, "device", c.DeviceID, "facing", c.Facing)
	return s, nil
}

// Release stops every track of s. It is safe to call more than once and
// on a nil stream; only the first call touches the tracks.
func (a *Acquirer) Release(s *ActiveStream) error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		err = stopTracks(s.stream)
		s.released.Store(true)
		a.logger.Debug("stream released", "stream", s.ID, "held", time.Since(s.AcquiredAt))
	})
	if err != nil {
		return wrap("release", err)
	}
	return nil
}
