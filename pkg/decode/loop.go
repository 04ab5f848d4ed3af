package decode

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultStopTimeout bounds how long Stop waits for a frame read to return.
const DefaultStopTimeout = 2 * time.Second

var (
	// ErrLoopStarted is returned by a second Begin.
	ErrLoopStarted = errors.New("decode: loop already started")

	// ErrLoopStopped is returned by Begin after Stop.
	ErrLoopStopped = errors.New("decode: loop stopped")
)

// FrameSource yields live frames. ReadFrame blocks until the next frame is
// available; release returns the buffer to the source.
type FrameSource interface {
	ReadFrame() (img image.Image, release func(), err error)
}

// FrameResult is the outcome of one frame. Exactly one of Text, Miss or Err
// is meaningful. DecodeErr is set on a miss the decoder failed outright.
type FrameResult struct {
	Text      string
	Miss      bool
	DecodeErr error
	Err       error
}

// Loop decodes frames from one source until stopped. A loop is single use:
// every scanning session builds its own with the callback it needs.
type Loop struct {
	decoder     Decoder
	onFrame     func(FrameResult)
	stopTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStopTimeout bounds Stop's wait for the loop goroutine.
func WithStopTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.stopTimeout = d
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates a loop that reports every frame outcome to onFrame.
// onFrame runs on the loop goroutine and must not call Stop synchronously.
func NewLoop(decoder Decoder, onFrame func(FrameResult), opts ...LoopOption) *Loop {
	l := &Loop{
		decoder:     decoder,
		onFrame:     onFrame,
		stopTimeout: DefaultStopTimeout,
		logger:      slog.Default(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Begin starts decoding src on a new goroutine. The loop only borrows src;
// it never stops the underlying track.
func (l *Loop) Begin(src FrameSource) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped.Load() {
		return ErrLoopStopped
	}
	if l.started {
		return ErrLoopStarted
	}
	l.started = true
	go l.run(src)
	return nil
}

// Stop ends the loop and waits for its goroutine, up to the stop timeout.
// It is safe to call any number of times, before or after Begin. No
// callback starts after Stop has been called.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.stop)
	})

	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-l.done:
	case <-time.After(l.stopTimeout):
		l.logger.Warn("decode loop still blocked in frame read", "waited", l.stopTimeout)
	}
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(src FrameSource) {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		img, release, err := src.ReadFrame()
		if l.stopped.Load() {
			if release != nil {
				release()
			}
			return
		}
		if err != nil {
			l.report(FrameResult{Err: err})
			return
		}

		text, derr := l.decoder.Decode(img)
		if release != nil {
			release()
		}

		switch {
		case derr == nil:
			l.report(FrameResult{Text: text})
		case errors.Is(derr, ErrNotFound):
			l.report(FrameResult{Miss: true})
		default:
			// A frame the decoder could not even look at is still just a
			// frame without a result.
			l.logger.Debug("frame decode failed", "error", derr)
			l.report(FrameResult{Miss: true, DecodeErr: derr})
		}
	}
}

func (l *Loop) report(r FrameResult) {
	if l.stopped.Load() || l.onFrame == nil {
		return
	}
	l.onFrame(r)
}
