package camera

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"
)

// FakePlatform implements Platform in memory for testing. Every stream
// holds one video track; the platform counts open streams and records
// every request so resource invariants can be checked.
type FakePlatform struct {
	// Devices is returned by EnumerateDevices.
	Devices []DeviceInfo

	// Torch sets the torch capability of new tracks.
	Torch bool

	// TorchFunc, when set, runs inside every ApplyTorch on a torch-capable
	// track. It may block to hold a torch change in flight.
	TorchFunc func(on bool)

	// StreamFunc runs before each stream opens. A non-nil error fails the
	// request. It may block to hold an acquisition in flight.
	StreamFunc func(ctx context.Context, c Constraints) error

	// EnumerateErr, when set, fails EnumerateDevices.
	EnumerateErr error

	// FrameInterval, when positive, makes idle tracks deliver an empty
	// frame at this pace, like a live camera pointed at nothing.
	FrameInterval time.Duration

	mu           sync.Mutex
	requests     []Constraints
	enumerations int
	open         int
	maxOpen      int
	tracks       []*FakeTrack
}

// NewFakePlatform returns a platform with the given labeled video devices.
// Device ids are "cam0", "cam1", ...
func NewFakePlatform(labels ...string) *FakePlatform {
	p := &FakePlatform{}
	for i, l := range labels {
		p.Devices = append(p.Devices, DeviceInfo{
			DeviceID: fmt.Sprintf("cam%d", i),
			Label:    l,
			Kind:     KindVideoInput,
		})
	}
	return p
}

// EnumerateDevices returns Devices.
func (p *FakePlatform) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enumerations++
	if p.EnumerateErr != nil {
		return nil, p.EnumerateErr
	}
	out := make([]DeviceInfo, len(p.Devices))
	copy(out, p.Devices)
	return out, nil
}

// GetStream opens a stream with a single video track.
func (p *FakePlatform) GetStream(ctx context.Context, c Constraints) (Stream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, c)
	fn := p.StreamFunc
	p.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, c); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	t := &FakeTrack{
		platform: p,
		id:       fmt.Sprintf("track-%d", len(p.tracks)),
		DeviceID: c.DeviceID,
		torch:    p.Torch,
		torchFn:  p.TorchFunc,
		idle:     p.FrameInterval,
		frames:   make(chan image.Image, 64),
		fail:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	p.tracks = append(p.tracks, t)
	p.open++
	if p.open > p.maxOpen {
		p.maxOpen = p.open
	}
	return &FakeStream{tracks: []Track{t}}, nil
}

// Requests returns every constraint set passed to GetStream.
func (p *FakePlatform) Requests() []Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Constraints, len(p.requests))
	copy(out, p.requests)
	return out
}

// Enumerations returns how many times EnumerateDevices ran.
func (p *FakePlatform) Enumerations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enumerations
}

// OpenStreams returns the number of streams whose track is still live.
func (p *FakePlatform) OpenStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// MaxOpenStreams returns the most streams ever open at once.
func (p *FakePlatform) MaxOpenStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxOpen
}

// LastTrack returns the most recently opened track, or nil.
func (p *FakePlatform) LastTrack() *FakeTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return nil
	}
	return p.tracks[len(p.tracks)-1]
}

// FakeStream is the stream returned by FakePlatform.
type FakeStream struct {
	tracks []Track
}

// Tracks returns the stream's tracks.
func (s *FakeStream) Tracks() []Track { return s.tracks }

// FakeTrack is a video track fed by Emit.
type FakeTrack struct {
	DeviceID string

	platform *FakePlatform
	id       string
	torch    bool
	torchFn  func(on bool)
	idle     time.Duration
	frames   chan image.Image
	fail     chan error
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	torchOn bool
}

// ID returns the track id.
func (t *FakeTrack) ID() string { return t.id }

// Stop ends the track. Only the first call changes anything.
func (t *FakeTrack) Stop() error {
	t.stopOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.torchOn = false
		t.mu.Unlock()
		t.platform.mu.Lock()
		t.platform.open--
		t.platform.mu.Unlock()
	})
	return nil
}

// Stopped reports whether Stop was called.
func (t *FakeTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Capabilities reports the platform's torch setting at open time.
func (t *FakeTrack) Capabilities() Capabilities { return Capabilities{Torch: t.torch} }

// ApplyTorch records the torch state.
func (t *FakeTrack) ApplyTorch(on bool) error {
	if !t.torch {
		return ErrTorchUnsupported
	}
	if t.Stopped() {
		return ErrTrackEnded
	}
	if t.torchFn != nil {
		t.torchFn(on)
	}
	t.mu.Lock()
	t.torchOn = on
	t.mu.Unlock()
	return nil
}

// TorchOn reports the last applied torch state.
func (t *FakeTrack) TorchOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.torchOn
}

// ReadFrame blocks until a frame is emitted, a failure is injected or the
// track stops.
func (t *FakeTrack) ReadFrame() (image.Image, func(), error) {
	if t.Stopped() {
		return nil, func() {}, ErrTrackEnded
	}
	var tick <-chan time.Time
	if t.idle > 0 {
		timer := time.NewTimer(t.idle)
		defer timer.Stop()
		tick = timer.C
	}
	select {
	case img := <-t.frames:
		return img, func() {}, nil
	case err := <-t.fail:
		return nil, func() {}, err
	case <-t.done:
		return nil, func() {}, ErrTrackEnded
	case <-tick:
		return NewTextFrame(""), func() {}, nil
	}
}

// Emit queues a frame. It returns false once the track has stopped.
func (t *FakeTrack) Emit(img image.Image) bool {
	if t.Stopped() {
		return false
	}
	select {
	case t.frames <- img:
		return true
	case <-t.done:
		return false
	}
}

// EmitText queues a TextFrame carrying text.
func (t *FakeTrack) EmitText(text string) bool {
	return t.Emit(NewTextFrame(text))
}

// Fail makes the next ReadFrame return err.
func (t *FakeTrack) Fail(err error) {
	select {
	case t.fail <- err:
	default:
	}
}

// TextFrame is a 1x1 frame that carries the text a test decoder should
// "find" in it. An empty Text is a frame without a code.
type TextFrame struct {
	*image.Gray
	Text string
}

// NewTextFrame returns a frame carrying text.
func NewTextFrame(text string) *TextFrame {
	return &TextFrame{Gray: image.NewGray(image.Rect(0, 0, 1, 1)), Text: text}
}
