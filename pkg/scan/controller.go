package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/assetscan/internal/log"
	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/decode"
	"github.com/teslashibe/assetscan/pkg/lookup"
)

// DefaultLookupTimeout bounds one asset lookup.
const DefaultLookupTimeout = 10 * time.Second

// Resolver turns an identifier into an asset.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*lookup.Asset, error)
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State          State             `json:"state"`
	ErrorKind      camera.ErrorKind  `json:"errorKind,omitempty"`
	Error          string            `json:"error,omitempty"`
	SessionID      string            `json:"sessionId,omitempty"`
	Devices        []camera.Device   `json:"devices"`
	Selected       *camera.Device    `json:"selected,omitempty"`
	Facing         camera.FacingMode `json:"facing"`
	Torch          bool              `json:"torch"`
	TorchSupported bool              `json:"torchSupported"`
	LastResult     *Result           `json:"lastResult,omitempty"`
	LastAsset      *lookup.Asset     `json:"lastAsset,omitempty"`
	LookupError    string            `json:"lookupError,omitempty"`
	Stats          *SessionStats     `json:"stats,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCameraManager supplies the capture configuration read on every Start.
func WithCameraManager(m *camera.Manager) Option {
	return func(c *Controller) {
		if m != nil {
			c.cameras = m
		}
	}
}

// WithLookupTimeout bounds each asset lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithLoopStopTimeout bounds how long teardown waits for the decode loop.
func WithLoopStopTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.loopStopTimeout = d
		}
	}
}

// Controller owns the scanning lifecycle. At most one session exists at a
// time, and every exit path releases the camera before anything else
// happens.
type Controller struct {
	catalog         *camera.Catalog
	acquirer        *camera.Acquirer
	decoder         decode.Decoder
	resolver        Resolver
	notifier        Notifier
	cameras         *camera.Manager
	logger          *slog.Logger
	lookupTimeout   time.Duration
	loopStopTimeout time.Duration

	// ctx is cancelled by Close to abandon in-flight lookups.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	errKind   camera.ErrorKind
	lastErr   error
	facing    camera.FacingMode
	rotation  int
	switching bool
	sess      *session
	devices   []camera.Device
	selected  *camera.Device
	torch     bool
	closed    bool
	last      *Result
	lastAsset *lookup.Asset
	lookupErr error
	lastStats *SessionStats
}

// session is one Start..teardown cycle. stream and loop are set under
// Controller.mu before settled closes and are read by teardown only after.
type session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	settled   chan struct{}
	startedAt time.Time

	stream *camera.ActiveStream
	loop   *decode.Loop
	gate   *Gate

	// stopping is guarded by Controller.mu. The first exit path to set it
	// owns the session's final transition.
	stopping bool

	torchMu      sync.Mutex
	counters     counters
	teardownOnce sync.Once
	endedAt      time.Time
}

// New creates a controller.
func New(platform camera.Platform, decoder decode.Decoder, resolver Resolver, opts ...Option) *Controller {
	c := &Controller{
		decoder:         decoder,
		resolver:        resolver,
		cameras:         camera.NewManager(),
		logger:          log.Component("scan"),
		lookupTimeout:   DefaultLookupTimeout,
		loopStopTimeout: decode.DefaultStopTimeout,
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.catalog = camera.NewCatalog(platform, c.logger)
	c.acquirer = camera.NewAcquirer(platform, c.logger)
	c.facing = c.cameras.GetConfig().Facing
	if !c.facing.Valid() {
		c.facing = camera.FacingEnvironment
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the camera and begins decoding. It blocks until the session
// is streaming or acquisition has failed. An empty facing keeps the last
// one used. While a session is active Start changes nothing and returns
// ErrSessionActive.
func (c *Controller) Start(ctx context.Context, facing camera.FacingMode) error {
	return c.start(ctx, facing, 0)
}

// start claims a new session. advance moves the device rotation on, and
// like the facing it only takes effect once the session is claimed.
func (c *Controller) start(ctx context.Context, facing camera.FacingMode, advance int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Active() {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if facing.Valid() {
		c.facing = facing
	}
	c.rotation += advance

	s := &session{
		id:        uuid.NewString(),
		settled:   make(chan struct{}),
		gate:      NewGate(),
		startedAt: time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	c.sess = s
	c.state = StateRequesting
	c.errKind = ""
	c.lastErr = nil
	c.torch = false
	facing = c.facing
	rotation := c.rotation
	cfg := c.cameras.GetConfig()
	ev := c.stateEventLocked()
	c.mu.Unlock()

	defer close(s.settled)
	c.publish(ev)

	logger := c.logger.With("session", s.id)
	logger.Info("scan session starting", "facing", facing, "rotation", rotation)

	acq, err := c.acquire(s.ctx, logger, cfg, facing, rotation)
	if err != nil {
		return c.failStart(s, logger, err)
	}

	c.mu.Lock()
	if s.stopping || c.sess != s {
		c.mu.Unlock()
		if rerr := c.acquirer.Release(acq.stream); rerr != nil {
			logger.Warn("late stream release failed", "error", rerr)
		}
		logger.Info("acquisition finished after stop, stream released")
		return ErrStopped
	}
	s.stream = acq.stream
	s.loop = decode.NewLoop(c.decoder, c.frameHandler(s),
		decode.WithStopTimeout(c.loopStopTimeout),
		decode.WithLogger(logger))
	c.devices = acq.devices
	c.selected = &acq.device
	c.facing = acq.facing
	c.state = StateStreaming
	if err := s.loop.Begin(acq.stream.Video()); err != nil {
		// A fresh loop always begins; keep the session consistent anyway.
		logger.Error("decode loop did not start", "error", err)
	}
	ev = c.stateEventLocked()
	c.mu.Unlock()

	logger.Info("scan session streaming", "device", acq.device.DeviceID, "label", acq.device.Label)
	c.publish(ev)
	return nil
}

type acquisition struct {
	stream  *camera.ActiveStream
	devices []camera.Device
	device  camera.Device
	facing  camera.FacingMode
}

func (c *Controller) acquire(ctx context.Context, logger *slog.Logger, cfg camera.Config, facing camera.FacingMode, rotation int) (*acquisition, error) {
	devices, err := c.catalog.Enumerate(ctx, facing)
	if err != nil {
		return nil, err
	}

	device, _ := camera.Select(devices, facing, rotation)
	stream, err := c.acquirer.Acquire(ctx, cfg.Constraints(device.DeviceID, facing))
	if err != nil && camera.KindOf(err) == camera.KindConstraintUnsatisfiable {
		facing = facing.Flip()
		logger.Warn("constraints unsatisfiable, retrying with flipped facing",
			"device", device.DeviceID, "facing", facing)
		device, _ = camera.Select(devices, facing, rotation)
		stream, err = c.acquirer.Acquire(ctx, cfg.Constraints("", facing))
	}
	if err != nil {
		return nil, err
	}

	if stream.DeviceID != "" {
		for _, d := range devices {
			if d.DeviceID == stream.DeviceID {
				device = d
				break
			}
		}
	}
	return &acquisition{stream: stream, devices: devices, device: device, facing: facing}, nil
}

func (c *Controller) failStart(s *session, logger *slog.Logger, err error) error {
	s.cancel()

	c.mu.Lock()
	if s.stopping || c.sess != s {
		c.mu.Unlock()
		logger.Info("acquisition cancelled by stop", "error", err)
		return ErrStopped
	}
	c.sess = nil
	c.devices = nil
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.state = StateStopped
	} else {
		c.state = StateError
		c.errKind = camera.Classify(err)
		c.lastErr = err
	}
	ev := c.stateEventLocked()
	c.mu.Unlock()

	logger.Warn("scan session failed to start", "kind", ev.ErrorKind, "error", err)
	c.publish(ev)
	return err
}

// Stop ends the current session. It returns only after the decode loop
// has stopped, the stream has been released and the torch reset. Calling
// it without a session is a no-op apart from settling on Stopped.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		changed := c.state != StateStopped
		c.state = StateStopped
		c.errKind = ""
		c.lastErr = nil
		c.torch = false
		ev := c.stateEventLocked()
		c.mu.Unlock()
		if changed {
			c.publish(ev)
		}
		return nil
	}
	s.stopping = true
	c.mu.Unlock()

	c.teardown(s)

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return nil
	}
	c.endSessionLocked(s)
	c.state = StateStopped
	ev := c.stateEventLocked()
	ev.SessionID = s.id
	c.mu.Unlock()

	c.logger.Info("scan session stopped", "session", s.id)
	c.publish(ev)
	return nil
}

// SwitchCamera stops the current session and starts a new one facing the
// other way on the next device in rotation. The old stream is released
// before the new one is requested. A switch already in flight makes the
// call fail with ErrSwitchInProgress.
func (c *Controller) SwitchCamera(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.switching {
		c.mu.Unlock()
		return ErrSwitchInProgress
	}
	c.switching = true
	next := c.facing.Flip()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
	}()

	if err := c.Stop(); err != nil {
		return err
	}
	return c.start(ctx, next, 1)
}

// Close stops any session, refuses further starts and waits for pending
// lookups to finish.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Stop()
	c.cancel()
	c.wg.Wait()
	return err
}

// teardown stops the loop, then releases the stream. Concurrent callers
// all return after the single teardown has finished.
func (c *Controller) teardown(s *session) {
	s.cancel()
	<-s.settled

	s.teardownOnce.Do(func() {
		if s.loop != nil {
			s.loop.Stop()
		}
		s.torchMu.Lock()
		if s.stream != nil {
			if err := c.acquirer.Release(s.stream); err != nil {
				c.logger.Warn("stream release failed", "session", s.id, "error", err)
			}
		}
		s.torchMu.Unlock()
		s.endedAt = time.Now()
	})
}

// endSessionLocked clears the session's hold on the controller. Callers
// hold c.mu and have torn the session down.
func (c *Controller) endSessionLocked(s *session) {
	c.sess = nil
	c.torch = false
	c.errKind = ""
	c.lastErr = nil
	stats := s.counters.snapshot(s.startedAt, s.endedAt)
	c.lastStats = &stats
}

func (c *Controller) frameHandler(s *session) func(decode.FrameResult) {
	return func(r decode.FrameResult) {
		switch {
		case r.Err != nil:
			c.wg.Add(1)
			go c.failStream(s, r.Err)
		case r.Miss:
			s.counters.frames.Add(1)
			s.counters.misses.Add(1)
			if r.DecodeErr != nil {
				s.counters.decodeErrors.Add(1)
			}
		default:
			s.counters.frames.Add(1)
			if !s.gate.Admit(r.Text) {
				s.counters.suppressed.Add(1)
				return
			}
			s.counters.admitted.Add(1)
			c.wg.Add(1)
			go c.complete(s, NewResult(r.Text))
		}
	}
}

// failStream handles a frame source that stopped delivering mid-session.
func (c *Controller) failStream(s *session, err error) {
	defer c.wg.Done()

	c.mu.Lock()
	if s.stopping || c.sess != s {
		c.mu.Unlock()
		return
	}
	s.stopping = true
	c.mu.Unlock()

	c.teardown(s)

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	c.endSessionLocked(s)
	c.state = StateError
	c.errKind = camera.Classify(err)
	c.lastErr = err
	ev := c.stateEventLocked()
	ev.SessionID = s.id
	c.mu.Unlock()

	c.logger.Warn("camera stream failed", "session", s.id, "kind", ev.ErrorKind, "error", err)
	c.publish(ev)
}

// complete handles the admitted result: camera first, lookup second.
func (c *Controller) complete(s *session, result Result) {
	defer c.wg.Done()

	c.mu.Lock()
	if s.stopping || c.sess != s {
		c.mu.Unlock()
		c.logger.Debug("result dropped, session already stopping", "session", s.id)
		return
	}
	s.stopping = true
	c.mu.Unlock()

	c.teardown(s)

	c.mu.Lock()
	var events []Event
	if c.sess == s {
		c.endSessionLocked(s)
		c.state = StateStopped
		ev := c.stateEventLocked()
		ev.SessionID = s.id
		events = append(events, ev)
	}
	c.last = &result
	c.lastAsset = nil
	c.lookupErr = nil
	events = append(events, Event{Type: EventScanned, SessionID: s.id, Result: &result})
	c.mu.Unlock()

	c.logger.Info("code scanned", "session", s.id, "identifier", result.Identifier)
	for _, ev := range events {
		c.publish(ev)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.lookupTimeout)
	defer cancel()
	c.resolve(ctx, s.id, &result)
}

// RetryLookup resolves the last scanned result again. The camera is not
// touched.
func (c *Controller) RetryLookup(ctx context.Context) (*lookup.Asset, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return nil, ErrNoResult
	}

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()
	return c.resolve(ctx, "", last)
}

func (c *Controller) resolve(ctx context.Context, sessionID string, result *Result) (*lookup.Asset, error) {
	asset, err := c.resolver.Resolve(ctx, result.Identifier)

	c.mu.Lock()
	if c.last == result {
		c.lastAsset = asset
		c.lookupErr = err
	}
	c.mu.Unlock()

	ev := Event{Type: EventLookupSucceeded, SessionID: sessionID, Result: result, Asset: asset}
	if err != nil {
		ev = Event{Type: EventLookupFailed, SessionID: sessionID, Result: result, Error: err.Error()}
		c.logger.Warn("asset lookup failed", "identifier", result.Identifier, "error", err)
	} else {
		c.logger.Info("asset resolved", "identifier", result.Identifier, "asset", asset.ID)
	}
	c.publish(ev)
	return asset, err
}

// SetTorch switches the torch. It returns the torch state afterwards,
// which stays false on a camera without torch control.
func (c *Controller) SetTorch(on bool) (bool, error) {
	return c.applyTorch(func(bool) bool { return on })
}

// ToggleTorch flips the torch.
func (c *Controller) ToggleTorch() (bool, error) {
	return c.applyTorch(func(cur bool) bool { return !cur })
}

func (c *Controller) applyTorch(next func(cur bool) bool) (bool, error) {
	c.mu.Lock()
	s := c.sess
	if c.state != StateStreaming || s == nil {
		c.mu.Unlock()
		return false, ErrNotStreaming
	}
	c.mu.Unlock()

	s.torchMu.Lock()
	defer s.torchMu.Unlock()

	if s.stream.Released() {
		return false, ErrNotStreaming
	}

	c.mu.Lock()
	want := next(c.torch)
	c.mu.Unlock()

	applied, err := camera.SetTorch(s.stream, want)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return false, ErrNotStreaming
	}
	c.torch = want
	c.mu.Unlock()

	c.publish(Event{Type: EventTorchChanged, SessionID: s.id, Torch: &want})
	return want, nil
}

// Snapshot returns the controller's current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:     c.state,
		ErrorKind: c.errKind,
		Devices:   append([]camera.Device(nil), c.devices...),
		Facing:    c.facing,
		Torch:     c.torch,
		LastAsset: c.lastAsset,
		Stats:     c.lastStats,
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	if c.lookupErr != nil {
		snap.LookupError = c.lookupErr.Error()
	}
	if c.selected != nil {
		d := *c.selected
		snap.Selected = &d
	}
	if c.last != nil {
		r := *c.last
		snap.LastResult = &r
	}
	if s := c.sess; s != nil {
		snap.SessionID = s.id
		if c.state == StateStreaming {
			snap.TorchSupported = camera.SupportsTorch(s.stream)
			stats := s.counters.snapshot(s.startedAt, time.Time{})
			snap.Stats = &stats
		}
	}
	return snap
}

func (c *Controller) stateEventLocked() Event {
	ev := Event{Type: EventStateChanged, State: c.state, ErrorKind: c.errKind}
	if c.sess != nil {
		ev.SessionID = c.sess.id
	}
	if c.lastErr != nil {
		ev.Error = c.lastErr.Error()
	}
	return ev
}

func (c *Controller) publish(ev Event) {
	if c.notifier == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.notifier.Notify(ev)
}
