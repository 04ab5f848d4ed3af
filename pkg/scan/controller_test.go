package scan

import (
	"context"
	"errors"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/decode"
	"github.com/teslashibe/assetscan/pkg/lookup"
)

const waitTimeout = 2 * time.Second

// corruptText makes textDecoder fail the frame outright.
const corruptText = "!corrupt"

var textDecoder = decode.DecoderFunc(func(img image.Image) (string, error) {
	f, ok := img.(*camera.TextFrame)
	switch {
	case !ok || f.Text == "":
		return "", decode.ErrNotFound
	case f.Text == corruptText:
		return "", errors.New("unreadable frame")
	}
	return f.Text, nil
})

type fakeResolver struct {
	platform *camera.FakePlatform

	mu         sync.Mutex
	calls      []string
	openAtCall []int
	err        error
}

func (r *fakeResolver) Resolve(ctx context.Context, identifier string) (*lookup.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, identifier)
	if r.platform != nil {
		r.openAtCall = append(r.openAtCall, r.platform.OpenStreams())
	}
	if r.err != nil {
		return nil, r.err
	}
	return &lookup.Asset{ID: "id-" + identifier, AssetTag: identifier}, nil
}

func (r *fakeResolver) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *fakeResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type eventLog struct {
	ch chan Event
}

func newEventLog() *eventLog {
	return &eventLog{ch: make(chan Event, 512)}
}

func (l *eventLog) Notify(e Event) {
	select {
	case l.ch <- e:
	default:
	}
}

func (l *eventLog) wait(t *testing.T, typ EventType) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-l.ch:
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s event", typ)
			return Event{}
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type harness struct {
	platform *camera.FakePlatform
	resolver *fakeResolver
	events   *eventLog
	ctrl     *Controller
}

func newHarness(t *testing.T, labels ...string) *harness {
	t.Helper()
	p := camera.NewFakePlatform(labels...)
	p.FrameInterval = 5 * time.Millisecond
	h := &harness{
		platform: p,
		resolver: &fakeResolver{platform: p},
		events:   newEventLog(),
	}
	h.ctrl = New(p, textDecoder, h.resolver,
		WithNotifier(h.events),
		WithLoopStopTimeout(200*time.Millisecond))
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func TestStart_StreamsFromSelectedDevice(t *testing.T) {
	h := newHarness(t, "Front Camera", "Back Camera")

	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.State != StateStreaming {
		t.Errorf("Expected streaming, got %s", snap.State)
	}
	if snap.Selected == nil || snap.Selected.DeviceID != "cam1" {
		t.Errorf("Expected back camera cam1, got %+v", snap.Selected)
	}
	if len(snap.Devices) != 2 {
		t.Errorf("Expected 2 devices, got %d", len(snap.Devices))
	}
	if h.platform.OpenStreams() != 1 {
		t.Errorf("Expected 1 open stream, got %d", h.platform.OpenStreams())
	}
	if snap.SessionID == "" {
		t.Error("Expected a session id")
	}
}

func TestScan_TeardownBeforeLookup(t *testing.T) {
	h := newHarness(t, "Front Camera", "Back Camera")
	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}
	track := h.platform.LastTrack()

	track.EmitText("AST-0042")
	ev := h.events.wait(t, EventLookupSucceeded)

	if ev.Asset == nil || ev.Asset.AssetTag != "AST-0042" {
		t.Errorf("Expected asset AST-0042, got %+v", ev.Asset)
	}
	if calls := h.resolver.Calls(); len(calls) != 1 || calls[0] != "AST-0042" {
		t.Errorf("Expected one lookup for AST-0042, got %v", calls)
	}
	if h.resolver.openAtCall[0] != 0 {
		t.Errorf("Expected camera released before lookup, %d streams open", h.resolver.openAtCall[0])
	}
	if !track.Stopped() {
		t.Error("Expected track stopped")
	}

	snap := h.ctrl.Snapshot()
	if snap.State != StateStopped {
		t.Errorf("Expected stopped, got %s", snap.State)
	}
	if snap.LastResult == nil || snap.LastResult.Identifier != "AST-0042" {
		t.Errorf("Expected last result AST-0042, got %+v", snap.LastResult)
	}
	if snap.LastAsset == nil || snap.LastAsset.ID != "id-AST-0042" {
		t.Errorf("Expected last asset recorded, got %+v", snap.LastAsset)
	}
}

func TestScan_SingleFlight(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	track := h.platform.LastTrack()

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			track.EmitText("A")
		} else {
			track.EmitText("B")
		}
	}
	scanned := h.events.wait(t, EventScanned)
	h.events.wait(t, EventLookupSucceeded)

	// Give stragglers a chance to show up.
	time.Sleep(50 * time.Millisecond)

	calls := h.resolver.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 lookup, got %d", len(calls))
	}
	if scanned.Result == nil || calls[0] != scanned.Result.Identifier {
		t.Errorf("Expected lookup for the admitted identifier %+v, got %s", scanned.Result, calls[0])
	}
	snap := h.ctrl.Snapshot()
	if snap.Stats == nil || snap.Stats.Admitted != 1 {
		t.Errorf("Expected 1 admitted result, got %+v", snap.Stats)
	}
}

func TestStart_PermissionDeniedThenRetry(t *testing.T) {
	h := newHarness(t, "Back Camera")

	var mu sync.Mutex
	deny := true
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		mu.Lock()
		defer mu.Unlock()
		if deny {
			return os.ErrPermission
		}
		return nil
	}

	err := h.ctrl.Start(context.Background(), "")
	if camera.KindOf(err) != camera.KindPermissionDenied {
		t.Fatalf("Expected permission denied, got %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != StateError || snap.ErrorKind != camera.KindPermissionDenied {
		t.Errorf("Expected error(permission_denied), got %s(%s)", snap.State, snap.ErrorKind)
	}
	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected no open streams, got %d", h.platform.OpenStreams())
	}
	if h.platform.Enumerations() != 0 {
		t.Errorf("Expected no enumeration without permission, got %d", h.platform.Enumerations())
	}

	mu.Lock()
	deny = false
	mu.Unlock()

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	snap = h.ctrl.Snapshot()
	if snap.State != StateStreaming || snap.ErrorKind != "" {
		t.Errorf("Expected clean streaming, got %s(%s)", snap.State, snap.ErrorKind)
	}
}

func TestStart_ReentrantCallIsRejected(t *testing.T) {
	h := newHarness(t, "Back Camera")

	release := make(chan struct{})
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background(), "") }()

	waitFor(t, "first stream request", func() bool { return len(h.platform.Requests()) >= 1 })

	if err := h.ctrl.Start(context.Background(), ""); !errors.Is(err, ErrSessionActive) {
		t.Errorf("Expected ErrSessionActive, got %v", err)
	}
	if n := len(h.platform.Requests()); n != 1 {
		t.Errorf("Expected second Start to request nothing, got %d requests", n)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if h.platform.Enumerations() != 1 {
		t.Errorf("Expected 1 enumeration, got %d", h.platform.Enumerations())
	}
	if h.platform.OpenStreams() != 1 {
		t.Errorf("Expected 1 open stream, got %d", h.platform.OpenStreams())
	}

	if err := h.ctrl.Start(context.Background(), ""); !errors.Is(err, ErrSessionActive) {
		t.Errorf("Expected ErrSessionActive while streaming, got %v", err)
	}
}

func TestStop_DuringAcquisitionReleasesLateStream(t *testing.T) {
	h := newHarness(t, "Back Camera")

	release := make(chan struct{})
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.DeviceID == "" {
			return nil // permission stream
		}
		<-release // platform ignores cancellation
		return nil
	}

	started := make(chan error, 1)
	go func() { started <- h.ctrl.Start(context.Background(), "") }()
	waitFor(t, "acquisition request", func() bool { return len(h.platform.Requests()) >= 2 })

	stopped := make(chan struct{})
	go func() {
		h.ctrl.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Expected Stop to wait for the acquisition to settle")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-started; !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	<-stopped

	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected late stream released, %d open", h.platform.OpenStreams())
	}
	if s := h.ctrl.State(); s != StateStopped {
		t.Errorf("Expected stopped, got %s", s)
	}
}

func TestStop_CancelsAcquisition(t *testing.T) {
	h := newHarness(t, "Back Camera")
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.DeviceID == "" {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}

	started := make(chan error, 1)
	go func() { started <- h.ctrl.Start(context.Background(), "") }()
	waitFor(t, "acquisition request", func() bool { return len(h.platform.Requests()) >= 2 })

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-started; !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if s := h.ctrl.State(); s != StateStopped {
		t.Errorf("Expected stopped, got %s", s)
	}
	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected no open streams, got %d", h.platform.OpenStreams())
	}
}

func TestSwitchCamera_ReleasesBeforeAcquiring(t *testing.T) {
	h := newHarness(t, "USB Camera A", "USB Camera B")

	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := h.platform.LastTrack()
	if first.DeviceID != "cam0" {
		t.Errorf("Expected cam0 first, got %s", first.DeviceID)
	}

	if err := h.ctrl.SwitchCamera(context.Background()); err != nil {
		t.Fatalf("switch: %v", err)
	}

	if h.platform.MaxOpenStreams() != 1 {
		t.Errorf("Expected at most 1 stream open at once, got %d", h.platform.MaxOpenStreams())
	}
	if h.platform.OpenStreams() != 1 {
		t.Errorf("Expected 1 open stream after switch, got %d", h.platform.OpenStreams())
	}
	if !first.Stopped() {
		t.Error("Expected old track stopped")
	}

	snap := h.ctrl.Snapshot()
	if snap.Selected == nil || snap.Selected.DeviceID != "cam1" {
		t.Errorf("Expected rotation to pick cam1, got %+v", snap.Selected)
	}
	if snap.Facing != camera.FacingUser {
		t.Errorf("Expected facing user, got %s", snap.Facing)
	}
	if snap.State != StateStreaming {
		t.Errorf("Expected streaming, got %s", snap.State)
	}
}

func TestSwitchCamera_RejectsOverlappingSwitch(t *testing.T) {
	h := newHarness(t, "USB Camera A", "USB Camera B")
	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}

	release := make(chan struct{})
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.DeviceID == "" {
			return nil // permission stream
		}
		<-release
		return nil
	}

	switched := make(chan error, 1)
	go func() { switched <- h.ctrl.SwitchCamera(context.Background()) }()
	waitFor(t, "switch acquisition", func() bool { return len(h.platform.Requests()) >= 4 })

	if err := h.ctrl.SwitchCamera(context.Background()); !errors.Is(err, ErrSwitchInProgress) {
		t.Errorf("Expected ErrSwitchInProgress, got %v", err)
	}

	close(release)
	if err := <-switched; err != nil {
		t.Fatalf("switch: %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Facing != camera.FacingUser {
		t.Errorf("Expected a single flip to user, got %s", snap.Facing)
	}
	if snap.Selected == nil || snap.Selected.DeviceID != "cam1" {
		t.Errorf("Expected rotation to advance once to cam1, got %+v", snap.Selected)
	}
	if h.platform.OpenStreams() != 1 {
		t.Errorf("Expected 1 open stream, got %d", h.platform.OpenStreams())
	}

	if err := h.ctrl.SwitchCamera(context.Background()); err != nil {
		t.Fatalf("Expected a later switch to succeed, got %v", err)
	}
	if s := h.ctrl.Snapshot(); s.Facing != camera.FacingEnvironment || s.Selected == nil || s.Selected.DeviceID != "cam0" {
		t.Errorf("Expected environment on cam0, got %s on %+v", s.Facing, s.Selected)
	}
}

func TestTorch_ResetOnStop(t *testing.T) {
	h := newHarness(t, "Back Camera")
	h.platform.Torch = true

	if _, err := h.ctrl.SetTorch(true); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("Expected ErrNotStreaming before start, got %v", err)
	}

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	track := h.platform.LastTrack()

	on, err := h.ctrl.ToggleTorch()
	if err != nil || !on {
		t.Fatalf("Expected torch on, got %v, %v", on, err)
	}
	if !track.TorchOn() {
		t.Error("Expected track torch on")
	}
	if snap := h.ctrl.Snapshot(); !snap.Torch || !snap.TorchSupported {
		t.Errorf("Expected torch on and supported, got %+v", snap)
	}
	ev := h.events.wait(t, EventTorchChanged)
	if ev.Torch == nil || !*ev.Torch {
		t.Errorf("Expected torch event on, got %+v", ev.Torch)
	}

	h.ctrl.Stop()

	if h.ctrl.Snapshot().Torch {
		t.Error("Expected torch reset on stop")
	}
	if track.TorchOn() {
		t.Error("Expected track torch off after stop")
	}

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if h.ctrl.Snapshot().Torch {
		t.Error("Expected torch off on a new session")
	}
}

func TestTorch_ResetOnSwitch(t *testing.T) {
	h := newHarness(t, "USB Camera A", "USB Camera B")
	h.platform.Torch = true

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	old := h.platform.LastTrack()

	if on, err := h.ctrl.ToggleTorch(); err != nil || !on {
		t.Fatalf("Expected torch on, got %v, %v", on, err)
	}

	if err := h.ctrl.SwitchCamera(context.Background()); err != nil {
		t.Fatalf("switch: %v", err)
	}

	if h.ctrl.Snapshot().Torch {
		t.Error("Expected torch reset on switch")
	}
	if old.TorchOn() {
		t.Error("Expected old track torch off after switch")
	}
	if h.platform.LastTrack().TorchOn() {
		t.Error("Expected new track to start with torch off")
	}
}

func TestTorch_CallsAreSerialized(t *testing.T) {
	h := newHarness(t, "Back Camera")
	h.platform.Torch = true

	var inside, peak atomic.Int32
	h.platform.TorchFunc = func(bool) {
		n := inside.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inside.Add(-1)
	}

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	track := h.platform.LastTrack()

	const toggles = 8
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ctrl.ToggleTorch(); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := peak.Load(); p != 1 {
		t.Errorf("Expected 1 torch change in flight at a time, got %d", p)
	}
	// An even number of serialized toggles ends where it began.
	if h.ctrl.Snapshot().Torch || track.TorchOn() {
		t.Error("Expected torch off after an even number of toggles")
	}
}

func TestTorch_Unsupported(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	on, err := h.ctrl.SetTorch(true)
	if err != nil || on {
		t.Errorf("Expected false, nil for unsupported torch, got %v, %v", on, err)
	}
	if h.ctrl.Snapshot().TorchSupported {
		t.Error("Expected torch unsupported")
	}
}

func TestStop_Idempotent(t *testing.T) {
	h := newHarness(t, "Back Camera")

	if err := h.ctrl.Stop(); err != nil {
		t.Errorf("Expected nil stop from idle, got %v", err)
	}
	if s := h.ctrl.State(); s != StateStopped {
		t.Errorf("Expected stopped, got %s", s)
	}

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.ctrl.Stop(); err != nil {
				t.Errorf("stop: %v", err)
			}
		}()
	}
	wg.Wait()
	h.ctrl.Stop()

	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected no open streams, got %d", h.platform.OpenStreams())
	}
	if s := h.ctrl.State(); s != StateStopped {
		t.Errorf("Expected stopped, got %s", s)
	}
}

func TestStart_ConstraintRetryFlipsFacing(t *testing.T) {
	h := newHarness(t, "Back Camera", "Front Camera")
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.DeviceID != "" {
			return errors.New("failed to find the best driver that fits the constraints")
		}
		return nil
	}

	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}

	reqs := h.platform.Requests()
	last := reqs[len(reqs)-1]
	if last.DeviceID != "" || last.Facing != camera.FacingUser {
		t.Errorf("Expected retry with no device and facing user, got %+v", last)
	}
	if len(reqs) != 3 {
		t.Errorf("Expected permission, attempt and retry requests, got %d", len(reqs))
	}
	if s := h.ctrl.State(); s != StateStreaming {
		t.Errorf("Expected streaming, got %s", s)
	}
}

func TestStart_FrontOnlyDeviceFallsBack(t *testing.T) {
	h := newHarness(t, "Front Camera")
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.Facing == camera.FacingEnvironment {
			return errors.New("overconstrained")
		}
		return nil
	}

	if err := h.ctrl.Start(context.Background(), camera.FacingEnvironment); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.State != StateStreaming {
		t.Errorf("Expected streaming, got %s", snap.State)
	}
	if snap.Facing != camera.FacingUser {
		t.Errorf("Expected facing user after fallback, got %s", snap.Facing)
	}
	if n := len(h.platform.Requests()); n != 3 {
		t.Errorf("Expected permission, attempt and retry requests, got %d", n)
	}
}

func TestStart_ConstraintRetryFailsOnce(t *testing.T) {
	h := newHarness(t, "Back Camera")
	h.platform.StreamFunc = func(ctx context.Context, c camera.Constraints) error {
		if c.Width == 0 {
			return nil // permission stream
		}
		return errors.New("overconstrained")
	}

	err := h.ctrl.Start(context.Background(), "")
	if camera.KindOf(err) != camera.KindConstraintUnsatisfiable {
		t.Fatalf("Expected constraint_unsatisfiable, got %v", err)
	}
	if n := len(h.platform.Requests()); n != 3 {
		t.Errorf("Expected a single retry, got %d requests", n)
	}
	if s := h.ctrl.State(); s != StateError {
		t.Errorf("Expected error state, got %s", s)
	}
}

func TestStream_ReadErrorTearsDown(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.platform.LastTrack().Fail(errors.New("device or resource busy"))

	waitFor(t, "error state", func() bool { return h.ctrl.State() == StateError })
	snap := h.ctrl.Snapshot()
	if snap.ErrorKind != camera.KindDeviceBusy {
		t.Errorf("Expected device_busy, got %s", snap.ErrorKind)
	}
	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected no open streams, got %d", h.platform.OpenStreams())
	}

	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Errorf("Expected Start to recover from error, got %v", err)
	}
}

func TestClose_WaitsForStreamFailure(t *testing.T) {
	p := camera.NewFakePlatform("Back Camera")
	p.FrameInterval = 5 * time.Millisecond

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	notifier := NotifierFunc(func(e Event) {
		if e.Type == EventStateChanged && e.State == StateError {
			once.Do(func() { close(entered) })
			<-release
		}
	})
	ctrl := New(p, textDecoder, &fakeResolver{}, WithNotifier(notifier), WithLoopStopTimeout(200*time.Millisecond))

	if err := ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.LastTrack().Fail(errors.New("device or resource busy"))

	select {
	case <-entered:
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for error event")
	}

	closed := make(chan struct{})
	go func() {
		ctrl.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Expected Close to wait for the failure to be published")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for Close")
	}
}

func TestStats_CountsDecodeErrors(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	track := h.platform.LastTrack()

	track.EmitText(corruptText)
	track.EmitText(corruptText)
	track.EmitText("AST-1")
	h.events.wait(t, EventLookupSucceeded)

	stats := h.ctrl.Snapshot().Stats
	if stats == nil {
		t.Fatal("Expected session stats")
	}
	if stats.DecodeErrors != 2 {
		t.Errorf("Expected 2 decode errors, got %d", stats.DecodeErrors)
	}
	if stats.Misses < stats.DecodeErrors {
		t.Errorf("Expected decode errors counted as misses, got %d misses", stats.Misses)
	}
	if stats.Admitted != 1 {
		t.Errorf("Expected 1 admitted, got %d", stats.Admitted)
	}
}

func TestLookupFailure_RetryLookup(t *testing.T) {
	h := newHarness(t, "Back Camera")

	if _, err := h.ctrl.RetryLookup(context.Background()); !errors.Is(err, ErrNoResult) {
		t.Errorf("Expected ErrNoResult, got %v", err)
	}

	h.resolver.setErr(&lookup.APIError{StatusCode: 404, Message: "Asset not found"})
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.platform.LastTrack().EmitText("asset:AST-7")

	ev := h.events.wait(t, EventLookupFailed)
	if ev.Result == nil || ev.Result.Identifier != "AST-7" {
		t.Errorf("Expected failed lookup for AST-7, got %+v", ev.Result)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != StateStopped {
		t.Errorf("Expected stopped after lookup failure, got %s", snap.State)
	}
	if snap.LookupError == "" {
		t.Error("Expected lookup error in snapshot")
	}

	h.resolver.setErr(nil)
	asset, err := h.ctrl.RetryLookup(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if asset.AssetTag != "AST-7" {
		t.Errorf("Expected AST-7, got %s", asset.AssetTag)
	}
	if h.ctrl.Snapshot().LookupError != "" {
		t.Error("Expected lookup error cleared")
	}
	if n := len(h.platform.Requests()); n != 2 {
		t.Errorf("Expected retry not to touch the camera, got %d requests", n)
	}
}

func TestClose_RefusesStart(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if h.platform.OpenStreams() != 0 {
		t.Errorf("Expected no open streams after close, got %d", h.platform.OpenStreams())
	}
	if err := h.ctrl.Start(context.Background(), ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := h.ctrl.SwitchCamera(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from switch, got %v", err)
	}
}

func TestEvents_StateSequence(t *testing.T) {
	h := newHarness(t, "Back Camera")
	if err := h.ctrl.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.ctrl.Stop()

	want := []State{StateRequesting, StateStreaming, StateStopped}
	for _, s := range want {
		ev := h.events.wait(t, EventStateChanged)
		if ev.State != s {
			t.Errorf("Expected state %s, got %s", s, ev.State)
		}
		if ev.SessionID == "" {
			t.Errorf("Expected session id on %s event", s)
		}
	}
}
