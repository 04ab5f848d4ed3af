// Package scan runs QR scanning sessions: it owns the camera for the
// lifetime of a session, admits exactly one decoded result and hands it to
// the asset lookup after the camera has been released.
package scan

// State is the controller's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStreaming  State = "streaming"
	StateStopped    State = "stopped"
	StateError      State = "error"
)

// Active reports whether a session holds, or is acquiring, the camera.
func (s State) Active() bool {
	return s == StateRequesting || s == StateStreaming
}
