package scan

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrSessionActive is returned by Start while a session is requesting
	// or streaming.
	ErrSessionActive = errors.New("scan: session already active")

	// ErrNotStreaming is returned by torch calls outside Streaming.
	ErrNotStreaming = errors.New("scan: not streaming")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("scan: controller closed")

	// ErrNoResult is returned by RetryLookup before any scan.
	ErrNoResult = errors.New("scan: no scanned result")

	// ErrSwitchInProgress is returned by SwitchCamera while another switch
	// has not finished.
	ErrSwitchInProgress = errors.New("scan: camera switch in progress")

	// ErrStopped is returned by Start when Stop cancelled the acquisition.
	ErrStopped = errors.New("scan: stopped during acquisition")
)
