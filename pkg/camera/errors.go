package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// ErrorKind classifies camera failures.
type ErrorKind string

const (
	KindPermissionDenied        ErrorKind = "permission_denied"
	KindDeviceNotFound          ErrorKind = "device_not_found"
	KindDeviceBusy              ErrorKind = "device_busy"
	KindConstraintUnsatisfiable ErrorKind = "constraint_unsatisfiable"
	// KindStreamFailed covers platform failures that fit no other kind.
	KindStreamFailed ErrorKind = "stream_failed"
)

// Sentinel errors for common conditions.
var (
	// ErrNoDevices is returned when enumeration finds no video input.
	ErrNoDevices = errors.New("camera: no video devices")

	// ErrNoVideoTrack is returned when a stream opens without video.
	ErrNoVideoTrack = errors.New("camera: stream has no video track")

	// ErrTorchUnsupported is returned by tracks without torch control.
	ErrTorchUnsupported = errors.New("camera: torch not supported")

	// ErrTrackEnded is returned when reading from a stopped track.
	ErrTrackEnded = errors.New("camera: track ended")
)

// Error is a classified camera failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("camera %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrap classifies err and tags it with op. Context errors pass through.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not a camera
// error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// Classify maps a platform error to a kind. Typed errors are checked first;
// drivers that only return text are matched on their messages.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return k
	}

	switch {
	case errors.Is(err, ErrNoDevices),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.ENOENT):
		return KindDeviceNotFound
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM):
		return KindPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return KindDeviceBusy
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "not allowed"),
		strings.Contains(msg, "notallowederror"):
		return KindPermissionDenied
	case strings.Contains(msg, "busy"),
		strings.Contains(msg, "in use"),
		strings.Contains(msg, "notreadableerror"):
		return KindDeviceBusy
	case strings.Contains(msg, "failed to find the best driver"),
		strings.Contains(msg, "overconstrained"),
		strings.Contains(msg, "unsatisfiable"):
		return KindConstraintUnsatisfiable
	case strings.Contains(msg, "no such device"),
		strings.Contains(msg, "device not found"),
		strings.Contains(msg, "notfounderror"):
		return KindDeviceNotFound
	}
	return KindStreamFailed
}
