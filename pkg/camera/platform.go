// Package camera owns camera devices and streams for a scanning session:
// enumeration, acquisition, release and track capabilities.
//
// Hardware is reached through the Platform interface. MediaDevices is the
// production implementation; FakePlatform drives tests.
package camera

import (
	"context"
	"image"
)

// DeviceKind distinguishes video inputs from the other descriptors a
// platform may return.
type DeviceKind string

const (
	KindVideoInput DeviceKind = "videoinput"
	KindAudioInput DeviceKind = "audioinput"
)

// DeviceInfo is the raw descriptor returned by a platform.
type DeviceInfo struct {
	DeviceID string
	Label    string
	Kind     DeviceKind
}

// Constraints describes a stream request. An empty DeviceID lets the
// platform choose; zero sizes mean "no preference".
type Constraints struct {
	DeviceID  string
	Facing    FacingMode
	Width     int
	Height    int
	Framerate int
}

// Capabilities are the optional features a track reports.
type Capabilities struct {
	Torch bool `json:"torch"`
}

// Track is one media track of a stream.
type Track interface {
	ID() string
	// Stop ends the track and frees the device. Stopping twice is allowed.
	Stop() error
	Capabilities() Capabilities
	ApplyTorch(on bool) error
}

// VideoTrack is a track that yields frames. ReadFrame blocks until the
// platform has the next frame; release must be called when done with img.
type VideoTrack interface {
	Track
	ReadFrame() (img image.Image, release func(), err error)
}

// Stream is an open media stream.
type Stream interface {
	Tracks() []Track
}

// Platform is the camera boundary.
type Platform interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	GetStream(ctx context.Context, c Constraints) (Stream, error)
}

// stopTracks stops every track of s and returns the first failure.
func stopTracks(s Stream) error {
	var first error
	for _, t := range s.Tracks() {
		if err := t.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
