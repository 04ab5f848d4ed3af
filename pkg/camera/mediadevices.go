package camera

import (
	"context"
	"image"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	// Registers the V4L2 / AVFoundation / DirectShow camera drivers.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

// MediaDevices is the Platform backed by pion/mediadevices. It has no
// notion of a permission prompt or of facing; the facing preference is
// honored only through device selection by label.
type MediaDevices struct{}

// NewMediaDevices returns the local camera platform.
func NewMediaDevices() *MediaDevices {
	return &MediaDevices{}
}

// EnumerateDevices lists the drivers registered with mediadevices.
func (m *MediaDevices) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		kind := KindAudioInput
		if d.Kind == mediadevices.VideoInput {
			kind = KindVideoInput
		}
		out = append(out, DeviceInfo{
			DeviceID: d.DeviceID,
			Label:    d.Label,
			Kind:     kind,
		})
	}
	return out, nil
}

// GetStream opens a video-only stream. mediadevices has no cancellable
// open, so ctx is only checked before the driver is asked.
func (m *MediaDevices) GetStream(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			if c.DeviceID != "" {
				mc.DeviceID = prop.String(c.DeviceID)
			}
			if c.Width > 0 {
				mc.Width = prop.Int(c.Width)
			}
			if c.Height > 0 {
				mc.Height = prop.Int(c.Height)
			}
			if c.Framerate > 0 {
				mc.FrameRate = prop.Float(c.Framerate)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &mdStream{stream: s}, nil
}

type mdStream struct {
	stream mediadevices.MediaStream
}

func (s *mdStream) Tracks() []Track {
	var out []Track
	for _, t := range s.stream.GetTracks() {
		if vt, ok := t.(*mediadevices.VideoTrack); ok {
			out = append(out, &mdVideoTrack{mdTrack: mdTrack{track: t}, video: vt})
			continue
		}
		out = append(out, &mdTrack{track: t})
	}
	return out
}

type mdTrack struct {
	track mediadevices.Track
	stop  sync.Once
}

func (t *mdTrack) ID() string { return t.track.ID() }

func (t *mdTrack) Stop() error {
	var err error
	t.stop.Do(func() { err = t.track.Close() })
	return err
}

// Capabilities reports no torch: mediadevices exposes no light control.
func (t *mdTrack) Capabilities() Capabilities { return Capabilities{} }

func (t *mdTrack) ApplyTorch(bool) error { return ErrTorchUnsupported }

type mdVideoTrack struct {
	mdTrack
	video *mediadevices.VideoTrack

	readerOnce sync.Once
	reader     video.Reader
}

func (t *mdVideoTrack) ReadFrame() (image.Image, func(), error) {
	t.readerOnce.Do(func() {
		t.reader = t.video.NewReader(false)
	})
	img, release, err := t.reader.Read()
	if err != nil {
		return nil, func() {}, err
	}
	if release == nil {
		release = func() {}
	}
	return img, release, nil
}
