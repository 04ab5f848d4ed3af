package camera

import (
	"context"
	"log/slog"
)

// Catalog enumerates video devices.
type Catalog struct {
	platform Platform
	logger   *slog.Logger
}

// NewCatalog creates a catalog over platform. A nil logger uses slog.Default.
func NewCatalog(platform Platform, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{platform: platform, logger: logger}
}

// Enumerate returns the video inputs in platform order. It first opens and
// immediately releases a throwaway stream, since some platforms hide or
// blank device labels until camera permission is granted. The permission
// stream carries no constraints so a camera facing the other way still
// grants it. A failed permission request is returned as is and no devices
// are listed.
func (c *Catalog) Enumerate(ctx context.Context, preferred FacingMode) ([]Device, error) {
	perm, err := c.platform.GetStream(ctx, Constraints{})
	if err != nil {
		return nil, wrap("permission", err)
	}
	if err := stopTracks(perm); err != nil {
		c.logger.Warn("permission stream release failed", "error", err)
	}

	infos, err := c.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, wrap("enumerate", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info.Kind != KindVideoInput {
			continue
		}
		devices = append(devices, Device{
			DeviceID: info.DeviceID,
			Label:    info.Label,
			Facing:   InferFacing(info.Label),
		})
	}
	if len(devices) == 0 {
		return nil, &Error{Kind: KindDeviceNotFound, Op: "enumerate", Err: ErrNoDevices}
	}

	c.logger.Debug("devices enumerated", "count", len(devices), "preferred", preferred)
	return devices, nil
}

// Select picks the device for the requested facing. A single device is
// always chosen. With several, the first whose label matches the facing
// wins; without a match the rotation index picks one, so repeated
// switches cycle through unlabeled cameras.
func Select(devices []Device, preferred FacingMode, rotation int) (Device, bool) {
	switch len(devices) {
	case 0:
		return Device{}, false
	case 1:
		return devices[0], true
	}

	want := preferred.Facing()
	for _, d := range devices {
		if d.Facing == want {
			return d, true
		}
	}

	if rotation < 0 {
		rotation = -rotation
	}
	return devices[rotation%len(devices)], true
}
