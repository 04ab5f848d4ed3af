package camera

// Config holds the capture constraints used for every new stream.
// These can be modified via the camera API at runtime; a change applies
// to the next Start, never to a stream already open.
type Config struct {
	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS

	// Facing is the default preference when Start is called without one.
	Facing FacingMode `json:"facing"`
}

// Capture limits. QR modules stop resolving below VGA-ish sizes and
// decode cost grows with area, so the range is narrower than sensors allow.
const (
	MinWidth     = 320
	MaxWidth     = 3840
	MinHeight    = 240
	MaxHeight    = 2160
	MaxFramerate = 60
)

// DefaultConfig returns the recommended scanning configuration.
// 1280x720 keeps labels legible at arm's length without starving the decoder.
func DefaultConfig() Config {
	return Config{
		Width:     1280,
		Height:    720,
		Framerate: 30,
		Facing:    FacingEnvironment,
	}
}

// Constraints builds a stream request for device from the config.
func (c Config) Constraints(deviceID string, facing FacingMode) Constraints {
	return Constraints{
		DeviceID:  deviceID,
		Facing:    facing,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: c.Framerate,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 320 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 240 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if !c.Facing.Valid() {
		errors = append(errors, "facing must be environment or user")
	}

	return errors
}
