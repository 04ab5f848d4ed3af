package camera

import "strings"

// Facing is the physical orientation inferred for a device.
type Facing string

const (
	FacingUnknown Facing = "unknown"
	FacingFront   Facing = "front"
	FacingBack    Facing = "back"
)

// FacingMode is the caller's facing preference, using the names
// media APIs use for it.
type FacingMode string

const (
	// FacingEnvironment asks for a camera pointing away from the user.
	FacingEnvironment FacingMode = "environment"
	// FacingUser asks for a camera pointing at the user.
	FacingUser FacingMode = "user"
)

// Flip returns the opposite preference. Unknown values flip to environment.
func (m FacingMode) Flip() FacingMode {
	if m == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Valid reports whether m is one of the two known modes.
func (m FacingMode) Valid() bool {
	return m == FacingEnvironment || m == FacingUser
}

// Facing maps the preference to the device orientation it selects.
func (m FacingMode) Facing() Facing {
	if m == FacingUser {
		return FacingFront
	}
	return FacingBack
}

// Device is an enumerated video input. It is a snapshot taken at Start
// and never mutated afterwards.
type Device struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`
	Facing   Facing `json:"facing"`
}

var (
	backKeywords  = []string{"back", "rear", "environment"}
	frontKeywords = []string{"front", "user", "face"}
)

// InferFacing guesses orientation from a device label. Labels are
// platform dependent and often empty, so this is best effort.
func InferFacing(label string) Facing {
	l := strings.ToLower(label)
	for _, k := range backKeywords {
		if strings.Contains(l, k) {
			return FacingBack
		}
	}
	for _, k := range frontKeywords {
		if strings.Contains(l, k) {
			return FacingFront
		}
	}
	return FacingUnknown
}
