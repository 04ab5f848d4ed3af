package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset1080p   = "1080p"
	PresetFront   = "front"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     LowPowerConfig(),
		Preset1080p:   HD1080Config(),
		PresetFront:   FrontConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		Preset1080p,
		PresetFront,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LowPowerConfig returns VGA at 15 FPS for older handhelds.
func LowPowerConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Framerate = 15
	return cfg
}

// HD1080Config returns 1080p for small or dense codes.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// FrontConfig prefers the user-facing camera (kiosks, laptops).
func FrontConfig() Config {
	cfg := DefaultConfig()
	cfg.Facing = FacingUser
	return cfg
}
