package islandcycle

import "github.com/hajimehoshi/ebiten/v2"

// Device describes the input and display capabilities the presentation
// adapts to. Only resolution caps and the parallax gate depend on it.
type Device struct {
	IsTouch    bool
	IsMobile   bool
	IsTablet   bool
	PixelRatio float64
}

// DeviceConfig forces device traits that cannot be detected reliably.
type DeviceConfig struct {
	ForceTouch  bool    `yaml:"force_touch"`
	ForceMobile bool    `yaml:"force_mobile"`
	ForceTablet bool    `yaml:"force_tablet"`
	PixelRatio  float64 `yaml:"pixel_ratio"`
}

// DetectDevice builds a Device from configuration overrides and the
// monitor's scale factor. Must be called on the game goroutine once the
// window exists.
func DetectDevice(cfg DeviceConfig) Device {
	d := Device{
		IsTouch:    cfg.ForceTouch || cfg.ForceMobile || cfg.ForceTablet,
		IsMobile:   cfg.ForceMobile,
		IsTablet:   cfg.ForceTablet,
		PixelRatio: cfg.PixelRatio,
	}
	if d.PixelRatio <= 0 {
		d.PixelRatio = 1
		if m := ebiten.Monitor(); m != nil {
			d.PixelRatio = m.DeviceScaleFactor()
		}
	}
	return d
}

// ObserveTouch marks the device as touch-driven once any touch is seen.
// The flag is sticky; a device never reverts to pointer input.
func (d *Device) ObserveTouch(touchCount int) bool {
	if touchCount > 0 && !d.IsTouch {
		d.IsTouch = true
		return true
	}
	return false
}
