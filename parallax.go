package islandcycle

// DefaultParallaxTau reproduces a 0.02 per-frame lerp at 60 Hz.
var DefaultParallaxTau = TauForFactor(0.02, referenceHz)

// ParallaxSample is emitted every frame for overlays that mirror the depth
// effect outside the canvas.
type ParallaxSample struct {
	X, Y     float64
	Viewport Size
}

// ParallaxSource turns the pointer position into a smoothed offset in
// [-1,1]² (+Y up). On touch devices it is disengaged and always reports the
// neutral offset.
type ParallaxSource struct {
	tau     float64
	touch   bool
	target  Vec2
	current Vec2
}

// NewParallaxSource creates a source with smoothing time constant tau
// (seconds); tau <= 0 uses DefaultParallaxTau.
func NewParallaxSource(tau float64) *ParallaxSource {
	if tau <= 0 {
		tau = DefaultParallaxTau
	}
	return &ParallaxSource{tau: tau}
}

// SetTouch engages or disengages the source. Disengaging resets it.
func (p *ParallaxSource) SetTouch(touch bool) {
	p.touch = touch
	if touch {
		p.target = Vec2{}
		p.current = Vec2{}
	}
}

// SetPointer records the raw pointer position in viewport pixels (origin
// top-left, Y down).
func (p *ParallaxSource) SetPointer(x, y, viewportW, viewportH float64) {
	if p.touch || viewportW <= 0 || viewportH <= 0 {
		return
	}
	p.target = Vec2{
		X: clampUnit(x/viewportW*2 - 1),
		Y: clampUnit(-(y/viewportH*2 - 1)),
	}
}

// Step moves the smoothed offset toward the pointer by dt seconds and returns
// the new offset.
func (p *ParallaxSource) Step(dt float64) Vec2 {
	if p.touch {
		return Vec2{}
	}
	a := SmoothingAlpha(dt, p.tau)
	p.current.X += (p.target.X - p.current.X) * a
	p.current.Y += (p.target.Y - p.current.Y) * a
	return p.current
}

// Offset returns the smoothed offset.
func (p *ParallaxSource) Offset() Vec2 {
	if p.touch {
		return Vec2{}
	}
	return p.current
}

// LayerOffset returns the world-space displacement of a layer with the given
// parallax factor: offset * factor * viewport on each axis.
func (p *ParallaxSource) LayerOffset(factor float64, viewport Size) Vec2 {
	o := p.Offset()
	return Vec2{X: o.X * factor * viewport.Width, Y: o.Y * factor * viewport.Height}
}

// Sample packages the current offset for observers.
func (p *ParallaxSource) Sample(viewport Size) ParallaxSample {
	o := p.Offset()
	return ParallaxSample{X: o.X, Y: o.Y, Viewport: viewport}
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
