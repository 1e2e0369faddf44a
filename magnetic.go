package islandcycle

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tanema/gween/ease"
)

// Magnetic cursor tuning.
const (
	magneticPull       = 0.1
	magneticHoverScale = 1.1
	magneticScaleTime  = 0.2
	magneticRadius     = 14
)

// DefaultMagneticTau reproduces a 0.2 per-frame follow lerp at 60 Hz.
var DefaultMagneticTau = TauForFactor(0.2, referenceHz)

// MagneticCursor is a ring that trails the pointer and is drawn toward the
// centre of the hovered hotspot. It is inactive on touch devices.
type MagneticCursor struct {
	tau     float64
	pointer Vec2
	target  Vec2
	pos     Vec2
	scale   float64
	tween   *TweenGroup
	hovered bool
	active  bool
	placed  bool

	Color color.Color
}

// NewMagneticCursor creates an active cursor.
func NewMagneticCursor() *MagneticCursor {
	return &MagneticCursor{
		tau:    DefaultMagneticTau,
		scale:  1,
		active: true,
		Color:  color.RGBA{R: 255, G: 255, B: 255, A: 200},
	}
}

// SetActive enables or disables the cursor.
func (m *MagneticCursor) SetActive(active bool) { m.active = active }

// Active reports whether the cursor is shown.
func (m *MagneticCursor) Active() bool { return m.active }

// SetPointer records the pointer in screen pixels. When hovering, the cursor
// is pulled a fraction of the way toward the hotspot centre.
func (m *MagneticCursor) SetPointer(x, y float64, hover Hotspot, hovering bool) {
	m.pointer = Vec2{X: x, Y: y}
	m.target = m.pointer
	if hovering {
		c := hover.Area
		m.target.X += (c.CenterX - x) * magneticPull
		m.target.Y += (c.CenterY - y) * magneticPull
	}
	if !m.placed {
		m.pos = m.target
		m.placed = true
	}
	if hovering != m.hovered {
		m.hovered = hovering
		to := 1.0
		if hovering {
			to = magneticHoverScale
		}
		m.tween = TweenValue(&m.scale, to, magneticScaleTime, ease.OutQuad)
	}
}

// Update moves the cursor toward its target by dt seconds.
func (m *MagneticCursor) Update(dt float64) {
	if !m.active {
		return
	}
	a := SmoothingAlpha(dt, m.tau)
	m.pos.X += (m.target.X - m.pos.X) * a
	m.pos.Y += (m.target.Y - m.pos.Y) * a
	m.tween.Update(float32(dt))
}

// Position returns the cursor centre in screen pixels.
func (m *MagneticCursor) Position() Vec2 { return m.pos }

// Target returns where the cursor is heading.
func (m *MagneticCursor) Target() Vec2 { return m.target }

// Scale returns the current ring scale.
func (m *MagneticCursor) Scale() float64 { return m.scale }

// Draw strokes the ring onto dst. deviceScale converts logical pixels to the
// destination's pixels.
func (m *MagneticCursor) Draw(dst *ebiten.Image, deviceScale float64) {
	if !m.active || !m.placed {
		return
	}
	r := float32(magneticRadius * m.scale * deviceScale)
	vector.StrokeCircle(dst, float32(m.pos.X*deviceScale), float32(m.pos.Y*deviceScale), r, float32(1.5*deviceScale), m.Color, true)
}
