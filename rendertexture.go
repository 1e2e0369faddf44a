package islandcycle

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// RenderTexture is a persistent offscreen canvas owned by its creator and
// released explicitly with Dispose.
type RenderTexture struct {
	image *ebiten.Image
	w, h  int
}

// NewRenderTexture creates a persistent offscreen canvas of the given size.
func NewRenderTexture(w, h int) *RenderTexture {
	return &RenderTexture{
		image: ebiten.NewImage(w, h),
		w:     w,
		h:     h,
	}
}

// Image returns the underlying *ebiten.Image for direct manipulation.
func (rt *RenderTexture) Image() *ebiten.Image {
	return rt.image
}

// Width returns the texture width in pixels.
func (rt *RenderTexture) Width() int {
	return rt.w
}

// Height returns the texture height in pixels.
func (rt *RenderTexture) Height() int {
	return rt.h
}

// Fill fills the entire texture with the given color.
func (rt *RenderTexture) Fill(c Color) {
	rt.image.Fill(c.toRGBA())
}

// Resize deallocates the old image and creates a new one at the given dimensions.
func (rt *RenderTexture) Resize(width, height int) {
	if rt.image != nil {
		rt.image.Deallocate()
	}
	rt.image = ebiten.NewImage(width, height)
	rt.w = width
	rt.h = height
}

// Dispose deallocates the underlying image. The RenderTexture should not be
// used after calling Dispose.
func (rt *RenderTexture) Dispose() {
	if rt.image != nil {
		rt.image.Deallocate()
		rt.image = nil
	}
}

// IsDisposed reports whether Dispose has been called.
func (rt *RenderTexture) IsDisposed() bool {
	return rt.image == nil
}

// --- Render target pair ---

// RenderTargetPair holds the two offscreen buffers the scenes are rendered
// into: RT1 receives the selected-panel scene and RT2 the landing scene. Both
// always share one resolution.
type RenderTargetPair struct {
	RT1, RT2      *RenderTexture
	Width, Height int
}

// NewRenderTargetPair allocates both buffers at w x h pixels.
func NewRenderTargetPair(w, h int) *RenderTargetPair {
	return &RenderTargetPair{
		RT1:    NewRenderTexture(w, h),
		RT2:    NewRenderTexture(w, h),
		Width:  w,
		Height: h,
	}
}

// NeedsResize reports whether a w x h resolution differs from the pair's by
// more than threshold pixels on either axis.
func (p *RenderTargetPair) NeedsResize(w, h, threshold int) bool {
	return absInt(w-p.Width) > threshold || absInt(h-p.Height) > threshold
}

// Dispose frees both buffers.
func (p *RenderTargetPair) Dispose() {
	if p.RT1 != nil {
		p.RT1.Dispose()
	}
	if p.RT2 != nil {
		p.RT2.Dispose()
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ResolutionCaps bounds the longer side of the render targets per device class.
type ResolutionCaps struct {
	Desktop int `yaml:"desktop"`
	Tablet  int `yaml:"tablet"`
	Mobile  int `yaml:"mobile"`
}

// DefaultResolutionCaps returns the caps used when none are configured.
func DefaultResolutionCaps() ResolutionCaps {
	return ResolutionCaps{Desktop: 2048, Tablet: 1536, Mobile: 1024}
}

// For returns the cap that applies to d. Mobile wins over tablet.
func (c ResolutionCaps) For(d Device) int {
	switch {
	case d.IsMobile:
		return c.Mobile
	case d.IsTablet:
		return c.Tablet
	default:
		return c.Desktop
	}
}

// TargetResolution computes the physical render-target size for a viewport
// measured in logical pixels: the viewport times the device pixel ratio,
// scaled down uniformly so the longer side does not exceed the device cap.
func TargetResolution(viewport Size, d Device, caps ResolutionCaps) (int, int) {
	pr := d.PixelRatio
	if pr <= 0 {
		pr = 1
	}
	w := math.Floor(viewport.Width * pr)
	h := math.Floor(viewport.Height * pr)
	if limit := float64(caps.For(d)); limit > 0 {
		if longest := math.Max(w, h); longest > limit {
			scale := limit / longest
			w = math.Floor(w * scale)
			h = math.Floor(h * scale)
		}
	}
	return max(int(w), 1), max(int(h), 1)
}

// --- Render context ---

// RenderContext tracks the image currently being drawn to and the colour it
// is cleared with. Nested passes save the state, retarget, and restore it so
// that whatever the enclosing pass draws next lands where it expects.
type RenderContext struct {
	target     *ebiten.Image
	clearColor Color
}

// RenderState is a saved RenderContext snapshot.
type RenderState struct {
	Target     *ebiten.Image
	ClearColor Color
}

// NewRenderContext creates a context drawing to target.
func NewRenderContext(target *ebiten.Image) *RenderContext {
	return &RenderContext{target: target}
}

// Target returns the active render target.
func (rc *RenderContext) Target() *ebiten.Image {
	return rc.target
}

// SetTarget changes the active render target.
func (rc *RenderContext) SetTarget(img *ebiten.Image) {
	rc.target = img
}

// ClearColor returns the active clear colour.
func (rc *RenderContext) ClearColor() Color {
	return rc.clearColor
}

// SetClearColor changes the active clear colour.
func (rc *RenderContext) SetClearColor(c Color) {
	rc.clearColor = c
}

// Clear fills the active target with the clear colour.
func (rc *RenderContext) Clear() {
	if rc.target == nil {
		return
	}
	rc.target.Fill(rc.clearColor.toRGBA())
}

// Save captures the current target and clear colour.
func (rc *RenderContext) Save() RenderState {
	return RenderState{Target: rc.target, ClearColor: rc.clearColor}
}

// Restore reinstates a state captured with Save.
func (rc *RenderContext) Restore(s RenderState) {
	rc.target = s.Target
	rc.clearColor = s.ClearColor
}
