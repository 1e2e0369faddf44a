package islandcycle

// Camera is an orthographic camera looking at the origin. Its frustum spans
// Left..Right horizontally and Bottom..Top vertically in world units; for the
// presentation both scenes use a frustum equal to the viewport in CSS-like
// logical pixels, centred on the origin with +Y up.
type Camera struct {
	Left, Right float64
	Top, Bottom float64

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	targetW       int
	targetH       int
	dirty         bool
}

// NewCamera creates an orthographic camera covering a width x height
// viewport centred on the origin.
func NewCamera(width, height float64) *Camera {
	c := &Camera{}
	c.SetViewport(width, height)
	return c
}

// SetViewport resizes the frustum to a width x height viewport centred on
// the origin.
func (c *Camera) SetViewport(width, height float64) {
	c.Left = -width / 2
	c.Right = width / 2
	c.Top = height / 2
	c.Bottom = -height / 2
	c.dirty = true
}

// Width returns the frustum width in world units.
func (c *Camera) Width() float64 { return c.Right - c.Left }

// Height returns the frustum height in world units.
func (c *Camera) Height() float64 { return c.Top - c.Bottom }

// MarkDirty forces a recomputation of the view matrix.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

// computeViewMatrix returns the matrix mapping world coordinates to pixel
// coordinates of a targetW x targetH image, recomputing it only when the
// frustum or the target size changed.
//
// viewMatrix = Scale(targetW/width, -targetH/height) * Translate(-Left, -Top)
func (c *Camera) computeViewMatrix(targetW, targetH int) [6]float64 {
	if !c.dirty && c.targetW == targetW && c.targetH == targetH {
		return c.viewMatrix
	}
	c.dirty = false
	c.targetW = targetW
	c.targetH = targetH

	w := c.Width()
	h := c.Height()
	if w == 0 || h == 0 {
		c.viewMatrix = identityTransform
		c.invViewMatrix = identityTransform
		return c.viewMatrix
	}
	sx := float64(targetW) / w
	sy := -float64(targetH) / h
	c.viewMatrix = [6]float64{sx, 0, 0, sy, -c.Left * sx, -c.Top * sy}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// WorldToScreen converts world coordinates to pixel coordinates of a
// targetW x targetH image.
func (c *Camera) WorldToScreen(wx, wy float64, targetW, targetH int) (sx, sy float64) {
	c.computeViewMatrix(targetW, targetH)
	return transformPoint(c.viewMatrix, wx, wy)
}

// ScreenToWorld converts pixel coordinates of a targetW x targetH image to
// world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64, targetW, targetH int) (wx, wy float64) {
	c.computeViewMatrix(targetW, targetH)
	return transformPoint(c.invViewMatrix, sx, sy)
}

// VisibleBounds returns the frustum as a world-space rectangle
// (X/Y is the bottom-left corner).
func (c *Camera) VisibleBounds() Rect {
	return Rect{X: c.Left, Y: c.Bottom, Width: c.Width(), Height: c.Height()}
}
