package islandcycle

// CoverFit scales content so it fully covers the container while preserving
// its aspect ratio, like CSS background-size: cover. Content relatively wider
// than the container is fitted by height, anything else by width.
// Degenerate dimensions yield the container size.
func CoverFit(contentW, contentH, containerW, containerH float64) Size {
	if contentW <= 0 || contentH <= 0 || containerW <= 0 || containerH <= 0 {
		return Size{Width: containerW, Height: containerH}
	}
	contentAspect := contentW / contentH
	containerAspect := containerW / containerH
	if contentAspect > containerAspect {
		return Size{Width: containerH * contentAspect, Height: containerH}
	}
	return Size{Width: containerW, Height: containerW / contentAspect}
}

// CoverFitWithParallaxMargin is CoverFit grown by parallaxFactor*container*2
// on each axis. A layer moved by up to parallaxFactor of the viewport in
// either direction therefore never exposes an edge.
func CoverFitWithParallaxMargin(contentW, contentH, containerW, containerH, parallaxFactor float64) Size {
	s := CoverFit(contentW, contentH, containerW, containerH)
	s.Width += parallaxFactor * containerW * 2
	s.Height += parallaxFactor * containerH * 2
	return s
}
