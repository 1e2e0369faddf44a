package islandcycle

import (
	"testing"
	"testing/fstest"

	"github.com/hajimehoshi/ebiten/v2"
)

// imageTable binds every panel to a still image so selection resolves on the
// frame goroutine without any video streams.
func imageTable() MediaTable {
	return NewMediaTable([]MediaDescriptor{
		{Panel: 1, Name: "Cloud", Kind: MediaImage, Source: "p1.png"},
		{Panel: 2, Name: "Rain", Kind: MediaImage, Source: "p2.png"},
		{Panel: 3, Name: "Ground", Kind: MediaImage, Source: "p3.png"},
		{Panel: 4, Name: "Sea", Kind: MediaImage, Source: "p4.png"},
		{Panel: 5, Name: "Evaporation", Kind: MediaImage, Source: "p5.png"},
	})
}

var testImages = map[string][2]int{
	DefaultImage: {32, 18},
	"bg.png":     {40, 20},
	"cover.png":  {20, 40},
	"p1.png":     {16, 9},
	"p2.png":     {16, 9},
	"p3.png":     {16, 9},
	"p4.png":     {16, 9},
	"p5.png":     {16, 9},
}

func testRendererOptions(table MediaTable) RendererOptions {
	opts := DefaultRendererOptions()
	opts.Landing = []LandingLayer{{Name: "bg", Source: "bg.png", Kind: MediaImage, ParallaxFactor: 0.01}}
	opts.TouchLanding = []LandingLayer{{Name: "cover", Source: "cover.png", Kind: MediaImage}}
	opts.Media.Table = table
	opts.LayerFadeIn = 0
	return opts
}

func newTestRenderer(t *testing.T, table MediaTable, device Device, opener *fakeOpener) *DualSceneRenderer {
	t.Helper()
	if opener == nil {
		opener = newFakeOpener()
	}
	cache := NewTextureCache(TextureCacheOptions{Opener: opener, Preload: preloadImages(testImages)})
	r := NewDualSceneRenderer(cache, device, testRendererOptions(table))
	t.Cleanup(func() {
		r.Teardown()
		cache.Dispose()
	})
	return r
}

func childTexturePath(s *Scene) string {
	kids := s.Root().Children()
	if len(kids) != 1 || kids[0].Texture == nil {
		return ""
	}
	return kids[0].Texture.Path()
}

func TestRendererTargetsFollowViewport(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)

	r.Update(frameDT)
	if r.Targets() != nil {
		t.Fatal("no targets should exist for an empty viewport")
	}

	r.SetViewport(1000, 800)
	r.Update(frameDT)
	first := r.Targets()
	if first == nil || first.Width != 1000 || first.Height != 800 {
		t.Fatalf("targets = %+v, want 1000x800", first)
	}

	r.SetViewport(1003, 797)
	r.Update(frameDT)
	if r.Targets() != first {
		t.Error("a change within the threshold must keep the targets")
	}

	r.SetViewport(1200, 800)
	r.Update(frameDT)
	if r.Targets() == first {
		t.Fatal("targets should be recreated past the threshold")
	}
	if !first.RT1.IsDisposed() || !first.RT2.IsDisposed() {
		t.Error("old targets should be disposed")
	}
	if r.Targets().Width != 1200 {
		t.Errorf("Width = %d, want 1200", r.Targets().Width)
	}
}

func TestRendererTargetsCappedForMobile(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{IsTouch: true, IsMobile: true, PixelRatio: 4}, nil)
	r.SetViewport(512, 1024)
	r.Update(frameDT)
	if tg := r.Targets(); tg.Width != 512 || tg.Height != 1024 {
		t.Errorf("targets = %dx%d, want 512x1024", tg.Width, tg.Height)
	}
}

func TestRendererLandingScene(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(800, 600)
	r.Update(frameDT)

	kids := r.SceneLanding().Root().Children()
	if len(kids) != 1 || kids[0].Name != "bg" {
		t.Fatalf("landing children = %d", len(kids))
	}
	// 40x20 into 800x600 fits by height, plus 1% of the viewport each side.
	g := kids[0].Geometry
	assertNear(t, "Width", g.Width, 1216)
	assertNear(t, "Height", g.Height, 612)

	if got := childTexturePath(r.SceneSelected()); got != DefaultImage {
		t.Errorf("selected scene shows %q, want the default image", got)
	}
}

func TestRendererRebuildsOnlyOnChange(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(800, 600)
	r.Update(frameDT)
	n := r.Rebuilds()
	for i := 0; i < 10; i++ {
		r.Update(frameDT)
	}
	if r.Rebuilds() != n {
		t.Errorf("Rebuilds = %d, want %d while nothing changed", r.Rebuilds(), n)
	}
	r.SetViewport(640, 480)
	r.Update(frameDT)
	if r.Rebuilds() != n+1 {
		t.Errorf("Rebuilds = %d, want %d after a resize", r.Rebuilds(), n+1)
	}
}

func TestRendererSelectFlow(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{IsTouch: true, PixelRatio: 1}, nil)
	r.SetViewport(800, 600)
	var edges []bool
	r.OnAnimatingChange = func(a bool) { edges = append(edges, a) }

	r.Select(2)
	waitFor(t, "panel 2", func() { r.Update(frameDT) }, func() bool {
		p := r.Transition().Phase()
		return p.Kind == PhasePanel && p.Index == 2
	})

	if got := childTexturePath(r.SceneSelected()); got != "p2.png" {
		t.Errorf("selected scene shows %q, want p2.png", got)
	}
	if len(edges) != 2 || !edges[0] || edges[1] {
		t.Errorf("animating edges = %v, want [true false]", edges)
	}

	r.Select(PanelNone)
	waitFor(t, "landing", func() { r.Update(frameDT) }, func() bool {
		return r.Transition().Phase().Kind == PhaseLanding
	})
	if got := childTexturePath(r.SceneSelected()); got != DefaultImage {
		t.Errorf("selected scene shows %q after returning, want the default image", got)
	}
}

func TestRendererPanelToPanelKeepsOldMediaUntilSwap(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{IsTouch: true, PixelRatio: 1}, nil)
	r.SetViewport(800, 600)
	r.Select(1)
	waitFor(t, "panel 1", func() { r.Update(frameDT) }, func() bool {
		return r.Transition().Progress() == 1
	})

	r.Select(4)
	r.Update(frameDT)
	if got := childTexturePath(r.SceneSelected()); got != "p1.png" {
		t.Errorf("during fade-out the selected scene shows %q, want p1.png", got)
	}
	waitFor(t, "panel 4", func() { r.Update(frameDT) }, func() bool {
		return r.Transition().Progress() == 1 && r.Transition().Displayed() == 4
	})
	if got := childTexturePath(r.SceneSelected()); got != "p4.png" {
		t.Errorf("selected scene shows %q, want p4.png", got)
	}
	if r.Binding().MediaFor(1) != nil {
		t.Error("panel 1 media should be released once it left the screen")
	}
}

func TestRendererVideoPanel(t *testing.T) {
	opener := newFakeOpener()
	r := newTestRenderer(t, DefaultMediaTable(), Device{PixelRatio: 1}, opener)
	r.SetViewport(800, 600)

	r.Select(5)
	waitFor(t, "video ready", func() { r.Update(frameDT) }, func() bool {
		return r.Transition().Target() == 1
	})
	m := r.Binding().Current()
	if m == nil || m.Video == nil {
		t.Fatalf("Current = %+v, want a video", m)
	}
	if opener.opens("Evaporation_v01.mp4") != 1 {
		t.Error("video should be opened once")
	}
}

func TestRendererPlayRefusedRetried(t *testing.T) {
	opener := newFakeOpener()
	r := newTestRenderer(t, DefaultMediaTable(), Device{PixelRatio: 1}, opener)
	r.SetViewport(800, 600)
	r.Select(3)
	waitFor(t, "video bound", func() { r.Update(frameDT) }, func() bool {
		return r.Binding().Current() != nil
	})

	s := opener.stream("Ground_v01.mp4", 0)
	s.Pause()
	s.mu.Lock()
	s.playErr = errPlayRefused
	before := s.plays
	s.mu.Unlock()

	for i := 0; i < 3; i++ {
		r.Update(frameDT)
	}
	s.mu.Lock()
	plays := s.plays
	s.mu.Unlock()
	if plays-before != 3 {
		t.Errorf("play attempts = %d, want one per frame", plays-before)
	}
}

func TestRendererSwitchToTouchSwapsLanding(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(800, 600)
	r.SetPointer(800, 0)
	for i := 0; i < 30; i++ {
		r.Update(frameDT)
	}
	if off := r.Parallax().Offset(); off.X <= 0 || off.Y <= 0 {
		t.Fatalf("pointer parallax offset = %v, want positive", off)
	}

	r.SetDevice(Device{IsTouch: true, PixelRatio: 1})
	r.Update(frameDT)

	kids := r.SceneLanding().Root().Children()
	if len(kids) != 1 || kids[0].Name != "cover" {
		t.Fatalf("landing after touch = %d children", len(kids))
	}
	if off := r.Parallax().Offset(); off != (Vec2{}) {
		t.Errorf("touch parallax = %v, want zero", off)
	}
	if kids[0].X != 0 || kids[0].Y != 0 {
		t.Errorf("cover position = (%v,%v), want centred", kids[0].X, kids[0].Y)
	}
}

func TestRendererParallaxMovesLayers(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(1000, 500)
	var samples int
	r.OnParallax = func(ParallaxSample) { samples++ }

	r.SetPointer(1000, 0)
	for i := 0; i < 600; i++ {
		r.Update(frameDT)
	}
	bg := r.SceneLanding().Root().FindChild("bg")
	if bg == nil {
		t.Fatal("bg layer missing")
	}
	// Offset (1,1) * factor 0.01 * viewport.
	if !approxEqual(bg.X, 10, 1e-3) || !approxEqual(bg.Y, 5, 1e-3) {
		t.Errorf("bg at (%v,%v), want (10,5)", bg.X, bg.Y)
	}
	if samples != 600 {
		t.Errorf("OnParallax calls = %d, want 600", samples)
	}
}

func TestRendererLayerFadeIn(t *testing.T) {
	cache := NewTextureCache(TextureCacheOptions{Opener: newFakeOpener(), Preload: preloadImages(testImages)})
	opts := testRendererOptions(imageTable())
	opts.LayerFadeIn = 0.5
	r := NewDualSceneRenderer(cache, Device{PixelRatio: 1}, opts)
	defer cache.Dispose()
	defer r.Teardown()

	r.SetViewport(800, 600)
	r.Update(frameDT)
	bg := r.SceneLanding().Root().FindChild("bg")
	if bg == nil || bg.Alpha != 0 {
		t.Fatalf("bg should start transparent, got %+v", bg)
	}
	for i := 0; i < 60; i++ {
		r.Update(frameDT)
	}
	if bg.Alpha < 0.999 {
		t.Errorf("Alpha = %v after the fade, want 1", bg.Alpha)
	}
}

func TestRendererTeardown(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(320, 240)
	r.Update(frameDT)
	tg := r.Targets()

	r.Teardown()
	if r.Targets() != nil || !tg.RT1.IsDisposed() {
		t.Error("Teardown should dispose the targets")
	}
	if r.SceneLanding().Root().NumChildren() != 0 || r.SceneSelected().Root().NumChildren() != 0 {
		t.Error("Teardown should empty both scenes")
	}
}

func TestRendererMissingImageFallsBack(t *testing.T) {
	table := NewMediaTable([]MediaDescriptor{{Panel: 1, Name: "Cloud", Kind: MediaImage, Source: "missing.png"}})
	cache := NewTextureCache(TextureCacheOptions{
		Assets:  fstest.MapFS{},
		Opener:  newFakeOpener(),
		Preload: preloadImages(testImages),
	})
	r := NewDualSceneRenderer(cache, Device{PixelRatio: 1}, testRendererOptions(table))
	t.Cleanup(func() {
		r.Teardown()
		cache.Dispose()
	})
	r.SetViewport(400, 300)

	r.Select(1)
	step := func() { r.Update(frameDT) }
	waitFor(t, "fallback to rise", step, func() bool { return r.Transition().Target() == 1 })

	m := r.Binding().Current()
	if m == nil || m.Panel != 1 || !m.Fallback {
		t.Fatalf("Current = %+v, want fallback for panel 1", m)
	}
	if r.Transition().Displayed() != 1 {
		t.Errorf("Displayed = %d, want 1", r.Transition().Displayed())
	}
	r.Update(frameDT)
	if got := childTexturePath(r.SceneSelected()); got != DefaultImage {
		t.Errorf("selected scene shows %q, want %q", got, DefaultImage)
	}
}

func TestRendererDrawOrderAndRestore(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(200, 100)
	r.Select(2)
	for range 10 {
		r.Update(frameDT)
	}

	screen := ebiten.NewImage(200, 100)
	defer screen.Deallocate()
	bg := Color{R: 0.2, G: 0.4, B: 0.6, A: 1}
	rc := NewRenderContext(screen)
	rc.SetClearColor(bg)

	r.Draw(rc)

	if rc.Target() != screen {
		t.Error("Draw must restore the caller's render target")
	}
	if rc.ClearColor() != bg {
		t.Errorf("ClearColor = %+v, want %+v", rc.ClearColor(), bg)
	}
	mat := r.Material()
	if mat.Selected != r.Targets().RT1.Image() {
		t.Error("selected input should be the first render target")
	}
	if mat.Landing != r.Targets().RT2.Image() {
		t.Error("landing input should be the second render target")
	}
	if mat.Progress != r.Transition().Progress() {
		t.Errorf("Progress uniform = %v, want %v", mat.Progress, r.Transition().Progress())
	}
	if mat.Progress <= 0 {
		t.Errorf("Progress uniform = %v, want the transition underway", mat.Progress)
	}
	if mat.Time != r.Elapsed() {
		t.Errorf("Time uniform = %v, want %v", mat.Time, r.Elapsed())
	}
	if u := mat.Uniforms(); u["Progress"] != float32(r.Transition().Progress()) {
		t.Errorf("shader Progress = %v", u["Progress"])
	}
}

func TestRendererDrawWithoutTargets(t *testing.T) {
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	screen := ebiten.NewImage(4, 4)
	defer screen.Deallocate()
	rc := NewRenderContext(screen)

	r.Draw(rc)
	if rc.Target() != screen {
		t.Error("target changed")
	}
	if r.Material().Selected != nil {
		t.Error("no inputs should be pushed before targets exist")
	}
}
