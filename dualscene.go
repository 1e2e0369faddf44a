package islandcycle

import (
	"context"

	"github.com/tanema/gween/ease"
)

// DefaultResizeThreshold is the render-target size change, in pixels on
// either axis, below which the targets are kept.
const DefaultResizeThreshold = 4

// LandingLayer is one depth layer of the landing scene.
type LandingLayer struct {
	Name           string    `yaml:"name"`
	Source         string    `yaml:"source"`
	Kind           MediaKind `yaml:"kind"`
	ParallaxFactor float64   `yaml:"parallax"`
	// Optional layers are skipped silently when they fail to load.
	Optional bool `yaml:"optional"`
}

// DefaultLandingLayers returns the pointer-device landing stack, back to front.
func DefaultLandingLayers() []LandingLayer {
	return []LandingLayer{
		{Name: "background", Source: "BG_v03.png", Kind: MediaImage, ParallaxFactor: 0.01},
		{Name: "clouds", Source: "Clouds_v01.webp", Kind: MediaImage, ParallaxFactor: 0.02},
		{Name: "rain", Source: "Rain_v01.webp", Kind: MediaImage, ParallaxFactor: 0.03},
		{Name: "island", Source: "Island_v04.webp", Kind: MediaImage, ParallaxFactor: 0.05},
		{Name: "smoke", Source: "Smoke_v02.mp4", Kind: MediaVideo, ParallaxFactor: 0.15, Optional: true},
	}
}

// DefaultTouchLandingLayers returns the single static cover used on touch
// devices.
func DefaultTouchLandingLayers() []LandingLayer {
	return []LandingLayer{
		{Name: "cover", Source: "TheIslandCycle_All_v05.webp", Kind: MediaImage},
	}
}

// RendererOptions configures a DualSceneRenderer.
type RendererOptions struct {
	Transition      TransitionConfig
	ParallaxTau     float64
	Caps            ResolutionCaps
	ResizeThreshold int
	Landing         []LandingLayer
	TouchLanding    []LandingLayer
	Media           MediaBindingOptions
	// LayerFadeIn is how long, in seconds, a landing layer takes to fade in
	// once its texture is ready. Zero shows layers at once.
	LayerFadeIn float32
}

// DefaultRendererOptions returns the stock presentation settings.
func DefaultRendererOptions() RendererOptions {
	return RendererOptions{
		Transition:      DefaultTransitionConfig(),
		ParallaxTau:     DefaultParallaxTau,
		Caps:            DefaultResolutionCaps(),
		ResizeThreshold: DefaultResizeThreshold,
		Landing:         DefaultLandingLayers(),
		TouchLanding:    DefaultTouchLandingLayers(),
		Media:           MediaBindingOptions{LoadTimeout: DefaultLoadTimeout},
		LayerFadeIn:     0.6,
	}
}

type landingSlot struct {
	layer  LandingLayer
	tex    *Texture
	video  *VideoTexture
	failed bool
	shown  bool
	alpha  float64
	fade   *TweenGroup
	node   *Node
}

func (s *landingSlot) texture() *Texture {
	if s.video != nil {
		return s.video.Texture()
	}
	return s.tex
}

type landingVideoResult struct {
	gen   uint64
	slot  int
	video *VideoTexture
	err   error
}

// sceneKey captures everything a scene rebuild depends on.
type sceneKey struct {
	displayed     int
	selected      *Texture
	selectedReady bool
	viewport      Size
	landingReady  uint64
	touch         bool
}

// DualSceneRenderer draws the selected-panel scene and the landing scene into
// two offscreen targets every frame and blends them with the transition
// material. Scenes are rebuilt from scratch whenever the displayed panel, the
// viewport or the set of ready textures changes.
type DualSceneRenderer struct {
	opts   RendererOptions
	cache  *TextureCache
	device Device

	sceneSelected *Scene
	sceneLanding  *Scene
	camera        *Camera
	targets       *RenderTargetPair
	pool          *GeometryPool
	transition    *Transition
	parallax      *ParallaxSource
	binding       *MediaBinding
	material      *TransitionMaterial

	viewport Size
	elapsed  float64

	ctx            context.Context
	cancel         context.CancelFunc
	slots          []*landingSlot
	landingGen     uint64
	landingResults chan landingVideoResult

	key        sceneKey
	built      bool
	rebuilds   int
	playWarned map[*VideoTexture]bool

	// OnAnimatingChange is called on rising and falling edges of the
	// animating signal.
	OnAnimatingChange func(animating bool)
	// OnParallax is called every frame with the current parallax sample.
	OnParallax func(ParallaxSample)
}

// NewDualSceneRenderer creates a renderer drawing textures from cache.
func NewDualSceneRenderer(cache *TextureCache, device Device, opts RendererOptions) *DualSceneRenderer {
	if opts.ResizeThreshold < 0 {
		opts.ResizeThreshold = 0
	}
	if opts.Landing == nil {
		opts.Landing = DefaultLandingLayers()
	}
	if opts.TouchLanding == nil {
		opts.TouchLanding = DefaultTouchLandingLayers()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &DualSceneRenderer{
		opts:           opts,
		cache:          cache,
		device:         device,
		sceneSelected:  NewScene("selected"),
		sceneLanding:   NewScene("landing"),
		camera:         NewCamera(0, 0),
		pool:           NewGeometryPool(),
		transition:     NewTransition(opts.Transition),
		parallax:       NewParallaxSource(opts.ParallaxTau),
		binding:        NewMediaBinding(cache, opts.Media),
		material:       NewTransitionMaterial(),
		ctx:            ctx,
		cancel:         cancel,
		landingResults: make(chan landingVideoResult, 4),
		playWarned:     make(map[*VideoTexture]bool),
	}
	r.transition.OnAnimatingChange = func(animating bool) {
		if r.OnAnimatingChange != nil {
			r.OnAnimatingChange(animating)
		}
	}
	r.transition.SetTouch(device.IsTouch)
	r.parallax.SetTouch(device.IsTouch)
	r.initLanding()
	return r
}

// initLanding (re)creates the landing slots for the current device class.
func (r *DualSceneRenderer) initLanding() {
	for _, s := range r.slots {
		if s.video != nil && s.video.Stream() != nil {
			s.video.Stream().Pause()
		}
	}
	r.landingGen++
	layers := r.opts.Landing
	if r.device.IsTouch {
		layers = r.opts.TouchLanding
	}
	r.slots = make([]*landingSlot, len(layers))
	for i, l := range layers {
		s := &landingSlot{layer: l}
		r.slots[i] = s
		if l.Kind == MediaImage {
			s.tex = r.cache.ImageTexture(l.Source)
			continue
		}
		gen, idx, src := r.landingGen, i, l.Source
		go func() {
			vt, err := r.cache.VideoTexture(r.ctx, src)
			select {
			case r.landingResults <- landingVideoResult{gen: gen, slot: idx, video: vt, err: err}:
			case <-r.ctx.Done():
			}
		}()
	}
	r.built = false
}

// SetDevice updates the device capabilities. Switching to touch disengages
// parallax, speeds up the transition and swaps the landing stack.
func (r *DualSceneRenderer) SetDevice(d Device) {
	touchChanged := d.IsTouch != r.device.IsTouch
	r.device = d
	r.transition.SetTouch(d.IsTouch)
	r.parallax.SetTouch(d.IsTouch)
	if touchChanged {
		r.initLanding()
	}
}

// Device returns the current device capabilities.
func (r *DualSceneRenderer) Device() Device { return r.device }

// SetViewport sets the viewport size in logical pixels. The camera frustum
// follows it one to one.
func (r *DualSceneRenderer) SetViewport(width, height float64) {
	v := Size{Width: width, Height: height}
	if v == r.viewport {
		return
	}
	r.viewport = v
	r.camera.SetViewport(width, height)
}

// Viewport returns the logical viewport size.
func (r *DualSceneRenderer) Viewport() Size { return r.viewport }

// Select changes the selected panel; PanelNone returns to the landing view.
func (r *DualSceneRenderer) Select(panel int) {
	r.binding.Select(panel)
	r.transition.Request(panel)
}

// SetPointer feeds the pointer position in logical viewport pixels.
func (r *DualSceneRenderer) SetPointer(x, y float64) {
	r.parallax.SetPointer(x, y, r.viewport.Width, r.viewport.Height)
}

// Update advances one frame of dt seconds. Scene population happens here so
// that Draw only renders.
func (r *DualSceneRenderer) Update(dt float64) {
	r.elapsed += dt

	if m := r.binding.MediaFor(r.transition.Displayed()); m != nil && m.Video != nil {
		r.refreshVideo(m.Video)
	}
	for _, s := range r.slots {
		if s.video != nil {
			r.refreshVideo(s.video)
		}
	}

	r.binding.Update()
	r.commitLandingVideos()
	r.cache.Update()

	if req := r.transition.Requested(); req != PanelNone && r.binding.Ready(req) {
		r.transition.MediaReady(req)
	}
	prev := r.transition.Displayed()
	r.transition.Step(dt)
	if cur := r.transition.Displayed(); cur != prev {
		r.binding.Release(prev)
	}

	r.parallax.Step(dt)
	for _, s := range r.slots {
		s.fade.Update(float32(dt))
	}

	r.ensureTargets()
	r.rebuildIfNeeded()
	r.applyLayerState()

	if r.OnParallax != nil {
		r.OnParallax(r.parallax.Sample(r.viewport))
	}
}

func (r *DualSceneRenderer) refreshVideo(v *VideoTexture) {
	if err := v.Refresh(); err != nil {
		if !r.playWarned[v] {
			r.playWarned[v] = true
			Logger().Warn("video playback refused, retrying every frame", "path", v.Path, "err", err)
		}
		return
	}
	delete(r.playWarned, v)
}

func (r *DualSceneRenderer) commitLandingVideos() {
	for {
		select {
		case res := <-r.landingResults:
			if res.gen != r.landingGen || res.slot >= len(r.slots) {
				if res.video != nil && res.video.Stream() != nil {
					res.video.Stream().Pause()
				}
				continue
			}
			s := r.slots[res.slot]
			if res.err != nil {
				s.failed = true
				if s.layer.Optional {
					Logger().Debug("optional landing layer unavailable", "layer", s.layer.Name, "err", res.err)
				} else {
					Logger().Warn("landing layer failed", "layer", s.layer.Name, "err", res.err)
				}
				continue
			}
			s.video = res.video
			r.refreshVideo(s.video)
		default:
			return
		}
	}
}

// ensureTargets (re)creates the render-target pair when the physical
// resolution moved past the resize threshold. The old pair is disposed before
// the new one exists, so exactly one pair is ever live.
func (r *DualSceneRenderer) ensureTargets() {
	if r.viewport.Width <= 0 || r.viewport.Height <= 0 {
		return
	}
	w, h := TargetResolution(r.viewport, r.device, r.opts.Caps)
	if r.targets != nil && !r.targets.NeedsResize(w, h, r.opts.ResizeThreshold) {
		return
	}
	if r.targets != nil {
		r.targets.Dispose()
		r.targets = nil
	}
	r.targets = NewRenderTargetPair(w, h)
	Logger().Debug("render targets created", "width", w, "height", h)
}

// selectedMedia returns the texture and source size for the selected scene:
// the displayed panel's media when drawable, else the default image.
func (r *DualSceneRenderer) selectedMedia() (*Texture, int, int) {
	if m := r.binding.MediaFor(r.transition.Displayed()); m.Drawable() {
		w, h := m.Width, m.Height
		if w <= 0 || h <= 0 {
			w, h = m.Texture.Size()
		}
		return m.Texture, w, h
	}
	t := r.cache.ImageTexture(r.binding.opts.DefaultImage)
	w, h := t.Size()
	return t, w, h
}

func (r *DualSceneRenderer) currentKey() sceneKey {
	tex, _, _ := r.selectedMedia()
	k := sceneKey{
		displayed:     r.transition.Displayed(),
		selected:      tex,
		selectedReady: tex.Ready(),
		viewport:      r.viewport,
		touch:         r.device.IsTouch,
	}
	for i, s := range r.slots {
		if t := s.texture(); t != nil && t.Ready() && i < 64 {
			k.landingReady |= 1 << uint(i)
		}
	}
	return k
}

func (r *DualSceneRenderer) rebuildIfNeeded() {
	k := r.currentKey()
	if r.built && k == r.key {
		return
	}
	r.key = k
	r.built = true
	r.rebuild()
}

// rebuild reconstructs both scenes from scratch.
func (r *DualSceneRenderer) rebuild() {
	r.rebuilds++
	vw, vh := r.viewport.Width, r.viewport.Height

	r.sceneSelected.Reset()
	if tex, w, h := r.selectedMedia(); tex.Ready() && w > 0 && h > 0 {
		size := CoverFit(float64(w), float64(h), vw, vh)
		plane := NewPlane("selected", r.pool.Plane(size.Width, size.Height), tex)
		r.sceneSelected.Root().AddChild(plane)
	}

	r.sceneLanding.Reset()
	for i, s := range r.slots {
		s.node = nil
		tex := s.texture()
		if tex == nil || !tex.Ready() {
			continue
		}
		if !s.shown {
			s.shown = true
			if r.opts.LayerFadeIn > 0 {
				s.alpha = 0
				s.fade = TweenValue(&s.alpha, 1, r.opts.LayerFadeIn, ease.OutQuad)
			} else {
				s.alpha = 1
			}
		}
		tw, th := tex.Size()
		size := CoverFitWithParallaxMargin(float64(tw), float64(th), vw, vh, s.layer.ParallaxFactor)
		n := NewPlane(s.layer.Name, r.pool.Plane(size.Width, size.Height), tex)
		n.ParallaxFactor = s.layer.ParallaxFactor
		n.ZIndex = i
		n.Alpha = s.alpha
		r.sceneLanding.Root().AddChild(n)
		s.node = n
	}
	Logger().Debug("scenes rebuilt",
		"displayed", r.key.displayed,
		"viewport", r.viewport,
		"landing_layers", r.sceneLanding.Root().NumChildren())
}

// applyLayerState moves every landing layer to offset*factor*viewport and
// applies its fade.
func (r *DualSceneRenderer) applyLayerState() {
	for _, s := range r.slots {
		if s.node == nil {
			continue
		}
		off := r.parallax.LayerOffset(s.node.ParallaxFactor, r.viewport)
		s.node.SetPosition(off.X, off.Y)
		if s.node.Alpha != s.alpha {
			s.node.SetAlpha(s.alpha)
		}
	}
}

// Draw renders both scenes into their targets, each after a clear to opaque
// black, then pushes {targets, progress, time} into the material and
// composites onto the context's target. The context's target and clear colour
// are restored before compositing.
func (r *DualSceneRenderer) Draw(rc *RenderContext) {
	if r.targets == nil {
		return
	}
	saved := rc.Save()

	rc.SetTarget(r.targets.RT1.Image())
	rc.SetClearColor(ColorBlack)
	rc.Clear()
	r.sceneSelected.Draw(rc.Target(), r.camera)

	rc.SetTarget(r.targets.RT2.Image())
	rc.SetClearColor(ColorBlack)
	rc.Clear()
	r.sceneLanding.Draw(rc.Target(), r.camera)

	rc.Restore(saved)

	r.material.SetInputs(r.targets.RT1.Image(), r.targets.RT2.Image(), r.transition.Progress(), r.elapsed)
	r.material.Apply(rc.Target())
}

// Teardown releases the render targets, scenes and active videos.
func (r *DualSceneRenderer) Teardown() {
	r.cancel()
	if r.targets != nil {
		r.targets.Dispose()
		r.targets = nil
	}
	r.sceneSelected.Reset()
	r.sceneLanding.Reset()
	if m := r.binding.MediaFor(r.transition.Displayed()); m != nil && m.Video != nil {
		m.Video.Dispose()
	}
	r.binding.Dispose()
	for _, s := range r.slots {
		if s.video != nil && s.video.Stream() != nil {
			s.video.Stream().Pause()
		}
		s.node = nil
	}
	r.built = false
}

// Transition returns the transition state machine.
func (r *DualSceneRenderer) Transition() *Transition { return r.transition }

// Parallax returns the parallax source.
func (r *DualSceneRenderer) Parallax() *ParallaxSource { return r.parallax }

// Binding returns the media binding layer.
func (r *DualSceneRenderer) Binding() *MediaBinding { return r.binding }

// Targets returns the live render-target pair, or nil before the first
// Update with a non-empty viewport.
func (r *DualSceneRenderer) Targets() *RenderTargetPair { return r.targets }

// SceneSelected returns the selected-panel scene.
func (r *DualSceneRenderer) SceneSelected() *Scene { return r.sceneSelected }

// SceneLanding returns the landing scene.
func (r *DualSceneRenderer) SceneLanding() *Scene { return r.sceneLanding }

// Camera returns the shared orthographic camera.
func (r *DualSceneRenderer) Camera() *Camera { return r.camera }

// GeometryPool returns the plane geometry pool.
func (r *DualSceneRenderer) GeometryPool() *GeometryPool { return r.pool }

// Material returns the blend material.
func (r *DualSceneRenderer) Material() *TransitionMaterial { return r.material }

// Rebuilds returns how many times the scenes have been reconstructed.
func (r *DualSceneRenderer) Rebuilds() int { return r.rebuilds }

// Elapsed returns the presentation time in seconds.
func (r *DualSceneRenderer) Elapsed() float64 { return r.elapsed }

// SetDebugMode toggles per-scene debug stats.
func (r *DualSceneRenderer) SetDebugMode(enabled bool) {
	r.sceneSelected.SetDebugMode(enabled)
	r.sceneLanding.SetDebugMode(enabled)
}
