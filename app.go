package islandcycle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// App is the complete presentation as an ebiten.Game: an optional preload
// phase followed by the dual-scene renderer driven by real or scripted
// input.
type App struct {
	cfg    Config
	assets fs.FS

	ctx    context.Context
	cancel context.CancelFunc

	preloader   *Preloader
	preloadDone atomic.Bool

	cache       *TextureCache
	renderer    *DualSceneRenderer
	interaction *Interaction
	cursor      *MagneticCursor
	perf        *PerfMonitor
	shots       *ScreenshotQueue
	runner      *ScenarioRunner
	rc          *RenderContext

	viewport    Size
	deviceScale float64

	// ExitWhenDone ends the game loop once the scenario has finished.
	ExitWhenDone bool
}

// NewApp builds an App. assets may be nil to read cfg.AssetDir from disk;
// script may be nil for interactive use.
func NewApp(cfg Config, assets fs.FS, script *Scenario) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:         cfg,
		assets:      assets,
		ctx:         ctx,
		cancel:      cancel,
		perf:        NewPerfMonitor(cfg.Perf),
		shots:       NewScreenshotQueue(cfg.ScreenshotDir),
		rc:          NewRenderContext(nil),
		deviceScale: 1,
	}
	if script != nil {
		a.runner = NewScenarioRunner(script)
		a.ExitWhenDone = true
	}
	if a.assets == nil && cfg.AssetDir != "" {
		a.assets = os.DirFS(cfg.AssetDir)
	}

	if !cfg.Preload {
		a.preloadDone.Store(true)
		return a, nil
	}
	images, videos := PreloadList(cfg.MediaTable(), cfg.Landing, cfg.TouchLanding)
	a.preloader = NewPreloader(PreloadOptions{
		Assets:    a.assets,
		Images:    images,
		Videos:    videos,
		VideoRoot: cfg.videoRoot(),
		Opener:    FFmpegOpener{FFmpeg: cfg.FFmpeg, FFprobe: cfg.FFprobe},
	})
	go func() {
		if err := a.preloader.Run(a.ctx); err != nil {
			Logger().Warn("preload interrupted", "err", err)
		}
		a.preloadDone.Store(true)
	}()
	return a, nil
}

// start creates the presentation once assets are available. Runs on the
// game goroutine so the device can be queried.
func (a *App) start() {
	var lookup PreloadLookup
	if a.preloader != nil {
		lookup = a.preloader.Lookup
	}
	a.cache = NewTextureCache(a.cfg.CacheOptions(a.assets, lookup))

	device := DetectDevice(a.cfg.Device)
	a.renderer = NewDualSceneRenderer(a.cache, device, a.cfg.RendererOptions())
	a.renderer.SetDebugMode(a.cfg.Debug)
	a.renderer.SetViewport(a.viewport.Width, a.viewport.Height)
	a.renderer.OnAnimatingChange = func(animating bool) {
		Logger().Debug("animating", "value", animating, "phase", a.renderer.Transition().Phase().String())
	}

	a.interaction = NewInteraction(a.renderer, a.cfg.MediaTable())
	a.cursor = NewMagneticCursor()
	a.cursor.SetActive(!device.IsTouch)
	Logger().Info("presentation started", "touch", device.IsTouch, "pixel_ratio", device.PixelRatio)
}

// Renderer returns the renderer, nil while preloading.
func (a *App) Renderer() *DualSceneRenderer { return a.renderer }

// Update implements ebiten.Game.
func (a *App) Update() error {
	if a.renderer == nil {
		if !a.preloadDone.Load() {
			return nil
		}
		a.start()
	}
	dt := 1 / float64(ebiten.TPS())

	if a.runner != nil {
		a.runner.Step(a)
	}
	a.interaction.SetInputScale(a.deviceScale)
	a.interaction.Update(a.runner == nil)

	if a.renderer.Device().IsTouch {
		a.cursor.SetActive(false)
	}
	p := a.interaction.Pointer()
	h, hovering := a.interaction.Hovered()
	a.cursor.SetPointer(p.X, p.Y, h, hovering)
	a.cursor.Update(dt)

	a.renderer.Update(dt)
	a.perf.Tick(dt)

	if a.ExitWhenDone && a.runner != nil && a.runner.Done() && a.shots.Len() == 0 {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (a *App) Draw(screen *ebiten.Image) {
	if a.renderer == nil {
		progress := 0
		if a.preloader != nil {
			progress = a.preloader.Progress()
		}
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Loading %d%%", progress))
		return
	}

	a.perf.BeginRender()
	a.rc.SetTarget(screen)
	a.renderer.Draw(a.rc)
	a.cursor.Draw(screen, a.deviceScale)
	a.shots.Flush(screen)
	a.perf.EndRender()

	if a.cfg.PerfOverlay {
		a.perf.DrawOverlay(screen)
	}
}

// Layout implements ebiten.Game. The viewport is kept in logical pixels and
// the screen is allocated at device resolution.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := 1.0
	if m := ebiten.Monitor(); m != nil {
		scale = m.DeviceScaleFactor()
	}
	a.deviceScale = scale
	a.viewport = Size{Width: float64(outsideWidth), Height: float64(outsideHeight)}
	if a.renderer != nil {
		a.renderer.SetViewport(a.viewport.Width, a.viewport.Height)
	}
	return int(float64(outsideWidth) * scale), int(float64(outsideHeight) * scale)
}

// Select implements ScenarioDriver.
func (a *App) Select(panel int) { a.renderer.Select(panel) }

// Inject implements ScenarioDriver.
func (a *App) Inject(f InputFrame) { a.interaction.Inject(f) }

// PendingInput implements ScenarioDriver.
func (a *App) PendingInput() int { return a.interaction.Pending() }

// Screenshot implements ScenarioDriver.
func (a *App) Screenshot(label string) { a.shots.Queue(label) }

// Settled implements ScenarioDriver: the transition rests on its target and
// no media load is pending.
func (a *App) Settled() bool {
	t := a.renderer.Transition()
	return !t.Animating() && t.Progress() == t.Target() && !a.renderer.Binding().Pending()
}

// Close releases every resource.
func (a *App) Close() {
	a.cancel()
	if a.renderer != nil {
		a.renderer.Teardown()
	}
	if a.cache != nil {
		a.cache.Dispose()
	}
}

// Run opens a window and runs the presentation until it is closed or the
// scenario finishes.
func Run(cfg Config, assets fs.FS, script *Scenario) error {
	app, err := NewApp(cfg, assets, script)
	if err != nil {
		return err
	}
	defer app.Close()

	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(app); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
