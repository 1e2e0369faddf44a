// Package islandcycle renders The Island Cycle, an interactive water-cycle
// presentation for [Ebitengine].
//
// Two scenes are drawn every frame into a pair of offscreen render targets:
// the landing scene (a parallax stack of island layers) and the selected
// scene (the video or image for the chosen panel). A Kage shader then
// cross-fades the two targets onto the screen, driven by a single
// exponentially smoothed progress value.
//
// # Quick start
//
// [Run] creates the window and game loop:
//
//	cfg := islandcycle.DefaultConfig()
//	cfg.AssetDir = "assets"
//	if err := islandcycle.Run(cfg, nil, nil); err != nil {
//		log.Fatal(err)
//	}
//
// For full control, build the pieces yourself and drive
// [DualSceneRenderer.Update] and [DualSceneRenderer.Draw] from your own
// [ebiten.Game]:
//
//	cache := islandcycle.NewTextureCache(cfg.CacheOptions(assets, nil))
//	r := islandcycle.NewDualSceneRenderer(cache, islandcycle.DetectDevice(cfg.Device), cfg.RendererOptions())
//	r.SetViewport(1280, 720)
//	r.Select(3) // Ground
//
// # Panels
//
// Panels 1 to 5 (Cloud, Rain, Ground, Sea, Evaporation) are described by a
// [MediaTable]. Selecting a panel while another one is shown fades back
// through the landing view before the new media is swapped in, and progress
// only rises once the new media can be drawn. [PanelNone] returns to the
// landing view.
//
// # Coordinates
//
// Scene space is centred on the viewport with +Y pointing up. Input, hotspots
// and screenshots use screen pixels with the origin at the top-left.
//
// # Media
//
// Images are decoded asynchronously through a [TextureCache]. Videos are
// decoded by an external ffmpeg process behind the [VideoOpener] interface,
// which tests replace with in-memory streams. A [Preloader] can warm every
// asset up front with a bounded worker pool.
//
// [Ebitengine]: https://ebitengine.org
package islandcycle
