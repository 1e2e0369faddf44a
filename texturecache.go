package islandcycle

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	_ "golang.org/x/image/webp"
)

// DefaultVideoCacheTTL is how long a paused cached video survives before
// Sweep disposes it.
const DefaultVideoCacheTTL = 5 * time.Minute

const sweepInterval = time.Second

// Texture is a GPU image that may still be loading. A pending texture has no
// image and draws as nothing; it becomes ready in TextureCache.Update once
// its asset has been decoded.
type Texture struct {
	path          string
	img           *ebiten.Image
	width, height int
}

// NewTextureFromImage wraps an existing ebiten image as a ready texture.
func NewTextureFromImage(path string, img *ebiten.Image) *Texture {
	b := img.Bounds()
	return &Texture{path: path, img: img, width: b.Dx(), height: b.Dy()}
}

// Path returns the asset path the texture was loaded from.
func (t *Texture) Path() string { return t.path }

// Image returns the GPU image, or nil while the texture is pending.
func (t *Texture) Image() *ebiten.Image { return t.img }

// Ready reports whether the texture has pixels to draw.
func (t *Texture) Ready() bool { return t.img != nil }

// Size returns the source dimensions in pixels. Zero while pending unless the
// dimensions were known up front (videos).
func (t *Texture) Size() (int, int) { return t.width, t.height }

func (t *Texture) setImage(img *ebiten.Image) {
	if t.img != nil {
		t.img.Deallocate()
	}
	b := img.Bounds()
	t.img = img
	t.width = b.Dx()
	t.height = b.Dy()
}

func (t *Texture) dispose() {
	if t.img != nil {
		t.img.Deallocate()
		t.img = nil
	}
}

// AssetKind distinguishes preloadable asset families.
type AssetKind uint8

const (
	AssetImage AssetKind = iota
	AssetVideo
)

func (k AssetKind) String() string {
	if k == AssetVideo {
		return "videos"
	}
	return "images"
}

// PreloadedAsset is an asset fetched ahead of time by the preloader.
type PreloadedAsset struct {
	Kind   AssetKind
	Path   string
	Image  image.Image // decoded pixels, images only
	Width  int         // probed video size, videos only
	Height int
}

// PreloadLookup returns a preloaded asset if one is available. It is purely
// an optimisation; a miss falls back to a normal load.
type PreloadLookup func(kind AssetKind, path string) (PreloadedAsset, bool)

// TextureCacheOptions configures a TextureCache.
type TextureCacheOptions struct {
	// Assets is where image files are read from.
	Assets fs.FS
	// VideoRoot is prepended to video paths before they are opened.
	VideoRoot string
	// Opener opens video streams. Defaults to FFmpegOpener{}.
	Opener VideoOpener
	// Preload is consulted before any load. May be nil.
	Preload PreloadLookup
	// VideoTTL bounds the life of paused cached videos. Zero means
	// DefaultVideoCacheTTL.
	VideoTTL time.Duration
	// Now is the clock used for video staleness. Defaults to time.Now.
	Now func() time.Time
}

type videoEntry struct {
	tex *VideoTexture
	// used is the last time the entry was handed out or seen playing.
	used time.Time
}

type decodeResult struct {
	path string
	img  image.Image
	err  error
}

// TextureCache maps asset paths to loaded textures and live video streams so
// re-selecting a panel neither reloads its media nor duplicates GPU uploads.
// Loads run on goroutines; GPU uploads happen only on the frame goroutine in
// ImageTexture (preloaded images) and Update.
type TextureCache struct {
	opts TextureCacheOptions

	mu        sync.Mutex
	images    map[string]*Texture
	videos    map[string]*videoEntry
	decoded   []decodeResult
	inflight  map[string]bool
	failed    map[string]bool
	lastSweep time.Time
}

// NewTextureCache creates an empty cache.
func NewTextureCache(opts TextureCacheOptions) *TextureCache {
	if opts.Opener == nil {
		opts.Opener = FFmpegOpener{}
	}
	if opts.VideoTTL <= 0 {
		opts.VideoTTL = DefaultVideoCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TextureCache{
		opts:     opts,
		images:   make(map[string]*Texture),
		videos:   make(map[string]*videoEntry),
		inflight: make(map[string]bool),
		failed:   make(map[string]bool),
	}
}

// ImageTexture returns the texture for an image asset. It never blocks and
// never fails: the texture may be pending and becomes ready in a later Update.
// Must be called on the frame goroutine.
func (c *TextureCache) ImageTexture(path string) *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.images[path]; ok {
		if !t.Ready() && c.failed[path] && !c.inflight[path] {
			delete(c.failed, path)
			c.startDecodeLocked(path)
		}
		return t
	}

	t := &Texture{path: path}
	c.images[path] = t

	if c.opts.Preload != nil {
		if a, ok := c.opts.Preload(AssetImage, path); ok && a.Image != nil {
			t.setImage(ebiten.NewImageFromImage(a.Image))
			return t
		}
	}
	c.startDecodeLocked(path)
	return t
}

func (c *TextureCache) startDecodeLocked(path string) {
	if c.opts.Assets == nil {
		c.failed[path] = true
		return
	}
	c.inflight[path] = true
	go func() {
		img, err := decodeAsset(c.opts.Assets, path)
		c.mu.Lock()
		c.decoded = append(c.decoded, decodeResult{path: path, img: img, err: err})
		c.mu.Unlock()
	}()
}

func decodeAsset(fsys fs.FS, path string) (image.Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// VideoTexture returns a playing video texture for path. A cached stream is
// reused when it is still live; otherwise a fresh stream is opened, waited on
// until its first frame, started, cached and returned. Preloaded videos are
// never bound directly: a new stream on the same source is opened instead.
//
// VideoTexture blocks and must not be called on the frame goroutine.
func (c *TextureCache) VideoTexture(ctx context.Context, path string) (*VideoTexture, error) {
	c.mu.Lock()
	if e, ok := c.videos[path]; ok {
		if e.tex.live() {
			e.used = c.opts.Now()
			c.mu.Unlock()
			return e.tex, nil
		}
		// Stale or ended: a miss.
		delete(c.videos, path)
		defer e.tex.Dispose()
	}
	c.mu.Unlock()

	stream, err := c.openVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if err := stream.WaitReady(ctx); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("video %s: %w", path, err)
	}
	if err := stream.Play(); err != nil {
		// Refused playback is retried every frame by the renderer.
		Logger().Warn("video play refused", "path", path, "err", err)
	}
	vt := newVideoTexture(path, stream)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.videos[path]; ok && e.tex.live() {
		// Lost a race with a concurrent open of the same source.
		vt.Dispose()
		return e.tex, nil
	}
	c.videos[path] = &videoEntry{tex: vt, used: c.opts.Now()}
	return vt, nil
}

// openVideo opens a fresh stream for path. A preloaded video's probed size
// is handed to openers that can use it, so the source is not probed twice.
func (c *TextureCache) openVideo(ctx context.Context, path string) (VideoStream, error) {
	if c.opts.Preload != nil {
		if a, ok := c.opts.Preload(AssetVideo, path); ok && a.Width > 0 && a.Height > 0 {
			if so, ok := c.opts.Opener.(SizedVideoOpener); ok {
				Logger().Debug("cloning preloaded video", "path", path, "width", a.Width, "height", a.Height)
				return so.OpenSized(ctx, c.videoPath(path), a.Width, a.Height)
			}
		}
	}
	return c.opts.Opener.Open(ctx, c.videoPath(path))
}

func (c *TextureCache) videoPath(path string) string {
	if c.opts.VideoRoot == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.opts.VideoRoot, path)
}

// Update commits finished image decodes and periodically sweeps stale videos.
// Must be called on the frame goroutine once per frame.
func (c *TextureCache) Update() {
	c.mu.Lock()
	results := c.decoded
	c.decoded = nil
	c.mu.Unlock()

	for _, r := range results {
		c.mu.Lock()
		delete(c.inflight, r.path)
		t := c.images[r.path]
		if r.err != nil {
			first := !c.failed[r.path]
			c.failed[r.path] = true
			c.mu.Unlock()
			if first {
				Logger().Warn("image load failed", "path", r.path, "err", r.err)
			}
			continue
		}
		c.mu.Unlock()
		if t != nil {
			t.setImage(ebiten.NewImageFromImage(r.img))
			Logger().Debug("image ready", "path", r.path)
		}
	}

	now := c.opts.Now()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.lastSweep = now
		c.Sweep(now)
	}
}

// Sweep disposes cached videos that are paused and have not been used for
// longer than the TTL. Playing videos are never evicted and count as used.
// Returns the number of evicted entries.
func (c *TextureCache) Sweep(now time.Time) int {
	c.mu.Lock()
	var evicted []*VideoTexture
	for path, e := range c.videos {
		if e.tex.stream != nil && !e.tex.stream.Paused() {
			e.used = now
			continue
		}
		if now.Sub(e.used) < c.opts.VideoTTL {
			continue
		}
		evicted = append(evicted, e.tex)
		delete(c.videos, path)
	}
	c.mu.Unlock()

	for _, vt := range evicted {
		Logger().Debug("video evicted", "path", vt.Path)
		vt.Dispose()
	}
	return len(evicted)
}

// Failed reports whether the last load of an image asset failed. The flag
// clears when ImageTexture retries the load.
func (c *TextureCache) Failed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[path]
}

func (c *TextureCache) now() time.Time { return c.opts.Now() }

// CachedVideo returns the cached video for path without validating it.
func (c *TextureCache) CachedVideo(path string) (*VideoTexture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.videos[path]
	if !ok {
		return nil, false
	}
	return e.tex, true
}

// Stats returns the number of cached images and videos.
func (c *TextureCache) Stats() (images, videos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images), len(c.videos)
}

// Dispose releases every GPU image and stops every stream.
func (c *TextureCache) Dispose() {
	c.mu.Lock()
	images := c.images
	videos := c.videos
	c.images = make(map[string]*Texture)
	c.videos = make(map[string]*videoEntry)
	c.mu.Unlock()

	for _, t := range images {
		t.dispose()
	}
	for _, e := range videos {
		e.tex.Dispose()
	}
}
