package islandcycle

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// PreloadOptions lists the assets fetched before the presentation starts.
type PreloadOptions struct {
	Assets    fs.FS
	Images    []string
	Videos    []string
	VideoRoot string
	Opener    VideoOpener
	// Concurrency bounds parallel loads; zero uses GOMAXPROCS.
	Concurrency int
}

type preloadKey struct {
	kind AssetKind
	path string
}

// Preloader decodes images and probes videos concurrently ahead of time.
// Its Lookup method feeds TextureCacheOptions.Preload.
type Preloader struct {
	opts PreloadOptions

	mu     sync.RWMutex
	assets map[preloadKey]PreloadedAsset

	total  int
	done   atomic.Int64
	failed atomic.Int64

	// OnProgress receives the integer percentage after every finished
	// asset. It may be called from any goroutine.
	OnProgress func(percent int)
}

// NewPreloader creates a preloader for opts.
func NewPreloader(opts PreloadOptions) *Preloader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Preloader{
		opts:   opts,
		assets: make(map[preloadKey]PreloadedAsset),
		total:  len(opts.Images) + len(opts.Videos),
	}
}

// Run loads every asset. Individual failures are logged and counted but do
// not stop the run; the result is non-nil only when ctx ends first.
func (p *Preloader) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for _, name := range p.opts.Images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.finish(p.loadImage(name))
			return nil
		})
	}
	for _, name := range p.opts.Videos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.finish(p.loadVideo(ctx, name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	Logger().Info("preload complete", "assets", p.total, "failed", p.failed.Load())
	return nil
}

func (p *Preloader) loadImage(name string) (PreloadedAsset, error) {
	a := PreloadedAsset{Kind: AssetImage, Path: name}
	if p.opts.Assets == nil {
		return a, fmt.Errorf("image %s: no asset filesystem", name)
	}
	img, err := decodeAsset(p.opts.Assets, name)
	if err != nil {
		return a, err
	}
	b := img.Bounds()
	a.Image, a.Width, a.Height = img, b.Dx(), b.Dy()
	return a, nil
}

func (p *Preloader) loadVideo(ctx context.Context, name string) (PreloadedAsset, error) {
	src := name
	if p.opts.VideoRoot != "" {
		src = filepath.Join(p.opts.VideoRoot, name)
	}
	a := PreloadedAsset{Kind: AssetVideo, Path: name}
	if prober, ok := p.opts.Opener.(VideoProber); ok {
		w, h, err := prober.Probe(ctx, src)
		if err != nil {
			return a, fmt.Errorf("probe %s: %w", name, err)
		}
		a.Width, a.Height = w, h
		return a, nil
	}
	if p.opts.Opener == nil {
		return a, fmt.Errorf("video %s: no opener", name)
	}
	s, err := p.opts.Opener.Open(ctx, src)
	if err != nil {
		return a, fmt.Errorf("open %s: %w", name, err)
	}
	a.Width, a.Height = s.Width(), s.Height()
	_ = s.Close()
	return a, nil
}

func (p *Preloader) finish(a PreloadedAsset, err error) {
	if err != nil {
		p.failed.Add(1)
		Logger().Warn("preload failed", "kind", a.Kind, "path", a.Path, "err", err)
	} else {
		p.mu.Lock()
		p.assets[preloadKey{kind: a.Kind, path: a.Path}] = a
		p.mu.Unlock()
	}
	p.done.Add(1)
	if p.OnProgress != nil {
		p.OnProgress(p.Progress())
	}
}

// Progress returns the share of finished assets as an integer in 0..100.
func (p *Preloader) Progress() int {
	if p.total == 0 {
		return 100
	}
	return int(p.done.Load() * 100 / int64(p.total))
}

// Failed returns how many assets could not be loaded.
func (p *Preloader) Failed() int { return int(p.failed.Load()) }

// Lookup returns a preloaded asset. It satisfies PreloadLookup.
func (p *Preloader) Lookup(kind AssetKind, name string) (PreloadedAsset, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.assets[preloadKey{kind: kind, path: name}]
	return a, ok
}

// PreloadList returns the images and videos used by the stock landing
// stacks and panel table.
func PreloadList(table MediaTable, landing ...[]LandingLayer) (images, videos []string) {
	seen := make(map[string]bool)
	add := func(kind MediaKind, src string) {
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		if kind == MediaVideo {
			videos = append(videos, src)
		} else {
			images = append(images, src)
		}
	}
	add(MediaImage, DefaultImage)
	for _, layers := range landing {
		for _, l := range layers {
			add(l.Kind, l.Source)
		}
	}
	for _, panel := range table.Panels() {
		d := table[panel]
		add(d.Kind, d.Source)
	}
	return images, videos
}
