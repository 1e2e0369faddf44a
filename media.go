package islandcycle

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// PanelNone encodes "no panel selected".
const PanelNone = 0

// DefaultImage is shown whenever a panel's media cannot be resolved.
const DefaultImage = "BG_v03.png"

// DefaultLoadTimeout bounds how long a panel's media may take to resolve
// before the default image is used instead.
const DefaultLoadTimeout = 15 * time.Second

// MediaKind is the type of asset bound to a panel.
type MediaKind uint8

const (
	MediaVideo MediaKind = iota
	MediaImage
)

func (k MediaKind) String() string {
	if k == MediaImage {
		return "image"
	}
	return "video"
}

// MarshalText implements encoding.TextMarshaler.
func (k MediaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MediaKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "video":
		*k = MediaVideo
	case "image":
		*k = MediaImage
	default:
		return fmt.Errorf("unknown media kind %q", string(b))
	}
	return nil
}

// MediaDescriptor binds a panel to its media source.
type MediaDescriptor struct {
	Panel  int       `yaml:"panel"`
	Name   string    `yaml:"name"`
	Kind   MediaKind `yaml:"kind"`
	Source string    `yaml:"source"`
}

// MediaTable maps panel indices to descriptors.
type MediaTable map[int]MediaDescriptor

var defaultMedia = []MediaDescriptor{
	{Panel: 1, Name: "Cloud", Kind: MediaVideo, Source: "Clouds_v02.mp4"},
	{Panel: 2, Name: "Rain", Kind: MediaVideo, Source: "Rain_v01.mp4"},
	{Panel: 3, Name: "Ground", Kind: MediaVideo, Source: "Ground_v01.mp4"},
	{Panel: 4, Name: "Sea", Kind: MediaVideo, Source: "Sea_v01.mp4"},
	{Panel: 5, Name: "Evaporation", Kind: MediaVideo, Source: "Evaporation_v01.mp4"},
}

// DefaultMediaTable returns a fresh copy of the built-in panel table.
func DefaultMediaTable() MediaTable {
	t := make(MediaTable, len(defaultMedia))
	for _, d := range defaultMedia {
		t[d.Panel] = d
	}
	return t
}

// NewMediaTable indexes descriptors by panel.
func NewMediaTable(descs []MediaDescriptor) MediaTable {
	t := make(MediaTable, len(descs))
	for _, d := range descs {
		t[d.Panel] = d
	}
	return t
}

// Lookup returns the descriptor for panel.
func (t MediaTable) Lookup(panel int) (MediaDescriptor, bool) {
	d, ok := t[panel]
	return d, ok
}

// Panels returns the panel indices in ascending order.
func (t MediaTable) Panels() []int {
	out := make([]int, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// LookupMedia resolves a panel against the built-in table. Indices outside
// 1..5 are not found.
func LookupMedia(panel int) (MediaDescriptor, bool) {
	if panel < 1 || panel > len(defaultMedia) {
		return MediaDescriptor{}, false
	}
	return defaultMedia[panel-1], true
}

// ResolvedMedia is a panel's media once it has been loaded (or replaced by
// the fallback image).
type ResolvedMedia struct {
	Panel         int
	Texture       *Texture
	Video         *VideoTexture
	Width, Height int
	Ready         bool
	Fallback      bool
}

// Drawable reports whether the media has pixels on the GPU.
func (m *ResolvedMedia) Drawable() bool {
	return m != nil && m.Texture != nil && m.Texture.Ready()
}

func (m *ResolvedMedia) release() {
	if m.Video != nil && m.Video.Stream() != nil {
		// The cache owns the stream; pausing makes it eligible for Sweep.
		m.Video.Stream().Pause()
	}
}

type loadResult struct {
	gen     uint64
	panel   int
	source  string
	video   *VideoTexture
	err     error
	retried bool
}

// MediaBindingOptions configures a MediaBinding.
type MediaBindingOptions struct {
	Table        MediaTable
	DefaultImage string
	// LoadTimeout bounds each load; zero disables the bound.
	LoadTimeout time.Duration
}

// MediaBinding resolves selected panels to textures. Loads run on
// goroutines; their results are committed in Update on the frame goroutine,
// and only if no newer selection has been made since.
type MediaBinding struct {
	cache *TextureCache
	opts  MediaBindingOptions

	selected int
	gen      uint64
	cancel   context.CancelFunc

	mu       sync.Mutex
	results  []loadResult
	disposed bool

	current  *ResolvedMedia
	outgoing *ResolvedMedia
	// imageSince is when the current image media was bound while its
	// texture was still pending.
	imageSince time.Time

	// OnCommit is called on the frame goroutine when a panel's media is bound.
	OnCommit func(m *ResolvedMedia)
}

// NewMediaBinding creates a binding that loads through cache.
func NewMediaBinding(cache *TextureCache, opts MediaBindingOptions) *MediaBinding {
	if opts.Table == nil {
		opts.Table = DefaultMediaTable()
	}
	if opts.DefaultImage == "" {
		opts.DefaultImage = DefaultImage
	}
	return &MediaBinding{cache: cache, opts: opts}
}

// Selected returns the latest selection.
func (b *MediaBinding) Selected() int { return b.selected }

// Select changes the selected panel. Re-selecting the panel that is already
// selected, or whose media is already bound, starts no new load. Any
// in-flight load for a previous selection is cancelled and its result will
// be discarded.
func (b *MediaBinding) Select(panel int) {
	if panel == b.selected {
		return
	}
	b.selected = panel
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if panel == PanelNone {
		return
	}
	if b.current != nil && b.current.Panel == panel {
		return
	}
	if b.outgoing != nil && b.outgoing.Panel == panel {
		b.current, b.outgoing = b.outgoing, b.current
		b.imageSince = b.cache.now()
		b.resume(b.current)
		return
	}

	desc, ok := b.opts.Table.Lookup(panel)
	if !ok {
		b.commitFallback(panel, fmt.Errorf("panel %d: %w", panel, ErrUnknownPanel))
		return
	}
	if desc.Kind == MediaImage {
		tex := b.cache.ImageTexture(desc.Source)
		w, h := tex.Size()
		b.imageSince = b.cache.now()
		b.commit(&ResolvedMedia{Panel: panel, Texture: tex, Width: w, Height: h, Ready: true})
		return
	}
	b.loadVideo(panel, desc.Source, false)
}

func (b *MediaBinding) loadVideo(panel int, source string, retried bool) {
	var ctx context.Context
	var cancel context.CancelFunc
	if b.opts.LoadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), b.opts.LoadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	b.cancel = cancel
	gen := b.gen
	go func() {
		vt, err := b.cache.VideoTexture(ctx, source)
		b.mu.Lock()
		if b.disposed {
			b.mu.Unlock()
			pauseVideo(vt)
			return
		}
		b.results = append(b.results, loadResult{gen: gen, panel: panel, source: source, video: vt, err: err, retried: retried})
		b.mu.Unlock()
	}()
}

func pauseVideo(vt *VideoTexture) {
	if vt != nil && vt.Stream() != nil {
		vt.Stream().Pause()
	}
}

// Update commits finished loads and replaces image media that failed or
// timed out with the default image. Must be called once per frame on the
// frame goroutine.
func (b *MediaBinding) Update() {
	b.mu.Lock()
	results := b.results
	b.results = nil
	b.mu.Unlock()

	for _, r := range results {
		b.handle(r)
	}
	b.checkImage()
}

func (b *MediaBinding) checkImage() {
	m := b.current
	if m == nil || m.Video != nil || m.Fallback || m.Texture == nil || m.Texture.Ready() {
		return
	}
	path := m.Texture.Path()
	var err error
	switch {
	case b.cache.Failed(path):
		err = fmt.Errorf("image %s: %w", path, ErrImageUnavailable)
	case b.opts.LoadTimeout > 0 && b.cache.now().Sub(b.imageSince) >= b.opts.LoadTimeout:
		err = fmt.Errorf("image %s: %w", path, context.DeadlineExceeded)
	default:
		return
	}
	// Replaced in place: the outgoing panel may still be on screen.
	b.current = b.fallback(m.Panel, err)
	b.notify(b.current)
}

func (b *MediaBinding) handle(r loadResult) {
	if r.gen != b.gen {
		// Superseded by a newer selection.
		if r.video != nil && !b.bound(r.video) && r.video.Stream() != nil {
			r.video.Stream().Pause()
		}
		Logger().Debug("discarded stale media", "panel", r.panel)
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if r.err != nil {
		b.commitFallback(r.panel, r.err)
		return
	}
	if !r.video.live() {
		// Evicted or ended between the cache handing it out and now.
		if !r.retried {
			Logger().Debug("loaded video no longer live, reopening", "panel", r.panel)
			b.loadVideo(r.panel, r.source, true)
			return
		}
		b.commitFallback(r.panel, fmt.Errorf("video %s: %w", r.source, ErrStreamEnded))
		return
	}
	w, h := r.video.Size()
	if err := r.video.Refresh(); err != nil {
		Logger().Warn("video play refused, retrying", "panel", r.panel, "err", err)
	}
	b.commit(&ResolvedMedia{
		Panel:   r.panel,
		Texture: r.video.Texture(),
		Video:   r.video,
		Width:   w,
		Height:  h,
		Ready:   true,
	})
}

func (b *MediaBinding) bound(vt *VideoTexture) bool {
	return (b.current != nil && b.current.Video == vt) || (b.outgoing != nil && b.outgoing.Video == vt)
}

func (b *MediaBinding) commitFallback(panel int, err error) {
	b.commit(b.fallback(panel, err))
}

func (b *MediaBinding) fallback(panel int, err error) *ResolvedMedia {
	Logger().Warn("media load failed, using default image", "panel", panel, "err", err)
	tex := b.cache.ImageTexture(b.opts.DefaultImage)
	w, h := tex.Size()
	return &ResolvedMedia{Panel: panel, Texture: tex, Width: w, Height: h, Ready: true, Fallback: true}
}

func (b *MediaBinding) commit(m *ResolvedMedia) {
	if b.outgoing != nil && (b.outgoing.Video == nil || b.outgoing.Video != m.Video) {
		b.outgoing.release()
	}
	b.outgoing = b.current
	b.current = m
	b.notify(m)
}

func (b *MediaBinding) notify(m *ResolvedMedia) {
	Logger().Info("panel media bound", "panel", m.Panel, "fallback", m.Fallback)
	if b.OnCommit != nil {
		b.OnCommit(m)
	}
}

func (b *MediaBinding) resume(m *ResolvedMedia) {
	if m != nil && m.Video != nil && m.Video.Stream() != nil {
		if err := m.Video.Stream().Play(); err != nil {
			Logger().Warn("video play refused, retrying", "panel", m.Panel, "err", err)
		}
	}
}

// Current returns the media bound for the latest selection, or nil.
func (b *MediaBinding) Current() *ResolvedMedia {
	return b.current
}

// MediaFor returns the bound media for panel, including media still on
// screen from the previous selection.
func (b *MediaBinding) MediaFor(panel int) *ResolvedMedia {
	if panel == PanelNone {
		return nil
	}
	if b.current != nil && b.current.Panel == panel {
		return b.current
	}
	if b.outgoing != nil && b.outgoing.Panel == panel {
		return b.outgoing
	}
	return nil
}

// Ready reports whether panel's media is bound and can be shown: a live
// video, a decoded image, or the fallback. A fallback counts as ready even
// while the default image itself is still decoding.
func (b *MediaBinding) Ready(panel int) bool {
	m := b.MediaFor(panel)
	if m == nil || !m.Ready {
		return false
	}
	switch {
	case m.Fallback:
		return true
	case m.Video != nil:
		return m.Video.live()
	default:
		return m.Texture != nil && m.Texture.Ready()
	}
}

// Pending reports whether a load is in flight.
func (b *MediaBinding) Pending() bool {
	return b.cancel != nil
}

// Release drops the media of a panel that has left the screen.
func (b *MediaBinding) Release(panel int) {
	if panel == PanelNone {
		return
	}
	if b.outgoing != nil && b.outgoing.Panel == panel {
		b.outgoing.release()
		b.outgoing = nil
		return
	}
	if b.current != nil && b.current.Panel == panel && b.selected != panel {
		b.current.release()
		b.current = nil
	}
}

// Dispose cancels any in-flight load and releases bound media.
func (b *MediaBinding) Dispose() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.mu.Lock()
	b.disposed = true
	late := b.results
	b.results = nil
	b.mu.Unlock()
	for _, r := range late {
		if !b.bound(r.video) {
			pauseVideo(r.video)
		}
	}
	if b.current != nil {
		b.current.release()
		b.current = nil
	}
	if b.outgoing != nil {
		b.outgoing.release()
		b.outgoing = nil
	}
}
