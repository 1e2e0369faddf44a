package islandcycle

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// ScreenshotQueue collects labelled screenshot requests and writes them as
// PNG files the next time a composited frame is flushed.
type ScreenshotQueue struct {
	Dir    string
	Now    func() time.Time
	labels []string
}

// NewScreenshotQueue creates a queue writing into dir.
func NewScreenshotQueue(dir string) *ScreenshotQueue {
	return &ScreenshotQueue{Dir: dir, Now: time.Now}
}

// Queue requests a labelled capture of the next flushed frame. Safe to call
// from Update or Draw.
func (q *ScreenshotQueue) Queue(label string) {
	q.labels = append(q.labels, label)
}

// Len returns the number of pending captures.
func (q *ScreenshotQueue) Len() int { return len(q.labels) }

// Flush captures screen for every queued label and returns the written
// paths. Must be called at the end of Draw.
func (q *ScreenshotQueue) Flush(screen *ebiten.Image) []string {
	if len(q.labels) == 0 {
		return nil
	}
	defer func() { q.labels = q.labels[:0] }()

	if err := os.MkdirAll(q.Dir, 0o755); err != nil {
		Logger().Warn("screenshot: mkdir failed", "dir", q.Dir, "err", err)
		return nil
	}

	bounds := screen.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 4*w*h)
	screen.ReadPixels(pixels)
	img := unpremultiply(pixels, w, h)

	stamp := q.Now().Format("20060102_150405")
	var paths []string
	for _, label := range q.labels {
		path := filepath.Join(q.Dir, fmt.Sprintf("%s_%s.png", stamp, sanitizeLabel(label)))
		if err := writePNG(path, img); err != nil {
			Logger().Warn("screenshot failed", "err", err)
			continue
		}
		Logger().Info("screenshot written", "path", path)
		paths = append(paths, path)
	}
	return paths
}

// unpremultiply converts premultiplied RGBA pixels to straight-alpha NRGBA.
func unpremultiply(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(pixels) && i+3 < len(img.Pix); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
