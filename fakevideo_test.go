package islandcycle

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"
)

var errPlayRefused = errors.New("play refused")

// fakeStream is a VideoStream that never produces frames.
type fakeStream struct {
	mu      sync.Mutex
	path    string
	w, h    int
	state   ReadyState
	ended   bool
	paused  bool
	closed  bool
	playErr error
	plays   int
}

func (s *fakeStream) Width() int  { return s.w }
func (s *fakeStream) Height() int { return s.h }

func (s *fakeStream) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeStream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *fakeStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	if s.playErr != nil {
		return s.playErr
	}
	s.paused = false
	return nil
}

func (s *fakeStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fakeStream) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	s.state = HaveCurrentData
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeStream) LatestFrame(dst []byte) ([]byte, bool) { return dst, false }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) setEnded() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeOpener hands out fakeStreams and records every Open.
type fakeOpener struct {
	mu      sync.Mutex
	opened  []string
	sized   []string
	streams map[string][]*fakeStream
	errs    map[string]error
	block   map[string]chan struct{}
	playErr error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		streams: make(map[string][]*fakeStream),
		errs:    make(map[string]error),
		block:   make(map[string]chan struct{}),
	}
}

func (o *fakeOpener) Open(ctx context.Context, path string) (VideoStream, error) {
	return o.open(ctx, path, 64, 36)
}

func (o *fakeOpener) OpenSized(ctx context.Context, path string, w, h int) (VideoStream, error) {
	o.mu.Lock()
	o.sized = append(o.sized, path)
	o.mu.Unlock()
	return o.open(ctx, path, w, h)
}

func (o *fakeOpener) open(ctx context.Context, path string, w, h int) (VideoStream, error) {
	o.mu.Lock()
	o.opened = append(o.opened, path)
	err := o.errs[path]
	gate := o.block[path]
	o.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	s := &fakeStream{path: path, w: w, h: h, playErr: o.playErr}
	o.mu.Lock()
	o.streams[path] = append(o.streams[path], s)
	o.mu.Unlock()
	return s, nil
}

func (o *fakeOpener) Probe(ctx context.Context, path string) (int, int, error) {
	o.mu.Lock()
	o.opened = append(o.opened, path)
	err := o.errs[path]
	o.mu.Unlock()
	if err != nil {
		return 0, 0, err
	}
	return 64, 36, nil
}

func (o *fakeOpener) opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, p := range o.opened {
		if p == path {
			n++
		}
	}
	return n
}

func (o *fakeOpener) stream(path string, i int) *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.streams[path]) {
		return nil
	}
	return o.streams[path][i]
}

// waitFor calls step until cond holds or five seconds pass.
func waitFor(t *testing.T, what string, step func(), cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		step()
		time.Sleep(100 * time.Microsecond)
	}
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// preloadImages returns a PreloadLookup serving in-memory images for paths.
func preloadImages(sizes map[string][2]int) PreloadLookup {
	return func(kind AssetKind, path string) (PreloadedAsset, bool) {
		s, ok := sizes[path]
		if kind != AssetImage || !ok {
			return PreloadedAsset{}, false
		}
		return PreloadedAsset{Kind: kind, Path: path, Image: testImage(s[0], s[1])}, true
	}
}
