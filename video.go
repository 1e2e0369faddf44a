package islandcycle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// ReadyState mirrors how far a video stream has progressed toward playable.
type ReadyState int

const (
	HaveNothing     ReadyState = iota // nothing known yet
	HaveMetadata                      // dimensions known, no frame decoded
	HaveCurrentData                   // at least one frame available
	HaveEnoughData                    // frames arriving continuously
)

// defaultVideoWidth and defaultVideoHeight are assumed when a stream cannot
// report its own size.
const (
	defaultVideoWidth  = 1920
	defaultVideoHeight = 1080
)

// VideoStream is a muted, looping source of RGBA frames. Frames are pulled by
// the consumer; a stream never pushes.
type VideoStream interface {
	Width() int
	Height() int
	ReadyState() ReadyState
	Ended() bool
	Paused() bool
	// Play starts or resumes playback. A non-nil error means playback was
	// refused and may be retried later.
	Play() error
	Pause()
	// WaitReady blocks until the first frame is available, the stream fails,
	// or ctx is done.
	WaitReady(ctx context.Context) error
	// LatestFrame copies the newest RGBA frame (Width*Height*4 bytes) into
	// dst, growing it if needed, when that frame has not been returned
	// before. The bool reports whether a new frame was copied.
	LatestFrame(dst []byte) ([]byte, bool)
	Close() error
}

// VideoOpener opens a new stream for a video source.
type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoStream, error)
}

// SizedVideoOpener is implemented by openers that can skip probing when the
// video's dimensions are already known.
type SizedVideoOpener interface {
	OpenSized(ctx context.Context, path string, width, height int) (VideoStream, error)
}

// VideoProber is implemented by openers that can read a video's dimensions
// without decoding it.
type VideoProber interface {
	Probe(ctx context.Context, path string) (width, height int, err error)
}

// VideoTexture binds a VideoStream to a GPU texture. The texture is refreshed
// from the stream's newest frame on every Refresh call.
type VideoTexture struct {
	Path   string
	stream VideoStream
	tex    *Texture
	frame  []byte
}

func newVideoTexture(path string, stream VideoStream) *VideoTexture {
	w, h := stream.Width(), stream.Height()
	if w <= 0 || h <= 0 {
		w, h = defaultVideoWidth, defaultVideoHeight
	}
	return &VideoTexture{
		Path:   path,
		stream: stream,
		tex:    &Texture{path: path, width: w, height: h},
	}
}

// Texture returns the GPU texture frames are uploaded into.
func (v *VideoTexture) Texture() *Texture { return v.tex }

// Stream returns the underlying frame source.
func (v *VideoTexture) Stream() VideoStream { return v.stream }

// Size returns the video dimensions in pixels.
func (v *VideoTexture) Size() (int, int) { return v.tex.width, v.tex.height }

// live reports whether the stream can still be shown without reopening.
func (v *VideoTexture) live() bool {
	return v.stream != nil && v.stream.ReadyState() >= HaveCurrentData && !v.stream.Ended()
}

// Refresh uploads the newest frame when the stream is ready and not ended,
// and resumes playback if the stream was paused. It returns the play error,
// if any, so the caller can log it and try again next frame.
func (v *VideoTexture) Refresh() error {
	if !v.live() {
		return nil
	}
	var fresh bool
	v.frame, fresh = v.stream.LatestFrame(v.frame)
	if fresh && len(v.frame) == v.tex.width*v.tex.height*4 {
		if v.tex.img == nil {
			v.tex.img = ebiten.NewImage(v.tex.width, v.tex.height)
		}
		v.tex.img.WritePixels(v.frame)
	}
	if v.stream.Paused() {
		return v.stream.Play()
	}
	return nil
}

// Dispose stops the stream and frees the texture.
func (v *VideoTexture) Dispose() {
	if v.stream != nil {
		_ = v.stream.Close()
		v.stream = nil
	}
	v.tex.dispose()
}

// --- ffmpeg-backed stream ---

// FFmpegOpener decodes videos by piping raw RGBA frames out of an ffmpeg
// child process. Dimensions are probed with ffprobe first.
type FFmpegOpener struct {
	FFmpeg  string // executable, default "ffmpeg"
	FFprobe string // executable, default "ffprobe"
}

// Open probes path and starts decoding it in a loop at native frame rate.
func (o FFmpegOpener) Open(ctx context.Context, path string) (VideoStream, error) {
	w, h, err := o.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return o.start(path, w, h)
}

// OpenSized starts decoding path at a known size without running ffprobe.
func (o FFmpegOpener) OpenSized(ctx context.Context, path string, width, height int) (VideoStream, error) {
	if width <= 0 || height <= 0 {
		return o.Open(ctx, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.start(path, width, height)
}

func (o FFmpegOpener) start(path string, w, h int) (VideoStream, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.ffmpeg(),
		"-loglevel", "error",
		"-re",
		"-stream_loop", "-1",
		"-i", path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		path:   path,
		width:  w,
		height: h,
		cmd:    cmd,
		cancel: cancel,
		paused: true,
		state:  HaveMetadata,
		ready:  make(chan struct{}),
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop(bufio.NewReaderSize(stdout, w*h*4))
	return s, nil
}

func (o FFmpegOpener) ffmpeg() string {
	if o.FFmpeg == "" {
		return "ffmpeg"
	}
	return o.FFmpeg
}

func (o FFmpegOpener) ffprobe() string {
	if o.FFprobe == "" {
		return "ffprobe"
	}
	return o.FFprobe
}

// Probe returns the first video stream's dimensions.
func (o FFmpegOpener) Probe(ctx context.Context, path string) (int, int, error) {
	return o.probe(ctx, path)
}

func (o FFmpegOpener) probe(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, o.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}
	return parseProbeSize(string(out))
}

// parseProbeSize parses ffprobe's "WIDTHxHEIGHT" output.
func parseProbeSize(out string) (int, int, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	ws, hs, ok := strings.Cut(line, "x")
	if !ok {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", line)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %dx%d", w, h)
	}
	return w, h, nil
}

type ffmpegStream struct {
	path          string
	width, height int
	cmd           *exec.Cmd
	cancel        context.CancelFunc

	mu        sync.Mutex
	state     ReadyState
	paused    bool
	ended     bool
	err       error
	frame     []byte // newest complete frame
	spare     []byte // buffer the reader decodes into next
	frameSeq  uint64
	pulledSeq uint64
	closed    bool

	ready     chan struct{} // closed on first frame or failure
	readyOnce sync.Once
	resume    chan struct{}
	done      chan struct{}
}

func (s *ffmpegStream) Width() int  { return s.width }
func (s *ffmpegStream) Height() int { return s.height }

func (s *ffmpegStream) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ffmpegStream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *ffmpegStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *ffmpegStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ended {
		return ErrStreamEnded
	}
	if s.paused {
		s.paused = false
		select {
		case s.resume <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *ffmpegStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *ffmpegStream) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= HaveCurrentData {
		return nil
	}
	if s.err != nil {
		return s.err
	}
	return ErrNoFrame
}

func (s *ffmpegStream) LatestFrame(dst []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameSeq == s.pulledSeq || s.frame == nil {
		return dst, false
	}
	s.pulledSeq = s.frameSeq
	if cap(dst) < len(s.frame) {
		dst = make([]byte, len(s.frame))
	}
	dst = dst[:len(s.frame)]
	copy(dst, s.frame)
	return dst, true
}

func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	close(s.resume)
	<-s.done
	return nil
}

// readLoop decodes frames until the process exits. The first frame is always
// read so the stream reaches HaveCurrentData while still paused; afterwards
// reading stops while paused, which stalls ffmpeg on its pipe.
func (s *ffmpegStream) readLoop(r io.Reader) {
	defer close(s.done)
	frameSize := s.width * s.height * 4
	first := true
	for {
		if !first && !s.waitPlaying() {
			break
		}
		buf := s.takeSpare(frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			s.finish(err)
			break
		}
		s.publish(buf)
		first = false
	}
	_ = s.cmd.Wait()
}

// waitPlaying blocks while the stream is paused. It returns false once the
// stream is closed.
func (s *ffmpegStream) waitPlaying() bool {
	for {
		s.mu.Lock()
		paused, closed := s.paused, s.closed
		s.mu.Unlock()
		if closed {
			return false
		}
		if !paused {
			return true
		}
		if _, ok := <-s.resume; !ok {
			return false
		}
	}
}

func (s *ffmpegStream) takeSpare(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.spare
	s.spare = nil
	if len(buf) != n {
		buf = make([]byte, n)
	}
	return buf
}

func (s *ffmpegStream) publish(buf []byte) {
	s.mu.Lock()
	s.spare = s.frame
	s.frame = buf
	s.frameSeq++
	if s.state < HaveEnoughData {
		if s.state < HaveCurrentData {
			s.state = HaveCurrentData
		} else {
			s.state = HaveEnoughData
		}
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *ffmpegStream) finish(err error) {
	s.mu.Lock()
	s.ended = true
	if !s.closed && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
	} else if s.frame == nil {
		s.err = ErrNoFrame
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	Logger().Debug("video stream ended", "path", s.path, "err", err)
}
