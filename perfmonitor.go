package islandcycle

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/shirou/gopsutil/v3/process"
)

// PerfThresholds are the limits past which a sample raises warnings.
type PerfThresholds struct {
	MinFPS        float64       `yaml:"min_fps"`
	MaxFrameTime  time.Duration `yaml:"max_frame_time"`
	MaxRenderTime time.Duration `yaml:"max_render_time"`
	MaxMemory     uint64        `yaml:"max_memory"`
}

// DefaultPerfThresholds returns 30 FPS, 33 ms frames, 16 ms renders and
// 100 MB of resident memory.
func DefaultPerfThresholds() PerfThresholds {
	return PerfThresholds{
		MinFPS:        30,
		MaxFrameTime:  33 * time.Millisecond,
		MaxRenderTime: 16 * time.Millisecond,
		MaxMemory:     100 << 20,
	}
}

// PerfSample aggregates one measurement window.
type PerfSample struct {
	FPS        float64
	FrameTime  time.Duration // mean
	RenderTime time.Duration // mean Draw duration
	RSS        uint64        // resident set size, 0 when unavailable
	CPU        float64       // process CPU percent
}

// Warnings returns a message for every threshold s violates.
func (s PerfSample) Warnings(th PerfThresholds) []string {
	var out []string
	if th.MinFPS > 0 && s.FPS < th.MinFPS {
		out = append(out, fmt.Sprintf("low FPS: %.1f", s.FPS))
	}
	if th.MaxFrameTime > 0 && s.FrameTime > th.MaxFrameTime {
		out = append(out, fmt.Sprintf("slow frame: %s", s.FrameTime))
	}
	if th.MaxRenderTime > 0 && s.RenderTime > th.MaxRenderTime {
		out = append(out, fmt.Sprintf("slow render: %s", s.RenderTime))
	}
	if th.MaxMemory > 0 && s.RSS > th.MaxMemory {
		out = append(out, fmt.Sprintf("high memory: %.1f MB", float64(s.RSS)/(1<<20)))
	}
	return out
}

// PerfMonitor measures frame rate, frame and render time, and process memory
// once per second.
type PerfMonitor struct {
	thresholds PerfThresholds
	window     time.Duration
	proc       *process.Process

	frames    int
	frameSum  time.Duration
	renders   int
	renderSum time.Duration
	elapsed   time.Duration

	renderStart time.Time
	sample      PerfSample
	hasSample   bool

	overlay *ebiten.Image

	// Now is the clock used to time Draw. Defaults to time.Now.
	Now func() time.Time
	// OnSample is called after every completed window.
	OnSample func(PerfSample)
}

// NewPerfMonitor creates a monitor for the current process.
func NewPerfMonitor(th PerfThresholds) *PerfMonitor {
	m := &PerfMonitor{thresholds: th, window: time.Second, Now: time.Now}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	} else {
		Logger().Debug("process stats unavailable", "err", err)
	}
	return m
}

// BeginRender marks the start of Draw.
func (m *PerfMonitor) BeginRender() {
	m.renderStart = m.Now()
}

// EndRender marks the end of Draw.
func (m *PerfMonitor) EndRender() {
	if m.renderStart.IsZero() {
		return
	}
	m.renderSum += m.Now().Sub(m.renderStart)
	m.renders++
	m.renderStart = time.Time{}
}

// Tick records a frame of dt seconds. When a window completes it returns the
// new sample and true.
func (m *PerfMonitor) Tick(dt float64) (PerfSample, bool) {
	d := time.Duration(dt * float64(time.Second))
	m.frames++
	m.frameSum += d
	m.elapsed += d
	if m.elapsed < m.window {
		return PerfSample{}, false
	}

	s := PerfSample{
		FPS:       float64(m.frames) / m.elapsed.Seconds(),
		FrameTime: m.frameSum / time.Duration(m.frames),
	}
	if m.renders > 0 {
		s.RenderTime = m.renderSum / time.Duration(m.renders)
	}
	if m.proc != nil {
		if mi, err := m.proc.MemoryInfo(); err == nil {
			s.RSS = mi.RSS
		}
		if cpu, err := m.proc.Percent(0); err == nil {
			s.CPU = cpu
		}
	}
	m.frames, m.frameSum, m.renders, m.renderSum, m.elapsed = 0, 0, 0, 0, 0
	m.sample, m.hasSample = s, true

	for _, w := range s.Warnings(m.thresholds) {
		Logger().Warn("performance", "issue", w)
	}
	if m.OnSample != nil {
		m.OnSample(s)
	}
	return s, true
}

// Sample returns the last completed sample.
func (m *PerfMonitor) Sample() (PerfSample, bool) { return m.sample, m.hasSample }

// DrawOverlay prints the last sample in the top-left corner of dst.
func (m *PerfMonitor) DrawOverlay(dst *ebiten.Image) {
	if m.overlay == nil {
		m.overlay = ebiten.NewImage(160, 64)
	}
	m.overlay.Fill(color.RGBA{0, 0, 0, 128})
	s := m.sample
	ebitenutil.DebugPrintAt(m.overlay, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nframe: %.1fms\nmem: %.1fMB",
		s.FPS, ebiten.ActualTPS(), float64(s.FrameTime)/float64(time.Millisecond), float64(s.RSS)/(1<<20)), 4, 2)
	dst.DrawImage(m.overlay, nil)
}
