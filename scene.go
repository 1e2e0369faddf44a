package islandcycle

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const defaultCommandCap = 16

// Scene owns one node tree and the buffers used to draw it. The presentation
// keeps two of them: the selected-panel scene and the parallax landing scene.
type Scene struct {
	name  string
	root  *Node
	debug bool

	commands []RenderCommand
	vertBuf  []ebiten.Vertex
	indBuf   []uint16

	lastStats debugStats
}

// NewScene creates a new scene with a pre-created root container.
func NewScene(name string) *Scene {
	return &Scene{
		name:     name,
		root:     NewContainer(name + "-root"),
		commands: make([]RenderCommand, 0, defaultCommandCap),
	}
}

// Name returns the scene name used in debug output.
func (s *Scene) Name() string {
	return s.name
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// Reset disposes every node below the root. Scenes are rebuilt from scratch
// rather than patched, so this is the first step of every rebuild.
func (s *Scene) Reset() {
	for _, c := range append([]*Node(nil), s.root.children...) {
		c.Dispose()
	}
	s.commands = s.commands[:0]
}

// Draw traverses the scene tree as seen by cam and submits the resulting
// draws onto target. The target is not cleared.
func (s *Scene) Draw(target *ebiten.Image, cam *Camera) {
	s.commands = s.commands[:0]

	b := target.Bounds()
	view := identityTransform
	if cam != nil {
		view = cam.computeViewMatrix(b.Dx(), b.Dy())
	}

	var stats debugStats
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}

	treeOrder := 0
	s.traverse(s.root, identityTransform, 1.0, false, view, &treeOrder)

	if s.debug {
		stats.traverseTime = time.Since(t0)
		stats.commandCount = len(s.commands)
		t0 = time.Now()
	}

	s.submitBatches(target)

	if s.debug {
		stats.submitTime = time.Since(t0)
		stats.batchCount = countBatches(s.commands)
		s.lastStats = stats
		s.debugLog(stats)
	}
}

// Commands returns the commands emitted by the last Draw. The returned slice
// MUST NOT be mutated.
func (s *Scene) Commands() []RenderCommand {
	return s.commands
}

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics and per-frame timing stats are written to stderr.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
}

// globalDebug mirrors the most recently set Scene debug flag so that node
// operations (which lack a Scene pointer) can check it cheaply.
var globalDebug bool
