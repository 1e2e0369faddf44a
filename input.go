package islandcycle

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// HitCircle is a circular hit area in screen pixels.
type HitCircle struct {
	CenterX, CenterY, Radius float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx := x - c.CenterX
	dy := y - c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// Hotspot is a clickable panel selector.
type Hotspot struct {
	Panel int
	Name  string
	Area  HitCircle
}

// hotspotAnchor places a hotspot as a fraction of the viewport.
type hotspotAnchor struct {
	panel  int
	fx, fy float64
}

// Cloud top, Rain left, Ground bottom-left, Sea bottom-right, Evaporation
// right.
var hotspotAnchors = []hotspotAnchor{
	{panel: 1, fx: 0.50, fy: 0.18},
	{panel: 2, fx: 0.22, fy: 0.45},
	{panel: 3, fx: 0.32, fy: 0.80},
	{panel: 4, fx: 0.68, fy: 0.80},
	{panel: 5, fx: 0.78, fy: 0.45},
}

// hotspotRadius is the hit radius as a fraction of the viewport's shorter side.
const hotspotRadius = 0.07

// LayoutHotspots positions the five panel selectors around the centre of a
// viewport. Names come from table; panels missing from it are skipped.
func LayoutHotspots(viewport Size, table MediaTable) []Hotspot {
	r := math.Min(viewport.Width, viewport.Height) * hotspotRadius
	out := make([]Hotspot, 0, len(hotspotAnchors))
	for _, a := range hotspotAnchors {
		desc, ok := table.Lookup(a.panel)
		if !ok {
			continue
		}
		out = append(out, Hotspot{
			Panel: a.panel,
			Name:  desc.Name,
			Area:  HitCircle{CenterX: a.fx * viewport.Width, CenterY: a.fy * viewport.Height, Radius: r},
		})
	}
	return out
}

// HitTestHotspots returns the first hotspot containing (x, y).
func HitTestHotspots(hotspots []Hotspot, x, y float64) (Hotspot, bool) {
	for _, h := range hotspots {
		if h.Area.Contains(x, y) {
			return h, true
		}
	}
	return Hotspot{}, false
}

// InputFrame is the input observed during one frame. Coordinates are logical
// screen pixels, origin top-left.
type InputFrame struct {
	PointerX, PointerY float64
	HasPointer         bool
	Clicked            bool
	ClickX, ClickY     float64
	TouchCount         int
	// Panel is a keyboard selection (1..5), PanelNone when no key was hit.
	Panel int
	Back  bool
}

var panelKeys = [...]ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5}

// PollInput reads the mouse, touch and keyboard state from Ebitengine.
func PollInput(touchBuf []ebiten.TouchID) (InputFrame, []ebiten.TouchID) {
	var f InputFrame

	mx, my := ebiten.CursorPosition()
	f.PointerX, f.PointerY = float64(mx), float64(my)
	f.HasPointer = true
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		f.Clicked = true
		f.ClickX, f.ClickY = f.PointerX, f.PointerY
	}

	touchBuf = ebiten.AppendTouchIDs(touchBuf[:0])
	f.TouchCount = len(touchBuf)
	if len(touchBuf) > 0 {
		tx, ty := ebiten.TouchPosition(touchBuf[0])
		f.PointerX, f.PointerY = float64(tx), float64(ty)
	}
	touchBuf = inpututil.AppendJustPressedTouchIDs(touchBuf[:0])
	if len(touchBuf) > 0 {
		tx, ty := ebiten.TouchPosition(touchBuf[0])
		f.Clicked = true
		f.ClickX, f.ClickY = float64(tx), float64(ty)
	}

	for i, k := range panelKeys {
		if inpututil.IsKeyJustPressed(k) {
			f.Panel = i + 1
		}
	}
	f.Back = inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace)
	return f, touchBuf
}

// Interaction routes input frames to a DualSceneRenderer: pointer motion to
// parallax, hotspot clicks and number keys to Select, Escape/Backspace back
// to the landing view. Selection is only possible from the landing view
// while no transition is animating.
type Interaction struct {
	renderer *DualSceneRenderer
	table    MediaTable
	hotspots []Hotspot
	viewport Size
	pointer  Vec2
	hover    int
	hoverAt  Hotspot

	queue      []InputFrame
	touchBuf   []ebiten.TouchID
	inputScale float64

	// OnHover is called when the hovered hotspot changes; ok is false on
	// leave.
	OnHover func(h Hotspot, ok bool)
}

// NewInteraction creates an interaction layer for r.
func NewInteraction(r *DualSceneRenderer, table MediaTable) *Interaction {
	if table == nil {
		table = DefaultMediaTable()
	}
	return &Interaction{renderer: r, table: table}
}

// Hotspots returns the current hotspot layout.
func (in *Interaction) Hotspots() []Hotspot { return in.hotspots }

// Hovered returns the hovered hotspot.
func (in *Interaction) Hovered() (Hotspot, bool) { return in.hoverAt, in.hover != PanelNone }

// Pointer returns the last pointer position in screen pixels.
func (in *Interaction) Pointer() Vec2 { return in.pointer }

// CanSelect reports whether a panel may be selected right now.
func (in *Interaction) CanSelect() bool {
	t := in.renderer.Transition()
	return t.Requested() == PanelNone && !t.Animating()
}

// Inject queues a synthetic input frame, consumed instead of real input on
// a subsequent Update.
func (in *Interaction) Inject(f InputFrame) {
	in.queue = append(in.queue, f)
}

// InjectClick queues a pointer move followed by a click at (x, y).
func (in *Interaction) InjectClick(x, y float64) {
	in.Inject(InputFrame{PointerX: x, PointerY: y, HasPointer: true})
	in.Inject(InputFrame{PointerX: x, PointerY: y, HasPointer: true, Clicked: true, ClickX: x, ClickY: y})
}

// SetInputScale sets the ratio between polled screen pixels and logical
// pixels. Injected frames are already logical.
func (in *Interaction) SetInputScale(scale float64) { in.inputScale = scale }

// Pending returns the number of queued synthetic frames.
func (in *Interaction) Pending() int { return len(in.queue) }

// Update consumes one queued synthetic frame, or polls real input when the
// queue is empty and poll is set.
func (in *Interaction) Update(poll bool) {
	in.syncLayout()
	if len(in.queue) > 0 {
		f := in.queue[0]
		copy(in.queue, in.queue[1:])
		in.queue = in.queue[:len(in.queue)-1]
		in.Apply(f)
		return
	}
	if !poll {
		return
	}
	var f InputFrame
	f, in.touchBuf = PollInput(in.touchBuf)
	if in.inputScale > 0 && in.inputScale != 1 {
		f.PointerX /= in.inputScale
		f.PointerY /= in.inputScale
		f.ClickX /= in.inputScale
		f.ClickY /= in.inputScale
	}
	in.Apply(f)
}

func (in *Interaction) syncLayout() {
	if v := in.renderer.Viewport(); v != in.viewport || in.hotspots == nil {
		in.viewport = v
		in.hotspots = LayoutHotspots(v, in.table)
	}
}

// Apply routes one input frame.
func (in *Interaction) Apply(f InputFrame) {
	in.syncLayout()
	r := in.renderer

	d := r.Device()
	if d.ObserveTouch(f.TouchCount) {
		Logger().Info("touch input detected, switching to touch presentation")
		r.SetDevice(d)
	}

	if f.HasPointer {
		in.pointer = Vec2{X: f.PointerX, Y: f.PointerY}
		r.SetPointer(f.PointerX, f.PointerY)
		in.updateHover(f.PointerX, f.PointerY)
	}

	if f.Back && r.Transition().Requested() != PanelNone {
		r.Select(PanelNone)
		return
	}
	if !in.CanSelect() {
		return
	}
	if f.Panel != PanelNone {
		if _, ok := in.table.Lookup(f.Panel); ok {
			r.Select(f.Panel)
		}
		return
	}
	if f.Clicked {
		if h, ok := HitTestHotspots(in.hotspots, f.ClickX, f.ClickY); ok {
			r.Select(h.Panel)
		}
	}
}

func (in *Interaction) updateHover(x, y float64) {
	h, ok := HitTestHotspots(in.hotspots, x, y)
	if !in.CanSelect() {
		h, ok = Hotspot{}, false
	}
	panel := PanelNone
	if ok {
		panel = h.Panel
	}
	if panel == in.hover {
		return
	}
	in.hover = panel
	in.hoverAt = h
	if in.OnHover != nil {
		in.OnHover(h, ok)
	}
}
