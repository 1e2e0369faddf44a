package islandcycle

import "testing"

func TestHitCircleContains(t *testing.T) {
	c := HitCircle{CenterX: 10, CenterY: 10, Radius: 5}
	tests := []struct {
		x, y float64
		want bool
	}{
		{10, 10, true},
		{15, 10, true}, // edge
		{13, 13, true},
		{14, 14, false},
		{16, 10, false},
	}
	for _, tt := range tests {
		if got := c.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestLayoutHotspots(t *testing.T) {
	hs := LayoutHotspots(Size{1000, 800}, DefaultMediaTable())
	if len(hs) != 5 {
		t.Fatalf("hotspots = %d, want 5", len(hs))
	}
	top := hs[0]
	if top.Panel != 1 || top.Name != "Cloud" {
		t.Errorf("first hotspot = %+v, want Cloud", top)
	}
	assertNear(t, "CenterX", top.Area.CenterX, 500)
	assertNear(t, "CenterY", top.Area.CenterY, 144)
	assertNear(t, "Radius", top.Area.Radius, 56)
}

func TestLayoutHotspotsSkipsMissingPanels(t *testing.T) {
	table := NewMediaTable([]MediaDescriptor{
		{Panel: 2, Name: "Rain", Source: "r.mp4"},
		{Panel: 4, Name: "Sea", Source: "s.mp4"},
	})
	hs := LayoutHotspots(Size{800, 600}, table)
	if len(hs) != 2 || hs[0].Panel != 2 || hs[1].Panel != 4 {
		t.Errorf("hotspots = %+v, want panels 2 and 4", hs)
	}
}

func TestHitTestHotspots(t *testing.T) {
	hs := LayoutHotspots(Size{1000, 800}, DefaultMediaTable())
	if h, ok := HitTestHotspots(hs, 680, 640); !ok || h.Panel != 4 {
		t.Errorf("hit at sea = %+v, %v", h, ok)
	}
	if _, ok := HitTestHotspots(hs, 500, 400); ok {
		t.Error("centre of the viewport should not hit a hotspot")
	}
}

func newTestInteraction(t *testing.T) (*Interaction, *DualSceneRenderer) {
	t.Helper()
	r := newTestRenderer(t, imageTable(), Device{PixelRatio: 1}, nil)
	r.SetViewport(1000, 800)
	return NewInteraction(r, imageTable()), r
}

func TestInteractionClickSelects(t *testing.T) {
	in, r := newTestInteraction(t)

	in.Apply(InputFrame{HasPointer: true, PointerX: 220, PointerY: 360, Clicked: true, ClickX: 220, ClickY: 360})
	if got := r.Transition().Requested(); got != 2 {
		t.Fatalf("Requested = %d, want 2", got)
	}

	// Selection is locked until the user goes back.
	in.Apply(InputFrame{Clicked: true, ClickX: 320, ClickY: 640})
	if got := r.Transition().Requested(); got != 2 {
		t.Errorf("second click changed the selection to %d", got)
	}

	in.Apply(InputFrame{Back: true})
	if got := r.Transition().Requested(); got != PanelNone {
		t.Errorf("Requested after back = %d, want none", got)
	}
}

func TestInteractionClickMissIgnored(t *testing.T) {
	in, r := newTestInteraction(t)
	in.Apply(InputFrame{Clicked: true, ClickX: 500, ClickY: 400})
	if got := r.Transition().Requested(); got != PanelNone {
		t.Errorf("Requested = %d, want none", got)
	}
}

func TestInteractionKeySelects(t *testing.T) {
	in, r := newTestInteraction(t)
	in.Apply(InputFrame{Panel: 9})
	if got := r.Transition().Requested(); got != PanelNone {
		t.Errorf("unknown key panel selected %d", got)
	}
	in.Apply(InputFrame{Panel: 5})
	if got := r.Transition().Requested(); got != 5 {
		t.Errorf("Requested = %d, want 5", got)
	}
}

func TestInteractionBlockedWhileAnimating(t *testing.T) {
	in, r := newTestInteraction(t)
	in.Apply(InputFrame{Panel: 1})
	r.Update(frameDT)
	if !r.Transition().Animating() {
		t.Fatal("transition should be animating")
	}
	in.Apply(InputFrame{Back: true})
	if in.CanSelect() {
		t.Error("selection must wait for the fade-out to settle")
	}
	in.Apply(InputFrame{Panel: 3})
	if got := r.Transition().Requested(); got != PanelNone {
		t.Errorf("Requested = %d while animating, want none", got)
	}
}

func TestInteractionHover(t *testing.T) {
	in, r := newTestInteraction(t)
	var events []int
	in.OnHover = func(h Hotspot, ok bool) {
		if ok {
			events = append(events, h.Panel)
		} else {
			events = append(events, 0)
		}
	}

	in.Apply(InputFrame{HasPointer: true, PointerX: 780, PointerY: 360})
	if h, ok := in.Hovered(); !ok || h.Panel != 5 {
		t.Errorf("Hovered = %+v, %v, want panel 5", h, ok)
	}
	in.Apply(InputFrame{HasPointer: true, PointerX: 782, PointerY: 361})
	in.Apply(InputFrame{HasPointer: true, PointerX: 500, PointerY: 400})
	if _, ok := in.Hovered(); ok {
		t.Error("hover should clear off the hotspot")
	}
	if len(events) != 2 || events[0] != 5 || events[1] != 0 {
		t.Errorf("hover events = %v, want [5 0]", events)
	}
	if p := in.Pointer(); p.X != 500 || p.Y != 400 {
		t.Errorf("Pointer = %v", p)
	}

	r.Select(1)
	in.Apply(InputFrame{HasPointer: true, PointerX: 780, PointerY: 360})
	if _, ok := in.Hovered(); ok {
		t.Error("hotspots should not hover while a panel is selected")
	}
}

func TestInteractionTouchSwitchesDevice(t *testing.T) {
	in, r := newTestInteraction(t)
	in.Apply(InputFrame{TouchCount: 1, HasPointer: true, PointerX: 10, PointerY: 10})
	if !r.Device().IsTouch {
		t.Error("a touch should switch the renderer to touch mode")
	}
}

func TestInteractionInjectedFrames(t *testing.T) {
	in, r := newTestInteraction(t)
	in.InjectClick(320, 640)
	if in.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", in.Pending())
	}

	in.Update(false)
	if r.Transition().Requested() != PanelNone {
		t.Error("the move frame must not select")
	}
	in.Update(false)
	if got := r.Transition().Requested(); got != 3 {
		t.Errorf("Requested = %d, want 3", got)
	}
	if in.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", in.Pending())
	}
	in.Update(false) // empty queue, no polling
}

func TestInteractionLayoutTracksViewport(t *testing.T) {
	in, r := newTestInteraction(t)
	in.Update(false)
	before := in.Hotspots()[0].Area

	r.SetViewport(500, 400)
	in.Update(false)
	after := in.Hotspots()[0].Area
	if after.CenterX != before.CenterX/2 || after.Radius != before.Radius/2 {
		t.Errorf("hotspot %+v not rescaled from %+v", after, before)
	}
}
