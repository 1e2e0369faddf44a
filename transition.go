package islandcycle

import (
	"fmt"
	"math"
)

// referenceHz is the refresh rate the smoothing constants were tuned at.
const referenceHz = 60

// TauForFactor converts a per-frame lerp factor tuned at hz into the time
// constant (seconds) of the equivalent frame-rate independent smoothing, so
// that SmoothingAlpha(1/hz, tau) == factor.
func TauForFactor(factor, hz float64) float64 {
	return -(1 / hz) / math.Log(1-factor)
}

// SmoothingAlpha returns the fraction of the remaining distance to cover in a
// step of dt seconds for time constant tau.
func SmoothingAlpha(dt, tau float64) float64 {
	if dt <= 0 {
		return 0
	}
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt/tau)
}

// TransitionConfig tunes the transition state machine.
type TransitionConfig struct {
	// PointerTau and TouchTau are the progress time constants in seconds.
	// Touch devices use the faster one.
	PointerTau float64 `yaml:"pointer_tau"`
	TouchTau   float64 `yaml:"touch_tau"`
	// AnimatingThreshold is the distance to target above which the
	// transition counts as animating.
	AnimatingThreshold float64 `yaml:"animating_threshold"`
	// ClearEpsilon is how close to 0 progress must decay before the
	// displayed panel is released.
	ClearEpsilon float64 `yaml:"clear_epsilon"`
	// SnapEpsilon is the residual below which progress lands on its target.
	SnapEpsilon float64 `yaml:"snap_epsilon"`
}

// DefaultTransitionConfig reproduces the 0.005 (pointer) and 0.02 (touch)
// per-frame factors at 60 Hz.
func DefaultTransitionConfig() TransitionConfig {
	return TransitionConfig{
		PointerTau:         TauForFactor(0.005, referenceHz),
		TouchTau:           TauForFactor(0.02, referenceHz),
		AnimatingThreshold: 0.1,
		ClearEpsilon:       0.05,
		SnapEpsilon:        1e-4,
	}
}

// PhaseKind tags a Phase.
type PhaseKind uint8

const (
	PhaseLanding       PhaseKind = iota // progress settled at 0
	PhaseTransitioning                  // progress moving between the scenes
	PhasePanel                          // progress settled at 1
)

// Phase is the derived state of a Transition. From and To are set while
// transitioning (0 meaning the landing view); Index is set in PhasePanel.
type Phase struct {
	Kind     PhaseKind
	From, To int
	Index    int
}

func (p Phase) String() string {
	switch p.Kind {
	case PhasePanel:
		return fmt.Sprintf("Panel{%d}", p.Index)
	case PhaseTransitioning:
		return fmt.Sprintf("Transitioning{%d->%d}", p.From, p.To)
	default:
		return "Landing"
	}
}

// Transition owns the cross-fade progress between the landing scene (0) and
// the selected panel (1). Progress approaches its target exponentially and
// never overshoots. Switching from one panel to another always passes
// through the landing view: progress decays first, the displayed panel is
// swapped once it is nearly 0, and progress rises again once the new panel's
// media is ready.
type Transition struct {
	cfg   TransitionConfig
	touch bool

	progress float64
	target   float64

	requested int // latest selection, PanelNone for landing
	displayed int // panel whose media the selected scene shows
	ready     int // last panel whose media finished resolving

	animating         bool
	OnAnimatingChange func(animating bool)
}

// NewTransition creates a transition resting on the landing view.
func NewTransition(cfg TransitionConfig) *Transition {
	return &Transition{cfg: cfg}
}

// SetTouch selects the faster touch time constant.
func (t *Transition) SetTouch(touch bool) {
	t.touch = touch
}

// Request changes the selected panel; PanelNone returns to landing.
func (t *Transition) Request(panel int) {
	t.requested = panel
	switch {
	case panel == PanelNone:
		t.target = 0
	case t.displayed == PanelNone:
		t.displayed = panel
		if t.ready == panel {
			t.target = 1
		}
	case t.displayed == panel:
		if t.ready == panel {
			t.target = 1
		}
	default:
		// Another panel is on screen: fade it out first.
		t.target = 0
	}
}

// MediaReady reports that panel's media can be drawn. Progress only heads to
// the panel once its media is ready.
func (t *Transition) MediaReady(panel int) {
	t.ready = panel
	if panel != PanelNone && panel == t.requested && panel == t.displayed {
		t.target = 1
	}
}

// Step advances progress by dt seconds. It returns true when the animating
// signal changed during this step.
func (t *Transition) Step(dt float64) bool {
	tau := t.cfg.PointerTau
	if t.touch {
		tau = t.cfg.TouchTau
	}
	t.progress += (t.target - t.progress) * SmoothingAlpha(dt, tau)
	if math.Abs(t.target-t.progress) < t.cfg.SnapEpsilon {
		t.progress = t.target
	}

	if t.target == 0 && t.displayed != PanelNone && t.progress < t.cfg.ClearEpsilon {
		t.displayed = PanelNone
		if t.requested != PanelNone {
			// Panel-to-panel switch reached the landing midpoint.
			t.displayed = t.requested
			if t.ready == t.requested {
				t.target = 1
			}
		}
	}

	animating := math.Abs(t.progress-t.target) > t.cfg.AnimatingThreshold
	if animating == t.animating {
		return false
	}
	t.animating = animating
	if t.OnAnimatingChange != nil {
		t.OnAnimatingChange(animating)
	}
	return true
}

// Progress returns the blend value in [0,1].
func (t *Transition) Progress() float64 { return t.progress }

// Target returns 0 (landing) or 1 (panel).
func (t *Transition) Target() float64 { return t.target }

// Requested returns the latest selection.
func (t *Transition) Requested() int { return t.requested }

// Displayed returns the panel currently shown in the selected scene.
func (t *Transition) Displayed() int { return t.displayed }

// Animating returns the last reported animating signal.
func (t *Transition) Animating() bool { return t.animating }

// Phase derives the tagged state from progress, target and panels.
func (t *Transition) Phase() Phase {
	switch {
	case t.progress == t.target && t.target == 0:
		return Phase{Kind: PhaseLanding}
	case t.progress == t.target && t.target == 1:
		return Phase{Kind: PhasePanel, Index: t.displayed}
	case t.target == 1:
		return Phase{Kind: PhaseTransitioning, From: PanelNone, To: t.displayed}
	default:
		return Phase{Kind: PhaseTransitioning, From: t.displayed, To: t.requested}
	}
}
