package islandcycle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScenarioStep is one action of a scripted run.
//
//	select      select Panel directly
//	back        return to the landing view
//	pointer     move the pointer to (X, Y)
//	click       click at (X, Y)
//	wait        idle for Frames frames
//	settle      wait until the transition stops animating, at most Frames
//	            frames (default 600)
//	screenshot  capture the next composited frame as Label
type ScenarioStep struct {
	Action string  `yaml:"action"`
	Panel  int     `yaml:"panel,omitempty"`
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	Frames int     `yaml:"frames,omitempty"`
	Label  string  `yaml:"label,omitempty"`
}

// Scenario is a YAML script driving the presentation frame by frame.
type Scenario struct {
	Name  string         `yaml:"name"`
	Steps []ScenarioStep `yaml:"steps"`
}

const defaultSettleFrames = 600

// ParseScenario decodes and checks a scenario script.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse scenario: no steps")
	}
	for i, st := range s.Steps {
		switch st.Action {
		case "select":
			if st.Panel <= PanelNone {
				return nil, fmt.Errorf("parse scenario: step %d: select needs a panel", i)
			}
		case "back", "pointer", "click", "wait", "settle", "screenshot":
		default:
			return nil, fmt.Errorf("parse scenario: step %d: unknown action %q", i, st.Action)
		}
	}
	return &s, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ScenarioDriver is what a ScenarioRunner acts on.
type ScenarioDriver interface {
	Select(panel int)
	Inject(f InputFrame)
	PendingInput() int
	Screenshot(label string)
	Settled() bool
}

// ScenarioRunner sequences scenario steps across frames.
type ScenarioRunner struct {
	scenario  *Scenario
	cursor    int
	waitCount int
	settling  bool
	done      bool
}

// NewScenarioRunner creates a runner for s.
func NewScenarioRunner(s *Scenario) *ScenarioRunner {
	return &ScenarioRunner{scenario: s}
}

// Done reports whether every step has run.
func (r *ScenarioRunner) Done() bool { return r.done }

// Cursor returns the index of the next step.
func (r *ScenarioRunner) Cursor() int { return r.cursor }

// Step advances the runner by one frame.
func (r *ScenarioRunner) Step(d ScenarioDriver) {
	if r.done {
		return
	}
	if d.PendingInput() > 0 {
		return
	}
	if r.settling {
		if d.Settled() || r.waitCount <= 0 {
			r.settling = false
			r.waitCount = 0
		} else {
			r.waitCount--
			return
		}
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.scenario.Steps) {
		r.done = true
		return
	}

	st := r.scenario.Steps[r.cursor]
	r.cursor++
	Logger().Debug("scenario step", "index", r.cursor-1, "action", st.Action)

	switch st.Action {
	case "select":
		d.Select(st.Panel)
	case "back":
		d.Select(PanelNone)
	case "pointer":
		d.Inject(InputFrame{PointerX: st.X, PointerY: st.Y, HasPointer: true})
	case "click":
		d.Inject(InputFrame{PointerX: st.X, PointerY: st.Y, HasPointer: true})
		d.Inject(InputFrame{PointerX: st.X, PointerY: st.Y, HasPointer: true, Clicked: true, ClickX: st.X, ClickY: st.Y})
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "settle":
		r.settling = true
		r.waitCount = st.Frames
		if r.waitCount <= 0 {
			r.waitCount = defaultSettleFrames
		}
	case "screenshot":
		d.Screenshot(st.Label)
	}

	if r.cursor >= len(r.scenario.Steps) && r.waitCount == 0 && !r.settling && d.PendingInput() == 0 {
		r.done = true
	}
}
