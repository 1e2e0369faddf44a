package islandcycle

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestTransitionMaterialUniforms(t *testing.T) {
	m := NewTransitionMaterial()
	a := ebiten.NewImage(4, 4)
	b := ebiten.NewImage(4, 4)
	defer a.Deallocate()
	defer b.Deallocate()

	m.SetInputs(a, b, 0.25, 12.5)
	if m.Selected != a || m.Landing != b {
		t.Error("SetInputs should bind both scene textures")
	}
	u := m.Uniforms()
	if u["Progress"] != float32(0.25) || u["Time"] != float32(12.5) {
		t.Errorf("Uniforms = %v", u)
	}
	if len(u) != 2 {
		t.Errorf("uniform count = %d, want 2", len(u))
	}
}

func TestTransitionMaterialApplyNeedsInputs(t *testing.T) {
	m := NewTransitionMaterial()
	dst := ebiten.NewImage(2, 2)
	defer dst.Deallocate()
	// Without inputs Apply must return before touching the shader.
	m.Apply(dst)
	m.SetInputs(dst, nil, 0, 0)
	m.Apply(dst)
	if transitionShader != nil {
		t.Error("shader should not be compiled without both inputs")
	}
}
