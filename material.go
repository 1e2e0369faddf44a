package islandcycle

import (
	_ "embed"

	"github.com/hajimehoshi/ebiten/v2"
)

//go:embed shaders/transition.kage
var transitionShaderSrc []byte

var transitionShader *ebiten.Shader

func ensureTransitionShader() *ebiten.Shader {
	if transitionShader == nil {
		s, err := ebiten.NewShader(transitionShaderSrc)
		if err != nil {
			panic("islandcycle: failed to compile transition shader: " + err.Error())
		}
		transitionShader = s
	}
	return transitionShader
}

// TransitionMaterial is the full-screen blend pass. Its inputs are exactly
// the two scene textures, the transition progress and the elapsed time;
// everything visual about the blend lives in the shader.
type TransitionMaterial struct {
	Selected *ebiten.Image // Images[0]
	Landing  *ebiten.Image // Images[1]
	Progress float64
	Time     float64

	// Shader overrides the built-in transition shader when set.
	Shader *ebiten.Shader

	uniforms map[string]any
	shaderOp ebiten.DrawRectShaderOptions
}

// NewTransitionMaterial creates a material with empty inputs.
func NewTransitionMaterial() *TransitionMaterial {
	return &TransitionMaterial{uniforms: make(map[string]any, 2)}
}

// SetInputs pushes one frame's worth of uniforms.
func (m *TransitionMaterial) SetInputs(selected, landing *ebiten.Image, progress, time float64) {
	m.Selected = selected
	m.Landing = landing
	m.Progress = progress
	m.Time = time
}

// Uniforms returns the scalar uniforms as they will be sent to the shader.
func (m *TransitionMaterial) Uniforms() map[string]any {
	m.uniforms["Progress"] = float32(m.Progress)
	m.uniforms["Time"] = float32(m.Time)
	return m.uniforms
}

// Apply composites the two inputs onto dst, stretching them to fill dst.
// No-op until both inputs are set.
func (m *TransitionMaterial) Apply(dst *ebiten.Image) {
	if m.Selected == nil || m.Landing == nil || dst == nil {
		return
	}
	shader := m.Shader
	if shader == nil {
		shader = ensureTransitionShader()
	}
	sb := m.Selected.Bounds()
	db := dst.Bounds()
	w, h := sb.Dx(), sb.Dy()

	m.shaderOp = ebiten.DrawRectShaderOptions{}
	m.shaderOp.GeoM.Scale(float64(db.Dx())/float64(w), float64(db.Dy())/float64(h))
	m.shaderOp.Images[0] = m.Selected
	m.shaderOp.Images[1] = m.Landing
	m.shaderOp.Uniforms = m.Uniforms()
	dst.DrawRectShader(w, h, shader, &m.shaderOp)
}
