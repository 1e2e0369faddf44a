package islandcycle

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// RenderCommand is a single textured draw emitted during scene traversal.
// Vertices are already in target pixel space.
type RenderCommand struct {
	Name      string
	BlendMode BlendMode
	treeOrder int

	image *ebiten.Image
	verts []ebiten.Vertex
	inds  []uint16
}

// traverse walks the node tree depth-first in ZIndex order, refreshing world
// transforms and emitting a command for every visible plane with a ready
// texture. view maps world units to target pixels.
func (s *Scene) traverse(n *Node, parentTransform [6]float64, parentAlpha float64, parentRecomputed bool, view [6]float64, treeOrder *int) {
	if !n.Visible {
		return
	}

	recompute := n.transformDirty || parentRecomputed
	if recompute {
		local := computeLocalTransform(n)
		n.worldTransform = multiplyAffine(parentTransform, local)
		n.worldAlpha = parentAlpha * n.Alpha
		n.transformDirty = false
	}

	if n.Type == NodeTypePlane {
		s.emitPlane(n, view, treeOrder)
	}

	if len(n.children) == 0 {
		return
	}
	for _, child := range n.sortedChildList() {
		s.traverse(child, n.worldTransform, n.worldAlpha, recompute, view, treeOrder)
	}
}

// emitPlane appends the draw command for a plane node. Planes whose texture
// has not finished loading emit nothing, so the previous frame content of the
// target (the black clear) shows through.
func (s *Scene) emitPlane(n *Node, view [6]float64, treeOrder *int) {
	if n.Geometry == nil || n.Texture == nil || n.worldAlpha <= 0 {
		return
	}
	img := n.Texture.Image()
	if img == nil {
		return
	}
	src := n.Geometry.Vertices
	if cap(n.vertsBuf) < len(src) {
		n.vertsBuf = make([]ebiten.Vertex, len(src))
	}
	n.vertsBuf = n.vertsBuf[:len(src)]

	b := img.Bounds()
	tint := Color{n.Color.R, n.Color.G, n.Color.B, n.Color.A * n.worldAlpha}
	transformVertices(src, n.vertsBuf, multiplyAffine(view, n.worldTransform), tint, float32(b.Dx()), float32(b.Dy()))

	*treeOrder++
	s.commands = append(s.commands, RenderCommand{
		Name:      n.Name,
		BlendMode: n.BlendMode,
		treeOrder: *treeOrder,
		image:     img,
		verts:     n.vertsBuf,
		inds:      n.Geometry.Indices,
	})
}

// commandBatchKey groups commands that can share a DrawTriangles call.
type batchKey struct {
	image *ebiten.Image
	blend BlendMode
}

func commandBatchKey(cmd *RenderCommand) batchKey {
	return batchKey{image: cmd.image, blend: cmd.BlendMode}
}

// submitBatches draws the command list onto target, merging consecutive
// commands that share an image and blend mode into one DrawTriangles call.
func (s *Scene) submitBatches(target *ebiten.Image) {
	if len(s.commands) == 0 {
		return
	}
	s.vertBuf = s.vertBuf[:0]
	s.indBuf = s.indBuf[:0]
	cur := commandBatchKey(&s.commands[0])

	for i := range s.commands {
		cmd := &s.commands[i]
		key := commandBatchKey(cmd)
		if key != cur {
			s.flushBatch(target, cur)
			cur = key
		}
		base := uint16(len(s.vertBuf))
		s.vertBuf = append(s.vertBuf, cmd.verts...)
		for _, idx := range cmd.inds {
			s.indBuf = append(s.indBuf, base+idx)
		}
	}
	s.flushBatch(target, cur)
}

func (s *Scene) flushBatch(target *ebiten.Image, key batchKey) {
	if len(s.indBuf) == 0 {
		return
	}
	var op ebiten.DrawTrianglesOptions
	op.Blend = key.blend.EbitenBlend()
	op.Filter = ebiten.FilterLinear
	op.Address = ebiten.AddressClampToEdge
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	target.DrawTriangles(s.vertBuf, s.indBuf, key.image, &op)
	s.vertBuf = s.vertBuf[:0]
	s.indBuf = s.indBuf[:0]
}
