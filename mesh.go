package islandcycle

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// planeIndices is shared by every plane: two triangles over four corners.
var planeIndices = []uint16{0, 1, 2, 1, 3, 2}

// PlaneGeometry is a rectangle of Width x Height world units centred on the
// origin. Vertex Src coordinates are normalised to [0,1] and scaled to the
// bound texture's pixel size at submit time.
type PlaneGeometry struct {
	Width, Height float64
	Vertices      []ebiten.Vertex
	Indices       []uint16
}

func newPlaneGeometry(w, h float64) *PlaneGeometry {
	hw := float32(w / 2)
	hh := float32(h / 2)
	// +Y is up in world space, so the top edge samples texture row 0.
	return &PlaneGeometry{
		Width:  w,
		Height: h,
		Vertices: []ebiten.Vertex{
			{DstX: -hw, DstY: hh, SrcX: 0, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
			{DstX: hw, DstY: hh, SrcX: 1, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
			{DstX: -hw, DstY: -hh, SrcX: 0, SrcY: 1, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
			{DstX: hw, DstY: -hh, SrcX: 1, SrcY: 1, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		},
		Indices: planeIndices,
	}
}

// GeometryPool hands out reusable plane geometries keyed by their size
// rounded to two decimals, so cover-fit results that only differ by floating
// point noise share one buffer. Entries are never evicted: the number of
// distinct layer/viewport combinations in a session is small.
type GeometryPool struct {
	planes map[string]*PlaneGeometry
}

// NewGeometryPool creates an empty pool.
func NewGeometryPool() *GeometryPool {
	return &GeometryPool{planes: make(map[string]*PlaneGeometry)}
}

// planeKey mirrors fixed two-decimal formatting of both dimensions.
func planeKey(w, h float64) string {
	return fmt.Sprintf("%.2f_%.2f", w, h)
}

// Plane returns the pooled plane geometry for (width, height), creating it on
// first use.
func (p *GeometryPool) Plane(width, height float64) *PlaneGeometry {
	if p.planes == nil {
		p.planes = make(map[string]*PlaneGeometry)
	}
	key := planeKey(width, height)
	if g, ok := p.planes[key]; ok {
		return g
	}
	g := newPlaneGeometry(roundTo(width, 2), roundTo(height, 2))
	p.planes[key] = g
	return g
}

// Len reports the number of distinct geometries in the pool.
func (p *GeometryPool) Len() int {
	return len(p.planes)
}

func roundTo(v float64, decimals int) float64 {
	m := math.Pow(10, float64(decimals))
	return math.Round(v*m) / m
}

// transformVertices applies an affine transform and color tint to src vertices,
// writing the result into dst. dst must be at least len(src) in length.
// Src coordinates are scaled from [0,1] to the texture size (texW, texH).
//
// Matrix layout: [0]=a, [1]=b, [2]=c, [3]=d, [4]=tx, [5]=ty
// newX = a*x + c*y + tx, newY = b*x + d*y + ty
//
// The tint's alpha already has worldAlpha baked in; colors are premultiplied.
func transformVertices(src, dst []ebiten.Vertex, transform [6]float64, tint Color, texW, texH float32) {
	a, b, c, d, tx, ty := transform[0], transform[1], transform[2], transform[3], transform[4], transform[5]
	cr := float32(tint.R)
	cg := float32(tint.G)
	cb := float32(tint.B)
	ca := float32(tint.A)

	for i := range src {
		s := &src[i]
		ox := float64(s.DstX)
		oy := float64(s.DstY)
		dst[i] = ebiten.Vertex{
			DstX:   float32(a*ox + c*oy + tx),
			DstY:   float32(b*ox + d*oy + ty),
			SrcX:   s.SrcX * texW,
			SrcY:   s.SrcY * texH,
			ColorR: s.ColorR * cr * ca,
			ColorG: s.ColorG * cg * ca,
			ColorB: s.ColorB * cb * ca,
			ColorA: s.ColorA * ca,
		}
	}
}
