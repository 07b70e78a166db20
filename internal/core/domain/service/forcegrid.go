package service

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// ForceGrid is a regular 3-D lattice with spacing s covering an
// axis-aligned region; each cell stores a vector sampled once per body
// per tick during Phase C force accumulation (spec.md §4.3). Sampling
// is O(1): index math directly from world position to a flat slice,
// grounded on the teacher's SpatialGrid cell-key approach in
// colliderdispatcher.go but using direct integer indices instead of a
// string-keyed map, since the region here is bounded and known up
// front.
type ForceGrid struct {
	mu sync.RWMutex

	origin  mgl64.Vec3
	spacing float64
	dimsX   int
	dimsY   int
	dimsZ   int
	cells   []mgl64.Vec3
}

// NewForceGrid allocates a zero-valued grid of dims cells of the given
// spacing, with its minimum corner at origin.
func NewForceGrid(origin mgl64.Vec3, spacing float64, dimsX, dimsY, dimsZ int) *ForceGrid {
	return &ForceGrid{
		origin:  origin,
		spacing: spacing,
		dimsX:   dimsX,
		dimsY:   dimsY,
		dimsZ:   dimsZ,
		cells:   make([]mgl64.Vec3, dimsX*dimsY*dimsZ),
	}
}

func (g *ForceGrid) index(p mgl64.Vec3) (int, bool) {
	rel := p.Sub(g.origin)
	ix := int(rel[0] / g.spacing)
	iy := int(rel[1] / g.spacing)
	iz := int(rel[2] / g.spacing)
	if rel[0] < 0 || rel[1] < 0 || rel[2] < 0 {
		return 0, false
	}
	if ix >= g.dimsX || iy >= g.dimsY || iz >= g.dimsZ {
		return 0, false
	}
	return (iz*g.dimsY+iy)*g.dimsX + ix, true
}

// Sample returns the vector of the cell containing p; out-of-region
// points sample the zero vector.
func (g *ForceGrid) Sample(p mgl64.Vec3) mgl64.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.index(p)
	if !ok {
		return mgl64.Vec3{}
	}
	return g.cells[idx]
}

// Set assigns the vector of a single cell addressed by grid index.
func (g *ForceGrid) Set(ix, iy, iz int, v mgl64.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ix < 0 || iy < 0 || iz < 0 || ix >= g.dimsX || iy >= g.dimsY || iz >= g.dimsZ {
		return
	}
	g.cells[(iz*g.dimsY+iy)*g.dimsX+ix] = v
}

// SetRegion fills with v every cell from the one containing min to the
// one containing max on each axis, clamped to the grid, so cells only
// partly inside [min,max] are filled too. Grounded on the original Azrael project's force-grid demo
// (demo_forcegrid.py), which bulk-fills a sub-volume of the grid in one
// call.
func (g *ForceGrid) SetRegion(min, max mgl64.Vec3, v mgl64.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()

	loIdx := func(lo float64, origin float64) int {
		rel := lo - origin
		i := int(rel / g.spacing)
		if rel < 0 {
			i = 0
		}
		return i
	}
	hiIdx := func(hi float64, origin float64, dim int) int {
		rel := hi - origin
		i := int(rel / g.spacing)
		if i >= dim {
			i = dim - 1
		}
		return i
	}

	x0 := loIdx(min[0], g.origin[0])
	y0 := loIdx(min[1], g.origin[1])
	z0 := loIdx(min[2], g.origin[2])
	x1 := hiIdx(max[0], g.origin[0], g.dimsX)
	y1 := hiIdx(max[1], g.origin[1], g.dimsY)
	z1 := hiIdx(max[2], g.origin[2], g.dimsZ)

	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if x < 0 || y < 0 || z < 0 || x >= g.dimsX || y >= g.dimsY || z >= g.dimsZ {
					continue
				}
				g.cells[(z*g.dimsY+y)*g.dimsX+x] = v
			}
		}
	}
}
