package physics

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
)

// EmptyHull clears a grid cell when passed to SetGridShapeHull.
const EmptyHull = ^uint32(0)

// HullSet is a shared pool of convex hulls referenced by grid cells. Hull
// vertices are in world units, local to the cell center, counter-clockwise.
type HullSet struct {
	hulls [][]cp.Vector
}

// NewHullSet builds a hull set. The hulls are copied.
func NewHullSet(hulls [][]cp.Vector) *HullSet {
	hs := &HullSet{hulls: make([][]cp.Vector, len(hulls))}
	for i, h := range hulls {
		hs.hulls[i] = append([]cp.Vector(nil), h...)
	}
	return hs
}

// Len returns the number of hulls in the set.
func (hs *HullSet) Len() int {
	return len(hs.hulls)
}

// gridLayer is one GridShape on a body: a lattice of cells whose shapes come
// and go as the tile layer changes. Row 0, column 0 is the bottom-left cell;
// the grid is centered on the body origin.
type gridLayer struct {
	body    *Body
	def     GridShape
	enabled bool
	cells   []*cp.Shape
}

func newGridLayer(b *Body, d GridShape) *gridLayer {
	return &gridLayer{
		body:    b,
		def:     d,
		enabled: true,
		cells:   make([]*cp.Shape, d.Rows*d.Cols),
	}
}

func (g *gridLayer) cellCenter(row, col int) cp.Vector {
	return cp.Vector{
		X: (float64(col) + 0.5 - float64(g.def.Cols)/2) * g.def.CellW,
		Y: (float64(row) + 0.5 - float64(g.def.Rows)/2) * g.def.CellH,
	}
}

// setCell replaces one cell's shape. A nil shape clears the cell.
func (g *gridLayer) setCell(index int, shape *cp.Shape) {
	live := g.body.enabled && g.enabled
	if old := g.cells[index]; old != nil && live {
		g.body.world.space.RemoveShape(old)
	}
	g.cells[index] = shape
	if shape != nil && live {
		g.body.world.space.AddShape(shape)
	}
}

func (g *gridLayer) addToSpace() {
	if !g.enabled {
		return
	}
	for _, s := range g.cells {
		if s != nil {
			g.body.world.space.AddShape(s)
		}
	}
}

func (g *gridLayer) removeFromSpace() {
	if !g.enabled {
		return
	}
	for _, s := range g.cells {
		if s != nil {
			g.body.world.space.RemoveShape(s)
		}
	}
}

func (g *gridLayer) eachShape(fn func(*cp.Shape)) {
	for _, s := range g.cells {
		if s != nil {
			fn(s)
		}
	}
}

func (b *Body) gridLayerByName(layer string) (*gridLayer, error) {
	if len(b.grids) == 0 {
		return nil, ErrNotGrid
	}
	for _, g := range b.grids {
		if g.def.Layer == layer {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: layer %q", ErrNotGrid, layer)
}

// SetGridShapeHull fills one cell of a grid layer with a hull from the
// layer's hull set, optionally mirrored per axis. EmptyHull clears the cell.
// Rows count up from the bottom-left.
func (b *Body) SetGridShapeHull(layer string, row, col int, hull uint32, flipH, flipV bool) error {
	g, err := b.gridLayerByName(layer)
	if err != nil {
		return err
	}
	if row < 0 || row >= g.def.Rows || col < 0 || col >= g.def.Cols {
		return fmt.Errorf("%w: cell (%d, %d) in %dx%d grid", ErrGridBounds, row, col, g.def.Rows, g.def.Cols)
	}
	index := row*g.def.Cols + col
	if hull == EmptyHull {
		g.setCell(index, nil)
		return nil
	}
	hs := g.def.HullSet
	if hs == nil || int(hull) >= hs.Len() {
		return fmt.Errorf("%w: hull %d", ErrGridBounds, hull)
	}

	src := hs.hulls[hull]
	scale := b.world.ctx.scale
	center := g.cellCenter(row, col).Mult(scale)
	verts := make([]cp.Vector, len(src))
	for i, v := range src {
		if flipH {
			v.X = -v.X
		}
		if flipV {
			v.Y = -v.Y
		}
		verts[i] = v.Mult(scale).Add(center)
	}
	if flipH != flipV {
		for i, j := 0, len(verts)-1; i < j; i, j = i+1, j-1 {
			verts[i], verts[j] = verts[j], verts[i]
		}
	}

	shape := cp.NewPolyShapeRaw(b.body, len(verts), verts, 0)
	b.applyShapeProps(shape)
	g.setCell(index, shape)
	return nil
}

// SetGridShapeEnable adds or removes a whole grid layer's cells from the
// simulation.
func (b *Body) SetGridShapeEnable(layer string, enabled bool) error {
	g, err := b.gridLayerByName(layer)
	if err != nil {
		return err
	}
	if g.enabled == enabled {
		return nil
	}
	if b.enabled {
		if enabled {
			g.enabled = true
			g.addToSpace()
			return nil
		}
		g.removeFromSpace()
	}
	g.enabled = enabled
	return nil
}

// ClearGridShapeHulls empties every cell of every grid layer on the body.
func (b *Body) ClearGridShapeHulls() {
	for _, g := range b.grids {
		for i := range g.cells {
			g.setCell(i, nil)
		}
	}
}
