// Package terrain is the boundary to the world's ground height data. The
// movement core never substitutes a default height: a non-finite result
// during a tick that needs ground clamping is a fatal precondition failure.
package terrain

import (
	"math"

	"github.com/everglen/everglen/invariant"
)

// HeightSource answers ground height queries in world space.
type HeightSource interface {
	// HeightAt returns the terrain height at (x, z). NaN means the point is
	// outside the known world.
	HeightAt(x, z float64) float64
}

// MustHeightAt queries src and raises a fatal invariant violation when the
// result is missing or non-finite.
func MustHeightAt(src HeightSource, x, z float64) float64 {
	invariant.Assert(src != nil, "terrain height queried with no height source")
	h := src.HeightAt(x, z)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		invariant.Violatef("terrain height at (%.2f, %.2f) is %v", x, z, h)
	}
	return h
}

// Heightfield is a regular grid of heights with bilinear sampling between
// vertices.
type Heightfield struct {
	OriginX, OriginZ float64
	CellSize         float64
	Cols, Rows       int
	Heights          []float64 // row-major, Cols*Rows entries
}

// NewHeightfield allocates a flat heightfield of the given dimensions.
func NewHeightfield(originX, originZ, cellSize float64, cols, rows int) *Heightfield {
	return &Heightfield{
		OriginX:  originX,
		OriginZ:  originZ,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Heights:  make([]float64, cols*rows),
	}
}

func (h *Heightfield) at(col, row int) float64 {
	return h.Heights[row*h.Cols+col]
}

// HeightAt bilinearly samples the grid. Points outside the grid return NaN.
func (h *Heightfield) HeightAt(x, z float64) float64 {
	fx := (x - h.OriginX) / h.CellSize
	fz := (z - h.OriginZ) / h.CellSize
	if fx < 0 || fz < 0 || fx > float64(h.Cols-1) || fz > float64(h.Rows-1) {
		return math.NaN()
	}

	c0 := int(fx)
	r0 := int(fz)
	c1 := c0 + 1
	r1 := r0 + 1
	if c1 > h.Cols-1 {
		c1 = h.Cols - 1
	}
	if r1 > h.Rows-1 {
		r1 = h.Rows - 1
	}
	tx := fx - float64(c0)
	tz := fz - float64(r0)

	top := h.at(c0, r0)*(1-tx) + h.at(c1, r0)*tx
	bottom := h.at(c0, r1)*(1-tx) + h.at(c1, r1)*tx
	return top*(1-tz) + bottom*tz
}

// Flat is a HeightSource with a single constant height everywhere. Handy for
// tests and simple worlds.
type Flat float64

func (f Flat) HeightAt(x, z float64) float64 { return float64(f) }
