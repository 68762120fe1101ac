package sim

// Region is an axis-aligned sub-rectangle [X0,X1)x[Y0,Y1) in interior
// cell-index space, used to bound one kernel launch.
type Region struct {
	X0, Y0, X1, Y1 int32
}

func (r Region) Width() int32  { return r.X1 - r.X0 }
func (r Region) Height() int32 { return r.Y1 - r.Y0 }
func (r Region) Cells() int    { return int(r.Width()) * int(r.Height()) }
func (r Region) Empty() bool   { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Contains reports whether interior cell (x, y) lies inside the region.
func (r Region) Contains(x, y int32) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1
}

// FullRegion covers the whole interior domain.
func FullRegion(g Grid) Region {
	return Region{X0: 0, Y0: 0, X1: int32(g.NX), Y1: int32(g.NY)}
}

// Boundary region indices, in launch order.
const (
	North = iota
	South
	West
	East
)

// BoundaryRegions decomposes the halo-width boundary strip into the four
// edge regions, in the fixed launch order north, south, west, east. The
// four corner blocks belong to one north/south region and one west/east
// region each and are computed twice; the kernel is a pure function of
// the read generation, so both writes carry identical values.
func BoundaryRegions(g Grid) [4]Region {
	nx, ny := int32(g.NX), int32(g.NY)
	xh, yh := int32(g.XHalo), int32(g.YHalo)
	return [4]Region{
		North: {X0: 0, Y0: ny - yh, X1: nx, Y1: ny},
		South: {X0: 0, Y0: 0, X1: nx, Y1: yh},
		West:  {X0: 0, Y0: 0, X1: xh, Y1: ny},
		East:  {X0: nx - xh, Y0: 0, X1: nx, Y1: ny},
	}
}

// InteriorRegion is the domain minus the boundary strip: the cells whose
// update needs no data from a neighboring subdomain, safe to compute
// while a halo exchange is in flight.
func InteriorRegion(g Grid) Region {
	return Region{
		X0: int32(g.XHalo),
		Y0: int32(g.YHalo),
		X1: int32(g.NX - g.XHalo),
		Y1: int32(g.NY - g.YHalo),
	}
}
