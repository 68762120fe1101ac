package sim

import (
	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// runSubstep decomposes one half-step into its launch sequence.
//
// Both flags: a single launch over the full domain on the primary queue -
// the non-overlapped fast path.
//
// External only: the four boundary strips on the primary queue in the
// fixed order north, south, west, east, with a queue barrier after north,
// south and west so each strip is fully visible (to a concurrent interior
// launch or to the halo-exchange consumer) before the next is issued. The
// last barrier is the caller's: east is still in flight when this
// returns.
//
// Internal only: a single launch over the interior on the secondary
// queue, free to overlap boundary work and halo exchange on the primary.
func (s *Simulator) runSubstep(dt float32, substep int32, external, internal bool) error {
	switch {
	case external && internal:
		return s.launch(s.primary, s.gridDim, FullRegion(s.grid), dt, substep)

	case external:
		regions := BoundaryRegions(s.grid)
		// North/south strips are one block-row tall, west/east one
		// block-column wide; the kernel clips to the region bounds.
		grids := [4]fvgpu.Dim{
			North: {X: s.gridDim.X, Y: 1, Z: 1},
			South: {X: s.gridDim.X, Y: 1, Z: 1},
			West:  {X: 1, Y: s.gridDim.Y, Z: 1},
			East:  {X: 1, Y: s.gridDim.Y, Z: 1},
		}
		for i := North; i <= East; i++ {
			if err := s.launch(s.primary, grids[i], regions[i], dt, substep); err != nil {
				return err
			}
			if i < East {
				if err := s.primary.Sync(); err != nil {
					return err
				}
			}
		}
		return nil

	default: // internal only
		return s.launch(s.secondary, s.gridDim, InteriorRegion(s.grid), dt, substep)
	}
}

// launch enqueues one kernel invocation bounded to region. The write
// generation is always sets[cur^1]; the kernel reads sets[cur] only, so
// overlapping regions may recompute cells but never observe each other.
func (s *Simulator) launch(q fvgpu.Queue, grid fvgpu.Dim, region Region, dt float32, substep int32) error {
	read, write := s.sets[s.cur], s.sets[s.cur^1]
	p := fvgpu.LaunchParams{
		NX: int32(s.grid.NX), NY: int32(s.grid.NY),
		DX: s.grid.DX, DY: s.grid.DY, DT: dt,
		G:     s.phys.G,
		Gamma: s.phys.Gamma,
		Theta: s.phys.Theta,

		Substep:  substep,
		Boundary: int32(s.boundary),

		CFL: s.cfl,

		X0: region.X0, Y0: region.Y0,
		X1: region.X1, Y1: region.Y1,
	}
	for i := 0; i < 4; i++ {
		p.Read[i] = read.arg(i)
		p.Write[i] = write.arg(i)
	}
	return s.kernel.Launch(q, grid, s.blockDim, &p)
}
