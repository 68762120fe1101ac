package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// ComputeDt reduces the per-block CFL buffer to the candidate stable
// timestep for the next substep: the global minimum scaled by the
// dimensional-splitting factor of 0.5.
//
// The reduction is only defined over a fully populated buffer, so the
// call joins both queues first and refuses to run until the current
// substep generation has been launched over both the boundary strip and
// the interior (a reduction over a partially written buffer is
// undefined by construction).
func (s *Simulator) ComputeDt() (float32, error) {
	if !s.covExternal || !s.covInternal {
		return 0, fvgpu.ContractError(
			"ComputeDt called before a full-domain substep populated the CFL buffer")
	}
	if err := s.join(); err != nil {
		return 0, err
	}
	host := make([]float32, s.cfl.Len())
	if err := s.cfl.CopyToHost(host); err != nil {
		return 0, err
	}
	min, err := reduceMin(host)
	if err != nil {
		return 0, err
	}
	return 0.5 * min, nil
}

// reduceMin returns the canonical IEEE-754 minimum of values. The result
// is bit-reproducible for identical input regardless of traversal order;
// a NaN is a fatal input-contract violation, never folded into the
// minimum.
func reduceMin(values []float32) (float32, error) {
	if len(values) == 0 {
		return 0, fvgpu.ContractError("minimum reduction over an empty CFL buffer")
	}
	wide := make([]float64, len(values))
	for i, v := range values {
		wide[i] = float64(v)
	}
	if floats.HasNaN(wide) {
		return 0, fvgpu.ContractError("NaN in CFL buffer")
	}
	return float32(floats.Min(wide)), nil
}

// initialTimestep computes the stability bound of the initial condition
// on the host, the same per-cell bound the kernel writes to the CFL
// buffer: min over interior cells of dx/(|u|+c) and dy/(|v|+c).
func initialTimestep(g Grid, phys Physics, initial [4][]float32) float32 {
	w := g.TotalWidth()
	at := func(k, x, y int) float32 {
		return initial[k][(y+g.YHalo)*w+(x+g.XHalo)]
	}
	min := float32(math.MaxFloat32)
	for y := 0; y < g.NY; y++ {
		for x := 0; x < g.NX; x++ {
			q := [4]float32{at(0, x, y), at(1, x, y), at(2, x, y), at(3, x, y)}
			if dt := hostCellTimestep(q, g.DX, g.DY, phys.Gamma); dt < min {
				min = dt
			}
		}
	}
	return min
}

// hostCellTimestep mirrors cell_timestep in EulerCommon.h.
func hostCellTimestep(q [4]float32, dx, dy, gamma float32) float32 {
	kinetic := 0.5 * (q[1]*q[1] + q[2]*q[2]) / q[0]
	p := (gamma - 1) * (q[3] - kinetic)
	if p < 1e-7 {
		p = 1e-7
	}
	c := float32(math.Sqrt(float64(gamma * p / q[0])))
	u := q[1] / q[0]
	if u < 0 {
		u = -u
	}
	v := q[2] / q[0]
	if v < 0 {
		v = -v
	}
	dtx := dx / (u + c)
	dty := dy / (v + c)
	if dtx < dty {
		return dtx
	}
	return dty
}
