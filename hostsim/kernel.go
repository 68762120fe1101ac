package hostsim

import (
	"fmt"
	"math"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// Boundary condition codes, matching common.h in the device source.
const (
	bcOpen       = 0
	bcReflective = 1
	bcPeriodic   = 2
)

const (
	fltMax      = math.MaxFloat32
	positiveEps = 1.0e-7
)

// kernel is the CPU reference implementation of KP07DimsplitKernel: a
// dimensional-split Rusanov update of the compressible Euler equations,
// one half-step per launch, sweeping x-then-y for substep 0 and y-then-x
// for substep 1. Each cell is a pure function of the read generation over
// a radius-2 stencil, which is exactly the purity the scheduler relies on
// when corner cells are recomputed by two boundary launches.
type kernel struct {
	name string
}

func (k *kernel) Free() {}

// Launch validates the request, snapshots the parameters and enqueues the
// block sweep. It returns as soon as the work is queued; completion is
// observed through Queue.Sync.
func (k *kernel) Launch(q fvgpu.Queue, grid, block fvgpu.Dim, p *fvgpu.LaunchParams) error {
	hq, ok := q.(*queue)
	if !ok {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("queue is %T, not a hostsim queue", q)}
	}
	if grid.X <= 0 || grid.Y <= 0 || block.X <= 0 || block.Y <= 0 {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("non-positive launch dimensions")}
	}
	if p == nil {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("nil launch parameters")}
	}
	args, err := bindArgs(k.name, grid, block, p)
	if err != nil {
		return err
	}
	hq.enqueue(func() { args.run() })
	return nil
}

// boundArgs is a fully resolved launch: raw slices instead of Buffer
// handles, pitches converted to element strides.
type boundArgs struct {
	grid, block fvgpu.Dim
	p           fvgpu.LaunchParams
	read        [4][]float32
	write       [4][]float32
	rstride     [4]int
	wstride     [4]int
	cfl         *buffer
}

func bindArgs(name string, grid, block fvgpu.Dim, p *fvgpu.LaunchParams) (*boundArgs, error) {
	a := &boundArgs{grid: grid, block: block, p: *p}
	badArg := func(cause error) error {
		return &fvgpu.LaunchError{Kernel: name, Grid: grid, Block: block, Cause: cause}
	}
	for i := 0; i < 4; i++ {
		rb, ok := p.Read[i].Data.(*buffer)
		if !ok {
			return nil, badArg(fmt.Errorf("read field %d is %T, not a hostsim buffer", i, p.Read[i].Data))
		}
		wb, ok := p.Write[i].Data.(*buffer)
		if !ok {
			return nil, badArg(fmt.Errorf("write field %d is %T, not a hostsim buffer", i, p.Write[i].Data))
		}
		if p.Read[i].Stride%4 != 0 || p.Write[i].Stride%4 != 0 {
			return nil, badArg(fmt.Errorf("field %d pitch not a float32 multiple", i))
		}
		a.read[i] = rb.data
		a.write[i] = wb.data
		a.rstride[i] = int(p.Read[i].Stride) / 4
		a.wstride[i] = int(p.Write[i].Stride) / 4
	}
	cb, ok := p.CFL.(*buffer)
	if !ok {
		return nil, badArg(fmt.Errorf("CFL buffer is %T, not a hostsim buffer", p.CFL))
	}
	if need := grid.X * grid.Y; cb.Len() < need {
		return nil, badArg(fmt.Errorf("CFL buffer holds %d blocks, launch needs %d", cb.Len(), need))
	}
	a.cfl = cb
	return a, nil
}

// run executes the launch: every block of the grid, every thread of the
// block, bounded by [X0,X1)x[Y0,Y1). Blocks with no in-rectangle cell
// still publish FLT_MAX to their CFL slot, as on the device.
func (a *boundArgs) run() {
	for by := 0; by < a.grid.Y; by++ {
		for bx := 0; bx < a.grid.X; bx++ {
			blockMin := float32(fltMax)
			for ty := 0; ty < a.block.Y; ty++ {
				for tx := 0; tx < a.block.X; tx++ {
					x := int(a.p.X0) + bx*a.block.X + tx
					y := int(a.p.Y0) + by*a.block.Y + ty
					if x >= int(a.p.X1) || y >= int(a.p.Y1) {
						continue
					}
					out := a.dimsplitCell(x, y)
					for k := 0; k < 4; k++ {
						a.write[k][cellIndex(a.wstride[k], x, y)] = out[k]
					}
					if dt := cellTimestep(out, a.p.DX, a.p.DY, a.p.Gamma); dt < blockMin {
						blockMin = dt
					}
				}
			}
			a.cfl.mu.Lock()
			a.cfl.data[by*a.grid.X+bx] = blockMin
			a.cfl.mu.Unlock()
		}
	}
}

// cellIndex addresses interior cell (x, y) in a pitched array with a
// 2-cell ghost halo; x may range over [-2, nx+2) and y over [-2, ny+2).
func cellIndex(stride, x, y int) int {
	return (y+2)*stride + (x + 2)
}

// dimsplitCell computes the updated state of cell (x, y): a radius-1
// sweep along the first direction at the three rows (or columns) the
// second sweep needs, then the second sweep over those intermediates.
// Total read stencil radius is 2, matching the fixed halo width.
func (a *boundArgs) dimsplitCell(x, y int) [4]float32 {
	dtdx := a.p.DT / a.p.DX
	dtdy := a.p.DT / a.p.DY

	var qs [3][4]float32
	if a.p.Substep == 0 {
		for j := -1; j <= 1; j++ {
			qm := a.loadCell(x-1, y+j)
			qc := a.loadCell(x, y+j)
			qp := a.loadCell(x+1, y+j)
			qs[j+1] = sweep(qm, qc, qp, 0, a.p.Gamma, dtdx)
		}
		return sweep(qs[0], qs[1], qs[2], 1, a.p.Gamma, dtdy)
	}
	for i := -1; i <= 1; i++ {
		qm := a.loadCell(x+i, y-1)
		qc := a.loadCell(x+i, y)
		qp := a.loadCell(x+i, y+1)
		qs[i+1] = sweep(qm, qc, qp, 1, a.p.Gamma, dtdy)
	}
	return sweep(qs[0], qs[1], qs[2], 0, a.p.Gamma, dtdx)
}

// loadCell reads one cell of the read generation, remapping ghost-region
// coordinates according to the boundary-condition code.
func (a *boundArgs) loadCell(x, y int) [4]float32 {
	su, sv := float32(1), float32(1)
	mx := bcMap(x, int(a.p.NX), int(a.p.Boundary), &su)
	my := bcMap(y, int(a.p.NY), int(a.p.Boundary), &sv)
	return [4]float32{
		a.read[0][cellIndex(a.rstride[0], mx, my)],
		a.read[1][cellIndex(a.rstride[1], mx, my)] * su,
		a.read[2][cellIndex(a.rstride[2], mx, my)] * sv,
		a.read[3][cellIndex(a.rstride[3], mx, my)],
	}
}

func bcMap(i, n, bc int, sign *float32) int {
	if i >= 0 && i < n {
		return i
	}
	switch bc {
	case bcPeriodic:
		return ((i % n) + n) % n
	case bcReflective:
		*sign = -*sign
		if i < 0 {
			return -i - 1
		}
		return 2*n - i - 1
	default: // open: clamp to the outermost interior cell
		if i < 0 {
			return 0
		}
		return n - 1
	}
}

// sweep advances qc one half-step along dim (0 = x, 1 = y) with Rusanov
// fluxes at both faces.
func sweep(qm, qc, qp [4]float32, dim int, gamma, dtdh float32) [4]float32 {
	fm := rusanovFlux(qm, qc, dim, gamma)
	fp := rusanovFlux(qc, qp, dim, gamma)
	var out [4]float32
	for k := 0; k < 4; k++ {
		out[k] = qc[k] - dtdh*(fp[k]-fm[k])
	}
	if out[0] < positiveEps {
		out[0] = positiveEps
	}
	return out
}

func rusanovFlux(ql, qr [4]float32, dim int, gamma float32) [4]float32 {
	fl := physicalFlux(ql, dim, gamma)
	fr := physicalFlux(qr, dim, gamma)
	sl := absf(ql[1+dim]/ql[0]) + soundSpeed(ql, gamma)
	sr := absf(qr[1+dim]/qr[0]) + soundSpeed(qr, gamma)
	smax := sl
	if sr > smax {
		smax = sr
	}
	var f [4]float32
	for k := 0; k < 4; k++ {
		f[k] = 0.5*(fl[k]+fr[k]) - 0.5*smax*(qr[k]-ql[k])
	}
	return f
}

func physicalFlux(q [4]float32, dim int, gamma float32) [4]float32 {
	p := pressure(q, gamma)
	if dim == 0 {
		u := q[1] / q[0]
		return [4]float32{q[1], q[1]*u + p, q[2] * u, (q[3] + p) * u}
	}
	v := q[2] / q[0]
	return [4]float32{q[2], q[1] * v, q[2]*v + p, (q[3] + p) * v}
}

func pressure(q [4]float32, gamma float32) float32 {
	kinetic := 0.5 * (q[1]*q[1] + q[2]*q[2]) / q[0]
	p := (gamma - 1) * (q[3] - kinetic)
	if p < positiveEps {
		p = positiveEps
	}
	return p
}

func soundSpeed(q [4]float32, gamma float32) float32 {
	return float32(math.Sqrt(float64(gamma * pressure(q, gamma) / q[0])))
}

// cellTimestep is the per-cell stability bound feeding the CFL reduction.
func cellTimestep(q [4]float32, dx, dy, gamma float32) float32 {
	u := absf(q[1] / q[0])
	v := absf(q[2] / q[0])
	c := soundSpeed(q, gamma)
	dtx := dx / (u + c)
	dty := dy / (v + c)
	if dtx < dty {
		return dtx
	}
	return dty
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
