package occa

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -locca
#include <occa.h>
*/
import "C"
import (
	"fmt"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

type kernel struct {
	name   string
	kernel C.occaKernel
}

// Launch marshals the order-significant parameter list and enqueues the
// kernel on q's stream. The argument order is a binary contract with
// KP07DimsplitKernel; any change here must match the device source.
func (k *kernel) Launch(q fvgpu.Queue, grid, block fvgpu.Dim, p *fvgpu.LaunchParams) error {
	oq, ok := q.(*queue)
	if !ok {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("queue is %T, not an occa queue", q)}
	}
	if grid.X <= 0 || grid.Y <= 0 || block.X <= 0 || block.Y <= 0 {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("non-positive launch dimensions")}
	}
	if p == nil {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block,
			Cause: fmt.Errorf("nil launch parameters")}
	}

	C.occaSetStream(oq.stream)
	C.occaKernelSetRunDims(k.kernel,
		C.occaDim{
			x: C.occaUDim_t(grid.X),
			y: C.occaUDim_t(grid.Y),
			z: C.occaUDim_t(grid.Z),
		},
		C.occaDim{
			x: C.occaUDim_t(block.X),
			y: C.occaUDim_t(block.Y),
			z: C.occaUDim_t(block.Z),
		})

	C.occaKernelClearArgs(k.kernel)
	push := func(arg C.occaType) { C.occaKernelPushArg(k.kernel, arg) }
	pushMem := func(b fvgpu.Buffer) error {
		m, ok := b.(*memory)
		if !ok {
			return fmt.Errorf("buffer is %T, not an occa buffer", b)
		}
		push(C.occaType(m.mem))
		return nil
	}

	push(C.occaInt32(C.int32_t(p.NX)))
	push(C.occaInt32(C.int32_t(p.NY)))
	push(C.occaFloat(C.float(p.DX)))
	push(C.occaFloat(C.float(p.DY)))
	push(C.occaFloat(C.float(p.DT)))
	push(C.occaFloat(C.float(p.G)))
	push(C.occaFloat(C.float(p.Gamma)))
	push(C.occaFloat(C.float(p.Theta)))
	push(C.occaInt32(C.int32_t(p.Substep)))
	push(C.occaInt32(C.int32_t(p.Boundary)))
	for _, fields := range [2][4]fvgpu.FieldArg{p.Read, p.Write} {
		for _, f := range fields {
			if err := pushMem(f.Data); err != nil {
				return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block, Cause: err}
			}
			push(C.occaInt32(C.int32_t(f.Stride)))
		}
	}
	if err := pushMem(p.CFL); err != nil {
		return &fvgpu.LaunchError{Kernel: k.name, Grid: grid, Block: block, Cause: err}
	}
	push(C.occaInt32(C.int32_t(p.X0)))
	push(C.occaInt32(C.int32_t(p.Y0)))
	push(C.occaInt32(C.int32_t(p.X1)))
	push(C.occaInt32(C.int32_t(p.Y1)))

	C.occaKernelRunFromArgs(k.kernel)
	return nil
}

func (k *kernel) Free() {
	C.fvgpuFreeKernel(k.kernel)
}
