package fvgpu

// Dim describes a launch geometry in blocks or threads. Z is always 1 for
// the 2D solver but kept so backends can map directly onto device APIs.
type Dim struct {
	X, Y, Z int
}

// FieldArg is one (buffer, row pitch) pair of the launch signature. Stride
// is the row pitch in bytes, exactly as the device kernel expects it.
type FieldArg struct {
	Data   Buffer
	Stride int32
}

// LaunchParams is the fixed, order-significant argument list of the
// KP07DimsplitKernel entry point. It is effectively a binary contract with
// the device kernel: backends must marshal the fields in declaration
// order, with the Read/Write pairs expanded to (pointer, stride) each and
// the sub-rectangle [X0,X1)x[Y0,Y1) last.
type LaunchParams struct {
	NX, NY     int32
	DX, DY, DT float32

	G, Gamma, Theta float32

	Substep  int32 // 0 or 1, selects the sweep order
	Boundary int32 // boundary-condition code, passed through unchanged

	Read  [4]FieldArg // rho, rho_u, rho_v, E of the read generation
	Write [4]FieldArg // rho, rho_u, rho_v, E of the write generation

	CFL Buffer // one float32 per thread block

	X0, Y0, X1, Y1 int32
}

// KernelHeader is a named source fragment included into the kernel build,
// mirroring the (common.h, EulerCommon.h, limiters.h) triple the kernel
// provider receives.
type KernelHeader struct {
	Name    string
	Content string
}

// KernelSource is everything a backend needs to resolve a launchable
// kernel: the entry point name, the kernel body, the header fragments and
// the two compile-time block constants.
type KernelSource struct {
	Name        string
	Source      string
	Headers     []KernelHeader
	BlockWidth  int
	BlockHeight int
}

// Buffer is a fixed-size device allocation of float32 values. Host copies
// are synchronous and must only be issued after the queues that write the
// buffer have been synchronized.
type Buffer interface {
	// Len returns the number of float32 elements.
	Len() int
	// CopyToHost copies min(Len, len(dst)) elements to dst.
	CopyToHost(dst []float32) error
	// CopyFromHost copies min(Len, len(src)) elements from src.
	CopyFromHost(src []float32) error
	Free()
}

// Queue is an ordered kernel-submission channel. Launches enqueued on one
// queue execute in FIFO order; distinct queues may run concurrently with
// each other and are ordered only at explicit Sync points.
type Queue interface {
	// Sync blocks until every launch previously enqueued on this queue
	// has completed.
	Sync() error
}

// Kernel is a resolved, launchable compute kernel. Launch enqueues
// asynchronously onto q and returns without waiting; the kernel may touch
// only cells inside [X0,X1)x[Y0,Y1) of p.
type Kernel interface {
	Launch(q Queue, grid, block Dim, p *LaunchParams) error
	Free()
}

// Backend is an accelerator device capable of running the substep engine.
type Backend interface {
	// Mode identifies the backend ("Serial", "HIP", "CUDA", ...).
	Mode() string
	// AllocFloat32 allocates n float32 elements, optionally initialized
	// from init (which may be nil for a zeroed buffer). Allocation
	// failure is fatal for the solver: device memory is not elastic.
	AllocFloat32(n int, init []float32) (Buffer, error)
	// NewQueue creates an independent ordered execution queue.
	NewQueue(name string) (Queue, error)
	// BuildKernel resolves src into a launchable kernel. Compile
	// failures surface the compiler diagnostics verbatim in a
	// *CompileError.
	BuildKernel(src KernelSource) (Kernel, error)
	Close() error
}
