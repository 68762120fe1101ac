// Package hostsim is a serial in-process backend for the substep engine.
// It implements the fvgpu capability interfaces with host slices, two
// goroutine-backed FIFO queues and a CPU reference kernel that performs
// the same per-cell sub-rectangle writes as the device kernel. It exists
// so the scheduler, buffer pair and reducer can be developed and tested
// without an accelerator.
package hostsim

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
	"github.com/HichamAgueny/FiniteVolumeGPU-HIP/kernels"
)

// Backend is a host-memory implementation of fvgpu.Backend.
type Backend struct {
	mu     sync.Mutex
	group  errgroup.Group
	queues []*queue
	closed bool
}

// New creates a host backend.
func New() *Backend {
	return &Backend{}
}

// Mode identifies the backend.
func (b *Backend) Mode() string { return "HostSim" }

// AllocFloat32 allocates a host buffer of n float32 elements, copied from
// init when non-nil and zeroed otherwise.
func (b *Backend) AllocFloat32(n int, init []float32) (fvgpu.Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("alloc of %d elements: %w", n, fvgpu.ErrOutOfMemory)
	}
	buf := &buffer{data: make([]float32, n)}
	if init != nil {
		copy(buf.data, init)
	}
	return buf, nil
}

// NewQueue creates an ordered execution queue backed by one worker
// goroutine consuming a FIFO channel. Distinct queues run concurrently;
// ordering across them exists only at Sync points.
func (b *Backend) NewQueue(name string) (fvgpu.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("queue %q: backend is closed", name)
	}
	q := &queue{
		name:  name,
		tasks: make(chan func(), 64),
	}
	b.queues = append(b.queues, q)
	b.group.Go(q.run)
	return q, nil
}

// BuildKernel resolves the entry point against the backend's registry of
// reference implementations. Only the KP07 dimsplit kernel is known.
func (b *Backend) BuildKernel(src fvgpu.KernelSource) (fvgpu.Kernel, error) {
	if src.Name != kernels.EntryPoint {
		return nil, &fvgpu.CompileError{
			Kernel: src.Name,
			Log:    fmt.Sprintf("hostsim: no reference implementation for entry point %q", src.Name),
		}
	}
	if src.BlockWidth <= 0 || src.BlockHeight <= 0 {
		return nil, &fvgpu.CompileError{
			Kernel: src.Name,
			Log: fmt.Sprintf("hostsim: invalid block constants BLOCK_WIDTH=%d BLOCK_HEIGHT=%d",
				src.BlockWidth, src.BlockHeight),
		}
	}
	return &kernel{name: src.Name}, nil
}

// Close shuts down every queue and joins the workers.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q.tasks)
	}
	b.mu.Unlock()
	return b.group.Wait()
}

type queue struct {
	name  string
	tasks chan func()
}

func (q *queue) run() error {
	for task := range q.tasks {
		task()
	}
	return nil
}

func (q *queue) enqueue(task func()) {
	q.tasks <- task
}

// Sync blocks until all previously enqueued work has completed, by
// submitting a latch task and waiting for it to run.
func (q *queue) Sync() error {
	done := make(chan struct{})
	q.tasks <- func() { close(done) }
	<-done
	return nil
}

// buffer is a host allocation. The mutex serializes CFL slot stores:
// concurrent launches on the two queues write disjoint field cells, but
// their thread blocks may share CFL slots, exactly as on the device.
type buffer struct {
	mu   sync.Mutex
	data []float32
}

func (m *buffer) Len() int { return len(m.data) }

func (m *buffer) CopyToHost(dst []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(dst, m.data)
	return nil
}

func (m *buffer) CopyFromHost(src []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data, src)
	return nil
}

func (m *buffer) Free() { m.data = nil }
