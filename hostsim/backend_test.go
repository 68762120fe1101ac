package hostsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
	"github.com/HichamAgueny/FiniteVolumeGPU-HIP/kernels"
)

func TestQueueRunsTasksInSubmissionOrder(t *testing.T) {
	b := New()
	defer b.Close()

	q, err := b.NewQueue("test")
	require.NoError(t, err)

	var order []int
	hq := q.(*queue)
	for i := 0; i < 100; i++ {
		i := i
		hq.enqueue(func() { order = append(order, i) })
	}
	require.NoError(t, q.Sync())

	require.Len(t, order, 100)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestSyncIsABarrierPerQueue(t *testing.T) {
	b := New()
	defer b.Close()

	q1, err := b.NewQueue("primary")
	require.NoError(t, err)
	q2, err := b.NewQueue("secondary")
	require.NoError(t, err)

	release := make(chan struct{})
	done := false
	q2.(*queue).enqueue(func() { <-release; done = true })

	// Syncing the other queue must not wait for q2's blocked task.
	require.NoError(t, q1.Sync())
	assert.False(t, done)

	close(release)
	require.NoError(t, q2.Sync())
	assert.True(t, done)
}

func TestAllocFloat32(t *testing.T) {
	b := New()
	defer b.Close()

	init := []float32{1, 2, 3, 4}
	buf, err := b.AllocFloat32(4, init)
	require.NoError(t, err)
	require.Equal(t, 4, buf.Len())

	out := make([]float32, 4)
	require.NoError(t, buf.CopyToHost(out))
	assert.Equal(t, init, out)

	zeroed, err := b.AllocFloat32(3, nil)
	require.NoError(t, err)
	require.NoError(t, zeroed.CopyToHost(out[:3]))
	assert.Equal(t, []float32{0, 0, 0}, out[:3])

	_, err = b.AllocFloat32(0, nil)
	require.ErrorIs(t, err, fvgpu.ErrOutOfMemory)
}

func TestBuildKernelRejectsUnknownEntryPoint(t *testing.T) {
	b := New()
	defer b.Close()

	_, err := b.BuildKernel(fvgpu.KernelSource{Name: "nonsense", BlockWidth: 16, BlockHeight: 8})
	var ce *fvgpu.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "nonsense", ce.Kernel)

	_, err = b.BuildKernel(fvgpu.KernelSource{Name: kernels.EntryPoint})
	require.ErrorAs(t, err, &ce, "zero block constants must be rejected")
}

// launchFixture allocates a full launch environment for an nx x ny grid
// with the fixed 2-cell halo.
type launchFixture struct {
	b      *Backend
	q      fvgpu.Queue
	k      fvgpu.Kernel
	p      fvgpu.LaunchParams
	grid   fvgpu.Dim
	block  fvgpu.Dim
	nx, ny int
}

func newLaunchFixture(t *testing.T, nx, ny int, fill func(x, y int) [4]float32) *launchFixture {
	t.Helper()
	b := New()
	t.Cleanup(func() { _ = b.Close() })

	q, err := b.NewQueue("primary")
	require.NoError(t, err)

	src := kernels.KP07Dimsplit(8, 8)
	k, err := b.BuildKernel(src)
	require.NoError(t, err)

	f := &launchFixture{
		b: b, q: q, k: k, nx: nx, ny: ny,
		block: fvgpu.Dim{X: src.BlockWidth, Y: src.BlockHeight, Z: 1},
	}
	f.grid = fvgpu.Dim{
		X: (nx + src.BlockWidth - 1) / src.BlockWidth,
		Y: (ny + src.BlockHeight - 1) / src.BlockHeight,
		Z: 1,
	}

	w, h := nx+4, ny+4
	stride := int32(w * 4)
	for i := 0; i < 4; i++ {
		data := make([]float32, w*h)
		for y := -2; y < ny+2; y++ {
			for x := -2; x < nx+2; x++ {
				data[(y+2)*w+(x+2)] = fill(x, y)[i]
			}
		}
		read, err := b.AllocFloat32(w*h, data)
		require.NoError(t, err)
		write, err := b.AllocFloat32(w*h, nil)
		require.NoError(t, err)
		f.p.Read[i] = fvgpu.FieldArg{Data: read, Stride: stride}
		f.p.Write[i] = fvgpu.FieldArg{Data: write, Stride: stride}
	}
	cfl, err := b.AllocFloat32(f.grid.X*f.grid.Y, nil)
	require.NoError(t, err)

	f.p.NX, f.p.NY = int32(nx), int32(ny)
	f.p.DX, f.p.DY, f.p.DT = 1, 1, 0.05
	f.p.Gamma, f.p.Theta = 1.4, 1.3
	f.p.CFL = cfl
	f.p.X1, f.p.Y1 = int32(nx), int32(ny)
	return f
}

func (f *launchFixture) writeField(t *testing.T, i int) []float32 {
	t.Helper()
	out := make([]float32, f.p.Write[i].Data.Len())
	require.NoError(t, f.p.Write[i].Data.CopyToHost(out))
	return out
}

func uniformFill(rho, rhoU, rhoV, e float32) func(x, y int) [4]float32 {
	return func(int, int) [4]float32 { return [4]float32{rho, rhoU, rhoV, e} }
}

func TestKernelWritesOnlyTheLaunchRegion(t *testing.T) {
	f := newLaunchFixture(t, 16, 16, uniformFill(1, 0, 0, 2.5))

	// Sentinel in the write generation: any touched cell changes.
	w, h := f.nx+4, f.ny+4
	sentinel := make([]float32, w*h)
	for i := range sentinel {
		sentinel[i] = -7
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, f.p.Write[i].Data.CopyFromHost(sentinel))
	}

	f.p.X0, f.p.Y0, f.p.X1, f.p.Y1 = 4, 6, 12, 10
	require.NoError(t, f.k.Launch(f.q, f.grid, f.block, &f.p))
	require.NoError(t, f.q.Sync())

	rho := f.writeField(t, 0)
	for y := -2; y < f.ny+2; y++ {
		for x := -2; x < f.nx+2; x++ {
			v := rho[(y+2)*w+(x+2)]
			inside := x >= 4 && x < 12 && y >= 6 && y < 10
			if inside {
				require.InDelta(t, 1.0, v, 1e-5, "cell (%d,%d)", x, y)
			} else {
				require.Equal(t, float32(-7), v, "cell (%d,%d) written outside region", x, y)
			}
		}
	}
}

func TestKernelIsDeterministic(t *testing.T) {
	fill := func(x, y int) [4]float32 {
		return [4]float32{
			1 + 0.01*float32((x*31+y*17)%13),
			0.02 * float32((x+y)%5),
			-0.02 * float32((x-y)%5),
			8 + 0.1*float32((x*7+y*3)%11),
		}
	}
	a := newLaunchFixture(t, 16, 12, fill)
	c := newLaunchFixture(t, 16, 12, fill)

	require.NoError(t, a.k.Launch(a.q, a.grid, a.block, &a.p))
	require.NoError(t, a.q.Sync())
	require.NoError(t, c.k.Launch(c.q, c.grid, c.block, &c.p))
	require.NoError(t, c.q.Sync())

	for i := 0; i < 4; i++ {
		assert.Equal(t, a.writeField(t, i), c.writeField(t, i), "field %d", i)
	}
}

func TestKernelPopulatesCFLPerBlock(t *testing.T) {
	f := newLaunchFixture(t, 16, 16, uniformFill(1, 0, 0, 2.5))
	require.NoError(t, f.k.Launch(f.q, f.grid, f.block, &f.p))
	require.NoError(t, f.q.Sync())

	cfl := make([]float32, f.p.CFL.Len())
	require.NoError(t, f.p.CFL.CopyToHost(cfl))

	// Uniform state: every block publishes the same bound, dx/c.
	want := cfl[0]
	require.Greater(t, want, float32(0))
	require.Less(t, want, float32(fltMax))
	for i, v := range cfl {
		require.Equal(t, want, v, "block %d", i)
	}
}

func TestLaunchValidation(t *testing.T) {
	f := newLaunchFixture(t, 8, 8, uniformFill(1, 0, 0, 2.5))

	var le *fvgpu.LaunchError
	err := f.k.Launch(f.q, fvgpu.Dim{X: 0, Y: 1, Z: 1}, f.block, &f.p)
	require.ErrorAs(t, err, &le)

	err = f.k.Launch(f.q, f.grid, f.block, nil)
	require.ErrorAs(t, err, &le)

	err = f.k.Launch(badQueue{}, f.grid, f.block, &f.p)
	require.ErrorAs(t, err, &le)

	// A foreign buffer in the parameter list is a contract violation.
	broken := f.p
	broken.CFL = badBuffer{}
	err = f.k.Launch(f.q, f.grid, f.block, &broken)
	require.ErrorAs(t, err, &le)
}

type badQueue struct{}

func (badQueue) Sync() error { return nil }

type badBuffer struct{}

func (badBuffer) Len() int                     { return 0 }
func (badBuffer) CopyToHost([]float32) error   { return nil }
func (badBuffer) CopyFromHost([]float32) error { return nil }
func (badBuffer) Free()                        {}
