package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

func TestReduceMin(t *testing.T) {
	cases := []struct {
		name   string
		values []float32
		want   float32
	}{
		{"minimum first", []float32{0.25, 1, 2, 3}, 0.25},
		{"minimum last", []float32{3, 2, 1, 0.25}, 0.25},
		{"minimum interior", []float32{3, 0.25, 2, 1}, 0.25},
		{"all equal", []float32{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"single element", []float32{42}, 42},
		{"max sentinel ignored", []float32{math.MaxFloat32, 0.75, math.MaxFloat32}, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reduceMin(tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReduceMinRejectsNaN(t *testing.T) {
	nan := float32(math.NaN())
	_, err := reduceMin([]float32{1, nan, 2})
	var ce fvgpu.ContractError
	require.ErrorAs(t, err, &ce)
}

func TestReduceMinRejectsEmpty(t *testing.T) {
	_, err := reduceMin(nil)
	var ce fvgpu.ContractError
	require.ErrorAs(t, err, &ce)
}

func TestInitialTimestepUniform(t *testing.T) {
	g := testGrid(8, 4)
	phys := Physics{Gamma: 1.4}.withDefaults()

	// rho=1, u=v=0, E=2.5 => p=1, c=sqrt(1.4); dt bound = dx/c.
	initial := uniformState(g, 1, 0, 0, 2.5)
	dt := initialTimestep(g, phys, initial)

	want := float32(1.0 / math.Sqrt(1.4))
	assert.InDelta(t, want, dt, 1e-6)
}

// uniformState builds full-extent arrays (ghost cells included) holding
// one constant state.
func uniformState(g Grid, rho, rhoU, rhoV, e float32) [4][]float32 {
	n := g.TotalWidth() * g.TotalHeight()
	var out [4][]float32
	for i, v := range [4]float32{rho, rhoU, rhoV, e} {
		out[i] = make([]float32, n)
		for j := range out[i] {
			out[i][j] = v
		}
	}
	return out
}
