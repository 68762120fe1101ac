package sim

import (
	"fmt"
	"math"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// FieldNames lists the four conserved quantities in ABI order.
var FieldNames = [4]string{"rho", "rho_u", "rho_v", "E"}

// Field is one conserved-quantity array: an (nx+2*xhalo) x (ny+2*yhalo)
// pitched device allocation.
type Field struct {
	name  string
	buf   fvgpu.Buffer
	pitch int32 // row pitch in bytes
}

func (f *Field) Name() string         { return f.name }
func (f *Field) Buffer() fvgpu.Buffer { return f.buf }

// PitchBytes is the row stride the launch ABI expects.
func (f *Field) PitchBytes() int32 { return f.pitch }

// FieldSet bundles the four conserved-quantity arrays sharing one grid
// geometry. Two FieldSets exist at all times, playing the read and write
// generation; the Simulator owns both in a fixed 2-slot arena and swaps
// their roles by flipping a selector bit, never by aliasing handles.
type FieldSet struct {
	grid   Grid
	fields [4]*Field
}

// AllocFieldSet allocates the four arrays on the backend. init, when
// non-nil, provides one full-extent row-major array per field (ghost
// cells included); nil leaves the set zeroed. Allocation failure is
// fatal for the solver: there is no recovery path when the accelerator
// is out of memory.
func AllocFieldSet(b fvgpu.Backend, g Grid, init *[4][]float32) (*FieldSet, error) {
	w, h := g.TotalWidth(), g.TotalHeight()
	fs := &FieldSet{grid: g}
	for i, name := range FieldNames {
		var src []float32
		if init != nil {
			src = init[i]
			if len(src) != w*h {
				fs.Free()
				return nil, fmt.Errorf("field %s: initial data has %d values, extent is %dx%d",
					name, len(src), w, h)
			}
		}
		buf, err := b.AllocFloat32(w*h, src)
		if err != nil {
			fs.Free()
			return nil, fmt.Errorf("allocating field %s: %w", name, err)
		}
		fs.fields[i] = &Field{name: name, buf: buf, pitch: int32(w) * 4}
	}
	return fs, nil
}

// Field returns the i-th conserved quantity (ABI order).
func (fs *FieldSet) Field(i int) *Field { return fs.fields[i] }

func (fs *FieldSet) arg(i int) fvgpu.FieldArg {
	return fvgpu.FieldArg{Data: fs.fields[i].buf, Stride: fs.fields[i].pitch}
}

// Download copies the four arrays to the host with the ghost halo
// cropped: each returned slice holds nx*ny interior cells, row-major.
// Callers must have synchronized the queues that write the set.
func (fs *FieldSet) Download() ([4][]float32, error) {
	g := fs.grid
	w, h := g.TotalWidth(), g.TotalHeight()
	full := make([]float32, w*h)
	var out [4][]float32
	for i, f := range fs.fields {
		if err := f.buf.CopyToHost(full); err != nil {
			return out, fmt.Errorf("downloading %s: %w", f.name, err)
		}
		interior := make([]float32, g.NX*g.NY)
		for y := 0; y < g.NY; y++ {
			src := (y+g.YHalo)*w + g.XHalo
			copy(interior[y*g.NX:(y+1)*g.NX], full[src:src+g.NX])
		}
		out[i] = interior
	}
	return out, nil
}

// Check validates the interior of the set: every value finite, density
// and energy strictly positive. A failure is an InvariantError - the run
// should stop, but it is not a device fault.
func (fs *FieldSet) Check() error {
	data, err := fs.Download()
	if err != nil {
		return err
	}
	for i, name := range FieldNames {
		for j, v := range data[i] {
			f64 := float64(v)
			if math.IsNaN(f64) || math.IsInf(f64, 0) {
				return &fvgpu.InvariantError{Field: name, Index: j, Reason: "non-finite value"}
			}
			if (i == 0 || i == 3) && v <= 0 {
				return &fvgpu.InvariantError{Field: name, Index: j,
					Reason: fmt.Sprintf("non-positive value %g", v)}
			}
		}
	}
	return nil
}

// Free releases the device allocations.
func (fs *FieldSet) Free() {
	for _, f := range fs.fields {
		if f != nil && f.buf != nil {
			f.buf.Free()
			f.buf = nil
		}
	}
}
