// Package occa implements the fvgpu backend interfaces on top of OCCA
// (Open Concurrent Compute Abstraction), giving the substep engine access
// to Serial, OpenMP, CUDA and HIP devices through one cgo binding. The
// two execution queues map onto OCCA streams; queue barriers use stream
// tags so a Sync joins one stream without flushing the whole device.
package occa

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -locca
#include <occa.h>
#include <stdlib.h>

// Create a device from JSON properties, freeing the parsed JSON.
occaDevice fvgpuCreateDevice(const char* info) {
    occaJson props = occaJsonParse(info);
    occaDevice device = occaCreateDevice(props);
    occaFree(&props);
    return device;
}

void fvgpuFreeDevice(occaDevice d) { occaFree(&d); }
void fvgpuFreeKernel(occaKernel k) { occaFree(&k); }
void fvgpuFreeMemory(occaMemory m) { occaFree(&m); }
void fvgpuFreeStream(occaStream s) { occaFree(&s); }
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"

	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// Backend is an OCCA device. The device is made current at creation;
// the binding follows OCCA's current-device model, so one Backend per
// process is the supported configuration.
type Backend struct {
	device C.occaDevice
	mode   string
}

// NewBackend opens a device from an OCCA JSON descriptor, e.g.
// `{"mode": "HIP", "device_id": 0}` or `{"mode": "Serial"}`.
func NewBackend(deviceInfo string) (*Backend, error) {
	cInfo := C.CString(deviceInfo)
	defer C.free(unsafe.Pointer(cInfo))

	device := C.fvgpuCreateDevice(cInfo)
	if !bool(C.occaDeviceIsInitialized(device)) {
		return nil, fmt.Errorf("occa: device %s failed to initialize", deviceInfo)
	}
	C.occaSetDevice(device)
	return &Backend{
		device: device,
		mode:   C.GoString(C.occaDeviceMode(device)),
	}, nil
}

// Mode reports the OCCA mode of the device.
func (b *Backend) Mode() string { return b.mode }

// AllocFloat32 allocates n float32 elements on the device, copying init
// when non-nil. OCCA aborts the process on a genuinely exhausted device;
// a zero-byte or failed handle is mapped to ErrOutOfMemory.
func (b *Backend) AllocFloat32(n int, init []float32) (fvgpu.Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("alloc of %d elements: %w", n, fvgpu.ErrOutOfMemory)
	}
	bytes := C.occaUDim_t(n * 4)
	var src unsafe.Pointer
	if init != nil {
		src = unsafe.Pointer(&init[0])
	}
	mem := C.occaDeviceMalloc(b.device, bytes, src, C.occaDefault)
	if !bool(C.occaMemoryIsInitialized(mem)) {
		return nil, fmt.Errorf("alloc of %d elements: %w", n, fvgpu.ErrOutOfMemory)
	}
	if init == nil {
		zero := make([]float32, n)
		C.occaCopyPtrToMem(mem, unsafe.Pointer(&zero[0]), bytes, 0, C.occaDefault)
	}
	return &memory{mem: mem, n: n}, nil
}

// NewQueue creates an OCCA stream.
func (b *Backend) NewQueue(name string) (fvgpu.Queue, error) {
	stream := C.occaCreateStream(C.occaDefault)
	return &queue{name: name, stream: stream}, nil
}

// BuildKernel concatenates the block constants, the header fragments and
// the kernel body, then compiles the result on the device. A kernel that
// comes back uninitialized is a compile failure; OCCA has already written
// the compiler diagnostics to stderr, so the error carries the source
// identity rather than duplicating them.
func (b *Backend) BuildKernel(src fvgpu.KernelSource) (fvgpu.Kernel, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#define BLOCK_WIDTH %d\n", src.BlockWidth)
	fmt.Fprintf(&sb, "#define BLOCK_HEIGHT %d\n", src.BlockHeight)
	for _, h := range src.Headers {
		fmt.Fprintf(&sb, "\n// ===== %s =====\n", h.Name)
		sb.WriteString(h.Content)
	}
	sb.WriteString(src.Source)
	full := includeStripped(sb.String())

	cSource := C.CString(full)
	cName := C.CString(src.Name)
	defer C.free(unsafe.Pointer(cSource))
	defer C.free(unsafe.Pointer(cName))

	k := C.occaDeviceBuildKernelFromString(b.device, cSource, cName, C.occaDefault)
	if !bool(C.occaKernelIsInitialized(k)) {
		return nil, &fvgpu.CompileError{
			Kernel: src.Name,
			Log:    fmt.Sprintf("occa %s build failed (diagnostics on stderr), source %d bytes", b.mode, len(full)),
		}
	}
	return &kernel{name: src.Name, kernel: k}, nil
}

// includeStripped drops the #include lines of the kernel body; the header
// contents are already concatenated ahead of it.
func includeStripped(source string) string {
	lines := strings.Split(source, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#include \"") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Close releases the device.
func (b *Backend) Close() error {
	C.fvgpuFreeDevice(b.device)
	return nil
}

type queue struct {
	name   string
	stream C.occaStream
}

// Sync joins this stream only: the stream is made current, tagged, and
// the tag awaited. Work on the other stream keeps running.
func (q *queue) Sync() error {
	C.occaSetStream(q.stream)
	tag := C.occaTagStream()
	C.occaWaitForTag(tag)
	return nil
}

func (q *queue) free() {
	C.fvgpuFreeStream(q.stream)
}

type memory struct {
	mem C.occaMemory
	n   int
}

func (m *memory) Len() int { return m.n }

func (m *memory) CopyToHost(dst []float32) error {
	n := m.n
	if len(dst) < n {
		n = len(dst)
	}
	if n == 0 {
		return nil
	}
	C.occaCopyMemToPtr(unsafe.Pointer(&dst[0]), m.mem, C.occaUDim_t(n*4), 0, C.occaDefault)
	return nil
}

func (m *memory) CopyFromHost(src []float32) error {
	n := m.n
	if len(src) < n {
		n = len(src)
	}
	if n == 0 {
		return nil
	}
	C.occaCopyPtrToMem(m.mem, unsafe.Pointer(&src[0]), C.occaUDim_t(n*4), 0, C.occaDefault)
	return nil
}

func (m *memory) Free() {
	C.fvgpuFreeMemory(m.mem)
}
