// Package kernels holds the device source of the KP07 dimensional-split
// Euler kernel: the kernel body plus the three header fragments (common
// definitions, Euler physics, slope limiters) that the kernel provider
// compiles together with the BLOCK_WIDTH/BLOCK_HEIGHT constants.
package kernels

import (
	fvgpu "github.com/HichamAgueny/FiniteVolumeGPU-HIP"
)

// EntryPoint is the kernel function name backends resolve after compiling.
const EntryPoint = "KP07DimsplitKernel"

// Default thread-block shape, inherited from the HIP build of the solver.
const (
	DefaultBlockWidth  = 16
	DefaultBlockHeight = 8
)

// KP07Dimsplit returns the complete kernel source bundle for the given
// block shape. Zero values select the defaults.
func KP07Dimsplit(blockWidth, blockHeight int) fvgpu.KernelSource {
	if blockWidth <= 0 {
		blockWidth = DefaultBlockWidth
	}
	if blockHeight <= 0 {
		blockHeight = DefaultBlockHeight
	}
	return fvgpu.KernelSource{
		Name:   EntryPoint,
		Source: kp07DimsplitSource,
		Headers: []fvgpu.KernelHeader{
			{Name: "common.h", Content: commonHeader},
			{Name: "EulerCommon.h", Content: eulerCommonHeader},
			{Name: "limiters.h", Content: limitersHeader},
		},
		BlockWidth:  blockWidth,
		BlockHeight: blockHeight,
	}
}

const commonHeader = `
#ifndef COMMON_H
#define COMMON_H

typedef float real;

#define FLT_MAX_REAL 3.402823466e+38f

// Boundary condition codes. Must match sim.BoundaryCondition.
#define BC_OPEN       0
#define BC_REFLECTIVE 1
#define BC_PERIODIC   2

// Row-major pitched access with a 2-cell ghost halo: cell (x, y) in
// interior coordinates, x in [-2, nx+2), y in [-2, ny+2).
#define CELL(ptr, pitch, x, y) \
    (((real*)((char*)(ptr) + ((y) + 2) * (size_t)(pitch)))[(x) + 2])

__device__ real clamp_positive(real v, real eps) {
    return (v > eps) ? v : eps;
}

// Remaps a coordinate that falls in the ghost region. sign is set to
// -1 when a reflective wall mirrors the normal momentum component.
__device__ int bc_map(int i, int n, int bc, int* sign) {
    if (i >= 0 && i < n) {
        return i;
    }
    switch (bc) {
    case BC_PERIODIC:
        return ((i % n) + n) % n;
    case BC_REFLECTIVE:
        *sign = -*sign;
        return (i < 0) ? (-i - 1) : (2 * n - i - 1);
    default: // BC_OPEN: clamp to the outermost interior cell
        return (i < 0) ? 0 : (n - 1);
    }
}

#endif
`

const eulerCommonHeader = `
#ifndef EULER_COMMON_H
#define EULER_COMMON_H

// Pressure from the conserved variables, clamped away from zero so the
// sound speed stays real in near-vacuum cells.
__device__ real pressure(const real Q[4], real gamma_) {
    const real kinetic = 0.5f * (Q[1] * Q[1] + Q[2] * Q[2]) / Q[0];
    return clamp_positive((gamma_ - 1.0f) * (Q[3] - kinetic), 1.0e-7f);
}

__device__ real sound_speed(const real Q[4], real gamma_) {
    return sqrtf(gamma_ * pressure(Q, gamma_) / Q[0]);
}

// Flux along x for Q = (rho, rho_u, rho_v, E).
__device__ void flux_x(const real Q[4], real gamma_, real F[4]) {
    const real p = pressure(Q, gamma_);
    const real u = Q[1] / Q[0];
    F[0] = Q[1];
    F[1] = Q[1] * u + p;
    F[2] = Q[2] * u;
    F[3] = (Q[3] + p) * u;
}

// Flux along y.
__device__ void flux_y(const real Q[4], real gamma_, real G[4]) {
    const real p = pressure(Q, gamma_);
    const real v = Q[2] / Q[0];
    G[0] = Q[2];
    G[1] = Q[1] * v;
    G[2] = Q[2] * v + p;
    G[3] = (Q[3] + p) * v;
}

// Rusanov numerical flux at the face between Ql and Qr, along dim (0 = x,
// 1 = y). Pure function of the face states: the same inputs always give
// bit-identical output, which is what makes recomputing corner cells in
// two boundary launches harmless.
__device__ void rusanov_flux(const real Ql[4], const real Qr[4],
                             int dim, real gamma_, real F[4]) {
    real Fl[4], Fr[4];
    if (dim == 0) {
        flux_x(Ql, gamma_, Fl);
        flux_x(Qr, gamma_, Fr);
    } else {
        flux_y(Ql, gamma_, Fl);
        flux_y(Qr, gamma_, Fr);
    }
    const real vl = Ql[1 + dim] / Ql[0];
    const real vr = Qr[1 + dim] / Qr[0];
    const real sl = fabsf(vl) + sound_speed(Ql, gamma_);
    const real sr = fabsf(vr) + sound_speed(Qr, gamma_);
    const real smax = fmaxf(sl, sr);
    for (int k = 0; k < 4; ++k) {
        F[k] = 0.5f * (Fl[k] + Fr[k]) - 0.5f * smax * (Qr[k] - Ql[k]);
    }
}

// Per-cell stable timestep bound used for the CFL reduction.
__device__ real cell_timestep(const real Q[4], real dx, real dy, real gamma_) {
    const real u = Q[1] / Q[0];
    const real v = Q[2] / Q[0];
    const real c = sound_speed(Q, gamma_);
    const real dtx = dx / (fabsf(u) + c);
    const real dty = dy / (fabsf(v) + c);
    return fminf(dtx, dty);
}

#endif
`

const limitersHeader = `
#ifndef LIMITERS_H
#define LIMITERS_H

// Generalized minmod slope limiter with parameter theta in [1, 2].
// theta = 1 is the most dissipative (minmod), theta = 2 is MC.
__device__ real minmod_slope(real left, real center, real right, real theta_) {
    const real backward = (center - left) * theta_;
    const real central  = (right - left) * 0.5f;
    const real forward  = (right - center) * theta_;
    return 0.25f
        * copysignf(1.0f, backward)
        * (copysignf(1.0f, backward) + copysignf(1.0f, central))
        * (copysignf(1.0f, central) + copysignf(1.0f, forward))
        * fminf(fminf(fabsf(backward), fabsf(central)), fabsf(forward));
}

#endif
`

// Kernel body. The sub-rectangle [x0,x1)x[y0,y1) bounds every write;
// thread blocks whose cells all fall outside it contribute FLT_MAX to the
// CFL reduction and write nothing. The update is a pure function of the
// read generation, so overlapping launches (corner cells of two boundary
// strips) write identical values.
const kp07DimsplitSource = `
#include "common.h"
#include "EulerCommon.h"
#include "limiters.h"

// Loads cell (x, y) of the read generation, applying the boundary
// condition when the coordinate falls in the ghost region.
__device__ void load_cell(
        const real* rho, int rho_pitch,
        const real* rho_u, int rho_u_pitch,
        const real* rho_v, int rho_v_pitch,
        const real* E, int E_pitch,
        int nx, int ny, int bc, int x, int y, real Q[4]) {
    int su = 1, sv = 1;
    const int mx = bc_map(x, nx, bc, &su);
    const int my = bc_map(y, ny, bc, &sv);
    Q[0] = CELL(rho,   rho_pitch,   mx, my);
    Q[1] = CELL(rho_u, rho_u_pitch, mx, my) * su;
    Q[2] = CELL(rho_v, rho_v_pitch, mx, my) * sv;
    Q[3] = CELL(E,     E_pitch,     mx, my);
}

// One dimensional-split half-step for cell (x, y): sweep along dim over a
// radius-1 stencil of states produced by "load". With the x-sweep feeding
// the y-sweep (or vice versa) the total stencil radius is 2, matching the
// fixed 2-cell halo.
#define SWEEP(Qm, Qc, Qp, dim, dtdh, OUT)                  \
    do {                                                   \
        real Fm_[4], Fp_[4];                               \
        rusanov_flux(Qm, Qc, dim, gamma_, Fm_);            \
        rusanov_flux(Qc, Qp, dim, gamma_, Fp_);            \
        for (int k_ = 0; k_ < 4; ++k_) {                   \
            OUT[k_] = Qc[k_] - (dtdh) * (Fp_[k_] - Fm_[k_]); \
        }                                                  \
        OUT[0] = clamp_positive(OUT[0], 1.0e-7f);          \
    } while (0)

extern "C" __global__
void KP07DimsplitKernel(
        int nx, int ny,
        real dx, real dy, real dt,
        real g,
        real gamma_,
        real theta_,
        int substep,
        int boundary_conditions,
        real* rho0_ptr,   int rho0_pitch,
        real* rho_u0_ptr, int rho_u0_pitch,
        real* rho_v0_ptr, int rho_v0_pitch,
        real* E0_ptr,     int E0_pitch,
        real* rho1_ptr,   int rho1_pitch,
        real* rho_u1_ptr, int rho_u1_pitch,
        real* rho_v1_ptr, int rho_v1_pitch,
        real* E1_ptr,     int E1_pitch,
        real* cfl_ptr,
        int x0, int y0,
        int x1, int y1) {

    const int tx = threadIdx.x;
    const int ty = threadIdx.y;
    const int x = x0 + blockIdx.x * BLOCK_WIDTH + tx;
    const int y = y0 + blockIdx.y * BLOCK_HEIGHT + ty;

    __shared__ real shared_cfl[BLOCK_HEIGHT * BLOCK_WIDTH];
    shared_cfl[ty * BLOCK_WIDTH + tx] = FLT_MAX_REAL;

    if (x < x1 && y < y1) {
        const int bc = boundary_conditions;
        const real dtdx = dt / dx;
        const real dtdy = dt / dy;

        #define LOAD(X, Y, Q) load_cell(rho0_ptr, rho0_pitch,      \
            rho_u0_ptr, rho_u0_pitch, rho_v0_ptr, rho_v0_pitch,    \
            E0_ptr, E0_pitch, nx, ny, bc, (X), (Y), Q)

        real Qs[3][4]; // intermediate states after the first sweep
        real Qout[4];

        if (substep == 0) {
            // x-sweep at rows y-1, y, y+1, then y-sweep of the results.
            for (int j = -1; j <= 1; ++j) {
                real Qm[4], Qc[4], Qp[4];
                LOAD(x - 1, y + j, Qm);
                LOAD(x,     y + j, Qc);
                LOAD(x + 1, y + j, Qp);
                SWEEP(Qm, Qc, Qp, 0, dtdx, Qs[j + 1]);
            }
            SWEEP(Qs[0], Qs[1], Qs[2], 1, dtdy, Qout);
        } else {
            // y-sweep at columns x-1, x, x+1, then x-sweep of the results.
            for (int i = -1; i <= 1; ++i) {
                real Qm[4], Qc[4], Qp[4];
                LOAD(x + i, y - 1, Qm);
                LOAD(x + i, y,     Qc);
                LOAD(x + i, y + 1, Qp);
                SWEEP(Qm, Qc, Qp, 1, dtdy, Qs[i + 1]);
            }
            SWEEP(Qs[0], Qs[1], Qs[2], 0, dtdx, Qout);
        }
        #undef LOAD

        CELL(rho1_ptr,   rho1_pitch,   x, y) = Qout[0];
        CELL(rho_u1_ptr, rho_u1_pitch, x, y) = Qout[1];
        CELL(rho_v1_ptr, rho_v1_pitch, x, y) = Qout[2];
        CELL(E1_ptr,     E1_pitch,     x, y) = Qout[3];
        shared_cfl[ty * BLOCK_WIDTH + tx] = cell_timestep(Qout, dx, dy, gamma_);
    }

    // Block-level min reduction into one CFL slot per block.
    __syncthreads();
    for (int s = (BLOCK_WIDTH * BLOCK_HEIGHT) / 2; s > 0; s >>= 1) {
        const int i = ty * BLOCK_WIDTH + tx;
        if (i < s) {
            shared_cfl[i] = fminf(shared_cfl[i], shared_cfl[i + s]);
        }
        __syncthreads();
    }
    if (tx == 0 && ty == 0) {
        cfl_ptr[blockIdx.y * gridDim.x + blockIdx.x] = shared_cfl[0];
    }
}
`
