// Package fvgpu defines the backend capability layer for a finite-volume
// Euler solver that advances a structured 2D grid on an accelerator
// device, one explicit substep at a time.
//
// The package contains only the contracts a compute backend must satisfy:
// buffer allocation, ordered execution queues, and kernel launches against
// an axis-aligned sub-rectangle of the grid. The substep scheduling engine
// lives in the sim subpackage, the KP07 kernel source fragments in
// kernels, and two backend implementations in occa (OCCA via cgo, for
// Serial/OpenMP/CUDA/HIP devices) and hostsim (a serial in-process
// reference used by the test suite).
//
// Basic usage:
//
//	backend := hostsim.New()
//	defer backend.Close()
//
//	s, err := sim.NewSimulator(backend, sim.Config{
//	    Grid:    sim.Grid{NX: 64, NY: 64, DX: 1, DY: 1},
//	    Physics: sim.Physics{Gamma: 1.4},
//	}, initial)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Free()
//
//	dt := s.InitialTimestep()
//	for i := 0; i < nSteps; i++ {
//	    if err := s.Step(dt); err != nil {
//	        log.Fatal(err)
//	    }
//	    if dt, err = s.ComputeDt(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package fvgpu
