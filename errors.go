package fvgpu

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory reports a device allocation failure. There is no retry
// path: accelerator memory is not elastic and the whole field set must fit.
var ErrOutOfMemory = errors.New("device out of memory")

// CompileError reports that the kernel provider could not build the
// compute kernel. Log carries the compiler diagnostics verbatim.
type CompileError struct {
	Kernel string
	Log    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("kernel %s failed to compile:\n%s", e.Kernel, e.Log)
}

// LaunchError reports that the device rejected a launch. It indicates a
// programming contract violation (bad grid/block dimensions, invalid
// buffer), not a transient condition, and the step is not retried.
type LaunchError struct {
	Kernel      string
	Grid, Block Dim
	Cause       error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("kernel %s rejected launch grid=%v block=%v: %v",
		e.Kernel, e.Grid, e.Block, e.Cause)
}

func (e *LaunchError) Unwrap() error { return e.Cause }

// InvariantError reports non-finite or non-physical state found by a
// post-step check. The run should stop, but unlike a device fault the
// process can survive it.
type InvariantError struct {
	Field  string
	Index  int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s at cell %d: %s",
		e.Field, e.Index, e.Reason)
}

// ContractError reports an operation issued out of the required
// state-machine order, such as reducing the CFL buffer before the launches
// that populate it have been issued. It is a programmer error.
type ContractError string

func (e ContractError) Error() string {
	return "contract violation: " + string(e)
}
