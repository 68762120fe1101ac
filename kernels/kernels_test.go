package kernels

import (
	"strings"
	"testing"
)

func TestKP07DimsplitDefaults(t *testing.T) {
	src := KP07Dimsplit(0, 0)
	if src.Name != EntryPoint {
		t.Errorf("entry point = %q, want %q", src.Name, EntryPoint)
	}
	if src.BlockWidth != DefaultBlockWidth || src.BlockHeight != DefaultBlockHeight {
		t.Errorf("block = %dx%d, want %dx%d",
			src.BlockWidth, src.BlockHeight, DefaultBlockWidth, DefaultBlockHeight)
	}

	src = KP07Dimsplit(32, 4)
	if src.BlockWidth != 32 || src.BlockHeight != 4 {
		t.Errorf("block = %dx%d, want 32x4", src.BlockWidth, src.BlockHeight)
	}
}

func TestKP07DimsplitHeaders(t *testing.T) {
	src := KP07Dimsplit(0, 0)
	want := []string{"common.h", "EulerCommon.h", "limiters.h"}
	if len(src.Headers) != len(want) {
		t.Fatalf("got %d headers, want %d", len(src.Headers), len(want))
	}
	for i, name := range want {
		h := src.Headers[i]
		if h.Name != name {
			t.Errorf("header %d = %q, want %q", i, h.Name, name)
		}
		if strings.TrimSpace(h.Content) == "" {
			t.Errorf("header %q is empty", name)
		}
		// Every include in the body must have a matching header.
		if !strings.Contains(src.Source, `#include "`+name+`"`) {
			t.Errorf("kernel body does not include %q", name)
		}
	}
}

func TestKP07DimsplitSourceShape(t *testing.T) {
	src := KP07Dimsplit(0, 0)
	for _, sym := range []string{
		EntryPoint,
		"BLOCK_WIDTH",
		"BLOCK_HEIGHT",
		"cfl_ptr",
		"boundary_conditions",
		"substep",
	} {
		if !strings.Contains(src.Source, sym) {
			t.Errorf("kernel body missing %q", sym)
		}
	}
	for header, sym := range map[string]string{
		"common.h":      "bc_map",
		"EulerCommon.h": "rusanov_flux",
		"limiters.h":    "minmod_slope",
	} {
		found := false
		for _, h := range src.Headers {
			if h.Name == header && strings.Contains(h.Content, sym) {
				found = true
			}
		}
		if !found {
			t.Errorf("header %q missing %q", header, sym)
		}
	}
}
