package rtl

import (
	"context"
	"slices"
	"testing"
)

func TestHandler_Cmd(t *testing.T) {
	h := handler{binPath: "rtl_sdr"}

	cmd, err := h.Cmd(context.Background(), 433_920_000, 16384)
	if err != nil {
		t.Fatalf("Cmd() error = %v", err)
	}
	if !slices.Contains(cmd.Args, "433920000") {
		t.Errorf("Cmd() args = %v, want the center frequency", cmd.Args)
	}

	if cmd, err = h.Cmd(context.Background(), 0, 16384); err == nil {
		t.Errorf("Cmd() = %v, want error for a zero frequency", cmd.Args)
	}
	if cmd, err = h.Cmd(context.Background(), 433_920_000, 0); err == nil {
		t.Errorf("Cmd() = %v, want error for zero samples", cmd.Args)
	}
}
