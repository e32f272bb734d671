package rlimit

import "testing"

func TestDisableCoreDumps(t *testing.T) {
	if err := DisableCoreDumps(); err != nil {
		t.Fatalf("DisableCoreDumps() error = %v", err)
	}

	lim, err := CoreLimit()
	if err != nil {
		t.Fatalf("CoreLimit() error = %v", err)
	}
	if lim.Cur != 0 || lim.Max != 0 {
		t.Errorf("core limit = {%d %d}, want {0 0}", lim.Cur, lim.Max)
	}

	// 重复清零无害
	if err := DisableCoreDumps(); err != nil {
		t.Errorf("second DisableCoreDumps() error = %v", err)
	}
}
