package platform

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"2.31", Version{2, 31}, false},
		{"2.31.9000", Version{2, 31}, false},
		{"2.15", Version{2, 15}, false},
		{"3.0", Version{3, 0}, false},
		{"2", Version{}, true},
		{"", Version{}, true},
		{"two.31", Version{}, true},
		{"2.x", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		v            Version
		major, minor int
		want         bool
	}{
		{Version{2, 26}, 2, 26, true},
		{Version{2, 25}, 2, 26, false},
		{Version{2, 27}, 2, 26, true},
		{Version{3, 0}, 2, 26, true},
		{Version{1, 99}, 2, 0, false},
	}
	for _, tt := range tests {
		if got := tt.v.AtLeast(tt.major, tt.minor); got != tt.want {
			t.Errorf("%v.AtLeast(%d, %d) = %v, want %v", tt.v, tt.major, tt.minor, got, tt.want)
		}
	}
}

// TestPredicateFixtures 用已知版本夹具核对三个谓词的文档化取值，
// 特别是 opendir 非单调的版本区间
func TestPredicateFixtures(t *testing.T) {
	tests := []struct {
		version     string
		openat      bool // open 改写为 openat
		opendirAt   bool // opendir 改写为 openat
		negConstant bool // 负数常量需要无符号重解释
	}{
		{"2.14", false, false, false},
		{"2.15", false, true, false}, // opendir 改写引入
		{"2.21", false, true, false},
		{"2.22", false, false, false}, // opendir 改写撤销
		{"2.24", false, false, false},
		{"2.25", false, false, false},
		{"2.26", true, false, false}, // open 改写引入
		{"2.27", true, true, true},   // opendir 改写回归，负数常量语义变化
		{"2.31", true, true, true},
		{"2.35", true, true, true},
		{"3.0", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			v, err := Parse(tt.version)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.version, err)
			}
			c := FromVersion(v, true)
			if c.UsesOpenatForOpen != tt.openat {
				t.Errorf("UsesOpenatForOpen = %v, want %v", c.UsesOpenatForOpen, tt.openat)
			}
			if c.UsesOpenatForOpendir != tt.opendirAt {
				t.Errorf("UsesOpenatForOpendir = %v, want %v", c.UsesOpenatForOpendir, tt.opendirAt)
			}
			if c.NegativeConstantNeedsCast != tt.negConstant {
				t.Errorf("NegativeConstantNeedsCast = %v, want %v", c.NegativeConstantNeedsCast, tt.negConstant)
			}
		})
	}
}

// 版本探测失败时三个谓词必须全为假：按最老的 libc 保守处理
func TestFromVersionUnknown(t *testing.T) {
	c := FromVersion(Version{2, 31}, false)
	if c.UsesOpenatForOpen || c.UsesOpenatForOpendir || c.NegativeConstantNeedsCast {
		t.Errorf("FromVersion(_, false) produced non-conservative caps: %+v", c)
	}
	if c.HaveLibcVersion {
		t.Error("HaveLibcVersion = true for failed probe")
	}
}

func TestRuntimeMemoized(t *testing.T) {
	a := Runtime()
	b := Runtime()
	if a != b {
		t.Errorf("Runtime() not stable: %+v vs %+v", a, b)
	}
}
