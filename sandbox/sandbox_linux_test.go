package sandbox

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/zqzqsb/confine/pkg/memarena"
	"github.com/zqzqsb/confine/pkg/platform"
)

func TestAllowRecordsEntries(t *testing.T) {
	s := New(Options{})

	if err := s.AllowOpen("/a"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowOpenat("/b"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowOpenDir("/c"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowStat("/d"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowRename("/e", "/f"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowChmod("/g"); err != nil {
		t.Fatal(err)
	}
	if err := s.AllowChown("/h"); err != nil {
		t.Fatal(err)
	}

	wantKinds := []entryKind{
		kindOpen, kindOpenat, kindOpenDir, kindStat,
		kindRename, kindChmod, kindChown,
	}
	if len(s.entries) != len(wantKinds) {
		t.Fatalf("got %d entries, want %d", len(s.entries), len(wantKinds))
	}
	for i, k := range wantKinds {
		if s.entries[i].kind != k {
			t.Errorf("entry %d kind = %v, want %v", i, s.entries[i].kind, k)
		}
		if s.entries[i].a.interned {
			t.Errorf("entry %d interned before install", i)
		}
	}
	if s.entries[4].a.owned != "/e" || s.entries[4].b.owned != "/f" {
		t.Errorf("rename pair = %q %q, want /e /f",
			s.entries[4].a.owned, s.entries[4].b.owned)
	}
}

func TestAllowAfterConfigurationClosed(t *testing.T) {
	s := New(Options{})
	if err := s.AllowOpen("/a"); err != nil {
		t.Fatal(err)
	}

	s.stage.Store(stageActive)
	if err := s.AllowOpen("/b"); !errors.Is(err, ErrActive) {
		t.Errorf("AllowOpen after activation = %v, want ErrActive", err)
	}
	if err := s.AllowRename("/x", "/y"); !errors.Is(err, ErrActive) {
		t.Errorf("AllowRename after activation = %v, want ErrActive", err)
	}
	if len(s.entries) != 1 {
		t.Errorf("registry grew to %d entries after activation", len(s.entries))
	}

	s.stage.Store(stageInstalling)
	if err := s.AllowStat("/z"); !errors.Is(err, ErrActive) {
		t.Errorf("AllowStat during install = %v, want ErrActive", err)
	}
}

func TestInstallSecondTimeRejected(t *testing.T) {
	// 进程级闸门已占用时，另一个实例的安装必须被拒且自身
	// 退回配置期可继续登记
	if !installed.CompareAndSwap(false, true) {
		t.Fatal("install gate unexpectedly held")
	}
	defer installed.Store(false)

	s := New(Options{})
	if err := s.Install(); !errors.Is(err, ErrActive) {
		t.Fatalf("second install = %v, want ErrActive", err)
	}
	if s.Active() {
		t.Error("rejected instance reports active")
	}
	if err := s.AllowOpen("/a"); err != nil {
		t.Errorf("rejected instance refuses configuration: %v", err)
	}
}

func TestInstallFailureReturnsToConfig(t *testing.T) {
	if !platform.Runtime().HasSeccomp {
		t.Skip("kernel lacks seccomp support")
	}

	// 哨兵大小顶满 int，加上载荷后必然溢出，驻留区建不出来，
	// 安装在载入内核之前就会失败
	s := New(Options{Canary: memarena.Size(^uint(0) >> 1)})
	if err := s.AllowOpen("/etc/hosts"); err != nil {
		t.Fatal(err)
	}

	err := s.Install()
	if err == nil {
		t.Fatal("install with an impossible arena size survived")
	}
	if errors.Is(err, ErrActive) || errors.Is(err, ErrUnsupported) {
		t.Fatalf("install failed with %v, want the arena error", err)
	}

	// 失败的安装不留痕：实例退回配置期，进程闸门释放，
	// 条目还是堆上副本
	if s.Active() {
		t.Error("failed install reports active")
	}
	if installed.Load() {
		t.Error("failed install left the process gate held")
	}
	if s.entries[0].a.interned {
		t.Error("failed install left entries interned")
	}
	if s.entries[0].a.owned != "/etc/hosts" {
		t.Errorf("entry path = %q, want /etc/hosts", s.entries[0].a.owned)
	}
	if err := s.AllowStat("/etc/resolv.conf"); err != nil {
		t.Errorf("configuration refused after failed install: %v", err)
	}

	// 同一实例可以重试，挡它的还是驻留区而不是闸门
	switch err := s.Install(); {
	case err == nil:
		t.Fatal("retry with the same impossible arena size survived")
	case errors.Is(err, ErrActive):
		t.Error("retry after failed install rejected by the gate")
	}
}

func TestInternInactive(t *testing.T) {
	s := New(Options{})
	in := "/var/lib/daemon/state.db"
	if got := s.Intern(in); got != in {
		t.Errorf("inactive Intern(%q) = %q", in, got)
	}
	if s.InternMissing(in) {
		t.Error("InternMissing true while inactive")
	}
}

// activeFixture 手工装配一个带驻留区的生效态实例，不真装过滤器
func activeFixture(t *testing.T, paths ...string) *Sandbox {
	t.Helper()

	payload := 0
	for _, p := range paths {
		payload += len(p) + 1
	}
	arena, err := memarena.New(memarena.Size(4096), payload)
	if err != nil {
		t.Fatal(err)
	}

	s := New(Options{})
	for _, p := range paths {
		ref, err := arena.Intern(p)
		if err != nil {
			t.Fatal(err)
		}
		s.entries = append(s.entries, entry{
			kind: kindOpen,
			a:    strRef{ref: ref, interned: true},
		})
	}
	if err := arena.Seal(); err != nil {
		t.Fatal(err)
	}
	s.arena = arena
	s.stage.Store(stageActive)
	return s
}

func TestInternActive(t *testing.T) {
	path := "/var/lib/daemon/state.db"
	s := activeFixture(t, path, "/etc/daemon.conf")

	// 内容相同、底层数组不同的查询串
	query := string([]byte(path))
	got := s.Intern(query)
	if got != path {
		t.Fatalf("Intern(%q) = %q", query, got)
	}
	if unsafe.StringData(got) == unsafe.StringData(query) {
		t.Error("Intern returned the query backing, not the arena copy")
	}

	// 幂等：两次换取同一块驻留内存
	again := s.Intern("/var/lib/daemon/" + "state.db")
	if unsafe.StringData(again) != unsafe.StringData(got) {
		t.Error("repeated Intern returned different backing")
	}

	if s.InternMissing(path) {
		t.Error("InternMissing true for registered path")
	}
	if !s.InternMissing("/never/registered") {
		t.Error("InternMissing false for unregistered path")
	}
	if got := s.Intern("/never/registered"); got != "/never/registered" {
		t.Errorf("miss returned %q, want input unchanged", got)
	}
}

func TestPathPtrUsesArena(t *testing.T) {
	path := "/var/lib/daemon/state.db"
	s := activeFixture(t, path)

	p, err := s.pathPtr(string([]byte(path)))
	if err != nil {
		t.Fatal(err)
	}
	want := s.arena.Ptr(s.entries[0].a.ref)
	if p != want {
		t.Errorf("pathPtr = %p, want arena copy %p", p, want)
	}

	// 未登记路径拿到的是临时拷贝，不在驻留区里
	q, err := s.pathPtr("/not/registered")
	if err != nil {
		t.Fatal(err)
	}
	if q == want {
		t.Error("unregistered path resolved to arena copy")
	}
}

func TestViolationPolicyString(t *testing.T) {
	tests := []struct {
		p    ViolationPolicy
		want string
	}{
		{ViolationErrno, "errno"},
		{ViolationAudit, "audit"},
		{ViolationTerminate, "terminate"},
		{ViolationPolicy(99), "invalid"},
	}
	for _, tc := range tests {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestEntryKindString(t *testing.T) {
	if kindRename.String() != "rename" {
		t.Errorf("kindRename = %q", kindRename.String())
	}
	if entryKind(0).String() != "invalid" {
		t.Errorf("zero kind = %q", entryKind(0).String())
	}
}
