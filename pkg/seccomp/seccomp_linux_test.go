package seccomp

import (
	"encoding/binary"
	"syscall"
	"testing"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/net/bpf"
)

// assemble 把 bpf 指令汇编成导出字节流的格式，供 ParseRaw 解析
func assemble(t *testing.T, prog []bpf.Instruction) []byte {
	t.Helper()
	raw, err := bpf.Assemble(prog)
	if err != nil {
		t.Fatalf("bpf.Assemble() error = %v", err)
	}
	buf := make([]byte, 0, len(raw)*8)
	for _, ins := range raw {
		var rec [8]byte
		binary.LittleEndian.PutUint16(rec[0:], ins.Op)
		rec[2] = ins.Jt
		rec[3] = ins.Jf
		binary.LittleEndian.PutUint32(rec[4:], ins.K)
		buf = append(buf, rec[:]...)
	}
	return buf
}

func TestParseRawAndSimulate(t *testing.T) {
	// 最小的真实形状：读调用号，42 放行，其余以 EPERM 拒绝
	raw := assemble(t, []bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 42, SkipTrue: 1},
		bpf.RetConstant{Val: RetErrno | 1},
		bpf.RetConstant{Val: RetAllow},
	})

	f, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw() error = %v", err)
	}
	if len(f) != 4 {
		t.Fatalf("ParseRaw() produced %d instructions, want 4", len(f))
	}

	tests := []struct {
		name string
		data Data
		want uint32
	}{
		{"matched syscall allowed", Data{NR: 42}, RetAllow},
		{"other syscall denied", Data{NR: 7}, RetErrno | 1},
		{"argument does not affect nr match", Data{NR: 42, Args: [6]uint64{9, 9, 9}}, RetAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Simulate(f, tt.data)
			if err != nil {
				t.Fatalf("Simulate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Simulate() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestSimulateArchGuard(t *testing.T) {
	// 架构守卫：audit 标识不符直接终止进程
	const arch = 0xc000003e
	raw := assemble(t, []bpf.Instruction{
		bpf.LoadAbsolute{Off: 4, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: arch, SkipTrue: 1},
		bpf.RetConstant{Val: RetKillProcess},
		bpf.RetConstant{Val: RetAllow},
	})

	f, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw() error = %v", err)
	}

	if got, _ := Simulate(f, Data{Arch: arch}); got != RetAllow {
		t.Errorf("native arch: Simulate() = %#x, want RetAllow", got)
	}
	if got, _ := Simulate(f, Data{Arch: 0x40000003}); got != RetKillProcess {
		t.Errorf("foreign arch: Simulate() = %#x, want RetKillProcess", got)
	}
}

func TestSimulateArgumentWords(t *testing.T) {
	// 参数寄存器按低 32 位字读取：args[1] 的低字在偏移 24
	raw := assemble(t, []bpf.Instruction{
		bpf.LoadAbsolute{Off: 24, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0xdeadbeef, SkipTrue: 1},
		bpf.RetConstant{Val: RetErrno | 13},
		bpf.RetConstant{Val: RetAllow},
	})

	f, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw() error = %v", err)
	}

	if got, _ := Simulate(f, Data{Args: [6]uint64{0, 0xdeadbeef}}); got != RetAllow {
		t.Errorf("low word match: Simulate() = %#x, want RetAllow", got)
	}
	// 高 32 位不同不影响低字比较
	if got, _ := Simulate(f, Data{Args: [6]uint64{0, 0xffffffff_deadbeef}}); got != RetAllow {
		t.Errorf("high word ignored: Simulate() = %#x, want RetAllow", got)
	}
	if got, _ := Simulate(f, Data{Args: [6]uint64{0xdeadbeef, 0}}); got != RetErrno|13 {
		t.Errorf("wrong argument: Simulate() = %#x, want RetErrno|13", got)
	}
}

func TestParseRawRejectsTruncated(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"partial instruction", make([]byte, 12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRaw(tt.raw); err == nil {
				t.Error("ParseRaw() accepted malformed input")
			}
		})
	}
}

func TestActionReturnCode(t *testing.T) {
	a := ActionErrno.WithReturnCode(1)
	if a.Action() != ActionErrno {
		t.Errorf("Action() = %v, want ActionErrno", a.Action())
	}
	if a.ReturnCode() != 1 {
		t.Errorf("ReturnCode() = %d, want 1", a.ReturnCode())
	}
	// 重复设置覆盖旧值
	if got := a.WithReturnCode(13).ReturnCode(); got != 13 {
		t.Errorf("ReturnCode() after reset = %d, want 13", got)
	}
}

func TestToScmpAction(t *testing.T) {
	tests := []struct {
		name string
		act  Action
		want libseccomp.ScmpAction
	}{
		{"allow", ActionAllow, libseccomp.ActAllow},
		{"errno", ActionErrno.WithReturnCode(1), libseccomp.ActErrno.SetReturnCode(1)},
		{"notify", ActionNotify, libseccomp.ActNotify},
		{"kill thread", ActionKillThread, libseccomp.ActKillThread},
		{"invalid falls back to kill process", Action(99), libseccomp.ActKillProcess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToScmpAction(tt.act); got != tt.want {
				t.Errorf("ToScmpAction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToSyscallName(t *testing.T) {
	// 用 libseccomp 的名字解析交叉验证号码表的一致性
	nr, err := libseccomp.GetSyscallFromName("write")
	if err != nil {
		t.Skipf("libseccomp cannot resolve write: %v", err)
	}

	name, err := ToSyscallName(int(nr))
	if err != nil {
		t.Fatalf("ToSyscallName(%d) error = %v", nr, err)
	}
	if name != "write" {
		t.Errorf("ToSyscallName(%d) = %q, want %q", nr, name, "write")
	}

	if _, err := ToSyscallName(999999); err == nil {
		t.Error("ToSyscallName(999999) succeeded, want error")
	}
}

// BenchmarkSimulate 测试一次解释执行的开销（自检路径逐条目运行它）
func BenchmarkSimulate(b *testing.B) {
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 42, SkipTrue: 1},
		bpf.RetConstant{Val: RetErrno | 1},
		bpf.RetConstant{Val: RetAllow},
	})
	if err != nil {
		b.Fatal(err)
	}
	f := make(Filter, 0, len(raw))
	for _, ins := range raw {
		f = append(f, syscall.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K})
	}

	d := Data{NR: 42}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Simulate(f, d); err != nil {
			b.Fatal(err)
		}
	}
}
