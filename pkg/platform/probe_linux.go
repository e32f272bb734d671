package platform

import (
	"sync"
	"unsafe"

	unix "golang.org/x/sys/unix"
)

// Caps 是一次探测出的平台能力集合。
//
// 三个 libc 谓词决定路径规则落在哪个系统调用、用什么调用约定上；
// 内核探测决定过滤器能不能装、违规能不能走用户态通知。
type Caps struct {
	LibcVersion     Version // C 运行库版本
	HaveLibcVersion bool    // 版本是否探测成功

	// UsesOpenatForOpen：libc 自 2.26 起在内部把 open 改写成 openat，
	// 针对 open 注册的路径规则必须按 openat 的调用约定安装
	UsesOpenatForOpen bool

	// UsesOpenatForOpendir：opendir 的改写区间不是单调的，
	// 2.15 引入、2.22 撤销、2.27 再次引入
	UsesOpenatForOpendir bool

	// NegativeConstantNeedsCast：自 2.27 起 AT_FDCWD 这类负数常量
	// 要按 32 位无符号重新解释后比较，而不是符号扩展后的 64 位值
	NegativeConstantNeedsCast bool

	HasSeccomp     bool // 内核是否编入了 seccomp 过滤
	HasUserNotify  bool // 内核是否支持用户态通知动作（5.0+）
	HasKillProcess bool // 内核是否支持整进程终止动作（4.14+）
}

// FromVersion 根据给定的 libc 版本计算三个谓词，内核探测保持零值。
// 版本探测失败时按旧版 libc 的保守行为处理（三个谓词全为假）。
// 测试夹具经由这里构造
func FromVersion(v Version, ok bool) Caps {
	c := Caps{LibcVersion: v, HaveLibcVersion: ok}
	if !ok {
		return c
	}
	c.UsesOpenatForOpen = usesOpenatForOpen(v)
	c.UsesOpenatForOpendir = usesOpenatForOpendir(v)
	c.NegativeConstantNeedsCast = negativeConstantNeedsCast(v)
	return c
}

func usesOpenatForOpen(v Version) bool {
	return v.AtLeast(2, 26)
}

func usesOpenatForOpendir(v Version) bool {
	return v.AtLeast(2, 27) || (v.AtLeast(2, 15) && v.Before(2, 22))
}

func negativeConstantNeedsCast(v Version) bool {
	return v.AtLeast(2, 27)
}

var (
	runtimeOnce sync.Once
	runtimeCaps Caps
)

// Runtime 返回当前进程所在平台的能力，结果只计算一次
func Runtime() Caps {
	runtimeOnce.Do(func() {
		v, ok := libcVersion()
		runtimeCaps = FromVersion(v, ok)
		runtimeCaps.HasSeccomp = hasSeccomp()
		runtimeCaps.HasUserNotify = hasAction(retUserNotif)
		runtimeCaps.HasKillProcess = hasAction(retKillProcess)
	})
	return runtimeCaps
}

// seccomp(2) 的操作号与动作值，老内核的头文件里未必有，自己定义
const (
	seccompGetActionAvail = 2 // SECCOMP_GET_ACTION_AVAIL

	retKillProcess uint32 = 0x80000000 // SECCOMP_RET_KILL_PROCESS
	retUserNotif   uint32 = 0x7fc00000 // SECCOMP_RET_USER_NOTIF
)

// hasSeccomp 用 prctl(PR_GET_SECCOMP) 探测：
// 返回 EINVAL 说明内核没有编入 seccomp，其余返回值都说明设施存在
func hasSeccomp() bool {
	_, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_GET_SECCOMP, 0, 0)
	return errno != unix.EINVAL
}

// hasAction 用 seccomp(SECCOMP_GET_ACTION_AVAIL) 查询动作可用性。
// 这条操作 4.14 才有，更老的内核返回 EINVAL，按不可用处理
func hasAction(action uint32) bool {
	_, _, errno := unix.RawSyscall(unix.SYS_SECCOMP,
		seccompGetActionAvail, 0, uintptr(unsafe.Pointer(&action)))
	return errno == 0
}
