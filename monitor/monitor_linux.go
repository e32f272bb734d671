/*
Package monitor 实现违规监视器。

过滤器把未放行的系统调用转成用户态通知；监视器 goroutine 驻留在
通知描述符上，逐条接收、写出诊断（被拦的调用名与全部调用栈），
再按处置策略应答 EPERM 或让整个进程退出。

通知路径上的纪律与信号处理器相同：不分配内存、不加锁、
不进入通用日志与格式化设施。那些设施自己也要做系统调用，
一旦没被放行就会递归触发同一条违规路径。诊断只用预分配缓冲
和原始 write 写到预先打开的描述符上。
*/
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"syscall"
	"time"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/sirupsen/logrus"
	unix "golang.org/x/sys/unix"

	"github.com/zqzqsb/confine/pkg/seccomp"
)

// Action 定义监视器对一次违规的处置
type Action int

const (
	// ActionDeny 写出诊断后以 EPERM 应答，进程继续运行（审计模式）
	ActionDeny Action = iota
	// ActionKill 写出诊断后整进程退出，不应答、不恢复
	ActionKill
)

// Violation 是一次被拦截的系统调用
type Violation struct {
	Syscall string    // 解析出的调用名，未知时为十进制数字串
	NR      int       // 系统调用号
	Arch    uint32    // 本构建的 audit 架构标识；外来架构的通知为 0
	Pid     uint32    // 发起调用的线程组
	Args    [6]uint64 // 原始参数寄存器
	Time    time.Time
}

// Monitor 驻留在通知描述符上的违规监视器。
// 预分配的 msg 与 stack 缓冲让通知路径保持零分配。
type Monitor struct {
	fd      libseccomp.ScmpFd
	act     Action
	diagFDs []int
	resolve func(int) (string, error)
	native  libseccomp.ScmpArch

	// OnViolation 在诊断写出之后、应答之前被调用（审计回调）。
	// 回调运行在监视器 goroutine 上，阻塞会拖住后续违规的应答
	OnViolation func(Violation)

	msg   [192]byte
	stack []byte
	log   *logrus.Entry
}

// New 创建监视器
//
// 参数：
//   - fd: 过滤器加载后取得的通知描述符
//   - act: 违规处置
//   - diagFDs: 预先打开的诊断输出描述符，空则用标准错误
func New(fd libseccomp.ScmpFd, act Action, diagFDs []int) *Monitor {
	if len(diagFDs) == 0 {
		diagFDs = []int{unix.Stderr}
	}
	native, err := libseccomp.GetNativeArch()
	if err != nil {
		native = libseccomp.ArchInvalid
	}
	return &Monitor{
		fd:      fd,
		act:     act,
		diagFDs: diagFDs,
		resolve: seccomp.ToSyscallName,
		native:  native,
		stack:   make([]byte, 64<<10),
		log:     logrus.WithField("component", "monitor"),
	}
}

/*
Serve 阻塞接收并处理违规通知。

每条通知的处理顺序：
 1. NotifIDValid 复核请求仍然有效，确认它确实来自本进程的
    过滤器而不是陈旧或伪造的请求（TOCTOU 检查）；
 2. 解析调用名并把诊断与调用栈写到诊断描述符；
 3. 触发 OnViolation 回调；
 4. 按处置策略应答 EPERM，或者直接 exit_group 整进程退出。

返回值：
  - error: 通知描述符失效或内核交互失败；处置为 ActionKill 时
    一旦发生违规 Serve 不会返回（进程已退出）

注意：
 1. 接收阻塞在内核里，ctx 的取消要等下一条通知才被看到；
    过滤器不可撤销，监视器与进程同寿命，不设关停路径。
 2. 目标线程在应答前被信号打断时内核作废请求（ENOENT），
    这不是错误，跳过继续。
*/
func (m *Monitor) Serve(ctx context.Context) error {
	m.log.Debug("violation monitor running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := libseccomp.NotifReceive(m.fd)
		if err != nil {
			if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.ENOENT) {
				continue
			}
			return fmt.Errorf("monitor: receive notification: %w", err)
		}

		// TOCTOU：应答之前确认请求 ID 仍然有效
		if err := libseccomp.NotifIDValid(m.fd, req.ID); err != nil {
			continue
		}

		m.report(req)

		if m.OnViolation != nil {
			m.OnViolation(m.violation(req))
		}

		if m.act == ActionKill {
			// 与父进程约定的违规退出码；exit_group 终止所有线程
			unix.Exit(1)
		}

		if err := libseccomp.NotifRespond(m.fd, denyResponse(req.ID)); err != nil {
			if errors.Is(err, syscall.ENOENT) {
				continue
			}
			return fmt.Errorf("monitor: respond: %w", err)
		}
	}
}

// denyResponse 构造拒绝应答。内核把 error 字段原样写进被拦调用的
// 返回寄存器，负的 errno 才会被 libc 翻译成出错返回，
// 正数会被调用方当成成功的返回值
func denyResponse(id uint64) *libseccomp.ScmpNotifResp {
	return &libseccomp.ScmpNotifResp{
		ID:    id,
		Error: -int32(unix.EPERM),
		Val:   0,
		Flags: 0,
	}
}

// report 把诊断写到所有诊断描述符上。
// 只用预分配缓冲与原始 write，途中零分配、零锁
func (m *Monitor) report(req *libseccomp.ScmpNotifReq) {
	buf := m.msg[:0]
	buf = append(buf, "\n============ sandbox violation ============\n"...)
	buf = append(buf, "(sandbox) caught a bad syscall attempt (syscall "...)

	name := ""
	if req.Data.Arch == m.native {
		if n, err := m.resolve(int(req.Data.Syscall)); err == nil {
			name = n
		}
	}
	if name != "" {
		buf = append(buf, name...)
	} else {
		buf = appendUint(buf, uint64(uint32(req.Data.Syscall)))
	}
	buf = append(buf, ")\n"...)

	for _, fd := range m.diagFDs {
		unix.Write(fd, buf)
	}

	// 全部 goroutine 的原始调用栈，写进预分配缓冲
	n := runtime.Stack(m.stack, true)
	for _, fd := range m.diagFDs {
		unix.Write(fd, m.stack[:n])
	}
}

// violation 把一条通知整理成 Violation 记录。
// 只在诊断写完之后调用，这里允许分配
func (m *Monitor) violation(req *libseccomp.ScmpNotifReq) Violation {
	v := Violation{
		NR:   int(req.Data.Syscall),
		Pid:  req.Pid,
		Time: time.Now(),
	}
	copy(v.Args[:], req.Data.Args)

	if req.Data.Arch == m.native {
		v.Arch = nativeAuditArch
		if n, err := m.resolve(v.NR); err == nil {
			v.Syscall = n
		}
	}
	if v.Syscall == "" {
		v.Syscall = strconv.Itoa(v.NR)
	}
	return v
}

// appendUint 追加十进制数字，不经过 fmt
func appendUint(buf []byte, v uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return append(buf, tmp[i:]...)
}
