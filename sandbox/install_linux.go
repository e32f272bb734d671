package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/sirupsen/logrus"
	unix "golang.org/x/sys/unix"

	"github.com/zqzqsb/confine/monitor"
	"github.com/zqzqsb/confine/pkg/platform"
	"github.com/zqzqsb/confine/pkg/rlimit"
	"github.com/zqzqsb/confine/pkg/seccomp"
)

/*
Install 编译并装载过滤器，整个进程自此被禁闭。

流程（任何一步失败都不会留下半生效的过滤器）：
 1. 闸门：本实例进入安装期，进程级闸门拒绝第二次安装；
 2. 平台探测，内核没有 seccomp 能力立即以 ErrUnsupported 软失败；
 3. 选定默认处置：errno 模式表外调用直接 EPERM，audit 和
    terminate 需要内核的用户态通知能力，不具备则降级回 errno；
 4. 驻留路径字符串、编译参数规则与无参数表；
 5. 可选自检：用解释器回放例外表确认每条都被放行，再探一条
    表外调用确认默认动作生效；
 6. 可选清零 RLIMIT_CORE；
 7. 设置 LIBC_FATAL_STDERR_，glibc 报致命错误时不再去开
    /dev/tty（那次 open 不会被放行）；
 8. 载入内核并同步到全部线程，从这一刻起不可撤销；
 9. 通知模式取出通知描述符，拉起监视器 goroutine；
10. 标记生效。

返回值：
  - nil: 过滤器已生效
  - ErrUnsupported: 平台不支持，进程继续无保护运行
  - ErrActive: 本进程已经装载过
  - 其它: 编译或装载失败，调用方应当中止启动

注意：
 1. audit/terminate 模式要求内核 5.7+，TSYNC 与通知监听并用
    在更老的内核上装载会失败；
 2. 安装失败时内核没有装入任何过滤器，实例连同例外表退回
    配置期，修正后可以重试；唯一的例外是第 9 步拿不到通知
    描述符，过滤器已经生效，只能中止进程。
*/
func (s *Sandbox) Install() error {
	if !s.stage.CompareAndSwap(stageConfig, stageInstalling) {
		return ErrActive
	}
	if !installed.CompareAndSwap(false, true) {
		s.stage.Store(stageConfig)
		return ErrActive
	}

	s.caps = platform.Runtime()
	if !s.caps.HasSeccomp {
		installed.Store(false)
		s.stage.Store(stageConfig)
		s.log.Warn("kernel lacks seccomp support, running unprotected")
		return ErrUnsupported
	}

	// 失败即回退：释放进程闸门，条目还原成堆上副本，实例退回
	// 配置期。载入内核之前的任何失败都走这里
	var b *builder
	fail := func(err error) error {
		if b != nil {
			b.restoreEntries()
		}
		installed.Store(false)
		s.stage.Store(stageConfig)
		return err
	}

	act := seccomp.ActionErrno.WithReturnCode(uint16(unix.EPERM))
	useNotify := false
	if s.opts.Violation != ViolationErrno {
		if s.notifySupported() {
			act = seccomp.ActionNotify
			useNotify = true
		} else {
			s.log.Warn("user notification unavailable, falling back to errno policy")
		}
	}

	b, err := newBuilder(s.caps, s.opts, s.entries, seccomp.ToScmpAction(act))
	if err != nil {
		return fail(err)
	}
	defer b.release()

	if err := b.build(); err != nil {
		return fail(err)
	}

	if s.opts.SelfCheck {
		if err := b.selfCheck(); err != nil {
			return fail(err)
		}
	}

	if s.opts.DisableCoreDumps {
		if err := rlimit.DisableCoreDumps(); err != nil {
			return fail(fmt.Errorf("sandbox: %w", err))
		}
	}

	if err := os.Setenv("LIBC_FATAL_STDERR_", "1"); err != nil {
		return fail(fmt.Errorf("sandbox: set LIBC_FATAL_STDERR_: %w", err))
	}

	if err := b.filter.Load(); err != nil {
		return fail(fmt.Errorf("sandbox: load filter: %w", err))
	}

	if useNotify {
		fd, err := b.filter.GetNotifFd()
		if err != nil {
			// 过滤器已生效而监视器起不来，之后每次违规都会悬死
			// 在无人应答的通知上，只能硬失败让进程退出
			return fmt.Errorf("sandbox: notification fd: %w", err)
		}
		act := monitor.ActionDeny
		if s.opts.Violation == ViolationTerminate {
			act = monitor.ActionKill
		}
		s.mon = monitor.New(fd, act, s.opts.DiagnosticFDs)
		go func() {
			err := s.mon.Serve(context.Background())
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Error("violation monitor exited")
			}
		}()
	}

	s.arena = b.arena
	s.stage.Store(stageActive)
	s.log.WithFields(logrus.Fields{
		"entries":   len(s.entries),
		"violation": s.opts.Violation.String(),
		"notify":    useNotify,
	}).Info("seccomp filter installed")
	return nil
}

// notifySupported 通知处置要求内核能力与 libseccomp 2.5 的 API 级别
func (s *Sandbox) notifySupported() bool {
	if !s.caps.HasUserNotify {
		return false
	}
	api, err := libseccomp.GetAPI()
	return err == nil && api >= 6
}

/*
selfCheck 载入前的最后防线。

把编译出的 BPF 程序放进用户态解释器，逐条例外构造出对应的
调用现场（调用号、架构标识、寄存器取值与运行期封装完全一致），
确认每条都得到放行判决。过滤器载入后没有第二次机会，解释器
回放是唯一无副作用的验证手段。
*/
func (b *builder) selfCheck() error {
	prog, err := exportProgram(b.filter)
	if err != nil {
		return err
	}

	for i := range b.entries {
		e := &b.entries[i]
		for _, d := range b.checkData(e) {
			ret, err := seccomp.Simulate(prog, d)
			if err != nil {
				return fmt.Errorf("sandbox: self check %s: %w", e.kind, err)
			}
			if ret != seccomp.RetAllow {
				return fmt.Errorf("sandbox: self check %s %q: verdict %#x",
					e.kind, b.arena.String(e.a.ref), ret)
			}
		}
	}

	// 反向探针：拿一条表外调用确认默认动作没被误配成放行
	if nr, ok := b.resolve("ptrace"); ok {
		ret, err := seccomp.Simulate(prog, seccomp.Data{
			NR: int32(nr), Arch: nativeAuditArch,
		})
		if err != nil {
			return fmt.Errorf("sandbox: self check default action: %w", err)
		}
		if ret == seccomp.RetAllow {
			return fmt.Errorf("sandbox: self check: ptrace got an allow verdict")
		}
	}
	return nil
}

// checkData 构造一条例外对应的调用现场，调用与寄存器取值跟
// 运行期封装发出的一致。解析不出目标调用时返回空，跳过该条
func (b *builder) checkData(e *entry) []seccomp.Data {
	var (
		name string
		args [6]uint64
	)
	a := uint64(b.arena.Addr(e.a.ref))
	fdcwd := atFdcwdValue(b.caps)

	switch e.kind {
	case kindOpen, kindOpenDir:
		useOpenat := b.caps.UsesOpenatForOpen || !hasDirectPathCalls
		if e.kind == kindOpenDir {
			useOpenat = b.caps.UsesOpenatForOpendir || !hasDirectPathCalls
		}
		if useOpenat {
			name = "openat"
			args[0] = fdcwd
			args[1] = a
		} else {
			name = "open"
			args[0] = a
		}
	case kindOpenat:
		name = "openat"
		args[0] = fdcwd
		args[1] = a
		args[2] = dirOpenFlags
	case kindStat:
		if hasDirectPathCalls {
			name = "stat"
			args[0] = a
		} else {
			name = "newfstatat"
			args[0] = fdcwd
			args[1] = a
		}
	case kindRename:
		if hasDirectPathCalls {
			name = "rename"
			args[0] = a
			args[1] = uint64(b.arena.Addr(e.b.ref))
		} else {
			name = "renameat"
			args[0] = fdcwd
			args[1] = a
			args[2] = fdcwd
			args[3] = uint64(b.arena.Addr(e.b.ref))
		}
	case kindChmod:
		if hasDirectPathCalls {
			name = "chmod"
			args[0] = a
		} else {
			name = "fchmodat"
			args[0] = fdcwd
			args[1] = a
		}
	case kindChown:
		if hasDirectPathCalls {
			name = "chown"
			args[0] = a
		} else {
			name = "fchownat"
			args[0] = fdcwd
			args[1] = a
		}
	}

	nr, ok := b.resolve(name)
	if !ok {
		return nil
	}
	return []seccomp.Data{{
		NR:   int32(nr),
		Arch: nativeAuditArch,
		Args: args,
	}}
}
