package sandbox

import "github.com/zqzqsb/confine/pkg/memarena"

// ViolationPolicy 定义违规系统调用的处置方式
type ViolationPolicy int

const (
	// ViolationErrno 内核直接以 EPERM 拒绝，不惊动用户态。
	// 开销最低，但没有任何诊断输出
	ViolationErrno ViolationPolicy = iota
	// ViolationAudit 违规转用户态通知：监视器写出诊断后以 EPERM
	// 应答，进程继续运行。用于排查策略缺口
	ViolationAudit
	// ViolationTerminate 违规转用户态通知：监视器写出诊断后
	// 整进程退出。生产环境的 fail-closed 处置
	ViolationTerminate
)

func (p ViolationPolicy) String() string {
	switch p {
	case ViolationErrno:
		return "errno"
	case ViolationAudit:
		return "audit"
	case ViolationTerminate:
		return "terminate"
	default:
		return "invalid"
	}
}

// Options 配置沙箱行为，零值即合理默认
type Options struct {
	// Violation 违规处置，默认 ViolationErrno。
	// 另两种模式依赖内核的用户态通知能力（5.0+），不可用时
	// Install 自动回落到 ViolationErrno 并记录日志
	Violation ViolationPolicy

	// Canary 驻留区基址前预留的空间，配合围栏规则拦截
	// 对驻留区相邻页的改权尝试。默认 20 MiB
	Canary memarena.Size

	// DiagnosticFDs 违规诊断的输出描述符，必须在 Install 前
	// 打开。空则写标准错误
	DiagnosticFDs []int

	// DisableCoreDumps 安装时把 RLIMIT_CORE 清零，
	// 防止核心转储泄漏进程内存。默认关闭
	DisableCoreDumps bool

	// SelfCheck 载入前用解释器对编译出的过滤程序做一轮
	// 自检：逐条回放登记项对应的调用参数，确认全部放行。
	// 只在调试构建打开，生产安装路径不需要
	SelfCheck bool

	// SocketActivation 放行继承监听套接字所需的少量
	// setsockopt 选项（SO_SNDBUFFORCE 等）
	SocketActivation bool

	// QueueProbes 放行发送队列探测（ioctl SIOCOUTQNSD 与
	// TCP_INFO），供拥塞自适应的调用方使用
	QueueProbes bool
}
