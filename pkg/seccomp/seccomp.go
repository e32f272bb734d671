package seccomp

// Action 定义了系统调用的处置动作。
// 在内部表示中，Action 是一个 32 位无符号整数：
// - 低 16 位是基本动作（放行、拒绝、通知等）
// - 高 16 位是附加数据（拒绝时返回的错误码）
type Action uint32

// Action 常量定义，从 1 开始递增，确保 0 值无效
const (
	ActionInvalid     Action = iota // 无效动作
	ActionAllow                     // 放行系统调用
	ActionErrno                     // 以附加数据里的错误码拒绝
	ActionNotify                    // 转交用户态通知监视器
	ActionKillThread                // 终止发起调用的线程
	ActionKillProcess               // 终止整个进程
)

// ReturnCode 获取动作的返回码
func (a Action) ReturnCode() uint16 {
	return uint16(a >> 16)
}

// WithReturnCode 设置动作的返回码
func (a Action) WithReturnCode(code uint16) Action {
	return a.Action() | Action(code)<<16
}

// Action 获取基本动作（不含返回码）
func (a Action) Action() Action {
	return Action(a & 0xffff)
}
