package seccomp

import (
	libseccomp "github.com/seccomp/libseccomp-golang"
)

// ToScmpAction 将我们的 Action 类型转换为 libseccomp 的动作类型
//
// 参数：
//   - a: 我们定义的 Action 类型
//
// 返回值：
//   - libseccomp.ScmpAction: libseccomp 使用的动作类型
//
// 转换对应关系：
//   - ActionAllow      -> ActAllow      (放行)
//   - ActionErrno      -> ActErrno      (带错误码拒绝)
//   - ActionNotify     -> ActNotify     (用户态通知)
//   - ActionKillThread -> ActKillThread (终止线程)
//   - 其他             -> ActKillProcess (保守兜底：终止进程)
func ToScmpAction(a Action) libseccomp.ScmpAction {
	switch a.Action() {
	case ActionAllow:
		return libseccomp.ActAllow
	case ActionErrno:
		// 错误码放在动作的高 16 位里，对应 SECCOMP_RET_DATA
		return libseccomp.ActErrno.SetReturnCode(int16(a.ReturnCode()))
	case ActionNotify:
		return libseccomp.ActNotify
	case ActionKillThread:
		return libseccomp.ActKillThread
	default:
		return libseccomp.ActKillProcess
	}
}
