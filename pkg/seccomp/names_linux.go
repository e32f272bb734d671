package seccomp

import (
	"fmt"

	"github.com/elastic/go-seccomp-bpf/arch"
)

// arch.GetInfo("") 返回当前架构（x86_64、arm64 等）的系统调用映射表。
// 表在包初始化时加载一次，之后的查询只读，违规监视器在
// 通知路径上查它不会引起分配。
var info, errInfo = arch.GetInfo("")

// ToSyscallName 把系统调用号转换为名称
//
// 参数：
//   - sysno: 当前架构上的系统调用号
//
// 返回值：
//   - string: 系统调用名称（如 "openat"）
//   - error: 架构信息不可用，或调用号在当前架构上不存在
func ToSyscallName(sysno int) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}

	n, ok := info.SyscallNumbers[sysno]
	if !ok {
		return "", fmt.Errorf("seccomp: unknown syscall number %d", sysno)
	}
	return n, nil
}
