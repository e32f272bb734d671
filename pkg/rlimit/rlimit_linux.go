// Package rlimit 收紧进程自身的内核资源限制
package rlimit

import (
	"fmt"

	unix "golang.org/x/sys/unix"
)

// DisableCoreDumps 把 RLIMIT_CORE 的软硬上限清零。
// 核心转储会把进程内存整段落盘，受保护的字符串区也在其中。
// 降低上限不需要特权；硬限清零后本进程再也抬不回去
func DisableCoreDumps() error {
	lim := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &lim); err != nil {
		return fmt.Errorf("rlimit: disable core dumps: %w", err)
	}
	return nil
}

// CoreLimit 读回当前的 RLIMIT_CORE 设置
func CoreLimit() (unix.Rlimit, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &lim); err != nil {
		return unix.Rlimit{}, fmt.Errorf("rlimit: read core limit: %w", err)
	}
	return lim, nil
}
