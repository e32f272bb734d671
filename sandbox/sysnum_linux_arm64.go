package sandbox

import unix "golang.org/x/sys/unix"

// AUDIT_ARCH_AARCH64
const nativeAuditArch uint32 = 0xc00000b7

// arm64 砍掉了按路径直调的老式调用，全部走 *at 形式
const (
	hasDirectPathCalls = false

	sysOpen     = 0
	sysStat     = 0
	sysRename   = 0
	sysChmod    = 0
	sysChown    = 0
	sysFstatat  = unix.SYS_FSTATAT
	sysRenameat = unix.SYS_RENAMEAT
	sysFchmodat = unix.SYS_FCHMODAT
	sysFchownat = unix.SYS_FCHOWNAT
)
