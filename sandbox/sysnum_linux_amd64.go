package sandbox

import unix "golang.org/x/sys/unix"

// AUDIT_ARCH_X86_64
const nativeAuditArch uint32 = 0xc000003e

// 本架构保留按路径直调的老式调用
const (
	hasDirectPathCalls = true

	sysOpen     = unix.SYS_OPEN
	sysStat     = unix.SYS_STAT
	sysRename   = unix.SYS_RENAME
	sysChmod    = unix.SYS_CHMOD
	sysChown    = unix.SYS_CHOWN
	sysFstatat  = unix.SYS_NEWFSTATAT
	sysRenameat = unix.SYS_RENAMEAT
	sysFchmodat = unix.SYS_FCHMODAT
	sysFchownat = unix.SYS_FCHOWNAT
)
