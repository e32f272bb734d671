package sandbox

import unix "golang.org/x/sys/unix"

// AUDIT_ARCH_I386
const nativeAuditArch uint32 = 0x40000003

// 32 位上 stat 族走 64 位扩展版本，与 libc 的选择一致
const (
	hasDirectPathCalls = true

	sysOpen     = unix.SYS_OPEN
	sysStat     = unix.SYS_STAT64
	sysRename   = unix.SYS_RENAME
	sysChmod    = unix.SYS_CHMOD
	sysChown    = unix.SYS_CHOWN
	sysFstatat  = unix.SYS_FSTATAT64
	sysRenameat = unix.SYS_RENAMEAT
	sysFchmodat = unix.SYS_FCHMODAT
	sysFchownat = unix.SYS_FCHOWNAT
)
