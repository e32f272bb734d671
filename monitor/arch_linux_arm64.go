package monitor

// AUDIT_ARCH_AARCH64
const nativeAuditArch uint32 = 0xc00000b7
