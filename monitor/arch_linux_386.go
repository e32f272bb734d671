package monitor

// AUDIT_ARCH_I386
const nativeAuditArch uint32 = 0x40000003
