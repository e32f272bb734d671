package monitor

// AUDIT_ARCH_ARM
const nativeAuditArch uint32 = 0x40000028
