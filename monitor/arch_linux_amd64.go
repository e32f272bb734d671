package monitor

// AUDIT_ARCH_X86_64
const nativeAuditArch uint32 = 0xc000003e
