// Package seccomp 提供过滤器程序的通用表示。
// seccomp (secure computing mode) 是 Linux 内核提供的安全机制，
// 用于限制进程可以使用的系统调用。本包不构建策略本身，
// 只负责动作类型、编译产物的字节表示，以及把产物放回用户态
// 解释器核对的工具。过滤器一旦装进内核就不可逆，
// 正确性检查必须发生在加载之前。
package seccomp

import (
	"encoding/binary"
	"fmt"
	"syscall"

	"golang.org/x/net/bpf"
)

// Filter 是 BPF (Berkeley Packet Filter) 格式的 seccomp 过滤器。
// 每个 SockFilter 结构体是一条内核虚拟机指令，包含：
// - Code: 操作码（加载、条件跳转、返回等）
// - Jt/Jf: 条件跳转的真假目标
// - K: 立即数值或偏移
type Filter []syscall.SockFilter

// ParseRaw 解析导出的原始过滤器字节流。
// 每条指令 8 字节：u16 code、u8 jt、u8 jf、u32 k，
// 按小端编码（本模块支持的四种架构都是小端）。
func ParseRaw(raw []byte) (Filter, error) {
	if len(raw) == 0 || len(raw)%8 != 0 {
		return nil, fmt.Errorf("seccomp: truncated program of %d bytes", len(raw))
	}

	f := make(Filter, 0, len(raw)/8)
	for off := 0; off < len(raw); off += 8 {
		f = append(f, syscall.SockFilter{
			Code: binary.LittleEndian.Uint16(raw[off:]),
			Jt:   raw[off+2],
			Jf:   raw[off+3],
			K:    binary.LittleEndian.Uint32(raw[off+4:]),
		})
	}
	return f, nil
}

// Instructions 将过滤器反汇编为 x/net/bpf 的指令表示，
// 供解释器执行或打印排查
func (f Filter) Instructions() ([]bpf.Instruction, error) {
	raw := make([]bpf.RawInstruction, 0, len(f))
	for _, ins := range f {
		raw = append(raw, bpf.RawInstruction{
			Op: ins.Code,
			Jt: ins.Jt,
			Jf: ins.Jf,
			K:  ins.K,
		})
	}

	insns, allDecoded := bpf.Disassemble(raw)
	if !allDecoded {
		return nil, fmt.Errorf("seccomp: program contains undecodable instructions")
	}
	return insns, nil
}
