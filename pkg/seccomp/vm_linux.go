package seccomp

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/bpf"
)

// 内核的过滤器返回动作值（SECCOMP_RET_*）
const (
	RetKillProcess uint32 = 0x80000000 // 终止整个进程
	RetKillThread  uint32 = 0x00000000 // 终止发起调用的线程
	RetTrap        uint32 = 0x00030000 // 投递 SIGSYS
	RetErrno       uint32 = 0x00050000 // 以低 16 位的错误码拒绝
	RetUserNotif   uint32 = 0x7fc00000 // 转交用户态通知
	RetAllow       uint32 = 0x7fff0000 // 放行

	RetActionMask uint32 = 0xffff0000 // 动作掩码（SECCOMP_RET_ACTION_FULL）
	RetDataMask   uint32 = 0x0000ffff // 附加数据掩码
)

// Data 对应内核传给过滤器的 struct seccomp_data
type Data struct {
	NR   int32     // 系统调用号
	Arch uint32    // 发起调用的 audit 架构标识
	IP   uint64    // 指令指针
	Args [6]uint64 // 六个原始参数寄存器
}

// pack 把 seccomp_data 编码成解释器可读的数据。
// 内核按主机小端读取每个 32 位字；x/net/bpf 的解释器沿用
// 抓包语义按大端读取，所以这里逐字转成大端，偏移保持不变。
func (d Data) pack() []byte {
	buf := make([]byte, 64)
	binary.BigEndian.PutUint32(buf[0:], uint32(d.NR))
	binary.BigEndian.PutUint32(buf[4:], d.Arch)
	binary.BigEndian.PutUint32(buf[8:], uint32(d.IP))
	binary.BigEndian.PutUint32(buf[12:], uint32(d.IP>>32))
	for i, a := range d.Args {
		binary.BigEndian.PutUint32(buf[16+8*i:], uint32(a))
		binary.BigEndian.PutUint32(buf[20+8*i:], uint32(a>>32))
	}
	return buf
}

// Simulate 在用户态解释器里对一份 seccomp_data 运行过滤器，
// 返回内核将会采用的动作值。
// 过滤器始终不会被加载，进程状态不受影响：
// 安装是不可逆的，加载前的语义核对只能在解释器里做。
func Simulate(f Filter, d Data) (uint32, error) {
	insns, err := f.Instructions()
	if err != nil {
		return 0, err
	}

	vm, err := bpf.NewVM(insns)
	if err != nil {
		return 0, fmt.Errorf("seccomp: build interpreter: %w", err)
	}

	ret, err := vm.Run(d.pack())
	if err != nil {
		return 0, fmt.Errorf("seccomp: interpret program: %w", err)
	}
	return uint32(ret), nil
}
