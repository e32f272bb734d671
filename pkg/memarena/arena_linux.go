// Package memarena 提供受保护的字符串驻留区。
//
// 驻留区是一段一次性 mmap 出来的匿名私有内存：前面是固定大小的哨兵区，
// 后面紧凑排列着去重后的 NUL 结尾字符串副本。Seal 之后整段内存被
// mprotect 成只读，并且在进程的余下生命周期里永不 munmap：
// 内核过滤规则要拿副本地址做指针相等比较，副本必须比过滤器活得久。
package memarena

import (
	"errors"
	"fmt"
	"unsafe"

	unix "golang.org/x/sys/unix"
)

// DefaultCanary 是哨兵区的默认大小。
// 哨兵必须大于激活之后进程内依赖库单次申请的最大临时内存
// （例如压缩库的内部缓冲区），这样无关的读写映射永远落在
// mprotect 放行窗口之内，不会撞到保护区本身。
const DefaultCanary Size = 20 << 20

var (
	// ErrArenaFull 表示预计算的载荷容量被耗尽。
	// 这是内部记账错误而不是使用错误：容量按注册表逐字节求和得出，
	// 被耗尽说明求和与写入不一致，安装必须中止
	ErrArenaFull = errors.New("memarena: out of reserved space")

	// ErrSealed 表示区域已经只读，不再接受新字符串
	ErrSealed = errors.New("memarena: arena already sealed")
)

// Ref 指向驻留区内的一个字符串副本。
// off 是相对映射基址的偏移，n 是不含结尾 NUL 的字节数
type Ref struct {
	off int
	n   int
}

// Len 返回副本的字节数（不含结尾 NUL）
func (r Ref) Len() int { return r.n }

// Arena 是一段字符串保护区。
//
// 驻留表 index 只在构建阶段存在（规范说法：一次编译过程内的瞬态结构），
// Seal 时随手丢弃；之后的内容查询走注册表扫描，不再需要哈希表。
type Arena struct {
	mem    []byte         // mmap 映射：哨兵 + 字符串载荷
	canary int            // 哨兵区字节数
	off    int            // 下一个空闲偏移
	sealed bool           // Seal 之后为真
	index  map[string]Ref // 驻留表，Seal 时丢弃
}

// New 预留 canary+payload 字节的匿名私有读写映射。
//
// 参数：
//   - canary: 哨兵区大小，0 表示 DefaultCanary
//   - payload: 字符串载荷的字节上界，按每个字符串 len+1 求和；
//     偏大可以接受（换简单），偏小会让后续 Intern 失败
//
// 返回值：
//   - *Arena: 尚未密封的驻留区
//   - error: mmap 失败
func New(canary Size, payload int) (*Arena, error) {
	if canary == 0 {
		canary = DefaultCanary
	}
	if payload < 0 {
		return nil, fmt.Errorf("memarena: negative payload %d", payload)
	}

	mem, err := unix.Mmap(-1, 0, int(canary)+payload,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memarena: mmap %v: %w", canary+Size(payload), err)
	}

	return &Arena{
		mem:    mem,
		canary: int(canary),
		off:    int(canary), // 第一个字符串紧贴哨兵区之后
		index:  make(map[string]Ref),
	}, nil
}

// Intern 返回 s 在驻留区内的唯一副本。
// 内容相同的字符串只存一份；新字符串紧凑追加并补上 NUL，
// 内核最终比较的是 C 字符串的地址，副本必须是合法的 C 字符串
func (a *Arena) Intern(s string) (Ref, error) {
	if a.sealed {
		return Ref{}, ErrSealed
	}
	if r, ok := a.index[s]; ok {
		return r, nil
	}
	if a.off+len(s)+1 > len(a.mem) {
		return Ref{}, ErrArenaFull
	}

	r := Ref{off: a.off, n: len(s)}
	copy(a.mem[a.off:], s)
	a.mem[a.off+len(s)] = 0
	a.off += len(s) + 1
	a.index[s] = r
	return r, nil
}

// Seal 把整段区域改成只读并丢弃驻留表。
// 此后区域的内容和地址永久冻结；重复调用无害
func (a *Arena) Seal() error {
	if a.sealed {
		return nil
	}
	if err := unix.Mprotect(a.mem, unix.PROT_READ); err != nil {
		return fmt.Errorf("memarena: mprotect read-only: %w", err)
	}
	a.sealed = true
	a.index = nil
	return nil
}

// Sealed 报告区域是否已经只读
func (a *Arena) Sealed() bool { return a.sealed }

// Base 返回映射的起始地址
func (a *Arena) Base() uintptr { return uintptr(unsafe.Pointer(&a.mem[0])) }

// End 返回映射结束后的第一个地址
func (a *Arena) End() uintptr { return a.Base() + uintptr(len(a.mem)) }

// Canary 返回哨兵区字节数
func (a *Arena) Canary() int { return a.canary }

// Addr 返回 r 指向副本的进程内地址，即过滤规则的比较操作数
func (a *Arena) Addr(r Ref) uintptr { return a.Base() + uintptr(r.off) }

// Ptr 返回副本首字节的指针，可直接作为系统调用的路径实参
func (a *Arena) Ptr(r Ref) *byte { return &a.mem[r.off] }

// String 把 r 还原成字符串。
// 零拷贝：返回值的底层数据就是驻留区内存，Seal 之后不可变，
// 因此它的数据指针与 Addr(r) 相同
func (a *Arena) String(r Ref) string {
	return unsafe.String(&a.mem[r.off], r.n)
}
