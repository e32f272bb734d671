package sandbox

import (
	"unsafe"

	unix "golang.org/x/sys/unix"

	"github.com/zqzqsb/confine/pkg/platform"
)

/*
生效期的系统调用封装。

路径例外按指针判等，而标准库在入口处就把路径拷贝进自己的
缓冲（BytePtrFromString），拷贝的地址永远不会命中规则。受路径
规则约束的调用因此必须经由这里的原始转发：封装把路径收拢到
驻留副本的地址上，寄存器取值与编译进过滤器的规则一字不差。

错误语义与内核一致，EINTR 不重试，由调用方处理。
*/

// pathPtr 取路径的 C 字符串指针。
// 有驻留副本时直接取驻留区地址（写入时带了 NUL 结尾）；
// 没有时拷出带 NUL 的临时副本，后者只在沙箱未激活时走得通
func (s *Sandbox) pathPtr(path string) (*byte, error) {
	if s.Active() {
		if interned, ok := s.lookup(path); ok {
			return unsafe.StringData(interned), nil
		}
	}
	return unix.BytePtrFromString(path)
}

func openat(caps platform.Caps, p *byte, flags int, mode uint32) (int, error) {
	fd, _, errno := unix.Syscall6(unix.SYS_OPENAT,
		uintptr(atFdcwdValue(caps)),
		uintptr(unsafe.Pointer(p)),
		uintptr(flags), uintptr(mode), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

// Open 打开登记过的路径。落在 open 还是 openat 上跟随 libc
// 探测结果，与编译出的规则形态保持一致
func (s *Sandbox) Open(path string, flags int, mode uint32) (int, error) {
	p, err := s.pathPtr(path)
	if err != nil {
		return -1, err
	}
	if s.caps.UsesOpenatForOpen || !hasDirectPathCalls {
		return openat(s.caps, p, flags, mode)
	}
	fd, _, errno := unix.Syscall(sysOpen,
		uintptr(unsafe.Pointer(p)), uintptr(flags), uintptr(mode))
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

// OpenDir 以目录方式打开登记过的路径，返回目录描述符
func (s *Sandbox) OpenDir(path string) (int, error) {
	p, err := s.pathPtr(path)
	if err != nil {
		return -1, err
	}
	if s.caps.UsesOpenatForOpendir || !hasDirectPathCalls {
		return openat(s.caps, p, dirOpenFlags, 0)
	}
	fd, _, errno := unix.Syscall(sysOpen,
		uintptr(unsafe.Pointer(p)), uintptr(dirOpenFlags), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

// OpenatDir 强制经由 openat 以目录方式打开，对应显式登记的
// openat 例外，不看 libc 探测结果
func (s *Sandbox) OpenatDir(path string) (int, error) {
	p, err := s.pathPtr(path)
	if err != nil {
		return -1, err
	}
	return openat(s.caps, p, dirOpenFlags, 0)
}

// Stat 查询登记过的路径，结果写进 st
func (s *Sandbox) Stat(path string, st *unix.Stat_t) error {
	p, err := s.pathPtr(path)
	if err != nil {
		return err
	}
	if !hasDirectPathCalls {
		_, _, errno := unix.Syscall6(sysFstatat,
			uintptr(atFdcwdValue(s.caps)),
			uintptr(unsafe.Pointer(p)),
			uintptr(unsafe.Pointer(st)), 0, 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	}
	_, _, errno := unix.Syscall(sysStat,
		uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(st)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Rename 把登记过的源路径改名到登记过的目标路径，单向
func (s *Sandbox) Rename(from, to string) error {
	pf, err := s.pathPtr(from)
	if err != nil {
		return err
	}
	pt, err := s.pathPtr(to)
	if err != nil {
		return err
	}
	if !hasDirectPathCalls {
		_, _, errno := unix.Syscall6(sysRenameat,
			uintptr(atFdcwdValue(s.caps)), uintptr(unsafe.Pointer(pf)),
			uintptr(atFdcwdValue(s.caps)), uintptr(unsafe.Pointer(pt)),
			0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	}
	_, _, errno := unix.Syscall(sysRename,
		uintptr(unsafe.Pointer(pf)), uintptr(unsafe.Pointer(pt)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Chmod 修改登记过的路径的权限位
func (s *Sandbox) Chmod(path string, mode uint32) error {
	p, err := s.pathPtr(path)
	if err != nil {
		return err
	}
	if !hasDirectPathCalls {
		_, _, errno := unix.Syscall(sysFchmodat,
			uintptr(atFdcwdValue(s.caps)),
			uintptr(unsafe.Pointer(p)), uintptr(mode))
		if errno != 0 {
			return errno
		}
		return nil
	}
	_, _, errno := unix.Syscall(sysChmod,
		uintptr(unsafe.Pointer(p)), uintptr(mode), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Chown 修改登记过的路径的属主，uid 或 gid 传 -1 表示不改
func (s *Sandbox) Chown(path string, uid, gid int) error {
	p, err := s.pathPtr(path)
	if err != nil {
		return err
	}
	if !hasDirectPathCalls {
		_, _, errno := unix.Syscall6(sysFchownat,
			uintptr(atFdcwdValue(s.caps)),
			uintptr(unsafe.Pointer(p)),
			uintptr(uid), uintptr(gid), 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	}
	_, _, errno := unix.Syscall(sysChown,
		uintptr(unsafe.Pointer(p)), uintptr(uid), uintptr(gid))
	if errno != 0 {
		return errno
	}
	return nil
}
