//go:build linux && cgo
// +build linux,cgo

package platform

// #include <gnu/libc-version.h>
import "C"

// libcVersion 通过 gnu_get_libc_version 读取正在运行的 glibc 版本
func libcVersion() (Version, bool) {
	v, err := Parse(C.GoString(C.gnu_get_libc_version()))
	if err != nil {
		return Version{}, false
	}
	return v, true
}
