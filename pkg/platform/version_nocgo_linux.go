//go:build linux && !cgo
// +build linux,!cgo

package platform

// 没有 cgo 就取不到 glibc 版本。
// 返回探测失败，三个谓词按旧版 libc 的保守行为处理
func libcVersion() (Version, bool) {
	return Version{}, false
}
