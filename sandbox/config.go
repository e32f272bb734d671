package sandbox

import "github.com/zqzqsb/confine/pkg/memarena"

// entryKind 区分例外条目约束的调用族
type entryKind int

const (
	kindOpen entryKind = iota + 1
	kindOpenat
	kindOpenDir
	kindStat
	kindRename
	kindChmod
	kindChown
)

var kindString = []string{"invalid", "open", "openat", "opendir", "stat", "rename", "chmod", "chown"}

func (k entryKind) String() string {
	if k >= 1 && int(k) < len(kindString) {
		return kindString[k]
	}
	return kindString[0]
}

// strRef 是例外条目里的字符串字段。
// 配置期持有调用方移交的堆上副本（owned），驻留之后收拢为
// 只读区里的引用（ref），两种状态不会同时可见，生效后的代码
// 再也拿不到未保护的指针
type strRef struct {
	owned    string
	ref      memarena.Ref
	interned bool
}

// entry 一条例外：kind 标注调用族，a 为路径，
// rename 用 b 存目标路径
type entry struct {
	kind entryKind
	a, b strRef
}

// allow 在配置期登记一条例外。
// 安装开始后的登记只会改动一张内核不再读取的表，拒绝并记日志
func (s *Sandbox) allow(e entry) error {
	if s.stage.Load() != stageConfig {
		s.log.WithField("kind", e.kind.String()).
			Error("exception registered after configuration closed, ignored")
		return ErrActive
	}
	s.entries = append(s.entries, e)
	return nil
}

// AllowOpen 放行对指定路径的 open 调用。
// 路径的内存自此由沙箱接管，只能在 Install 之前调用
func (s *Sandbox) AllowOpen(path string) error {
	return s.allow(entry{kind: kindOpen, a: strRef{owned: path}})
}

// AllowOpenat 放行对指定路径的 openat 调用（相对 AT_FDCWD）
func (s *Sandbox) AllowOpenat(path string) error {
	return s.allow(entry{kind: kindOpenat, a: strRef{owned: path}})
}

// AllowOpenDir 放行以目录方式打开指定路径。
// 目录打开走 open 还是 openat、带哪组标志位随 libc 版本变化，
// 编译时按探测结果落到对应调用上
func (s *Sandbox) AllowOpenDir(path string) error {
	return s.allow(entry{kind: kindOpenDir, a: strRef{owned: path}})
}

// AllowStat 放行对指定路径的 stat 族调用
func (s *Sandbox) AllowStat(path string) error {
	return s.allow(entry{kind: kindStat, a: strRef{owned: path}})
}

// AllowRename 放行从 from 到 to 的重命名，单向
func (s *Sandbox) AllowRename(from, to string) error {
	return s.allow(entry{kind: kindRename, a: strRef{owned: from}, b: strRef{owned: to}})
}

// AllowChmod 放行对指定路径的 chmod 调用
func (s *Sandbox) AllowChmod(path string) error {
	return s.allow(entry{kind: kindChmod, a: strRef{owned: path}})
}

// AllowChown 放行对指定路径的 chown 调用
func (s *Sandbox) AllowChown(path string) error {
	return s.allow(entry{kind: kindChown, a: strRef{owned: path}})
}
