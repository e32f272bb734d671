// Package platform 一次性探测运行平台的能力：C 运行库版本带来的
// 系统调用改写行为，以及内核提供的过滤设施。
// 所有结果都是只读的纯查询，计算一次后不再变化。
package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Version 表示 C 运行库的主次版本号
type Version struct {
	Major int
	Minor int
}

// Parse 解析 "2.31" 或 "2.31.9000" 形式的版本串，忽略次版本之后的部分
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Version{}, fmt.Errorf("platform: malformed libc version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("platform: malformed libc version %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("platform: malformed libc version %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

// AtLeast 报告 v >= major.minor
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// Before 报告 v < major.minor
func (v Version) Before(major, minor int) bool {
	return !v.AtLeast(major, minor)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
