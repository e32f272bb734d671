package memarena

import (
	"fmt"
	"strconv"
)

// Size 以字节为单位描述一块内存的大小，例如哨兵区或字符串载荷。
// 最大值受 64 位限制
type Size uint64

// String 实现 stringer 接口，日志里打印人类可读的大小
func (s Size) String() string {
	t := uint64(s)
	switch {
	case t < 1<<10:
		return fmt.Sprintf("%d B", t)
	case t < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(t)/float64(1<<10))
	case t < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(t)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f GiB", float64(t)/float64(1<<30))
	}
}

// Set 从 "20m"、"64k" 这样的字符串解析大小，供配置层使用
func (s *Size) Set(str string) error {
	if str == "" {
		return fmt.Errorf("empty size")
	}

	switch str[len(str)-1] {
	case 'b', 'B':
		str = str[:len(str)-1]
	}

	factor := 0
	switch str[len(str)-1] {
	case 'k', 'K':
		factor = 10
		str = str[:len(str)-1]
	case 'm', 'M':
		factor = 20
		str = str[:len(str)-1]
	case 'g', 'G':
		factor = 30
		str = str[:len(str)-1]
	}

	t, err := strconv.Atoi(str)
	if err != nil {
		return err
	}
	*s = Size(t << factor)
	return nil
}
