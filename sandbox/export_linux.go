package sandbox

import (
	"fmt"
	"os"

	libseccomp "github.com/seccomp/libseccomp-golang"

	"github.com/zqzqsb/confine/pkg/pipe"
	"github.com/zqzqsb/confine/pkg/seccomp"
)

// 导出产物的异常上限。全量规则表也远在其下，超出说明导出失败
const maxProgramBytes = 1 << 20

// exportProgram 把编译好的过滤器导出成原始 BPF 指令。
// 导出口只认文件描述符，经管道转接到内存
func exportProgram(filter *libseccomp.ScmpFilter) (seccomp.Filter, error) {
	raw, err := pipe.Capture(maxProgramBytes, func(w *os.File) error {
		if err := filter.ExportBPF(w); err != nil {
			return fmt.Errorf("sandbox: export bpf: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seccomp.ParseRaw(raw)
}
