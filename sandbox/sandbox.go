package sandbox

import (
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/zqzqsb/confine/monitor"
	"github.com/zqzqsb/confine/pkg/memarena"
	"github.com/zqzqsb/confine/pkg/platform"
)

var (
	// ErrActive 配置接口在安装开始后被调用，或同进程内重复安装
	ErrActive = errors.New("sandbox: already active")
	// ErrUnsupported 内核缺少过滤能力，沙箱保持未激活。
	// 软失败，调用方通常记日志后裸奔
	ErrUnsupported = errors.New("sandbox: seccomp unsupported on this platform")
)

// 沙箱生命周期阶段。生效后不可撤销；安装失败则退回配置期
const (
	stageConfig int32 = iota // 配置期，例外表可写
	stageInstalling          // 安装中，例外表冻结
	stageActive              // 过滤器已生效，不可撤销
)

// installed 进程级安装闸门。内核过滤器挂在进程上而非某个
// Sandbox 实例上，第二次安装无论来自哪个实例都必须拒绝
var installed atomic.Bool

// Sandbox 一次性系统调用禁闭的全部状态。
// 实例彼此独立，便于测试各自构造，但 Install 成功后整个进程
// 都被同一张过滤表约束
type Sandbox struct {
	opts    Options
	caps    platform.Caps
	entries []entry
	arena   *memarena.Arena
	mon     *monitor.Monitor
	stage   atomic.Int32
	log     *logrus.Entry
}

// New 创建处于配置期的沙箱
func New(opts Options) *Sandbox {
	if opts.Canary == 0 {
		opts.Canary = memarena.DefaultCanary
	}
	return &Sandbox{
		opts: opts,
		log:  logrus.WithField("component", "sandbox"),
	}
}

// Active 报告过滤器是否已生效
func (s *Sandbox) Active() bool {
	return s.stage.Load() == stageActive
}

// Monitor 返回违规监视器，errno 处置或未安装时为 nil
func (s *Sandbox) Monitor() *monitor.Monitor {
	return s.mon
}

// lookup 在已驻留的例外里按内容找 str 的驻留副本
func (s *Sandbox) lookup(str string) (string, bool) {
	for i := range s.entries {
		for _, r := range [2]*strRef{&s.entries[i].a, &s.entries[i].b} {
			if r.interned && s.arena.String(r.ref) == str {
				return s.arena.String(r.ref), true
			}
		}
	}
	return "", false
}

/*
Intern 换取字符串的驻留副本。

返回的字符串直接引用只读驻留区，底层数据指针就是过滤规则里
登记的地址，交给本包的调用封装即可命中放行规则。没有驻留副本
时原样返回入参：沙箱未激活时这是正常路径；已激活时说明这条
路径漏配了，记一条告警日志供运维发现，调用本身随后会被过滤器
拒绝，功能语义不因 Intern 而改变。
*/
func (s *Sandbox) Intern(str string) string {
	if !s.Active() {
		s.log.WithField("string", str).Debug("intern before activation, returning input")
		return str
	}
	if interned, ok := s.lookup(str); ok {
		return interned
	}
	s.log.WithField("string", str).Warn("no interned copy for string, likely a missing allow rule")
	return str
}

// InternMissing 报告沙箱已激活且 str 没有驻留副本。
// 配置缺口的探测器：运行期拿到 true 意味着某条路径忘了登记
func (s *Sandbox) InternMissing(str string) bool {
	if !s.Active() {
		return false
	}
	_, ok := s.lookup(str)
	return !ok
}
