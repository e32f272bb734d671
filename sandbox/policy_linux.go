package sandbox

import (
	"fmt"
	"strings"

	libseccomp "github.com/seccomp/libseccomp-golang"
	unix "golang.org/x/sys/unix"

	"github.com/zqzqsb/confine/pkg/memarena"
	"github.com/zqzqsb/confine/pkg/platform"
)

// rt_sigprocmask 的 how 参数，内核 uapi 值
const (
	sigUnblock = 1
	sigSetmask = 2
)

// 内核 uapi 里 x/sys/unix 未覆盖的零散常量
const (
	// netfilter 原始目的地址查询，v4 与 v6 同值
	soOriginalDst     = 80
	ip6tSoOriginalDst = 80
	// 发送队列未发出字节数，linux/sockios.h
	siocOutqNsd = 0x894b
	// socketcall 复用层里 accept4 的子调用号，仅 i386
	socketcallAccept4 = 18
	// seccomp 用户态通知的三个 ioctl 请求码，linux/seccomp.h。
	// 受支持架构的 _IOC 位布局相同，可以共用取值
	secIoctlNotifRecv    = 0xc0502100
	secIoctlNotifSend    = 0xc0182101
	secIoctlNotifIDValid = 0x40082102
)

// 目录方式打开的标志位，与 libc opendir 的调用形状一致。
// O_LARGEFILE 逐架构取内核实际传下去的值，64 位上为 0
const dirOpenFlags = unix.O_RDONLY | unix.O_NONBLOCK | unix.O_LARGEFILE |
	unix.O_DIRECTORY | unix.O_CLOEXEC

/*
builder 把例外表编译成内核过滤程序。

编译分三步，顺序不可调换：先驻留全部路径字符串并给驻留区加上
围栏规则（此后所有路径的驻留地址固定），再装参数级规则（路径
规则按驻留地址判等），最后整桶放行无参数表。entries 与 Sandbox
共享底层数组，驻留结果直接回写，安装完成后运行期查询读的就是
这里写回的引用。
*/
type builder struct {
	filter  *libseccomp.ScmpFilter
	caps    platform.Caps
	opts    Options
	entries []entry
	arena   *memarena.Arena
	arch32  bool
	notify  bool
	kill    libseccomp.ScmpAction
}

// newBuilder 创建过滤器上下文，defaultAct 是表外调用的默认处置
func newBuilder(caps platform.Caps, opts Options, entries []entry,
	defaultAct libseccomp.ScmpAction) (*builder, error) {
	filter, err := libseccomp.NewFilter(defaultAct)
	if err != nil {
		return nil, fmt.Errorf("sandbox: new filter: %w", err)
	}
	// 装载时同步到进程的全部线程
	if err := filter.SetTsync(true); err != nil {
		filter.Release()
		return nil, fmt.Errorf("sandbox: set tsync: %w", err)
	}

	native, err := libseccomp.GetNativeArch()
	if err != nil {
		filter.Release()
		return nil, fmt.Errorf("sandbox: native arch: %w", err)
	}

	kill := libseccomp.ActKillThread
	if caps.HasKillProcess {
		// 单杀线程会留下一个缺了线程的运行时，整进程终止才是
		// 围栏触发后唯一安全的结局
		kill = libseccomp.ActKillProcess
	}

	return &builder{
		filter:  filter,
		caps:    caps,
		opts:    opts,
		entries: entries,
		arch32:  native == libseccomp.ArchX86,
		notify:  defaultAct == libseccomp.ActNotify,
		kill:    kill,
	}, nil
}

func (b *builder) release() {
	b.filter.Release()
}

// build 完整走一遍编译流程
func (b *builder) build() error {
	if err := b.protectStrings(); err != nil {
		return err
	}
	if err := b.addParamRules(); err != nil {
		return err
	}
	return b.addNoParamRules()
}

// resolve 按名解析本机架构的调用号。
// 解析失败或得到负的伪调用号说明本架构没有这个调用，
// 对应源头上的逐架构条件编译，调用方按不存在跳过
func (b *builder) resolve(name string) (libseccomp.ScmpSyscall, bool) {
	nr, err := libseccomp.GetSyscallFromName(name)
	if err != nil || nr < 0 {
		return 0, false
	}
	return nr, true
}

// allow 放行一条调用，可带参数条件；本架构没有的调用静默跳过
func (b *builder) allow(name string, conds ...libseccomp.ScmpCondition) error {
	nr, ok := b.resolve(name)
	if !ok {
		return nil
	}
	var err error
	if len(conds) == 0 {
		err = b.filter.AddRule(nr, libseccomp.ActAllow)
	} else {
		err = b.filter.AddRuleConditional(nr, libseccomp.ActAllow, conds)
	}
	if err != nil {
		return fmt.Errorf("sandbox: allow %s: %w", name, err)
	}
	return nil
}

// deny 以终止动作拒绝一条调用，用于驻留区围栏
func (b *builder) deny(name string, conds ...libseccomp.ScmpCondition) error {
	nr, ok := b.resolve(name)
	if !ok {
		return nil
	}
	var err error
	if len(conds) == 0 {
		err = b.filter.AddRule(nr, b.kill)
	} else {
		err = b.filter.AddRuleConditional(nr, b.kill, conds)
	}
	if err != nil {
		return fmt.Errorf("sandbox: deny %s: %w", name, err)
	}
	return nil
}

func eq(arg uint, v uint64) libseccomp.ScmpCondition {
	return libseccomp.ScmpCondition{
		Argument: arg, Op: libseccomp.CompareEqual, Operand1: v,
	}
}

func lt(arg uint, v uint64) libseccomp.ScmpCondition {
	return libseccomp.ScmpCondition{
		Argument: arg, Op: libseccomp.CompareLess, Operand1: v,
	}
}

func gt(arg uint, v uint64) libseccomp.ScmpCondition {
	return libseccomp.ScmpCondition{
		Argument: arg, Op: libseccomp.CompareGreater, Operand1: v,
	}
}

func le(arg uint, v uint64) libseccomp.ScmpCondition {
	return libseccomp.ScmpCondition{
		Argument: arg, Op: libseccomp.CompareLessOrEqual, Operand1: v,
	}
}

// maskedEq 忽略 ignored 里的位，其余位必须等于 v。
// 掩码比较的第一操作数是保留位掩码，先取反再传
func maskedEq(arg uint, ignored, v uint64) libseccomp.ScmpCondition {
	return libseccomp.ScmpCondition{
		Argument: arg, Op: libseccomp.CompareMaskedEqual,
		Operand1: ^ignored, Operand2: v,
	}
}

// negEq AT_FDCWD 这类负常量的判等。glibc 2.27 起把负常量截成
// 32 位零扩展进寄存器，旧版本按补码符号扩展成 64 位，两种取值
// 要配不同的比较字面量，选哪个跟随探测结果
func (b *builder) negEq(arg uint, v int) libseccomp.ScmpCondition {
	if b.caps.NegativeConstantNeedsCast {
		return eq(arg, uint64(uint32(v)))
	}
	return eq(arg, uint64(int64(v)))
}

// atFdcwdValue openat 首参在寄存器里应当呈现的取值，
// 与 negEq 编出的规则字面量一致。内核本身只看低 32 位，
// 两种取值语义相同，差别只在过滤器的 64 位比较上
func atFdcwdValue(caps platform.Caps) uint64 {
	if caps.NegativeConstantNeedsCast {
		return uint64(uint32(unix.AT_FDCWD))
	}
	return uint64(int64(unix.AT_FDCWD))
}

// pathEq 路径参数与驻留副本的指针判等，内核只比地址数值
func (b *builder) pathEq(arg uint, r memarena.Ref) libseccomp.ScmpCondition {
	return eq(arg, uint64(b.arena.Addr(r)))
}

/*
protectStrings 建立驻留区并加围栏。

先精确累加全部路径的字节数（含 NUL），一次 mmap 出驻留区，
逐条驻留并把例外表里的 owned 字符串收拢成驻留引用，再 mprotect
成只读。围栏规则保证生效之后驻留区无法被改写：

  - mremap、munmap 驻留区基址一律终止进程；
  - mprotect 加写权限只允许落在驻留区两侧之外，且长度不超过
    金丝雀区，起点在基址之下的窗口最多延伸到金丝雀区内，
    够不着基址后面的字符串。

改权窗口的放行是给分配器和加密库留的；按区间精确排除驻留区
超出了单值比较的表达力，金丝雀区的长度上限是等价的替代。
*/
func (b *builder) protectStrings() error {
	payload := 0
	for i := range b.entries {
		payload += len(b.entries[i].a.owned) + 1
		if b.entries[i].kind == kindRename {
			payload += len(b.entries[i].b.owned) + 1
		}
	}

	arena, err := memarena.New(b.opts.Canary, payload)
	if err != nil {
		return fmt.Errorf("sandbox: protected arena: %w", err)
	}
	b.arena = arena

	for i := range b.entries {
		e := &b.entries[i]
		ref, err := arena.Intern(e.a.owned)
		if err != nil {
			return fmt.Errorf("sandbox: intern %s path: %w", e.kind, err)
		}
		e.a = strRef{ref: ref, interned: true}

		if e.kind == kindRename {
			ref, err := arena.Intern(e.b.owned)
			if err != nil {
				return fmt.Errorf("sandbox: intern rename target: %w", err)
			}
			e.b = strRef{ref: ref, interned: true}
		}
	}

	if err := arena.Seal(); err != nil {
		return fmt.Errorf("sandbox: seal arena: %w", err)
	}

	return b.fenceArena()
}

// restoreEntries 把驻留引用还原回堆上副本，protectStrings 的逆操作。
// 安装失败的实例要退回配置期，条目不能停在指向废弃驻留区的状态
func (b *builder) restoreEntries() {
	if b.arena == nil {
		return
	}
	for i := range b.entries {
		e := &b.entries[i]
		if e.a.interned {
			e.a = strRef{owned: strings.Clone(b.arena.String(e.a.ref))}
		}
		if e.b.interned {
			e.b = strRef{owned: strings.Clone(b.arena.String(e.b.ref))}
		}
	}
}

// fenceArena 驻留区围栏，四条规则
func (b *builder) fenceArena() error {
	base := uint64(b.arena.Base())
	end := uint64(b.arena.End())
	canary := uint64(b.arena.Canary())

	if err := b.deny("mremap", eq(0, base)); err != nil {
		return err
	}
	if err := b.deny("munmap", eq(0, base)); err != nil {
		return err
	}

	rw := uint64(unix.PROT_READ | unix.PROT_WRITE)
	if err := b.allow("mprotect", lt(0, base), le(1, canary), eq(2, rw)); err != nil {
		return err
	}
	return b.allow("mprotect", gt(0, end), le(1, canary), eq(2, rw))
}

// 参数级规则的安装器，表序与调用族的审阅顺序一致
var paramInstallers = []struct {
	name    string
	install func(*builder) error
}{
	{"rt_sigaction", (*builder).ruleRtSigaction},
	{"rt_sigprocmask", (*builder).ruleRtSigprocmask},
	{"time", (*builder).ruleTime},
	{"accept4", (*builder).ruleAccept4},
	{"mmap2", (*builder).ruleMmap2},
	{"chown", (*builder).ruleChown},
	{"chmod", (*builder).ruleChmod},
	{"open", (*builder).ruleOpen},
	{"openat", (*builder).ruleOpenat},
	{"opendir", (*builder).ruleOpenDir},
	{"rename", (*builder).ruleRename},
	{"fcntl64", (*builder).ruleFcntl64},
	{"epoll_ctl", (*builder).ruleEpollCtl},
	{"prctl", (*builder).rulePrctl},
	{"mprotect", (*builder).ruleMprotect},
	{"flock", (*builder).ruleFlock},
	{"futex", (*builder).ruleFutex},
	{"mremap", (*builder).ruleMremap},
	{"stat64", (*builder).ruleStat64},
	{"fstatat", (*builder).ruleFstatat},
	{"socket", (*builder).ruleSocket},
	{"setsockopt", (*builder).ruleSetsockopt},
	{"getsockopt", (*builder).ruleGetsockopt},
	{"socketpair", (*builder).ruleSocketpair},
	{"ioctl", (*builder).ruleIoctl},
	{"kill", (*builder).ruleKill},
}

func (b *builder) addParamRules() error {
	for _, ins := range paramInstallers {
		if err := ins.install(b); err != nil {
			return fmt.Errorf("sandbox: %s installer: %w", ins.name, err)
		}
	}
	return nil
}

// rt_sigaction 放行的信号集：进程自身的信号语义，
// 加上 Go 运行时崩溃路径与剖析会重装处理器的几个
var sigactionSignals = []unix.Signal{
	unix.SIGINT, unix.SIGTERM, unix.SIGPIPE, unix.SIGUSR1, unix.SIGUSR2,
	unix.SIGHUP, unix.SIGCHLD, unix.SIGSEGV, unix.SIGILL, unix.SIGFPE,
	unix.SIGBUS, unix.SIGSYS, unix.SIGIO, unix.SIGXFSZ,
	unix.SIGQUIT, unix.SIGABRT, unix.SIGPROF, unix.SIGTRAP,
}

func (b *builder) ruleRtSigaction() error {
	for _, sig := range sigactionSignals {
		if err := b.allow("rt_sigaction", eq(0, uint64(sig))); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleRtSigprocmask() error {
	if err := b.allow("rt_sigprocmask", eq(0, sigUnblock)); err != nil {
		return err
	}
	return b.allow("rt_sigprocmask", eq(0, sigSetmask))
}

// time(NULL)，只在还有这个调用的架构上存在
func (b *builder) ruleTime() error {
	return b.allow("time", eq(0, 0))
}

func (b *builder) ruleAccept4() error {
	if b.arch32 {
		if err := b.allow("socketcall", eq(0, socketcallAccept4)); err != nil {
			return err
		}
	}
	return b.allow("accept4",
		maskedEq(3, unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0))
}

// mmap2 只存在于 32 位架构，放行 libc 分配器、线程栈和动态
// 装载器的几种固定形状，再加 Go 运行时预留地址空间的一种
func (b *builder) ruleMmap2() error {
	shapes := []struct {
		prot, flags uint64
	}{
		{unix.PROT_READ, unix.MAP_PRIVATE},
		{unix.PROT_NONE, unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_NORESERVE},
		{unix.PROT_READ | unix.PROT_WRITE, unix.MAP_PRIVATE | unix.MAP_ANONYMOUS},
		{unix.PROT_READ | unix.PROT_WRITE, unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_STACK},
		{unix.PROT_READ | unix.PROT_WRITE, unix.MAP_PRIVATE | unix.MAP_FIXED | unix.MAP_DENYWRITE},
		{unix.PROT_READ | unix.PROT_WRITE, unix.MAP_PRIVATE | unix.MAP_FIXED | unix.MAP_ANONYMOUS},
		{unix.PROT_READ | unix.PROT_EXEC, unix.MAP_PRIVATE | unix.MAP_DENYWRITE},
		// Go 运行时预留堆地址段不带 NORESERVE
		{unix.PROT_NONE, unix.MAP_PRIVATE | unix.MAP_ANONYMOUS},
	}
	for _, sh := range shapes {
		if err := b.allow("mmap2", eq(2, sh.prot), eq(3, sh.flags)); err != nil {
			return err
		}
	}
	return nil
}

// 没有直连 chown 的架构上封装改发 fchownat(AT_FDCWD, ...)，
// 规则跟着实际发出的形态走，chmod 与 rename 同理
func (b *builder) ruleChown() error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindChown {
			continue
		}
		var err error
		if hasDirectPathCalls {
			err = b.allow("chown", b.pathEq(0, e.a.ref))
		} else {
			err = b.allow("fchownat",
				b.negEq(0, unix.AT_FDCWD), b.pathEq(1, e.a.ref))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleChmod() error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindChmod {
			continue
		}
		var err error
		if hasDirectPathCalls {
			err = b.allow("chmod", b.pathEq(0, e.a.ref))
		} else {
			err = b.allow("fchmodat",
				b.negEq(0, unix.AT_FDCWD), b.pathEq(1, e.a.ref))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// allowFileOpen 放行单个文件的打开。useOpenat 为真说明调用以
// openat(AT_FDCWD, ...) 形态到达：或是 libc 把 open 一律改写成
// openat，或是本架构根本没有 open，规则要落在实际到达的形态上
func (b *builder) allowFileOpen(useOpenat bool, r memarena.Ref) error {
	if useOpenat {
		return b.allow("openat",
			b.negEq(0, unix.AT_FDCWD), b.pathEq(1, r))
	}
	return b.allow("open", b.pathEq(0, r))
}

func (b *builder) ruleOpen() error {
	useOpenat := b.caps.UsesOpenatForOpen || !hasDirectPathCalls
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindOpen {
			continue
		}
		if err := b.allowFileOpen(useOpenat, e.a.ref); err != nil {
			return err
		}
	}
	return nil
}

// 显式 openat 例外额外钉死标志位为目录打开的形状
func (b *builder) ruleOpenat() error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindOpenat {
			continue
		}
		err := b.allow("openat",
			b.negEq(0, unix.AT_FDCWD),
			b.pathEq(1, e.a.ref),
			eq(2, dirOpenFlags))
		if err != nil {
			return err
		}
	}
	return nil
}

// opendir 不是系统调用，落到 open 还是 openat 随 libc 版本和架构走
func (b *builder) ruleOpenDir() error {
	useOpenat := b.caps.UsesOpenatForOpendir || !hasDirectPathCalls
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindOpenDir {
			continue
		}
		if err := b.allowFileOpen(useOpenat, e.a.ref); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleRename() error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindRename {
			continue
		}
		var err error
		if hasDirectPathCalls {
			err = b.allow("rename",
				b.pathEq(0, e.a.ref), b.pathEq(1, e.b.ref))
		} else {
			err = b.allow("renameat",
				b.negEq(0, unix.AT_FDCWD), b.pathEq(1, e.a.ref),
				b.negEq(2, unix.AT_FDCWD), b.pathEq(3, e.b.ref))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// fcntl64 只存在于 32 位架构，64 位上 fcntl 走无参数表
func (b *builder) ruleFcntl64() error {
	if err := b.allow("fcntl64", eq(1, unix.F_GETFL)); err != nil {
		return err
	}
	err := b.allow("fcntl64",
		eq(1, unix.F_SETFL), eq(2, unix.O_RDWR|unix.O_NONBLOCK))
	if err != nil {
		return err
	}
	if err := b.allow("fcntl64", eq(1, unix.F_GETFD)); err != nil {
		return err
	}
	return b.allow("fcntl64",
		eq(1, unix.F_SETFD), eq(2, unix.FD_CLOEXEC))
}

func (b *builder) ruleEpollCtl() error {
	for _, op := range []uint64{
		unix.EPOLL_CTL_ADD, unix.EPOLL_CTL_MOD, unix.EPOLL_CTL_DEL,
	} {
		if err := b.allow("epoll_ctl", eq(1, op)); err != nil {
			return err
		}
	}
	return nil
}

// 只放 PR_SET_DUMPABLE；要叠加第二层过滤器得先放开 PR_SET_SECCOMP
func (b *builder) rulePrctl() error {
	return b.allow("prctl", eq(0, unix.PR_SET_DUMPABLE))
}

// 通用 mprotect 只放只读和不可访问两种降权；
// 加写权限的窗口由驻留区围栏单独放行
func (b *builder) ruleMprotect() error {
	if err := b.allow("mprotect", eq(2, unix.PROT_READ)); err != nil {
		return err
	}
	return b.allow("mprotect", eq(2, unix.PROT_NONE))
}

func (b *builder) ruleFlock() error {
	if err := b.allow("flock", eq(1, unix.LOCK_EX|unix.LOCK_NB)); err != nil {
		return err
	}
	return b.allow("flock", eq(1, unix.LOCK_UN))
}

func (b *builder) ruleFutex() error {
	ops := []uint64{
		unix.FUTEX_WAIT_BITSET | unix.FUTEX_PRIVATE_FLAG | unix.FUTEX_CLOCK_REALTIME,
		unix.FUTEX_WAKE | unix.FUTEX_PRIVATE_FLAG,
		unix.FUTEX_WAIT | unix.FUTEX_PRIVATE_FLAG,
	}
	for _, op := range ops {
		if err := b.allow("futex", eq(1, op)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleMremap() error {
	return b.allow("mremap", eq(3, unix.MREMAP_MAYMOVE))
}

// stat64 只存在于 32 位架构。open 例外一并放行 stat64，
// libc 打开文件前常会先探一下
func (b *builder) ruleStat64() error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindOpen && e.kind != kindStat {
			continue
		}
		if err := b.allow("stat64", b.pathEq(0, e.a.ref)); err != nil {
			return err
		}
	}
	return nil
}

// 没有直连 stat 的架构上封装按 fstatat(AT_FDCWD, ...) 查询，
// 规则落到同一形态。两个名字每个架构至多存在一个，解析不到的跳过
func (b *builder) ruleFstatat() error {
	if hasDirectPathCalls {
		return nil
	}
	for i := range b.entries {
		e := &b.entries[i]
		if e.kind != kindStat {
			continue
		}
		for _, name := range []string{"newfstatat", "fstatat64"} {
			err := b.allow(name,
				b.negEq(0, unix.AT_FDCWD), b.pathEq(1, e.a.ref))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) ruleSocket() error {
	if b.arch32 {
		// 旧 libc 把套接字操作全压进 socketcall 复用层，直连
		// socket 调用的只有新 libc，形态不稳，整桶放行
		if err := b.allow("socket"); err != nil {
			return err
		}
	}

	cof := uint64(unix.SOCK_CLOEXEC | unix.SOCK_NONBLOCK)

	err := b.allow("socket",
		eq(0, unix.AF_UNIX), maskedEq(1, cof, unix.SOCK_STREAM))
	if err != nil {
		return err
	}

	for _, pf := range []uint64{unix.AF_INET6, unix.AF_INET} {
		for _, sh := range []struct {
			typ, proto uint64
		}{
			{unix.SOCK_STREAM, unix.IPPROTO_TCP},
			{unix.SOCK_DGRAM, unix.IPPROTO_IP},
			{unix.SOCK_DGRAM, unix.IPPROTO_UDP},
		} {
			err := b.allow("socket",
				eq(0, pf), maskedEq(1, cof, sh.typ), eq(2, sh.proto))
			if err != nil {
				return err
			}
		}
	}

	err = b.allow("socket",
		eq(0, unix.AF_UNIX), maskedEq(1, cof, unix.SOCK_STREAM), eq(2, 0))
	if err != nil {
		return err
	}
	err = b.allow("socket",
		eq(0, unix.AF_UNIX), maskedEq(1, cof, unix.SOCK_DGRAM), eq(2, 0))
	if err != nil {
		return err
	}

	return b.allow("socket",
		eq(0, unix.AF_NETLINK),
		maskedEq(1, unix.SOCK_CLOEXEC, unix.SOCK_RAW), eq(2, 0))
}

func (b *builder) ruleSetsockopt() error {
	if b.arch32 {
		if err := b.allow("setsockopt"); err != nil {
			return err
		}
	}

	opts := []struct {
		level, name uint64
	}{
		{unix.SOL_SOCKET, unix.SO_REUSEADDR},
		{unix.SOL_SOCKET, unix.SO_SNDBUF},
		{unix.SOL_SOCKET, unix.SO_RCVBUF},
		{unix.SOL_IP, unix.IP_TRANSPARENT},
		{unix.IPPROTO_IPV6, unix.IPV6_V6ONLY},
	}
	if b.opts.SocketActivation {
		opts = append(opts, struct{ level, name uint64 }{
			unix.SOL_SOCKET, unix.SO_SNDBUFFORCE,
		})
	}

	for _, o := range opts {
		err := b.allow("setsockopt", eq(1, o.level), eq(2, o.name))
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleGetsockopt() error {
	if b.arch32 {
		if err := b.allow("getsockopt"); err != nil {
			return err
		}
	}

	opts := []struct {
		level, name uint64
	}{
		{unix.SOL_SOCKET, unix.SO_ERROR},
		{unix.SOL_SOCKET, unix.SO_ACCEPTCONN},
		{unix.SOL_IP, soOriginalDst},
		{unix.SOL_IPV6, ip6tSoOriginalDst},
	}
	if b.opts.SocketActivation {
		opts = append(opts, struct{ level, name uint64 }{
			unix.SOL_SOCKET, unix.SO_SNDBUF,
		})
	}
	if b.opts.QueueProbes {
		opts = append(opts, struct{ level, name uint64 }{
			unix.SOL_TCP, unix.TCP_INFO,
		})
	}

	for _, o := range opts {
		err := b.allow("getsockopt", eq(1, o.level), eq(2, o.name))
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ruleSocketpair() error {
	if b.arch32 {
		if err := b.allow("socketpair"); err != nil {
			return err
		}
	}
	return b.allow("socketpair",
		eq(0, unix.AF_UNIX), eq(1, unix.SOCK_STREAM|unix.SOCK_CLOEXEC))
}

func (b *builder) ruleIoctl() error {
	if b.notify {
		// 监视器要在本过滤器之下收发通知，三个请求码不放行的话
		// 第一次违规就会跟监视器的接收调用互相等死
		for _, req := range []uint64{
			secIoctlNotifRecv, secIoctlNotifSend, secIoctlNotifIDValid,
		} {
			if err := b.allow("ioctl", eq(1, req)); err != nil {
				return err
			}
		}
	}
	if !b.opts.QueueProbes {
		return nil
	}
	return b.allow("ioctl", eq(1, siocOutqNsd))
}

// 信号 0 只探测进程存在，不真投递
func (b *builder) ruleKill() error {
	return b.allow("kill", eq(1, 0))
}

// 无参数放行表，整桶放行不看参数。
// 本架构没有的名字按条件编译裁掉的对待，解析失败即跳过
var noParamSyscalls = []string{
	"access", "brk", "clock_gettime", "close", "clone", "dup", "clone3",
	"epoll_create", "epoll_wait", "epoll_pwait", "eventfd2", "pipe2", "pipe",
	"fchmod", "fcntl", "fstat", "fstat64", "fsync", "futex",
	"getdents", "getdents64",
	"getegid", "getegid32", "geteuid", "geteuid32", "getgid", "getgid32",
	"getpid", "getrlimit", "gettimeofday", "gettid", "getuid", "getuid32",
	"lseek", "_llseek", "lstat", "mkdir", "mlockall", "mmap", "munmap",
	"nanosleep", "prlimit64", "read", "rt_sigreturn", "rseq",
	"sched_getaffinity", "sched_yield", "sendmsg", "set_robust_list",
	"setrlimit", "shutdown", "sigaltstack", "sigreturn", "stat", "uname",
	"wait4", "write", "writev", "exit_group", "exit", "madvise", "stat64",
	"getrandom", "sysinfo",
	"recv", "send",
	"bind", "listen", "connect", "getsockname", "recvmsg", "recvfrom",
	"sendto", "unlink", "unlinkat", "poll",
}

// Go 运行时在 libc 习惯之外的固有调用
var runtimeSyscalls = []string{
	"tgkill",          // 协作式抢占信号
	"epoll_create1",   // netpoll 初始化
	"restart_syscall", // 被信号打断的慢调用续跑
	"getpeername",     // net 包建连后立即查询对端地址
	"setitimer",       // CPU 剖析的间隔定时器
	"timer_create",    // 1.18 起的逐线程剖析定时器
	"timer_settime",
	"timer_delete",
}

func (b *builder) addNoParamRules() error {
	for _, name := range noParamSyscalls {
		if err := b.allow(name); err != nil {
			return err
		}
	}
	for _, name := range runtimeSyscalls {
		if err := b.allow(name); err != nil {
			return err
		}
	}

	if b.caps.HaveLibcVersion && b.caps.LibcVersion.AtLeast(2, 33) {
		// glibc 2.33 起 fstat() 和 stat() 都经由 newfstatat 实现。
		// 麻烦在于 fstat(fd, &st) 的形态是
		//     newfstatat(fd, "", &st, AT_EMPTY_PATH)
		// 空串指针不受我们控制，没法按驻留地址判等；AT_EMPTY_PATH
		// 又只在路径为空时才起作用，按标志位过滤同样不可靠。
		// 只能整桶放行 newfstatat，代价是进程能 stat 文件系统上的
		// 任意路径。这是已知的策略放宽，不要当成疏漏去收紧
		if err := b.allow("newfstatat"); err != nil {
			return err
		}
	}
	return nil
}
