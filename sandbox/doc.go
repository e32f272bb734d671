/*
Package sandbox 实现基于 seccomp-BPF 的进程自我禁闭。

进程在初始化末尾调用 Install，把自己允许使用的系统调用压缩成一张
内核过滤表：表外的调用一律拒绝，表内的文件类调用还要求路径参数
命中事先登记的驻留地址。过滤器装载后不可撤销，对进程内全部线程
生效，之后再想放宽只能重启进程。

使用分三个阶段：

 1. 配置期。进程还不受限，调用 AllowOpen、AllowStat、AllowRename
    等方法登记例外，受理的路径交给沙箱接管；
 2. 安装期。Install 把登记项驻留进只读内存区、编译出过滤程序并
    一次性载入内核；
 3. 生效期。配置接口全部关闭，运行期代码用 Intern 换取路径的
    驻留副本后再发起系统调用。

典型用法：

	sb := sandbox.New(sandbox.Options{})
	sb.AllowOpen("/var/lib/daemon/state.db")
	sb.AllowStat("/var/lib/daemon")
	sb.AllowRename("/var/lib/daemon/state.db.tmp", "/var/lib/daemon/state.db")
	if err := sb.Install(); err != nil {
		if errors.Is(err, sandbox.ErrUnsupported) {
			log.Warn("sandbox unavailable, running unprotected")
		} else {
			log.Fatal(err)
		}
	}

	// 生效之后用驻留副本发起调用
	fd, err := sb.Open(sb.Intern("/var/lib/daemon/state.db"))

路径例外依赖指针判等：过滤规则记录的是驻留副本的地址，内核只
比较指针数值而非字符串内容。因此生效期必须经由 Intern 与本包的
Open、Stat 等封装发起调用，任何自带缓冲区的路径（包括标准库
os.Open 内部的拷贝）都不会命中规则。
*/
package sandbox
