package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"neorecon/internal/config"
	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/model"
	"neorecon/internal/core/reporter"
	"neorecon/internal/core/scanner/brute"
	"neorecon/internal/core/scanner/netscan"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// scanOptions scan 子命令参数
type scanOptions struct {
	Targets          string
	Ports            string
	Timeout          time.Duration
	Concurrency      int
	Delay            time.Duration
	Banner           bool
	Fingerprint      bool
	Credentials      bool
	Users            string
	Passwords        string
	DefaultDict      bool
	All              bool
	Adaptive         bool
	ProgressInterval int
	Proxy            string
	OutputCsv        string
	OutputJson       string
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "扫描 SSH/RDP 服务",
		Long: `对目标执行 TCP 连接探测、SSH/RDP 服务识别以及可选的 SSH 凭据验证。
目标支持单个 IP、CIDR (192.168.1.0/24) 与末段范围 (192.168.1.1-50)，
也可以传入每行一个目标的文件。`,
		Example: `  neorecon scan -t 192.168.1.0/24
  neorecon scan -t targets.txt -p 22,2222,3389 -c 200 --timeout 2s
  neorecon scan -t 10.0.0.5 --credentials -u root,admin --pass passwords.txt
  neorecon scan -t 10.0.0.0/24 --adaptive --delay 50ms --oj result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildScanConfig(cmd, opts, appConfig)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Targets, "target", "t", "", "扫描目标 (逗号分隔或目标文件)")
	flags.StringVarP(&opts.Ports, "port", "p", "", "端口列表 (e.g. 22,3389,2200-2222)")
	flags.DurationVar(&opts.Timeout, "timeout", model.DefaultTimeout, "每个 I/O 阶段的超时")
	flags.IntVarP(&opts.Concurrency, "concurrency", "c", model.DefaultMaxConcurrent, "最大并发探测数")
	flags.DurationVar(&opts.Delay, "delay", 0, "主机之间的调度延迟")
	flags.BoolVar(&opts.Banner, "banner", true, "读取服务 Banner")
	flags.BoolVar(&opts.Fingerprint, "fingerprint", true, "识别 SSH/RDP 指纹")
	flags.BoolVar(&opts.Credentials, "credentials", false, "对识别出的 SSH 服务验证凭据")
	flags.StringVarP(&opts.Users, "users", "u", "", "用户名列表 (逗号分隔或字典文件)")
	flags.StringVar(&opts.Passwords, "pass", "", "密码列表 (逗号分隔或字典文件，支持 %user%)")
	flags.BoolVar(&opts.DefaultDict, "default-dict", false, "未指定用户名/密码时使用内置 Top 字典")
	flags.BoolVarP(&opts.All, "all", "a", false, "尝试所有凭据 (默认: 找到一个成功后即停止)")
	flags.BoolVar(&opts.Adaptive, "adaptive", false, "按超时情况自适应调整并发 (不超过 -c)")
	flags.IntVar(&opts.ProgressInterval, "progress-interval", model.DefaultProgressInterval, "每完成多少个探测刷新一次进度")
	flags.StringVar(&opts.Proxy, "proxy", "", "SOCKS5 代理 (socks5://[user:pass@]host:port)")
	flags.StringVar(&opts.OutputCsv, "oc", "", "保存 CSV 结果的路径")
	flags.StringVar(&opts.OutputJson, "oj", "", "保存 JSON 结果的路径")

	cmd.MarkFlagRequired("target")

	return cmd
}

// buildScanConfig 配置文件中的 scan 段作为默认值，显式指定的参数覆盖之
func buildScanConfig(cmd *cobra.Command, opts *scanOptions, app *config.Config) (*model.ScanConfig, error) {
	if app == nil {
		app = config.DefaultConfig()
	}
	cfg := app.Scan.ToScanConfig()
	flags := cmd.Flags()

	targets, err := brute.LoadList(opts.Targets)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("target is required (-t)")
	}
	cfg.Targets = targets

	if flags.Changed("port") {
		ports, err := parsePorts(opts.Ports)
		if err != nil {
			return nil, err
		}
		cfg.Ports = ports
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrent = opts.Concurrency
	}
	if flags.Changed("delay") {
		cfg.DelayBetweenHosts = opts.Delay
	}
	if flags.Changed("banner") {
		cfg.GrabBanner = opts.Banner
	}
	if flags.Changed("fingerprint") {
		cfg.Fingerprint = opts.Fingerprint
	}
	if flags.Changed("credentials") {
		cfg.TestCredentials = opts.Credentials
	}
	if flags.Changed("all") {
		cfg.StopOnValid = !opts.All
	}
	if flags.Changed("adaptive") {
		cfg.AdaptiveConcurrency = opts.Adaptive
	}
	if flags.Changed("progress-interval") {
		cfg.ProgressInterval = opts.ProgressInterval
	}

	if opts.Users != "" {
		if cfg.Usernames, err = brute.LoadList(opts.Users); err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
	}
	if opts.Passwords != "" {
		if cfg.Passwords, err = brute.LoadList(opts.Passwords); err != nil {
			return nil, fmt.Errorf("failed to load passwords: %w", err)
		}
	}
	if opts.DefaultDict {
		if len(cfg.Usernames) == 0 {
			cfg.Usernames = append([]string(nil), brute.DefaultTopUsers...)
		}
		if len(cfg.Passwords) == 0 {
			cfg.Passwords = append([]string(nil), brute.DefaultTopPasswords...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePorts 解析 "22,3389,2200-2222"，保持输入顺序并去重
func parsePorts(s string) ([]int, error) {
	var ports []int
	seen := make(map[int]bool)
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			add(start)
			continue
		}
		end, err := parsePort(hi)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid port range %q", part)
		}
		for p := start; p <= end; p++ {
			add(p)
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", s)
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}

// resolveDialer 命令行 --proxy 优先于配置文件 dialer.proxy
func resolveDialer(opts *scanOptions, app *config.Config, timeout time.Duration) (dialer.Dialer, error) {
	proxyAddr := opts.Proxy
	if proxyAddr == "" && app != nil && app.Dialer != nil {
		proxyAddr = app.Dialer.Proxy
		if app.Dialer.Timeout > 0 {
			timeout = app.Dialer.Timeout
		}
	}
	return dialer.FromConfig(proxyAddr, timeout)
}

func runScan(ctx context.Context, cfg *model.ScanConfig, opts *scanOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := resolveDialer(opts, appConfig, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create dialer: %w", err)
	}
	dialer.SetGlobalDialer(d)

	var bar *pterm.ProgressbarPrinter
	lastScanned := 0
	cb := netscan.Callbacks{
		OnResult: func(r *model.ScanResult) {
			printFinding(r)
		},
		OnProgress: func(scanned, total int) {
			if total == 0 {
				return
			}
			if bar == nil {
				bar, _ = pterm.DefaultProgressbar.WithTotal(total).WithTitle("Scanning").WithRemoveWhenDone(true).Start()
			}
			if bar != nil && scanned > lastScanned {
				bar.Add(scanned - lastScanned)
				lastScanned = scanned
			}
		},
		OnLog: func(msg string) {
			pterm.Info.Println(msg)
		},
	}

	sc := netscan.NewNetworkScanner(cb, netscan.WithDialer(d))

	// 第一次 Ctrl+C 停止调度，第二次取消在途探测
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		pterm.Warning.Println("Stopping scan, waiting for in-flight probes (Ctrl+C again to abort)")
		sc.Stop()
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	results, err := sc.Scan(ctx, cfg)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return err
	}

	stats := sc.Stats()
	console := reporter.NewConsoleReporter()
	if err := console.Report(ctx, results); err != nil {
		return err
	}
	console.PrintSummary(stats)

	var outputs []reporter.Reporter
	if opts.OutputCsv != "" {
		outputs = append(outputs, reporter.NewCsvReporter(opts.OutputCsv))
	}
	if opts.OutputJson != "" {
		outputs = append(outputs, reporter.NewJsonReporter(opts.OutputJson, stats))
	}
	if len(outputs) > 0 {
		if err := reporter.NewMultiReporter(outputs...).Report(ctx, results); err != nil {
			pterm.Error.Printfln("Failed to save results: %v", err)
		} else {
			for _, p := range []string{opts.OutputCsv, opts.OutputJson} {
				if p != "" {
					pterm.Success.Printfln("Results saved to %s", p)
				}
			}
		}
	}
	return nil
}

// printFinding 实时输出单个发现
func printFinding(r *model.ScanResult) {
	if r.Status == model.StatusError {
		pterm.Error.Printfln("%s %s", r.Address(), r.Error)
		return
	}
	line := fmt.Sprintf("%s open [%s]", r.Address(), r.Service)
	if r.Banner != "" {
		line += " " + r.Banner
	}
	if r.CredentialStatus == model.CredentialValid {
		line += fmt.Sprintf(" | credentials %s:%s", r.ValidUsername, r.ValidPassword)
	}
	pterm.Success.Println(line)
}
