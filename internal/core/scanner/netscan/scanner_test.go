package netscan

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/model"
	"neorecon/internal/core/scanner/brute"
	"neorecon/internal/core/scanner/identify"
)

func refused(address string) error {
	return fmt.Errorf("dial tcp %s: %w", address, syscall.ECONNREFUSED)
}

// pipeDialer 按端口返回内存连接，服务端行为由 handlers 决定，其余端口拒绝连接
func pipeDialer(handlers map[int]func(server net.Conn)) dialer.Dialer {
	return dialer.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		_, portStr, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		port, _ := strconv.Atoi(portStr)
		fn, ok := handlers[port]
		if !ok {
			return nil, refused(address)
		}
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			fn(server)
		}()
		return client, nil
	})
}

func sshServer(server net.Conn) {
	server.Write([]byte("SSH-2.0-OpenSSH_8.9p1 Ubuntu-3\r\n"))
	io.Copy(io.Discard, server)
}

func rdpServer(server net.Conn) {
	req := make([]byte, 19)
	if _, err := io.ReadFull(server, req); err != nil {
		return
	}
	server.Write([]byte{0x03, 0x00, 0x00, 0x0b, 0x06, 0xd0, 0x00, 0x00, 0x12, 0x34, 0x00})
}

// recorder 记录所有回调
type recorder struct {
	mu       sync.Mutex
	results  []*model.ScanResult
	progress [][2]int
	logs     []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnResult: func(res *model.ScanResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.results = append(r.results, res)
		},
		OnProgress: func(scanned, total int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, [2]int{scanned, total})
		},
		OnLog: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logs = append(r.logs, msg)
		},
	}
}

func (r *recorder) hasLog(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// staticCracker 只接受一组凭据
type staticCracker struct {
	name     string
	user     string
	pass     string
	attempts atomic.Int32
}

func (c *staticCracker) Name() string         { return c.name }
func (c *staticCracker) Mode() brute.AuthMode { return brute.AuthModeUserPass }
func (c *staticCracker) Check(ctx context.Context, host string, port int, auth brute.Auth) (bool, error) {
	c.attempts.Add(1)
	return auth.Username == c.user && auth.Password == c.pass, nil
}

func testConfig(targets []string, ports ...int) *model.ScanConfig {
	cfg := model.NewScanConfig()
	cfg.Targets = targets
	cfg.Ports = ports
	cfg.Timeout = time.Second
	return cfg
}

func TestScan_InvalidConfig(t *testing.T) {
	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(pipeDialer(nil)))

	cfg := testConfig([]string{"10.0.0.1"}, 22)
	cfg.MaxConcurrent = 0
	results, err := s.Scan(context.Background(), cfg)

	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	assert.Nil(t, results)
	assert.Empty(t, rec.logs)
	assert.Empty(t, rec.progress)
	assert.False(t, s.IsRunning())
	assert.True(t, s.Stats().StartTime.IsZero())
}

func TestScan_EmptyTargets(t *testing.T) {
	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(pipeDialer(nil)))

	results, err := s.Scan(context.Background(), testConfig(nil, 22, 3389))
	require.NoError(t, err)
	assert.Empty(t, results)

	stats := s.Stats()
	assert.Equal(t, 0, stats.TotalTargets)
	assert.Equal(t, 0, stats.Scanned)
	assert.False(t, stats.EndTime.IsZero())
	assert.Equal(t, [][2]int{{0, 0}}, rec.progress)
	assert.False(t, s.IsRunning())
}

func TestScan_InvalidTargetLogged(t *testing.T) {
	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(pipeDialer(nil)))

	_, err := s.Scan(context.Background(), testConfig([]string{"not-an-ip", "10.0.0.1"}, 22))
	require.NoError(t, err)
	assert.True(t, rec.hasLog("Invalid target 'not-an-ip'"))
	assert.True(t, rec.hasLog("Starting scan: 1 hosts, 1 ports, 1 total checks"))
	assert.Equal(t, 1, s.Stats().TotalTargets)
}

func TestScan_AlreadyRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := dialer.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, refused(address)
	})

	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(blocking))
	cfg := testConfig([]string{"10.0.0.1"}, 22)
	cfg.Timeout = 5 * time.Second

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background(), cfg)
		done <- err
	}()

	<-entered
	assert.True(t, s.IsRunning())

	results, err := s.Scan(context.Background(), testConfig([]string{"10.0.0.2"}, 22))
	assert.ErrorIs(t, err, ErrScanRunning)
	assert.Nil(t, results)
	assert.True(t, rec.hasLog("Scan already running"))
	// 运行中的扫描不受影响
	assert.Equal(t, 1, s.Stats().TotalTargets)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.IsRunning())
	assert.Equal(t, 1, s.Stats().Scanned)
}

func TestScan_Loopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Write([]byte("220 service ready\r\n"))
			c.Close()
		}
	}()
	openPort := ln.Addr().(*net.TCPAddr).Port

	// 取一个空闲端口后立即关闭
	tmp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := tmp.Addr().(*net.TCPAddr).Port
	tmp.Close()

	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(dialer.NewDefaultDialer(time.Second)))
	results, err := s.Scan(context.Background(), testConfig([]string{"127.0.0.1"}, openPort, closedPort))
	require.NoError(t, err)

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, "127.0.0.1", res.IP)
	assert.Equal(t, openPort, res.Port)
	assert.Equal(t, model.StatusOpen, res.Status)
	assert.Equal(t, model.ServiceUnknown, res.Service)
	assert.Equal(t, "220 service ready", res.Banner)
	assert.Positive(t, res.ScanTime)

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalTargets)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.OpenPorts)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, rec.results, results)
	assert.True(t, rec.hasLog("Scan complete: 1 open, 0 SSH, 0 RDP"))
}

func TestScan_IdentifyAndCredentials(t *testing.T) {
	cracker := &staticCracker{name: "ssh", user: "root", pass: "toor"}
	tester := brute.NewTester()
	tester.RegisterCracker(cracker)

	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(),
		WithDialer(pipeDialer(map[int]func(net.Conn){22: sshServer, 3389: rdpServer})),
		WithTester(tester),
		WithIdentifier(identify.NewIdentifier()),
	)

	cfg := testConfig([]string{"10.0.0.7"}, 22, 3389)
	cfg.TestCredentials = true
	cfg.Usernames = []string{"admin", "root"}
	cfg.Passwords = []string{"123456", "toor"}

	results, err := s.Scan(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPort := map[int]*model.ScanResult{}
	for _, r := range results {
		byPort[r.Port] = r
	}

	ssh := byPort[22]
	require.NotNil(t, ssh)
	assert.Equal(t, model.ServiceSSH, ssh.Service)
	assert.Equal(t, "SSH-2.0", ssh.Fingerprint)
	assert.Equal(t, "OpenSSH_8.9p1 Ubuntu-3", ssh.Version)
	assert.Equal(t, model.CredentialValid, ssh.CredentialStatus)
	assert.Equal(t, "root", ssh.ValidUsername)
	assert.Equal(t, "toor", ssh.ValidPassword)

	rdp := byPort[3389]
	require.NotNil(t, rdp)
	assert.Equal(t, model.ServiceRDP, rdp.Service)
	assert.Equal(t, identify.RDPFingerprint, rdp.Fingerprint)
	assert.Equal(t, model.CredentialNotTested, rdp.CredentialStatus)

	stats := s.Stats()
	assert.Equal(t, 2, stats.OpenPorts)
	assert.Equal(t, 1, stats.SSHFound)
	assert.Equal(t, 1, stats.RDPFound)
	assert.Equal(t, 1, stats.CredentialsValid)
	assert.True(t, rec.hasLog("Scan complete: 2 open, 1 SSH, 1 RDP"))
}

func TestScan_NoIdentificationSkipsCredentials(t *testing.T) {
	cracker := &staticCracker{name: "ssh", user: "root", pass: "toor"}
	tester := brute.NewTester()
	tester.RegisterCracker(cracker)

	s := NewNetworkScanner(Callbacks{},
		WithDialer(pipeDialer(map[int]func(net.Conn){22: sshServer})),
		WithTester(tester),
	)
	cfg := testConfig([]string{"10.0.0.7"}, 22)
	cfg.GrabBanner = false
	cfg.Fingerprint = false
	cfg.TestCredentials = true
	cfg.Usernames = []string{"root"}
	cfg.Passwords = []string{"toor"}

	results, err := s.Scan(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.ServiceUnknown, results[0].Service)
	assert.Empty(t, results[0].Banner)
	assert.Equal(t, model.CredentialNotTested, results[0].CredentialStatus)
	assert.Zero(t, cracker.attempts.Load())
}

func TestScan_MaxConcurrentAndProgress(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := dialer.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil, refused(address)
	})

	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(slow))
	cfg := testConfig([]string{"10.0.0.1-20"}, 22)
	cfg.MaxConcurrent = 3
	cfg.ProgressInterval = 5

	results, err := s.Scan(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	assert.Equal(t, [][2]int{{5, 20}, {10, 20}, {15, 20}, {20, 20}}, rec.progress)
	assert.Equal(t, 20, s.Stats().Scanned)
}

func TestScan_FinalProgressWhenNotOnInterval(t *testing.T) {
	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(pipeDialer(nil)))
	cfg := testConfig([]string{"10.0.0.1-3"}, 22)
	cfg.ProgressInterval = 2

	_, err := s.Scan(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, rec.progress)
}

func TestScan_Stop(t *testing.T) {
	slow := dialer.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, refused(address)
	})

	var s *NetworkScanner
	rec := &recorder{}
	cb := rec.callbacks()
	cb.OnProgress = func(scanned, total int) {
		if scanned >= 5 {
			s.Stop()
		}
	}
	s = NewNetworkScanner(cb, WithDialer(slow))

	cfg := testConfig([]string{"10.0.0.0/24"}, 22)
	cfg.MaxConcurrent = 2
	cfg.ProgressInterval = 1

	_, err := s.Scan(context.Background(), cfg)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 256, stats.TotalTargets)
	assert.Less(t, stats.Scanned, stats.TotalTargets)
	assert.GreaterOrEqual(t, stats.Scanned, 5)
	assert.False(t, stats.EndTime.IsZero())
	assert.True(t, rec.hasLog("Scan cancelled"))
	assert.False(t, s.IsRunning())

	// 空闲时为空操作
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestScan_DelayInterruptedByContext(t *testing.T) {
	s := NewNetworkScanner(Callbacks{}, WithDialer(pipeDialer(nil)))
	cfg := testConfig([]string{"10.0.0.1", "10.0.0.2"}, 22)
	cfg.DelayBetweenHosts = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Scan(ctx, cfg)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, s.Stats().Scanned)
}

func TestScan_PanicBecomesError(t *testing.T) {
	boom := dialer.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		panic("boom")
	})

	rec := &recorder{}
	s := NewNetworkScanner(rec.callbacks(), WithDialer(boom))
	results, err := s.Scan(context.Background(), testConfig([]string{"10.0.0.1"}, 22))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, model.StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "boom")
	assert.Len(t, rec.results, 1)
	assert.Equal(t, 1, s.Stats().Errors)
}

func TestScan_SequentialRunsResetStats(t *testing.T) {
	s := NewNetworkScanner(Callbacks{}, WithDialer(pipeDialer(map[int]func(net.Conn){22: sshServer})))

	_, err := s.Scan(context.Background(), testConfig([]string{"10.0.0.1-4"}, 22))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Stats().SSHFound)

	_, err = s.Scan(context.Background(), testConfig([]string{"10.0.0.1"}, 22))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats().SSHFound)
	assert.Equal(t, 1, s.Stats().Scanned)
}

func TestNewLimiter(t *testing.T) {
	cfg := model.NewScanConfig()
	cfg.MaxConcurrent = 5
	l := newLimiter(cfg)
	assert.Equal(t, 5, l.CurrentLimit())
	assert.Equal(t, 5, l.MaxLimit())

	cfg.AdaptiveConcurrency = true
	cfg.MaxConcurrent = 50
	l = newLimiter(cfg)
	assert.Equal(t, 50, l.CurrentLimit())
	assert.Equal(t, 50, l.MaxLimit())

	// 下限不超过上限
	cfg.MaxConcurrent = 4
	l = newLimiter(cfg)
	assert.Equal(t, 4, l.MaxLimit())
}

func TestApplyResult(t *testing.T) {
	var st model.ScanStats
	applyResult(&st, model.NewScanResult("10.0.0.1", 22, model.StatusClosed))

	ssh := model.NewScanResult("10.0.0.1", 22, model.StatusOpen)
	ssh.Service = model.ServiceSSH
	ssh.CredentialStatus = model.CredentialValid
	applyResult(&st, ssh)

	rdp := model.NewScanResult("10.0.0.1", 3389, model.StatusOpen)
	rdp.Service = model.ServiceRDP
	applyResult(&st, rdp)

	applyResult(&st, model.NewScanResult("10.0.0.2", 22, model.StatusError))
	applyResult(&st, model.NewScanResult("10.0.0.3", 22, model.StatusFiltered))

	assert.Equal(t, model.ScanStats{
		Scanned:          5,
		OpenPorts:        2,
		SSHFound:         1,
		RDPFound:         1,
		CredentialsValid: 1,
		Errors:           1,
	}, st)
}
