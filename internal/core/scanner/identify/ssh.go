package identify

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	"neorecon/internal/core/model"
)

const sshMaxLine = 1024

// SSHStrategy 读取服务端主动发送的版本行
// SSH-<protoversion>-<softwareversion>[ comments]
type SSHStrategy struct{}

func (SSHStrategy) Name() string { return "ssh" }

func (SSHStrategy) Identify(conn net.Conn, timeout time.Duration) Result {
	var res Result
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	// 版本行不超过 1KiB
	reader := bufio.NewReader(io.LimitReader(conn, sshMaxLine))
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return res
	}
	// 未读到换行 (超时/截断) 时不认为是合法版本行
	if !strings.HasSuffix(line, "\n") {
		return res
	}

	line = strings.TrimRight(line, "\r\n")
	banner, fingerprint, version, ok := ParseSSHBanner(line)
	if !ok {
		return res
	}
	return Result{
		Service:     model.ServiceSSH,
		Banner:      banner,
		Fingerprint: fingerprint,
		Version:     version,
	}
}

// ParseSSHBanner 解析 SSH 版本行 (不含换行)
// 例: "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3" -> ("SSH-2.0-OpenSSH_8.9p1 Ubuntu-3", "SSH-2.0", "OpenSSH_8.9p1 Ubuntu-3")
func ParseSSHBanner(line string) (banner, fingerprint, version string, ok bool) {
	if !strings.HasPrefix(line, "SSH-") {
		return "", "", "", false
	}
	parts := strings.SplitN(line, "-", 3)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return truncateRunes(line, model.MaxBannerLength), "SSH-" + parts[1], parts[2], true
}
