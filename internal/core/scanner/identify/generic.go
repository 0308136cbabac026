package identify

import (
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"neorecon/internal/core/model"
)

// GenericStrategy 单次读取服务端主动发送的内容作为 Banner
type GenericStrategy struct {
	MaxBytes int
}

func (GenericStrategy) Name() string { return "generic" }

func (g GenericStrategy) Identify(conn net.Conn, timeout time.Duration) Result {
	res := Result{Service: model.ServiceUnknown}
	size := g.MaxBytes
	if size <= 0 {
		size = 1024
	}
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, size)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return res
	}
	res.Banner = CleanBanner(buf[:n])
	return res
}

// CleanBanner 丢弃非法 UTF-8 字节，去掉首尾空白，截断到 256 个字符
func CleanBanner(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	s = strings.TrimSpace(s)
	return truncateRunes(s, model.MaxBannerLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
