// Package target 将用户输入的目标描述展开为 IPv4 地址列表
// 支持: 单个 IP (192.168.1.1)、CIDR (192.168.1.0/24)、末段范围 (192.168.1.1-254)
package target

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"neorecon/internal/pkg/logger"
)

// ErrInvalidTarget 无法解析的目标描述
var ErrInvalidTarget = errors.New("invalid target")

// Expand 按输入顺序展开所有目标，不去重
// 无效的描述贡献 0 个地址 (只记一条 debug 日志)
func Expand(specs []string) []string {
	var ips []string
	for _, spec := range specs {
		addrs, err := ExpandSpec(spec)
		if err != nil {
			logger.Debugf("Skipping invalid target %q: %v", spec, err)
			continue
		}
		ips = append(ips, addrs...)
	}
	return ips
}

// ExpandSpec 展开单个目标描述
// 空白描述返回 (nil, nil)
func ExpandSpec(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	switch {
	case strings.Contains(spec, "/"):
		return expandCIDR(spec)
	case strings.Contains(spec, "-"):
		return expandRange(spec)
	default:
		addr, err := netip.ParseAddr(spec)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidTarget, spec)
		}
		return []string{spec}, nil
	}
}

// expandCIDR 网段内所有可用主机地址 (不含网络地址和广播地址)
// /31 返回两个地址，/32 返回单个地址
// 主机位不为 0 时按掩码对齐 (192.168.1.5/24 等同 192.168.1.0/24)
func expandCIDR(spec string) ([]string, error) {
	prefix, err := netip.ParsePrefix(spec)
	if err != nil || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%w: %q is not an IPv4 CIDR", ErrInvalidTarget, spec)
	}
	prefix = prefix.Masked()

	first := prefix.Addr()
	size := uint64(1) << (32 - prefix.Bits())

	var skipHead, skipTail uint64
	if prefix.Bits() < 31 {
		skipHead, skipTail = 1, 1
	}

	ips := make([]string, 0, size-skipHead-skipTail)
	addr := first
	for i := uint64(0); i < size; i++ {
		if i >= skipHead && i < size-skipTail {
			ips = append(ips, addr.String())
		}
		addr = addr.Next()
	}
	return ips, nil
}

// expandRange 末段范围 a.b.c.x-y，要求 0 <= x <= y <= 255
func expandRange(spec string) ([]string, error) {
	parts := strings.Split(spec, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q has more than one '-'", ErrInvalidTarget, spec)
	}

	head := strings.TrimSpace(parts[0])
	dot := strings.LastIndex(head, ".")
	if dot < 0 {
		return nil, fmt.Errorf("%w: %q is not a last-octet range", ErrInvalidTarget, spec)
	}
	base := head[:dot]

	// 以 x 拼出完整地址校验前三段
	if addr, err := netip.ParseAddr(head); err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: %q has an invalid base address", ErrInvalidTarget, spec)
	}

	start, err := parseOctet(head[dot+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, spec, err)
	}
	end, err := parseOctet(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, spec, err)
	}
	if start > end {
		return nil, fmt.Errorf("%w: %q: range start %d is greater than end %d", ErrInvalidTarget, spec, start, end)
	}

	ips := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		ips = append(ips, base+"."+strconv.Itoa(i))
	}
	return ips, nil
}

func parseOctet(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("octet %q is not a number", s)
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("octet %d out of range 0-255", n)
	}
	return n, nil
}
