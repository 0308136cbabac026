package identify

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lunixbochs/struc"

	"neorecon/internal/core/model"
)

const (
	tpktVersion         = 0x03
	x224ConnectionReq   = 0xE0
	x224ConnectionConf  = 0xD0
	rdpNegReq           = 0x01
	rdpNegRsp           = 0x02
	rdpNegFailure       = 0x03
	rdpConnReqLength    = 19
	rdpMinConfirmLength = 6
)

// RDPFingerprint RDP 指纹标签
const RDPFingerprint = "RDP/TPKT"

// RDPBanner 收到 X.224 Connection Confirm 时的 Banner
const RDPBanner = "RDP Connection Confirm"

// tpktHeader RFC 1006 TPKT 头 (4 字节)
type tpktHeader struct {
	Version  uint8
	Reserved uint8
	Length   uint16
}

// x224ConnectionRequest X.224 Connection Request 头 (7 字节)
type x224ConnectionRequest struct {
	LengthIndicator uint8
	Code            uint8
	DstRef          uint16
	SrcRef          uint16
	Class           uint8
}

// rdpNegotiation RDP_NEG_REQ / RDP_NEG_RSP / RDP_NEG_FAILURE (8 字节, 小端)
type rdpNegotiation struct {
	Type   uint8
	Flags  uint8
	Length uint16 `struc:"uint16,little"`
	Value  uint32 `struc:"uint32,little"` // requestedProtocols / selectedProtocol / failureCode
}

// connectionRequest TPKT + X.224 CR + RDP_NEG_REQ
type connectionRequest struct {
	TPKT tpktHeader
	X224 x224ConnectionRequest
	Neg  rdpNegotiation
}

// BuildConnectionRequest 构造 19 字节的最小连接请求 (requestedProtocols = PROTOCOL_RDP)
func BuildConnectionRequest() ([]byte, error) {
	req := connectionRequest{
		TPKT: tpktHeader{Version: tpktVersion, Length: rdpConnReqLength},
		X224: x224ConnectionRequest{
			LengthIndicator: rdpConnReqLength - 5, // 不含 TPKT 头和 LI 自身
			Code:            x224ConnectionReq,
		},
		Neg: rdpNegotiation{Type: rdpNegReq, Length: 8},
	}
	var buf bytes.Buffer
	if err := struc.Pack(&buf, &req); err != nil {
		return nil, fmt.Errorf("pack rdp connection request: %w", err)
	}
	return buf.Bytes(), nil
}

// connectionRequestBytes 进程内只构造一次
var connectionRequestBytes = func() []byte {
	b, err := BuildConnectionRequest()
	if err != nil {
		panic(err)
	}
	return b
}()

// RDPStrategy 发送 X.224 Connection Request 并校验 Connection Confirm
type RDPStrategy struct{}

func (RDPStrategy) Name() string { return "rdp" }

func (RDPStrategy) Identify(conn net.Conn, timeout time.Duration) Result {
	res := Result{Service: model.ServiceUnknown}
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write(connectionRequestBytes); err != nil {
		return res
	}

	buf := make([]byte, rdpConnReqLength)
	n, err := io.ReadAtLeast(conn, buf, rdpMinConfirmLength)
	if err != nil && n < rdpMinConfirmLength {
		return res
	}
	return ParseConnectionConfirm(buf[:n])
}

// ParseConnectionConfirm 解析服务端回复
// 首字节为 TPKT 版本 0x03 且 X.224 类型为 Connection Confirm 时认定为 RDP
// 携带 RDP_NEG_RSP 时 Version 为协商的安全协议
func ParseConnectionConfirm(b []byte) Result {
	res := Result{Service: model.ServiceUnknown}
	if len(b) < rdpMinConfirmLength {
		return res
	}

	var hdr tpktHeader
	if err := struc.Unpack(bytes.NewReader(b[:4]), &hdr); err != nil {
		return res
	}
	if hdr.Version != tpktVersion || b[5]&0xF0 != x224ConnectionConf {
		return res
	}

	res.Service = model.ServiceRDP
	res.Fingerprint = RDPFingerprint
	res.Banner = RDPBanner

	// TPKT(4) + X.224 CC(7) 之后是 8 字节的协商结构
	if len(b) >= 19 {
		var neg rdpNegotiation
		if err := struc.Unpack(bytes.NewReader(b[11:19]), &neg); err == nil {
			switch neg.Type {
			case rdpNegRsp:
				res.Version = protocolName(neg.Value)
			case rdpNegFailure:
				res.Version = fmt.Sprintf("NEG_FAILURE(%d)", neg.Value)
			}
		}
	}
	return res
}

// protocolName RDP 安全协议标识 (MS-RDPBCGR 2.2.1.2.1)
func protocolName(p uint32) string {
	switch p {
	case 0x00:
		return "PROTOCOL_RDP"
	case 0x01:
		return "PROTOCOL_SSL"
	case 0x02:
		return "PROTOCOL_HYBRID"
	case 0x04:
		return "PROTOCOL_RDSTLS"
	case 0x08:
		return "PROTOCOL_HYBRID_EX"
	}
	return fmt.Sprintf("PROTOCOL_0x%X", p)
}
