package syncer

import (
	"context"
	"net"
	"strings"
	"time"
)

// ConnectivityProbe 在同步开始前判断远端是否可达。
// 不可达不是错误，同步会整体跳过并报告原因。
type ConnectivityProbe interface {
	Reachable(ctx context.Context) bool
}

// TCPProbe 通过 TCP 拨号探测远端端点。
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPProbe 创建探测器；addr 为空时回退到远端存储的端点地址。
func NewTCPProbe(addr string, timeout time.Duration, store RemoteStore) *TCPProbe {
	addr = strings.TrimSpace(addr)
	if addr == "" && store != nil {
		addr = store.ProbeAddr()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TCPProbe{Addr: addr, Timeout: timeout}
}

func (p *TCPProbe) Reachable(ctx context.Context) bool {
	if p == nil || strings.TrimSpace(p.Addr) == "" {
		return false
	}

	dialer := &net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
