package healthcheck

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultProbeTimeout bounds a single connection attempt.
const DefaultProbeTimeout = 3 * time.Second

// Prober checks whether a peer accepts connections.
type Prober interface {
	// Probe returns nil if a connection to addr could be established.
	Probe(ctx context.Context, addr string) error
}

// DialFunc opens a connection, usually net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network,
	address string) (net.Conn, error)

// TCPProber probes peers by opening and immediately closing a TCP
// connection to their peer port.
type TCPProber struct {
	// Port is the port every probe connects to.
	Port uint16

	// Timeout bounds the connection attempt.
	Timeout time.Duration

	// Dial opens the connection. It defaults to a net.Dialer.
	Dial DialFunc
}

// A compile-time check to ensure TCPProber implements Prober.
var _ Prober = (*TCPProber)(nil)

// NewTCPProber creates a prober for the given port and timeout.
func NewTCPProber(port uint16, timeout time.Duration) *TCPProber {
	return &TCPProber{
		Port:    port,
		Timeout: timeout,
		Dial:    (&net.Dialer{}).DialContext,
	}
}

// Probe dials addr on the configured port. The connection is always closed
// before returning.
func (p *TCPProber) Probe(ctx context.Context, addr string) error {
	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	target := net.JoinHostPort(addr, strconv.Itoa(int(p.Port)))
	conn, err := dial(ctx, "tcp", target)
	if err != nil {
		log.Tracef("Failed to connect to %v: %v", target, err)
		return err
	}

	return conn.Close()
}
