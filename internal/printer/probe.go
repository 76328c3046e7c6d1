package printer

import (
	"context"
	"net"
	"time"
)

// Probe checks that something accepts TCP connections on addr.
func Probe(ctx context.Context, addr string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classifyDial(addr, err)
	}
	return conn.Close()
}
