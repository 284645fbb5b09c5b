// Package probe implements the single-shot TCP connect primitive used
// by the concurrency harness and the probe subcommand: connect within
// a deadline, close immediately on success, and report elapsed time and
// a classified error.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/plyul/netprobe/neterr"
)

// Result is the outcome of a single TryConnect call.
type Result struct {
	Host      string
	Port      int
	Success   bool
	ElapsedMS float64
	Err       error
}

// TryConnect opens a TCP stream to host:port within timeout, closing it
// immediately on success. ElapsedMS is populated (monotonic, rounded to
// two decimals) on both the success and failure paths.
func TryConnect(ctx context.Context, host string, port int, timeout time.Duration) Result {
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", host, port)

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	elapsed := round2(time.Since(start).Seconds() * 1000)

	if err != nil {
		return Result{
			Host:      host,
			Port:      port,
			Success:   false,
			ElapsedMS: elapsed,
			Err:       neterr.Classify(err),
		}
	}
	_ = conn.Close()

	return Result{
		Host:      host,
		Port:      port,
		Success:   true,
		ElapsedMS: elapsed,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
