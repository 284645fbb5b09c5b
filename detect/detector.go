// Package detect implements passive banner classification followed by
// active TLS/HTTP probing to identify the protocol spoken by a remote
// TCP endpoint, and hands the classified connection off to a
// protocol-appropriate client.
package detect

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/plyul/netprobe/neterr"
)

// Protocol is the classification tag a Detector assigns.
type Protocol string

const (
	SSH           Protocol = "SSH"
	FTP           Protocol = "FTP"
	Telnet        Protocol = "TELNET"
	HTTP          Protocol = "HTTP"
	HTTPS         Protocol = "HTTPS"
	Unknown       Protocol = "UNKNOWN"
	UnknownBanner Protocol = "UNKNOWN_BANNER"
	ErrorProtocol Protocol = "ERROR"
)

const (
	passiveReadSize    = 1024
	passiveReadTimeout = 1 * time.Second
	activeReadSize     = 1024
	activeReadTimeout  = 2 * time.Second
	maxBannerBytes     = 1024
)

// Result is a detection outcome. Banner is present exactly when the
// result came from passive inspection of non-empty server-initiated
// data.
type Result struct {
	Protocol Protocol
	Banner   []byte
	Extras   map[string]string
}

// Detector runs the two-phase (passive/active) classification
// procedure. A Detector instance is single-use per Detect call: it
// never shares a mutable connection across two concurrent calls.
//
// On a positive Telnet classification, Detector holds onto the
// classification stream (and the bytes already peeked from it) so that
// a subsequent GetClient call can hand it off to a Telnet client
// without re-dialing. Every other outcome drops the slot before Detect
// returns.
type Detector struct {
	log zerolog.Logger

	pendingConn net.Conn
	pendingData []byte
}

// New constructs a Detector. A zero-value Detector is usable; it logs
// nothing.
func New(log zerolog.Logger) *Detector {
	return &Detector{log: log}
}

// Close releases a connection retained by a prior Detect call that the
// caller never claimed via GetClient. It is a no-op if nothing is
// pending, and safe to call after GetClient has already consumed the
// slot.
func (d *Detector) Close() {
	if d.pendingConn != nil {
		_ = d.pendingConn.Close()
		d.pendingConn = nil
		d.pendingData = nil
	}
}

// Detect classifies host:port. It never returns an error: any
// classification failure is reported as an ErrorProtocol Result with
// the message recorded in Extras["error"].
func (d *Detector) Detect(ctx context.Context, host string, port int) Result {
	result, err := d.detect(ctx, host, port)
	if err != nil {
		d.log.Debug().Err(err).Str("host", host).Int("port", port).Msg("detection failed")
		return Result{Protocol: ErrorProtocol, Extras: map[string]string{"error": err.Error()}}
	}
	return result
}

func (d *Detector) detect(ctx context.Context, host string, port int) (Result, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, neterr.Classify(err)
	}
	// conn is borrowed by the passive phase; every exit path below
	// either closes it or hands it off to Telnet construction.
	closeConn := true
	defer func() {
		if closeConn {
			_ = conn.Close()
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(passiveReadTimeout)); err != nil {
		return Result{}, neterr.Classify(err)
	}
	buf := make([]byte, passiveReadSize)
	n, readErr := conn.Read(buf)

	if n > 0 {
		banner := buf[:n]
		if len(banner) > maxBannerBytes {
			banner = banner[:maxBannerBytes]
		}
		switch {
		case bytes.HasPrefix(banner, []byte("SSH-")):
			return Result{
				Protocol: SSH,
				Banner:   banner,
				Extras:   map[string]string{"version": strings.TrimRight(string(banner), "\r\n")},
			}, nil
		case bytes.HasPrefix(banner, []byte("220 ")):
			return Result{Protocol: FTP, Banner: banner}, nil
		case bytes.IndexByte(banner, 0xFF) >= 0:
			closeConn = false
			d.pendingConn = conn
			d.pendingData = append([]byte(nil), banner...)
			return Result{Protocol: Telnet, Banner: banner}, nil
		default:
			return Result{Protocol: UnknownBanner, Banner: banner}, nil
		}
	}

	if readErr != nil && !isTimeout(readErr) {
		return Result{}, neterr.Classify(readErr)
	}

	// Passive read timed out: fall through to active probing. The
	// passive stream is no longer useful to either active probe since
	// they establish their own transport.
	_ = conn.Close()
	closeConn = false

	if d.tlsHandshakeSucceeds(ctx, host, port) {
		return Result{Protocol: HTTPS}, nil
	}

	if res, ok := d.probeHTTP(ctx, host, port); ok {
		return res, nil
	}

	return Result{Protocol: Unknown}, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (d *Detector) tlsHandshakeSucceeds(ctx context.Context, host string, port int) bool {
	addr := fmt.Sprintf("%s:%d", host, port)
	ctx, cancel := context.WithTimeout(ctx, activeReadTimeout)
	defer cancel()
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: activeReadTimeout},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opportunistic probe, not a verified channel
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (d *Detector) probeHTTP(ctx context.Context, host string, port int) (Result, bool) {
	addr := fmt.Sprintf("%s:%d", host, port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, false
	}
	defer conn.Close()

	req := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\n\r\n", host)
	if err := conn.SetWriteDeadline(time.Now().Add(activeReadTimeout)); err != nil {
		return Result{}, false
	}
	if _, err := conn.Write([]byte(req)); err != nil {
		return Result{}, false
	}

	if err := conn.SetReadDeadline(time.Now().Add(activeReadTimeout)); err != nil {
		return Result{}, false
	}
	buf := make([]byte, activeReadSize)
	n, _ := conn.Read(buf)
	resp := string(buf[:n])
	if !strings.Contains(resp, "HTTP/") {
		return Result{}, false
	}

	return Result{Protocol: HTTP, Extras: map[string]string{"version": httpVersion(resp)}}, true
}

func httpVersion(resp string) string {
	switch {
	case strings.Contains(resp, "HTTP/1.0"):
		return "1.0"
	case strings.Contains(resp, "HTTP/2"):
		return "2"
	default:
		return "1.1"
	}
}
