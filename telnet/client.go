package telnet

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/plyul/netprobe/neterr"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 5 * time.Second
	negotiationGrace      = 100 * time.Millisecond
	negotiationReadWindow = 1 * time.Second
	readUntilPollInterval = 10 * time.Millisecond
	maxInnerReadWait      = 1 * time.Second
)

// DefaultPromptPattern matches a trailing '>' '#' or '$' shell-style
// prompt. It is a regular expression, not a literal, even though it
// looks like one — ReadUntilPrompt always compiles it as regex.
const DefaultPromptPattern = `[>#$]\s*$`

// Client is a full Telnet client: connection lifecycle, the RFC
// 854/855/1091/1073 handshake (via an embedded Negotiator), escaped
// writes and pattern-terminated reads.
type Client struct {
	Host string
	Port int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	DefaultPrompt  string

	profile TerminalProfile
	log     zerolog.Logger

	conn    net.Conn
	neg     *Negotiator
	pending []byte // user data decoded ahead of a Read call, e.g. from AdoptConn's preRead
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithTerminalProfile overrides the default VT100/132x100 profile.
func WithTerminalProfile(p TerminalProfile) ClientOption {
	return func(c *Client) { c.profile = p }
}

// WithConnectTimeout overrides the 5s default connect timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.ConnectTimeout = d }
}

// WithReadTimeout overrides the 5s default read timeout.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.ReadTimeout = d }
}

// WithDefaultPrompt overrides the default `[>#$]\s*$` prompt pattern.
func WithDefaultPrompt(pattern string) ClientOption {
	return func(c *Client) { c.DefaultPrompt = pattern }
}

// WithLogger attaches a logger; the zero value is a no-op logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient constructs a Client. It does not connect.
func NewClient(host string, port int, opts ...ClientOption) *Client {
	c := &Client{
		Host:           host,
		Port:           port,
		ConnectTimeout: defaultConnectTimeout,
		ReadTimeout:    defaultReadTimeout,
		DefaultPrompt:  DefaultPromptPattern,
		profile:        DefaultTerminalProfile(),
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnectTo constructs a Client and connects it, returning a classified
// error on failure.
func ConnectTo(ctx context.Context, host string, port int, opts ...ClientOption) (*Client, error) {
	c := NewClient(host, port, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the TCP stream subject to ConnectTimeout, writes the
// negotiator's initial negotiation frame, then drains the server's
// opening IAC flurry (a 100ms grace sleep followed by a 1s bounded
// read) so replies are sent before user-level I/O begins. User data
// received in that window is returned by the next Read.
//
// Connect failures are returned, never panicked; any partially opened
// resource is closed. Calling Connect on an already-connected Client is
// a no-op returning nil.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: c.ConnectTimeout}
	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)

	connectCtx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		return neterr.Classify(err)
	}

	return c.beginOn(ctx, conn, nil)
}

// AdoptConn wraps an already-open net.Conn (typically handed off from a
// protocol detector that peeked an IAC byte during passive
// classification) as a ready Telnet client, running the same initial
// negotiation Connect would, after first feeding any bytes the caller
// already read off the wire through the negotiator.
func AdoptConn(ctx context.Context, host string, port int, conn net.Conn, preRead []byte, opts ...ClientOption) (*Client, error) {
	c := NewClient(host, port, opts...)
	if err := c.beginOn(ctx, conn, preRead); err != nil {
		return nil, err
	}
	return c, nil
}

// beginOn performs the shared connect-time handshake priming used by
// both a fresh dial (Connect) and an adopted connection (AdoptConn).
func (c *Client) beginOn(ctx context.Context, conn net.Conn, preRead []byte) error {
	c.conn = conn
	c.neg = NewNegotiator(c.profile)

	if len(preRead) > 0 {
		data, replies := c.neg.HandleCommand(preRead)
		c.pending = append(c.pending, data...)
		if len(replies) > 0 {
			if err := c.writeReplies(replies); err != nil {
				_ = c.conn.Close()
				c.conn = nil
				return neterr.Classify(err)
			}
		}
	}

	if _, err := c.conn.Write(c.neg.InitialNegotiation()); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return neterr.Classify(err)
	}

	select {
	case <-time.After(negotiationGrace):
	case <-ctx.Done():
		_ = c.conn.Close()
		c.conn = nil
		return neterr.New(neterr.Unexpected, ctx.Err())
	}

	opening, err := c.Read(ctx, 1024, negotiationReadWindow)
	if err != nil && asKind(err) != neterr.ReadTimeout {
		// A timed-out opening read is soft, not a connect failure.
		_ = c.conn.Close()
		c.conn = nil
		return err
	}
	// User data that arrived with the opening flurry is kept for the
	// first user-level Read.
	c.pending = append(append([]byte(nil), opening...), c.pending...)

	c.log.Debug().
		Str("host", c.Host).
		Int("port", c.Port).
		Bool("peer_suppress_ga", c.neg.TheirOption(SuppressGA)).
		Msg("telnet connected")
	return nil
}

// asKind extracts the classification from a neterr.Error, or Unexpected
// if err isn't one.
func asKind(err error) neterr.Kind {
	if e, ok := err.(*neterr.Error); ok {
		return e.Kind
	}
	return neterr.Unexpected
}

// Close closes the connection and negotiator state. It never propagates
// errors — it logs and swallows them. After Close, Connect may be
// called again to reconnect.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("telnet close error swallowed")
	}
	c.conn = nil
	c.neg = nil
	c.pending = nil
}

// Open is the scoped-resource entry point: Connect-or-error.
func (c *Client) Open(ctx context.Context) (*Client, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Read reads up to size bytes with the given deadline (0 uses
// ReadTimeout), pipes the result through the negotiator, and returns
// the user-data portion. A deadline expiry is soft: it returns an empty
// slice and a classified ReadTimeout error that callers may choose to
// ignore.
func (c *Client) Read(ctx context.Context, size int, deadline time.Duration) ([]byte, error) {
	if c.conn == nil {
		return nil, neterr.New(neterr.NetworkError, fmt.Errorf("telnet: not connected"))
	}
	if len(c.pending) > 0 {
		n := size
		if n > len(c.pending) {
			n = len(c.pending)
		}
		out := c.pending[:n]
		c.pending = c.pending[n:]
		return out, nil
	}
	if deadline <= 0 {
		deadline = c.ReadTimeout
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return nil, neterr.Classify(err)
	}

	raw := make([]byte, size)
	n, err := c.conn.Read(raw)
	if n > 0 {
		data, replies := c.neg.HandleCommand(raw[:n])
		if werr := c.writeReplies(replies); werr != nil {
			return data, neterr.Classify(werr)
		}
		if err != nil && !isTimeoutErr(err) {
			return data, neterr.Classify(err)
		}
		return data, nil
	}
	if err != nil {
		if isTimeoutErr(err) {
			return []byte{}, neterr.New(neterr.ReadTimeout, err)
		}
		return nil, neterr.Classify(err)
	}
	return []byte{}, nil
}

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// writeReplies concatenates the negotiator's reply frames into a single
// write call, preserving ordering and minimizing syscalls.
func (c *Client) writeReplies(replies [][]byte) error {
	if len(replies) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, r := range replies {
		buf.Write(r)
	}
	_, err := c.conn.Write(buf.Bytes())
	return err
}

// Write IAC-escapes the given bytes (every 0xFF doubled) and writes
// atomically. When no IAC byte is present it writes the slice as-is.
func (c *Client) Write(b []byte) error {
	if c.conn == nil {
		return neterr.New(neterr.NetworkError, fmt.Errorf("telnet: not connected"))
	}
	if bytes.IndexByte(b, 0xFF) < 0 {
		_, err := c.conn.Write(b)
		return neterr.Classify(err)
	}
	escaped := make([]byte, 0, len(b)+8)
	for _, ch := range b {
		escaped = append(escaped, ch)
		if ch == 0xFF {
			escaped = append(escaped, 0xFF)
		}
	}
	_, err := c.conn.Write(escaped)
	return neterr.Classify(err)
}

// ReadUntil accumulates data from repeated Read calls until the decoded
// buffer matches pattern (a regular expression, searched not anchored)
// or the deadline elapses. On match it returns the full accumulated
// buffer including the matching tail. Cancellation discards the partial
// buffer.
func (c *Client) ReadUntil(ctx context.Context, pattern string, deadline time.Duration) ([]byte, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, neterr.New(neterr.PatternCompile, err)
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	buf := make([]byte, 0, 256)
	for {
		select {
		case <-ctx.Done():
			return nil, neterr.New(neterr.PatternTimeout, ctx.Err())
		default:
		}

		remaining := time.Until(deadlineFromCtx(ctx))
		innerWait := maxInnerReadWait
		if remaining < innerWait {
			innerWait = remaining
		}
		if innerWait <= 0 {
			return nil, neterr.New(neterr.PatternTimeout, ctx.Err())
		}

		chunk, rerr := c.Read(ctx, 1024, innerWait)
		if len(chunk) > 0 {
			if len(buf)+len(chunk) > cap(buf) {
				grown := make([]byte, len(buf), (len(buf)+len(chunk))*2)
				copy(grown, buf)
				buf = grown
			}
			buf = append(buf, chunk...)
			decoded := decodeUTF8Lenient(buf)
			if loc := re.FindStringIndex(decoded); loc != nil {
				return buf, nil
			}
			continue
		}
		if rerr != nil {
			if asKind(rerr) == neterr.ReadTimeout {
				// soft timeout on the inner read; keep looping until
				// the outer deadline fires
				continue
			}
			return nil, rerr
		}

		select {
		case <-time.After(readUntilPollInterval):
		case <-ctx.Done():
			return nil, neterr.New(neterr.PatternTimeout, ctx.Err())
		}
	}
}

func deadlineFromCtx(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(maxInnerReadWait)
}

func decodeUTF8Lenient(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte("�")))
}

// ReadUntilPrompt reads until prompt matches (defaulting to
// DefaultPrompt, which is always treated as a regex).
func (c *Client) ReadUntilPrompt(ctx context.Context, prompt string, deadline time.Duration) ([]byte, error) {
	if prompt == "" {
		prompt = c.DefaultPrompt
	}
	return c.ReadUntil(ctx, prompt, deadline)
}

// SendCommand writes text+newline (default "\r\n") as UTF-8 bytes.
func (c *Client) SendCommand(text string, newline string) error {
	if newline == "" {
		newline = "\r\n"
	}
	return c.Write([]byte(text + newline))
}
