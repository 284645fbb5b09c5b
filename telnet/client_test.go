package telnet

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEchoServer listens on an ephemeral port, accepts one connection,
// writes greeting immediately, then echoes anything it receives until
// closed.
func startEchoServer(t *testing.T, greeting []byte) (addr string, accepted chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted = make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if len(greeting) > 0 {
			_, _ = conn.Write(greeting)
		}
		accepted <- conn
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				_, _ = conn.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String(), accepted
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestClient_ConnectAndClose(t *testing.T) {
	addr, accepted := startEchoServer(t, []byte("hello telnet"))
	host, port := splitHostPort(t, addr)

	c := NewClient(host, port, WithConnectTimeout(time.Second), WithReadTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	<-accepted

	// reconnect is a no-op
	require.NoError(t, c.Connect(ctx))

	c.Close()
	c.Close() // idempotent
}

func TestClient_WriteEscapesIAC(t *testing.T) {
	// A silent server: the test itself is the only reader of the
	// server-side conn, so the written bytes are observed as sent.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()
	host, port := splitHostPort(t, ln.Addr().String())

	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	conn := <-accepted
	defer conn.Close()
	defer c.Close()

	require.NoError(t, c.Write([]byte{0xFF, 0x41, 0xFF, 0x42}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// Skip the client's initial negotiation frame written by Connect.
	_, err = io.ReadFull(conn, make([]byte, len(NewNegotiator(DefaultTerminalProfile()).InitialNegotiation())))
	require.NoError(t, err)
	buf := make([]byte, 6)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFF, 0x41, 0xFF, 0xFF, 0x42}, buf)
}

func TestClient_ReadUntilAcrossChunks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, part := range []string{"foo", "bar", "baz$ "} {
			_, _ = conn.Write([]byte(part))
			time.Sleep(20 * time.Millisecond)
		}
		time.Sleep(200 * time.Millisecond)
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	got, err := c.ReadUntil(ctx, `\$ `, 2*time.Second)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(got, []byte("baz$ ")))
}

func TestClient_ReadUntilTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("nothing to see\r\n"))
		time.Sleep(500 * time.Millisecond)
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err = c.ReadUntil(ctx, `\$ `, 150*time.Millisecond)
	require.Error(t, err)
}

func TestClient_ReadUntilPromptDefaultsToShellPrompt(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("welcome\r\nhost$ "))
		time.Sleep(200 * time.Millisecond)
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	got, err := c.ReadUntilPrompt(ctx, "", 2*time.Second)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(got, []byte("host$ ")))
}

func TestClient_ReadUntilPromptUsesExplicitPattern(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("Password: "))
		time.Sleep(200 * time.Millisecond)
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	got, err := c.ReadUntilPrompt(ctx, `Password:\s*$`, 2*time.Second)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(got, []byte("Password: ")))
}

func TestClient_PatternCompileError(t *testing.T) {
	addr, _ := startEchoServer(t, nil)
	host, port := splitHostPort(t, addr)
	c := NewClient(host, port, WithConnectTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err := c.ReadUntil(ctx, `(unterminated`, 100*time.Millisecond)
	require.Error(t, err)
}
