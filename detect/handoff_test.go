package detect

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/plyul/netprobe/telnet"
)

func TestGetClient_TelnetAdoptsPendingConnWithoutRedial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte{0xFF, 0xFD, 0x18})
		accepted <- conn
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := New(zerolog.Nop())
	result := d.Detect(context.Background(), host, port)
	require.NotNil(t, d.pendingConn, "Detect must stash the dialed conn for later handoff")

	server := <-accepted
	defer server.Close()

	client, err := d.GetClient(context.Background(), result, host, port)
	require.NoError(t, err)
	tc, ok := client.(*telnet.Client)
	require.True(t, ok)
	defer tc.Close()

	require.Nil(t, d.pendingConn, "GetClient must consume the pending conn")
}

func TestGetClient_TelnetDialsFreshWhenNoPendingConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte{0xFF, 0xFD, 0x18})
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := New(zerolog.Nop())
	client, err := d.GetClient(context.Background(), Result{Protocol: Telnet}, host, port)
	require.NoError(t, err)
	tc, ok := client.(*telnet.Client)
	require.True(t, ok)
	defer tc.Close()
}

func TestGetClient_UnknownProtocolReturnsHandoffUnavailable(t *testing.T) {
	d := New(zerolog.Nop())
	_, err := d.GetClient(context.Background(), Result{Protocol: UnknownBanner}, "example.com", 80)
	require.Error(t, err)
}

func TestGetClient_FTPReturnsHandoffUnavailable(t *testing.T) {
	d := New(zerolog.Nop())
	_, err := d.GetClient(context.Background(), Result{Protocol: FTP}, "example.com", 21)
	require.Error(t, err)
}
