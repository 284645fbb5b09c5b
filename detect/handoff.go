package detect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/plyul/netprobe/neterr"
	"github.com/plyul/netprobe/telnet"
)

// SSHHandoff is the ready collaborator returned for an SSH
// classification: a dialed *ssh.Client plus the banner-derived version
// string. No credentials are hardcoded or propagated: the dial offers
// no authentication method, so against a server that requires
// authentication GetClient returns the dial error instead of a client.
type SSHHandoff struct {
	Client  *ssh.Client
	Version string
}

// HTTPHandoff is the ready collaborator returned for an HTTP/HTTPS
// classification: an *http.Client bound to scheme://host:port.
type HTTPHandoff struct {
	Client  *http.Client
	BaseURL string
}

// GetClient returns a ready client for result's protocol tag, or a
// handoff-unavailable error for tags with no associated client (FTP,
// UNKNOWN, UNKNOWN_BANNER, ERROR).
//
// The classification stream opened by a prior Detect call is consumed
// here: for SSH/HTTP/HTTPS it is always closed first, since those
// client libraries establish their own transport; for TELNET it is
// adopted directly into the new telnet.Client, avoiding a second dial.
func (d *Detector) GetClient(ctx context.Context, result Result, host string, port int) (any, error) {
	conn := d.pendingConn
	preRead := d.pendingData
	d.pendingConn = nil
	d.pendingData = nil

	closeIfOpen := func() {
		if conn != nil {
			_ = conn.Close()
		}
	}

	switch result.Protocol {
	case Telnet:
		if conn != nil {
			return telnet.AdoptConn(ctx, host, port, conn, preRead)
		}
		return telnet.ConnectTo(ctx, host, port)

	case SSH:
		closeIfOpen()
		addr := fmt.Sprintf("%s:%d", host, port)
		config := &ssh.ClientConfig{
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // no known-hosts enforcement per spec
			Timeout:         10 * time.Second,
		}
		client, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			return nil, neterr.Classify(err)
		}
		return &SSHHandoff{Client: client, Version: result.Extras["version"]}, nil

	case HTTP, HTTPS:
		closeIfOpen()
		scheme := "http"
		if result.Protocol == HTTPS {
			scheme = "https"
		}
		return &HTTPHandoff{
			Client:  &http.Client{Timeout: 10 * time.Second},
			BaseURL: fmt.Sprintf("%s://%s:%d", scheme, host, port),
		}, nil

	default:
		closeIfOpen()
		return nil, neterr.New(neterr.HandoffUnavailable, fmt.Errorf("no client available for protocol %s", result.Protocol))
	}
}
