// Package neterr classifies the network/protocol error taxonomy shared by
// the probe, telnet and detect packages so callers can branch on Kind
// without parsing error strings.
package neterr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is one of the error categories from the detector/client/probe
// error taxonomy. It is not a replacement for Go's error values; it is
// carried alongside one inside *Error so callers can classify via
// errors.As.
type Kind int

const (
	Unexpected Kind = iota
	ConnectTimeout
	ConnectRefused
	DNSFailure
	NetworkError
	ReadTimeout
	PatternTimeout
	PatternCompile
	ProtocolViolation // reserved, never constructed
	HandoffUnavailable
)

func (k Kind) String() string {
	switch k {
	case ConnectTimeout:
		return "timeout"
	case ConnectRefused:
		return "refused"
	case DNSFailure:
		return "dns"
	case NetworkError:
		return "network"
	case ReadTimeout:
		return "read-timeout"
	case PatternTimeout:
		return "pattern-timeout"
	case PatternCompile:
		return "pattern-compile"
	case ProtocolViolation:
		return "protocol-violation"
	case HandoffUnavailable:
		return "handoff-unavailable"
	default:
		return "unexpected"
	}
}

// Error wraps an underlying error with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Classify inspects a raw connect/read error and assigns it a Kind,
// mirroring spec.md's error classification policy:
// pure deadline expiry -> timeout, DNS resolution failure -> dns,
// refused connection -> refused, other OS/network error -> network,
// anything else -> unexpected. Error() keeps the underlying message
// after the kind name.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ConnectTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return New(ConnectTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return New(DNSFailure, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if strings.Contains(opErr.Err.Error(), "refused") {
			return New(ConnectRefused, err)
		}
		return New(NetworkError, err)
	}

	return New(Unexpected, err)
}
