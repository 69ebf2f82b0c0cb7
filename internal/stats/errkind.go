package stats

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Error kinds used as keys of the error breakdown. Messages carry
// ephemeral ports and addresses, so they are never used as keys.
const (
	KindTimeout  = "timeout"
	KindCanceled = "canceled"
	KindRefused  = "connection refused"
	KindReset    = "connection reset"
	KindDNS      = "dns lookup failed"
	KindEOF      = "unexpected eof"
	KindOther    = "other"
)

// ErrorKind maps a transport error onto a small fixed set of keys.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, syscall.ECONNRESET):
		return KindReset
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindEOF
	}

	// Errors that lost their chain on the way up.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return KindRefused
	case strings.Contains(msg, "connection reset"):
		return KindReset
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op != "" {
		return opErr.Op + " error"
	}
	return KindOther
}
