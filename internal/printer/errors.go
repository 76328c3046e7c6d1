package printer

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrPoolClosed = errors.New("printer pool closed")
)

type ConnKind string

const (
	ConnTimeout ConnKind = "timeout"
	ConnRefused ConnKind = "refused"
	ConnOther   ConnKind = "other"
)

// ConnectionError means the printer could not be reached. No byte was sent.
type ConnectionError struct {
	Addr string
	Kind ConnKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError means the connection broke mid-transfer. Part of the receipt
// may have been printed.
type WriteError struct {
	Addr    string
	Written int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s failed after %d bytes: %v", e.Addr, e.Written, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func classifyDial(addr string, err error) *ConnectionError {
	kind := ConnOther
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		kind = ConnTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = ConnRefused
	}
	return &ConnectionError{Addr: addr, Kind: kind, Err: err}
}
