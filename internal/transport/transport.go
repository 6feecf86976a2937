// Package transport defines the carrier-neutral connection surface the sync server and
// the replica client speak over, and the envelope every message travels in.
package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

var (
	ErrClosed       = errors.New("connection is closed")
	ErrFrameTooBig  = errors.New("frame exceeds size limit")
	ErrBadEnvelope  = errors.New("malformed envelope")
	ErrUnknownType  = errors.New("unknown envelope type")
	ErrListenFailed = errors.New("failed to listen")
)

// Conn carries whole messages. Send may be called from one goroutine while another
// blocks in Receive.
type Conn interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	RemoteAddr() net.Addr
	Close() error
}

// Listener hands out accepted connections until it is closed.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}
