package client

import "github.com/pkg/errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrProtocolMismatch = errors.New("server protocol differs from the replica's")
)
