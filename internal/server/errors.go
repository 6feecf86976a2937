package server

import "github.com/pkg/errors"

var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrSlowConsumer         = errors.New("session send buffer full")
)
