package simulation

import "github.com/pkg/errors"

var (
	ErrUnknownField = errors.New("unknown protocol field")
	ErrTransform    = errors.New("state transform failed")
	ErrBadConfig    = errors.New("invalid simulation config")
)
