package template

import "github.com/pkg/errors"

var (
	ErrMalformedForm = errors.New("form cannot be built as its declared type")
	ErrChannelRange  = errors.New("collision channel out of range [0,32)")
)
