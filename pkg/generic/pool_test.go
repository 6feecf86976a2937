package generic

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ResetsOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

	buf := p.Get()
	buf.WriteString("dirty")
	p.Put(buf)
	assert.Zero(t, buf.Len())

	require.NoError(t, p.With(func(b *bytes.Buffer) error {
		assert.Zero(t, b.Len())
		b.WriteString("x")
		return nil
	}))
}

func TestPool_WithReturnsError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(func() []int { return nil }, nil)
	assert.ErrorIs(t, p.With(func([]int) error { return boom }), boom)
}
