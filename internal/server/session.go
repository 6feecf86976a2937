package server

import (
	"sync"

	"github.com/zeusync/bodysync/internal/transport"
)

type session struct {
	id   string
	conn transport.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(conn transport.Conn, buffer int) *session {
	return &session{
		id:   conn.ID(),
		conn: conn,
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks; false means the buffer is full or the session is gone.
func (s *session) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// close reports whether this call closed the session.
func (s *session) close() bool {
	closed := false
	s.once.Do(func() {
		closed = true
		close(s.done)
		_ = s.conn.Close()
	})
	return closed
}
