package server

import (
	"time"

	"github.com/zeusync/bodysync/internal/core/registry"
)

// Config holds the sync server settings. Empty addresses disable that carrier.
type Config struct {
	WebSocketAddr  string        `yaml:"websocket_addr" json:"websocket_addr"`
	QUICAddr       string        `yaml:"quic_addr" json:"quic_addr"`
	BroadcastEvery int           `yaml:"broadcast_every" json:"broadcast_every"`
	Namespaces     []string      `yaml:"namespaces" json:"namespaces"`
	SendBuffer     int           `yaml:"send_buffer" json:"send_buffer"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultServerConfig broadcasts every dynamic instance every third tick.
func DefaultServerConfig() Config {
	return Config{
		WebSocketAddr:  "127.0.0.1:8080",
		QUICAddr:       "127.0.0.1:8443",
		BroadcastEvery: 3,
		Namespaces:     []string{registry.Dynamics},
		SendBuffer:     256,
		WriteTimeout:   5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultServerConfig()
	if c.BroadcastEvery <= 0 {
		c.BroadcastEvery = d.BroadcastEvery
	}
	if len(c.Namespaces) == 0 {
		c.Namespaces = d.Namespaces
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}
