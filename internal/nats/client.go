// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package nats publishes security notifications to an external NATS server
// so SOC tooling outside the process can react to alerts and escalations.
package nats

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// Config holds NATS client configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string
	// Name is the client name for identification
	Name string
	// Token for authentication
	Token string
	// Username for authentication
	Username string
	// Password for authentication
	Password string
	// TLS configuration
	TLSConfig *tls.Config
	// MaxReconnects is the maximum number of reconnect attempts (-1 for infinite)
	MaxReconnects int
	// ReconnectWait is the time to wait between reconnect attempts
	ReconnectWait time.Duration
	// Timeout is the connection timeout
	Timeout time.Duration
	// PingInterval is how often to ping the server
	PingInterval time.Duration
	// MaxPingsOut is the max outstanding pings before declaring connection stale
	MaxPingsOut int
	// ReconnectBufSize is the size of the reconnect buffer in bytes
	ReconnectBufSize int
}

// DefaultConfig returns a default NATS configuration.
func DefaultConfig() Config {
	return Config{
		URL:              "nats://localhost:4222",
		Name:             "secanalyzer",
		MaxReconnects:    -1, // infinite
		ReconnectWait:    2 * time.Second,
		Timeout:          5 * time.Second,
		PingInterval:     2 * time.Minute,
		MaxPingsOut:      3,
		ReconnectBufSize: 8 * 1024 * 1024,
	}
}

// Client wraps a NATS connection.
type Client struct {
	conn   *nats.Conn
	config Config
	logger *logger.Logger
	mu     sync.RWMutex

	onDisconnect func(err error)
	onReconnect  func()
}

// NewClient creates a new NATS client. Connect must be called before use.
func NewClient(config Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		config: config,
		logger: log.Named("nats"),
	}
}

// Connect establishes a connection to the NATS server.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.Timeout(c.config.Timeout),
		nats.PingInterval(c.config.PingInterval),
		nats.MaxPingsOutstanding(c.config.MaxPingsOut),
		nats.ReconnectBufSize(c.config.ReconnectBufSize),
	}

	if c.config.Token != "" {
		opts = append(opts, nats.Token(c.config.Token))
	} else if c.config.Username != "" {
		opts = append(opts, nats.UserInfo(c.config.Username, c.config.Password))
	}

	if c.config.TLSConfig != nil {
		opts = append(opts, nats.Secure(c.config.TLSConfig))
	}

	opts = append(opts,
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.logger.Warn("nats disconnected", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.logger.Info("nats connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				c.logger.Error("nats error", "subject", sub.Subject, "error", err)
			} else {
				c.logger.Error("nats error", "error", err)
			}
		}),
	)

	conn, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c.conn = conn
	c.logger.Info("connected to nats",
		"url", conn.ConnectedUrl(),
		"server_name", conn.ConnectedServerName(),
	)
	return nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Health checks the NATS connection health.
func (c *Client) Health(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return fmt.Errorf("nats client not connected")
	}
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats connection is not active")
	}
	if err := c.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush failed: %w", err)
	}
	return nil
}

// Publish publishes a message to a subject.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.Publish(subject, data)
}

// Stats returns connection statistics.
func (c *Client) Stats() ConnectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return ConnectionStats{}
	}

	stats := c.conn.Stats()
	return ConnectionStats{
		InMsgs:     stats.InMsgs,
		OutMsgs:    stats.OutMsgs,
		InBytes:    stats.InBytes,
		OutBytes:   stats.OutBytes,
		Reconnects: stats.Reconnects,
	}
}

// ConnectionStats holds NATS connection statistics.
type ConnectionStats struct {
	InMsgs     uint64
	OutMsgs    uint64
	InBytes    uint64
	OutBytes   uint64
	Reconnects uint64
}

// OnDisconnect registers a disconnect callback.
func (c *Client) OnDisconnect(fn func(error)) {
	c.onDisconnect = fn
}

// OnReconnect registers a reconnect callback.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect = fn
}
