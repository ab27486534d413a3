// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package transport implements the byte stream used by the login handshake on
// top of a net.Conn.
//
// A Conn delivers everything that happens on the connection (data read from
// the network, the completion of a TLS upgrade, and failures) to a Sink from a
// single goroutine, so that the sink never has to deal with concurrent calls.
package transport // import "mellium.im/xmpplogin/transport"

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultReadBufferSize = 4096

// Errors returned by the transport.
var (
	ErrClosed     = errors.New("transport: connection closed by the peer")
	ErrTLSStarted = errors.New("transport: TLS already started")
)

// aLongTimeAgo is a non-zero time in the past used to unblock reads.
var aLongTimeAgo = time.Unix(1, 0)

// Sink receives connection events.
// All methods are called from the goroutine running Serve.
type Sink interface {
	// OnDataReceived is called with data read from the connection.
	// The slice is only valid for the duration of the call.
	OnDataReceived(data []byte)

	// OnTLSStarted is called once the TLS handshake requested by StartTLS has
	// completed. No data is read between the call to StartTLS and the call to
	// OnTLSStarted.
	OnTLSStarted()

	// OnTransportError is called at most once per call to Serve when reading,
	// writing or upgrading the connection fails.
	OnTransportError(err error)
}

// Config configures a Conn.
type Config struct {
	// TLSConfig is used to upgrade the connection when StartTLS is called.
	// It should at least set ServerName.
	TLSConfig *tls.Config

	// Logger receives debug messages about the connection.
	// If nil, log output is discarded.
	Logger logrus.FieldLogger

	// ReadBufferSize is the size of the buffer used for each read.
	// If zero, a default of 4096 bytes is used.
	ReadBufferSize int
}

// Conn is a connection that may be upgraded to TLS in band.
type Conn struct {
	tlsConfig *tls.Config
	logger    logrus.FieldLogger
	bufSize   int

	mu         sync.Mutex
	conn       net.Conn
	pendingTLS bool
	writeErr   error
}

// New returns a Conn that reads from and writes to conn.
// A nil cfg is equivalent to an empty Config.
func New(conn net.Conn, cfg *Config) *Conn {
	if cfg == nil {
		cfg = &Config{}
	}
	c := &Conn{
		tlsConfig: cfg.TLSConfig,
		logger:    cfg.Logger,
		bufSize:   cfg.ReadBufferSize,
		conn:      conn,
	}
	if c.tlsConfig == nil {
		c.tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	if c.bufSize <= 0 {
		c.bufSize = defaultReadBufferSize
	}
	return c
}

// SendBytes writes s to the connection.
// It does not report errors directly: the first failed write is reported to
// the sink by Serve and all later writes are discarded.
// SendBytes is safe to call from any goroutine.
func (c *Conn) SendBytes(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return
	}
	if _, err := io.WriteString(c.conn, s); err != nil {
		c.writeErr = errors.Wrap(err, "transport: write failed")
		return
	}
	c.logger.WithField("bytes", len(s)).Debug("Sent data")
}

// StartTLS schedules a TLS client handshake.
// The handshake is performed by Serve before it reads any more data, after
// which the sink's OnTLSStarted method is called.
func (c *Conn) StartTLS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conn.(*tls.Conn); ok || c.pendingTLS {
		if c.writeErr == nil {
			c.writeErr = ErrTLSStarted
		}
		return
	}
	c.pendingTLS = true
}

// ConnectionState returns the TLS state of the connection and whether the
// connection has been upgraded.
func (c *Conn) ConnectionState() (tls.ConnectionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tc, ok := c.conn.(*tls.Conn); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

// NetConn returns the current underlying connection.
// After the TLS upgrade this is the *tls.Conn.
func (c *Conn) NetConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Close closes the current underlying connection.
func (c *Conn) Close() error {
	return c.NetConn().Close()
}

// Serve reads from the connection and reports events to sink until ctx is
// canceled or the connection fails.
//
// When ctx is canceled Serve returns ctx.Err() without calling the sink.
// Other errors are passed to OnTransportError and returned.
// Serve may be called again after it returns to resume reading with a
// different sink, for instance once a handshake is complete.
func (c *Conn) Serve(ctx context.Context, sink Sink) error {
	// Report a failed write before the conn is used again.
	if err := c.writeError(); err != nil {
		return c.report(sink, err)
	}
	if err := c.NetConn().SetReadDeadline(time.Time{}); err != nil {
		return c.report(sink, errors.Wrap(err, "transport: resetting read deadline"))
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		/* #nosec */
		_ = c.NetConn().SetReadDeadline(aLongTimeAgo)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	buf := make([]byte, c.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeError(); err != nil {
			return c.report(sink, err)
		}
		if c.takeUpgrade() {
			if err := c.upgrade(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return c.report(sink, err)
			}
			sink.OnTLSStarted()
			continue
		}

		n, err := c.NetConn().Read(buf)
		if n > 0 {
			c.logger.WithField("bytes", n).Debug("Received data")
			sink.OnDataReceived(buf[:n])
		}
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF):
			return c.report(sink, ErrClosed)
		default:
			return c.report(sink, errors.Wrap(err, "transport: read failed"))
		}
	}
}

func (c *Conn) report(sink Sink, err error) error {
	c.logger.WithError(err).Debug("Connection failed")
	sink.OnTransportError(err)
	return err
}

func (c *Conn) writeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeErr
}

func (c *Conn) takeUpgrade() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pendingTLS
	c.pendingTLS = false
	return pending
}

// upgrade performs the TLS handshake while holding the lock so that no
// plaintext can be written in the middle of it.
func (c *Conn) upgrade(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := tls.Client(c.conn, c.tlsConfig)
	if err := tc.HandshakeContext(ctx); err != nil {
		return errors.Wrap(err, "transport: TLS handshake failed")
	}
	c.conn = tc
	c.logger.WithFields(logrus.Fields{
		"version": tls.VersionName(tc.ConnectionState().Version),
		"server":  c.tlsConfig.ServerName,
	}).Debug("TLS started")
	return nil
}
