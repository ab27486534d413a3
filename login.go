// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"context"
	"net"

	"mellium.im/xmpplogin/jid"
	"mellium.im/xmpplogin/parser"
	"mellium.im/xmpplogin/transport"
)

// Session is an authenticated, resource bound XMPP session.
type Session struct {
	// JID is the address assigned by the server.
	JID jid.JID

	// Parser is reading the authenticated stream.
	// It is held: stanzas that arrived together with the session result are
	// buffered and delivered once SetCallbacks installs new callbacks, which
	// must happen before Conn is served again.
	Parser *parser.Parser

	// Conn is the TLS protected connection.
	Conn *transport.Conn
}

// Login performs the login handshake over conn and blocks until it completes,
// fails, or ctx expires.
//
// Failures are returned as an *Error.
// If ctx expires first the error has kind NetworkError.
// Login does not close conn on failure.
func Login(ctx context.Context, conn net.Conn, server, username string, token Token, cfg *Config) (*Session, error) {
	if conn == nil {
		return nil, errNilTransport
	}
	tc := transport.New(conn, &transport.Config{
		TLSConfig: cfg.tlsConfig(server),
		Logger:    cfg.logger(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		session *Session
		failure *Error
	)
	h := NewHandler(server, username, token, tc.SendBytes, tc.StartTLS,
		func(_ string, p *parser.Parser) {
			session = &Session{Parser: p, Conn: tc}
			cancel()
		},
		func(kind ErrorKind, text string) {
			failure = &Error{Kind: kind, Text: text}
			cancel()
		},
		cfg)
	h.Start()
	err := tc.Serve(ctx, h)

	switch {
	case session != nil:
		session.JID = h.JID()
		return session, nil
	case failure != nil:
		return nil, failure
	case err != nil:
		return nil, &Error{Kind: NetworkError, Text: err.Error()}
	}
	return nil, &Error{Kind: NetworkError, Text: "connection closed"}
}
