// Copyright 2017 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xmpptest provides utilities for testing the login handshake.
package xmpptest // import "mellium.im/xmpplogin/internal/xmpptest"

import (
	"net"

	"github.com/pkg/errors"
)

// Transport is a fake transport that records everything the handler asks it
// to do.
// If OnStartTLS is set it is called synchronously by StartTLS, which lets
// tests complete the TLS upgrade immediately.
type Transport struct {
	Sent       []string
	TLSStarts  int
	OnStartTLS func()
}

// SendBytes records s.
func (t *Transport) SendBytes(s string) {
	t.Sent = append(t.Sent, s)
}

// StartTLS records the request and calls OnStartTLS if it is set.
func (t *Transport) StartTLS() {
	t.TLSStarts++
	if t.OnStartTLS != nil {
		t.OnStartTLS()
	}
}

// Last returns the last string that was sent or the empty string if nothing
// has been sent.
func (t *Transport) Last() string {
	if len(t.Sent) == 0 {
		return ""
	}
	return t.Sent[len(t.Sent)-1]
}

// LocalConns returns both ends of a TCP connection over the loopback
// interface.
// Unlike net.Pipe the connection is buffered, so both peers may write at the
// same time as happens during a TLS handshake.
func LocalConns() (client, server net.Conn, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, errors.Wrap(err, "xmpptest: listening")
	}
	/* #nosec */
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return nil, nil, errors.Wrap(err, "xmpptest: dialing")
	}
	select {
	case server = <-accepted:
	case err = <-acceptErr:
		/* #nosec */
		client.Close()
		return nil, nil, errors.Wrap(err, "xmpptest: accepting")
	}
	return client, server, nil
}
