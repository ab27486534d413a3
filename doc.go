// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xmpplogin implements the client side of the XMPP login handshake.
//
// A Handler drives a connection from the initial stream header, through
// STARTTLS and SASL authentication with an OAuth2 bearer token (the X-OAUTH2
// mechanism), to resource binding and session establishment.
// It does no I/O of its own: bytes received from the server are passed to
// OnDataReceived, and the handler writes its requests through the sendMessage
// callback it was created with.
// Once the session has been established the handler reports the bound JID and
// hands over the stream parser so that the caller can keep reading stanzas.
//
// Login wraps a Handler around a net.Conn using the transport package and
// blocks until the handshake completes:
//
//	conn, err := dial.Client(ctx, "tcp", "example.net")
//	if err != nil {
//		// handle err
//	}
//	session, err := xmpplogin.Login(ctx, conn, "example.net", "user", xmpplogin.NewToken(tok), nil)
//	if err != nil {
//		// handle err
//	}
//	fmt.Println(session.JID)
//
// # Errors
//
// Every failure is reported exactly once, either through the onError callback
// or, when using Login, as an *Error.
// Errors can be matched by kind with errors.Is:
//
//	if errors.Is(err, &xmpplogin.Error{Kind: xmpplogin.AuthenticationFailed}) {
//		// ask for a new token
//	}
//
// After an error or once the session is established the handler ignores any
// further input.
package xmpplogin // import "mellium.im/xmpplogin"
