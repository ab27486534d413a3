// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"errors"
)

// ErrorKind categorizes handshake failures.
type ErrorKind int

// A list of error kinds.
const (
	// Unexpected is any deviation from the expected protocol flow: a missing
	// feature, a wrong IQ id or type, a malformed bind result, a stream error
	// or an XML syntax error.
	Unexpected ErrorKind = iota

	// AuthenticationFailed means that the server did not accept the SASL
	// credentials.
	AuthenticationFailed

	// NetworkError means that the transport failed or that the handshake did
	// not finish before the context passed to Login expired.
	NetworkError
)

// Error is the error returned by Login when the handshake fails.
// It carries the same kind and text that are passed to a Handler's error
// callback.
type Error struct {
	Kind ErrorKind
	Text string
}

func (e *Error) Error() string {
	return "xmpplogin: " + e.Kind.String() + ": " + e.Text
}

// Is reports whether target is an *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && t.Kind == e.Kind && (t.Text == "" || t.Text == e.Text)
}

var (
	errStarted      = errors.New("xmpplogin: handler already started")
	errNotStarted   = errors.New("xmpplogin: handler was never started")
	errReentrant    = errors.New("xmpplogin: stanza delivered while another stanza was being handled")
	errNoResource   = errors.New("xmpplogin: bind result did not contain a jid")
	errUnboundJID   = errors.New("xmpplogin: bind result is not a full jid")
	errNilTransport = errors.New("xmpplogin: nil connection")
)
