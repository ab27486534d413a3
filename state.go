// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

//go:generate go run -tags=tools golang.org/x/tools/cmd/stringer -type=State,ErrorKind -trimprefix=State

// State is the position of a Handler in the login handshake.
// States only ever advance in the order in which they are declared, except
// for StateError which may be entered from any other state.
type State int

// A list of handshake states.
const (
	// StateInit is the state of a newly created handler.
	StateInit State = iota

	// StateStreamRequested means that the initial stream header has been sent
	// and the handler is waiting for the server's stream features.
	StateStreamRequested

	// StateStartTLSRequested means that <starttls/> has been sent and the
	// handler is waiting for <proceed/>.
	StateStartTLSRequested

	// StateStartingTLS means that the transport is performing the TLS handshake.
	StateStartingTLS

	// StateStreamRequestedAfterTLS means that a new stream has been requested
	// over the encrypted channel.
	StateStreamRequestedAfterTLS

	// StateAuthRequested means that the SASL <auth/> element has been sent.
	StateAuthRequested

	// StateAuthenticated means that SASL succeeded and the stream has been
	// restarted.
	StateAuthenticated

	// StateBindRequested means that the resource bind IQ has been sent.
	StateBindRequested

	// StateSessionRequested means that the session IQ has been sent.
	StateSessionRequested

	// StateDone means that the session has been established.
	StateDone

	// StateError means that the handshake failed.
	StateError
)

// Terminal reports whether s is StateDone or StateError.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}
