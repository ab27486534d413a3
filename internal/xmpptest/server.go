// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpptest

import (
	"crypto/tls"
	"io"
	"net"

	"github.com/pkg/errors"
)

// Step is one round trip of a scripted server.
type Step struct {
	// Expect is the exact data the client must send.
	// If empty, nothing is read.
	Expect string

	// Reply is written after Expect has been read.
	Reply string

	// StartTLS upgrades the server side of the connection after Reply has been
	// written.
	StartTLS bool
}

// Script runs the server side of a handshake over conn.
// It returns the connection, which has been upgraded to TLS if any step
// requested it, or an error if the client deviated from the script.
func Script(conn net.Conn, tlsConfig *tls.Config, steps []Step) (net.Conn, error) {
	for i, step := range steps {
		if step.Expect != "" {
			got := make([]byte, len(step.Expect))
			if _, err := io.ReadFull(conn, got); err != nil {
				return conn, errors.Wrapf(err, "xmpptest: step %d: reading", i)
			}
			if string(got) != step.Expect {
				return conn, errors.Errorf("xmpptest: step %d: unexpected data:\nwant=%s\n got=%s", i, step.Expect, got)
			}
		}
		if step.Reply != "" {
			if _, err := io.WriteString(conn, step.Reply); err != nil {
				return conn, errors.Wrapf(err, "xmpptest: step %d: writing", i)
			}
		}
		if step.StartTLS {
			tc := tls.Server(conn, tlsConfig)
			if err := tc.Handshake(); err != nil {
				return conn, errors.Wrapf(err, "xmpptest: step %d: TLS handshake", i)
			}
			conn = tc
		}
	}
	return conn, nil
}
