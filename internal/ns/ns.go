// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ns provides namespace constants that are used during login.
package ns // import "mellium.im/xmpplogin/internal/ns"

// List of namespaces spoken by the login handshake.
const (
	Bind       = "urn:ietf:params:xml:ns:xmpp-bind"
	Client     = "jabber:client"
	GoogleAuth = "http://www.google.com/talk/protocol/auth"
	SASL       = "urn:ietf:params:xml:ns:xmpp-sasl"
	Session    = "urn:ietf:params:xml:ns:xmpp-session"
	StartTLS   = "urn:ietf:params:xml:ns:xmpp-tls"
	Stream     = "http://etherx.jabber.org/streams"
	Streams    = "urn:ietf:params:xml:ns:xmpp-streams"
	XML        = "http://www.w3.org/XML/1998/namespace"
)
