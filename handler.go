// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"strings"

	"github.com/sirupsen/logrus"

	"mellium.im/xmpplogin/internal/ns"
	"mellium.im/xmpplogin/internal/saslerr"
	"mellium.im/xmpplogin/jid"
	"mellium.im/xmpplogin/parser"
	"mellium.im/xmpplogin/stream"
)

// Handler drives the client side of the XMPP login handshake over a
// transport supplied by the caller.
//
// Handler never performs I/O itself. Outgoing stanzas are passed to the
// sendMessage callback, the TLS upgrade is requested with the startTLS
// callback, and data read from the network must be passed to OnDataReceived.
// Once the transport has finished the TLS handshake it must call
// OnTLSStarted.
//
// Handler is not safe for concurrent use: all of its methods must be called
// from a single goroutine, or otherwise serialized by the transport.
type Handler struct {
	server     string
	username   string
	token      Token
	resource   string
	logger     logrus.FieldLogger
	parserOpts []parser.Option

	sendMessage func(string)
	startTLS    func()
	onDone      func(jid string, p *parser.Parser)
	onError     func(kind ErrorKind, text string)

	state    State
	parser   *parser.Parser
	jid      jid.JID
	jidText  string
	handling bool
}

// NewHandler creates a handler that logs in to server as username using the
// X-OAUTH2 mechanism.
//
// On success onDone is called once with the JID exactly as the server sent it
// in the bind result and the parser that is reading the authenticated stream.
// The parser is held when it is handed over: the rest of the data that
// carried the session result stays buffered until the caller installs its own
// callbacks with SetCallbacks. Later input must be passed to the parser
// directly.
// On failure onError is called once.
// A nil cfg is equivalent to an empty Config.
func NewHandler(server, username string, token Token, sendMessage func(string), startTLS func(), onDone func(jid string, p *parser.Parser), onError func(kind ErrorKind, text string), cfg *Config) *Handler {
	return &Handler{
		server:      server,
		username:    username,
		token:       token,
		resource:    cfg.resource(),
		logger:      cfg.logger().WithField("server", server),
		parserOpts:  cfg.parserOptions(),
		sendMessage: sendMessage,
		startTLS:    startTLS,
		onDone:      onDone,
		onError:     onError,
	}
}

// State returns the current state of the handshake.
func (h *Handler) State() State {
	return h.state
}

// JID returns the address assigned by the server during resource binding,
// normalized by jid.Parse.
// It is the zero JID until the bind result has been received.
func (h *Handler) JID() jid.JID {
	return h.jid
}

// Start sends the initial stream header.
// It panics if it is called more than once.
func (h *Handler) Start() {
	if h.state != StateInit {
		panic(errStarted)
	}
	h.parser = h.newParser()
	h.setState(StateStreamRequested)
	h.send(streamHeader(h.server))
}

// OnDataReceived passes data read from the network to the current parser.
// Data received after the handshake has finished is discarded.
func (h *Handler) OnDataReceived(data []byte) {
	if h.parser == nil {
		panic(errNotStarted)
	}
	if h.state.Terminal() {
		h.logger.WithFields(logrus.Fields{"state": h.state, "bytes": len(data)}).
			Debug("Dropping data received after the handshake finished")
		return
	}
	h.parser.AppendData(data)
}

// OnTLSStarted must be called by the transport once the TLS handshake that
// was requested with the startTLS callback has completed.
// It replaces the parser and opens a new stream over the encrypted channel.
func (h *Handler) OnTLSStarted() {
	switch {
	case h.state.Terminal():
		h.logger.WithField("state", h.state).Debug("Ignoring TLS completion after the handshake finished")
		return
	case h.state != StateStartingTLS:
		panic("xmpplogin: OnTLSStarted called in state " + h.state.String())
	}
	h.parser = h.newParser()
	h.setState(StateStreamRequestedAfterTLS)
	h.send(streamHeader(h.server))
}

// OnTransportError fails the handshake with a NetworkError.
func (h *Handler) OnTransportError(err error) {
	h.fail(NetworkError, err.Error())
}

// newParser returns a parser whose events are only delivered while it is the
// current parser of h.
func (h *Handler) newParser() *parser.Parser {
	var p *parser.Parser
	p = parser.New(func(el *parser.Element) {
		if p != h.parser {
			h.logger.WithField("stanza", el.Name.Local).Debug("Dropping stanza from a replaced parser")
			return
		}
		h.onStanza(el)
	}, func(text string) {
		if p != h.parser {
			h.logger.WithField("error", text).Debug("Dropping parse error from a replaced parser")
			return
		}
		h.onParseError(text)
	}, h.parserOpts...)
	return p
}

func (h *Handler) setState(s State) {
	h.logger.WithFields(logrus.Fields{"from": h.state, "state": s}).Debug("State changed")
	h.state = s
}

func (h *Handler) send(s string) {
	if h.state.Terminal() {
		return
	}
	h.sendMessage(s)
}

func (h *Handler) fail(kind ErrorKind, text string) {
	if h.state.Terminal() {
		h.logger.WithFields(logrus.Fields{"state": h.state, "kind": kind, "error": text}).
			Debug("Dropping error after the handshake finished")
		return
	}
	h.setState(StateError)
	if h.onError != nil {
		h.onError(kind, text)
	}
}

func (h *Handler) onParseError(text string) {
	h.fail(Unexpected, text)
}

func (h *Handler) onStanza(el *parser.Element) {
	if h.handling {
		panic(errReentrant)
	}
	h.handling = true
	defer func() {
		h.handling = false
	}()

	if h.state.Terminal() {
		h.logger.WithFields(logrus.Fields{"state": h.state, "stanza": el.Name.Local}).
			Debug("Dropping stanza received after the handshake finished")
		return
	}

	if el.Is(ns.Stream, "error") {
		var se stream.Error
		if err := el.Decode(&se); err != nil {
			se = stream.UndefinedCondition
		}
		h.fail(Unexpected, "Received stream error: "+se.Error())
		return
	}

	switch h.state {
	case StateStreamRequested:
		if !isFeatures(el) || el.Child(ns.StartTLS, "starttls") == nil {
			h.fail(Unexpected, "Server doesn't support TLS.")
			return
		}
		h.setState(StateStartTLSRequested)
		h.send(startTLSRequest())
	case StateStartTLSRequested:
		if !el.Is(ns.StartTLS, "proceed") {
			h.fail(Unexpected, "Failed to start TLS.")
			return
		}
		h.setState(StateStartingTLS)
		h.startTLS()
	case StateStartingTLS:
		h.fail(Unexpected, "Received a stanza while starting TLS.")
	case StateStreamRequestedAfterTLS:
		if !isFeatures(el) || !offersMechanism(el, XOAuth2.Name) {
			h.fail(Unexpected, "OAuth2 is not supported by the server.")
			return
		}
		cookie, err := oauth2Cookie(h.username, h.token)
		if err != nil {
			h.fail(Unexpected, "Failed to compute the OAuth2 cookie: "+err.Error())
			return
		}
		h.setState(StateAuthRequested)
		h.send(authRequest(XOAuth2.Name, cookie))
	case StateAuthRequested:
		if !el.Is(ns.SASL, "success") {
			h.fail(AuthenticationFailed, authFailureText(el))
			return
		}
		h.setState(StateAuthenticated)
		h.send(streamHeader(h.server))
	case StateAuthenticated:
		if !isFeatures(el) || el.Child(ns.Bind, "bind") == nil {
			h.fail(Unexpected, "Server doesn't support bind after authentication.")
			return
		}
		h.setState(StateBindRequested)
		h.send(bindRequest(h.resource))
	case StateBindRequested:
		text, j, err := boundJID(el)
		if err != nil {
			h.logger.WithError(err).Debug("Invalid bind result")
			h.fail(Unexpected, "Failed to bind resource.")
			return
		}
		h.jid = j
		h.jidText = text
		h.setState(StateSessionRequested)
		h.send(sessionRequest())
		h.logger.WithField("jid", text).Debug("Resource bound")
	case StateSessionRequested:
		if !isResult(el, sessionID) {
			h.fail(Unexpected, "Failed to start session.")
			return
		}
		h.setState(StateDone)
		h.parser.Hold()
		if h.onDone != nil {
			h.onDone(h.jidText, h.parser)
		}
	default:
		// The parser is only created by Start, so no stanza can be delivered in
		// the initial state.
		panic("xmpplogin: stanza delivered in state " + h.state.String())
	}
}

func isFeatures(el *parser.Element) bool {
	return el.Is(ns.Stream, "features")
}

func isResult(el *parser.Element, id string) bool {
	if !el.Is(ns.Client, "iq") {
		return false
	}
	elID, _ := el.AttrValue("id")
	typ, _ := el.AttrValue("type")
	return elID == id && typ == "result"
}

func offersMechanism(features *parser.Element, name string) bool {
	for _, m := range features.Child(ns.SASL, "mechanisms").Children() {
		if m.Is(ns.SASL, "mechanism") && strings.TrimSpace(m.Text()) == name {
			return true
		}
	}
	return false
}

func boundJID(el *parser.Element) (string, jid.JID, error) {
	if !isResult(el, bindID) {
		return "", jid.JID{}, errNoResource
	}
	text := strings.TrimSpace(el.Child(ns.Bind, "bind").Child(ns.Bind, "jid").Text())
	if text == "" {
		return "", jid.JID{}, errNoResource
	}
	j, err := jid.Parse(text)
	if err != nil {
		return text, jid.JID{}, err
	}
	if j.Resourcepart() == "" {
		return text, jid.JID{}, errUnboundJID
	}
	return text, j, nil
}

func authFailureText(el *parser.Element) string {
	const prefix = "Failed to authenticate"
	if !el.Is(ns.SASL, "failure") {
		return prefix + ": unexpected <" + el.Name.Local + "/>."
	}
	var f saslerr.Failure
	if err := el.Decode(&f); err != nil || (f.Condition == saslerr.None && f.Text == "") {
		return prefix + "."
	}
	switch {
	case f.Condition == saslerr.None:
		return prefix + ": " + f.Text
	case f.Text == "":
		return prefix + ": " + f.Condition.String()
	}
	return prefix + ": " + f.Condition.String() + ": " + f.Text
}
