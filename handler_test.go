// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"mellium.im/xmpplogin/internal/xmpptest"
	"mellium.im/xmpplogin/parser"
)

const (
	testServer   = "example.net"
	testUser     = "user"
	testToken    = "secret-token"
	testCookie   = "AHVzZXIAc2VjcmV0LXRva2Vu"
	testBoundJID = "user@server/chromoting123"

	serverHeader  = `<stream:stream from="example.net" id="abc" version="1.0" xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams">`
	featuresTLS   = `<stream:features><starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls"><required/></starttls></stream:features>`
	proceed       = `<proceed xmlns="urn:ietf:params:xml:ns:xmpp-tls"/>`
	featuresSASL  = `<stream:features><mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>PLAIN</mechanism><mechanism>X-OAUTH2</mechanism></mechanisms></stream:features>`
	success       = `<success xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`
	featuresBind  = `<stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/></stream:features>`
	bindResult    = `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>` + testBoundJID + `</jid></bind></iq>`
	sessionResult = `<iq type="result" id="1"/>`

	wantHeader  = `<stream:stream to="example.net" version="1.0" xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams">`
	wantTLS     = `<starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls"/>`
	wantAuth    = `<auth xmlns="urn:ietf:params:xml:ns:xmpp-sasl" mechanism="X-OAUTH2" auth:service="oauth2" auth:allow-generated-jid="true" auth:client-uses-full-bind-result="true" auth:allow-non-google-login="true" xmlns:auth="http://www.google.com/talk/protocol/auth">` + testCookie + `</auth>`
	wantBind    = `<iq type="set" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><resource>chromoting</resource></bind></iq>`
	wantSession = `<iq type="set" id="1"><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/></iq>`
)

// tlsStarted is a step that completes the TLS upgrade instead of feeding
// data.
const tlsStarted = "\x00tls"

// handshake is the server side of a successful login. Each step is followed
// by the state the handler should end up in and the stanza it should send, if
// any.
var handshake = []struct {
	input string
	state State
	sent  string
}{
	0: {input: serverHeader + featuresTLS, state: StateStartTLSRequested, sent: wantTLS},
	1: {input: proceed, state: StateStartingTLS},
	2: {input: tlsStarted, state: StateStreamRequestedAfterTLS, sent: wantHeader},
	3: {input: serverHeader + featuresSASL, state: StateAuthRequested, sent: wantAuth},
	4: {input: success, state: StateAuthenticated, sent: wantHeader},
	5: {input: serverHeader + featuresBind, state: StateBindRequested, sent: wantBind},
	6: {input: bindResult, state: StateSessionRequested, sent: wantSession},
	7: {input: sessionResult, state: StateDone},
}

type doneCall struct {
	jid    string
	parser *parser.Parser
}

type errCall struct {
	kind ErrorKind
	text string
}

type harness struct {
	t    *testing.T
	tr   *xmpptest.Transport
	h    *Handler
	done []doneCall
	errs []errCall
}

func newHarness(t *testing.T, cfg *Config) *harness {
	hr := &harness{t: t, tr: &xmpptest.Transport{}}
	hr.h = NewHandler(testServer, testUser, NewToken(testToken),
		hr.tr.SendBytes, hr.tr.StartTLS,
		func(jid string, p *parser.Parser) {
			hr.done = append(hr.done, doneCall{jid: jid, parser: p})
		},
		func(kind ErrorKind, text string) {
			hr.errs = append(hr.errs, errCall{kind: kind, text: text})
		},
		cfg)
	return hr
}

func (hr *harness) feed(input string) {
	if input == tlsStarted {
		hr.h.OnTLSStarted()
		return
	}
	hr.h.OnDataReceived([]byte(input))
}

// run starts the handler and feeds it the first n handshake steps.
func (hr *harness) run(n int) {
	hr.t.Helper()
	hr.h.Start()
	for i, step := range handshake[:n] {
		hr.feed(step.input)
		if len(hr.errs) != 0 {
			hr.t.Fatalf("step %d: unexpected error: %v", i, hr.errs)
		}
	}
}

func TestHappyPath(t *testing.T) {
	hr := newHarness(t, nil)
	if s := hr.h.State(); s != StateInit {
		t.Fatalf("wrong initial state: want=%v, got=%v", StateInit, s)
	}
	hr.h.Start()
	if s := hr.h.State(); s != StateStreamRequested {
		t.Fatalf("wrong state after start: want=%v, got=%v", StateStreamRequested, s)
	}
	if len(hr.tr.Sent) != 1 || hr.tr.Sent[0] != wantHeader {
		t.Fatalf("wrong stream header:\nwant=%s\n got=%q", wantHeader, hr.tr.Sent)
	}

	preTLS := hr.h.parser
	for i, step := range handshake {
		sent := len(hr.tr.Sent)
		hr.feed(step.input)
		if s := hr.h.State(); s != step.state {
			t.Fatalf("step %d: wrong state: want=%v, got=%v", i, step.state, s)
		}
		switch {
		case step.sent == "" && len(hr.tr.Sent) != sent:
			t.Fatalf("step %d: did not expect anything to be sent, got %q", i, hr.tr.Sent[sent:])
		case step.sent != "" && (len(hr.tr.Sent) != sent+1 || hr.tr.Last() != step.sent):
			t.Fatalf("step %d: wrong data sent:\nwant=%s\n got=%q", i, step.sent, hr.tr.Sent[sent:])
		}
	}

	if len(hr.errs) != 0 {
		t.Errorf("unexpected errors: %v", hr.errs)
	}
	if hr.tr.TLSStarts != 1 {
		t.Errorf("wrong number of TLS upgrades: want=1, got=%d", hr.tr.TLSStarts)
	}
	if len(hr.done) != 1 {
		t.Fatalf("wrong number of done calls: want=1, got=%d", len(hr.done))
	}
	if hr.done[0].jid != testBoundJID {
		t.Errorf("wrong jid: want=%s, got=%s", testBoundJID, hr.done[0].jid)
	}
	if j := hr.h.JID().String(); j != testBoundJID {
		t.Errorf("wrong jid accessor: want=%s, got=%s", testBoundJID, j)
	}
	if hr.done[0].parser == preTLS {
		t.Errorf("the parser used before TLS was handed to the caller")
	}
	if hr.done[0].parser != hr.h.parser {
		t.Errorf("the handed over parser is not the current parser")
	}

	// Nothing happens after the handshake is done.
	sent := len(hr.tr.Sent)
	hr.feed(sessionResult)
	hr.h.onParseError("late")
	if len(hr.done) != 1 || len(hr.errs) != 0 || len(hr.tr.Sent) != sent {
		t.Errorf("events after completion had an effect: done=%d, errs=%v, sent=%q", len(hr.done), hr.errs, hr.tr.Sent[sent:])
	}
}

func TestHappyPathOneByte(t *testing.T) {
	hr := newHarness(t, nil)
	hr.h.Start()
	for _, step := range handshake {
		if step.input == tlsStarted {
			hr.feed(step.input)
			continue
		}
		for i := 0; i < len(step.input); i++ {
			hr.feed(step.input[i : i+1])
		}
	}
	if len(hr.errs) != 0 {
		t.Fatalf("unexpected errors: %v", hr.errs)
	}
	if len(hr.done) != 1 || hr.done[0].jid != testBoundJID {
		t.Fatalf("handshake did not complete: %v", hr.done)
	}
}

var badStanzaTests = [...]struct {
	steps int
	input string
	kind  ErrorKind
	text  string
}{
	0: {
		steps: 0,
		input: serverHeader + `<stream:features/>`,
		kind:  Unexpected,
		text:  "Server doesn't support TLS.",
	},
	1: {
		steps: 1,
		input: `<failure xmlns="urn:ietf:params:xml:ns:xmpp-tls"/>`,
		kind:  Unexpected,
		text:  "Failed to start TLS.",
	},
	2: {
		steps: 2,
		input: proceed,
		kind:  Unexpected,
		text:  "Received a stanza while starting TLS.",
	},
	3: {
		steps: 3,
		input: serverHeader + `<stream:features><mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>PLAIN</mechanism></mechanisms></stream:features>`,
		kind:  Unexpected,
		text:  "OAuth2 is not supported by the server.",
	},
	4: {
		steps: 4,
		input: `<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><not-authorized/></failure>`,
		kind:  AuthenticationFailed,
		text:  "Failed to authenticate: not-authorized",
	},
	5: {
		steps: 5,
		input: serverHeader + `<stream:features><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/></stream:features>`,
		kind:  Unexpected,
		text:  "Server doesn't support bind after authentication.",
	},
	6: {
		steps: 6,
		input: `<iq type="error" id="0"/>`,
		kind:  Unexpected,
		text:  "Failed to bind resource.",
	},
	7: {
		steps: 7,
		input: `<iq type="result" id="0"/>`,
		kind:  Unexpected,
		text:  "Failed to start session.",
	},
	8: {
		steps: 4,
		input: `<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`,
		kind:  AuthenticationFailed,
		text:  "Failed to authenticate.",
	},
	9: {
		steps: 4,
		input: `<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><account-disabled/><text xml:lang="en">Too many attempts</text></failure>`,
		kind:  AuthenticationFailed,
		text:  "Failed to authenticate: account-disabled: Too many attempts",
	},
	10: {
		steps: 4,
		input: `<challenge xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`,
		kind:  AuthenticationFailed,
		text:  "Failed to authenticate: unexpected <challenge/>.",
	},
	11: {
		steps: 6,
		input: `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/></iq>`,
		kind:  Unexpected,
		text:  "Failed to bind resource.",
	},
	12: {
		steps: 6,
		input: `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>user@server</jid></bind></iq>`,
		kind:  Unexpected,
		text:  "Failed to bind resource.",
	},
	13: {
		steps: 6,
		input: `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>@server/res</jid></bind></iq>`,
		kind:  Unexpected,
		text:  "Failed to bind resource.",
	},
	14: {
		steps: 5,
		input: `<stream:error><not-authorized xmlns="urn:ietf:params:xml:ns:xmpp-streams"/><text xmlns="urn:ietf:params:xml:ns:xmpp-streams">bye</text></stream:error>`,
		kind:  Unexpected,
		text:  "Received stream error: not-authorized: bye",
	},
	15: {
		steps: 0,
		input: serverHeader + `</stream:stream>`,
		kind:  Unexpected,
		text:  "parser: stream closed by the server",
	},
	16: {
		steps: 7,
		input: `<iq type="result" id="2"/>`,
		kind:  Unexpected,
		text:  "Failed to start session.",
	},
	17: {
		steps: 0,
		input: serverHeader + `<stream:features><starttls xmlns="urn:example"/></stream:features>`,
		kind:  Unexpected,
		text:  "Server doesn't support TLS.",
	},
}

func TestBadStanza(t *testing.T) {
	for i, tc := range badStanzaTests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			hr := newHarness(t, nil)
			hr.run(tc.steps)
			sent := len(hr.tr.Sent)
			tlsStarts := hr.tr.TLSStarts

			hr.feed(tc.input)
			if len(hr.errs) != 1 {
				t.Fatalf("wrong number of errors: want=1, got=%d (%v)", len(hr.errs), hr.errs)
			}
			if e := hr.errs[0]; e.kind != tc.kind || e.text != tc.text {
				t.Errorf("wrong error:\nwant=%v %q\n got=%v %q", tc.kind, tc.text, e.kind, e.text)
			}
			if s := hr.h.State(); s != StateError {
				t.Errorf("wrong state: want=%v, got=%v", StateError, s)
			}

			// Later events are dropped.
			hr.feed(featuresBind)
			hr.feed("<iq></message>")
			hr.h.onParseError("another error")
			hr.h.OnTransportError(errNilTransport)
			hr.h.OnTLSStarted()
			if len(hr.errs) != 1 {
				t.Errorf("errors were reported more than once: %v", hr.errs)
			}
			if len(hr.tr.Sent) != sent {
				t.Errorf("data was sent after the error: %q", hr.tr.Sent[sent:])
			}
			if hr.tr.TLSStarts != tlsStarts {
				t.Errorf("TLS was started after the error")
			}
			if len(hr.done) != 0 {
				t.Errorf("handshake completed after an error")
			}
		})
	}
}

func TestNoTLS(t *testing.T) {
	hr := newHarness(t, nil)
	hr.h.Start()
	hr.feed(serverHeader + `<stream:features><mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>X-OAUTH2</mechanism></mechanisms></stream:features>`)
	if len(hr.errs) != 1 || hr.errs[0] != (errCall{kind: Unexpected, text: "Server doesn't support TLS."}) {
		t.Fatalf("unexpected errors: %v", hr.errs)
	}
	if hr.tr.TLSStarts != 0 {
		t.Errorf("TLS should never have been started")
	}
	if len(hr.tr.Sent) != 1 {
		t.Errorf("only the stream header should have been sent, got %q", hr.tr.Sent)
	}
}

func TestBadCredentials(t *testing.T) {
	hr := newHarness(t, nil)
	hr.run(4)
	hr.feed(`<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`)
	if len(hr.errs) != 1 || hr.errs[0].kind != AuthenticationFailed {
		t.Fatalf("expected one authentication failure, got %v", hr.errs)
	}
	if last := hr.tr.Last(); last != wantAuth {
		t.Errorf("nothing should be sent after the auth request, got %s", last)
	}
}

func TestParseErrorInBind(t *testing.T) {
	hr := newHarness(t, nil)
	hr.run(6)
	if s := hr.h.State(); s != StateBindRequested {
		t.Fatalf("wrong state: want=%v, got=%v", StateBindRequested, s)
	}

	// The same input fed to a fresh parser yields the text the handler should
	// report.
	var want string
	p := parser.New(func(*parser.Element) {}, func(text string) { want = text })
	p.AppendData([]byte(serverHeader + `<iq></message>`))

	hr.feed(`<iq></message>`)
	if len(hr.errs) != 1 {
		t.Fatalf("wrong number of errors: want=1, got=%v", hr.errs)
	}
	if e := hr.errs[0]; e.kind != Unexpected || e.text != want || !strings.Contains(e.text, "</message>") {
		t.Errorf("wrong error: want=%q, got=%v %q", want, e.kind, e.text)
	}
}

func TestStaleParserIsIgnored(t *testing.T) {
	hr := newHarness(t, nil)
	hr.tr.OnStartTLS = hr.h.OnTLSStarted
	hr.run(1)

	// Everything after <proceed/> in the same read belongs to the old parser
	// and must not reach the handler.
	hr.feed(proceed + serverHeader + featuresSASL)
	if len(hr.errs) != 0 {
		t.Fatalf("unexpected errors: %v", hr.errs)
	}
	if s := hr.h.State(); s != StateStreamRequestedAfterTLS {
		t.Fatalf("wrong state: want=%v, got=%v", StateStreamRequestedAfterTLS, s)
	}
	if last := hr.tr.Last(); last != wantHeader {
		t.Errorf("stale features were handled, last sent: %s", last)
	}

	// The new parser still works.
	hr.feed(serverHeader + featuresSASL)
	if last := hr.tr.Last(); last != wantAuth {
		t.Errorf("wrong auth request: want=%s, got=%s", wantAuth, last)
	}
}

func TestTransportError(t *testing.T) {
	hr := newHarness(t, nil)
	hr.run(3)
	hr.h.OnTransportError(errNilTransport)
	if len(hr.errs) != 1 || hr.errs[0].kind != NetworkError || hr.errs[0].text != errNilTransport.Error() {
		t.Errorf("unexpected errors: %v", hr.errs)
	}
}

func TestMaxStanzaSize(t *testing.T) {
	hr := newHarness(t, &Config{MaxStanzaSize: 32})
	hr.h.Start()
	hr.feed(serverHeader + `<stream:features><starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls">`)
	if len(hr.errs) != 1 || hr.errs[0] != (errCall{kind: Unexpected, text: parser.ErrTooLargeStanza.Error()}) {
		t.Errorf("unexpected errors: %v", hr.errs)
	}
}

func TestCustomResource(t *testing.T) {
	hr := newHarness(t, &Config{Resource: `a<b"c`})
	hr.run(6)
	const want = `<iq type="set" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><resource>a&lt;b&#34;c</resource></bind></iq>`
	if last := hr.tr.Last(); last != want {
		t.Errorf("wrong bind request:\nwant=%s\n got=%s", want, last)
	}
}

func TestBindResultJID(t *testing.T) {
	for i, tc := range [...]struct {
		result     string
		jid        string
		normalized string
	}{
		0: {
			result:     `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>User@Server.EXAMPLE/Chromoting123</jid></bind></iq>`,
			jid:        "User@Server.EXAMPLE/Chromoting123",
			normalized: "user@server.example/Chromoting123",
		},
		1: {
			result:     `<iq type="result" id="0"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid><![CDATA[user@server/chromoting123]]></jid></bind></iq>`,
			jid:        testBoundJID,
			normalized: testBoundJID,
		},
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			hr := newHarness(t, nil)
			hr.run(6)
			in := tc.result + sessionResult
			for j := 0; j < len(in); j++ {
				hr.feed(in[j : j+1])
			}
			if len(hr.errs) != 0 {
				t.Fatalf("unexpected errors: %v", hr.errs)
			}
			if len(hr.done) != 1 {
				t.Fatalf("handshake did not complete, state=%v", hr.h.State())
			}
			if hr.done[0].jid != tc.jid {
				t.Errorf("wrong jid reported: want=%s, got=%s", tc.jid, hr.done[0].jid)
			}
			if j := hr.h.JID().String(); j != tc.normalized {
				t.Errorf("wrong jid accessor: want=%s, got=%s", tc.normalized, j)
			}
		})
	}
}

func TestStanzasAfterSessionAreKept(t *testing.T) {
	hr := newHarness(t, nil)
	hr.run(7)
	hr.feed(sessionResult + `<message from="a@b/c"/><presence/>`)
	if len(hr.done) != 1 {
		t.Fatalf("handshake did not complete, state=%v", hr.h.State())
	}

	var got []string
	hr.done[0].parser.SetCallbacks(func(el *parser.Element) {
		got = append(got, el.Name.Local)
	}, func(text string) {
		t.Errorf("unexpected parse error: %s", text)
	})
	if len(got) != 2 || got[0] != "message" || got[1] != "presence" {
		t.Errorf("buffered stanzas were not delivered to the new owner: %v", got)
	}
	if len(hr.errs) != 0 {
		t.Errorf("unexpected errors: %v", hr.errs)
	}
}

func TestTokenNotLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	hr := newHarness(t, &Config{Logger: logger})
	hr.run(len(handshake))
	if len(hr.done) != 1 {
		t.Fatalf("handshake did not complete")
	}
	if buf.Len() == 0 {
		t.Fatalf("expected debug output")
	}
	for _, secret := range []string{testToken, testCookie} {
		if strings.Contains(buf.String(), secret) {
			t.Errorf("log output contains a secret %q:\n%s", secret, buf.String())
		}
	}
	if !strings.Contains(buf.String(), "state=Done") {
		t.Errorf("expected the final state transition to be logged:\n%s", buf.String())
	}
}

func TestStartTwicePanics(t *testing.T) {
	hr := newHarness(t, nil)
	hr.h.Start()
	defer func() {
		if r := recover(); r != errStarted {
			t.Errorf("expected a second call to Start to panic with %v, got %v", errStarted, r)
		}
	}()
	hr.h.Start()
}

func TestDataBeforeStartPanics(t *testing.T) {
	hr := newHarness(t, nil)
	defer func() {
		if r := recover(); r != errNotStarted {
			t.Errorf("expected data before Start to panic with %v, got %v", errNotStarted, r)
		}
	}()
	hr.feed(serverHeader)
}

func TestTLSStartedOutOfOrderPanics(t *testing.T) {
	hr := newHarness(t, nil)
	hr.h.Start()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected OnTLSStarted to panic before TLS was requested")
		}
	}()
	hr.h.OnTLSStarted()
}

func TestStateString(t *testing.T) {
	for i, tc := range [...]struct {
		s    State
		want string
	}{
		0: {StateInit, "Init"},
		1: {StateStartTLSRequested, "StartTLSRequested"},
		2: {StateStreamRequestedAfterTLS, "StreamRequestedAfterTLS"},
		3: {StateSessionRequested, "SessionRequested"},
		4: {StateError, "Error"},
		5: {State(42), "State(42)"},
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			if s := tc.s.String(); s != tc.want {
				t.Errorf("wrong string: want=%q, got=%q", tc.want, s)
			}
		})
	}
	if s := AuthenticationFailed.String(); s != "AuthenticationFailed" {
		t.Errorf("wrong error kind string: %q", s)
	}
}
