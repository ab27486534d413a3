// Copyright 2019 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package dial_test

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"sync"
	"syscall"
	"testing"

	"golang.org/x/net/dns/dnsmessage"

	"mellium.im/xmpplogin/dial"
	"mellium.im/xmpplogin/internal/xmpptest"
)

var errPreventDial = errors.New("dial_test: expected error: preventing dial")

var dialTests = [...]struct {
	noLookup bool
	records  map[string][]*net.SRV
	domain   string
	dialed   []string
	srvAsked bool
	err      error
}{
	0: {
		domain:   "example.net",
		dialed:   []string{"127.0.0.1:5222"},
		srvAsked: true,
	},
	1: {
		records: map[string][]*net.SRV{
			"_xmpp-client._tcp.example.net.": {
				{Target: "xmpp2.example.net.", Port: 5224, Priority: 20},
				{Target: "xmpp1.example.net.", Port: 5223, Priority: 10},
			},
		},
		domain:   "example.net",
		dialed:   []string{"127.0.0.1:5223", "127.0.0.1:5224"},
		srvAsked: true,
	},
	2: {
		records: map[string][]*net.SRV{
			"_xmpp-client._tcp.example.net.": {{Target: "."}},
		},
		domain:   "example.net",
		srvAsked: true,
		err:      dial.ErrNoService,
	},
	3: {
		noLookup: true,
		domain:   "example.net",
		dialed:   []string{"127.0.0.1:5222"},
	},
	4: {
		domain: "me@example.net",
		err:    dial.ErrNotDomain,
	},
	5: {
		domain: "example.net/resource",
		err:    dial.ErrNotDomain,
	},
}

func TestDial(t *testing.T) {
	for i, tc := range dialTests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			var questions []dnsmessage.Question
			var mu sync.Mutex
			var dialed []string
			d := &dial.Dialer{
				NoLookup: tc.noLookup,
				Dialer: net.Dialer{
					Resolver: xmpptest.Resolver(tc.records, &questions),
					Control: func(network, address string, c syscall.RawConn) error {
						mu.Lock()
						defer mu.Unlock()
						dialed = append(dialed, address)
						return errPreventDial
					},
				},
			}

			conn, err := d.Dial(context.Background(), "tcp4", tc.domain)
			if conn != nil {
				conn.Close()
				t.Fatalf("did not expect the dial to succeed")
			}
			switch {
			case tc.err != nil && !errors.Is(err, tc.err):
				t.Errorf("wrong error: want=%v, got=%v", tc.err, err)
			case tc.err == nil && !errors.Is(err, errPreventDial):
				t.Errorf("expected the dial to be prevented, got %v", err)
			}
			if !reflect.DeepEqual(dialed, tc.dialed) {
				t.Errorf("dialed wrong addresses: want=%v, got=%v", tc.dialed, dialed)
			}
			var srvAsked bool
			for _, q := range questions {
				srvAsked = srvAsked || q.Type == dnsmessage.TypeSRV
			}
			if srvAsked != tc.srvAsked {
				t.Errorf("unexpected SRV lookup: want=%t, got=%t", tc.srvAsked, srvAsked)
			}
		})
	}
}

func TestDialConnects(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening for TCP connections: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	d := &dial.Dialer{
		Dialer: net.Dialer{
			Resolver: xmpptest.Resolver(map[string][]*net.SRV{
				"_xmpp-client._tcp.example.net.": {{Target: "xmpp.example.net.", Port: port}},
			}, nil),
		},
	}
	conn, err := d.Dial(context.Background(), "tcp4", "example.net")
	if err != nil {
		t.Fatalf("error dialing: %v", err)
	}
	defer conn.Close()
	if got := conn.RemoteAddr().String(); got != ln.Addr().String() {
		t.Errorf("connected to wrong address: want=%s, got=%s", ln.Addr(), got)
	}
}
