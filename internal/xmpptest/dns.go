// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpptest

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/dns/dnsmessage"
)

// Resolver returns a DNS resolver that never touches the network.
// SRV queries for a name in records (eg. "_xmpp-client._tcp.example.net.")
// are answered with the given records and other SRV queries result in
// NXDOMAIN.
// Every host name resolves to 127.0.0.1.
// Each question that was asked is recorded in questions if it is not nil.
func Resolver(records map[string][]*net.SRV, questions *[]dnsmessage.Question) *net.Resolver {
	var mu sync.Mutex
	return &net.Resolver{
		PreferGo:     true,
		StrictErrors: true,
		Dial: func(context.Context, string, string) (net.Conn, error) {
			return &dnsConn{records: records, record: func(q dnsmessage.Question) {
				if questions == nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				*questions = append(*questions, q)
			}}, nil
		},
	}
}

// dnsConn answers DNS queries sent using the TCP framing, which the resolver
// uses for any connection that is not a net.PacketConn.
type dnsConn struct {
	records map[string][]*net.SRV
	record  func(dnsmessage.Question)
	resp    bytes.Buffer
}

func (c *dnsConn) Write(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, errors.New("xmpptest: short DNS query")
	}
	var p dnsmessage.Parser
	h, err := p.Start(b[2:])
	if err != nil {
		return 0, errors.Wrap(err, "xmpptest: parsing DNS query")
	}
	q, err := p.Question()
	if err != nil {
		return 0, errors.Wrap(err, "xmpptest: parsing DNS question")
	}
	c.record(q)

	name := strings.ToLower(q.Name.String())
	srvs, ok := c.records[name]
	rcode := dnsmessage.RCodeSuccess
	switch {
	case q.Type == dnsmessage.TypeSRV && !ok:
		rcode = dnsmessage.RCodeNameError
	case q.Type != dnsmessage.TypeSRV && strings.HasPrefix(name, "_"):
		rcode = dnsmessage.RCodeNameError
	}
	builder := dnsmessage.NewBuilder(make([]byte, 2, 512), dnsmessage.Header{
		ID:                 h.ID,
		Response:           true,
		Authoritative:      true,
		RecursionDesired:   h.RecursionDesired,
		RecursionAvailable: true,
		RCode:              rcode,
	})
	builder.EnableCompression()
	if err := builder.StartQuestions(); err != nil {
		return 0, err
	}
	if err := builder.Question(q); err != nil {
		return 0, err
	}
	if err := builder.StartAnswers(); err != nil {
		return 0, err
	}
	if rcode == dnsmessage.RCodeSuccess && q.Type == dnsmessage.TypeA {
		err = builder.AResource(dnsmessage.ResourceHeader{
			Name:  q.Name,
			Class: dnsmessage.ClassINET,
			TTL:   60,
		}, dnsmessage.AResource{A: [4]byte{127, 0, 0, 1}})
		if err != nil {
			return 0, err
		}
	}
	if rcode == dnsmessage.RCodeSuccess && q.Type == dnsmessage.TypeSRV {
		for _, srv := range srvs {
			target, err := dnsmessage.NewName(srv.Target)
			if err != nil {
				return 0, errors.Wrap(err, "xmpptest: bad SRV target")
			}
			err = builder.SRVResource(dnsmessage.ResourceHeader{
				Name:  q.Name,
				Class: dnsmessage.ClassINET,
				TTL:   60,
			}, dnsmessage.SRVResource{
				Priority: srv.Priority,
				Weight:   srv.Weight,
				Port:     srv.Port,
				Target:   target,
			})
			if err != nil {
				return 0, err
			}
		}
	}
	msg, err := builder.Finish()
	if err != nil {
		return 0, err
	}
	l := len(msg) - 2
	msg[0], msg[1] = byte(l>>8), byte(l)
	c.resp.Write(msg)
	return len(b), nil
}

func (c *dnsConn) Read(b []byte) (int, error)       { return c.resp.Read(b) }
func (c *dnsConn) Close() error                     { return nil }
func (c *dnsConn) LocalAddr() net.Addr              { return dnsAddr{} }
func (c *dnsConn) RemoteAddr() net.Addr             { return dnsAddr{} }
func (c *dnsConn) SetDeadline(time.Time) error      { return nil }
func (c *dnsConn) SetReadDeadline(time.Time) error  { return nil }
func (c *dnsConn) SetWriteDeadline(time.Time) error { return nil }

type dnsAddr struct{}

func (dnsAddr) Network() string { return "tcp" }
func (dnsAddr) String() string  { return "127.0.0.1:53" }
