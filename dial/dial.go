// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package dial contains methods and types for dialing XMPP client connections
// that will be secured with STARTTLS.
package dial // import "mellium.im/xmpplogin/dial"

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mellium.im/xmpplogin/internal/discover"
	"mellium.im/xmpplogin/jid"
)

// Errors returned by this package.
var (
	ErrNotDomain = errors.New("dial: address must be a bare domain")
	ErrNoService = discover.ErrNoService
)

// Client discovers and connects to the XMPP service of domain on the named
// network.
//
// For more information see the Dialer type.
func Client(ctx context.Context, network, domain string) (net.Conn, error) {
	var d Dialer
	return d.Dial(ctx, network, domain)
}

// A Dialer contains options for connecting to an XMPP service.
// After a connection is established the Dial method does not attempt to
// negotiate a stream, the connection should be passed to xmpplogin.Login or a
// Handler.
//
// The zero value for each field is equivalent to dialing without that option.
type Dialer struct {
	net.Dialer

	// NoLookup stops the dialer from looking up SRV records for the given
	// domain. Instead, it will try to connect to the domain directly on the
	// default port.
	NoLookup bool

	// Logger receives a debug message for each failed connection attempt.
	// If nil, log output is discarded.
	Logger logrus.FieldLogger
}

// Dial discovers and connects to the XMPP service of domain on the named
// network.
// If the context expires before the connection is complete, an error is
// returned. Once successfully connected, any expiration of the context will not
// affect the connection.
//
// Network may be any of the network types supported by net.Dial, but you most
// likely want to use one of the tcp connection types ("tcp", "tcp4", or
// "tcp6").
func (d *Dialer) Dial(ctx context.Context, network, domain string) (net.Conn, error) {
	addr, err := jid.Parse(domain)
	if err != nil {
		return nil, errors.Wrapf(err, "dial: invalid domain %q", domain)
	}
	if addr.Localpart() != "" || addr.Resourcepart() != "" {
		return nil, ErrNotDomain
	}
	domain = addr.Domainpart()

	addrs := discover.FallbackRecords(domain)
	if !d.NoLookup {
		addrs, err = discover.LookupService(ctx, d.Resolver, domain)
		if err != nil {
			return nil, errors.Wrapf(err, "dial: looking up %s", domain)
		}
	}

	// Try dialing all of the SRV records we know about, breaking as soon as the
	// connection is established.
	for _, srv := range addrs {
		hostport := net.JoinHostPort(srv.Target, strconv.FormatUint(uint64(srv.Port), 10))
		c, e := d.Dialer.DialContext(ctx, network, hostport)
		if e != nil {
			d.logger().WithFields(logrus.Fields{"addr": hostport, "domain": domain}).WithError(e).
				Debug("Connection attempt failed")
			err = e
			continue
		}
		return c, nil
	}
	return nil, errors.Wrapf(err, "dial: connecting to %s", domain)
}

func (d *Dialer) logger() logrus.FieldLogger {
	if d.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return d.Logger
}
