// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package discover is used to look up the address of an XMPP service.
package discover // import "mellium.im/xmpplogin/internal/discover"

import (
	"context"
	"errors"
	"net"
)

// ClientService is the SRV service name of XMPP client-to-server connections
// that use STARTTLS.
const ClientService = "xmpp-client"

// DefaultPort is the port tried when no SRV records exist.
const DefaultPort = 5222

// ErrNoService is returned when the domain explicitly states that it does not
// offer an XMPP service.
var ErrNoService = errors.New("discover: service is decidedly not available at this domain")

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// FallbackRecords returns fake SRV records that can be used if no actual SRV
// records can be found but we believe that an XMPP service exists at the
// given domain.
func FallbackRecords(domain string) []*net.SRV {
	return []*net.SRV{{
		Target: domain,
		Port:   DefaultPort,
	}}
}

// LookupService looks for an XMPP client service hosted at domain.
// It returns addresses from SRV records, sorted by priority and randomized by
// weight, and if none are found returns a fallback record for the default
// port on the domain itself.
// If the only record has a target of "." ErrNoService is returned.
// A nil resolver uses net.DefaultResolver.
func LookupService(ctx context.Context, resolver *net.Resolver, domain string) ([]*net.SRV, error) {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	_, addrs, err := resolver.LookupSRV(ctx, ClientService, "tcp", domain)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		return FallbackRecords(domain), nil
	}

	// RFC 6120 §3.2.1
	//    3.  If a response is received, it will contain one or more
	//        combinations of a port and FDQN, each of which is weighted and
	//        prioritized as described in [DNS-SRV].  (However, if the result
	//        of the SRV lookup is a single resource record with a Target of
	//        ".", i.e., the root domain, then the initiating entity MUST abort
	//        SRV processing at this point because according to [DNS-SRV] such
	//        a Target "means that the service is decidedly not available at
	//        this domain".)
	if len(addrs) == 1 && addrs[0].Target == "." {
		return nil, ErrNoService
	}
	if len(addrs) == 0 {
		return FallbackRecords(domain), nil
	}
	return addrs, nil
}
