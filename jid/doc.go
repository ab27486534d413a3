// Copyright 2014 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package jid implements XMPP addresses (historically called "Jabber ID's" or
// "JID's") as described in RFC 7622.
// The syntax for a JID is defined as follows using the Augmented Backus-Naur
// Form (ABNF) as specified in RFC 5234:
//
//	jid          = [ localpart "@" ] domainpart [ "/" resourcepart ]
//	localpart    = 1*1023(userbyte)
//	domainpart   = IP-literal / IPv4address / ifqdn
//	ifqdn        = 1*1023(domainbyte)
//	resourcepart = 1*1023(opaquebyte)
//
// Localparts are enforced with the PRECIS UsernameCaseMapped profile,
// resourceparts with the OpaqueString profile, and domainparts are converted
// to U-labels and case mapped using the IDNA lookup profile.
package jid // import "mellium.im/xmpplogin/jid"
