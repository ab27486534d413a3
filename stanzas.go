// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"encoding/xml"
	"strings"

	"mellium.im/xmpplogin/internal/ns"
)

// The stanzas sent by the handler are fixed strings with a handful of
// substitutions, so they are built by hand instead of with an xml.Encoder
// which would not produce the prefixed stream header.

// DefaultResource is the resource requested during bind when no other
// resource is configured.
const DefaultResource = "chromoting"

const (
	bindID    = "0"
	sessionID = "1"
)

func escape(b *strings.Builder, s string) {
	/* #nosec */
	_ = xml.EscapeText(b, []byte(s))
}

func streamHeader(server string) string {
	var b strings.Builder
	b.WriteString(`<stream:stream to="`)
	escape(&b, server)
	b.WriteString(`" version="1.0" xmlns="` + ns.Client + `" xmlns:stream="` + ns.Stream + `">`)
	return b.String()
}

func startTLSRequest() string {
	return `<starttls xmlns="` + ns.StartTLS + `"/>`
}

func authRequest(mechanism, cookie string) string {
	var b strings.Builder
	b.WriteString(`<auth xmlns="` + ns.SASL + `" mechanism="`)
	escape(&b, mechanism)
	b.WriteString(`" auth:service="oauth2" auth:allow-generated-jid="true"` +
		` auth:client-uses-full-bind-result="true" auth:allow-non-google-login="true"` +
		` xmlns:auth="` + ns.GoogleAuth + `">`)
	escape(&b, cookie)
	b.WriteString(`</auth>`)
	return b.String()
}

func bindRequest(resource string) string {
	var b strings.Builder
	b.WriteString(`<iq type="set" id="` + bindID + `"><bind xmlns="` + ns.Bind + `"><resource>`)
	escape(&b, resource)
	b.WriteString(`</resource></bind></iq>`)
	return b.String()
}

func sessionRequest() string {
	return `<iq type="set" id="` + sessionID + `"><session xmlns="` + ns.Session + `"/></iq>`
}
