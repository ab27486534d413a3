// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"fmt"
	"io"
)

const redacted = "[REDACTED]"

// Token is an OAuth2 bearer token.
//
// Token never prints or serializes its value: formatting it with the fmt
// package (with any verb), or marshaling it as text or JSON, always yields
// "[REDACTED]".
// The only consumer of the raw value is the X-OAUTH2 SASL mechanism.
type Token struct {
	secret string
}

// NewToken wraps a raw bearer token.
func NewToken(s string) Token {
	return Token{secret: s}
}

// IsZero reports whether the token is empty.
func (t Token) IsZero() bool {
	return t.secret == ""
}

// String satisfies fmt.Stringer.
func (Token) String() string {
	return redacted
}

// GoString satisfies fmt.GoStringer.
func (Token) GoString() string {
	return redacted
}

// Format satisfies fmt.Formatter.
func (Token) Format(f fmt.State, _ rune) {
	/* #nosec */
	_, _ = io.WriteString(f, redacted)
}

// MarshalText satisfies encoding.TextMarshaler.
func (Token) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// MarshalJSON satisfies json.Marshaler.
func (Token) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (t Token) reveal() []byte {
	return []byte(t.secret)
}
