// Copyright 2017 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package attr contains helpers for working with lists of XML attributes.
package attr // import "mellium.im/xmpplogin/internal/attr"

import (
	"encoding/xml"
)

// Get returns the value of the first attribute with the provided local name
// and no namespace from a list of attributes and whether it was found.
func Get(attr []xml.Attr, local string) (string, bool) {
	for _, a := range attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// IsNSDecl reports whether a is a namespace declaration (xmlns or xmlns:*).
func IsNSDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// StripNSDecls returns a copy of attrs without any namespace declarations.
// Tokens produced by an xml.Decoder already carry resolved names, so the
// declarations are redundant when the tokens are re-encoded.
func StripNSDecls(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		if IsNSDecl(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
