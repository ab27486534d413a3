// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package parser

import (
	"bytes"
	"encoding/xml"
	"strings"

	"mellium.im/xmlstream"

	"mellium.im/xmpplogin/internal/attr"
)

// Element is a complete top-level element (a stanza or a stream level element
// such as <stream:features/>) read from the stream.
// Names are fully namespace resolved.
type Element struct {
	xml.StartElement

	// Each item of content is either a *Element or an xml.CharData.
	content []interface{}
}

// Children returns the child elements of e in document order.
func (e *Element) Children() []*Element {
	if e == nil {
		return nil
	}
	var children []*Element
	for _, c := range e.content {
		if child, ok := c.(*Element); ok {
			children = append(children, child)
		}
	}
	return children
}

// Child returns the first child element with the given namespace and local
// name or nil if no such child exists.
func (e *Element) Child(space, local string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.content {
		if child, ok := c.(*Element); ok && child.Name.Space == space && child.Name.Local == local {
			return child
		}
	}
	return nil
}

// Is reports whether the element has the given namespace and local name.
func (e *Element) Is(space, local string) bool {
	return e != nil && e.Name.Space == space && e.Name.Local == local
}

// AttrValue returns the value of the first unnamespaced attribute with the
// given local name and whether it was present.
func (e *Element) AttrValue(local string) (string, bool) {
	return attr.Get(e.Attr, local)
}

// Text returns the concatenated character data that is a direct child of e.
func (e *Element) Text() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range e.content {
		if cd, ok := c.(xml.CharData); ok {
			b.Write(cd)
		}
	}
	return b.String()
}

// TokenReader returns a token reader over the element, including its start and
// end tokens.
// Namespace declarations are omitted since every name is already resolved.
func (e *Element) TokenReader() xml.TokenReader {
	inner := make([]xml.TokenReader, 0, len(e.content))
	for _, c := range e.content {
		switch v := c.(type) {
		case *Element:
			inner = append(inner, v.TokenReader())
		case xml.CharData:
			inner = append(inner, xmlstream.Token(v.Copy()))
		}
	}
	start := e.StartElement.Copy()
	start.Attr = attr.StripNSDecls(start.Attr)
	return xmlstream.Wrap(xmlstream.MultiReader(inner...), start)
}

// Decode decodes the element into v using the rules of encoding/xml.
func (e *Element) Decode(v interface{}) error {
	return xml.NewTokenDecoder(e.TokenReader()).Decode(v)
}

// String returns an XML encoding of the element.
// It is meant for diagnostics and is not guaranteed to be byte-for-byte
// identical to what was received.
func (e *Element) String() string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if _, err := xmlstream.Copy(enc, e.TokenReader()); err != nil {
		return "<" + e.Name.Local + "/>"
	}
	if err := enc.Flush(); err != nil {
		return "<" + e.Name.Local + "/>"
	}
	return buf.String()
}

func (e *Element) appendChild(child *Element) {
	e.content = append(e.content, child)
}

func (e *Element) appendText(cd xml.CharData) {
	e.content = append(e.content, cd.Copy())
}
