// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package parser implements an incremental, push based XMPP stream parser.
//
// Bytes are fed to the parser as they arrive from the network and complete
// top-level elements are delivered to a callback on the calling goroutine, in
// the order in which they appear on the wire.
// Unlike an xml.Decoder reading from a connection the parser never blocks,
// which lets the login handler stay single threaded and lets the transport
// replace the parser at a stream boundary (eg. after STARTTLS) without any
// buffered bytes leaking from one stream into the next.
package parser // import "mellium.im/xmpplogin/parser"

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"mellium.im/xmpplogin/internal/ns"
	"mellium.im/xmpplogin/stream"
)

// Errors returned by the parser.
var (
	ErrTooLargeStanza  = errors.New("parser: too large stanza")
	ErrStreamClosed    = errors.New("parser: stream closed by the server")
	ErrUnexpectedText  = errors.New("parser: unexpected character data at the stream level")
	ErrNoStreamHeader  = errors.New("parser: expected a stream header")
	errUnexpectedToken = errors.New("parser: unexpected token")
)

var streamName = xml.Name{Space: ns.Stream, Local: "stream"}

// Option configures a parser.
type Option func(*Parser)

// MaxStanzaSize limits the number of bytes that may be buffered while waiting
// for a top-level element to be completed.
// A value of zero or less disables the limit.
//
// Pending input is decoded again from the start of the element whenever a
// chunk that may complete it arrives, so the cost of parsing an element that
// is delivered in many small reads grows with the square of its size.
// The limit is what bounds that cost.
func MaxStanzaSize(n int) Option {
	return func(p *Parser) {
		p.maxSize = n
	}
}

// Parser is an incremental XMPP stream parser.
// It is not safe for concurrent use.
type Parser struct {
	onStanza func(*Element)
	onError  func(string)
	maxSize  int

	// header holds the raw bytes of the most recent stream header.
	// It is replayed in front of the buffer so that its namespace declarations
	// apply to every following element.
	header []byte
	buf    []byte
	info   Info
	failed bool
	held   bool
}

// New creates a parser that calls onStanza for each complete top-level element
// and onError, at most once, if the stream cannot be parsed.
// After onError has been called all further input is ignored.
func New(onStanza func(*Element), onError func(string), opts ...Option) *Parser {
	p := &Parser{
		onStanza: onStanza,
		onError:  onError,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetCallbacks replaces the callbacks of the parser.
// It is meant to be used by the new owner of a parser after it has been handed
// off at the end of a handshake.
// If the parser is held it is released and any buffered elements are
// delivered to the new callbacks before SetCallbacks returns.
func (p *Parser) SetCallbacks(onStanza func(*Element), onError func(string)) {
	p.onStanza = onStanza
	p.onError = onError
	if p.held {
		p.held = false
		if !p.failed {
			p.parse()
		}
	}
}

// Hold stops the delivery of elements.
// Input passed to AppendData while the parser is held, including the rest of
// the chunk being parsed when Hold is called from a callback, is buffered
// until SetCallbacks is called.
func (p *Parser) Hold() {
	p.held = true
}

// StreamInfo returns information from the most recent stream header.
// It returns false if no header has been received yet.
func (p *Parser) StreamInfo() (Info, bool) {
	return p.info, p.header != nil
}

// Failed reports whether the parser encountered an error.
func (p *Parser) Failed() bool {
	return p.failed
}

// AppendData feeds data into the parser.
// Callbacks are invoked synchronously before AppendData returns.
func (p *Parser) AppendData(data []byte) {
	if p.failed {
		return
	}
	p.buf = append(p.buf, data...)
	switch {
	case p.held:
	case bytes.IndexByte(data, '>') == -1 && pendingMarkup(p.buf):
		// No markup can be completed without a closing angle bracket.
		p.checkSize()
	default:
		p.parse()
	}
}

func (p *Parser) parse() {
	for !p.failed && !p.held {
		more, err := p.next()
		if err != nil {
			p.fail(err)
			return
		}
		if !more {
			break
		}
	}
	if !p.held {
		p.checkSize()
	}
}

func (p *Parser) checkSize() {
	if !p.failed && p.maxSize > 0 && len(p.buf) > p.maxSize {
		p.fail(ErrTooLargeStanza)
	}
}

// pendingMarkup reports whether the unconsumed input starts with markup.
func pendingMarkup(buf []byte) bool {
	buf = bytes.TrimLeft(buf, " \t\r\n")
	return len(buf) > 0 && buf[0] == '<'
}

func (p *Parser) fail(err error) {
	p.failed = true
	p.buf = nil
	if p.onError != nil {
		p.onError(err.Error())
	}
}

func (p *Parser) consume(n int64) {
	p.buf = append(p.buf[:0], p.buf[n:]...)
}

// next attempts to read one top-level element (or a stream header) from the
// buffer. It reports whether something was consumed and more input may be
// processed.
func (p *Parser) next() (bool, error) {
	in := &input{header: p.header, buf: p.buf}
	d := xml.NewDecoder(in)
	var base int64
	if p.header != nil {
		if err := skipToHeader(d); err != nil {
			return false, err
		}
		base = d.InputOffset()
	}

	var consumed int64
	var stack []*Element
	for {
		before := d.InputOffset() - base
		tok, err := d.Token()
		if err != nil {
			if in.eof || err == io.EOF {
				p.consume(consumed)
				return false, nil
			}
			return false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && t.Name == streamName {
				return true, p.restart(t, before, d.InputOffset()-base)
			}
			if p.header == nil {
				return false, ErrNoStreamHeader
			}
			el := &Element{StartElement: t.Copy()}
			if len(stack) > 0 {
				stack[len(stack)-1].appendChild(el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return false, ErrStreamClosed
			}
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				p.consume(d.InputOffset() - base)
				if p.onStanza != nil {
					p.onStanza(el)
				}
				return true, nil
			}
		case xml.CharData:
			if len(stack) == 0 {
				// Whitespace between elements is used as a keepalive.
				if len(bytes.TrimSpace(t)) != 0 {
					return false, ErrUnexpectedText
				}
				consumed = d.InputOffset() - base
				continue
			}
			stack[len(stack)-1].appendText(t)
		case xml.ProcInst:
			// An XML declaration may precede a new stream header.
			if len(stack) != 0 || t.Target != "xml" {
				return false, stream.RestrictedXML
			}
			consumed = d.InputOffset() - base
		default:
			return false, stream.RestrictedXML
		}
	}
}

// restart records a new stream header found between start and end in the
// buffer.
func (p *Parser) restart(start xml.StartElement, from, to int64) error {
	info, err := infoFromStart(start)
	if err != nil {
		return err
	}
	p.header = append([]byte(nil), p.buf[from:to]...)
	p.info = info
	p.consume(to)
	return nil
}

// skipToHeader reads the replayed stream header from d.
func skipToHeader(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name == streamName {
			return nil
		}
		if _, ok := tok.(xml.ProcInst); !ok {
			return errUnexpectedToken
		}
	}
}

// input replays the stream header followed by the buffered data.
// It implements io.ByteReader so that the decoder reads one byte at a time
// and never runs past the token it is working on, which makes eof a reliable
// signal that a decoding error was caused by running out of input (eg. in the
// middle of a CDATA section or a multi-byte rune) rather than by bad XML.
type input struct {
	header []byte
	buf    []byte
	off    int
	eof    bool
}

func (in *input) ReadByte() (byte, error) {
	if in.off < len(in.header) {
		b := in.header[in.off]
		in.off++
		return b, nil
	}
	i := in.off - len(in.header)
	if i >= len(in.buf) {
		in.eof = true
		return 0, io.EOF
	}
	in.off++
	return in.buf[i], nil
}

func (in *input) Read(b []byte) (int, error) {
	var n int
	for n < len(b) {
		c, err := in.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		b[n] = c
		n++
	}
	return n, nil
}
