// Copyright 2014 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package jid

import (
	"encoding/xml"
	"errors"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// Errors returned when parsing or composing a JID.
var (
	ErrInvalidUTF8       = errors.New("jid: JID contains invalid UTF-8")
	ErrEmptyLocalpart    = errors.New("jid: the localpart must be larger than 0 bytes")
	ErrEmptyResourcepart = errors.New("jid: the resourcepart must be larger than 0 bytes")
	ErrLocalpartLength   = errors.New("jid: the localpart must be smaller than 1024 bytes")
	ErrResourceLength    = errors.New("jid: the resourcepart must be smaller than 1024 bytes")
	ErrDomainpartLength  = errors.New("jid: the domainpart must be between 1 and 1023 bytes")
	ErrForbiddenLocal    = errors.New("jid: localpart contains forbidden characters")
	ErrInvalidIPLiteral  = errors.New("jid: domainpart is not a valid IPv6 address")
)

// JID represents an XMPP address (Jabber ID) comprising a localpart,
// domainpart, and resourcepart. All parts of a JID are guaranteed to be valid
// UTF-8 and will be represented in their canonical form which gives comparison
// the greatest chance of succeeding.
type JID struct {
	locallen  int
	domainlen int
	data      []byte
}

// Parse constructs a new JID from the given string representation.
func Parse(s string) (JID, error) {
	localpart, domainpart, resourcepart, err := SplitString(s)
	if err != nil {
		return JID{}, err
	}
	return New(localpart, domainpart, resourcepart)
}

// MustParse is like Parse but panics if the JID cannot be parsed.
// It simplifies safe initialization of JIDs from known-good constant strings.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		if strconv.CanBackquote(s) {
			s = "`" + s + "`"
		} else {
			s = strconv.Quote(s)
		}
		panic(`jid: Parse(` + s + `): ` + err.Error())
	}
	return j
}

// New constructs a new JID from the given localpart, domainpart, and
// resourcepart.
func New(localpart, domainpart, resourcepart string) (JID, error) {
	if !utf8.ValidString(localpart) || !utf8.ValidString(domainpart) || !utf8.ValidString(resourcepart) {
		return JID{}, ErrInvalidUTF8
	}

	domainpart, err := prepDomain(domainpart)
	if err != nil {
		return JID{}, err
	}

	var lenlocal int
	data := make([]byte, 0, len(localpart)+len(domainpart)+len(resourcepart))

	if localpart != "" {
		data, err = precis.UsernameCaseMapped.Append(data, []byte(localpart))
		if err != nil {
			return JID{}, err
		}
		lenlocal = len(data)
	}

	data = append(data, domainpart...)

	if resourcepart != "" {
		data, err = precis.OpaqueString.Append(data, []byte(resourcepart))
		if err != nil {
			return JID{}, err
		}
	}

	if err := commonChecks(data[:lenlocal], domainpart, data[lenlocal+len(domainpart):]); err != nil {
		return JID{}, err
	}

	return JID{
		locallen:  lenlocal,
		domainlen: len(domainpart),
		data:      data,
	}, nil
}

// prepDomain converts the domainpart to its canonical U-label form.
// IP literals are left untouched.
//
// RFC 7622 §3.2.1:
//
//	An entity that prepares a string for inclusion in an XMPP domainpart
//	slot MUST ensure that the string consists only of Unicode code points
//	that are allowed in NR-LDH labels or U-labels as defined in
//	[RFC5890].
func prepDomain(domainpart string) (string, error) {
	open := strings.HasPrefix(domainpart, "[")
	closed := strings.HasSuffix(domainpart, "]")
	switch {
	case open && closed:
		ip := net.ParseIP(domainpart[1 : len(domainpart)-1])
		if ip == nil || ip.To4() != nil {
			return "", ErrInvalidIPLiteral
		}
		return domainpart, nil
	case open || closed:
		return "", ErrInvalidIPLiteral
	case net.ParseIP(domainpart) != nil:
		return domainpart, nil
	case domainpart == "":
		return "", ErrDomainpartLength
	}
	return idna.Lookup.ToUnicode(domainpart)
}

// Bare returns a copy of the JID without a resourcepart. This is sometimes
// called a "bare" JID.
func (j JID) Bare() JID {
	return JID{
		locallen:  j.locallen,
		domainlen: j.domainlen,
		data:      j.data[:j.domainlen+j.locallen],
	}
}

// Domain returns a copy of the JID without a resourcepart or localpart.
func (j JID) Domain() JID {
	return JID{
		domainlen: j.domainlen,
		data:      j.data[j.locallen : j.domainlen+j.locallen],
	}
}

// Localpart gets the localpart of a JID (eg "username").
func (j JID) Localpart() string {
	return string(j.data[:j.locallen])
}

// Domainpart gets the domainpart of a JID (eg. "example.net").
func (j JID) Domainpart() string {
	return string(j.data[j.locallen : j.locallen+j.domainlen])
}

// Resourcepart gets the resourcepart of a JID.
func (j JID) Resourcepart() string {
	return string(j.data[j.locallen+j.domainlen:])
}

// Network satisfies the net.Addr interface by returning the name of the network
// ("xmpp").
func (JID) Network() string {
	return "xmpp"
}

// String converts an JID to its string representation.
func (j JID) String() string {
	s := j.Domainpart()
	if j.locallen > 0 {
		s = j.Localpart() + "@" + s
	}
	if rp := j.Resourcepart(); rp != "" {
		s = s + "/" + rp
	}
	return s
}

// Equal performs an octet-for-octet comparison with the given JID.
func (j JID) Equal(j2 JID) bool {
	return j.locallen == j2.locallen &&
		j.domainlen == j2.domainlen &&
		string(j.data) == string(j2.data)
}

// UnmarshalXML satisfies the xml.Unmarshaler interface and unmarshals the JID
// from the elements chardata.
func (j *JID) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	data := struct {
		CharData string `xml:",chardata"`
	}{}
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}
	j2, err := Parse(strings.TrimSpace(data.CharData))
	if err != nil {
		return err
	}
	*j = j2
	return nil
}

// SplitString splits out the localpart, domainpart, and resourcepart from a
// string representation of a JID. The parts are not guaranteed to be valid, and
// each part must be 1023 bytes or less.
//
// RFC 7622 §3.1 requires the separators to be matched before applying any
// transformation algorithms, which might decompose certain Unicode code points
// to the separator characters.
func SplitString(s string) (localpart, domainpart, resourcepart string, err error) {
	// Remove any portion from the first '/' character to the end of the string.
	if sep := strings.IndexByte(s, '/'); sep != -1 {
		if sep == len(s)-1 {
			return "", "", "", ErrEmptyResourcepart
		}
		resourcepart = s[sep+1:]
		s = s[:sep]
	}

	// Remove any portion from the beginning of the string to the first '@'.
	switch sep := strings.IndexByte(s, '@'); sep {
	case -1:
		domainpart = s
	case 0:
		return "", "", "", ErrEmptyLocalpart
	default:
		localpart = s[:sep]
		domainpart = s[sep+1:]
	}

	// A trailing label separator is ignored when comparing and routing.
	domainpart = strings.TrimSuffix(domainpart, ".")
	return localpart, domainpart, resourcepart, nil
}

func commonChecks(localpart []byte, domainpart string, resourcepart []byte) error {
	if len(localpart) > 1023 {
		return ErrLocalpartLength
	}

	// RFC 7622 §3.3.1 provides a small table of characters which are still not
	// allowed in localpart's even though the IdentifierClass base class and the
	// UsernameCaseMapped profile don't forbid them.
	if strings.ContainsAny(string(localpart), `"&'/:<>@`) {
		return ErrForbiddenLocal
	}

	if len(resourcepart) > 1023 {
		return ErrResourceLength
	}

	if l := len(domainpart); l < 1 || l > 1023 {
		return ErrDomainpartLength
	}
	return nil
}
