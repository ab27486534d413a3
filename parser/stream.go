// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mellium.im/xmpplogin/internal/ns"
	"mellium.im/xmpplogin/jid"
	"mellium.im/xmpplogin/stream"
)

// Common XMPP versions.
var (
	DefaultVersion = Version{1, 0} // The version spoken by the login handler.
	EmptyVersion   = Version{0, 9} // The value of a missing version attribute.
)

// Version is a version of XMPP.
type Version struct {
	Major uint8
	Minor uint8
}

// ParseVersion parses a string of the form "Major.Minor" into a Version struct
// or returns an error.
func ParseVersion(s string) (Version, error) {
	v := Version{}

	versions := strings.Split(s, ".")
	if len(versions) != 2 {
		return v, errors.New("parser: XMPP version must have a single separator")
	}

	major, err := strconv.ParseUint(versions[0], 10, 8)
	if err != nil {
		return v, err
	}
	v.Major = uint8(major)

	minor, err := strconv.ParseUint(versions[1], 10, 8)
	if err != nil {
		return v, err
	}
	v.Minor = uint8(minor)

	return v, nil
}

// Less compares the major and minor version numbers, returning true if v is
// less than b.
func (v Version) Less(b Version) bool {
	return v.Major < b.Major || (v.Major == b.Major && v.Minor < b.Minor)
}

// String prints a representation of the XMPP version in the form "Major.Minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Info contains metadata extracted from the stream header sent by the server.
type Info struct {
	From    jid.JID
	ID      string
	Version Version
	XMLNS   string
	Lang    string
}

// infoFromStart validates a stream header and extracts its metadata.
// It only returns stream errors.
func infoFromStart(s xml.StartElement) (Info, error) {
	info := Info{Version: EmptyVersion}
	if s.Name.Space != ns.Stream || s.Name.Local != "stream" {
		return info, stream.InvalidNamespace
	}
	for _, attr := range s.Attr {
		switch attr.Name {
		case xml.Name{Space: "", Local: "from"}:
			if attr.Value == "" {
				continue
			}
			from, err := jid.Parse(attr.Value)
			if err != nil {
				return info, stream.ImproperAddressing
			}
			info.From = from
		case xml.Name{Space: "", Local: "id"}:
			info.ID = attr.Value
		case xml.Name{Space: "", Local: "version"}:
			v, err := ParseVersion(attr.Value)
			if err != nil {
				return info, stream.BadFormat
			}
			info.Version = v
		case xml.Name{Space: "", Local: "xmlns"}:
			if attr.Value != ns.Client {
				return info, stream.InvalidNamespace
			}
			info.XMLNS = attr.Value
		case xml.Name{Space: "xmlns", Local: "stream"}:
			if attr.Value != ns.Stream {
				return info, stream.InvalidNamespace
			}
		case xml.Name{Space: ns.XML, Local: "lang"}:
			info.Lang = attr.Value
		}
	}
	if info.Version.Less(DefaultVersion) {
		return info, stream.UnsupportedVersion
	}
	return info, nil
}
