// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package saslerr provides error conditions for the XMPP profile of SASL as
// defined by RFC 6120 §6.5.
package saslerr // import "mellium.im/xmpplogin/internal/saslerr"

import (
	"encoding/xml"

	"golang.org/x/text/language"

	"mellium.im/xmpplogin/internal/ns"
)

// Condition represents a SASL error condition that can be encapsulated by a
// <failure/> element.
type Condition string

// String returns the local name of the condition element.
func (c Condition) String() string {
	return string(c)
}

// Standard SASL error conditions.
const (
	None                 Condition = ""
	Aborted              Condition = "aborted"
	AccountDisabled      Condition = "account-disabled"
	CredentialsExpired   Condition = "credentials-expired"
	EncryptionRequired   Condition = "encryption-required"
	IncorrectEncoding    Condition = "incorrect-encoding"
	InvalidAuthzID       Condition = "invalid-authzid"
	InvalidMechanism     Condition = "invalid-mechanism"
	MalformedRequest     Condition = "malformed-request"
	MechanismTooWeak     Condition = "mechanism-too-weak"
	NotAuthorized        Condition = "not-authorized"
	TemporaryAuthFailure Condition = "temporary-auth-failure"
)

var knownConditions = map[string]Condition{
	string(Aborted):              Aborted,
	string(AccountDisabled):      AccountDisabled,
	string(CredentialsExpired):   CredentialsExpired,
	string(EncryptionRequired):   EncryptionRequired,
	string(IncorrectEncoding):    IncorrectEncoding,
	string(InvalidAuthzID):       InvalidAuthzID,
	string(InvalidMechanism):     InvalidMechanism,
	string(MalformedRequest):     MalformedRequest,
	string(MechanismTooWeak):     MechanismTooWeak,
	string(NotAuthorized):        NotAuthorized,
	string(TemporaryAuthFailure): TemporaryAuthFailure,
}

// Failure represents a SASL <failure/> sent by the server.
type Failure struct {
	Condition Condition
	Lang      language.Tag
	Text      string
}

// Error satisfies the error interface for a Failure. It returns the text string
// if set, or the condition otherwise.
func (f Failure) Error() string {
	if f.Text != "" {
		return f.Text
	}
	return string(f.Condition)
}

// UnmarshalXML satisfies the xml.Unmarshaler interface for a Failure.
//
// Unknown conditions are left as None.
// If multiple text elements are present, UnmarshalXML selects the one with an
// xml:lang attribute that most closely matches the language tag already set
// on the Failure.
func (f *Failure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	decoded := struct {
		Condition struct {
			XMLName xml.Name
		} `xml:",any"`
		Text []struct {
			Lang string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
			Data string `xml:",chardata"`
		} `xml:"text"`
	}{}
	if err := d.DecodeElement(&decoded, &start); err != nil {
		return err
	}
	f.Condition = None
	if name := decoded.Condition.XMLName; name.Space == "" || name.Space == ns.SASL {
		f.Condition = knownConditions[name.Local]
	}

	tags := make([]language.Tag, 0, len(decoded.Text))
	data := make([]string, 0, len(decoded.Text))
	for _, text := range decoded.Text {
		// Skip any language tags that cannot be parsed.
		tag, err := language.Parse(text.Lang)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		data = append(data, text.Data)
	}
	if len(tags) == 0 {
		return nil
	}
	_, idx, _ := language.NewMatcher(tags).Match(f.Lang)
	f.Lang = tags[idx]
	f.Text = data[idx]
	return nil
}
