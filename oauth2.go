// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"encoding/base64"

	"mellium.im/sasl"
)

// XOAuth2 is the X-OAUTH2 SASL mechanism used by Google Talk compatible
// servers.
// The client sends a single initial response consisting of the username and
// the bearer token, each preceded by a NUL byte, and expects no challenges.
var XOAuth2 = sasl.Mechanism{
	Name: "X-OAUTH2",
	Start: func(m *sasl.Negotiator) (bool, []byte, interface{}, error) {
		username, password, _ := m.Credentials()
		payload := make([]byte, 0, len(username)+len(password)+2)
		payload = append(payload, 0)
		payload = append(payload, username...)
		payload = append(payload, 0)
		payload = append(payload, password...)
		return false, payload, nil, nil
	},
	Next: func(*sasl.Negotiator, []byte, interface{}) (bool, []byte, interface{}, error) {
		return false, nil, nil, sasl.ErrTooManySteps
	},
}

// oauth2Cookie returns the base64 encoded initial response of the X-OAUTH2
// mechanism for the given username and token.
func oauth2Cookie(username string, token Token) (string, error) {
	client := sasl.NewClient(XOAuth2, sasl.Credentials(func() ([]byte, []byte, []byte) {
		return []byte(username), token.reveal(), nil
	}))
	_, resp, err := client.Step(nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(resp), nil
}
