// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpplogin

import (
	"crypto/tls"
	"io"

	"github.com/sirupsen/logrus"

	"mellium.im/xmpplogin/parser"
)

// Config contains options for a login handshake.
// The zero value and a nil *Config are both valid and use the defaults.
type Config struct {
	// Logger receives state transitions and dropped events at debug level.
	// The bearer token is never logged.
	// If nil, log output is discarded.
	Logger logrus.FieldLogger

	// Resource is the resource requested when binding.
	// If empty, DefaultResource is used.
	Resource string

	// MaxStanzaSize limits the number of bytes buffered while waiting for a
	// complete top-level element.
	// If zero, no limit is enforced.
	MaxStanzaSize int

	// TLSConfig is used by Login when upgrading the connection.
	// If ServerName is empty the server domain is used.
	// It is not used by Handler, which delegates TLS to its caller.
	TLSConfig *tls.Config
}

func (c *Config) logger() logrus.FieldLogger {
	if c == nil || c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return c.Logger
}

func (c *Config) resource() string {
	if c == nil || c.Resource == "" {
		return DefaultResource
	}
	return c.Resource
}

func (c *Config) parserOptions() []parser.Option {
	if c == nil || c.MaxStanzaSize <= 0 {
		return nil
	}
	return []parser.Option{parser.MaxStanzaSize(c.MaxStanzaSize)}
}

func (c *Config) tlsConfig(server string) *tls.Config {
	var cfg *tls.Config
	if c != nil && c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = server
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}
