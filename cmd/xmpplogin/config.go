// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"mellium.im/xmpplogin"
)

const defaultTimeout = 30 * time.Second

// config holds the command options.
// Values can be loaded from a YAML file and are overridden by flags.
type config struct {
	Server   string        `yaml:"server"`
	User     string        `yaml:"user"`
	Addr     string        `yaml:"addr"`
	Resource string        `yaml:"resource"`
	Timeout  time.Duration `yaml:"timeout"`
	Debug    bool          `yaml:"debug"`
}

func parseConfig(args []string, output io.Writer) (config, error) {
	var (
		cfgFile string
		flagCfg config
	)
	flags := pflag.NewFlagSet("xmpplogin", pflag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprintf(output, "Usage of xmpplogin:\n\n  $%s: the OAuth2 bearer token (prompted for if unset)\n\n", envToken)
		flags.PrintDefaults()
	}
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML file to read options from")
	flags.StringVarP(&flagCfg.Server, "server", "s", "", "the XMPP domain to log in to")
	flags.StringVarP(&flagCfg.User, "user", "u", "", "the username to authenticate as")
	flags.StringVar(&flagCfg.Addr, "addr", "", "host:port to connect to instead of looking up SRV records")
	flags.StringVar(&flagCfg.Resource, "resource", xmpplogin.DefaultResource, "the resource to bind")
	flags.DurationVar(&flagCfg.Timeout, "timeout", defaultTimeout, "how long to wait for the handshake to complete")
	flags.BoolVarP(&flagCfg.Debug, "debug", "v", false, "turns on debug logging")

	if err := flags.Parse(args); err != nil {
		return config{}, err
	}

	cfg := config{
		Resource: xmpplogin.DefaultResource,
		Timeout:  defaultTimeout,
	}
	if cfgFile != "" {
		f, err := os.Open(cfgFile)
		if err != nil {
			return config{}, errors.Wrap(err, "opening config file")
		}
		/* #nosec */
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return config{}, errors.Wrapf(err, "parsing %s", cfgFile)
		}
	}

	for name, apply := range map[string]func(){
		"server":   func() { cfg.Server = flagCfg.Server },
		"user":     func() { cfg.User = flagCfg.User },
		"addr":     func() { cfg.Addr = flagCfg.Addr },
		"resource": func() { cfg.Resource = flagCfg.Resource },
		"timeout":  func() { cfg.Timeout = flagCfg.Timeout },
		"debug":    func() { cfg.Debug = flagCfg.Debug },
	} {
		if flags.Changed(name) {
			apply()
		}
	}

	switch {
	case cfg.Server == "":
		return config{}, errors.New("no server specified, use --server or the config file")
	case cfg.User == "":
		return config{}, errors.New("no user specified, use --user or the config file")
	case cfg.Timeout <= 0:
		return config{}, errors.Errorf("invalid timeout %s", cfg.Timeout)
	}
	if cfg.Resource == "" {
		cfg.Resource = xmpplogin.DefaultResource
	}
	return cfg, nil
}
