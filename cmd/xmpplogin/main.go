// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// The xmpplogin command logs in to an XMPP server with an OAuth2 bearer token
// and prints the full JID assigned by the server.
//
// The token is read from $XMPP_TOKEN or, if that is not set, from the
// terminal.
//
// For more information try running:
//
//	xmpplogin --help
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"mellium.im/xmpplogin"
	"mellium.im/xmpplogin/dial"
)

/* #nosec */
const envToken = "XMPP_TOKEN"

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	err := run(os.Args[1:], os.Getenv, os.Stdout, logger)
	switch {
	case err == pflag.ErrHelp:
	case err != nil:
		logger.Fatal(err)
	}
}

func run(args []string, getenv func(string) string, stdout io.Writer, logger *logrus.Logger) error {
	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	token, err := readToken(getenv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	/* #nosec */
	defer conn.Close()

	log := logger.WithFields(logrus.Fields{"server": cfg.Server, "user": cfg.User})
	log.WithField("addr", conn.RemoteAddr()).Debug("Connected")
	session, err := xmpplogin.Login(ctx, conn, cfg.Server, cfg.User, token, &xmpplogin.Config{
		Logger:   log,
		Resource: cfg.Resource,
	})
	if err != nil {
		return errors.Wrap(err, "login failed")
	}
	log.WithField("jid", session.JID).Info("Logged in")
	_, err = fmt.Fprintln(stdout, session.JID)
	return err
}

func connect(ctx context.Context, cfg config, logger logrus.FieldLogger) (net.Conn, error) {
	if cfg.Addr != "" {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		return conn, errors.Wrapf(err, "connecting to %s", cfg.Addr)
	}
	d := dial.Dialer{Logger: logger}
	return d.Dial(ctx, "tcp", cfg.Server)
}

func readToken(getenv func(string) string) (xmpplogin.Token, error) {
	if tok := getenv(envToken); tok != "" {
		return xmpplogin.NewToken(tok), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return xmpplogin.Token{}, errors.Errorf("no token: set $%s or run from a terminal", envToken)
	}
	fmt.Fprint(os.Stderr, "Token: ")
	tok, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return xmpplogin.Token{}, errors.Wrap(err, "reading token")
	}
	if len(tok) == 0 {
		return xmpplogin.Token{}, errors.New("empty token")
	}
	return xmpplogin.NewToken(string(tok)), nil
}
