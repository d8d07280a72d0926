// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tomtom215/circulation/internal/app"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
)

// cli carries what every command shares. The hooks are replaced in tests.
type cli struct {
	loadConfig func() (*config.Config, error)
	newApp     func(ctx context.Context, cfg *config.Config) (*app.App, error)
	stdin      io.Reader

	cfg *config.Config
}

func newCLI() *cli {
	return &cli{
		loadConfig: config.Load,
		newApp:     app.New,
		stdin:      os.Stdin,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "circctl",
		Short:        "Circulation maintenance commands",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logging.Init(logging.Config{
				Level:   cfg.Logging.Level,
				Format:  "console",
				Caller:  cfg.Logging.Caller,
				Service: "circctl",
			})
			httpclient.Version = version
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")

	root.AddCommand(
		newConfigCmd(c),
		newTokenCmd(c),
		newSyncCmd(c),
		newAvailabilityCmd(c),
		newMonitorCmd(c),
	)
	return root
}

// withApp builds the component graph, runs fn and closes everything.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := c.newApp(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close resources")
		}
	}()
	return fn(a)
}

// readPIN reads a patron PIN from stdin, without echo when stdin is a
// terminal.
func (c *cli) readPIN(cmd *cobra.Command) (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "PIN: ")
		pin, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read PIN: %w", err)
		}
		return strings.TrimSpace(string(pin)), nil
	}
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read PIN: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
