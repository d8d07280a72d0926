// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/circulation/internal/app"
	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

func newConfigCmd(c *cli) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			if !showSecrets {
				cfg = cfg.Redacted()
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials unmasked")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: "Mint an HS256 bearer token signed with JWT_SECRET. A patron token's\n" +
			"subject must be the patron id.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, role := range roles {
				if role != auth.RolePatron && role != auth.RoleStaff {
					return fmt.Errorf("unknown role %q", role)
				}
			}
			if slices.Contains(roles, auth.RolePatron) {
				if _, err := strconv.ParseInt(subject, 10, 64); err != nil {
					return fmt.Errorf("patron subject must be a patron id, got %q", subject)
				}
			}
			verifier, err := auth.NewJWTVerifier(&c.cfg.Security)
			if err != nil {
				return err
			}
			token, err := verifier.Sign(subject, roles, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (patron id for patron tokens)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleStaff}, "roles to grant (patron, staff)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newSyncCmd(c *cli) *cobra.Command {
	var pinStdin bool
	cmd := &cobra.Command{
		Use:   "sync PATRON_ID",
		Short: "Reconcile a patron's local loans and holds with Overdrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patronID, err := parseID(args[0], "patron")
			if err != nil {
				return err
			}
			var pin string
			if pinStdin {
				if pin, err = c.readPIN(cmd); err != nil {
					return err
				}
			}
			ctx := logging.ContextWithOperation(cmd.Context(), "sync_bookshelf")
			return c.withApp(ctx, func(a *app.App) error {
				patron, err := a.Store.GetPatron(ctx, patronID)
				if err != nil {
					return fmt.Errorf("load patron %d: %w", patronID, err)
				}
				result, err := a.Shelf.Sync(ctx, patron, pin)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&pinStdin, "pin-stdin", false, "read the patron PIN from stdin")
	return cmd
}

func newAvailabilityCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Refresh license pool availability",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pool POOL_ID",
			Short: "Refresh the counts of a local license pool",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				poolID, err := parseID(args[0], "pool")
				if err != nil {
					return err
				}
				ctx := logging.ContextWithOperation(cmd.Context(), "update_availability")
				return c.withApp(ctx, func(a *app.App) error {
					pool, err := a.Store.GetPool(ctx, poolID)
					if err != nil {
						return fmt.Errorf("load pool %d: %w", poolID, err)
					}
					if pool.CollectionID != a.Collection.ID {
						return fmt.Errorf("pool %d is not in collection %d", poolID, a.Collection.ID)
					}
					updated, changed, err := a.Overdrive.UpdateAvailability(ctx, pool)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), &models.AvailabilityResponse{Pool: updated, Changed: changed})
				})
			},
		},
		&cobra.Command{
			Use:   "title OVERDRIVE_ID",
			Short: "Import or refresh the pool for an Overdrive title",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := logging.ContextWithOperation(cmd.Context(), "update_license_pool")
				return c.withApp(ctx, func(a *app.App) error {
					pool, isNew, changed, err := a.Overdrive.UpdateLicensePool(ctx, args[0])
					if err != nil {
						return err
					}
					if pool == nil {
						return fmt.Errorf("title %s is not in this collection", args[0])
					}
					return printJSON(cmd.OutOrStdout(), &models.AvailabilityResponse{Pool: pool, Changed: changed, IsNew: isNew})
				})
			},
		},
	)
	return cmd
}

func newMonitorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run one recent-changes scan and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logging.ContextWithOperation(cmd.Context(), "monitor")
			return c.withApp(ctx, func(a *app.App) error {
				n, err := a.Monitor.RunOnce(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d titles refreshed\n", a.Monitor.Name(), n)
				return err
			})
		},
	}
}

var errInvalidID = errors.New("must be a positive integer")

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s id %q %w", what, raw, errInvalidID)
	}
	return id, nil
}
