// Command attendancectl performs one-off administrative tasks against the attendance database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"attendance-dashboard-backend/config"
	"attendance-dashboard-backend/internal/auth"
	"attendance-dashboard-backend/internal/db"
	"attendance-dashboard-backend/internal/source"
	"attendance-dashboard-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "attendancectl",
		Short:         "Administer the attendance dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML configuration file")

	open := func() (store.Store, *config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store.NewGormStore(gormDB), cfg, nil
	}

	root.AddCommand(
		newUserCmd(open),
		newHashPasswordCmd(),
		newSyncCmd(open),
		newPurgeCmd(open),
	)
	return root
}

type openFunc func() (store.Store, *config.Config, error)

func newUserCmd(open openFunc) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}

	var email, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user who can sign in to the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			s, _, err := open()
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user, err := s.CreateUser(cmd.Context(), email, hash)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Email address used to sign in")
	add.Flags().StringVar(&password, "password", "", "Initial password")

	userCmd.AddCommand(add)
	return userCmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for purge.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newSourceService(open openFunc) (*source.Service, error) {
	s, cfg, err := open()
	if err != nil {
		return nil, err
	}
	var upstream source.Upstream
	if cfg.Source.Enabled {
		upstream = source.NewClient(cfg.Source)
	}
	return source.NewService(cfg.Source, s, upstream), nil
}

func newSyncCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull every record from the upstream table once",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSourceService(open)
			if err != nil {
				return err
			}
			result, err := svc.SyncOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, upserted %d, skipped %d, removed %d\n", result.Fetched, result.Upserted, result.Skipped, result.Removed)
			return nil
		},
	}
}

func newPurgeCmd(open openFunc) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every attendance record upstream and locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete every record without --yes")
			}
			svc, err := newSourceService(open)
			if err != nil {
				return err
			}
			deleted, err := svc.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")
	return cmd
}
