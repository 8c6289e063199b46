package main

import (
	"errors"
	"fmt"
	"io/fs"

	"firestore-collection/internal/collection/config"
	"firestore-collection/internal/di"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags and the container shared by every command
type rootOptions struct {
	EnvFile string
	Store   string

	container *di.Container
	// owned is false when the container was injected and must not be closed here
	owned bool
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collectionctl",
		Short:         "Maintenance commands for document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.container != nil {
				return nil
			}
			return opts.connect(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.owned && opts.container != nil {
				err := opts.container.Close()
				opts.container = nil
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "document store override (mongodb|memory)")

	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newWipeCommand(opts))
	cmd.AddCommand(newChangesCommand(opts))
	return cmd
}

func (o *rootOptions) connect(cmd *cobra.Command) error {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", o.EnvFile, err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if o.Store != "" {
		cfg.Store = o.Store
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	c := di.NewContainer()
	c.Config = cfg
	if err := c.Initialize(cmd.Context()); err != nil {
		return err
	}
	o.container = c
	o.owned = true
	return nil
}
