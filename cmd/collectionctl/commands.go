package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/usecase"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/spf13/cobra"
)

func (o *rootOptions) collection(name string) (*usecase.Collection, error) {
	return o.container.Collection(model.Definition{Name: name}, usecase.WriterConfig{})
}

// splitPath parses <collection>/<id>
func splitPath(arg string) (string, string, error) {
	coll, id, ok := strings.Cut(arg, "/")
	if !ok || coll == "" || id == "" {
		return "", "", fmt.Errorf("expected <collection>/<id>, got %q", arg)
	}
	return coll, id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <collection> <file.json>",
		Short: "Upsert a JSON array of records without a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var records []model.Record
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("%s must hold a JSON array of objects: %w", args[1], err)
			}

			coll, err := opts.collection(args[0])
			if err != nil {
				return err
			}
			written, err := coll.Set.Bulk(cmd.Context(), records)

			var bulkErr *apperrors.BulkWriteError
			if apperrors.As(err, &bulkErr) {
				for _, f := range bulkErr.Failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s %s: %v\n", f.Operation, f.DocumentID, f.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d records into %s\n",
					len(records)-len(bulkErr.Failures), len(records), args[0])
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", len(written), args[0])
			return nil
		},
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection>/<id>",
		Short: "Print one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id, err := splitPath(args[0])
			if err != nil {
				return err
			}
			coll, err := opts.collection(name)
			if err != nil {
				return err
			}
			record, err := coll.Query.UniqueAssert(cmd.Context(), id, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>/<id>",
		Short: "Delete one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id, err := splitPath(args[0])
			if err != nil {
				return err
			}
			coll, err := opts.collection(name)
			if err != nil {
				return err
			}
			deleted, err := coll.Delete.Unique(cmd.Context(), id, nil)
			if err != nil {
				return err
			}
			if deleted == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newWipeCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe <collection>",
		Short: "Delete every document of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe %s without --yes", args[0])
			}
			coll, err := opts.collection(args[0])
			if err != nil {
				return err
			}
			n, err := coll.DeleteCollection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

func newChangesCommand(opts *rootOptions) *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "changes <collection>",
		Short: "Print documents changed and ids deleted after --since (epoch ms)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := opts.container.SyncManager()
			if err != nil {
				return err
			}
			result, err := syncer.QuerySync(cmd.Context(), args[0], since)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "client timestamp in epoch milliseconds")
	return cmd
}
