package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/couchgen/internal/errs"
	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/pkg/exampledb"
)

func newExamplesCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Save, fetch and delete stored examples",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save KEY JSON_ARRAY",
		Short: "Store a value under a dotted key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), rootOpts, func(db *exampledb.DB) error {
				return db.Save(cmd.Context(), args[0], value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "fetch KEY",
		Short: "Print every value stored under a key as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), rootOpts, func(db *exampledb.DB) error {
				values, err := db.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				for _, v := range values {
					if err := enc.Encode(v); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete KEY JSON_ARRAY",
		Short: "Remove every stored copy of a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), rootOpts, func(db *exampledb.DB) error {
				return db.Delete(cmd.Context(), args[0], value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List stored keys with their value counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), rootOpts, func(db *exampledb.DB) error {
				keys, err := db.Keys(cmd.Context())
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k.Key, k.Count)
				}
				return nil
			})
		},
	})

	return cmd
}

func withDB(ctx context.Context, opts *rootOptions, fn func(*exampledb.DB) error) error {
	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	obs.Pkg(ctx, "couchgen").Debug("db_open", "url", db.URL())
	return fn(db)
}

// parseValue decodes a command-line value, which must be a JSON array.
func parseValue(raw string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "value must be a JSON array", err)
	}
	if dec.More() {
		return nil, errs.New(errs.InvalidArgument, "value must be a single JSON array")
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("value must be a JSON array, got %T", v))
	}
	return arr, nil
}
