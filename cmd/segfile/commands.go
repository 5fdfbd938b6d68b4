package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	ddbstore "github.com/hupe1980/segfile/backend/dynamodb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errVerifyFailed = errors.New("verification failed")

func newPutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "put <scope> <name> [file]",
		Short: "Store a file; reads stdin when the file is omitted or \"-\"",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			in := cmd.InOrStdin()
			if len(args) == 3 && args[2] != "-" {
				src, err := os.Open(args[2])
				if err != nil {
					return err
				}
				defer src.Close()
				in = src
			}

			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			f := catalog.Create(args[0], args[1])
			if _, err := io.Copy(f.Writer(ctx), in); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.ResourceDescription(), err)
			}
			if err := f.Close(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%d segments)\n",
				f.ResourceDescription(), f.ID(), humanize.IBytes(f.Length()), f.ContentSegments())
			return nil
		},
	}
}

func newGetCmd(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <scope> <name>",
		Short: "Write a file's content to stdout or --output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			f, err := catalog.Open(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				dst, err := os.Create(output)
				if err != nil {
					return err
				}
				defer dst.Close()
				out = dst
			}

			_, err = io.Copy(out, f.Reader(ctx))
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	return cmd
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <scope>",
		Short: "List the names registered in a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			names, err := catalog.ListAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newStatCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <scope> <name>",
		Short: "Show a file's manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			f, err := catalog.Open(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Resource\t%s\n", f.ResourceDescription())
			fmt.Fprintf(tw, "ID\t%s\n", f.ID())
			fmt.Fprintf(tw, "Length\t%s (%s bytes)\n", humanize.IBytes(f.Length()), humanize.Comma(int64(f.Length())))
			fmt.Fprintf(tw, "Segments\t%d\n", f.ContentSegments())
			fmt.Fprintf(tw, "Manifest count\t%d\n", f.NumSegments())
			return tw.Flush()
		},
	}
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <scope> [name...]",
		Short: "Check files against their manifests; all names in the scope by default",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			scope, names := args[0], args[1:]
			if len(names) == 0 {
				if names, err = catalog.ListAll(ctx, scope); err != nil {
					return err
				}
				slices.Sort(names)
			}

			failed := 0
			for _, name := range names {
				report, err := catalog.Verify(ctx, scope, name)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "/%s/%s: %v\n", scope, name, err)
					failed++
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), report)
				if !report.OK() {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d files", errVerifyFailed, failed, len(names))
			}
			return nil
		},
	}
}

func newOrphansCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans <scope>",
		Short: "List file ids that have segments but no name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := openCatalog(cmd, v)
			if err != nil {
				return err
			}
			defer catalog.Close()

			ids, err := catalog.Orphans(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newInitTablesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "init-tables",
		Short: "Create the DynamoDB segment and index tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDynamoDBClient(cmd.Context(), v)
			if err != nil {
				return err
			}

			if err := ddbstore.CreateTables(cmd.Context(), client, dynamoDBTables(v)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tables %s and %s ready\n",
				v.GetString("segments-table"), v.GetString("index-table"))
			return nil
		},
	}
}
