package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/restgate/internal/backend"
)

// NewDatabasesCommand creates the databases command.
func NewDatabasesCommand(rootOpts *RootOptions) *cobra.Command {
	return listCommand(rootOpts, "databases", "List databases the backend serves",
		func(ctx context.Context, conn backend.Connector) ([]string, error) {
			return conn.ListDatabases(ctx)
		})
}

// NewLayoutsCommand creates the layouts command.
func NewLayoutsCommand(rootOpts *RootOptions) *cobra.Command {
	return listCommand(rootOpts, "layouts", "List layouts (tables) of the database",
		func(ctx context.Context, conn backend.Connector) ([]string, error) {
			return conn.ListLayouts(ctx)
		})
}

// NewScriptsCommand creates the scripts command.
func NewScriptsCommand(rootOpts *RootOptions) *cobra.Command {
	return listCommand(rootOpts, "scripts", "List scripts of the database",
		func(ctx context.Context, conn backend.Connector) ([]string, error) {
			return conn.ListScripts(ctx)
		})
}

func listCommand(rootOpts *RootOptions, use, short string, list func(context.Context, backend.Connector) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer s.close(ctx)

			names, err := list(ctx, s.conn)
			if err != nil {
				return s.out.BackendError(err)
			}
			if names == nil {
				names = []string{}
			}
			if rootOpts.Format == "json" {
				return s.out.Success(names)
			}
			return s.out.Success(strings.Join(names, "\n"))
		},
	}
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "fields <layout>",
		Short:         "Describe the fields of a layout",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer s.close(ctx)

			meta, err := s.conn.DescribeFields(ctx, args[0])
			if err != nil {
				return s.out.BackendError(err)
			}
			if rootOpts.Format == "json" {
				return s.out.Success(meta)
			}
			var b strings.Builder
			for i, fm := range meta {
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%-24s %-10s", fm.Name, fm.ResultType)
				if fm.MaxRepeat > 1 {
					fmt.Fprintf(&b, " x%d", fm.MaxRepeat)
				}
				if fm.AutoEntered {
					b.WriteString(" auto")
				}
				if fm.Global {
					b.WriteString(" global")
				}
			}
			return s.out.Success(b.String())
		},
	}
}
