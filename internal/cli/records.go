package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/restgate/internal/orchestrator"
	"github.com/roach88/restgate/internal/record"
)

// hookFlags are the batch script hooks shared by the write commands.
type hookFlags struct {
	PreScript  string
	PreParam   string
	PostScript string
	PostParam  string
}

func (h *hookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&h.PreScript, "pre-script", "", "script to run before the first item")
	cmd.Flags().StringVar(&h.PreParam, "pre-param", "", "parameter for --pre-script")
	cmd.Flags().StringVar(&h.PostScript, "post-script", "", "script to run with the last item")
	cmd.Flags().StringVar(&h.PostParam, "post-param", "", "parameter for --post-script")
}

func (h *hookFlags) apply(o *orchestrator.Orchestrator) {
	o.SetPreScript(h.PreScript, h.PreParam)
	o.SetPostScript(h.PostScript, h.PostParam)
}

// runMessage opens a session, builds an orchestrator for layout, and prints
// the message op returns.
func runMessage(rootOpts *RootOptions, cmd *cobra.Command, layout string,
	op func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error)) error {
	s, err := openSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer s.close(ctx)

	o := s.orchestrator(layout)
	s.out.VerboseLog("Request %s", o.RequestID())
	msg, err := op(ctx, o)
	if err != nil {
		return s.out.BackendError(err)
	}
	return s.out.Message(msg)
}

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Query      string
	Skip       int
	Limit      int
	Suppress   bool
	Containers string
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <layout>",
		Short: "Read a page of a layout, optionally filtered by a query",
		Long: `Read one page of a layout. Without --query every record is found.
--skip -1 reads the last page.

Examples:
  restgate find tasks -d crm --query 'WHERE Status = "open" ORDER BY Due'
  restgate find tasks -d crm --limit 20 --skip 40`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				if err := o.SetQuery(opts.Query); err != nil {
					return nil, err
				}
				enc, err := orchestrator.ParseContainerEncoding(opts.Containers)
				if err != nil {
					return nil, err
				}
				o.SetContainerEncoding(enc)
				o.SetWindow(opts.Skip, opts.Limit)
				o.SetSuppressData(opts.Suppress)
				return o.ReadLayout(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL-subset query")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "records to skip (-1 for the last page)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (default from configuration)")
	cmd.Flags().BoolVar(&opts.Suppress, "suppress", false, "return record IDs and info only")
	cmd.Flags().StringVar(&opts.Containers, "containers", "reference", "container encoding (reference|base64|raw)")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var containers string
	var suppress bool

	cmd := &cobra.Command{
		Use:   "get <layout> <id>...",
		Short: "Read records by ID or Field=value key",
		Long: `Read records by opaque record ID or by a Field=value key that must match
exactly one record. Several IDs are read as one batch; IDs that fail are
reported without aborting the others.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args[1:]
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				enc, err := orchestrator.ParseContainerEncoding(containers)
				if err != nil {
					return nil, err
				}
				o.SetContainerEncoding(enc)
				o.SetSuppressData(suppress)
				if len(ids) == 1 {
					return o.ReadOne(ctx, ids[0])
				}
				return o.Read(ctx, idMessage(ids))
			})
		},
	}

	cmd.Flags().BoolVar(&suppress, "suppress", false, "return record IDs and info only")
	cmd.Flags().StringVar(&containers, "containers", "reference", "container encoding (reference|base64|raw)")

	return cmd
}

// WriteOptions holds flags for create and update.
type WriteOptions struct {
	*RootOptions
	hookFlags
	Data             string
	Echo             bool
	Append           bool
	UpdateElseCreate bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <layout> --data <json>",
		Short: "Create one or more records",
		Long: `Create records from --data: a field object, a list of field objects, or a
message with a "data" list. Use @file to read a file and @- for stdin.

Examples:
  restgate create tasks -d crm --data '{"Title":"write docs","Priority":"3"}'
  restgate create tasks -d crm --data @batch.json --post-script reindex`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readData(rootOpts, cmd, opts.Data)
			if err != nil {
				return err
			}
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				opts.apply(o)
				o.SetEcho(opts.Echo)
				if len(in.Records) == 1 {
					return o.CreateOne(ctx, in.Records[0].Fields)
				}
				return o.Create(ctx, in)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "record JSON, @file, or @- for stdin")
	cmd.Flags().BoolVar(&opts.Echo, "echo", false, "return the created records instead of their IDs")
	opts.register(cmd)
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <layout> [id] --data <json>",
		Short: "Update one or more records",
		Long: `Update the record named by id with the fields in --data. Without id, every
record in --data must carry its own "recordID".

Examples:
  restgate update tasks 12 -d crm --data '{"Status":"done"}'
  restgate update tasks Title=report -d crm --data '{"Notes":" more"}' --append
  restgate update tasks -d crm --data @changes.json --update-else-create`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readData(rootOpts, cmd, opts.Data)
			if err != nil {
				return err
			}
			if len(args) == 2 && len(in.Records) != 1 {
				out := newFormatter(rootOpts, cmd)
				_ = out.Error(ErrCodeBadRequest, "an update by id takes exactly one record", nil)
				return NewExitError(ExitCommandError, "an update by id takes exactly one record")
			}
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				opts.apply(o)
				o.SetEcho(opts.Echo)
				o.SetAppend(opts.Append)
				o.SetUpdateElseCreate(opts.UpdateElseCreate)
				if len(args) == 2 {
					return o.UpdateOne(ctx, args[1], in.Records[0].Fields)
				}
				return o.Update(ctx, in)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "record JSON, @file, or @- for stdin")
	cmd.Flags().BoolVar(&opts.Echo, "echo", false, "return the updated records instead of their IDs")
	cmd.Flags().BoolVar(&opts.Append, "append", false, "append submitted values to the current ones")
	cmd.Flags().BoolVar(&opts.UpdateElseCreate, "update-else-create", false, "create records that do not exist")
	opts.register(cmd)
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var hooks hookFlags

	cmd := &cobra.Command{
		Use:           "delete <layout> <id>...",
		Short:         "Delete records by ID or Field=value key",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args[1:]
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				hooks.apply(o)
				if len(ids) == 1 {
					return o.DeleteOne(ctx, ids[0])
				}
				return o.Delete(ctx, idMessage(ids))
			})
		},
	}
	hooks.register(cmd)

	return cmd
}

// NewScriptCommand creates the script command.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	var param string
	var suppress bool

	cmd := &cobra.Command{
		Use:           "script <layout> <name>",
		Short:         "Run a script in the context of a layout",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessage(rootOpts, cmd, args[0], func(ctx context.Context, o *orchestrator.Orchestrator) (*record.Message, error) {
				o.SetScript(args[1], param)
				o.SetSuppressData(suppress)
				return o.RunScript(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&param, "param", "", "script parameter")
	cmd.Flags().BoolVar(&suppress, "suppress", false, "return record IDs and info only")

	return cmd
}

// readData parses --data, reporting a parse failure as a command error.
func readData(rootOpts *RootOptions, cmd *cobra.Command, data string) (*record.Message, error) {
	in, err := readInput(cmd, data)
	if err != nil {
		out := newFormatter(rootOpts, cmd)
		_ = out.Error(ErrCodeBadRequest, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid --data", err)
	}
	return in, nil
}

func idMessage(ids []string) *record.Message {
	msg := record.NewMessage()
	for _, id := range ids {
		msg.AddRecord(record.Record{RecordID: id})
	}
	return msg
}
