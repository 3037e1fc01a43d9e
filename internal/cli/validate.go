package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/restgate/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Backend      string   `json:"backend,omitempty"`
	SQLDatabases []string `json:"sql_databases,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a gateway configuration",
		Long: `Load a configuration file together with RESTGATE_* environment variables
and check it against the configuration schema. Without an argument the
--config file is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	if path == "" {
		formatter.VerboseLog("No configuration file; validating defaults and environment")
	}

	cfg, err := config.Load(path)
	if err != nil {
		code := ErrCodeConfig
		if !errors.Is(err, config.ErrInvalid) {
			code = ErrCodeGeneric
		}
		if opts.Format == "json" {
			_ = formatter.Error(code, err.Error(), ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", err)
		}
		return WrapExitError(ExitFailure, "configuration invalid", err)
	}

	result := ValidationResult{Valid: true, Backend: cfg.Backend}
	for name := range cfg.SQL {
		result.SQLDatabases = append(result.SQLDatabases, name)
	}
	sort.Strings(result.SQLDatabases)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (backend %s, %d sql database(s))\n", result.Backend, len(result.SQLDatabases))
	return nil
}
