package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/config"
	"github.com/roach88/restgate/internal/logger"
	"github.com/roach88/restgate/internal/orchestrator"
	"github.com/roach88/restgate/internal/record"
	"github.com/roach88/restgate/internal/selector"
)

// session is one CLI invocation's configuration, connector and output.
type session struct {
	cfg  *config.Config
	conn backend.Connector
	out  *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openSession loads the configuration and selects the connector for the
// --database flag. The caller must close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)
	if opts.Database == "" {
		_ = out.Error(ErrCodeBadRequest, "--database is required", nil)
		return nil, NewExitError(ExitCommandError, "--database is required")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	creds := backend.Credentials{Username: opts.User, Password: opts.Password, Token: opts.Token}
	conn, err := selector.Select(creds, opts.Database, cfg, selector.Options{})
	if err != nil {
		return nil, out.BackendError(err)
	}
	out.VerboseLog("Using %s connector for %s", conn.Kind(), conn.Database())
	logger.For(logger.ComponentCLI).Debugw("session opened", "db", opts.Database, "kind", conn.Kind())
	return &session{cfg: cfg, conn: conn, out: out}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.conn.Close(ctx); err != nil {
		s.out.VerboseLog("close session: %v", err)
	}
}

// orchestrator returns a request-scoped orchestrator for layout.
func (s *session) orchestrator(layout string) *orchestrator.Orchestrator {
	return orchestrator.New(s.conn, layout, orchestrator.Options{
		MaxRecords: s.cfg.HTTP.MaxRecords,
		Logger:     logger.For(logger.ComponentOrchestrator),
	})
}

// readInput reads a record message from --data: inline JSON, @file, or
// @- for stdin. A bare field object becomes a one-record message.
func readInput(cmd *cobra.Command, data string) (*record.Message, error) {
	raw := []byte(data)
	switch {
	case data == "@-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, err
		}
		raw = b
	}
	msg, err := record.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parse --data: %w", err)
	}
	return msg, nil
}
