package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alexanderkiel/flare/internal/config"
	"github.com/alexanderkiel/flare/internal/domain/sq"
)

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Print the FHIR search queries of a structured query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, func(ctx context.Context, a *app, q sq.StructuredQuery) error {
				t, err := a.service.Translate(ctx, q)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			})
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Structured query file, - for stdin")
	return cmd
}

func executeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Count the patients matching a structured query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, func(ctx context.Context, a *app, q sq.StructuredQuery) error {
				count, err := a.service.Execute(ctx, q)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Structured query file, - for stdin")
	cmd.Flags().Duration("timeout", 0, "Abort the execution after this duration (default QUERY_TIMEOUT)")
	return cmd
}

// runQuery reads the query named by the file flag, builds the app from the
// environment and runs fn with a logger tagged by a fresh execution id.
func runQuery(cmd *cobra.Command, fn func(context.Context, *app, sq.StructuredQuery) error) error {
	path, _ := cmd.Flags().GetString("file")
	q, err := readQueryFile(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr()).With().Str("execution_id", uuid.NewString()).Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.QueryTimeout
	if cmd.Flags().Lookup("timeout") != nil {
		if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = logger.WithContext(ctx)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	err = fn(ctx, a, q)
	logger.Debug().Dur("duration", time.Since(start)).Err(err).Msg("command finished")
	return err
}

func readQueryFile(path string, stdin io.Reader) (sq.StructuredQuery, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return sq.StructuredQuery{}, fmt.Errorf("read query: %w", err)
	}
	return sq.Parse(data)
}
