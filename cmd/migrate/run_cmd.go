package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/services"
)

type runOptions struct {
	tenantID     uuid.UUID
	input        string
	preset       string
	configPath   string
	format       string
	sourceSystem string
	apply        bool
}

func newRunCmd() *cobra.Command {
	var (
		opts   runOptions
		tenant string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Migrate one legacy export file through a preset or custom mapping",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			opts.tenantID = id
			if (opts.preset == "") == (opts.configPath == "") {
				return withCode(exitUsage, fmt.Errorf("exactly one of --preset or --config is required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRunRequest(opts)
			if err != nil {
				return err
			}
			var sess *session
			if opts.apply {
				sess, err = openSession(cmd.Context(), opts.tenantID)
				if err != nil {
					return err
				}
				defer sess.Close()
			} else {
				sess = offlineSession(cmd.Context(), opts.tenantID)
			}
			return runRequest(sess.ctx, sess.svc, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&opts.input, "input", "", "Source file (required)")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "Built-in mapping preset")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Custom mapping file (json, yaml or toml)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Source format: csv, tsv, json, xlsx or auto (default: from mapping)")
	cmd.Flags().StringVar(&opts.sourceSystem, "source-system", "", "Source system label recorded on the run")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write to the database (default is dry-run)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func buildRunRequest(opts runOptions) (services.Request, error) {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return services.Request{}, withCode(exitUsage, fmt.Errorf("read %s: %w", opts.input, err))
	}
	req := services.Request{
		Mode:         services.ModeDryRun,
		Source:       string(data),
		Preset:       opts.preset,
		Format:       strings.ToLower(opts.format),
		SourceFile:   filepath.Base(opts.input),
		SourceSystem: opts.sourceSystem,
	}
	if opts.apply {
		req.Mode = services.ModeExecute
	}
	if opts.configPath != "" {
		raw, err := os.ReadFile(opts.configPath)
		if err != nil {
			return services.Request{}, withCode(exitUsage, fmt.Errorf("read %s: %w", opts.configPath, err))
		}
		cfg, err := mapping.ParseConfig(raw, filepath.Ext(opts.configPath))
		if err != nil {
			return services.Request{}, withCode(exitValidation, fmt.Errorf("config %s: %w", opts.configPath, err))
		}
		req.Config = &cfg
	}
	return req, nil
}

// runRequest prints the response even when execution fails part way, so
// the migration id of a failed run is never lost.
func runRequest(ctx context.Context, svc *services.MigrationService, req services.Request, out io.Writer) error {
	resp, err := svc.Run(ctx, req)
	if resp.DryRun != nil || resp.Execute != nil {
		if werr := writeJSONLine(out, resp.Body()); werr != nil {
			return werr
		}
	}
	return classify(err)
}
