package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shipos/shipos/modules/migration/services"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in mapping presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := offlineSession(cmd.Context(), uuid.Nil).svc
			return writeJSONLine(cmd.OutOrStdout(), map[string][]services.PresetInfo{"presets": svc.Presets()})
		},
	}
}

func newTemplateCmd() *cobra.Command {
	var preset, output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the CSV template of a preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := offlineSession(cmd.Context(), uuid.Nil).svc
			body, err := svc.Template(preset)
			if err != nil {
				return classify(err)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return withCode(exitUsage, fmt.Errorf("write %s: %w", output, err))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]string{"preset": preset, "output": output})
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Preset name (required)")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("preset")
	return cmd
}
