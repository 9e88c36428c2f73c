package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shipos/shipos/modules/migration/domain/pmtools"
	"github.com/shipos/shipos/modules/migration/services"
)

func newPMToolsCmd() *cobra.Command {
	var (
		tenant   string
		dir      string
		apply    bool
		tenantID uuid.UUID
	)

	cmd := &cobra.Command{
		Use:   "pmtools",
		Short: "Migrate a PMTools export directory (CUSTOMER, MBDETAIL, PACKAGES, BILLING)",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			tenantID = id
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readPMToolsDir(dir)
			if err != nil {
				return err
			}
			req := services.Request{Mode: services.ModeDryRun, Files: files}
			if apply {
				req.Mode = services.ModeExecute
			}
			// Dry-runs still read existing PMB numbers for the checks.
			sess, err := openSession(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			defer sess.Close()
			return runRequest(sess.ctx, sess.svc, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding the PMTools CSV tables (required)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write to the database (default is dry-run)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

// readPMToolsDir loads every file of dir whose name is a PMTools table,
// ignoring case and extension. Other files are skipped.
func readPMToolsDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("read dir %s: %w", dir, err))
	}
	files := make(map[string]string, len(entries))
	seen := make(map[pmtools.Table]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		table, err := pmtools.TableFor(e.Name())
		if err != nil {
			if errors.Is(err, pmtools.ErrUnknownTable) {
				continue
			}
			return nil, withCode(exitUsage, err)
		}
		if prev, dup := seen[table]; dup {
			return nil, withCode(exitUsage, fmt.Errorf("both %s and %s hold table %s", prev, e.Name(), table))
		}
		seen[table] = e.Name()
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read %s: %w", e.Name(), err))
		}
		files[string(table)] = string(b)
	}
	if _, ok := seen[pmtools.TableCustomer]; !ok {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", dir, pmtools.ErrMissingCustomerTable))
	}
	return files, nil
}
