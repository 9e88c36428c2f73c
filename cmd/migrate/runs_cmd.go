package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
)

type runSummary struct {
	ID           string                     `json:"id"`
	ShortID      string                     `json:"shortId"`
	SourceFile   string                     `json:"sourceFile"`
	SourceSystem string                     `json:"sourceSystem"`
	Status       migrationrun.Status        `json:"status"`
	StartedAt    time.Time                  `json:"startedAt"`
	CompletedAt  *time.Time                 `json:"completedAt,omitempty"`
	Source       migrationrun.Counts        `json:"source"`
	Migrated     migrationrun.Counts        `json:"migrated"`
	Errors       int                        `json:"errors"`
	ErrorLog     []migrationrun.EntityError `json:"errorLog,omitempty"`
}

func newRunsCmd() *cobra.Command {
	var (
		tenant string
		status string
		stale  time.Duration
		limit  int
		errLog bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List migration runs, or the stale ones still marked migrating",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			var st migrationrun.Status
			if status != "" {
				if st, err = migrationrun.ParseStatus(status); err != nil {
					return withCode(exitUsage, err)
				}
			}
			sess, err := openSession(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			defer sess.Close()

			runs, err := listRuns(sess, st, stale, limit, cmd.Flags().Changed("stale"))
			if err != nil {
				return withCode(exitDB, err)
			}
			out := make([]runSummary, 0, len(runs))
			for _, r := range runs {
				out = append(out, summarize(r, errLog))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"runs": out})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: migrating, completed or failed")
	cmd.Flags().DurationVar(&stale, "stale", 0, "Only runs still migrating after this long (0 uses MIGRATION_STALE_AFTER)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of runs")
	cmd.Flags().BoolVar(&errLog, "errors", false, "Include each run's error log")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func listRuns(sess *session, status migrationrun.Status, stale time.Duration, limit int, staleOnly bool) ([]migrationrun.Run, error) {
	if staleOnly {
		return sess.svc.StaleRuns(sess.ctx, stale)
	}
	return sess.svc.ListRuns(sess.ctx, &migrationrun.FindParams{Status: status, Limit: limit})
}

func summarize(r migrationrun.Run, withLog bool) runSummary {
	s := runSummary{
		ID:           r.ID().String(),
		ShortID:      r.ShortID(),
		SourceFile:   r.SourceFile(),
		SourceSystem: r.SourceSystem(),
		Status:       r.Status(),
		StartedAt:    r.StartedAt(),
		CompletedAt:  r.CompletedAt(),
		Source:       r.Source(),
		Migrated:     r.Migrated(),
		Errors:       len(r.ErrorLog()),
	}
	if withLog {
		s.ErrorLog = r.ErrorLog()
	}
	return s
}
