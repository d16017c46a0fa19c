package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/paflow/internal/audit"
	"github.com/gyeh/paflow/internal/db"
	"github.com/gyeh/paflow/internal/exitcode"
	"github.com/gyeh/paflow/internal/logging"
	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/normalize"
)

var auditFilter struct {
	patient   string
	provider  string
	treatment string
	decision  string
	from      string
	to        string
	limit     int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log, newest first",
	RunE:  runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFilter.patient, "patient", "", "Filter by patient id (substring)")
	f.StringVar(&auditFilter.provider, "provider", "", "Filter by provider NPI (substring)")
	f.StringVar(&auditFilter.treatment, "treatment", "", "Filter by treatment name (exact)")
	f.StringVar(&auditFilter.decision, "decision", "", "Filter by final decision: APPROVED or DENIED")
	f.StringVar(&auditFilter.from, "from", "", "Filter by minimum date (e.g. 2025-01-01)")
	f.StringVar(&auditFilter.to, "to", "", "Filter by maximum date")
	f.IntVar(&auditFilter.limit, "limit", 100, "Maximum number of records to print")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	filter := audit.Filter{
		PatientID:     auditFilter.patient,
		ProviderNPI:   auditFilter.provider,
		TreatmentName: auditFilter.treatment,
		FinalDecision: model.Status(auditFilter.decision),
		From:          normalize.ParseDate(auditFilter.from),
		To:            endOfDay(normalize.ParseDate(auditFilter.to)),
		Limit:         auditFilter.limit,
	}

	records, err := audit.NewStore(pool).Query(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("audit query failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Printf("Total records: %d\n", len(records))
	for _, rec := range records {
		fmt.Printf("%s  %-12s %-14s %-8s %-10s rules=%-8s evidence=%-8s final=%s\n",
			rec.Timestamp.Format(time.RFC3339),
			rec.PatientID,
			rec.TreatmentName,
			rec.DiagnosisCode,
			rec.ProviderNPI,
			rec.RuleStatus,
			rec.EvidenceStatus,
			rec.FinalDecision,
		)
	}
	return nil
}

// endOfDay pushes a date-only upper bound to the last instant of that day so
// --to is inclusive.
func endOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	e := t.Add(24*time.Hour - time.Nanosecond)
	return &e
}
