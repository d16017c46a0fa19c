// Package audit persists the append-only compliance log. Every adjudicated
// request produces exactly one record; rows are never updated or deleted,
// and concurrent appenders rely on plain insert semantics.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/paflow/internal/model"
	embedsql "github.com/gyeh/paflow/internal/sql"
)

// Store is the audit log backed by Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool in an audit store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts one audit record and fills in its assigned id and write
// timestamp. A storage error here is fatal for the request: it means loss
// of a required compliance record and must be surfaced, never swallowed.
func (s *Store) Append(ctx context.Context, rec *model.AuditRecord) error {
	err := s.pool.QueryRow(ctx, embedsql.InsertAudit,
		rec.RequestID,
		rec.PatientID,
		rec.TreatmentName,
		rec.DiagnosisCode,
		rec.ProviderNPI,
		string(rec.RuleStatus),
		string(rec.EvidenceStatus),
		string(rec.FinalDecision),
	).Scan(&rec.AuditID, &rec.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Filter narrows an audit query. Zero values mean "no constraint".
// PatientID and ProviderNPI match as case-insensitive substrings, the way
// the reporting surface searches them.
type Filter struct {
	PatientID     string
	ProviderNPI   string
	TreatmentName string
	FinalDecision model.Status
	From          *time.Time
	To            *time.Time
	Limit         int
}

// Query returns audit records matching the filter in timestamp-descending
// order, ties broken by id so repeated queries are stable.
func (s *Store) Query(ctx context.Context, f Filter) ([]model.AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PatientID != "" {
		where = append(where, fmt.Sprintf("patient_id ILIKE '%%' || %s || '%%'", arg(f.PatientID)))
	}
	if f.ProviderNPI != "" {
		where = append(where, fmt.Sprintf("provider_npi ILIKE '%%' || %s || '%%'", arg(f.ProviderNPI)))
	}
	if f.TreatmentName != "" {
		where = append(where, fmt.Sprintf("treatment_name = %s", arg(f.TreatmentName)))
	}
	if f.FinalDecision != "" {
		where = append(where, fmt.Sprintf("final_decision = %s", arg(string(f.FinalDecision))))
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("ts >= %s", arg(*f.From)))
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("ts <= %s", arg(*f.To)))
	}

	q := embedsql.QueryAudit
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY ts DESC, audit_id DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf("\nLIMIT %s", arg(f.Limit))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var ruleStatus, evidenceStatus, finalDecision string
		if err := rows.Scan(
			&rec.AuditID, &rec.RequestID, &rec.Timestamp,
			&rec.PatientID, &rec.TreatmentName, &rec.DiagnosisCode,
			&rec.ProviderNPI, &ruleStatus, &evidenceStatus, &finalDecision,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.RuleStatus = model.Status(ruleStatus)
		rec.EvidenceStatus = model.Status(evidenceStatus)
		rec.FinalDecision = model.Status(finalDecision)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
