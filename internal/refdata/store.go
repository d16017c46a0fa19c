// Package refdata is the read-only gateway over the four reference tables
// consulted by the rule engine: patients, providers, treatments, and
// insurance policies. Typed records are constructed at this boundary so rule
// logic never touches positional row access. Missing rows are not errors;
// only storage-layer failures are.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/normalize"
	embedsql "github.com/gyeh/paflow/internal/sql"
)

// Store reads reference records from Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool in a reference data gateway.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Patient looks up a patient by id. Returns (nil, nil) when absent.
func (s *Store) Patient(ctx context.Context, id string) (*model.PatientRecord, error) {
	var age, insuranceID *string
	err := s.pool.QueryRow(ctx, embedsql.GetPatient, id).Scan(&age, &insuranceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup patient %q: %w", id, err)
	}
	return &model.PatientRecord{
		ID:          id,
		Age:         normalize.ToInt(deref(age)),
		InsuranceID: strings.TrimSpace(deref(insuranceID)),
	}, nil
}

// Provider looks up a provider by NPI. Returns (nil, nil) when absent.
func (s *Store) Provider(ctx context.Context, npi int64) (*model.ProviderRecord, error) {
	var provType, services, benes, from, to *string
	err := s.pool.QueryRow(ctx, embedsql.GetProvider, npi).
		Scan(&provType, &services, &benes, &from, &to)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup provider %d: %w", npi, err)
	}
	return &model.ProviderRecord{
		NPI:                npi,
		ProviderType:       strings.TrimSpace(deref(provType)),
		TotalServices:      normalize.ToInt(deref(services)),
		TotalBeneficiaries: normalize.ToInt(deref(benes)),
		ActiveFrom:         deref(from),
		ActiveTo:           deref(to),
	}, nil
}

// TreatmentByDiagnosis resolves a treatment by trying each claimed diagnosis
// code in the given order and returning the first table match. Callers pass
// codes in canonical (sorted) order, which makes resolution deterministic.
// Returns (nil, nil) when no code matches any treatment.
func (s *Store) TreatmentByDiagnosis(ctx context.Context, codes []string) (*model.TreatmentRecord, error) {
	for _, code := range codes {
		var name string
		err := s.pool.QueryRow(ctx, embedsql.GetTreatmentByDiagnosis, code).Scan(&name)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve treatment for %q: %w", code, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		return &model.TreatmentRecord{Name: name, DiagnosisCode: code}, nil
	}
	return nil, nil
}

// TreatmentExists reports whether a treatment name is in the authorized
// treatment table.
func (s *Store) TreatmentExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, embedsql.TreatmentExists, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check treatment %q: %w", name, err)
	}
	return exists, nil
}

// Policy looks up an insurance policy by id. Returns (nil, nil) when absent.
func (s *Store) Policy(ctx context.Context, insuranceID string) (*model.InsurancePolicy, error) {
	var claimDate *string
	err := s.pool.QueryRow(ctx, embedsql.GetPolicy, insuranceID).Scan(&claimDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup policy %q: %w", insuranceID, err)
	}
	return &model.InsurancePolicy{ID: insuranceID, ClaimDate: deref(claimDate)}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
