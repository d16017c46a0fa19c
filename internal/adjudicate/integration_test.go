package adjudicate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/paflow/internal/adjudicate"
	"github.com/gyeh/paflow/internal/audit"
	"github.com/gyeh/paflow/internal/db"
	"github.com/gyeh/paflow/internal/evidence"
	"github.com/gyeh/paflow/internal/inference"
	"github.com/gyeh/paflow/internal/llm"
	"github.com/gyeh/paflow/internal/logging"
	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/refdata"
	"github.com/gyeh/paflow/internal/refload"
)

const (
	testPort     = 15433
	testDB       = "patest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

// testNow fixes "now" so claim recency is deterministic.
var testNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB creates a connection pool on a clean schema with migrations applied.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS public CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA public"); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	log := logging.Setup("text")
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

// seedReference loads the minimal reference rows an approvable Dialysis and
// Fracture request needs.
func seedReference(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO patients (patient_id, age, insurance_id) VALUES ('PT-1002', '61', 'INS-9')`,
		`INSERT INTO providers (npi, provider_type, total_services, total_beneficiaries, active_from, active_to)
		 VALUES (1003000142, 'Nephrologist', '1,041', '1,041', '2021-04-20', '2029-01-17')`,
		`INSERT INTO providers (npi, provider_type, total_services, total_beneficiaries, active_from, active_to)
		 VALUES (1003008533, 'Orthologist', '28', '30', '2020-01-01', '2030-12-31')`,
		`INSERT INTO treatments (treatment_name, icd10_code) VALUES ('Dialysis', 'N18.6')`,
		`INSERT INTO treatments (treatment_name, icd10_code) VALUES ('Fracture', 'S72.0')`,
		`INSERT INTO insurance_policies (insurance_id, claim_date) VALUES ('INS-9', '2025-06-01')`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed: %v\n%s", err, stmt)
		}
	}
}

// fakeDetector returns canned predictions without touching ONNX runtime.
type fakeDetector struct {
	preds []inference.Prediction
}

func (d *fakeDetector) Detect(_ context.Context, _ []float32) ([]inference.Prediction, error) {
	return d.preds, nil
}

func (d *fakeDetector) Close() error { return nil }

// femurDetection is one confident femur box (class 0 maps to S72.0).
func femurDetection() []inference.Prediction {
	return []inference.Prediction{{
		Objectness:  0.95,
		ClassScores: []float32{0.9, 0.01, 0.01, 0.01},
	}}
}

// geminiStub serves a canned generateContent reply whose text is the given
// JSON array of lab test rows.
func geminiStub(t *testing.T, arrayJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reply := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": arrayJSON}}}},
			},
		}
		if err := json.NewEncoder(w).Encode(reply); err != nil {
			t.Errorf("encode stub reply: %v", err)
		}
	}))
}

func newPipeline(t *testing.T, pool *pgxpool.Pool, detector inference.Detector, geminiURL string) *adjudicate.Pipeline {
	t.Helper()
	log := logging.Setup("text")

	var lab evidence.Verifier
	if geminiURL != "" {
		client, err := llm.NewClient("test-key", "", time.Second)
		if err != nil {
			t.Fatalf("llm.NewClient: %v", err)
		}
		client.SetBaseURL(geminiURL)
		lab = evidence.NewLabVerifier(client, log)
	}

	var image evidence.Verifier
	if detector != nil {
		image = evidence.NewImageVerifier(detector, 0, log)
	}

	return &adjudicate.Pipeline{
		Gateway: refdata.NewStore(pool),
		Audit:   audit.NewStore(pool),
		Image:   image,
		Lab:     lab,
		Now:     func() time.Time { return testNow },
		Log:     log,
	}
}

func auditCount(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), "SELECT count(*) FROM audit_log").Scan(&n); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	return n
}

var dialysisDocument = []byte(`Prior Authorization Request
Patient ID: PT-1002
Provider NPI: 1003000142
Diagnosis: N18.6 end stage renal disease`)

func TestPipeline_LabApproval(t *testing.T) {
	pool := setupDB(t)
	seedReference(t, pool)

	srv := geminiStub(t, `[{"Test Name": "eGFR", "Result": "25", "Normal Range": "90-120"}]`)
	defer srv.Close()

	p := newPipeline(t, pool, nil, srv.URL)
	summary, err := p.Run(context.Background(), &adjudicate.Request{
		Document:     dialysisDocument,
		DocumentMIME: "text/plain",
		Evidence:     []byte("eGFR: 25 mL/min (normal 90-120)"),
		EvidenceMIME: "text/plain",
		Kind:         adjudicate.EvidenceLab,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TreatmentName != "Dialysis" {
		t.Errorf("TreatmentName = %q, want Dialysis", summary.TreatmentName)
	}
	if summary.RuleStatus != model.StatusApproved {
		t.Errorf("RuleStatus = %s, want APPROVED; failed: %v", summary.RuleStatus, summary.FailedRules())
	}
	if summary.Evidence.Status != model.StatusApproved {
		t.Errorf("evidence status = %s, want APPROVED: %s", summary.Evidence.Status, summary.Evidence.Summary)
	}
	if summary.FinalDecision != model.StatusApproved {
		t.Errorf("FinalDecision = %s, want APPROVED", summary.FinalDecision)
	}
	if summary.AuditID == 0 {
		t.Error("AuditID not assigned")
	}
	if got := auditCount(t, pool); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}

	t.Run("audit_record_contents", func(t *testing.T) {
		recs, err := audit.NewStore(pool).Query(context.Background(), audit.Filter{PatientID: "pt-1002"})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("records = %d, want 1", len(recs))
		}
		rec := recs[0]
		if rec.PatientID != "PT-1002" || rec.TreatmentName != "Dialysis" ||
			rec.DiagnosisCode != "N18.6" || rec.ProviderNPI != "1003000142" {
			t.Errorf("record = %+v", rec)
		}
		if rec.FinalDecision != model.StatusApproved {
			t.Errorf("FinalDecision = %s", rec.FinalDecision)
		}
	})

	t.Run("audit_filter_miss", func(t *testing.T) {
		recs, err := audit.NewStore(pool).Query(context.Background(), audit.Filter{
			FinalDecision: model.StatusDenied,
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("records = %d, want 0", len(recs))
		}
	})
}

func TestPipeline_XRayApproval(t *testing.T) {
	pool := setupDB(t)
	seedReference(t, pool)

	doc := []byte(`Patient ID: PT-1002
Provider NPI: 1003008533
Diagnosis: S72.0 fracture of femur`)

	p := newPipeline(t, pool, &fakeDetector{preds: femurDetection()}, "")
	summary, err := p.Run(context.Background(), &adjudicate.Request{
		Document:     doc,
		DocumentMIME: "text/plain",
		Evidence:     testXRayPNG(t),
		EvidenceMIME: "image/png",
		Kind:         adjudicate.EvidenceXRay,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TreatmentName != "Fracture" {
		t.Errorf("TreatmentName = %q, want Fracture", summary.TreatmentName)
	}
	if summary.Evidence.Status != model.StatusApproved {
		t.Errorf("evidence status = %s: %s", summary.Evidence.Status, summary.Evidence.Summary)
	}
	if summary.FinalDecision != model.StatusApproved {
		t.Errorf("FinalDecision = %s, want APPROVED; failed: %v", summary.FinalDecision, summary.FailedRules())
	}
}

func TestPipeline_InconclusiveEvidenceWritesNoAudit(t *testing.T) {
	pool := setupDB(t)
	seedReference(t, pool)

	doc := []byte(`Patient ID: PT-1002
Provider NPI: 1003008533
Diagnosis: S72.0`)

	// Detector sees nothing; the verdict is inconclusive.
	p := newPipeline(t, pool, &fakeDetector{}, "")
	_, err := p.Run(context.Background(), &adjudicate.Request{
		Document:     doc,
		DocumentMIME: "text/plain",
		Evidence:     testXRayPNG(t),
		EvidenceMIME: "image/png",
		Kind:         adjudicate.EvidenceXRay,
	})
	if !errors.Is(err, adjudicate.ErrEvidenceInconclusive) {
		t.Fatalf("err = %v, want ErrEvidenceInconclusive", err)
	}

	var perr *adjudicate.PipelineError
	if !errors.As(err, &perr) || perr.Phase != "evidence" {
		t.Errorf("err = %v, want evidence-phase pipeline error", err)
	}
	if got := auditCount(t, pool); got != 0 {
		t.Errorf("audit rows = %d, want 0", got)
	}
}

func TestPipeline_RuleDenialStillAudited(t *testing.T) {
	pool := setupDB(t)
	seedReference(t, pool)

	// Unknown patient: rules deny, but the evidence verdict and the audit
	// record are still produced.
	doc := []byte(`Patient ID: PT-404
Provider NPI: 1003000142
Diagnosis: N18.6`)

	srv := geminiStub(t, `[{"Test Name": "eGFR", "Result": "25", "Normal Range": "90-120"}]`)
	defer srv.Close()

	p := newPipeline(t, pool, nil, srv.URL)
	summary, err := p.Run(context.Background(), &adjudicate.Request{
		Document:     doc,
		DocumentMIME: "text/plain",
		Evidence:     []byte("eGFR: 25"),
		EvidenceMIME: "text/plain",
		Kind:         adjudicate.EvidenceLab,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.RuleStatus != model.StatusDenied {
		t.Errorf("RuleStatus = %s, want DENIED", summary.RuleStatus)
	}
	if summary.Evidence.Status != model.StatusApproved {
		t.Errorf("evidence status = %s, want APPROVED", summary.Evidence.Status)
	}
	if summary.FinalDecision != model.StatusDenied {
		t.Errorf("FinalDecision = %s, want DENIED", summary.FinalDecision)
	}
	if got := auditCount(t, pool); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}
}

func TestLoadProviders(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := logging.Setup("text")

	rows := []model.ProviderRefRow{
		{NPI: 1003000142, ProviderType: "Nephrologist", TotalServices: "1,041", TotalBeneficiaries: "1,041", ActiveFrom: "2021-04-20", ActiveTo: "2029-01-17"},
		{NPI: 1003008533, ProviderType: "Orthologist", TotalServices: "28", TotalBeneficiaries: "30", ActiveFrom: "2020-01-01", ActiveTo: "2030-12-31"},
	}
	path := writeProviderParquet(t, rows)

	res, err := refload.LoadProviders(ctx, pool, log, path, false)
	if err != nil {
		t.Fatalf("LoadProviders: %v", err)
	}
	if res.RowsRead != 2 || res.RowsLoaded != 2 {
		t.Errorf("result = %+v, want 2 read and 2 loaded", res)
	}

	// The gateway coerces the comma-separated counts on read.
	prov, err := refdata.NewStore(pool).Provider(ctx, 1003000142)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if prov == nil || prov.TotalServices != 1041 || prov.TotalBeneficiaries != 1041 {
		t.Errorf("provider = %+v", prov)
	}

	t.Run("replace_clears_existing", func(t *testing.T) {
		replacement := writeProviderParquet(t, rows[:1])
		res, err := refload.LoadProviders(ctx, pool, log, replacement, true)
		if err != nil {
			t.Fatalf("LoadProviders replace: %v", err)
		}
		if res.RowsLoaded != 1 {
			t.Errorf("RowsLoaded = %d, want 1", res.RowsLoaded)
		}
		var count int64
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM providers").Scan(&count); err != nil {
			t.Fatalf("count providers: %v", err)
		}
		if count != 1 {
			t.Errorf("providers = %d, want 1", count)
		}
	})
}

// testXRayPNG encodes a small grayscale stand-in image. The fake detector
// never inspects the pixels; the image only has to decode.
func testXRayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeProviderParquet(t *testing.T, rows []model.ProviderRefRow) string {
	t.Helper()
	path := t.TempDir() + "/providers.parquet"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet: %v", err)
	}
	w := goparquet.NewGenericWriter[model.ProviderRefRow](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close parquet file: %v", err)
	}
	return path
}
