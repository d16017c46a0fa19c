package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/paflow/internal/adjudicate"
	"github.com/gyeh/paflow/internal/audit"
	"github.com/gyeh/paflow/internal/db"
	"github.com/gyeh/paflow/internal/evidence"
	"github.com/gyeh/paflow/internal/exitcode"
	"github.com/gyeh/paflow/internal/extract"
	"github.com/gyeh/paflow/internal/inference"
	"github.com/gyeh/paflow/internal/llm"
	"github.com/gyeh/paflow/internal/logging"
	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/refdata"
)

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Adjudicate one prior authorization request",
	RunE:  runAdjudicate,
}

func init() {
	f := adjudicateCmd.Flags()
	f.StringVar(&cfg.DocumentPath, "file", "", "Path to the PA document (PDF/DOCX, required)")
	f.StringVar(&cfg.EvidencePath, "evidence", "", "Path to the evidence file (required)")
	f.StringVar(&cfg.EvidenceType, "evidence-type", "", "Evidence variant: lab or xray (required)")
	f.StringVar(&cfg.ModelPath, "model", "", "Path to the ONNX fracture model (xray evidence)")
	f.StringVar(&cfg.GeminiModel, "gemini-model", "", "Gemini model name (lab evidence)")
	f.DurationVar(&cfg.LLMTimeout, "llm-timeout", 0, "LLM request timeout (default 30s)")
	_ = adjudicateCmd.MarkFlagRequired("file")
	_ = adjudicateCmd.MarkFlagRequired("evidence")
	_ = adjudicateCmd.MarkFlagRequired("evidence-type")
	rootCmd.AddCommand(adjudicateCmd)
}

func runAdjudicate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := loadConfigFile(); err != nil {
		log.Error().Err(err).Msg("config file load failed")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateAdjudicate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	document, err := os.ReadFile(cfg.DocumentPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to read document")
		os.Exit(exitcode.ValidationError)
	}
	evidenceBytes, err := os.ReadFile(cfg.EvidencePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to read evidence")
		os.Exit(exitcode.ValidationError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	pipeline := &adjudicate.Pipeline{
		Gateway: refdata.NewStore(pool),
		Audit:   audit.NewStore(pool),
		Log:     log,
	}

	var kind adjudicate.EvidenceKind
	switch cfg.EvidenceType {
	case "xray":
		kind = adjudicate.EvidenceXRay
		detector, err := inference.NewONNXDetector(cfg.ModelPath, cfg.ORTLibraryPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to load fracture model")
			os.Exit(exitcode.ValidationError)
		}
		defer detector.Close()
		pipeline.Image = evidence.NewImageVerifier(detector, cfg.ConfidenceThreshold, log)
	case "lab":
		kind = adjudicate.EvidenceLab
		client, err := llm.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTimeout)
		if err != nil {
			log.Error().Err(err).Msg("failed to build LLM client")
			os.Exit(exitcode.UsageError)
		}
		pipeline.Lab = evidence.NewLabVerifier(client, log)
	}

	summary, err := pipeline.Run(ctx, &adjudicate.Request{
		Document:     document,
		DocumentMIME: mimeForPath(cfg.DocumentPath),
		Evidence:     evidenceBytes,
		EvidenceMIME: mimeForPath(cfg.EvidencePath),
		Kind:         kind,
	})
	if err != nil {
		var pe *adjudicate.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("adjudication failed")
			switch pe.Phase {
			case "evidence":
				os.Exit(exitcode.EvidenceError)
			case "audit":
				os.Exit(exitcode.AuditError)
			default:
				os.Exit(exitcode.ExtractionError)
			}
		}
		log.Error().Err(err).Msg("adjudication failed")
		os.Exit(exitcode.ExtractionError)
	}

	printSummary(summary)
	return nil
}

func printSummary(s *model.AdjudicationSummary) {
	fmt.Println("=== paflow adjudication ===")
	fmt.Printf("Request:    %s\n", s.RequestID)
	fmt.Printf("Patient:    %s\n", s.Extracted.PatientID)
	fmt.Printf("Provider:   %s\n", s.Extracted.ProviderNPI)
	fmt.Printf("Diagnoses:  %s\n", strings.Join(s.Extracted.DiagnosisCodes, ", "))
	fmt.Printf("Treatment:  %s\n", s.TreatmentName)
	fmt.Println()
	fmt.Printf("Rule status: %s\n", s.RuleStatus)
	for _, o := range s.RuleOutcomes {
		mark := "pass"
		if !o.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-21s %s\n", mark, o.RuleID, o.Message)
	}
	fmt.Println()
	fmt.Printf("Evidence:    %s (%s)\n", s.Evidence.Status, s.Evidence.Summary)
	fmt.Printf("Final:       %s\n", s.FinalDecision)
	fmt.Printf("Audit id:    %d (%.1fs total)\n", s.AuditID, s.DurationTotal.Seconds())
}

// mimeForPath maps a file extension to the declared MIME type the
// extractor branches on.
func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extract.MIMEPDF
	case ".docx":
		return extract.MIMEDocx
	case ".doc":
		return extract.MIMEDoc
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".csv":
		return "text/csv"
	case ".md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
