package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gyeh/paflow/internal/model"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	// Labeled "Patient ID" token, permissive on separators and case.
	patientIDPattern = regexp.MustCompile(`(?i)Patient\s*ID[:\s-]*([A-Za-z0-9_-]+)`)

	// First 10-digit token following an "NPI" label.
	npiPattern = regexp.MustCompile(`(?i)NPI\s*(?:#|number)?\s*[:\s]*([0-9]{10})`)

	// ICD-10 shape: letter, digit, alnum, optional dot plus 1-4 alnum.
	// Deliberately case-sensitive; lowercased text is not a diagnosis code.
	icd10Pattern = regexp.MustCompile(`\b[A-Z][0-9][0-9A-Z](?:\.[0-9A-Z]{1,4})?\b`)
)

// Fields pulls the identifying fields out of whitespace-normalized document
// text. All matching is best-effort: absent fields stay empty. Diagnosis
// codes are deduplicated and sorted lexicographically so treatment
// resolution is deterministic.
func Fields(text string) model.ExtractedRequest {
	text = whitespace.ReplaceAllString(text, " ")

	var req model.ExtractedRequest
	if m := patientIDPattern.FindStringSubmatch(text); m != nil {
		req.PatientID = strings.TrimSpace(m[1])
	}
	if m := npiPattern.FindStringSubmatch(text); m != nil {
		req.ProviderNPI = strings.TrimSpace(m[1])
	}

	seen := make(map[string]struct{})
	for _, code := range icd10Pattern.FindAllString(text, -1) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		req.DiagnosisCodes = append(req.DiagnosisCodes, code)
	}
	sort.Strings(req.DiagnosisCodes)

	return req
}

// Request is the one-call convenience: document bytes in, extracted
// identifying fields out.
func Request(data []byte, mime string) model.ExtractedRequest {
	return Fields(Text(data, mime))
}
