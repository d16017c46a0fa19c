package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	ExtractionError = 4
	EvidenceError   = 5
	AuditError      = 6
)
