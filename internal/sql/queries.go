package sql

import (
	"embed"
	_ "embed"
)

// Migrations holds the idempotent schema DDL, applied in filename order.
//
//go:embed migrations
var Migrations embed.FS

//go:embed queries/get_patient.sql
var GetPatient string

//go:embed queries/get_provider.sql
var GetProvider string

//go:embed queries/get_treatment_by_diagnosis.sql
var GetTreatmentByDiagnosis string

//go:embed queries/treatment_exists.sql
var TreatmentExists string

//go:embed queries/get_policy.sql
var GetPolicy string

//go:embed queries/insert_audit.sql
var InsertAudit string

//go:embed queries/query_audit.sql
var QueryAudit string

//go:embed queries/delete_providers.sql
var DeleteProviders string
