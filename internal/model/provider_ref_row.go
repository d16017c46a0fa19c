package model

// ProviderRefRow is the Parquet schema for bulk provider reference loads.
// Service and beneficiary totals stay as raw text; CMS utilization extracts
// carry thousands separators and blanks that the rule engine coerces later.
type ProviderRefRow struct {
	NPI                int64  `parquet:"npi"`
	ProviderType       string `parquet:"provider_type"`
	TotalServices      string `parquet:"total_services"`
	TotalBeneficiaries string `parquet:"total_beneficiaries"`
	ActiveFrom         string `parquet:"active_from"`
	ActiveTo           string `parquet:"active_to"`
}

// CopyValues returns the row's values in COPY column order for the
// providers table.
func (r *ProviderRefRow) CopyValues() []any {
	return []any{
		r.NPI,
		r.ProviderType,
		r.TotalServices,
		r.TotalBeneficiaries,
		r.ActiveFrom,
		r.ActiveTo,
	}
}

// ProviderColumns returns the providers table columns in COPY order.
func ProviderColumns() []string {
	return []string{
		"npi",
		"provider_type",
		"total_services",
		"total_beneficiaries",
		"active_from",
		"active_to",
	}
}
