package adjudicate

import "github.com/gyeh/paflow/internal/model"

// Compose combines the rule engine status and the evidence status into the
// final verdict. It is only called once both statuses are concrete; a
// PENDING evidence status never reaches composition.
func Compose(ruleStatus, evidenceStatus model.Status) model.Status {
	if ruleStatus == model.StatusApproved && evidenceStatus == model.StatusApproved {
		return model.StatusApproved
	}
	return model.StatusDenied
}
