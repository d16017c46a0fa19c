package adjudicate

import (
	"testing"

	"github.com/gyeh/paflow/internal/model"
)

func TestCompose(t *testing.T) {
	cases := []struct {
		rules    model.Status
		evidence model.Status
		want     model.Status
	}{
		{model.StatusApproved, model.StatusApproved, model.StatusApproved},
		{model.StatusApproved, model.StatusDenied, model.StatusDenied},
		{model.StatusDenied, model.StatusApproved, model.StatusDenied},
		{model.StatusDenied, model.StatusDenied, model.StatusDenied},
	}
	for _, c := range cases {
		if got := Compose(c.rules, c.evidence); got != c.want {
			t.Errorf("Compose(%s, %s) = %s, want %s", c.rules, c.evidence, got, c.want)
		}
	}
}
