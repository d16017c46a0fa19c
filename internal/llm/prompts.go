package llm

import (
	"fmt"
	"strings"
)

// labExtractionPrompt restricts the model to the tests the per-treatment
// rule table requires and pins the reply shape to a JSON array.
func labExtractionPrompt(reportText string, requiredTests []string) string {
	return fmt.Sprintf(`Extract ONLY the following test results if they exist:
[%s]

Return a valid JSON array, nothing else:
[{"Test Name": "Creatinine", "Result": "1.2 mg/dL", "Normal Range": "0.6-1.3 mg/dL"}]

Report:
%s`, strings.Join(requiredTests, ", "), reportText)
}
