package model

// Severity partitions findings into blocking and non-blocking
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a single rule outcome
type Finding struct {
	RuleSet  string   `json:"ruleSet"`
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidationResult is the outcome of running rule sets against one invoice.
// Errors and Warnings are derived from Findings.
type ValidationResult struct {
	InvoiceID string    `json:"invoiceId"`
	Valid     bool      `json:"valid"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings"`
	Findings  []Finding `json:"findings,omitempty"`
}
