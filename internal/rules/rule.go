// Package rules evaluates invoices against named, ordered rule sets.
//
// A rule yields at most one finding. Findings are emitted in rule-set
// declaration order with rule sets in the order the caller names them;
// the error and warning lists of a result are derived from the findings.
package rules

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/rezonia/invoice-engine/internal/model"
)

// Input is what a rule sees
type Input struct {
	Invoice *model.Invoice

	// Encoded form of Invoice; nil when the invoice cannot be encoded
	XML *etree.Document
}

// Check reports whether the input passes. On failure, args fill the
// rule's message template.
type Check func(in *Input) (ok bool, args []any)

// Rule is a single business rule
type Rule struct {
	ID       string
	Severity model.Severity
	Message  string // fmt template
	Check    Check

	// RequiresXML rules are skipped when no encoded document is available
	RequiresXML bool
}

// Evaluate runs the rule against in, returning a finding when it fails
func (r Rule) Evaluate(set string, in *Input) (model.Finding, bool) {
	if r.RequiresXML && in.XML == nil {
		return model.Finding{}, false
	}

	ok, args := r.Check(in)
	if ok {
		return model.Finding{}, false
	}

	msg := r.Message
	if len(args) > 0 {
		msg = fmt.Sprintf(r.Message, args...)
	}

	return model.Finding{
		RuleSet:  set,
		RuleID:   r.ID,
		Severity: r.Severity,
		Message:  msg,
	}, true
}

// RuleSet is a named, ordered collection of rules
type RuleSet struct {
	Name        string
	DisplayName string
	Description string
	Rules       []Rule
}

func pass() (bool, []any) {
	return true, nil
}

func fail(args ...any) (bool, []any) {
	return false, args
}
