package rules

import (
	"context"

	"github.com/beevik/etree"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// Engine runs rule sets from a registry. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	registry *Registry
	encoder  *ubl.Encoder
}

// NewEngine creates an engine over registry
func NewEngine(registry *Registry) *Engine {
	return &Engine{
		registry: registry,
		encoder:  ubl.NewEncoder(ubl.WithIndent(0)),
	}
}

// Registry returns the registry the engine resolves names against
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Validate runs a single rule set against inv
func (e *Engine) Validate(ctx context.Context, inv *model.Invoice, name string) (*model.ValidationResult, error) {
	return e.ValidateMany(ctx, inv, []string{name})
}

// ValidateMany runs the named rule sets against inv and merges the findings.
// The invoice is encoded first so XML-level rules see what would be sent;
// if it cannot be encoded those rules are skipped.
func (e *Engine) ValidateMany(ctx context.Context, inv *model.Invoice, names []string) (*model.ValidationResult, error) {
	if inv == nil {
		return nil, errors.Mark(errors.New("invoice is nil"), model.ErrInvalidRequest)
	}

	sets, err := e.registry.Resolve(names)
	if err != nil {
		return nil, err
	}

	doc, _, err := e.encoder.Build(inv)
	if err != nil {
		doc = nil
	}

	return e.run(ctx, &Input{Invoice: inv, XML: doc}, sets)
}

// ValidateEncoded runs the named rule sets against inv and the document it
// was decoded from
func (e *Engine) ValidateEncoded(ctx context.Context, inv *model.Invoice, doc *etree.Document, names []string) (*model.ValidationResult, error) {
	if inv == nil {
		return nil, errors.Mark(errors.New("invoice is nil"), model.ErrInvalidRequest)
	}

	sets, err := e.registry.Resolve(names)
	if err != nil {
		return nil, err
	}

	return e.run(ctx, &Input{Invoice: inv, XML: doc}, sets)
}

func (e *Engine) run(ctx context.Context, in *Input, sets []*RuleSet) (*model.ValidationResult, error) {
	var findings []model.Finding

	for _, set := range sets {
		for _, rule := range set.Rules {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrapf(err, "validating %s", in.Invoice.InvoiceID)
			}
			if f, ok := rule.Evaluate(set.Name, in); ok {
				findings = append(findings, f)
			}
		}
	}

	return NewResult(in.Invoice.InvoiceID, findings), nil
}

// NewResult derives the error and warning lists from findings. Identical
// messages collapse to their first occurrence.
func NewResult(invoiceID string, findings []model.Finding) *model.ValidationResult {
	errs := messagesOf(findings, model.SeverityError)
	return &model.ValidationResult{
		InvoiceID: invoiceID,
		Valid:     len(errs) == 0,
		Errors:    errs,
		Warnings:  messagesOf(findings, model.SeverityWarning),
		Findings:  findings,
	}
}

func messagesOf(findings []model.Finding, severity model.Severity) []string {
	msgs := lo.FilterMap(findings, func(f model.Finding, _ int) (string, bool) {
		return f.Message, f.Severity == severity
	})
	return lo.Uniq(msgs)
}
