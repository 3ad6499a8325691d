package invoicelib

import (
	"context"
	"io"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// SchemaInfo describes a selectable rule set
type SchemaInfo = rules.CatalogEntry

// ValidatorOptions configures validator behavior
type ValidatorOptions struct {
	// Rule sets applied when a call names none
	DefaultSchemas []string
}

// DefaultValidatorOptions returns default validator options
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		DefaultSchemas: []string{SchemaPeppol},
	}
}

// Validator checks invoices against the built-in rule sets
type Validator struct {
	engine  *rules.Engine
	decoder *ubl.Decoder
	options ValidatorOptions
}

// NewValidator creates a validator with default options
func NewValidator() *Validator {
	return NewValidatorWithOptions(DefaultValidatorOptions())
}

// NewValidatorWithOptions creates a validator with the given options
func NewValidatorWithOptions(opts ValidatorOptions) *Validator {
	return &Validator{
		engine:  rules.NewEngine(rules.DefaultRegistry()),
		decoder: ubl.NewDecoder(),
		options: opts,
	}
}

// Schemas lists the rule sets that can be requested
func (v *Validator) Schemas() []SchemaInfo {
	return v.engine.Registry().Catalog().Entries()
}

// Validate runs the named rule sets over an invoice. Rule findings are
// reported on the result; an error means the request itself was invalid.
func (v *Validator) Validate(ctx context.Context, inv *model.Invoice, schemas ...string) (*model.ValidationResult, error) {
	return v.engine.ValidateMany(ctx, inv, v.schemas(schemas))
}

// ValidateXML decodes a UBL document and validates it, including the rules
// that inspect the document itself
func (v *Validator) ValidateXML(ctx context.Context, r io.Reader, schemas ...string) (*model.ValidationResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewDecodeError("failed to read input", err)
	}

	doc, err := v.decoder.Parse(data)
	if err != nil {
		return nil, err
	}

	return v.engine.ValidateEncoded(ctx, v.decoder.DecodeDocument(doc), doc, v.schemas(schemas))
}

func (v *Validator) schemas(requested []string) []string {
	if len(requested) == 0 {
		return v.options.DefaultSchemas
	}
	return requested
}
