// Package invoicelib provides a public API for encoding, decoding and
// validating UBL 2.1 invoices.
//
// Example usage:
//
//	codec := invoicelib.NewCodec()
//	xml, err := codec.Encode(invoice)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	validator := invoicelib.NewValidator()
//	result, err := validator.Validate(ctx, invoice, invoicelib.SchemaPeppol)
//	fmt.Println(result.Valid, result.Errors)
package invoicelib

import (
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// Re-export core types for public API
type (
	Invoice          = model.Invoice
	LineItem         = model.LineItem
	Party            = model.Party
	Address          = model.Address
	PaymentDetails   = model.PaymentDetails
	Summary          = model.Summary
	ValidStatus      = model.ValidStatus
	ValidationResult = model.ValidationResult
	Finding          = model.Finding
	Severity         = model.Severity
)

// Re-export cached validation states
const (
	ValidStatusUnvalidated = model.ValidStatusUnvalidated
	ValidStatusValid       = model.ValidStatusValid
	ValidStatusInvalid     = model.ValidStatusInvalid
)

// Re-export finding severities
const (
	SeverityError   = model.SeverityError
	SeverityWarning = model.SeverityWarning
)

// Built-in rule set names
const (
	SchemaPeppol   = rules.PeppolRuleSet
	SchemaFairwork = rules.FairworkRuleSet
)

// Sentinels substituted by the decoder for missing values
const (
	DefaultDueDate  = ubl.DefaultDate
	DefaultCurrency = ubl.DefaultCurrency
	DefaultCountry  = ubl.DefaultCountry
)

// Re-export error types
type (
	EncodingError       = model.EncodingError
	DecodeError         = model.DecodeError
	UnknownRuleSetError = model.UnknownRuleSetError
)
