package server

import (
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/rules"
)

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	Invoice *model.Invoice `json:"invoice" binding:"required"`
}

// CreateAndValidateRequest is the body of POST /invoices/validate
type CreateAndValidateRequest struct {
	Invoice *model.Invoice `json:"invoice" binding:"required"`
	Schemas []string       `json:"schemas" binding:"omitempty,dive,required"`
}

// UpdateInvoiceRequest is the body of PUT /invoices/:id
type UpdateInvoiceRequest struct {
	Invoice *model.Invoice `json:"invoice" binding:"required"`
}

// ShareRequest is the body of POST /invoices/:id/share
type ShareRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,dive,required"`
}

// ValidateRequest is the body of POST /validate
type ValidateRequest struct {
	InvoiceIDs []string `json:"invoiceIds" binding:"required,min=1,dive,required"`
	Schemas    []string `json:"schemas" binding:"omitempty,dive,required"`
}

// ListQuery holds the query parameters of GET /invoices
type ListQuery struct {
	Valid  string `form:"valid" binding:"omitempty,oneof=valid invalid unvalidated"`
	Shared bool   `form:"shared"`
	Limit  int    `form:"limit" binding:"min=0,max=500"`
	Offset int    `form:"offset" binding:"min=0"`
}

// InvoiceResponse is returned by create and update
type InvoiceResponse struct {
	InvoiceID  string                  `json:"invoiceId"`
	DocumentID string                  `json:"documentId"`
	XML        string                  `json:"xml"`
	Invoice    *model.Invoice          `json:"invoice"`
	Validation *model.ValidationResult `json:"validation,omitempty"`
}

// ListResponse wraps invoice summaries
type ListResponse struct {
	Invoices []model.Summary `json:"invoices"`
}

// ShareResponse lists everyone an invoice is shared with
type ShareResponse struct {
	InvoiceID  string   `json:"invoiceId"`
	SharedWith []string `json:"sharedWith"`
}

// SchemasResponse lists the selectable rule sets
type SchemasResponse struct {
	Schemas []rules.CatalogEntry `json:"schemas"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	BatchID string              `json:"batchId"`
	Valid   bool                `json:"valid"`
	Results []InvoiceValidation `json:"results"`
}

// InvoiceValidation is one invoice's outcome in a ValidationResponse
type InvoiceValidation struct {
	InvoiceID string   `json:"invoiceId"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
	Error     string   `json:"error,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string   `json:"error"`
	Field     string   `json:"field,omitempty"`
	Available []string `json:"available,omitempty"`
}
