// Package service implements the invoice lifecycle on top of the codec,
// the rule engine and a store.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/rezonia/invoice-engine/internal/logger"
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/processor"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// Encoded is a stored invoice in both its forms
type Encoded struct {
	Invoice    *model.Invoice
	DocumentID string
	XML        []byte
}

// Options tune the service
type Options struct {
	// Rule sets applied when a request names none
	DefaultSchemas []string

	BatchConcurrency int
	ItemTimeout      time.Duration
	FailFast         bool
}

// Service manages invoices on behalf of a requesting user.
// Owners may do everything; users an invoice is shared with may read and
// validate it.
type Service struct {
	store          storage.Store
	engine         *rules.Engine
	catalog        *rules.Catalog
	orchestrator   *processor.Orchestrator
	encoder        *ubl.Encoder
	decoder        *ubl.Decoder
	defaultSchemas []string
	logger         *logger.Logger
}

// New creates a service
func New(store storage.Store, engine *rules.Engine, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Service{
		store:          store,
		engine:         engine,
		catalog:        engine.Registry().Catalog(),
		encoder:        ubl.NewEncoder(),
		decoder:        ubl.NewDecoder(),
		defaultSchemas: opts.DefaultSchemas,
		logger:         log.With("component", "service"),
	}

	s.orchestrator = processor.NewOrchestrator(store, engine,
		processor.WithConcurrency(opts.BatchConcurrency),
		processor.WithItemTimeout(opts.ItemTimeout),
		processor.WithFailFast(opts.FailFast),
		processor.WithResultHook(s.writeBack),
		processor.WithLogger(log.With("component", "orchestrator")),
	)

	return s
}

// Catalog returns the selectable rule sets
func (s *Service) Catalog() *rules.Catalog {
	return s.catalog
}

// Create encodes inv and stores it owned by userID
func (s *Service) Create(ctx context.Context, userID string, inv *model.Invoice) (*Encoded, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	doc, err := s.prepare(userID, inv)
	if err != nil {
		return nil, err
	}

	encoded, err := s.encoder.Encode(doc)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, &storage.Record{
		InvoiceID:  doc.InvoiceID,
		OwnerID:    userID,
		SharedWith: doc.SharedWith,
		XML:        encoded.XML,
		Valid:      model.ValidStatusUnvalidated,
	}); err != nil {
		return nil, err
	}

	s.logger.Infow("invoice created", "invoice_id", doc.InvoiceID, "user_id", userID, "document_id", encoded.DocumentID)
	return &Encoded{Invoice: doc, DocumentID: encoded.DocumentID, XML: encoded.XML}, nil
}

// CreateAndValidate creates the invoice, then validates it. The stored
// document is kept whatever the validation outcome.
func (s *Service) CreateAndValidate(ctx context.Context, userID string, inv *model.Invoice, schemas []string) (*Encoded, *model.ValidationResult, error) {
	names := s.schemasOrDefault(schemas)
	if _, err := s.engine.Registry().Resolve(names); err != nil {
		return nil, nil, err
	}

	created, err := s.Create(ctx, userID, inv)
	if err != nil {
		return nil, nil, err
	}

	doc, err := s.decoder.Parse(created.XML)
	if err != nil {
		return created, nil, err
	}

	result, err := s.engine.ValidateEncoded(ctx, created.Invoice, doc, names)
	if err != nil {
		return created, nil, err
	}

	status := model.ValidStatusOf(result.Valid)
	if err := s.store.SetValid(ctx, created.Invoice.InvoiceID, status); err != nil {
		s.logger.Warnw("caching validation status failed", "invoice_id", created.Invoice.InvoiceID, "error", err)
	} else {
		created.Invoice.Valid = status
	}

	s.logger.Infow("invoice validated",
		"invoice_id", created.Invoice.InvoiceID,
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	return created, result, nil
}

// Get returns the decoded invoice
func (s *Service) Get(ctx context.Context, userID, invoiceID string) (*model.Invoice, error) {
	rec, err := s.readable(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	inv, err := s.decoder.Decode(rec.XML)
	if err != nil {
		return nil, errors.Wrapf(err, "invoice %s", invoiceID)
	}
	withRecord(inv, rec)
	return inv, nil
}

// GetXML returns the stored document
func (s *Service) GetXML(ctx context.Context, userID, invoiceID string) ([]byte, error) {
	rec, err := s.readable(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	return rec.XML, nil
}

// List returns summaries of the invoices visible to userID, newest first
func (s *Service) List(ctx context.Context, userID string, filter storage.Filter) ([]model.Summary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	recs, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	out := make([]model.Summary, 0, len(recs))
	for _, rec := range recs {
		summary, err := s.decoder.DecodeSummary(rec.XML)
		if err != nil {
			s.logger.Warnw("skipping undecodable invoice", "invoice_id", rec.InvoiceID, "error", err)
			summary = &model.Summary{InvoiceID: rec.InvoiceID}
		}
		summary.Valid = rec.Valid
		out = append(out, *summary)
	}
	return out, nil
}

// Update replaces the invoice wholesale. Only the owner may update, and the
// cached validation status is reset.
func (s *Service) Update(ctx context.Context, userID, invoiceID string, inv *model.Invoice) (*Encoded, error) {
	rec, err := s.owned(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv != nil && inv.InvoiceID == "" {
		c := *inv
		c.InvoiceID = invoiceID
		inv = &c
	}
	if inv != nil && inv.InvoiceID != invoiceID {
		return nil, errors.Mark(errors.Newf("invoice id %q does not match %q", inv.InvoiceID, invoiceID), model.ErrInvalidRequest)
	}

	doc, err := s.prepare(userID, inv)
	if err != nil {
		return nil, err
	}
	doc.SharedWith = rec.SharedWith

	encoded, err := s.encoder.Encode(doc)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, &storage.Record{
		InvoiceID:  invoiceID,
		OwnerID:    rec.OwnerID,
		SharedWith: rec.SharedWith,
		XML:        encoded.XML,
		Valid:      model.ValidStatusUnvalidated,
	}); err != nil {
		return nil, err
	}

	s.logger.Infow("invoice updated", "invoice_id", invoiceID, "user_id", userID)
	return &Encoded{Invoice: doc, DocumentID: encoded.DocumentID, XML: encoded.XML}, nil
}

// Delete removes the invoice. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, userID, invoiceID string) error {
	if _, err := s.owned(ctx, userID, invoiceID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, invoiceID); err != nil {
		return err
	}

	s.logger.Infow("invoice deleted", "invoice_id", invoiceID, "user_id", userID)
	return nil
}

// Share grants users read and validate access, returning the full share set
func (s *Service) Share(ctx context.Context, userID, invoiceID string, users []string) ([]string, error) {
	rec, err := s.owned(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	rec.SharedWith = model.NormalizeSharedWith(rec.OwnerID, append(rec.SharedWith, trimAll(users)...))
	rec.UpdatedAt = time.Time{}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Infow("invoice shared", "invoice_id", invoiceID, "shared_with", rec.SharedWith)
	return rec.SharedWith, nil
}

// Validate runs the named rule sets over the given invoices. Per-invoice
// failures are reported on their own item.
func (s *Service) Validate(ctx context.Context, userID string, invoiceIDs, schemas []string) (*processor.BatchResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if len(invoiceIDs) == 0 {
		return nil, errors.Mark(errors.New("at least one invoice id is required"), model.ErrInvalidRequest)
	}

	return s.orchestrator.ValidateBatchFor(ctx, userID, invoiceIDs, s.schemasOrDefault(schemas))
}

// ValidateInvoice runs rule sets over an invoice that is not stored
func (s *Service) ValidateInvoice(ctx context.Context, inv *model.Invoice, schemas []string) (*model.ValidationResult, error) {
	return s.engine.ValidateMany(ctx, inv, s.schemasOrDefault(schemas))
}

func (s *Service) writeBack(ctx context.Context, rec *storage.Record, result *model.ValidationResult) error {
	status := model.ValidStatusOf(result.Valid)
	if rec.Valid == status {
		return nil
	}
	return s.store.SetValid(ctx, rec.InvoiceID, status)
}

// prepare copies inv for storage under userID with derived fields set
func (s *Service) prepare(userID string, inv *model.Invoice) (*model.Invoice, error) {
	if inv == nil {
		return nil, errors.Mark(errors.New("invoice is required"), model.ErrInvalidRequest)
	}

	doc := *inv
	doc.InvoiceID = strings.TrimSpace(doc.InvoiceID)
	if doc.InvoiceID == "" {
		return nil, errors.Mark(errors.New("invoice id is required"), model.ErrInvalidRequest)
	}

	doc.Items = append([]model.LineItem(nil), inv.Items...)
	doc.OwnerUserID = userID
	doc.SharedWith = model.NormalizeSharedWith(userID, inv.SharedWith)
	doc.Valid = model.ValidStatusUnvalidated
	doc.CalculateTotals()
	return &doc, nil
}

func (s *Service) readable(ctx context.Context, userID, invoiceID string) (*storage.Record, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !rec.ReadableBy(userID) {
		return nil, errors.Wrapf(model.ErrPermissionDenied, "invoice %s", invoiceID)
	}
	return rec, nil
}

func (s *Service) owned(ctx context.Context, userID, invoiceID string) (*storage.Record, error) {
	rec, err := s.readable(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != userID {
		return nil, errors.Wrapf(model.ErrPermissionDenied, "invoice %s is owned by another user", invoiceID)
	}
	return rec, nil
}

func (s *Service) schemasOrDefault(schemas []string) []string {
	if len(schemas) == 0 {
		return s.defaultSchemas
	}
	return schemas
}

func withRecord(inv *model.Invoice, rec *storage.Record) {
	inv.OwnerUserID = rec.OwnerID
	inv.SharedWith = rec.SharedWith
	inv.Valid = rec.Valid
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Mark(errors.New("user id is required"), model.ErrInvalidRequest)
	}
	return nil
}

func trimAll(values []string) []string {
	return lo.Map(values, func(v string, _ int) string {
		return strings.TrimSpace(v)
	})
}
