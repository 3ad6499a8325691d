// Package processor fans validation out over many stored invoices.
package processor

import (
	"context"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/rezonia/invoice-engine/internal/logger"
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

const defaultConcurrency = 8

// Fetcher loads stored invoices
type Fetcher interface {
	Get(ctx context.Context, invoiceID string) (*storage.Record, error)
}

// ResultHook observes every successful per-invoice validation.
// A hook error is logged and does not fail the item.
type ResultHook func(ctx context.Context, rec *storage.Record, result *model.ValidationResult) error

// BatchItem is the outcome for one requested invoice id
type BatchItem struct {
	InvoiceID string
	Result    *model.ValidationResult // nil when Err is set
	Err       error
}

// Valid reports whether the item validated without errors
func (i BatchItem) Valid() bool {
	return i.Err == nil && i.Result != nil && i.Result.Valid
}

// BatchResult holds one item per requested id, in request order
type BatchResult struct {
	BatchID      string
	Items        []BatchItem
	OverallValid bool
}

// Orchestrator validates stored invoices concurrently
type Orchestrator struct {
	store       Fetcher
	engine      *rules.Engine
	decoder     *ubl.Decoder
	logger      *logger.Logger
	concurrency int
	itemTimeout time.Duration
	failFast    bool
	hook        ResultHook
}

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithConcurrency bounds the number of invoices validated at once
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithItemTimeout limits how long a single invoice may take; 0 disables it
func WithItemTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.itemTimeout = d
	}
}

// WithFailFast makes the first per-invoice failure cancel the batch and
// fail the whole call
func WithFailFast(enabled bool) Option {
	return func(o *Orchestrator) {
		o.failFast = enabled
	}
}

// WithResultHook registers a hook called after each successful validation
func WithResultHook(hook ResultHook) Option {
	return func(o *Orchestrator) {
		o.hook = hook
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates an orchestrator reading from store
func NewOrchestrator(store Fetcher, engine *rules.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		engine:      engine,
		decoder:     ubl.NewDecoder(),
		logger:      logger.NewNop(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateBatch validates every id against the named rule sets
func (o *Orchestrator) ValidateBatch(ctx context.Context, ids []string, names []string) (*BatchResult, error) {
	return o.run(ctx, "", ids, names)
}

// ValidateBatchFor is ValidateBatch restricted to invoices userID owns or
// has been shared
func (o *Orchestrator) ValidateBatchFor(ctx context.Context, userID string, ids []string, names []string) (*BatchResult, error) {
	if userID == "" {
		return nil, errors.Mark(errors.New("user id is required"), model.ErrInvalidRequest)
	}
	return o.run(ctx, userID, ids, names)
}

func (o *Orchestrator) run(ctx context.Context, userID string, ids []string, names []string) (*BatchResult, error) {
	if _, err := o.engine.Registry().Resolve(names); err != nil {
		return nil, err
	}

	batch := &BatchResult{
		BatchID: ulid.Make().String(),
		Items:   make([]BatchItem, len(ids)),
	}
	log := o.logger.With("batch_id", batch.BatchID)
	log.Debugw("validating batch", "invoices", len(ids), "rule_sets", names, "fail_fast", o.failFast)

	start := time.Now()
	if o.failFast {
		p := pool.New().WithMaxGoroutines(o.concurrency).WithContext(ctx).WithCancelOnError().WithFirstError()
		for i, id := range ids {
			p.Go(func(ctx context.Context) error {
				batch.Items[i] = o.validateOne(ctx, userID, id, names)
				return batch.Items[i].Err
			})
		}
		if err := p.Wait(); err != nil {
			log.Infow("batch aborted", "error", err)
			return nil, err
		}
	} else {
		p := pool.New().WithMaxGoroutines(o.concurrency)
		for i, id := range ids {
			p.Go(func() {
				batch.Items[i] = o.validateOne(ctx, userID, id, names)
			})
		}
		p.Wait()

		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "batch cancelled")
		}
	}

	batch.OverallValid = !slices.ContainsFunc(batch.Items, func(item BatchItem) bool {
		return !item.Valid()
	})

	log.Infow("batch validated",
		"invoices", len(ids),
		"valid", batch.OverallValid,
		"duration", time.Since(start),
	)
	return batch, nil
}

func (o *Orchestrator) validateOne(ctx context.Context, userID, id string, names []string) BatchItem {
	item := BatchItem{InvoiceID: id}

	if o.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.itemTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		item.Err = errors.Wrapf(err, "invoice %s", id)
		return item
	}

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		item.Err = err
		return item
	}

	if userID != "" && !rec.ReadableBy(userID) {
		item.Err = errors.Wrapf(model.ErrPermissionDenied, "invoice %s", id)
		return item
	}

	doc, err := o.decoder.Parse(rec.XML)
	if err != nil {
		item.Err = errors.Wrapf(err, "invoice %s", id)
		return item
	}

	inv := o.decoder.DecodeDocument(doc)
	inv.OwnerUserID = rec.OwnerID
	inv.SharedWith = rec.SharedWith
	inv.Valid = rec.Valid

	result, err := o.engine.ValidateEncoded(ctx, inv, doc, names)
	if err != nil {
		item.Err = err
		return item
	}
	result.InvoiceID = id
	item.Result = result

	if o.hook != nil {
		if err := o.hook(ctx, rec, result); err != nil {
			o.logger.Warnw("result hook failed", "invoice_id", id, "error", err)
		}
	}

	return item
}
