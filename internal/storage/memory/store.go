// Package memory keeps invoices in process memory. Contents are lost on exit.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	goCache "github.com/patrickmn/go-cache"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/storage"
)

// Store implements storage.Store on github.com/patrickmn/go-cache.
// Entries never expire.
type Store struct {
	cache *goCache.Cache

	// serialises read-modify-write updates
	mu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		cache: goCache.New(goCache.NoExpiration, 0),
	}
}

func (s *Store) Get(_ context.Context, invoiceID string) (*storage.Record, error) {
	v, ok := s.cache.Get(invoiceID)
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "invoice %s", invoiceID)
	}
	return v.(*storage.Record).Clone(), nil
}

func (s *Store) Create(_ context.Context, rec *storage.Record) error {
	now := time.Now().UTC()
	c := rec.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Valid == "" {
		c.Valid = model.ValidStatusUnvalidated
	}

	if err := s.cache.Add(rec.InvoiceID, c, goCache.NoExpiration); err != nil {
		return errors.Wrapf(model.ErrAlreadyExists, "invoice %s", rec.InvoiceID)
	}
	return nil
}

func (s *Store) Put(_ context.Context, rec *storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(rec.InvoiceID)
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "invoice %s", rec.InvoiceID)
	}
	existing := v.(*storage.Record)

	c := rec.Clone()
	c.CreatedAt = existing.CreatedAt
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	if c.Valid == "" {
		c.Valid = model.ValidStatusUnvalidated
	}

	return s.cache.Replace(rec.InvoiceID, c, goCache.NoExpiration)
}

func (s *Store) Delete(_ context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(invoiceID); !ok {
		return errors.Wrapf(model.ErrNotFound, "invoice %s", invoiceID)
	}
	s.cache.Delete(invoiceID)
	return nil
}

func (s *Store) List(_ context.Context, ownerID string, filter storage.Filter) ([]*storage.Record, error) {
	var out []*storage.Record
	for _, item := range s.cache.Items() {
		rec := item.Object.(*storage.Record)
		if filter.Visible(rec, ownerID) {
			out = append(out, rec.Clone())
		}
	}

	storage.SortNewestFirst(out)
	return filter.Page(out), nil
}

func (s *Store) SetValid(_ context.Context, invoiceID string, status model.ValidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(invoiceID)
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "invoice %s", invoiceID)
	}

	c := v.(*storage.Record).Clone()
	c.Valid = status
	return s.cache.Replace(invoiceID, c, goCache.NoExpiration)
}

// Close drops every entry
func (s *Store) Close() error {
	s.cache.Flush()
	return nil
}
