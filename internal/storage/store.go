// Package storage defines where encoded invoices live between requests.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/rezonia/invoice-engine/internal/model"
)

// Record is a stored invoice: its encoded XML plus access metadata
type Record struct {
	InvoiceID  string
	OwnerID    string
	SharedWith []string // sorted, unique, never contains the owner
	XML        []byte
	Valid      model.ValidStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy of r
func (r *Record) Clone() *Record {
	c := *r
	c.SharedWith = append([]string(nil), r.SharedWith...)
	c.XML = append([]byte(nil), r.XML...)
	return &c
}

// ReadableBy reports whether userID owns rec or has it shared with them
func (r *Record) ReadableBy(userID string) bool {
	if userID == "" {
		return false
	}
	if r.OwnerID == userID {
		return true
	}
	i := sort.SearchStrings(r.SharedWith, userID)
	return i < len(r.SharedWith) && r.SharedWith[i] == userID
}

// Filter narrows a List call
type Filter struct {
	// Valid restricts to one cached status; empty means any
	Valid model.ValidStatus

	// IncludeShared adds invoices shared with the owner to their own
	IncludeShared bool

	Limit  int // 0 means no limit
	Offset int
}

// Store persists encoded invoices. Invoice ids are unique across owners.
type Store interface {
	// Get returns model.ErrNotFound when id is unknown
	Get(ctx context.Context, invoiceID string) (*Record, error)

	// Create inserts rec, returning model.ErrAlreadyExists if the id is taken
	Create(ctx context.Context, rec *Record) error

	// Put replaces the stored XML and metadata of an existing record
	Put(ctx context.Context, rec *Record) error

	// Delete returns model.ErrNotFound when id is unknown
	Delete(ctx context.Context, invoiceID string) error

	// List returns the owner's records, newest first
	List(ctx context.Context, ownerID string, filter Filter) ([]*Record, error)

	// SetValid updates only the cached validation status
	SetValid(ctx context.Context, invoiceID string, status model.ValidStatus) error

	Close() error
}

// Visible reports whether rec belongs in ownerID's listing under f
func (f Filter) Visible(rec *Record, ownerID string) bool {
	if f.Valid != "" && rec.Valid != f.Valid {
		return false
	}
	if rec.OwnerID == ownerID {
		return true
	}
	return f.IncludeShared && rec.ReadableBy(ownerID)
}

// Page applies Offset and Limit to an already ordered slice
func (f Filter) Page(recs []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(recs) {
			return []*Record{}
		}
		recs = recs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(recs) {
		recs = recs[:f.Limit]
	}
	return recs
}

// SortNewestFirst orders records by creation time, newest first, ties by id
func SortNewestFirst(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].InvoiceID < recs[j].InvoiceID
	})
}
