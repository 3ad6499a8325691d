// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/storage"
)

var base = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func record(id, owner string, age time.Duration, shared ...string) *storage.Record {
	created := base.Add(-age)
	return &storage.Record{
		InvoiceID:  id,
		OwnerID:    owner,
		SharedWith: shared,
		XML:        []byte("<Invoice><ID>" + id + "</ID></Invoice>"),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// Run exercises a fresh store from newStore against the storage.Store contract
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, record("INV-1", "alice", 0, "bob")))

		got, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, "INV-1", got.InvoiceID)
		assert.Equal(t, "alice", got.OwnerID)
		assert.Equal(t, []string{"bob"}, got.SharedWith)
		assert.Equal(t, "<Invoice><ID>INV-1</ID></Invoice>", string(got.XML))
		assert.Equal(t, model.ValidStatusUnvalidated, got.Valid)
		assert.True(t, got.CreatedAt.Equal(base), "created %s", got.CreatedAt)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("ids are unique across owners", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, record("INV-1", "alice", 0)))
		err := s.Create(ctx, record("INV-1", "carol", 0))
		assert.True(t, errors.Is(err, model.ErrAlreadyExists))

		got, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.OwnerID)
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, record("INV-1", "alice", time.Hour, "bob")))
		require.NoError(t, s.SetValid(ctx, "INV-1", model.ValidStatusValid))

		updated := record("INV-1", "alice", 0, "carol", "dave")
		updated.XML = []byte("<Invoice><ID>INV-1</ID><Note>v2</Note></Invoice>")
		updated.Valid = model.ValidStatusUnvalidated
		updated.CreatedAt = time.Time{}
		updated.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, s.Put(ctx, updated))

		got, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		assert.Contains(t, string(got.XML), "v2")
		assert.Equal(t, []string{"carol", "dave"}, got.SharedWith)
		assert.Equal(t, model.ValidStatusUnvalidated, got.Valid)
		assert.True(t, got.CreatedAt.Equal(base.Add(-time.Hour)), "creation time is kept")
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))
	})

	t.Run("put unknown", func(t *testing.T) {
		err := newStore(t).Put(context.Background(), record("INV-9", "alice", 0))
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, record("INV-1", "alice", 0, "bob")))

		require.NoError(t, s.Delete(ctx, "INV-1"))
		_, err := s.Get(ctx, "INV-1")
		assert.True(t, errors.Is(err, model.ErrNotFound))

		err = s.Delete(ctx, "INV-1")
		assert.True(t, errors.Is(err, model.ErrNotFound))

		// the id is free again
		require.NoError(t, s.Create(ctx, record("INV-1", "carol", 0)))
	})

	t.Run("set valid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, record("INV-1", "alice", 0)))

		require.NoError(t, s.SetValid(ctx, "INV-1", model.ValidStatusInvalid))
		got, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, model.ValidStatusInvalid, got.Valid)
		assert.Equal(t, "<Invoice><ID>INV-1</ID></Invoice>", string(got.XML))

		err = s.SetValid(ctx, "nope", model.ValidStatusValid)
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, record("A-old", "alice", 3*time.Hour)))
		require.NoError(t, s.Create(ctx, record("A-mid", "alice", 2*time.Hour)))
		require.NoError(t, s.Create(ctx, record("A-new", "alice", time.Hour)))
		require.NoError(t, s.Create(ctx, record("B-shared", "bob", 90*time.Minute, "alice")))
		require.NoError(t, s.Create(ctx, record("B-private", "bob", 0)))
		require.NoError(t, s.SetValid(ctx, "A-mid", model.ValidStatusValid))

		tests := []struct {
			name     string
			owner    string
			filter   storage.Filter
			expected []string
		}{
			{"own newest first", "alice", storage.Filter{}, []string{"A-new", "A-mid", "A-old"}},
			{"with shared", "alice", storage.Filter{IncludeShared: true}, []string{"A-new", "B-shared", "A-mid", "A-old"}},
			{"valid only", "alice", storage.Filter{Valid: model.ValidStatusValid}, []string{"A-mid"}},
			{"limit", "alice", storage.Filter{Limit: 2}, []string{"A-new", "A-mid"}},
			{"offset", "alice", storage.Filter{Offset: 1, Limit: 1}, []string{"A-mid"}},
			{"offset past end", "alice", storage.Filter{Offset: 10}, []string{}},
			{"other owner", "bob", storage.Filter{}, []string{"B-private", "B-shared"}},
			{"stranger", "mallory", storage.Filter{IncludeShared: true}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				recs, err := s.List(ctx, tt.owner, tt.filter)
				require.NoError(t, err)

				ids := make([]string, 0, len(recs))
				for _, r := range recs {
					ids = append(ids, r.InvoiceID)
				}
				assert.Equal(t, tt.expected, ids)
			})
		}
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, record("INV-1", "alice", 0, "bob")))

		got, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		got.SharedWith[0] = "mallory"
		got.XML[0] = 'X'

		again, err := s.Get(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, again.SharedWith)
		assert.Equal(t, byte('<'), again.XML[0])
	})
}
