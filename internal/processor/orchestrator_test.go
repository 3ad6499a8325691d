package processor_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/processor"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/storage/memory"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

func invoice(id string) *model.Invoice {
	rate := decimal.NewFromInt(10)
	return &model.Invoice{
		InvoiceID: id,
		IssueDate: "2024-02-01",
		DueDate:   "2024-03-01",
		Currency:  "AUD",
		Supplier: model.Party{
			Name:    "Acme",
			Address: &model.Address{Street: "1 Main St", Country: "AU"},
			Email:   "ar@acme.example",
		},
		Buyer: model.Party{Name: "Globex", Phone: "0400 000 000"},
		Items: []model.LineItem{
			{Name: "Widget", Count: decimal.NewFromInt(2), Cost: decimal.NewFromInt(50), TaxCategory: "S", TaxPercent: &rate},
		},
		TaxRate: &rate,
	}
}

func seed(t *testing.T, store storage.Store, owner string, invs ...*model.Invoice) {
	t.Helper()
	enc := ubl.NewEncoder()
	for _, inv := range invs {
		out, err := enc.Encode(inv)
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), &storage.Record{
			InvoiceID: inv.InvoiceID,
			OwnerID:   owner,
			XML:       out.XML,
		}))
	}
}

func newOrchestrator(store processor.Fetcher, opts ...processor.Option) *processor.Orchestrator {
	return processor.NewOrchestrator(store, rules.NewEngine(rules.DefaultRegistry()), opts...)
}

func TestValidateBatch_MissingInvoiceIsolated(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("id1"))

	batch, err := newOrchestrator(store).ValidateBatch(context.Background(), []string{"id1", "id2"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)
	require.Len(t, batch.Items, 2)

	first := batch.Items[0]
	assert.Equal(t, "id1", first.InvoiceID)
	require.NoError(t, first.Err)
	require.NotNil(t, first.Result)
	assert.True(t, first.Result.Valid)
	assert.Empty(t, first.Result.Errors)
	assert.Equal(t, "id1", first.Result.InvoiceID)

	second := batch.Items[1]
	assert.Equal(t, "id2", second.InvoiceID)
	assert.Nil(t, second.Result)
	assert.True(t, errors.Is(second.Err, model.ErrNotFound))

	assert.False(t, batch.OverallValid)
	assert.NotEmpty(t, batch.BatchID)
}

func TestValidateBatch_FailFast(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("id1"))

	batch, err := newOrchestrator(store, processor.WithFailFast(true)).
		ValidateBatch(context.Background(), []string{"id1", "id2"}, []string{rules.PeppolRuleSet})
	require.Error(t, err)
	assert.Nil(t, batch)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestValidateBatch_FailFastAllGood(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("id1"), invoice("id2"))

	batch, err := newOrchestrator(store, processor.WithFailFast(true)).
		ValidateBatch(context.Background(), []string{"id1", "id2"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)
	assert.True(t, batch.OverallValid)
}

func TestValidateBatch_PreservesOrder(t *testing.T) {
	store := memory.NewStore()

	var ids []string
	for i := 0; i < 40; i++ {
		inv := invoice(fmt.Sprintf("INV-%02d", i))
		if i%3 == 0 {
			inv.Supplier.Email = ""
			inv.Buyer.Phone = ""
		}
		seed(t, store, "alice", inv)
		ids = append([]string{inv.InvoiceID}, ids...)
	}

	batch, err := newOrchestrator(store, processor.WithConcurrency(4)).
		ValidateBatch(context.Background(), ids, []string{rules.PeppolRuleSet})
	require.NoError(t, err)
	require.Len(t, batch.Items, len(ids))

	for i, item := range batch.Items {
		assert.Equal(t, ids[i], item.InvoiceID)
		require.NoError(t, item.Err)

		var n int
		_, _ = fmt.Sscanf(item.InvoiceID, "INV-%d", &n)
		assert.Equal(t, n%3 != 0, item.Result.Valid, item.InvoiceID)
	}
	assert.False(t, batch.OverallValid)
}

func TestValidateBatch_OverallValid(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("a"), invoice("b"))

	batch, err := newOrchestrator(store).ValidateBatch(context.Background(), []string{"a", "b"}, []string{rules.PeppolRuleSet, rules.FairworkRuleSet})
	require.NoError(t, err)
	assert.True(t, batch.OverallValid)

	empty, err := newOrchestrator(store).ValidateBatch(context.Background(), nil, []string{rules.PeppolRuleSet})
	require.NoError(t, err)
	assert.True(t, empty.OverallValid)
	assert.Empty(t, empty.Items)
}

func TestValidateBatch_UnknownRuleSet(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("a"))

	_, err := newOrchestrator(store).ValidateBatch(context.Background(), []string{"a"}, []string{"ato"})

	var unknown *model.UnknownRuleSetError
	require.True(t, errors.As(err, &unknown))
}

func TestValidateBatch_UndecodableRecord(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("good"))
	require.NoError(t, store.Create(context.Background(), &storage.Record{
		InvoiceID: "broken",
		OwnerID:   "alice",
		XML:       []byte("<Invoice><ID>broken"),
	}))

	batch, err := newOrchestrator(store).ValidateBatch(context.Background(), []string{"broken", "good"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)

	var decErr *model.DecodeError
	assert.True(t, errors.As(batch.Items[0].Err, &decErr))
	assert.True(t, batch.Items[1].Valid())
}

func TestValidateBatchFor_Permissions(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("mine"))
	seed(t, store, "bob", invoice("theirs"))

	out, err := ubl.NewEncoder().Encode(invoice("shared"))
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &storage.Record{
		InvoiceID:  "shared",
		OwnerID:    "bob",
		SharedWith: []string{"alice"},
		XML:        out.XML,
	}))

	batch, err := newOrchestrator(store).ValidateBatchFor(context.Background(), "alice",
		[]string{"mine", "theirs", "shared"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)

	assert.True(t, batch.Items[0].Valid())
	assert.True(t, errors.Is(batch.Items[1].Err, model.ErrPermissionDenied))
	assert.True(t, batch.Items[2].Valid())
	assert.False(t, batch.OverallValid)

	_, err = newOrchestrator(store).ValidateBatchFor(context.Background(), "", []string{"mine"}, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))
}

func TestValidateBatch_ResultHook(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("a"), invoice("b"))

	var mu sync.Mutex
	seen := map[string]bool{}
	hook := func(_ context.Context, rec *storage.Record, result *model.ValidationResult) error {
		mu.Lock()
		defer mu.Unlock()
		seen[rec.InvoiceID] = result.Valid
		if rec.InvoiceID == "b" {
			return errors.New("write-back failed")
		}
		return nil
	}

	batch, err := newOrchestrator(store, processor.WithResultHook(hook)).
		ValidateBatch(context.Background(), []string{"a", "b", "missing"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
	assert.NoError(t, batch.Items[1].Err, "hook failures do not fail the item")
}

// blockingStore waits for cancellation before answering
type blockingStore struct {
	inner    processor.Fetcher
	block    map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *blockingStore) Get(ctx context.Context, id string) (*storage.Record, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.block[id] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	return s.inner.Get(ctx, id)
}

func TestValidateBatch_ItemTimeout(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "alice", invoice("fast"))
	slow := &blockingStore{inner: store, block: map[string]bool{"slow": true}}

	batch, err := newOrchestrator(slow, processor.WithItemTimeout(20*time.Millisecond)).
		ValidateBatch(context.Background(), []string{"slow", "fast"}, []string{rules.PeppolRuleSet})
	require.NoError(t, err)

	assert.True(t, errors.Is(batch.Items[0].Err, context.DeadlineExceeded))
	assert.True(t, batch.Items[1].Valid())
}

func TestValidateBatch_Cancelled(t *testing.T) {
	store := memory.NewStore()
	slow := &blockingStore{inner: store, block: map[string]bool{"a": true, "b": true}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := newOrchestrator(slow).ValidateBatch(ctx, []string{"a", "b"}, []string{rules.PeppolRuleSet})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidateBatch_BoundedConcurrency(t *testing.T) {
	store := memory.NewStore()
	var ids []string
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("c-%d", i)
		seed(t, store, "alice", invoice(id))
		ids = append(ids, id)
	}
	counting := &blockingStore{inner: store}

	_, err := newOrchestrator(counting, processor.WithConcurrency(3)).
		ValidateBatch(context.Background(), ids, []string{rules.PeppolRuleSet})
	require.NoError(t, err)

	assert.LessOrEqual(t, counting.peak.Load(), int32(3))
	assert.Positive(t, counting.peak.Load())
}

func BenchmarkValidateBatch(b *testing.B) {
	store := memory.NewStore()
	enc := ubl.NewEncoder()
	var ids []string
	for i := 0; i < 50; i++ {
		inv := invoice(fmt.Sprintf("B-%d", i))
		out, _ := enc.Encode(inv)
		_ = store.Create(context.Background(), &storage.Record{InvoiceID: inv.InvoiceID, OwnerID: "alice", XML: out.XML})
		ids = append(ids, inv.InvoiceID)
	}
	o := newOrchestrator(store)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = o.ValidateBatch(ctx, ids, []string{rules.PeppolRuleSet})
	}
}
