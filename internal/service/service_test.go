package service_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/service"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/storage/memory"
)

const msgMissingContact = "Missing contact method: the supplier or buyer must provide a phone number or email address"

func invoice(id string) *model.Invoice {
	rate := decimal.NewFromInt(10)
	return &model.Invoice{
		InvoiceID: id,
		IssueDate: "2024-04-01",
		DueDate:   "2024-04-30",
		Currency:  "AUD",
		Supplier: model.Party{
			Name:    "Acme",
			Address: &model.Address{Street: "1 Main St", Country: "AU"},
			Phone:   "02 9000 0000",
		},
		Buyer: model.Party{Name: "Globex", Email: "ap@globex.example"},
		Items: []model.LineItem{
			{Name: "Widget", Count: decimal.NewFromInt(2), Cost: decimal.NewFromInt(50), TaxCategory: "S", TaxPercent: &rate},
		},
		TaxRate: &rate,
	}
}

func newService(t *testing.T) (*service.Service, storage.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := service.New(store, rules.NewEngine(rules.DefaultRegistry()), service.Options{
		DefaultSchemas:   []string{rules.PeppolRuleSet},
		BatchConcurrency: 4,
	}, nil)
	return svc, store
}

func TestCreate(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	inv := invoice("INV-1")
	inv.SharedWith = []string{"bob", "alice", "bob"}

	created, err := svc.Create(ctx, "alice", inv)
	require.NoError(t, err)

	assert.NotEmpty(t, created.DocumentID)
	assert.Contains(t, string(created.XML), "<cbc:ID>INV-1</cbc:ID>")
	assert.Equal(t, "110.00", created.Invoice.TotalWithTax.StringFixed(2))
	assert.Equal(t, []string{"bob"}, created.Invoice.SharedWith)
	assert.Equal(t, "alice", created.Invoice.OwnerUserID)
	assert.True(t, inv.TotalWithTax.IsZero(), "caller's invoice is not modified")

	rec, err := store.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.OwnerID)
	assert.Equal(t, model.ValidStatusUnvalidated, rec.Valid)
}

func TestCreate_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, ignore(svc.Create(ctx, "alice", invoice("DUP"))))

	noDue := invoice("X")
	noDue.DueDate = ""

	tests := []struct {
		name   string
		user   string
		inv    *model.Invoice
		target error
	}{
		{"no user", "", invoice("A"), model.ErrInvalidRequest},
		{"nil invoice", "alice", nil, model.ErrInvalidRequest},
		{"blank id", "alice", invoice("  "), model.ErrInvalidRequest},
		{"duplicate id", "carol", invoice("DUP"), model.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.user, tt.inv)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	t.Run("unencodable", func(t *testing.T) {
		_, err := svc.Create(ctx, "alice", noDue)
		var encErr *model.EncodingError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "dueDate", encErr.Field)
	})
}

func TestCreateAndValidate_KeepsInvalidDocument(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	inv := invoice("INV-C")
	inv.Supplier.Phone = ""

	created, result, err := svc.CreateAndValidate(ctx, "alice", inv, nil)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, []string{msgMissingContact}, result.Errors)
	assert.Equal(t, model.ValidStatusInvalid, created.Invoice.Valid)

	rec, err := store.Get(ctx, "INV-C")
	require.NoError(t, err, "invalid invoices are kept for correction")
	assert.Equal(t, model.ValidStatusInvalid, rec.Valid)
}

func TestCreateAndValidate_UnknownSchemaStoresNothing(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, _, err := svc.CreateAndValidate(ctx, "alice", invoice("INV-U"), []string{"ato"})
	var unknown *model.UnknownRuleSetError
	require.True(t, errors.As(err, &unknown))

	_, err = store.Get(ctx, "INV-U")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestGet_Access(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	inv := invoice("INV-1")
	inv.SharedWith = []string{"bob"}
	_, err := svc.Create(ctx, "alice", inv)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "alice", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.InvoiceID)
	assert.Equal(t, "alice", got.OwnerUserID)
	assert.Equal(t, []string{"bob"}, got.SharedWith)
	assert.Equal(t, "110.00", got.TotalWithTax.StringFixed(2))

	_, err = svc.Get(ctx, "bob", "INV-1")
	assert.NoError(t, err)

	_, err = svc.Get(ctx, "mallory", "INV-1")
	assert.True(t, errors.Is(err, model.ErrPermissionDenied))

	_, err = svc.Get(ctx, "alice", "INV-404")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	xml, err := svc.GetXML(ctx, "bob", "INV-1")
	require.NoError(t, err)
	assert.Contains(t, string(xml), "INV-1")
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", invoice("A-1"))
	require.NoError(t, err)
	_, _, err = svc.CreateAndValidate(ctx, "alice", invoice("A-2"), nil)
	require.NoError(t, err)
	shared := invoice("B-1")
	shared.SharedWith = []string{"alice"}
	_, err = svc.Create(ctx, "bob", shared)
	require.NoError(t, err)

	own, err := svc.List(ctx, "alice", storage.Filter{})
	require.NoError(t, err)
	require.Len(t, own, 2)
	for _, s := range own {
		assert.Equal(t, "Globex", s.BuyerName)
		assert.Equal(t, "Acme", s.SupplierName)
		assert.Equal(t, "110.00", s.TotalWithTax.StringFixed(2))
	}

	all, err := svc.List(ctx, "alice", storage.Filter{IncludeShared: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	valid, err := svc.List(ctx, "alice", storage.Filter{Valid: model.ValidStatusValid})
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "A-2", valid[0].InvoiceID)
	assert.Equal(t, model.ValidStatusValid, valid[0].Valid)
}

func TestUpdate(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	inv := invoice("INV-1")
	inv.SharedWith = []string{"bob"}
	_, _, err := svc.CreateAndValidate(ctx, "alice", inv, nil)
	require.NoError(t, err)

	replacement := invoice("")
	replacement.Items = append(replacement.Items, model.LineItem{
		Name: "Delivery", Count: decimal.NewFromInt(1), Cost: decimal.NewFromInt(20), TaxCategory: "S",
	})

	updated, err := svc.Update(ctx, "alice", "INV-1", replacement)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", updated.Invoice.InvoiceID)
	assert.Equal(t, "132.00", updated.Invoice.TotalWithTax.StringFixed(2))

	got, err := svc.Get(ctx, "bob", "INV-1")
	require.NoError(t, err, "shares survive an update")
	assert.Len(t, got.Items, 2)
	assert.Equal(t, model.ValidStatusUnvalidated, got.Valid)

	rec, err := store.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, model.ValidStatusUnvalidated, rec.Valid)

	_, err = svc.Update(ctx, "bob", "INV-1", invoice("INV-1"))
	assert.True(t, errors.Is(err, model.ErrPermissionDenied), "shared users cannot edit")

	_, err = svc.Update(ctx, "alice", "INV-1", invoice("OTHER"))
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))

	_, err = svc.Update(ctx, "alice", "INV-404", invoice("INV-404"))
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	inv := invoice("INV-1")
	inv.SharedWith = []string{"bob"}
	_, err := svc.Create(ctx, "alice", inv)
	require.NoError(t, err)

	err = svc.Delete(ctx, "bob", "INV-1")
	assert.True(t, errors.Is(err, model.ErrPermissionDenied))

	require.NoError(t, svc.Delete(ctx, "alice", "INV-1"))

	_, err = svc.Get(ctx, "alice", "INV-1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestShare(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", invoice("INV-1"))
	require.NoError(t, err)

	users, err := svc.Share(ctx, "alice", "INV-1", []string{" carol ", "bob", "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, users)

	users, err = svc.Share(ctx, "alice", "INV-1", []string{"dave", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "dave"}, users)

	_, err = svc.Share(ctx, "bob", "INV-1", []string{"mallory"})
	assert.True(t, errors.Is(err, model.ErrPermissionDenied), "only the owner can share")

	_, err = svc.Get(ctx, "dave", "INV-1")
	assert.NoError(t, err)
}

func TestValidate_BatchWritesBackStatus(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", invoice("good"))
	require.NoError(t, err)
	bad := invoice("bad")
	bad.TaxRate = nil
	_, err = svc.Create(ctx, "alice", bad)
	require.NoError(t, err)

	batch, err := svc.Validate(ctx, "alice", []string{"good", "bad", "missing"}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Items, 3)

	assert.True(t, batch.Items[0].Valid())
	assert.False(t, batch.Items[1].Valid())
	assert.Equal(t, []string{"Tax rate must be stated explicitly"}, batch.Items[1].Result.Errors)
	assert.True(t, errors.Is(batch.Items[2].Err, model.ErrNotFound))
	assert.False(t, batch.OverallValid)

	rec, err := store.Get(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, model.ValidStatusValid, rec.Valid)

	rec, err = store.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, model.ValidStatusInvalid, rec.Valid)
}

func TestValidate_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "alice", nil, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))

	_, err = svc.Validate(ctx, "", []string{"x"}, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))

	_, err = svc.Validate(ctx, "alice", []string{"x"}, []string{"ato"})
	var unknown *model.UnknownRuleSetError
	assert.True(t, errors.As(err, &unknown))
}

func TestValidateInvoice(t *testing.T) {
	svc, _ := newService(t)

	result, err := svc.ValidateInvoice(context.Background(), invoice("adhoc"), []string{rules.PeppolRuleSet, rules.FairworkRuleSet})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCatalog(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, []string{rules.PeppolRuleSet, rules.FairworkRuleSet}, svc.Catalog().Names())
}

func ignore(_ *service.Encoded, err error) error {
	return err
}
