package model_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/internal/model"
)

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestInvoice_CalculateTotals(t *testing.T) {
	inv := model.Invoice{
		Items: []model.LineItem{
			{Name: "Consulting", Count: decimal.NewFromInt(2), Cost: decimal.NewFromInt(50)},
		},
		TaxRate: rate("10"),
	}

	inv.CalculateTotals()

	assert.Equal(t, "100.00", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", inv.TaxTotal.StringFixed(2))
	assert.Equal(t, "110.00", inv.TotalWithTax.StringFixed(2))
}

func TestInvoice_CalculateTotals_RoundsSubtotal(t *testing.T) {
	inv := model.Invoice{
		Items: []model.LineItem{
			{Name: "A", Count: decimal.RequireFromString("3"), Cost: decimal.RequireFromString("0.333")},
			{Name: "B", Count: decimal.RequireFromString("1.5"), Cost: decimal.RequireFromString("2.005")},
		},
		TaxRate: rate("12.5"),
	}

	inv.CalculateTotals()

	// 0.999 + 3.0075 = 4.0065 -> 4.01
	assert.True(t, inv.Subtotal.Equal(decimal.RequireFromString("4.01")), inv.Subtotal.String())
	// 4.01 * 12.5% = 0.50125 -> 0.50
	assert.True(t, inv.TaxTotal.Equal(decimal.RequireFromString("0.5")), inv.TaxTotal.String())
	assert.True(t, inv.TotalWithTax.Equal(decimal.RequireFromString("4.51")), inv.TotalWithTax.String())
}

func TestInvoice_CalculateTotals_RateRange(t *testing.T) {
	items := []model.LineItem{
		{Name: "A", Count: decimal.NewFromInt(7), Cost: decimal.RequireFromString("13.37")},
		{Name: "B", Count: decimal.RequireFromString("0.25"), Cost: decimal.RequireFromString("99.99")},
	}

	for r := 0; r <= 100; r += 5 {
		t.Run(fmt.Sprintf("rate_%d", r), func(t *testing.T) {
			inv := model.Invoice{Items: items, TaxRate: rate(fmt.Sprint(r))}
			inv.CalculateTotals()

			expectedSub := decimal.NewFromInt(7).Mul(decimal.RequireFromString("13.37")).
				Add(decimal.RequireFromString("0.25").Mul(decimal.RequireFromString("99.99"))).Round(2)
			expectedTax := expectedSub.Mul(decimal.NewFromInt(int64(r))).Div(decimal.NewFromInt(100)).Round(2)

			assert.True(t, inv.Subtotal.Equal(expectedSub))
			assert.True(t, inv.TaxTotal.Equal(expectedTax))
			assert.True(t, inv.TotalWithTax.Equal(inv.Subtotal.Add(inv.TaxTotal)))
		})
	}
}

func TestInvoice_CalculateTotals_NoTaxRate(t *testing.T) {
	inv := model.Invoice{
		Items: []model.LineItem{{Name: "A", Count: decimal.NewFromInt(1), Cost: decimal.NewFromInt(10)}},
	}

	inv.CalculateTotals()

	assert.True(t, inv.TaxTotal.IsZero())
	assert.True(t, inv.TotalWithTax.Equal(decimal.NewFromInt(10)))
}

func TestParty_HasContact(t *testing.T) {
	assert.False(t, model.Party{Name: "X"}.HasContact())
	assert.True(t, model.Party{Phone: "0400000000"}.HasContact())
	assert.True(t, model.Party{Email: "a@b.c"}.HasContact())
}

func TestInvoice_IsSharedWith(t *testing.T) {
	inv := model.Invoice{
		OwnerUserID: "owner",
		SharedWith:  model.NormalizeSharedWith("owner", []string{"zed", "amy", "owner", "amy", ""}),
	}

	assert.Equal(t, []string{"amy", "zed"}, inv.SharedWith)
	assert.True(t, inv.IsSharedWith("owner"))
	assert.True(t, inv.IsSharedWith("amy"))
	assert.True(t, inv.IsSharedWith("zed"))
	assert.False(t, inv.IsSharedWith("bob"))
}

func TestInvoice_Summary(t *testing.T) {
	inv := model.Invoice{
		InvoiceID: "INV-1",
		IssueDate: "2024-01-01",
		DueDate:   "2024-02-01",
		Currency:  "AUD",
		Buyer:     model.Party{Name: "Buyer"},
		Supplier:  model.Party{Name: "Supplier"},
		Valid:     model.ValidStatusValid,
	}

	s := inv.Summary()
	assert.Equal(t, "INV-1", s.InvoiceID)
	assert.Equal(t, "Buyer", s.BuyerName)
	assert.Equal(t, "Supplier", s.SupplierName)
	assert.Equal(t, model.ValidStatusValid, s.Valid)
}

func TestPaymentDetails_IsZero(t *testing.T) {
	var p *model.PaymentDetails
	assert.True(t, p.IsZero())
	assert.True(t, (&model.PaymentDetails{}).IsZero())
	assert.False(t, (&model.PaymentDetails{BranchID: "062-000"}).IsZero())
}

func TestValidStatusOf(t *testing.T) {
	assert.Equal(t, model.ValidStatusValid, model.ValidStatusOf(true))
	assert.Equal(t, model.ValidStatusInvalid, model.ValidStatusOf(false))
}

func TestEncodingError(t *testing.T) {
	err := model.NewEncodingError("dueDate", "required")

	require.Contains(t, err.Error(), "dueDate")
	require.Contains(t, err.Error(), "required")
}

func TestDecodeError_WithCause(t *testing.T) {
	cause := assert.AnError
	err := model.NewDecodeError("malformed XML", cause)

	require.Contains(t, err.Error(), "malformed XML")
	require.ErrorIs(t, err, cause)
}

func TestUnknownRuleSetError(t *testing.T) {
	err := model.NewUnknownRuleSetError("ato", []string{"peppol", "fairwork"})

	require.Contains(t, err.Error(), `"ato"`)
	require.Contains(t, err.Error(), "peppol, fairwork")

	var target *model.UnknownRuleSetError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
	assert.Equal(t, "ato", target.Name)
}
