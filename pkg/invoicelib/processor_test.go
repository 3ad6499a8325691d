package invoicelib_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/pkg/invoicelib"
)

func sampleInvoice() *invoicelib.Invoice {
	rate := decimal.NewFromInt(10)
	return &invoicelib.Invoice{
		InvoiceID: "INV-1",
		IssueDate: "2024-04-01",
		DueDate:   "2024-04-30",
		Currency:  "AUD",
		Supplier: invoicelib.Party{
			Name:    "Acme",
			Address: &invoicelib.Address{Street: "1 Main St", Country: "AU"},
			Email:   "billing@acme.example",
		},
		Buyer: invoicelib.Party{Name: "Globex", Email: "ap@globex.example"},
		Items: []invoicelib.LineItem{
			{Name: "Labour", Count: decimal.RequireFromString("7.5"), Cost: decimal.NewFromInt(80), TaxCategory: "S"},
		},
		TaxRate: &rate,
	}
}

func TestDefaultOptions(t *testing.T) {
	assert.Equal(t, 2, invoicelib.DefaultCodecOptions().Indent)
	assert.Equal(t, []string{invoicelib.SchemaPeppol}, invoicelib.DefaultValidatorOptions().DefaultSchemas)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := invoicelib.NewCodec()

	xml, err := codec.Encode(sampleInvoice())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xml, []byte("<?xml")))

	inv, err := codec.Decode(bytes.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "INV-1", inv.InvoiceID)
	assert.Equal(t, "Acme", inv.Supplier.Name)
	assert.Equal(t, "660.00", inv.TotalWithTax.StringFixed(2))
}

func TestCodecCompact(t *testing.T) {
	codec := invoicelib.NewCodecWithOptions(invoicelib.CodecOptions{Indent: 0})

	xml, err := codec.Encode(sampleInvoice())
	require.NoError(t, err)
	assert.NotContains(t, string(xml), "\n  <")
}

func TestCodecErrors(t *testing.T) {
	codec := invoicelib.NewCodec()

	inv := sampleInvoice()
	inv.Items = nil
	_, err := codec.Encode(inv)
	var encErr *invoicelib.EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "items", encErr.Field)

	_, err = codec.Decode(strings.NewReader("not xml"))
	var decErr *invoicelib.DecodeError
	assert.True(t, errors.As(err, &decErr))
}

func TestCodecDecodeDefaults(t *testing.T) {
	inv, err := invoicelib.NewCodec().Decode(strings.NewReader(`<Invoice><ID>X</ID></Invoice>`))
	require.NoError(t, err)

	assert.Equal(t, invoicelib.DefaultDueDate, inv.DueDate)
	assert.Equal(t, invoicelib.DefaultCurrency, inv.Currency)
}

func TestValidator(t *testing.T) {
	validator := invoicelib.NewValidator()
	ctx := context.Background()

	result, err := validator.Validate(ctx, sampleInvoice())
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = validator.Validate(ctx, sampleInvoice(), invoicelib.SchemaPeppol, invoicelib.SchemaFairwork)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	inv := sampleInvoice()
	inv.TaxRate = nil
	result, err = validator.Validate(ctx, inv)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Tax rate must be stated explicitly"}, result.Errors)

	_, err = validator.Validate(ctx, sampleInvoice(), "ato")
	var unknown *invoicelib.UnknownRuleSetError
	assert.True(t, errors.As(err, &unknown))
}

func TestValidatorXML(t *testing.T) {
	xml, err := invoicelib.NewCodec().Encode(sampleInvoice())
	require.NoError(t, err)

	validator := invoicelib.NewValidator()
	result, err := validator.ValidateXML(context.Background(), bytes.NewReader(xml))
	require.NoError(t, err)
	assert.True(t, result.Valid, "%v", result.Errors)

	tampered := strings.Replace(string(xml), ">660.00</cbc:PayableAmount>", ">1.00</cbc:PayableAmount>", 1)
	tampered = strings.Replace(tampered, ">660.00</cbc:TaxInclusiveAmount>", ">1.00</cbc:TaxInclusiveAmount>", 1)
	result, err = validator.ValidateXML(context.Background(), strings.NewReader(tampered))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Declared total 1.00 does not match the line items (expected 660.00)"}, result.Errors)

	_, err = validator.ValidateXML(context.Background(), strings.NewReader("<Invoice"))
	assert.Error(t, err)
}

func TestValidatorSchemas(t *testing.T) {
	schemas := invoicelib.NewValidator().Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, invoicelib.SchemaPeppol, schemas[0].Name)
	assert.Equal(t, invoicelib.SchemaFairwork, schemas[1].Name)
}

func BenchmarkValidate(b *testing.B) {
	validator := invoicelib.NewValidator()
	inv := sampleInvoice()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = validator.Validate(ctx, inv, invoicelib.SchemaPeppol, invoicelib.SchemaFairwork)
	}
}
