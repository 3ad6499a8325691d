package rules

import (
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	money "github.com/rezonia/invoice-engine/internal/decimal"
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// PeppolRuleSet is the registry name of the Peppol interoperability profile
const PeppolRuleSet = "peppol"

const dateLayout = "2006-01-02"

// Shared by contact-any and supplier-contact; reported once when both fail
const msgMissingContact = "Missing contact method: the supplier or buyer must provide a phone number or email address"

// Peppol returns the Peppol A-NZ interoperability rules
func Peppol() *RuleSet {
	return &RuleSet{
		Name:        PeppolRuleSet,
		DisplayName: "Peppol A-NZ",
		Description: "Peppol BIS Billing 3.0 interoperability rules for Australia and New Zealand",
		Rules: []Rule{
			{
				ID:       "contact-any",
				Severity: model.SeverityError,
				Message:  msgMissingContact,
				Check: func(in *Input) (bool, []any) {
					inv := in.Invoice
					return inv.Buyer.HasContact() || inv.Supplier.HasContact(), nil
				},
			},
			{
				ID:       "supplier-contact",
				Severity: model.SeverityError,
				Message:  msgMissingContact,
				Check: func(in *Input) (bool, []any) {
					return in.Invoice.Supplier.HasContact(), nil
				},
			},
			{
				ID:       "buyer-contact",
				Severity: model.SeverityWarning,
				Message:  "Buyer has no phone number or email address",
				Check: func(in *Input) (bool, []any) {
					return in.Invoice.Buyer.HasContact(), nil
				},
			},
			{
				ID:       "tax-rate-explicit",
				Severity: model.SeverityError,
				Message:  "Tax rate must be stated explicitly",
				Check: func(in *Input) (bool, []any) {
					return in.Invoice.TaxRate != nil, nil
				},
			},
			{
				ID:       "currency-code",
				Severity: model.SeverityError,
				Message:  "Currency %q is not a valid ISO 4217 code",
				Check: func(in *Input) (bool, []any) {
					if isCurrencyCode(in.Invoice.Currency) {
						return pass()
					}
					return fail(in.Invoice.Currency)
				},
			},
			{
				ID:       "line-currency",
				Severity: model.SeverityError,
				Message:  "Line %d is priced in %s but the invoice currency is %s",
				Check: func(in *Input) (bool, []any) {
					inv := in.Invoice
					for i, item := range inv.Items {
						if item.Currency != "" && item.Currency != inv.Currency {
							return fail(i+1, item.Currency, inv.Currency)
						}
					}
					return pass()
				},
			},
			{
				ID:       "line-quantity",
				Severity: model.SeverityError,
				Message:  "Line %d quantity must be greater than zero",
				Check: func(in *Input) (bool, []any) {
					for i, item := range in.Invoice.Items {
						if !money.IsPositive(item.Count) {
							return fail(i + 1)
						}
					}
					return pass()
				},
			},
			{
				ID:       "line-price",
				Severity: model.SeverityError,
				Message:  "Line %d unit price must not be negative",
				Check: func(in *Input) (bool, []any) {
					for i, item := range in.Invoice.Items {
						if !money.IsNonNegative(item.Cost) {
							return fail(i + 1)
						}
					}
					return pass()
				},
			},
			{
				ID:       "issue-date-format",
				Severity: model.SeverityError,
				Message:  "Issue date %q is not a valid date (YYYY-MM-DD)",
				Check: func(in *Input) (bool, []any) {
					if _, err := time.Parse(dateLayout, in.Invoice.IssueDate); err != nil {
						return fail(in.Invoice.IssueDate)
					}
					return pass()
				},
			},
			{
				ID:       "due-date-order",
				Severity: model.SeverityError,
				Message:  "Due date %s is before issue date %s",
				Check: func(in *Input) (bool, []any) {
					issued, err := time.Parse(dateLayout, in.Invoice.IssueDate)
					if err != nil {
						return pass()
					}
					due, err := time.Parse(dateLayout, in.Invoice.DueDate)
					if err != nil {
						return pass()
					}
					if due.Before(issued) {
						return fail(in.Invoice.DueDate, in.Invoice.IssueDate)
					}
					return pass()
				},
			},
			{
				ID:       "country-code",
				Severity: model.SeverityError,
				Message:  "%s country %q is not a valid ISO 3166-1 code",
				Check: func(in *Input) (bool, []any) {
					inv := in.Invoice
					if c := countryOf(inv.Supplier); c != "" && !isCountryCode(c) {
						return fail("Supplier", c)
					}
					if c := countryOf(inv.Buyer); c != "" && !isCountryCode(c) {
						return fail("Buyer", c)
					}
					return pass()
				},
			},
			{
				ID:          "totals-consistent",
				Severity:    model.SeverityError,
				Message:     "Declared total %s does not match the line items (expected %s)",
				RequiresXML: true,
				Check: func(in *Input) (bool, []any) {
					declared := ubl.TotalsOf(in.XML)
					expected := *in.Invoice
					expected.CalculateTotals()

					if declared.LineExtension.Equal(expected.Subtotal) &&
						declared.Tax.Equal(expected.TaxTotal) &&
						declared.TaxInclusive.Equal(expected.TotalWithTax) {
						return pass()
					}
					return fail(money.FormatAmount(declared.TaxInclusive), money.FormatAmount(expected.TotalWithTax))
				},
			},
			{
				ID:          "customization-id",
				Severity:    model.SeverityError,
				Message:     "Document is missing the Peppol customization identifier",
				RequiresXML: true,
				Check: func(in *Input) (bool, []any) {
					return ubl.CustomizationIDOf(in.XML) != "", nil
				},
			},
			{
				ID:          "line-tax-category",
				Severity:    model.SeverityWarning,
				Message:     "Line %d has no classified tax category",
				RequiresXML: true,
				Check: func(in *Input) (bool, []any) {
					for i, line := range ubl.InvoiceLines(in.XML) {
						if !ubl.HasElement(line, "cac:Item/cac:ClassifiedTaxCategory", "Item/ClassifiedTaxCategory") {
							return fail(i + 1)
						}
					}
					return pass()
				},
			},
			{
				ID:       "supplier-country",
				Severity: model.SeverityWarning,
				Message:  "Supplier country is missing; Peppol routing expects one",
				Check: func(in *Input) (bool, []any) {
					return countryOf(in.Invoice.Supplier) != "", nil
				},
			},
		},
	}
}

func countryOf(p model.Party) string {
	if p.Address == nil {
		return ""
	}
	return p.Address.Country
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 || code != strings.ToUpper(code) {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

// isCountryCode accepts ISO 3166-1 alpha-2 and alpha-3 region codes
func isCountryCode(code string) bool {
	if code != strings.ToUpper(code) {
		return false
	}
	region, err := language.ParseRegion(code)
	return err == nil && region.IsCountry()
}
