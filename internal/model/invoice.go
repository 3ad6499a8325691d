package model

import (
	"sort"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-engine/internal/decimal"
)

// ValidStatus is the cached outcome of the last validation run
type ValidStatus string

const (
	ValidStatusUnvalidated ValidStatus = "unvalidated"
	ValidStatusValid       ValidStatus = "valid"
	ValidStatusInvalid     ValidStatus = "invalid"
)

// ValidStatusOf maps a validation outcome to its cached status
func ValidStatusOf(valid bool) ValidStatus {
	if valid {
		return ValidStatusValid
	}
	return ValidStatusInvalid
}

// Invoice is the canonical structured invoice document
type Invoice struct {
	// Business identifier chosen by the owner
	InvoiceID string `json:"invoiceId"`
	IssueDate string `json:"issueDate"`
	DueDate   string `json:"dueDate"`
	Currency  string `json:"currency"`
	Note      string `json:"note,omitempty"`

	Buyer    Party `json:"buyer"`
	Supplier Party `json:"supplier"`

	// Ordered; a line is addressed only by its position
	Items []LineItem `json:"items"`

	// Percent; nil means the rate was never given
	TaxRate *decimal.Decimal `json:"taxRate,omitempty"`

	// Derived by CalculateTotals
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"taxTotal"`
	TotalWithTax decimal.Decimal `json:"totalWithTax"`

	Payment *PaymentDetails `json:"payment,omitempty"`

	OwnerUserID string      `json:"ownerUserId,omitempty"`
	SharedWith  []string    `json:"sharedWith,omitempty"`
	Valid       ValidStatus `json:"valid,omitempty"`
}

// Party is a buyer or supplier
type Party struct {
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
}

// HasContact reports whether the party can be reached by phone or email
func (p Party) HasContact() bool {
	return p.Phone != "" || p.Email != ""
}

// Address is a postal address
type Address struct {
	Street  string `json:"street,omitempty"`
	Country string `json:"country,omitempty"` // ISO 3166-1 alpha-2
}

// LineItem is one billable entry
type LineItem struct {
	Name        string           `json:"name"`
	Count       decimal.Decimal  `json:"count"`
	Cost        decimal.Decimal  `json:"cost"`               // per unit
	Currency    string           `json:"currency,omitempty"` // blank inherits the document currency
	TaxCategory string           `json:"taxCategory,omitempty"`
	TaxPercent  *decimal.Decimal `json:"taxPercent,omitempty"`
}

// Amount returns count * cost, unrounded
func (li LineItem) Amount() decimal.Decimal {
	return li.Count.Mul(li.Cost)
}

// PaymentDetails holds the payee banking fields
type PaymentDetails struct {
	MeansCode     string `json:"meansCode,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	BranchID      string `json:"branchId,omitempty"` // BSB for AU accounts
	Terms         string `json:"terms,omitempty"`
}

// IsZero reports whether no payment field is set
func (p *PaymentDetails) IsZero() bool {
	return p == nil || *p == PaymentDetails{}
}

// Summary is the list projection of an invoice
type Summary struct {
	InvoiceID    string          `json:"invoiceId"`
	IssueDate    string          `json:"issueDate"`
	DueDate      string          `json:"dueDate"`
	Currency     string          `json:"currency"`
	BuyerName    string          `json:"buyerName"`
	SupplierName string          `json:"supplierName"`
	TotalWithTax decimal.Decimal `json:"totalWithTax"`
	Valid        ValidStatus     `json:"valid,omitempty"`
}

// EffectiveTaxRate returns the tax rate, zero when not given
func (inv *Invoice) EffectiveTaxRate() decimal.Decimal {
	if inv.TaxRate == nil {
		return decimal.Zero
	}
	return *inv.TaxRate
}

// CalculateTotals derives subtotal, tax total and total with tax from the lines
func (inv *Invoice) CalculateTotals() {
	amounts := make([]decimal.Decimal, 0, len(inv.Items))
	for _, item := range inv.Items {
		amounts = append(amounts, item.Amount())
	}

	inv.Subtotal = money.Round2(money.Sum(amounts))
	inv.TaxTotal = money.CalculateTax(inv.Subtotal, inv.EffectiveTaxRate())
	inv.TotalWithTax = inv.Subtotal.Add(inv.TaxTotal)
}

// Summary projects the invoice for list views
func (inv *Invoice) Summary() Summary {
	return Summary{
		InvoiceID:    inv.InvoiceID,
		IssueDate:    inv.IssueDate,
		DueDate:      inv.DueDate,
		Currency:     inv.Currency,
		BuyerName:    inv.Buyer.Name,
		SupplierName: inv.Supplier.Name,
		TotalWithTax: inv.TotalWithTax,
		Valid:        inv.Valid,
	}
}

// IsSharedWith reports whether userID is the owner or in the share set
func (inv *Invoice) IsSharedWith(userID string) bool {
	if userID == inv.OwnerUserID {
		return true
	}
	i := sort.SearchStrings(inv.SharedWith, userID)
	return i < len(inv.SharedWith) && inv.SharedWith[i] == userID
}

// NormalizeSharedWith sorts the share set, dropping duplicates, blanks and the owner
func NormalizeSharedWith(owner string, users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u == "" || u == owner {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
