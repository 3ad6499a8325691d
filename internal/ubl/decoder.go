package ubl

import (
	"bytes"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-engine/internal/decimal"
	"github.com/rezonia/invoice-engine/internal/model"
)

var (
	defaultQuantity = money.MustFromString(DefaultQuantity)
	defaultAmount   = money.MustFromString(DefaultAmount)
)

// Decoder reads UBL XML back into invoices. Missing fields are defaulted,
// never reported; only unparsable input fails.
type Decoder struct{}

// NewDecoder creates a new decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Parse reads data into an XML tree
func (d *Decoder) Parse(data []byte) (*etree.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, model.NewDecodeError("empty document", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, model.NewDecodeError("malformed XML", err)
	}
	if doc.Root() == nil {
		return nil, model.NewDecodeError("no root element", nil)
	}
	if len(doc.ChildElements()) > 1 {
		return nil, model.NewDecodeError("multiple root elements", nil)
	}
	return doc, nil
}

// Decode parses data and returns the full detail projection
func (d *Decoder) Decode(data []byte) (*model.Invoice, error) {
	doc, err := d.Parse(data)
	if err != nil {
		return nil, err
	}
	return d.DecodeDocument(doc), nil
}

// DecodeSummary parses data and returns the list projection
func (d *Decoder) DecodeSummary(data []byte) (*model.Summary, error) {
	doc, err := d.Parse(data)
	if err != nil {
		return nil, err
	}
	summary := d.DecodeDocumentSummary(doc)
	return &summary, nil
}

// DecodeDocumentSummary reads only the fields a list view needs
func (d *Decoder) DecodeDocumentSummary(doc *etree.Document) model.Summary {
	root := doc.Root()
	return model.Summary{
		InvoiceID:    selID.text(root, ""),
		IssueDate:    selIssueDate.text(root, DefaultDate),
		DueDate:      selDueDate.text(root, DefaultDate),
		Currency:     selCurrency.text(root, DefaultCurrency),
		BuyerName:    selPartyName.text(selCustomerParty.find(root), ""),
		SupplierName: selPartyName.text(selSupplierParty.find(root), ""),
		TotalWithTax: decodeTotalWithTax(root),
	}
}

// DecodeDocument reads every supported field from an already parsed tree
func (d *Decoder) DecodeDocument(doc *etree.Document) *model.Invoice {
	root := doc.Root()

	inv := &model.Invoice{
		InvoiceID: selID.text(root, ""),
		IssueDate: selIssueDate.text(root, DefaultDate),
		DueDate:   selDueDate.text(root, DefaultDate),
		Currency:  selCurrency.text(root, DefaultCurrency),
		Note:      selNote.text(root, ""),
		Supplier:  decodeParty(selSupplierParty.find(root)),
		Buyer:     decodeParty(selCustomerParty.find(root)),
		TaxRate:   decodeOptionalDecimal(selTaxPercent.find(root)),
		Payment:   decodePayment(root),
	}

	for _, line := range selInvoiceLine.findAll(root) {
		inv.Items = append(inv.Items, decodeLine(line))
	}

	inv.Subtotal = decodeAmount(selLineExtensionTotal, root)
	inv.TaxTotal = decodeAmount(selTaxAmount, root)
	inv.TotalWithTax = decodeTotalWithTax(root)

	return inv
}

// DocumentIDOf returns the UUID of an encoded document, or "" when absent
func DocumentIDOf(doc *etree.Document) string {
	if doc == nil {
		return ""
	}
	return selUUID.text(doc.Root(), "")
}

func decodeParty(el *etree.Element) model.Party {
	if el == nil {
		return model.Party{}
	}

	p := model.Party{
		Name:  selPartyName.text(el, ""),
		Phone: selTelephone.text(el, ""),
		Email: selEmail.text(el, ""),
	}

	if addr := selPostalAddress.find(el); addr != nil {
		p.Address = &model.Address{
			Street:  selStreetName.text(addr, ""),
			Country: selCountryCode.text(addr, DefaultCountry),
		}
	}

	return p
}

func decodePayment(root *etree.Element) *model.PaymentDetails {
	p := &model.PaymentDetails{
		MeansCode:     selPaymentMeansCode.text(root, ""),
		AccountNumber: selPayeeAccountID.text(root, ""),
		AccountName:   selPayeeAccountName.text(root, ""),
		BranchID:      selPayeeBranchID.text(root, ""),
		Terms:         selPaymentTerms.text(root, ""),
	}
	if p.IsZero() {
		return nil
	}
	return p
}

// decodeLine reads one invoice line; lines are independent of each other
func decodeLine(el *etree.Element) model.LineItem {
	item := model.LineItem{
		Name:        selLineItemName.text(el, ""),
		Count:       money.FromStringOr(selLineQuantity.text(el, DefaultQuantity), defaultQuantity),
		Cost:        decodeAmount(selLinePrice, el),
		TaxCategory: selLineTaxCategory.text(el, ""),
		TaxPercent:  decodeOptionalDecimal(selLineTaxPercent.find(el)),
	}

	if price := selLinePrice.find(el); price != nil {
		item.Currency = price.SelectAttrValue("currencyID", "")
	}

	return item
}

func decodeAmount(s selector, el *etree.Element) decimal.Decimal {
	return money.FromStringOr(s.text(el, DefaultAmount), defaultAmount)
}

func decodeTotalWithTax(root *etree.Element) decimal.Decimal {
	if selTaxInclusiveTotal.find(root) != nil {
		return decodeAmount(selTaxInclusiveTotal, root)
	}
	return decodeAmount(selPayableAmountTotal, root)
}

func decodeOptionalDecimal(el *etree.Element) *decimal.Decimal {
	if el == nil {
		return nil
	}
	v, err := money.FromString(trimmedText(el))
	if err != nil {
		return nil
	}
	return &v
}

// Totals are the monetary totals a document declares
type Totals struct {
	LineExtension decimal.Decimal
	Tax           decimal.Decimal
	TaxInclusive  decimal.Decimal
}

// TotalsOf reads the declared totals of doc, defaulting absent amounts to zero
func TotalsOf(doc *etree.Document) Totals {
	if doc == nil {
		return Totals{}
	}
	root := doc.Root()
	return Totals{
		LineExtension: decodeAmount(selLineExtensionTotal, root),
		Tax:           decodeAmount(selTaxAmount, root),
		TaxInclusive:  decodeTotalWithTax(root),
	}
}
