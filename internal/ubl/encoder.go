package ubl

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-engine/internal/decimal"
	"github.com/rezonia/invoice-engine/internal/model"
)

// Encoded is the wire form of an invoice
type Encoded struct {
	// DocumentID is generated per encode and is distinct from the invoice id
	DocumentID string
	XML        []byte
}

// Encoder renders invoices as UBL XML
type Encoder struct {
	newID  func() string
	indent int
}

// EncoderOption configures the encoder
type EncoderOption func(*Encoder)

// WithIDGenerator overrides the document identifier generator
func WithIDGenerator(fn func() string) EncoderOption {
	return func(e *Encoder) {
		e.newID = fn
	}
}

// WithIndent sets the number of spaces per nesting level; 0 disables indentation
func WithIndent(spaces int) EncoderOption {
	return func(e *Encoder) {
		e.indent = spaces
	}
}

// NewEncoder creates a new encoder
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{
		newID:  uuid.NewString,
		indent: 2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode renders inv as XML. inv is not modified.
func (e *Encoder) Encode(inv *model.Invoice) (*Encoded, error) {
	doc, id, err := e.Build(inv)
	if err != nil {
		return nil, err
	}

	if e.indent > 0 {
		doc.Indent(e.indent)
	}
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, model.NewEncodingError("xml", err.Error())
	}

	return &Encoded{DocumentID: id, XML: data}, nil
}

// Build renders inv as an XML tree, returning it with its generated document id
func (e *Encoder) Build(inv *model.Invoice) (*etree.Document, string, error) {
	if err := checkEncodable(inv); err != nil {
		return nil, "", err
	}

	// Totals always come from the lines, never from stored values
	calc := *inv
	calc.CalculateTotals()

	id := e.newID()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NamespaceInvoice)
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)

	addText(root, "cbc:UBLVersionID", UBLVersionID)
	addText(root, "cbc:CustomizationID", CustomizationID)
	addText(root, "cbc:ProfileID", ProfileID)
	addText(root, "cbc:ID", calc.InvoiceID)
	addText(root, "cbc:UUID", id)
	addText(root, "cbc:IssueDate", calc.IssueDate)
	addText(root, "cbc:DueDate", calc.DueDate)
	addText(root, "cbc:InvoiceTypeCode", InvoiceTypeCode)
	addOptionalText(root, "cbc:Note", calc.Note)
	addText(root, "cbc:DocumentCurrencyCode", calc.Currency)

	writeParty(root.CreateElement("cac:AccountingSupplierParty"), calc.Supplier)
	writeParty(root.CreateElement("cac:AccountingCustomerParty"), calc.Buyer)

	writePayment(root, calc.Payment)
	writeTaxTotal(root, &calc)
	writeMonetaryTotal(root, &calc)

	for i, item := range calc.Items {
		writeLine(root, i+1, item, calc.Currency)
	}

	return doc, id, nil
}

func checkEncodable(inv *model.Invoice) error {
	switch {
	case inv == nil:
		return model.NewEncodingError("invoice", "invoice is nil")
	case inv.IssueDate == "":
		return model.NewEncodingError("issueDate", "issue date is required")
	case inv.DueDate == "":
		return model.NewEncodingError("dueDate", "due date is required")
	case inv.Currency == "":
		return model.NewEncodingError("currency", "currency is required")
	case len(inv.Items) == 0:
		return model.NewEncodingError("items", "at least one line item is required")
	}
	return nil
}

func writeParty(parent *etree.Element, p model.Party) {
	party := parent.CreateElement("cac:Party")
	if p.Name != "" {
		addText(party.CreateElement("cac:PartyName"), "cbc:Name", p.Name)
	}

	if p.Address != nil && (p.Address.Street != "" || p.Address.Country != "") {
		addr := party.CreateElement("cac:PostalAddress")
		addOptionalText(addr, "cbc:StreetName", p.Address.Street)
		if p.Address.Country != "" {
			addText(addr.CreateElement("cac:Country"), "cbc:IdentificationCode", p.Address.Country)
		}
	}

	if p.HasContact() {
		contact := party.CreateElement("cac:Contact")
		addOptionalText(contact, "cbc:Telephone", p.Phone)
		addOptionalText(contact, "cbc:ElectronicMail", p.Email)
	}
}

func writePayment(root *etree.Element, p *model.PaymentDetails) {
	if p.IsZero() {
		return
	}

	if p.MeansCode != "" || p.AccountNumber != "" || p.AccountName != "" || p.BranchID != "" {
		means := root.CreateElement("cac:PaymentMeans")
		addOptionalText(means, "cbc:PaymentMeansCode", p.MeansCode)
		if p.AccountNumber != "" || p.AccountName != "" || p.BranchID != "" {
			account := means.CreateElement("cac:PayeeFinancialAccount")
			addOptionalText(account, "cbc:ID", p.AccountNumber)
			addOptionalText(account, "cbc:Name", p.AccountName)
			if p.BranchID != "" {
				addText(account.CreateElement("cac:FinancialInstitutionBranch"), "cbc:ID", p.BranchID)
			}
		}
	}

	if p.Terms != "" {
		addText(root.CreateElement("cac:PaymentTerms"), "cbc:Note", p.Terms)
	}
}

func writeTaxTotal(root *etree.Element, inv *model.Invoice) {
	taxTotal := root.CreateElement("cac:TaxTotal")
	addAmount(taxTotal, "cbc:TaxAmount", inv.TaxTotal, inv.Currency)

	if inv.TaxRate == nil {
		return
	}

	subtotal := taxTotal.CreateElement("cac:TaxSubtotal")
	addAmount(subtotal, "cbc:TaxableAmount", inv.Subtotal, inv.Currency)
	addAmount(subtotal, "cbc:TaxAmount", inv.TaxTotal, inv.Currency)
	writeTaxCategory(subtotal.CreateElement("cac:TaxCategory"), TaxCategoryStd, inv.TaxRate)
}

func writeTaxCategory(cat *etree.Element, id string, percent *decimal.Decimal) {
	addText(cat, "cbc:ID", id)
	if percent != nil {
		addText(cat, "cbc:Percent", percent.String())
	}
	addText(cat.CreateElement("cac:TaxScheme"), "cbc:ID", TaxSchemeID)
}

func writeMonetaryTotal(root *etree.Element, inv *model.Invoice) {
	total := root.CreateElement("cac:LegalMonetaryTotal")
	addAmount(total, "cbc:LineExtensionAmount", inv.Subtotal, inv.Currency)
	addAmount(total, "cbc:TaxExclusiveAmount", inv.Subtotal, inv.Currency)
	addAmount(total, "cbc:TaxInclusiveAmount", inv.TotalWithTax, inv.Currency)
	addAmount(total, "cbc:PayableAmount", inv.TotalWithTax, inv.Currency)
}

// writeLine emits one invoice line; position is its 1-based index
func writeLine(root *etree.Element, position int, item model.LineItem, docCurrency string) {
	currency := item.Currency
	if currency == "" {
		currency = docCurrency
	}

	line := root.CreateElement("cac:InvoiceLine")
	addText(line, "cbc:ID", strconv.Itoa(position))

	qty := line.CreateElement("cbc:InvoicedQuantity")
	qty.CreateAttr("unitCode", UnitCodeEach)
	qty.SetText(item.Count.String())

	addAmount(line, "cbc:LineExtensionAmount", money.Round2(item.Amount()), currency)

	it := line.CreateElement("cac:Item")
	addText(it, "cbc:Name", item.Name)
	if item.TaxCategory != "" || item.TaxPercent != nil {
		category := item.TaxCategory
		if category == "" {
			category = TaxCategoryStd
		}
		writeTaxCategory(it.CreateElement("cac:ClassifiedTaxCategory"), category, item.TaxPercent)
	}

	price := line.CreateElement("cac:Price")
	amt := price.CreateElement("cbc:PriceAmount")
	amt.CreateAttr("currencyID", currency)
	amt.SetText(formatPrice(item.Cost))
}

func addText(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

func addOptionalText(parent *etree.Element, tag, value string) {
	if value == "" {
		return
	}
	addText(parent, tag, value)
}

func addAmount(parent *etree.Element, tag string, value decimal.Decimal, currency string) {
	el := parent.CreateElement(tag)
	el.CreateAttr("currencyID", currency)
	el.SetText(money.FormatAmount(value))
}

// formatPrice keeps sub-cent unit prices exact and pads the rest to 2 decimals
func formatPrice(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.String()
	}
	return money.FormatAmount(d)
}
