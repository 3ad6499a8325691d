// Package ubl encodes invoices into UBL 2.1 XML documents and decodes them back.
//
// The element names, namespace prefixes and decode defaults in this package are
// a wire contract shared with stored documents and external consumers.
package ubl

import (
	"strings"

	"github.com/beevik/etree"
)

// Namespaces
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// Fixed header values
const (
	UBLVersionID    = "2.1"
	CustomizationID = "urn:cen.eu:en16931:2017#conformant#urn:fdc:peppol.eu:2017:poacc:billing:international:aunz:3.0"
	ProfileID       = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"
	InvoiceTypeCode = "380" // commercial invoice
	TaxSchemeID     = "GST"
	TaxCategoryStd  = "S"
	UnitCodeEach    = "EA"
)

// Decode defaults
const (
	DefaultCurrency = "AUD"
	DefaultCountry  = "AUS"
	DefaultDate     = "N/A"
	DefaultQuantity = "1"
	DefaultAmount   = "0.00"
)

// selector is an ordered list of candidate paths for one field.
// The first candidate that matches an element wins, so prefixed
// paths come before their bare fallbacks.
type selector []string

func sel(prefixed, bare string) selector {
	return selector{prefixed, bare}
}

// find returns the first element matched by the candidates, in order
func (s selector) find(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	for _, path := range s {
		if found := el.FindElement(path); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every element matched by the first candidate that matches any
func (s selector) findAll(el *etree.Element) []*etree.Element {
	if el == nil {
		return nil
	}
	for _, path := range s {
		if found := el.FindElements(path); len(found) > 0 {
			return found
		}
	}
	return nil
}

// text returns the trimmed text of the first match, or def when absent or blank
func (s selector) text(el *etree.Element, def string) string {
	found := s.find(el)
	if found == nil {
		return def
	}
	if v := trimmedText(found); v != "" {
		return v
	}
	return def
}

func trimmedText(el *etree.Element) string {
	return strings.TrimSpace(el.Text())
}

// Header fields, relative to the document root
var (
	selID              = sel("cbc:ID", "ID")
	selUUID            = sel("cbc:UUID", "UUID")
	selIssueDate       = sel("cbc:IssueDate", "IssueDate")
	selDueDate         = sel("cbc:DueDate", "DueDate")
	selNote            = sel("cbc:Note", "Note")
	selCurrency        = sel("cbc:DocumentCurrencyCode", "DocumentCurrencyCode")
	selCustomizationID = sel("cbc:CustomizationID", "CustomizationID")
	selSupplierParty   = sel("cac:AccountingSupplierParty/cac:Party", "AccountingSupplierParty/Party")
	selCustomerParty   = sel("cac:AccountingCustomerParty/cac:Party", "AccountingCustomerParty/Party")
	selInvoiceLine     = sel("cac:InvoiceLine", "InvoiceLine")
)

// Party fields, relative to a Party element
var (
	selPartyName     = sel("cac:PartyName/cbc:Name", "PartyName/Name")
	selPostalAddress = sel("cac:PostalAddress", "PostalAddress")
	selStreetName    = sel("cbc:StreetName", "StreetName")
	selCountryCode   = sel("cac:Country/cbc:IdentificationCode", "Country/IdentificationCode")
	selTelephone     = sel("cac:Contact/cbc:Telephone", "Contact/Telephone")
	selEmail         = sel("cac:Contact/cbc:ElectronicMail", "Contact/ElectronicMail")
)

// Payment fields, relative to the document root
var (
	selPaymentMeansCode = sel("cac:PaymentMeans/cbc:PaymentMeansCode", "PaymentMeans/PaymentMeansCode")
	selPayeeAccountID   = sel("cac:PaymentMeans/cac:PayeeFinancialAccount/cbc:ID", "PaymentMeans/PayeeFinancialAccount/ID")
	selPayeeAccountName = sel("cac:PaymentMeans/cac:PayeeFinancialAccount/cbc:Name", "PaymentMeans/PayeeFinancialAccount/Name")
	selPayeeBranchID    = sel("cac:PaymentMeans/cac:PayeeFinancialAccount/cac:FinancialInstitutionBranch/cbc:ID",
		"PaymentMeans/PayeeFinancialAccount/FinancialInstitutionBranch/ID")
	selPaymentTerms = sel("cac:PaymentTerms/cbc:Note", "PaymentTerms/Note")
)

// Totals, relative to the document root
var (
	selTaxAmount          = sel("cac:TaxTotal/cbc:TaxAmount", "TaxTotal/TaxAmount")
	selTaxPercent         = sel("cac:TaxTotal/cac:TaxSubtotal/cac:TaxCategory/cbc:Percent", "TaxTotal/TaxSubtotal/TaxCategory/Percent")
	selLineExtensionTotal = sel("cac:LegalMonetaryTotal/cbc:LineExtensionAmount", "LegalMonetaryTotal/LineExtensionAmount")
	selTaxInclusiveTotal  = sel("cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount", "LegalMonetaryTotal/TaxInclusiveAmount")
	selPayableAmountTotal = sel("cac:LegalMonetaryTotal/cbc:PayableAmount", "LegalMonetaryTotal/PayableAmount")
)

// Line fields, relative to an InvoiceLine element
var (
	selLineQuantity    = sel("cbc:InvoicedQuantity", "InvoicedQuantity")
	selLineItemName    = sel("cac:Item/cbc:Name", "Item/Name")
	selLineTaxCategory = sel("cac:Item/cac:ClassifiedTaxCategory/cbc:ID", "Item/ClassifiedTaxCategory/ID")
	selLineTaxPercent  = sel("cac:Item/cac:ClassifiedTaxCategory/cbc:Percent", "Item/ClassifiedTaxCategory/Percent")
	selLinePrice       = sel("cac:Price/cbc:PriceAmount", "Price/PriceAmount")
)

// HasElement reports whether any candidate of the prefixed/bare pair exists under el
func HasElement(el *etree.Element, prefixed, bare string) bool {
	return sel(prefixed, bare).find(el) != nil
}

// InvoiceLines returns the invoice line elements of doc in document order
func InvoiceLines(doc *etree.Document) []*etree.Element {
	if doc == nil {
		return nil
	}
	return selInvoiceLine.findAll(doc.Root())
}

// CustomizationIDOf returns the customization identifier of doc, or "" when absent
func CustomizationIDOf(doc *etree.Document) string {
	if doc == nil {
		return ""
	}
	return selCustomizationID.text(doc.Root(), "")
}
