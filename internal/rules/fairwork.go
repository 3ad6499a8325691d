package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// FairworkRuleSet is the registry name of the labour-hire compliance profile
const FairworkRuleSet = "fairwork"

var quarterHour = decimal.RequireFromString("0.25")

// Fairwork returns the rules contractors billing labour hours must meet.
// None of its messages overlap with the Peppol set.
func Fairwork() *RuleSet {
	return &RuleSet{
		Name:        FairworkRuleSet,
		DisplayName: "Fair Work (labour hire)",
		Description: "Record-keeping requirements for invoices that bill hours worked",
		Rules: []Rule{
			{
				ID:       "supplier-name",
				Severity: model.SeverityError,
				Message:  "Supplier business name is required for Fair Work records",
				Check: func(in *Input) (bool, []any) {
					return notBlank(in.Invoice.Supplier.Name), nil
				},
			},
			{
				ID:       "supplier-address",
				Severity: model.SeverityError,
				Message:  "Supplier street address is required for Fair Work records",
				Check: func(in *Input) (bool, []any) {
					addr := in.Invoice.Supplier.Address
					return addr != nil && notBlank(addr.Street), nil
				},
			},
			{
				ID:       "supplier-country",
				Severity: model.SeverityError,
				Message:  "Supplier country of operation is required for Fair Work records",
				Check: func(in *Input) (bool, []any) {
					return notBlank(countryOf(in.Invoice.Supplier)), nil
				},
			},
			{
				ID:       "buyer-name",
				Severity: model.SeverityError,
				Message:  "Hiring business name is required for Fair Work records",
				Check: func(in *Input) (bool, []any) {
					return notBlank(in.Invoice.Buyer.Name), nil
				},
			},
			{
				ID:       "line-description",
				Severity: model.SeverityError,
				Message:  "Line %d must describe the work performed",
				Check: func(in *Input) (bool, []any) {
					for i, item := range in.Invoice.Items {
						if !notBlank(item.Name) {
							return fail(i + 1)
						}
					}
					return pass()
				},
			},
			{
				ID:       "due-date-present",
				Severity: model.SeverityWarning,
				Message:  "Payment due date should be stated so wages can be reconciled",
				Check: func(in *Input) (bool, []any) {
					due := in.Invoice.DueDate
					return notBlank(due) && due != ubl.DefaultDate, nil
				},
			},
			{
				ID:       "quarter-hour-quantity",
				Severity: model.SeverityWarning,
				Message:  "Line %d bills %s hours, which is not a whole quarter hour",
				Check: func(in *Input) (bool, []any) {
					for i, item := range in.Invoice.Items {
						if !item.Count.Mod(quarterHour).IsZero() {
							return fail(i+1, item.Count.String())
						}
					}
					return pass()
				},
			},
		},
	}
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
