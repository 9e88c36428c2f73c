package pmtools

import (
	"fmt"
	"strings"

	"github.com/shipos/shipos/modules/migration/domain/mapping"
)

type CheckError struct {
	SourceID string `json:"sourceId"`
	Message  string `json:"message"`
}

type CustomerCheck struct {
	Total      int          `json:"total"`
	Valid      int          `json:"valid"`
	Duplicates int          `json:"duplicates"`
	Errors     []CheckError `json:"errors"`
}

type PackageCheck struct {
	Total    int          `json:"total"`
	Valid    int          `json:"valid"`
	Orphaned int          `json:"orphaned"`
	Errors   []CheckError `json:"errors"`
}

type InvoiceCheck struct {
	Total  int          `json:"total"`
	Valid  int          `json:"valid"`
	Errors []CheckError `json:"errors"`
}

type CheckResult struct {
	Valid     bool          `json:"valid"`
	Customers CustomerCheck `json:"customers"`
	Packages  PackageCheck  `json:"packages"`
	Invoices  InvoiceCheck  `json:"invoices"`
	Warnings  []string      `json:"warnings"`
}

// Check reports conflicts of e against existingPMBs, a set of lowercased PMB
// numbers already in the store. It never writes.
func (e Export) Check(existingPMBs map[string]struct{}) CheckResult {
	res := CheckResult{
		Customers: CustomerCheck{Errors: []CheckError{}},
		Packages:  PackageCheck{Errors: []CheckError{}},
		Invoices:  InvoiceCheck{Errors: []CheckError{}},
		Warnings:  []string{},
	}

	res.Customers.Total = e.Customers.TotalRows
	res.Customers.Errors = append(res.Customers.Errors, rowErrors(e.Customers.Errors)...)
	known := make(map[string]struct{}, len(e.Customers.Items))
	for _, it := range e.customerItems() {
		pmb := it.Fields.String("pmbNumber")
		if _, dup := existingPMBs[strings.ToLower(pmb)]; dup {
			res.Customers.Duplicates++
			res.Customers.Errors = append(res.Customers.Errors, CheckError{
				SourceID: it.SourceID,
				Message:  fmt.Sprintf("PMB %s already exists", pmb),
			})
			continue
		}
		res.Customers.Valid++
		known[it.SourceID] = struct{}{}
	}

	res.Packages.Total = e.Packages.TotalRows
	res.Packages.Errors = append(res.Packages.Errors, rowErrors(e.Packages.Errors)...)
	for _, it := range e.Packages.Items {
		if _, ok := known[it.Fields.String("customerSourceId")]; !ok {
			res.Packages.Orphaned++
			continue
		}
		res.Packages.Valid++
	}

	res.Invoices.Total = e.Billing.TotalRows
	res.Invoices.Errors = append(res.Invoices.Errors, rowErrors(e.Billing.Errors)...)
	for _, it := range e.Billing.Items {
		if Voided(it.Fields.String("voided")) {
			res.Invoices.Errors = append(res.Invoices.Errors, CheckError{
				SourceID: it.Fields.String(mapping.SourceIDField),
				Message:  "Voided transaction — will be imported as void",
			})
		}
		res.Invoices.Valid++
	}

	if res.Customers.Duplicates > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d customer(s) have PMB numbers that already exist", res.Customers.Duplicates))
	}
	if res.Packages.Orphaned > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d package(s) reference customers not in this export", res.Packages.Orphaned))
	}
	if dups := e.Customers.DuplicateRows; dups > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d customer row(s) repeat a CUSTOMERID and were ignored", dups))
	}
	res.Valid = len(res.Customers.Errors) == 0 && len(res.Warnings) == 0
	return res
}

func rowErrors(errs []mapping.ValidationError) []CheckError {
	out := make([]CheckError, 0, len(errs))
	for _, e := range errs {
		out = append(out, CheckError{
			SourceID: fmt.Sprintf("row-%d", e.Row),
			Message:  e.Message,
		})
	}
	return out
}
