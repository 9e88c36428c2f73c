// Package dataset is the typed input of an execution: mapped rows grouped by
// entity with their legacy identifiers resolved.
package dataset

import (
	"strconv"

	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/validation"
)

type Item struct {
	Row         int
	SourceID    string
	CustomerRef string
	Fields      mapping.Row
}

type Dataset struct {
	SourceSystem string
	SourceFile   string
	Customers    []Item
	Packages     []Item
	MailPieces   []Item
	Invoices     []Item
}

type ParseStats struct {
	Customers  int `json:"customers"`
	Packages   int `json:"packages"`
	MailPieces int `json:"mailPieces"`
	Billing    int `json:"billing"`
}

func (d Dataset) Stats() ParseStats {
	return ParseStats{
		Customers:  len(d.Customers),
		Packages:   len(d.Packages),
		MailPieces: len(d.MailPieces),
		Billing:    len(d.Invoices),
	}
}

func (d Dataset) Len() int {
	return len(d.Customers) + len(d.Packages) + len(d.MailPieces) + len(d.Invoices)
}

var naturalKeys = map[mapping.TargetModel]string{
	mapping.TargetCustomer: "pmbNumber",
	mapping.TargetPackage:  "trackingNumber",
	mapping.TargetInvoice:  "invoiceNumber",
}

// NewItem resolves the legacy identifier and the customer reference of a
// mapped row.
func NewItem(model mapping.TargetModel, row int, fields mapping.Row) Item {
	item := Item{Row: row, Fields: fields}
	item.SourceID = fields.String(mapping.SourceIDField)
	if item.SourceID == "" {
		if key, ok := naturalKeys[model]; ok {
			item.SourceID = fields.String(key)
		}
	}
	if item.SourceID == "" {
		item.SourceID = "row-" + strconv.Itoa(row)
	}
	item.CustomerRef = fields.String("customerSourceId")
	if item.CustomerRef == "" {
		item.CustomerRef = fields.String("customerPmb")
	}
	return item
}

// FromReport puts the valid rows of a single-model batch into a dataset.
func FromReport(rep validation.Report, model mapping.TargetModel, sourceSystem, sourceFile string) Dataset {
	ds := Dataset{SourceSystem: sourceSystem, SourceFile: sourceFile}
	items := make([]Item, 0, len(rep.Items))
	for _, it := range rep.Items {
		items = append(items, NewItem(model, it.Row, it.Fields))
	}
	switch model {
	case mapping.TargetCustomer:
		ds.Customers = items
	case mapping.TargetPackage:
		ds.Packages = items
	case mapping.TargetMailPiece:
		ds.MailPieces = items
	case mapping.TargetInvoice:
		ds.Invoices = items
	}
	return ds
}
