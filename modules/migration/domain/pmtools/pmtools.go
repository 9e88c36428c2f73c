package pmtools

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shipos/shipos/modules/migration/domain/dataset"
	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/source"
	"github.com/shipos/shipos/modules/migration/domain/validation"
)

var (
	ErrMissingCustomerTable = errors.New("pmtools: CUSTOMER table is required")
	ErrUnknownTable         = errors.New("pmtools: unknown table")
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Export holds the validated rows of each table.
type Export struct {
	Customers validation.Report
	Mailboxes validation.Report
	Packages  validation.Report
	Billing   validation.Report
}

// TableFor resolves a file key or file name to its table. Keys are
// case-insensitive and may carry an extension.
func TableFor(name string) (Table, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if t, ok := tableAliases[strings.ToLower(strings.TrimSpace(base))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// Parse reads the table files keyed by table name.
func Parse(files map[string]string) (Export, error) {
	byTable := make(map[Table]string, len(files))
	for name, content := range files {
		t, err := TableFor(name)
		if err != nil {
			return Export{}, err
		}
		byTable[t] = content
	}
	if strings.TrimSpace(byTable[TableCustomer]) == "" {
		return Export{}, ErrMissingCustomerTable
	}

	var exp Export
	for _, tbl := range []struct {
		table Table
		dst   *validation.Report
	}{
		{TableCustomer, &exp.Customers},
		{TableMailbox, &exp.Mailboxes},
		{TablePackages, &exp.Packages},
		{TableBilling, &exp.Billing},
	} {
		recs, err := source.Parse([]byte(byTable[tbl.table]), source.CSV)
		if err != nil {
			return Export{}, fmt.Errorf("%s: %w", tbl.table, err)
		}
		*tbl.dst = validation.ValidateBatch(recs, tableConfigs[tbl.table], nil)
	}
	return exp, nil
}

// Dataset maps the export onto target records.
func (e Export) Dataset(sourceFile string) dataset.Dataset {
	ds := dataset.Dataset{SourceSystem: SourceSystem, SourceFile: sourceFile}
	ds.Customers = e.customerItems()

	for _, it := range e.Packages.Items {
		ds.Packages = append(ds.Packages, dataset.NewItem(mapping.TargetPackage, it.Row, packageFields(it.Fields)))
	}
	for _, it := range e.Billing.Items {
		ds.Invoices = append(ds.Invoices, dataset.NewItem(mapping.TargetInvoice, it.Row, invoiceFields(it.Fields)))
	}
	return ds
}

// PMBNumbers lists the PMB numbers the customers of e would receive.
func (e Export) PMBNumbers() []string {
	items := e.customerItems()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Fields.String("pmbNumber"))
	}
	return out
}

func (e Export) mailboxesByCustomer() map[string]mapping.Row {
	out := make(map[string]mapping.Row, len(e.Mailboxes.Items))
	for _, it := range e.Mailboxes.Items {
		if ref := it.Fields.String("customerSourceId"); ref != "" {
			out[ref] = it.Fields
		}
	}
	return out
}

func (e Export) customerItems() []dataset.Item {
	mailboxes := e.mailboxesByCustomer()
	items := make([]dataset.Item, 0, len(e.Customers.Items))
	for _, it := range e.Customers.Items {
		fields := make(mapping.Row, len(it.Fields)+3)
		for k, v := range it.Fields {
			fields[k] = v
		}
		id := it.Fields.String(mapping.SourceIDField)
		mb, hasMailbox := mailboxes[id]
		fields["pmbNumber"] = PMBNumber(id, mb.String("mailboxNumber"), hasMailbox)
		fields["status"] = "active"
		if hasMailbox {
			if mailboxStatuses[mb.String("status")] != "active" {
				fields["status"] = "closed"
			}
			if due := mb.String("renewalDate"); due != "" {
				fields["renewalDate"] = due
			}
		}
		items = append(items, dataset.NewItem(mapping.TargetCustomer, it.Row, fields))
	}
	return items
}

// PMBNumber is PMB-<mailbox padded to 4> for customers with a mailbox and
// PMB-PM<customer id> otherwise.
func PMBNumber(customerID, mailboxNumber string, hasMailbox bool) string {
	if hasMailbox {
		if n := len(mailboxNumber); n < 4 {
			mailboxNumber = strings.Repeat("0", 4-n) + mailboxNumber
		}
		return "PMB-" + mailboxNumber
	}
	return "PMB-PM" + customerID
}

// NormalizeCarrier maps a PMTools carrier name to a carrier code.
func NormalizeCarrier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "other"
	}
	if code, ok := carriers[name]; ok {
		return code
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(name), "_")
}

func packageFields(in mapping.Row) mapping.Row {
	out := make(mapping.Row, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	out["carrier"] = NormalizeCarrier(in.String("carrier"))
	out["packageType"] = codeOr(packageTypes, in.String("packageType"), "medium")
	out["status"] = codeOr(packageStatuses, in.String("status"), "checked_in")
	return out
}

func invoiceFields(in mapping.Row) mapping.Row {
	id := in.String(mapping.SourceIDField)
	out := mapping.Row{
		mapping.SourceIDField: id,
		"invoiceNumber":       "PM-" + id,
		"type":                "shipping",
		"amount":              0.0,
		"status":              "paid",
	}
	if amount, ok := in["amount"].(float64); ok {
		out["amount"] = amount
	}
	if Voided(in.String("voided")) {
		out["status"] = "void"
	}
	if ref := in.String("customerSourceId"); ref != "" {
		out["customerSourceId"] = ref
	}
	return out
}

// Voided reads the VOIDED flag; empty, zero and false-like values are not set.
func Voided(v string) bool {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "0", "false", "f", "n", "no":
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0
	}
	return true
}

func codeOr(table map[string]string, code, fallback string) string {
	code = strings.TrimSpace(code)
	if f, err := strconv.ParseFloat(code, 64); err == nil && f == float64(int64(f)) {
		code = strconv.FormatInt(int64(f), 10)
	}
	if v, ok := table[code]; ok {
		return v
	}
	return fallback
}
