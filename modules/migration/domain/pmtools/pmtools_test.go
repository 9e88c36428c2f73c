package pmtools

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shipos/shipos/modules/migration/domain/mapping"
)

const (
	customersCSV = "CUSTOMERID,FIRSTNAME,LASTNAME,COMPANYNAME,EMAIL,VOICEPHONENO,ADDDATE\n" +
		"1,Jane,Doe,,JANE@X.COM,555-0101,2019-04-01\n" +
		"2,,,Acme LLC,,,\n" +
		",No,Id,,,,\n" +
		"3,Sam,Roe,,,,\n"
	mailboxCSV = "CUSTOMERREF,MAILBOXNUMBER,STATUS,NEXTDUEDATE\n" +
		"1,12,1,2025-01-31\n" +
		"2,7,4,\n"
	packagesCSV = "PKGRECVXNID,TRACKINGNUMBER,CARRIERNAME,SENDER,PKGTYPE,STATUS,DTG,DTGCOMPLETE,CUSTOMERREF,NOTES\n" +
		"100,1Z1,United Parcel Service,Amazon,4,3,2024-01-02,2024-01-05,1,fragile\n" +
		"101,,Some  Local Courier,,9,,2024-01-02,,2,\n" +
		"102,9400,,,,,,,42,\n"
	billingCSV = "SHIPMENTXNID,SHIPMENTRETAIL,VOIDED,CUSTOMERREF\n" +
		"500,12.5,0,1\n" +
		"501,,1,77\n"
)

func export(t *testing.T) Export {
	t.Helper()
	exp, err := Parse(map[string]string{
		"CUSTOMER":     customersCSV,
		"mailboxes":    mailboxCSV,
		"packages.csv": packagesCSV,
		"Billing":      billingCSV,
	})
	require.NoError(t, err)
	return exp
}

func TestParse_RequiresCustomerTable(t *testing.T) {
	_, err := Parse(map[string]string{"PACKAGES": packagesCSV})
	require.ErrorIs(t, err, ErrMissingCustomerTable)

	_, err = Parse(map[string]string{"CUSTOMER": customersCSV, "LEDGER": "a\n1"})
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestExport_Dataset(t *testing.T) {
	exp := export(t)
	require.Equal(t, 1, exp.Customers.SkippedRows)

	ds := exp.Dataset("backup")
	require.Equal(t, SourceSystem, ds.SourceSystem)
	require.Len(t, ds.Customers, 3)

	jane := ds.Customers[0]
	require.Equal(t, "1", jane.SourceID)
	require.Equal(t, "PMB-0012", jane.Fields["pmbNumber"])
	require.Equal(t, "active", jane.Fields["status"])
	require.Equal(t, "jane@x.com", jane.Fields["email"])
	require.Equal(t, "2025-01-31T00:00:00.000Z", jane.Fields["renewalDate"])

	acme := ds.Customers[1]
	require.Equal(t, "Unknown", acme.Fields["firstName"])
	require.Equal(t, "Customer", acme.Fields["lastName"])
	require.Equal(t, "PMB-0007", acme.Fields["pmbNumber"])
	require.Equal(t, "closed", acme.Fields["status"])

	sam := ds.Customers[2]
	require.Equal(t, "PMB-PM3", sam.Fields["pmbNumber"])
	require.Equal(t, "active", sam.Fields["status"])

	require.Len(t, ds.Packages, 3)
	p := ds.Packages[0]
	require.Equal(t, "100", p.SourceID)
	require.Equal(t, "1", p.CustomerRef)
	require.Equal(t, "ups", p.Fields["carrier"])
	require.Equal(t, "large", p.Fields["packageType"])
	require.Equal(t, "released", p.Fields["status"])

	p = ds.Packages[1]
	require.Equal(t, "some_local_courier", p.Fields["carrier"])
	require.Equal(t, "medium", p.Fields["packageType"])
	require.Equal(t, "checked_in", p.Fields["status"])
	require.Equal(t, "other", ds.Packages[2].Fields["carrier"])

	require.Len(t, ds.Invoices, 2)
	require.Equal(t, "PM-500", ds.Invoices[0].Fields["invoiceNumber"])
	require.Equal(t, 12.5, ds.Invoices[0].Fields["amount"])
	require.Equal(t, "paid", ds.Invoices[0].Fields["status"])
	require.Equal(t, "shipping", ds.Invoices[0].Fields["type"])
	require.Equal(t, 0.0, ds.Invoices[1].Fields["amount"])
	require.Equal(t, "void", ds.Invoices[1].Fields["status"])
	require.Equal(t, "77", ds.Invoices[1].CustomerRef)
}

func TestExport_Check(t *testing.T) {
	exp := export(t)
	res := exp.Check(map[string]struct{}{"pmb-0007": {}})

	require.Equal(t, 4, res.Customers.Total)
	require.Equal(t, 2, res.Customers.Valid)
	require.Equal(t, 1, res.Customers.Duplicates)
	require.Len(t, res.Customers.Errors, 2)

	require.Equal(t, 3, res.Packages.Total)
	require.Equal(t, 1, res.Packages.Valid)
	require.Equal(t, 2, res.Packages.Orphaned)

	require.Equal(t, 2, res.Invoices.Valid)
	require.Len(t, res.Invoices.Errors, 1)
	require.Equal(t, "501", res.Invoices.Errors[0].SourceID)

	require.Len(t, res.Warnings, 2)
	require.False(t, res.Valid)
}

func TestExport_PMBNumbers(t *testing.T) {
	require.Equal(t, []string{"PMB-0012", "PMB-0007", "PMB-PM3"}, export(t).PMBNumbers())
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "PMB-12345", PMBNumber("9", "12345", true))
	require.Equal(t, "fedex", NormalizeCarrier(" FedEx Ground "))
	require.True(t, Voided("1"))
	require.True(t, Voided("Y"))
	require.False(t, Voided(" 0 "))
	require.False(t, Voided("0.0"))

	tbl, err := TableFor("data/MbDetail.CSV")
	require.NoError(t, err)
	require.Equal(t, TableMailbox, tbl)

	cfg, ok := TableConfig(TableCustomer)
	require.True(t, ok)
	require.Equal(t, mapping.SourceIDField, cfg.FieldMappings[0].Target)
	require.NoError(t, cfg.Validate())
}
