// Package pmtools reads the multi-table PMTools CSV export.
package pmtools

import (
	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/source"
)

type Table string

const (
	TableCustomer Table = "CUSTOMER"
	TableMailbox  Table = "MBDETAIL"
	TablePackages Table = "PACKAGES"
	TableBilling  Table = "BILLING"
)

const SourceSystem = "pmtools"

var tableAliases = map[string]Table{
	"customer":  TableCustomer,
	"customers": TableCustomer,
	"mbdetail":  TableMailbox,
	"mailboxes": TableMailbox,
	"packages":  TablePackages,
	"billing":   TableBilling,
}

var tableConfigs = map[Table]mapping.Config{
	TableCustomer: {
		Name:          "pmtools_customer",
		SourceFormat:  source.CSV,
		TargetModel:   mapping.TargetCustomer,
		DeduplicateOn: mapping.SourceIDField,
		FieldMappings: []mapping.FieldMapping{
			{Source: "CUSTOMERID", Target: mapping.SourceIDField, Required: true},
			{Source: "FIRSTNAME", Target: "firstName", Transform: mapping.TransformTrim, Default: "Unknown"},
			{Source: "LASTNAME", Target: "lastName", Transform: mapping.TransformTrim, Default: "Customer"},
			{Source: "COMPANYNAME", Target: "businessName"},
			{Source: "EMAIL", Target: "email", Transform: mapping.TransformLowercase},
			{Source: "VOICEPHONENO", Target: "phone", Transform: mapping.TransformPhone},
			{Source: "ADDDATE", Target: "createdAt", Transform: mapping.TransformDate},
		},
	},
	TableMailbox: {
		Name:         "pmtools_mbdetail",
		SourceFormat: source.CSV,
		TargetModel:  mapping.TargetCustomer,
		FieldMappings: []mapping.FieldMapping{
			{Source: "CUSTOMERREF", Target: "customerSourceId"},
			{Source: "MAILBOXNUMBER", Target: "mailboxNumber"},
			{Source: "STATUS", Target: "status"},
			{Source: "NEXTDUEDATE", Target: "renewalDate", Transform: mapping.TransformDate},
		},
	},
	TablePackages: {
		Name:          "pmtools_packages",
		SourceFormat:  source.CSV,
		TargetModel:   mapping.TargetPackage,
		DeduplicateOn: mapping.SourceIDField,
		FieldMappings: []mapping.FieldMapping{
			{Source: "PKGRECVXNID", Target: mapping.SourceIDField, Required: true},
			{Source: "TRACKINGNUMBER", Target: "trackingNumber"},
			{Source: "CARRIERNAME", Target: "carrier"},
			{Source: "SENDER", Target: "sender"},
			{Source: "PKGTYPE", Target: "packageType"},
			{Source: "STATUS", Target: "status"},
			{Source: "DTG", Target: "checkedInAt", Transform: mapping.TransformDate},
			{Source: "DTGCOMPLETE", Target: "releasedAt", Transform: mapping.TransformDate},
			{Source: "CUSTOMERREF", Target: "customerSourceId"},
			{Source: "NOTES", Target: "description"},
		},
	},
	TableBilling: {
		Name:          "pmtools_billing",
		SourceFormat:  source.CSV,
		TargetModel:   mapping.TargetInvoice,
		DeduplicateOn: mapping.SourceIDField,
		FieldMappings: []mapping.FieldMapping{
			{Source: "SHIPMENTXNID", Target: mapping.SourceIDField, Required: true},
			{Source: "SHIPMENTRETAIL", Target: "amount", Transform: mapping.TransformNumber},
			{Source: "VOIDED", Target: "voided"},
			{Source: "CUSTOMERREF", Target: "customerSourceId"},
		},
	},
}

// TableConfig returns a copy of the mapping used for t.
func TableConfig(t Table) (mapping.Config, bool) {
	cfg, ok := tableConfigs[t]
	if !ok {
		return mapping.Config{}, false
	}
	return cfg.Clone(), true
}

var carriers = map[string]string{
	"United Parcel Service":        "ups",
	"United States Postal Service": "usps",
	"FedEx Express":                "fedex",
	"FedEx Ground":                 "fedex",
	"FedEx Freight":                "fedex",
	"FedEx Freight Box":            "fedex",
	"DHL":                          "dhl",
	"DHL eCommerce":                "dhl",
	"OnTrac":                       "ontrac",
	"LSO":                          "lso",
	"Spee-Dee Delivery":            "speedee",
	"SameDay Messenger":            "sameday",
	"Meest":                        "meest",
	"Maersk Parcel":                "maersk",
	"GLS":                          "gls",
	"UShip":                        "uship",
}

var mailboxStatuses = map[string]string{
	"0": "available",
	"1": "active",
	"2": "active",
	"3": "suspended",
	"4": "closed",
	"5": "closed",
	"6": "suspended",
}

var packageTypes = map[string]string{
	"0": "medium",
	"1": "letter",
	"2": "small",
	"3": "medium",
	"4": "large",
	"5": "oversized",
}

var packageStatuses = map[string]string{
	"0": "checked_in",
	"1": "notified",
	"2": "ready",
	"3": "released",
	"4": "returned",
}
