package mapping

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/shipos/shipos/modules/migration/domain/source"
)

const (
	PresetPostalMate      = "postalmate"
	PresetMailManager     = "mail_manager"
	PresetGenericPackages = "generic_packages"
	PresetGenericInvoices = "generic_invoices"
	PresetGenericMail     = "generic_mail"
)

var presets = map[string]Config{
	PresetPostalMate: {
		Name:          PresetPostalMate,
		Version:       1,
		SourceFormat:  source.CSV,
		TargetModel:   TargetCustomer,
		DeduplicateOn: "email",
		FieldMappings: []FieldMapping{
			{Source: "FIRSTNAME", Target: "firstName", Transform: TransformTrim, Required: true},
			{Source: "LASTNAME", Target: "lastName", Transform: TransformTrim, Required: true},
			{Source: "EMAIL", Target: "email", Transform: TransformLowercase, Required: true},
			{Source: "PHONE", Target: "phone", Transform: TransformPhone},
			{Source: "BOX_NUM", Target: "pmbNumber", Required: true},
			{Source: "ADDRESS", Target: "address"},
			{Source: "CITY", Target: "city"},
			{Source: "STATE", Target: "state", Transform: TransformUppercase},
			{Source: "ZIP", Target: "zipCode"},
			{Source: "ID_TYPE", Target: "idType", Default: "drivers_license"},
			{Source: "ID_NUMBER", Target: "idNumber"},
			{Source: "STATUS", Target: "status", Default: "active"},
			{Source: "FORM_1583", Target: "form1583Status", Default: "pending"},
			{Source: "START_DATE", Target: "createdAt", Transform: TransformDate},
			{Source: "RENEW_DATE", Target: "renewalDate", Transform: TransformDate},
		},
	},
	PresetMailManager: {
		Name:          PresetMailManager,
		Version:       1,
		SourceFormat:  source.CSV,
		TargetModel:   TargetCustomer,
		DeduplicateOn: "email",
		FieldMappings: []FieldMapping{
			{Source: "First Name", Target: "firstName", Transform: TransformTrim, Required: true},
			{Source: "Last Name", Target: "lastName", Transform: TransformTrim, Required: true},
			{Source: "Email Address", Target: "email", Transform: TransformLowercase, Required: true},
			{Source: "Phone Number", Target: "phone", Transform: TransformPhone},
			{Source: "Mailbox #", Target: "pmbNumber", Required: true},
			{Source: "Street Address", Target: "address"},
			{Source: "City", Target: "city"},
			{Source: "State", Target: "state", Transform: TransformUppercase},
			{Source: "Zip Code", Target: "zipCode"},
			{Source: "Active", Target: "status", Transform: TransformBoolean},
		},
	},
	PresetGenericPackages: {
		Name:          PresetGenericPackages,
		Version:       1,
		SourceFormat:  source.CSV,
		TargetModel:   TargetPackage,
		DeduplicateOn: "trackingNumber",
		FieldMappings: []FieldMapping{
			{Source: "tracking_number", Target: "trackingNumber", Required: true},
			{Source: "carrier", Target: "carrier", Transform: TransformUppercase, Required: true},
			{Source: "customer_pmb", Target: "customerPmb"},
			{Source: "status", Target: "status", Default: "checked_in"},
			{Source: "received_date", Target: "checkedInAt", Transform: TransformDate},
			{Source: "weight", Target: "weight", Transform: TransformNumber},
			{Source: "location", Target: "storageLocation"},
			{Source: "notes", Target: "description"},
		},
	},
	PresetGenericInvoices: {
		Name:          PresetGenericInvoices,
		Version:       1,
		SourceFormat:  source.CSV,
		TargetModel:   TargetInvoice,
		DeduplicateOn: "invoiceNumber",
		FieldMappings: []FieldMapping{
			{Source: "invoice_number", Target: "invoiceNumber", Required: true},
			{Source: "amount", Target: "amount", Transform: TransformNumber, Required: true},
			{Source: "customer_pmb", Target: "customerPmb"},
			{Source: "status", Target: "status", Default: "paid"},
			{Source: "type", Target: "type", Default: "migration"},
			{Source: "issued_date", Target: "issuedAt", Transform: TransformDate},
			{Source: "description", Target: "description"},
		},
	},
	PresetGenericMail: {
		Name:         PresetGenericMail,
		Version:      1,
		SourceFormat: source.CSV,
		TargetModel:  TargetMailPiece,
		FieldMappings: []FieldMapping{
			{Source: "customer_pmb", Target: "customerPmb", Required: true},
			{Source: "type", Target: "type", Default: "letter"},
			{Source: "sender", Target: "sender"},
			{Source: "received_date", Target: "receivedAt", Transform: TransformDate},
			{Source: "status", Target: "status", Default: "received"},
			{Source: "notes", Target: "notes"},
		},
	},
}

// Preset returns a copy of the named preset.
func Preset(name string) (Config, bool) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	return cfg.Clone(), true
}

// PresetNames is sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SuggestPreset ranks preset names close to name, best first.
func SuggestPreset(name string) []string {
	names := PresetNames()
	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)

	seen := make(map[string]struct{}, len(ranks))
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		seen[r.Target] = struct{}{}
		out = append(out, r.Target)
	}

	type near struct {
		name string
		dist int
	}
	var extra []near
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		if fuzzy.MatchNormalizedFold(n, name) {
			extra = append(extra, near{n, len(name) - len(n)})
			continue
		}
		if d := fuzzy.LevenshteinDistance(name, n); d <= 3 {
			extra = append(extra, near{n, d})
		}
	}
	sort.SliceStable(extra, func(i, j int) bool { return extra[i].dist < extra[j].dist })
	for _, e := range extra {
		out = append(out, e.name)
	}
	return out
}
