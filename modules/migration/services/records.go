package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipos/shipos/modules/migration/domain/dataset"
	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/modules/migration/domain/mapping"
)

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func timeField(row mapping.Row, field string) *time.Time {
	s := row.String(field)
	if s == "" {
		return nil
	}
	t, ok := mapping.ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}

func floatField(row mapping.Row, field string) (float64, bool) {
	switch v := row[field].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// generatedNumber fills a missing natural key so a row stays traceable to
// its run and source line.
func generatedNumber(shortID string, row int) string {
	return fmt.Sprintf("IMPORT-%s-%d", shortID, row)
}

func newCustomer(item dataset.Item, pmb string, tenantID, migrationID uuid.UUID) *customer.Customer {
	f := item.Fields
	c := &customer.Customer{
		TenantID:       tenantID,
		FirstName:      f.String("firstName"),
		LastName:       f.String("lastName"),
		BusinessName:   f.String("businessName"),
		Email:          f.String("email"),
		Phone:          f.String("phone"),
		PmbNumber:      pmb,
		Status:         orDefault(f.String("status"), "active"),
		Form1583Status: orDefault(f.String("form1583Status"), "pending"),
		IDType:         f.String("idType"),
		IDNumber:       f.String("idNumber"),
		Address:        f.String("address"),
		City:           f.String("city"),
		State:          f.String("state"),
		ZipCode:        f.String("zipCode"),
		Platform:       customer.PlatformMigrated,
		RenewalDate:    timeField(f, "renewalDate"),
		SourceID:       item.SourceID,
		MigrationID:    &migrationID,
	}
	if created := timeField(f, "createdAt"); created != nil {
		c.CreatedAt = *created
	}
	return c
}

func newPackage(item dataset.Item, customerID, tenantID, migrationID uuid.UUID) *parcel.Package {
	f := item.Fields
	p := &parcel.Package{
		TenantID:        tenantID,
		CustomerID:      customerID,
		TrackingNumber:  f.String("trackingNumber"),
		Carrier:         orDefault(strings.ToLower(f.String("carrier")), "other"),
		Status:          orDefault(f.String("status"), "checked_in"),
		PackageType:     orDefault(f.String("packageType"), "medium"),
		Sender:          f.String("sender"),
		StorageLocation: f.String("storageLocation"),
		Description:     f.String("description"),
		ReleasedAt:      timeField(f, "releasedAt"),
		SourceID:        item.SourceID,
		MigrationID:     &migrationID,
	}
	if w, ok := floatField(f, "weight"); ok {
		p.Weight = &w
	}
	if at := timeField(f, "checkedInAt"); at != nil {
		p.CheckedInAt = *at
	}
	return p
}

func newMailPiece(item dataset.Item, customerID, tenantID, migrationID uuid.UUID) *mailpiece.MailPiece {
	f := item.Fields
	m := &mailpiece.MailPiece{
		TenantID:    tenantID,
		CustomerID:  customerID,
		Type:        orDefault(f.String("type"), "letter"),
		Sender:      f.String("sender"),
		Status:      orDefault(f.String("status"), "received"),
		Notes:       f.String("notes"),
		SourceID:    item.SourceID,
		MigrationID: &migrationID,
	}
	if at := timeField(f, "receivedAt"); at != nil {
		m.ReceivedAt = *at
	}
	return m
}

func newInvoice(item dataset.Item, number string, customerID *uuid.UUID, tenantID, migrationID uuid.UUID) (*invoice.Invoice, error) {
	f := item.Fields
	amount := decimal.Zero
	if f.Has("amount") {
		v, ok := floatField(f, "amount")
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", f.String("amount"))
		}
		amount = decimal.NewFromFloat(v)
	}
	return &invoice.Invoice{
		TenantID:      tenantID,
		CustomerID:    customerID,
		InvoiceNumber: number,
		Type:          orDefault(f.String("type"), "migration"),
		Status:        orDefault(f.String("status"), "paid"),
		Description:   f.String("description"),
		Amount:        amount,
		IssuedAt:      timeField(f, "issuedAt"),
		SourceID:      item.SourceID,
		MigrationID:   &migrationID,
	}, nil
}
