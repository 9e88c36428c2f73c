package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/modules/migration/infrastructure/persistence/models"
)

func toDBMigrationRun(r migrationrun.Run) (*models.MigrationRun, error) {
	row := &models.MigrationRun{
		ID:                 r.ID().String(),
		TenantID:           r.TenantID().String(),
		SourceFile:         r.SourceFile(),
		SourceSystem:       r.SourceSystem(),
		Status:             string(r.Status()),
		StartedAt:          r.StartedAt(),
		CompletedAt:        timestamptz(r.CompletedAt()),
		SourceCustomers:    int32(r.Source().Customers),
		SourcePackages:     int32(r.Source().Packages),
		SourceMailPieces:   int32(r.Source().MailPieces),
		SourceInvoices:     int32(r.Source().Invoices),
		MigratedCustomers:  int32(r.Migrated().Customers),
		MigratedPackages:   int32(r.Migrated().Packages),
		MigratedMailPieces: int32(r.Migrated().MailPieces),
		MigratedInvoices:   int32(r.Migrated().Invoices),
	}
	if len(r.ErrorLog()) > 0 {
		raw, err := json.Marshal(r.ErrorLog())
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode error log")
		}
		row.ErrorLog = raw
	}
	return row, nil
}

func toDomainMigrationRun(row *models.MigrationRun) (migrationrun.Run, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return migrationrun.Run{}, errors.Wrap(err, "invalid migration run id")
	}
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		return migrationrun.Run{}, errors.Wrap(err, "invalid migration run tenant id")
	}
	status, err := migrationrun.ParseStatus(row.Status)
	if err != nil {
		return migrationrun.Run{}, err
	}
	var errLog []migrationrun.EntityError
	if len(row.ErrorLog) > 0 {
		if err := json.Unmarshal(row.ErrorLog, &errLog); err != nil {
			return migrationrun.Run{}, errors.Wrap(err, "failed to decode error log")
		}
	}
	return migrationrun.Hydrate(
		id,
		tenantID,
		row.SourceFile,
		row.SourceSystem,
		status,
		row.StartedAt,
		timePtr(row.CompletedAt),
		migrationrun.Counts{
			Customers:  int(row.SourceCustomers),
			Packages:   int(row.SourcePackages),
			MailPieces: int(row.SourceMailPieces),
			Invoices:   int(row.SourceInvoices),
		},
		migrationrun.Counts{
			Customers:  int(row.MigratedCustomers),
			Packages:   int(row.MigratedPackages),
			MailPieces: int(row.MigratedMailPieces),
			Invoices:   int(row.MigratedInvoices),
		},
		errLog,
	), nil
}

func toDBCustomer(c *customer.Customer) *models.Customer {
	return &models.Customer{
		TenantID:       c.TenantID.String(),
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		BusinessName:   c.BusinessName,
		Email:          c.Email,
		Phone:          c.Phone,
		PmbNumber:      c.PmbNumber,
		Status:         c.Status,
		Form1583Status: c.Form1583Status,
		IDType:         c.IDType,
		IDNumber:       c.IDNumber,
		Address:        c.Address,
		City:           c.City,
		State:          c.State,
		ZipCode:        c.ZipCode,
		Platform:       c.Platform,
		RenewalDate:    timestamptz(c.RenewalDate),
		SourceID:       text(c.SourceID),
		MigrationID:    nullUUID(c.MigrationID),
		CreatedAt:      c.CreatedAt,
	}
}

func toDBPackage(p *parcel.Package) *models.Package {
	row := &models.Package{
		TenantID:        p.TenantID.String(),
		CustomerID:      p.CustomerID.String(),
		TrackingNumber:  p.TrackingNumber,
		Carrier:         p.Carrier,
		Status:          p.Status,
		PackageType:     p.PackageType,
		Sender:          p.Sender,
		StorageLocation: p.StorageLocation,
		Description:     p.Description,
		CheckedInAt:     p.CheckedInAt,
		ReleasedAt:      timestamptz(p.ReleasedAt),
		SourceID:        text(p.SourceID),
		MigrationID:     nullUUID(p.MigrationID),
		CreatedAt:       p.CreatedAt,
	}
	if p.Weight != nil {
		row.Weight = pgtype.Float8{Float64: *p.Weight, Valid: true}
	}
	return row
}

func toDBMailPiece(m *mailpiece.MailPiece) *models.MailPiece {
	return &models.MailPiece{
		TenantID:    m.TenantID.String(),
		CustomerID:  m.CustomerID.String(),
		Type:        m.Type,
		Sender:      m.Sender,
		Status:      m.Status,
		Notes:       m.Notes,
		ReceivedAt:  m.ReceivedAt,
		SourceID:    text(m.SourceID),
		MigrationID: nullUUID(m.MigrationID),
		CreatedAt:   m.CreatedAt,
	}
}

func toDBInvoice(inv *invoice.Invoice) *models.Invoice {
	return &models.Invoice{
		TenantID:      inv.TenantID.String(),
		CustomerID:    nullUUID(inv.CustomerID),
		InvoiceNumber: inv.InvoiceNumber,
		Type:          inv.Type,
		Status:        inv.Status,
		Description:   inv.Description,
		Amount:        inv.Amount.Round(2),
		IssuedAt:      timestamptz(inv.IssuedAt),
		SourceID:      text(inv.SourceID),
		MigrationID:   nullUUID(inv.MigrationID),
		CreatedAt:     inv.CreatedAt,
	}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
