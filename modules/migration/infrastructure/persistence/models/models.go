package models

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type MigrationRun struct {
	ID                 string
	TenantID           string
	SourceFile         string
	SourceSystem       string
	Status             string
	StartedAt          time.Time
	CompletedAt        pgtype.Timestamptz
	SourceCustomers    int32
	SourcePackages     int32
	SourceMailPieces   int32
	SourceInvoices     int32
	MigratedCustomers  int32
	MigratedPackages   int32
	MigratedMailPieces int32
	MigratedInvoices   int32
	ErrorLog           []byte
}

type Customer struct {
	ID             string
	TenantID       string
	FirstName      string
	LastName       string
	BusinessName   string
	Email          string
	Phone          string
	PmbNumber      string
	Status         string
	Form1583Status string
	IDType         string
	IDNumber       string
	Address        string
	City           string
	State          string
	ZipCode        string
	Platform       string
	RenewalDate    pgtype.Timestamptz
	SourceID       pgtype.Text
	MigrationID    pgtype.UUID
	CreatedAt      time.Time
}

type Package struct {
	ID              string
	TenantID        string
	CustomerID      string
	TrackingNumber  string
	Carrier         string
	Status          string
	PackageType     string
	Sender          string
	StorageLocation string
	Description     string
	Weight          pgtype.Float8
	CheckedInAt     time.Time
	ReleasedAt      pgtype.Timestamptz
	SourceID        pgtype.Text
	MigrationID     pgtype.UUID
	CreatedAt       time.Time
}

type MailPiece struct {
	ID          string
	TenantID    string
	CustomerID  string
	Type        string
	Sender      string
	Status      string
	Notes       string
	ReceivedAt  time.Time
	SourceID    pgtype.Text
	MigrationID pgtype.UUID
	CreatedAt   time.Time
}

type Invoice struct {
	ID            string
	TenantID      string
	CustomerID    pgtype.UUID
	InvoiceNumber string
	Type          string
	Status        string
	Description   string
	Amount        decimal.Decimal
	IssuedAt      pgtype.Timestamptz
	SourceID      pgtype.Text
	MigrationID   pgtype.UUID
	CreatedAt     time.Time
}
