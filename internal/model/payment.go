package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

type Payment struct {
	ID            int64           `db:"id" json:"id"`
	AppointmentID int64           `db:"appointment_id" json:"appointment_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        PaymentStatus   `db:"status" json:"status"`
	// Date is YYYY-MM-DD; nil for rows written before payments were date-stamped.
	Date      *string   `db:"payment_date" json:"date,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerRow is a payment joined with its appointment date and patient.
type LedgerRow struct {
	Payment
	AppointmentDate string `db:"appointment_date" json:"appointment_date"`
	PatientID       int64  `db:"patient_id" json:"patient_id"`
	PatientName     string `db:"patient_name" json:"patient_name"`
}

// LedgerEntry is a ledger row with its display date resolved.
type LedgerEntry struct {
	PaymentID     int64           `json:"payment_id"`
	AppointmentID int64           `json:"appointment_id"`
	PatientID     int64           `json:"patient_id"`
	PatientName   string          `json:"patient_name"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	Date          string          `json:"date"`
	// Estimated is set when Date fell back to the appointment date.
	Estimated bool `json:"estimated"`
}
