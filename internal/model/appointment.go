package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "Pending"
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is one of the four lifecycle states.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Active is every status except Cancelled. Active appointments take part in sequencing
// and slot conflicts.
func (s AppointmentStatus) Active() bool {
	return s != AppointmentStatusCancelled
}

// HoldsRoom reports whether an appointment in this status keeps its room Occupied.
func (s AppointmentStatus) HoldsRoom() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusScheduled
}

// Terminal statuses accept no further transitions other than Delete.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

// BookingChannel records how an appointment entered the system.
type BookingChannel string

const (
	// ChannelSelfService is the patient portal: room comes from the doctor and is held at booking.
	ChannelSelfService BookingChannel = "self_service"
	// ChannelFrontDesk is an admin booking: room is assigned at verification.
	ChannelFrontDesk BookingChannel = "front_desk"
)

type Appointment struct {
	ID int64 `db:"id" json:"id"`
	Slot
	Status      AppointmentStatus `db:"status" json:"status"`
	Channel     BookingChannel    `db:"channel" json:"channel"`
	PatientID   int64             `db:"patient_id" json:"patient_id"`
	DoctorID    int64             `db:"doctor_id" json:"doctor_id"`
	RoomNumber  *string           `db:"room_number" json:"room_number,omitempty"`
	StaffID     *int64            `db:"staff_id" json:"staff_id,omitempty"`
	PaymentID   *int64            `db:"payment_id" json:"payment_id,omitempty"`
	TreatmentID *int64            `db:"treatment_id" json:"treatment_id,omitempty"`
	DoctorNotes *string           `db:"doctor_notes" json:"doctor_notes,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail is an appointment joined with the names and payment figures a
// schedule, worklist or history view needs. Missing weak references come back nil.
type AppointmentDetail struct {
	Appointment
	PatientName    string              `db:"patient_name" json:"patient_name"`
	DoctorName     string              `db:"doctor_name" json:"doctor_name"`
	StaffName      *string             `db:"staff_name" json:"staff_name,omitempty"`
	TreatmentLabel *string             `db:"treatment_label" json:"treatment,omitempty"`
	PaymentAmount  decimal.NullDecimal `db:"payment_amount" json:"payment_amount"`
	PaymentStatus  *PaymentStatus      `db:"payment_status" json:"payment_status,omitempty"`
}

type AppointmentFilters struct {
	PatientID  *int64
	DoctorID   *int64
	StaffID    *int64
	RoomNumber *string
	Date       string
	Time       string
	Statuses   []AppointmentStatus
	// ExcludeID drops one appointment from the result, used when re-validating an
	// appointment against its own slot.
	ExcludeID int64
	// NewestFirst orders by date descending instead of ascending.
	NewestFirst bool
}

type BookAppointmentRequest struct {
	PatientID   int64  `json:"patient_id" binding:"required,min=1"`
	DoctorID    int64  `json:"doctor_id" binding:"required,min=1"`
	Date        string `json:"date" binding:"required,slotdate"`
	Time        string `json:"time" binding:"required,slottime"`
	BlockedDate string `json:"blocked_date" binding:"omitempty,slotdate"`
	BlockedTime string `json:"blocked_time" binding:"omitempty,slottime"`
}

type SelfBookRequest struct {
	DoctorID int64  `json:"doctor_id" binding:"required,min=1"`
	Date     string `json:"date" binding:"required,slotdate"`
	Time     string `json:"time" binding:"required,slottime"`
}

type VerifyAppointmentRequest struct {
	StaffID int64 `json:"staff_id" binding:"required,min=1"`
}

type CompleteAppointmentRequest struct {
	TreatmentID int64  `json:"treatment_id" binding:"required,min=1"`
	Notes       string `json:"notes" binding:"max=2000"`
}

// RebookPrompt is what a reschedule hands back: who to rebook and which slot is off limits.
type RebookPrompt struct {
	PatientID   int64 `json:"patient_id"`
	DoctorID    int64 `json:"doctor_id"`
	BlockedSlot Slot  `json:"blocked_slot"`
}

type RescheduleResult struct {
	Cancelled *Appointment  `json:"cancelled"`
	Rebook    *RebookPrompt `json:"rebook"`
}
