package payment

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Service struct {
	repos repository.Repositories
}

func NewService(repos repository.Repositories) *Service {
	return &Service{repos: repos}
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Payment, error) {
	return s.repos.Payments().Get(ctx, id)
}

// Ledger lists every payment newest first, each with a resolved display date.
func (s *Service) Ledger(ctx context.Context) ([]*model.LedgerEntry, error) {
	rows, err := s.repos.Payments().Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	entries := make([]*model.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry(row))
	}
	return entries, nil
}

// Entry resolves the display date of a ledger row. Payments without a date of
// their own show the appointment date, flagged as an estimate.
func Entry(row *model.LedgerRow) *model.LedgerEntry {
	entry := &model.LedgerEntry{
		PaymentID:     row.ID,
		AppointmentID: row.AppointmentID,
		PatientID:     row.PatientID,
		PatientName:   row.PatientName,
		Amount:        row.Amount,
		Status:        row.Status,
	}
	if row.Date != nil && *row.Date != "" {
		entry.Date = *row.Date
	} else {
		entry.Date = row.AppointmentDate
		entry.Estimated = true
	}
	return entry
}
