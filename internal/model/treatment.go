package model

import "github.com/shopspring/decimal"

// Treatment is a read-only catalog entry applied when a visit completes.
type Treatment struct {
	ID    int64           `db:"id" json:"id"`
	Label string          `db:"label" json:"label"`
	Cost  decimal.Decimal `db:"cost" json:"cost"`
}

// DefaultTreatments is the catalog the schema migrations seed.
func DefaultTreatments() []Treatment {
	return []Treatment{
		{ID: 1, Label: "General Consultation", Cost: decimal.NewFromInt(50)},
		{ID: 2, Label: "Dental Cleaning", Cost: decimal.NewFromInt(80)},
		{ID: 3, Label: "Vaccination", Cost: decimal.NewFromInt(35)},
		{ID: 4, Label: "Physiotherapy Session", Cost: decimal.NewFromInt(65)},
		{ID: 5, Label: "Minor Surgery", Cost: decimal.NewFromInt(250)},
	}
}
