package model

type Patient struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Gender    string `db:"gender" json:"gender"`
	BirthDate string `db:"birth_date" json:"birth_date"`
	Phone     string `db:"phone" json:"phone"`
	Timestamps
}

type CreatePatientRequest struct {
	Name      string `json:"name" binding:"required,max=120"`
	Gender    string `json:"gender" binding:"required,oneof=Male Female Other"`
	BirthDate string `json:"birth_date" binding:"required,slotdate"`
	Phone     string `json:"phone" binding:"required,max=32"`
}

type UpdatePatientRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=120"`
	Gender    *string `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	BirthDate *string `json:"birth_date" binding:"omitempty,slotdate"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
}
