package model

type Staff struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Role string `db:"role" json:"role"`
	Timestamps
}

type CreateStaffRequest struct {
	Name string `json:"name" binding:"required,max=120"`
	Role string `json:"role" binding:"required,max=64"`
}
