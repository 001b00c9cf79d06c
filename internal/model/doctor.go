package model

type Doctor struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Specialty string `db:"specialty" json:"specialty"`
	// AssignedRoom is a weak reference; the room may have been deleted since.
	AssignedRoom *string `db:"assigned_room" json:"assigned_room,omitempty"`
	Timestamps
}

type CreateDoctorRequest struct {
	Name         string  `json:"name" binding:"required,max=120"`
	Specialty    string  `json:"specialty" binding:"required,max=120"`
	AssignedRoom *string `json:"assigned_room" binding:"omitempty,max=16"`
}

type UpdateDoctorRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=120"`
	Specialty    *string `json:"specialty" binding:"omitempty,max=120"`
	AssignedRoom *string `json:"assigned_room" binding:"omitempty,max=16"`
}
