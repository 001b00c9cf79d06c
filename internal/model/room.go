package model

type RoomStatus string

const (
	RoomStatusAvailable RoomStatus = "Available"
	RoomStatusOccupied  RoomStatus = "Occupied"
)

// Room is keyed by its number. Status is derived from the appointments holding it.
type Room struct {
	Number string     `db:"room_number" json:"room_number"`
	Status RoomStatus `db:"status" json:"status"`
	Timestamps
}

type CreateRoomRequest struct {
	Number string `json:"room_number" binding:"required,max=16"`
}

type RoomAvailability struct {
	Number string `json:"room_number"`
	Slot   Slot   `json:"slot"`
	Free   bool   `json:"free"`
}
