package models

// Table represents a seating unit. ReservationID is set while the table is occupied.
type Table struct {
	ID            int64  `json:"table_id"`
	Name          string `json:"table_name"`
	Capacity      int    `json:"capacity"`
	ReservationID *int64 `json:"reservation_id"`
}

// IsOccupied reports whether a reservation is currently seated at the table.
func (t *Table) IsOccupied() bool {
	return t.ReservationID != nil
}

// StatusLabel returns the label shown in the table list.
func (t *Table) StatusLabel() string {
	if t.IsOccupied() {
		return "Occupied"
	}
	return "Free"
}
