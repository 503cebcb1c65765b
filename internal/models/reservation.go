package models

import (
	"strings"
	"time"
)

// Reservation statuses as reported by the reservations API.
const (
	StatusBooked    = "booked"
	StatusSeated    = "seated"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// Reservation represents a booking record for a date.
type Reservation struct {
	ID              int64     `json:"reservation_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	MobileNumber    string    `json:"mobile_number"`
	ReservationDate string    `json:"reservation_date"` // YYYY-MM-DD
	ReservationTime string    `json:"reservation_time"` // HH:MM
	People          int       `json:"people"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// FullName returns "First Last" trimmed.
func (r *Reservation) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// IsBooked reports whether the party has not been seated yet.
func (r *Reservation) IsBooked() bool {
	return r.Status == "" || r.Status == StatusBooked
}

// Normalize cuts reservation_date to YYYY-MM-DD and reservation_time to HH:MM.
// The API may send "2025-01-02T00:00:00.000Z" and "18:30:00".
func (r *Reservation) Normalize() {
	if len(r.ReservationDate) > 10 {
		r.ReservationDate = r.ReservationDate[:10]
	}
	if len(r.ReservationTime) > 5 {
		r.ReservationTime = r.ReservationTime[:5]
	}
	if r.Status == "" {
		r.Status = StatusBooked
	}
}
