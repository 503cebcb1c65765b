package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationNormalize(t *testing.T) {
	r := Reservation{
		ReservationDate: "2025-01-02T00:00:00.000Z",
		ReservationTime: "18:30:00",
	}
	r.Normalize()

	assert.Equal(t, "2025-01-02", r.ReservationDate)
	assert.Equal(t, "18:30", r.ReservationTime)
	assert.Equal(t, StatusBooked, r.Status)
}

func TestReservationNormalize_AlreadyShort(t *testing.T) {
	r := Reservation{ReservationDate: "2025-01-02", ReservationTime: "09:15", Status: StatusSeated}
	r.Normalize()

	assert.Equal(t, "2025-01-02", r.ReservationDate)
	assert.Equal(t, "09:15", r.ReservationTime)
	assert.Equal(t, StatusSeated, r.Status)
}

func TestReservationFullName(t *testing.T) {
	r := Reservation{FirstName: "Rick", LastName: "Sanchez"}
	assert.Equal(t, "Rick Sanchez", r.FullName())

	r = Reservation{FirstName: "Morty"}
	assert.Equal(t, "Morty", r.FullName())
}

func TestTableDecode(t *testing.T) {
	var tables []Table
	err := json.Unmarshal([]byte(`[
		{"table_id": 1, "table_name": "#1", "capacity": 6, "reservation_id": null},
		{"table_id": 2, "table_name": "Bar #1", "capacity": 1, "reservation_id": 7}
	]`), &tables)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.False(t, tables[0].IsOccupied())
	assert.Equal(t, "Free", tables[0].StatusLabel())

	assert.True(t, tables[1].IsOccupied())
	assert.Equal(t, int64(7), *tables[1].ReservationID)
	assert.Equal(t, "Occupied", tables[1].StatusLabel())
}
