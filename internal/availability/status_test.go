package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 15, 15, 0, 0, 0, time.UTC)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		slot Slot
		want Status
	}{
		{"future open", Slot{ID: "s1", Date: "2099-01-01", StartTime: "14", EndTime: "15"}, StatusAvailable},
		{"future booked", Slot{ID: "s1", Date: "2099-01-01", StartTime: "14", EndTime: "15", IsBooked: true}, StatusScheduled},
		{"past open", Slot{Date: "2000-01-01", StartTime: "14"}, StatusExpired},
		{"past booked", Slot{Date: "2000-01-01", StartTime: "14", IsBooked: true}, StatusCompleted},
		{"earlier today", Slot{Date: "2026-06-15", StartTime: "9am"}, StatusExpired},
		{"later today", Slot{Date: "2026-06-15", StartTime: "4:30 PM"}, StatusAvailable},
		{"bad date", Slot{Date: "15/06/2026", StartTime: "14"}, StatusAvailable},
		{"bad date booked", Slot{Date: "someday", StartTime: "14", IsBooked: true}, StatusAvailable},
		{"bad time", Slot{Date: "2000-01-01", StartTime: "noonish"}, StatusAvailable},
		{"empty", Slot{}, StatusAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.slot, fixedNow, time.UTC))
		})
	}
}

func TestDeriveStatusUsesGivenLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 12:00 in New York is 16:00 UTC in June.
	slot := Slot{Date: "2026-06-15", StartTime: "12"}

	assert.Equal(t, StatusExpired, DeriveStatus(slot, fixedNow, time.UTC))
	assert.Equal(t, StatusAvailable, DeriveStatus(slot, fixedNow, ny))
	assert.Equal(t, StatusExpired, DeriveStatus(slot, fixedNow, nil))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		ok           bool
	}{
		{"14", 14, 0, true},
		{"09", 9, 0, true},
		{"14:30", 14, 30, true},
		{"3pm", 15, 0, true},
		{"3:30 PM", 15, 30, true},
		{" 11 am ", 11, 0, true},
		{"12am", 0, 0, true},
		{"12pm", 12, 0, true},
		{"0", 0, 0, true},
		{"24", 0, 0, false},
		{"13pm", 0, 0, false},
		{"0am", 0, 0, false},
		{"9:5", 0, 0, false},
		{"9:60", 0, 0, false},
		{"noon", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, ok := parseClock(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.hour, h)
				assert.Equal(t, tt.minute, m)
			}
		})
	}
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Thursday", weekdayName("2099-01-01"))
	assert.Equal(t, "Monday", weekdayName("2026-06-15"))
	assert.Empty(t, weekdayName("not a date"))
}

func TestSortForDisplay(t *testing.T) {
	slots := []Slot{
		{ID: "c", Date: "2099-01-02", StartTime: "9"},
		{ID: "x", Date: "??", StartTime: "9"},
		{ID: "b", Date: "2099-01-01", StartTime: "3pm"},
		{ID: "a", Date: "2099-01-01", StartTime: "10"},
	}

	SortForDisplay(slots, time.UTC)

	ids := make([]string, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "x"}, ids)
}
