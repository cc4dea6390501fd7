package availability

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

const dateLayout = "2006-01-02"

// DeriveStatus computes a slot's display status at now. Date and start time
// are read as wall-clock values in loc (UTC when nil). A slot whose date or
// start time cannot be parsed is reported available.
func DeriveStatus(s Slot, now time.Time, loc *time.Location) Status {
	start, ok := SlotStart(s, loc)
	if !ok {
		return StatusAvailable
	}

	past := start.Before(now)
	switch {
	case past && s.IsBooked:
		return StatusCompleted
	case past:
		return StatusExpired
	case s.IsBooked:
		return StatusScheduled
	default:
		return StatusAvailable
	}
}

// SlotStart returns the instant the slot begins.
func SlotStart(s Slot, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s.Date), loc)
	if err != nil {
		return time.Time{}, false
	}

	hour, minute, ok := parseClock(s.StartTime)
	if !ok {
		return time.Time{}, false
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
}

// ValidClock reports whether raw is a time of day slots can be read with.
func ValidClock(raw string) bool {
	_, _, ok := parseClock(raw)
	return ok
}

// parseClock accepts "14", "14:30", "3pm", "3:30 PM", "12am".
func parseClock(raw string) (hour, minute int, ok bool) {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	if strings.HasSuffix(s, "am") || strings.HasSuffix(s, "pm") {
		meridiem = s[len(s)-2:]
		s = s[:len(s)-2]
	}

	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil || len(hourPart) > 2 {
		return 0, 0, false
	}
	if hasMinutes {
		if len(minutePart) != 2 {
			return 0, 0, false
		}
		minute, err = strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, false
		}
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return 0, 0, false
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		hour %= 12
		if meridiem == "pm" {
			hour += 12
		}
	}

	return hour, minute, true
}

// weekdayName fills the descriptive dayOfWeek label from an ISO date.
func weekdayName(date string) string {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return ""
	}
	return d.Weekday().String()
}

// SortForDisplay orders slots by start instant. Slots whose start cannot be
// parsed go last, ordered by their raw date and time.
func SortForDisplay(slots []Slot, loc *time.Location) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, aok := SlotStart(slots[i], loc)
		b, bok := SlotStart(slots[j], loc)
		switch {
		case aok && bok && !a.Equal(b):
			return a.Before(b)
		case aok != bok:
			return aok
		}
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		if slots[i].StartTime != slots[j].StartTime {
			return slots[i].StartTime < slots[j].StartTime
		}
		return slots[i].ID < slots[j].ID
	})
}
