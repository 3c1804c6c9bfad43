// Package businesshour provides business hour definitions and the
// timezone-shifted weekly window matching used to gate livechat agents.
package businesshour

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is an English weekday name ("Sunday" through "Saturday").
type Weekday string

const (
	Sunday    Weekday = "Sunday"
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

// weekdayNames maps time.Weekday ordinals to Weekday values.
var weekdayNames = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// ParseWeekday parses an English weekday name.
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range weekdayNames {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown weekday name: %s", s)
}

// WeekdayOf returns the Weekday of the given instant in UTC.
func WeekdayOf(t time.Time) Weekday {
	return weekdayNames[int(t.UTC().Weekday())]
}

// TimeOfDay is a wall-clock hour:minute value, stored as minutes from midnight.
type TimeOfDay struct {
	minutes int
}

// ParseTimeOfDay parses a time string in "HH:MM" format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time format, expected HH:MM: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour: %s", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute: %s", parts[1])
	}

	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// TimeOfDayFromMinutes builds a TimeOfDay from minutes since midnight,
// wrapping values outside a single day.
func TimeOfDayFromMinutes(m int) TimeOfDay {
	m %= 24 * 60
	if m < 0 {
		m += 24 * 60
	}
	return TimeOfDay{minutes: m}
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.minutes }

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.minutes/60, t.minutes%60)
}

// MarshalJSON encodes the time as its "HH:MM" string form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes an "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Timezone is a fixed UTC offset used to convert a business hour's local
// wall-clock times to UTC-referenced comparison times.
type Timezone struct {
	Name      string  `json:"name"`
	UTCOffset float64 `json:"utcOffset"`
}

// WorkHour is a single weekday's availability window within a business hour.
// Start and Finish are wall-clock values in the business hour's own timezone;
// Finish is same-day (overnight wraparound is not modeled).
type WorkHour struct {
	Day    Weekday   `json:"day"`
	Start  TimeOfDay `json:"start"`
	Finish TimeOfDay `json:"finish"`
}

// BusinessHour is a named weekly availability window with its own timezone
// offset. Open is the scheduler-maintained flag toggled by the open/close
// triggers; the reconciler recomputes it from scratch and never trusts it.
type BusinessHour struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	Open      bool       `json:"open"`
	Default   bool       `json:"default"`
	WorkHours []WorkHour `json:"workHours"`
	Timezone  Timezone   `json:"timezone"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks a business hour definition before it is persisted.
func (bh *BusinessHour) Validate() error {
	if bh == nil {
		return fmt.Errorf("%w: business hour is required", ErrInvalidBusinessHour)
	}
	if bh.Timezone.UTCOffset < -12 || bh.Timezone.UTCOffset > 14 {
		return fmt.Errorf("%w: utc offset %v out of range [-12, 14]", ErrInvalidBusinessHour, bh.Timezone.UTCOffset)
	}
	seen := make(map[Weekday]bool, len(bh.WorkHours))
	for _, wh := range bh.WorkHours {
		if _, err := ParseWeekday(string(wh.Day)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBusinessHour, err)
		}
		if seen[wh.Day] {
			return fmt.Errorf("%w: duplicate work hours for %s", ErrInvalidBusinessHour, wh.Day)
		}
		seen[wh.Day] = true
		if wh.Finish.Minutes() < wh.Start.Minutes() {
			return fmt.Errorf("%w: finish %s before start %s on %s", ErrInvalidBusinessHour, wh.Finish, wh.Start, wh.Day)
		}
	}
	return nil
}

// WorkHoursFor returns the work hour entries declared for the given weekday.
func (bh *BusinessHour) WorkHoursFor(day Weekday) []WorkHour {
	var matched []WorkHour
	for _, wh := range bh.WorkHours {
		if wh.Day == day {
			matched = append(matched, wh)
		}
	}
	return matched
}
