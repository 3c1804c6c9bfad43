package businesshour

import (
	"sort"
	"time"
)

// IsOpenAt reports whether the business hour has a window covering the given
// instant. The comparison happens entirely in UTC: each work hour's start and
// finish are shifted from the business hour's local wall clock by its UTC
// offset and re-anchored onto the current weekday, then compared against the
// instant's hour and minute with inclusive bounds on both ends.
//
// Known limitation, preserved on purpose: a shift that pushes a window past
// midnight stays in the declared weekday's bucket instead of rolling into the
// adjacent day, so such a window is matched (or missed) within its original
// day only.
func IsOpenAt(bh *BusinessHour, now time.Time) bool {
	if bh == nil || !bh.Active {
		return false
	}

	utc := now.UTC()
	day := WeekdayOf(utc)
	current := utc.Hour()*60 + utc.Minute()

	for _, wh := range bh.WorkHoursFor(day) {
		start := shiftToUTC(wh.Start, bh.Timezone.UTCOffset)
		finish := shiftToUTC(wh.Finish, bh.Timezone.UTCOffset)
		if current >= start.Minutes() && current <= finish.Minutes() {
			return true
		}
	}
	return false
}

// OpenIDsAt returns the ids of all business hours open at the given instant.
// The result is the "must be open" set used by reconciliation.
func OpenIDsAt(hours []*BusinessHour, now time.Time) []string {
	ids := make([]string, 0, len(hours))
	for _, bh := range hours {
		if IsOpenAt(bh, now) {
			ids = append(ids, bh.ID)
		}
	}
	return ids
}

// shiftToUTC converts a local wall-clock time to its UTC equivalent for a
// fixed offset, wrapping within a single day. Fractional offsets (e.g. +5.5)
// are supported at minute precision.
func shiftToUTC(t TimeOfDay, utcOffsetHours float64) TimeOfDay {
	offsetMinutes := int(utcOffsetHours * 60)
	return TimeOfDayFromMinutes(t.Minutes() - offsetMinutes)
}

// ScheduleTrigger is one distinct (day, time, offset) tuple the external
// scheduler must fire an open/close event for. Time is already adjusted to
// UTC.
type ScheduleTrigger struct {
	Day       Weekday   `json:"day"`
	Time      TimeOfDay `json:"time"`
	UTCOffset float64   `json:"utcOffset"`
}

// ScheduleTriggers derives the deterministic, duplicate-free trigger set from
// every active business hour's start and finish boundaries.
func ScheduleTriggers(hours []*BusinessHour) []ScheduleTrigger {
	seen := make(map[ScheduleTrigger]bool)
	var triggers []ScheduleTrigger

	for _, bh := range hours {
		if bh == nil || !bh.Active {
			continue
		}
		for _, wh := range bh.WorkHours {
			for _, boundary := range [2]TimeOfDay{wh.Start, wh.Finish} {
				trigger := ScheduleTrigger{
					Day:       wh.Day,
					Time:      shiftToUTC(boundary, bh.Timezone.UTCOffset),
					UTCOffset: bh.Timezone.UTCOffset,
				}
				if !seen[trigger] {
					seen[trigger] = true
					triggers = append(triggers, trigger)
				}
			}
		}
	}

	sort.Slice(triggers, func(i, j int) bool {
		if triggers[i].Day != triggers[j].Day {
			return weekdayOrdinal(triggers[i].Day) < weekdayOrdinal(triggers[j].Day)
		}
		if triggers[i].Time.Minutes() != triggers[j].Time.Minutes() {
			return triggers[i].Time.Minutes() < triggers[j].Time.Minutes()
		}
		return triggers[i].UTCOffset < triggers[j].UTCOffset
	})

	return triggers
}

func weekdayOrdinal(d Weekday) int {
	for i, name := range weekdayNames {
		if name == d {
			return i
		}
	}
	return len(weekdayNames)
}
