// Package attendance collapses raw terminal scans into one
// inbound/outbound record per person per day.
package attendance

import (
	"sort"
	"strings"

	"github.com/HerbHall/gatesync/pkg/models"
)

// Threshold is the time-of-day boundary separating check-in scans from
// check-out scans.
type Threshold struct {
	Hour   int
	Minute int
}

// after reports whether clock "HH:MM:SS" falls at or after the
// threshold: hour strictly greater, or equal hour with minute at or
// past the threshold minute. Seconds are ignored on the threshold side.
func (th Threshold) after(clock string) bool {
	if len(clock) < 5 {
		return false
	}
	hour := int(clock[0]-'0')*10 + int(clock[1]-'0')
	minute := int(clock[3]-'0')*10 + int(clock[4]-'0')
	return hour > th.Hour || (hour == th.Hour && minute >= th.Minute)
}

// Aggregate reduces raw events to per-person records. Events with an
// empty or zero person identifier are discarded, as are events whose
// timestamp carries no parseable clock component. TimeIn is the
// earliest surviving event; TimeOut is the latest event at or after the
// threshold, and is omitted when no event crosses it — a lone morning
// badge-in is not evidence of departure.
func Aggregate(events []models.RawEvent, threshold Threshold) []models.AttendanceRecord {
	byPerson := make(map[string][]string)
	var order []string

	for _, event := range events {
		person := strings.TrimSpace(event.PersonID)
		if discardPersonID(person) {
			continue
		}
		clock := clockOf(event.Time)
		if clock == "" {
			continue
		}
		if _, seen := byPerson[person]; !seen {
			order = append(order, person)
		}
		byPerson[person] = append(byPerson[person], clock)
	}

	records := make([]models.AttendanceRecord, 0, len(order))
	for _, person := range order {
		clocks := byPerson[person]
		// Zero-padded, timezone-free "HH:MM:SS" sorts chronologically
		// as plain strings.
		sort.Strings(clocks)

		record := models.AttendanceRecord{
			PersonID: person,
			TimeIn:   clocks[0],
		}
		for _, clock := range clocks {
			if threshold.after(clock) {
				record.TimeOut = clock
			}
		}
		records = append(records, record)
	}
	return records
}

// discardPersonID reports whether the identifier means "nobody": empty,
// or a zero-equivalent numeric string.
func discardPersonID(id string) bool {
	if id == "" {
		return true
	}
	for i := 0; i < len(id); i++ {
		if id[i] != '0' {
			return false
		}
	}
	return true
}

// clockOf extracts the "HH:MM:SS" component from a device timestamp
// such as "2026-03-02T08:01:22" or "2026-03-02T08:01:22+05:30".
// Returns "" when no well-formed clock is present.
func clockOf(timestamp string) string {
	sep := strings.IndexByte(timestamp, 'T')
	if sep < 0 || len(timestamp) < sep+9 {
		return ""
	}
	clock := timestamp[sep+1 : sep+9]
	for i, r := range clock {
		if i == 2 || i == 5 {
			if r != ':' {
				return ""
			}
			continue
		}
		if r < '0' || r > '9' {
			return ""
		}
	}
	return clock
}
