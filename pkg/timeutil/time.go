package timeutil

import "time"

// DateLayout is the wire format for billing dates (ISO 8601 date only).
const DateLayout = "2006-01-02"

// Now returns the current time in UTC. Renewal due-date comparisons all
// happen in UTC, so callers should never use time.Now() directly.
func Now() time.Time {
	return time.Now().UTC()
}

// ParseBillingDate parses an ISO date string into a UTC time at midnight.
func ParseBillingDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StartOfDay returns midnight UTC for the given time's date.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
