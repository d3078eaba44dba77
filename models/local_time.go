package models

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	localDateLayout     = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
)

// LocalDate is a calendar date exchanged as yyyy-MM-dd
type LocalDate time.Time

// NewLocalDate returns a LocalDate pointer for t, nil for the zero time
func NewLocalDate(t *time.Time) *LocalDate {
	if t == nil || t.IsZero() {
		return nil
	}
	d := LocalDate(HearingDayOf(*t))
	return &d
}

// Time returns the date as UTC midnight
func (d LocalDate) Time() time.Time {
	return time.Time(d)
}

// Ptr returns a pointer to the underlying time, nil for a nil date
func (d *LocalDate) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

func (d LocalDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(localDateLayout))
}

func (d *LocalDate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(localDateLayout, s)
	if err != nil {
		return err
	}
	*d = LocalDate(t)
	return nil
}

// LocalDateTime is a wall-clock timestamp exchanged without a zone, yyyy-MM-ddTHH:mm:ss.
// RFC 3339 input is accepted and reduced to its wall-clock fields.
type LocalDateTime time.Time

// Time returns the timestamp in UTC
func (t LocalDateTime) Time() time.Time {
	return time.Time(t)
}

// IsZero reports whether the timestamp was never set
func (t LocalDateTime) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(localDateTimeLayout))
}

func (t *LocalDateTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(localDateTimeLayout, s)
	if err != nil {
		withZone, zoneErr := time.Parse(time.RFC3339, s)
		if zoneErr != nil {
			return err
		}
		parsed = time.Date(withZone.Year(), withZone.Month(), withZone.Day(),
			withZone.Hour(), withZone.Minute(), withZone.Second(), 0, time.UTC)
	}
	*t = LocalDateTime(parsed)
	return nil
}
