package services

import (
	"fmt"
	"time"

	"court_case_service/models"
)

// ParseDate parses a court list date (YYYY-MM-DD)
func ParseDate(dateStr string) (time.Time, error) {
	layout := "2006-01-02"

	parsedTime, err := time.Parse(layout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be given as yyyy-MM-dd", models.ErrInvalidRequest)
	}

	return parsedTime, nil
}

// ParseDateTime parses an ISO local date-time such as 2021-03-01T09:30:00. Values carrying
// an offset keep their wall clock time.
func ParseDateTime(value string) (time.Time, error) {
	var dt models.LocalDateTime
	if err := dt.UnmarshalJSON([]byte(`"` + value + `"`)); err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an ISO date-time", models.ErrInvalidRequest, value)
	}
	return dt.Time(), nil
}
