package services

import (
	"testing"
	"time"

	"court_case_service/models"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "Valid date",
			input:    "2021-03-01",
			expected: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
			wantErr:  false,
		},
		{
			name:    "Invalid format",
			input:   "01-03-2021",
			wantErr: true,
		},
		{
			name:    "Invalid day",
			input:   "2021-02-30",
			wantErr: true,
		},
		{
			name:    "Empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2021-03-01T09:30:00")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 1, 9, 30, 0, 0, time.UTC), got)

	_, err = ParseDateTime("yesterday")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}
