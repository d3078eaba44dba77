package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// CourtCase is the root aggregate. It owns its hearings, case-level offences and defendants;
// CaseID is the natural key used for every lookup.
type CourtCase struct {
	Identity

	CaseID     string     `gorm:"not null;uniqueIndex" json:"caseId"`
	CaseNo     *string    `gorm:"index" json:"caseNo,omitempty"`
	SourceType SourceType `gorm:"size:20;not null;default:LIBRA" json:"source"`

	// Legacy probation fields kept for older consumers
	ProbationStatus                *string    `json:"probationStatus,omitempty"`
	PreviouslyKnownTerminationDate *time.Time `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         *bool      `json:"suspendedSentenceOrder,omitempty"`
	Breach                         *bool      `json:"breach,omitempty"`
	PreSentenceActivity            *bool      `json:"preSentenceActivity,omitempty"`
	AwaitingPsr                    *bool      `json:"awaitingPsr,omitempty"`

	Hearings   []Hearing   `gorm:"foreignKey:CourtCaseID" json:"hearings"`
	Offences   []Offence   `gorm:"foreignKey:CourtCaseID" json:"offences"`
	Defendants []Defendant `gorm:"foreignKey:CourtCaseID" json:"defendants"`
}

// TableName specifies the table name for CourtCase model
func (CourtCase) TableName() string {
	return "court_cases"
}

// Link points every owned child at this instance. It is always the last construction step
// so no child is left referring to a stale parent.
func (c *CourtCase) Link() *CourtCase {
	for i := range c.Hearings {
		c.Hearings[i].CourtCase = c
	}
	for i := range c.Offences {
		c.Offences[i].CourtCase = c
	}
	for i := range c.Defendants {
		c.Defendants[i].CourtCase = c
		c.Defendants[i].Link()
	}
	return c
}

// CourtCode returns the court code of the first hearing, empty if none
func (c *CourtCase) CourtCode() string {
	if len(c.Hearings) == 0 {
		return ""
	}
	return c.Hearings[0].CourtCode
}

// FirstHearing returns the earliest listed hearing
func (c *CourtCase) FirstHearing() (*Hearing, bool) {
	if len(c.Hearings) == 0 {
		return nil, false
	}
	first := &c.Hearings[0]
	for i := range c.Hearings[1:] {
		h := &c.Hearings[i+1]
		if h.SessionStartTime().Before(first.SessionStartTime()) {
			first = h
		}
	}
	return first, true
}

// FindDefendant looks a defendant up by its external identifier
func (c *CourtCase) FindDefendant(defendantID string) (*Defendant, bool) {
	for i := range c.Defendants {
		if c.Defendants[i].DefendantID == defendantID {
			return &c.Defendants[i], true
		}
	}
	return nil, false
}

// CheckDefendants returns ErrNoDefendants when the graph has no defendant at all
func (c *CourtCase) CheckDefendants() error {
	if len(c.Defendants) == 0 {
		return fmt.Errorf("%w: case %s", ErrNoDefendants, c.CaseID)
	}
	return nil
}

// Hearing is one scheduled sitting of a case
type Hearing struct {
	Identity

	CourtCaseID uint       `gorm:"not null;index" json:"-"`
	CourtCase   *CourtCase `gorm:"-" json:"-"`

	HearingDay  datatypes.Date `gorm:"not null;index" json:"hearingDay"`
	HearingTime datatypes.Time `gorm:"not null" json:"hearingTime"`
	CourtCode   string         `gorm:"size:10;not null;index" json:"courtCode"`
	CourtRoom   string         `gorm:"not null" json:"courtRoom"`
	ListNo      *string        `json:"listNo,omitempty"`
}

// TableName specifies the table name for Hearing model
func (Hearing) TableName() string {
	return "hearings"
}

// NewHearing builds a hearing from a session start time. The day is normalised to UTC midnight.
func NewHearing(courtCode, courtRoom string, sessionStart time.Time, listNo *string) Hearing {
	return Hearing{
		HearingDay:  HearingDayOf(sessionStart),
		HearingTime: datatypes.NewTime(sessionStart.Hour(), sessionStart.Minute(), sessionStart.Second(), 0),
		CourtCode:   courtCode,
		CourtRoom:   courtRoom,
		ListNo:      listNo,
	}
}

// HearingDayOf truncates t to its calendar date in UTC
func HearingDayOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// SessionStartTime combines the hearing day and time
func (h Hearing) SessionStartTime() time.Time {
	return time.Time(h.HearingDay).Add(time.Duration(h.HearingTime))
}

// Session classifies the hearing into morning, afternoon or evening
func (h Hearing) Session() CourtSession {
	return CourtSessionFrom(h.SessionStartTime())
}

// LoggableString renders courtCode|courtRoom|dayTtime for telemetry and logs
func (h Hearing) LoggableString() string {
	start := h.SessionStartTime()
	return fmt.Sprintf("%s|%s|%sT%s", h.CourtCode, h.CourtRoom, start.Format("2006-01-02"), start.Format("15:04"))
}

// Offence is an entry in the flat, case-level offence list
type Offence struct {
	Identity

	CourtCaseID uint       `gorm:"not null;index" json:"-"`
	CourtCase   *CourtCase `gorm:"-" json:"-"`

	SequenceNumber int     `gorm:"not null" json:"sequenceNumber"`
	OffenceTitle   string  `gorm:"type:text;not null" json:"offenceTitle"`
	OffenceSummary string  `gorm:"type:text;not null" json:"offenceSummary"`
	Act            *string `json:"act,omitempty"`
}

// TableName specifies the table name for Offence model
func (Offence) TableName() string {
	return "offences"
}
