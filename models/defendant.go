package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// NameProperties is the structured name of a defendant
type NameProperties struct {
	Title     string `json:"title,omitempty"`
	Forename1 string `json:"forename1,omitempty"`
	Forename2 string `json:"forename2,omitempty"`
	Forename3 string `json:"forename3,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

// FullName joins the non-empty name parts with single spaces
func (n NameProperties) FullName() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{n.Title, n.Forename1, n.Forename2, n.Forename3, n.Surname} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AddressProperties is the structured postal address of a defendant
type AddressProperties struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Line3    string `json:"line3,omitempty"`
	Line4    string `json:"line4,omitempty"`
	Line5    string `json:"line5,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// Defendant is a party to a case, owned by exactly one CourtCase
type Defendant struct {
	Identity

	CourtCaseID uint       `gorm:"not null;index" json:"-"`
	CourtCase   *CourtCase `gorm:"-" json:"-"`

	DefendantID string `gorm:"not null;index" json:"defendantId"`

	// OffenderCRN is the foreign key column; Offender is the linked record
	OffenderCRN *string   `gorm:"column:crn;index" json:"-"`
	Offender    *Offender `gorm:"foreignKey:OffenderCRN;references:CRN" json:"offender,omitempty"`

	DefendantName string             `gorm:"not null" json:"defendantName"`
	Name          NameProperties     `gorm:"-" json:"name"`
	Address       *AddressProperties `gorm:"-" json:"address,omitempty"`
	// NameJSON and AddressJSON are encoded by the repository from Name and Address
	NameJSON    datatypes.JSON `gorm:"column:name;not null" json:"-"`
	AddressJSON datatypes.JSON `gorm:"column:address" json:"-"`

	Type         DefendantType `gorm:"size:20;not null;default:PERSON" json:"type"`
	PNC          *string       `json:"pnc,omitempty"`
	CRO          *string       `json:"cro,omitempty"`
	DateOfBirth  *time.Time    `json:"dateOfBirth,omitempty"`
	Sex          Sex           `gorm:"size:10;not null;default:UNKNOWN" json:"sex"`
	Nationality1 *string       `json:"nationality1,omitempty"`
	Nationality2 *string       `json:"nationality2,omitempty"`

	PreviouslyKnownTerminationDate *time.Time `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         bool       `gorm:"not null;default:false" json:"suspendedSentenceOrder"`
	Breach                         bool       `gorm:"not null;default:false" json:"breach"`
	PreSentenceActivity            bool       `gorm:"not null;default:false" json:"preSentenceActivity"`
	AwaitingPsr                    bool       `gorm:"not null;default:false" json:"awaitingPsr"`
	ProbationStatus                string     `gorm:"not null" json:"probationStatus"`

	Offences []DefendantOffence `gorm:"foreignKey:DefendantRecordID" json:"offences"`
}

// TableName specifies the table name for Defendant model
func (Defendant) TableName() string {
	return "defendants"
}

// CRN returns the case reference number of the linked offender, empty when unlinked
func (d *Defendant) CRN() string {
	if d.Offender != nil {
		return d.Offender.CRN
	}
	if d.OffenderCRN != nil {
		return *d.OffenderCRN
	}
	return ""
}

// Surname returns the structured surname, falling back to the last word of the display name
func (d *Defendant) Surname() string {
	if d.Name.Surname != "" {
		return d.Name.Surname
	}
	return d.DefendantName[strings.LastIndex(d.DefendantName, " ")+1:]
}

// Link points every offence at this defendant
func (d *Defendant) Link() {
	for i := range d.Offences {
		d.Offences[i].Defendant = d
	}
}

// DefendantOffence is an offence charged against a single defendant
type DefendantOffence struct {
	Identity

	DefendantRecordID uint       `gorm:"not null;index" json:"-"`
	Defendant         *Defendant `gorm:"-" json:"-"`

	Sequence int     `gorm:"not null" json:"sequence"`
	Title    string  `gorm:"type:text;not null" json:"title"`
	Summary  string  `gorm:"type:text;not null" json:"summary"`
	Act      *string `json:"act,omitempty"`
}

// TableName specifies the table name for DefendantOffence model
func (DefendantOffence) TableName() string {
	return "defendant_offences"
}

// Offender is the linkage to a person in the offender-management system, keyed by CRN
type Offender struct {
	Identity

	CRN                            string          `gorm:"size:20;not null;uniqueIndex" json:"crn"`
	ProbationStatus                ProbationStatus `gorm:"size:30" json:"probationStatus,omitempty"`
	PreviouslyKnownTerminationDate *time.Time      `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         bool            `gorm:"not null;default:false" json:"suspendedSentenceOrder"`
	Breach                         bool            `gorm:"not null;default:false" json:"breach"`
	PreSentenceActivity            bool            `gorm:"not null;default:false" json:"preSentenceActivity"`
	AwaitingPsr                    bool            `gorm:"not null;default:false" json:"awaitingPsr"`
}

// TableName specifies the table name for Offender model
func (Offender) TableName() string {
	return "offenders"
}
