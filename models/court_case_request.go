package models

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Offence text arrives from listing systems and is stored as plain text
var offenceTextPolicy = bluemonday.StrictPolicy()

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(offenceTextPolicy.Sanitize(s)))
}

// OffenceRequest is a single offence as exchanged over the API
type OffenceRequest struct {
	SequenceNumber int     `json:"sequenceNumber,omitempty"`
	OffenceTitle   string  `json:"offenceTitle"`
	OffenceSummary string  `json:"offenceSummary"`
	Act            *string `json:"act,omitempty"`
}

func (o OffenceRequest) validate(index int) error {
	if strings.TrimSpace(o.OffenceTitle) == "" {
		return fmt.Errorf("%w: offences[%d].offenceTitle is required", ErrInvalidRequest, index)
	}
	if strings.TrimSpace(o.OffenceSummary) == "" {
		return fmt.Errorf("%w: offences[%d].offenceSummary is required", ErrInvalidRequest, index)
	}
	return nil
}

// CourtCaseRequest is the flat single-defendant payload accepted by
// PUT /case/:caseId/defendant/:defendantId
type CourtCaseRequest struct {
	CaseID           string        `json:"caseId"`
	CaseNo           *string       `json:"caseNo,omitempty"`
	CourtCode        string        `json:"courtCode"`
	CourtRoom        string        `json:"courtRoom"`
	Source           string        `json:"source,omitempty"`
	SessionStartTime LocalDateTime `json:"sessionStartTime"`
	ListNo           *string       `json:"listNo,omitempty"`

	ProbationStatus                *string    `json:"probationStatus,omitempty"`
	PreviouslyKnownTerminationDate *LocalDate `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         *bool      `json:"suspendedSentenceOrder,omitempty"`
	Breach                         *bool      `json:"breach,omitempty"`
	PreSentenceActivity            *bool      `json:"preSentenceActivity,omitempty"`
	AwaitingPsr                    *bool      `json:"awaitingPsr,omitempty"`

	Offences []OffenceRequest `json:"offences"`

	Name             *NameProperties    `json:"name"`
	DefendantName    string             `json:"defendantName"`
	DefendantAddress *AddressProperties `json:"defendantAddress,omitempty"`
	DefendantDob     *LocalDate         `json:"defendantDob,omitempty"`
	DefendantSex     *string            `json:"defendantSex,omitempty"`
	DefendantType    DefendantType      `json:"defendantType"`
	// DefendantID is generated when absent
	DefendantID  *string `json:"defendantId,omitempty"`
	CRN          *string `json:"crn,omitempty"`
	PNC          *string `json:"pnc,omitempty"`
	CRO          *string `json:"cro,omitempty"`
	Nationality1 *string `json:"nationality1,omitempty"`
	Nationality2 *string `json:"nationality2,omitempty"`
}

// Validate rejects payloads missing required fields
func (r *CourtCaseRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.CaseID) == "":
		return fmt.Errorf("%w: caseId is required", ErrInvalidRequest)
	case strings.TrimSpace(r.CourtCode) == "":
		return fmt.Errorf("%w: courtCode is required", ErrInvalidRequest)
	case strings.TrimSpace(r.CourtRoom) == "":
		return fmt.Errorf("%w: courtRoom is required", ErrInvalidRequest)
	case r.SessionStartTime.IsZero():
		return fmt.Errorf("%w: sessionStartTime is required", ErrInvalidRequest)
	case len(r.Offences) == 0:
		return fmt.Errorf("%w: at least one offence is required", ErrInvalidRequest)
	case r.Name == nil:
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case strings.TrimSpace(r.DefendantName) == "":
		return fmt.Errorf("%w: defendantName is required", ErrInvalidRequest)
	case !r.DefendantType.IsValid():
		return fmt.Errorf("%w: defendantType must be PERSON or ORGANISATION", ErrInvalidRequest)
	}
	for i, o := range r.Offences {
		if err := o.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// AsEntity builds a complete, unsaved case graph. It never consults storage.
func (r *CourtCaseRequest) AsEntity() *CourtCase {
	offences := make([]Offence, len(r.Offences))
	for i, o := range r.Offences {
		offences[i] = Offence{
			SequenceNumber: i + 1,
			OffenceTitle:   cleanText(o.OffenceTitle),
			OffenceSummary: cleanText(o.OffenceSummary),
			Act:            o.Act,
		}
	}

	hearings := []Hearing{NewHearing(r.CourtCode, r.CourtRoom, r.SessionStartTime.Time(), r.ListNo)}

	c := &CourtCase{
		CaseID:                         r.CaseID,
		CaseNo:                         r.CaseNo,
		SourceType:                     ParseSourceType(r.Source),
		ProbationStatus:                r.ProbationStatus,
		PreviouslyKnownTerminationDate: r.PreviouslyKnownTerminationDate.Ptr(),
		SuspendedSentenceOrder:         r.SuspendedSentenceOrder,
		Breach:                         r.Breach,
		PreSentenceActivity:            r.PreSentenceActivity,
		AwaitingPsr:                    r.AwaitingPsr,
		Hearings:                       hearings,
		Offences:                       offences,
		Defendants:                     []Defendant{r.buildDefendant(offences)},
	}
	return c.Link()
}

func (r *CourtCaseRequest) buildDefendant(caseOffences []Offence) Defendant {
	defendantOffences := make([]DefendantOffence, len(caseOffences))
	for i, o := range caseOffences {
		defendantOffences[i] = DefendantOffence{
			Sequence: o.SequenceNumber,
			Title:    o.OffenceTitle,
			Summary:  o.OffenceSummary,
			Act:      o.Act,
		}
	}

	defendantID := uuid.New().String()
	if r.DefendantID != nil && strings.TrimSpace(*r.DefendantID) != "" {
		defendantID = *r.DefendantID
	}

	var name NameProperties
	if r.Name != nil {
		name = *r.Name
	}

	d := Defendant{
		DefendantID:                    defendantID,
		DefendantName:                  r.DefendantName,
		Name:                           name,
		Address:                        r.DefendantAddress,
		Type:                           r.DefendantType,
		PNC:                            r.PNC,
		CRO:                            r.CRO,
		DateOfBirth:                    r.DefendantDob.Ptr(),
		Sex:                            ParseSex(r.DefendantSex),
		Nationality1:                   r.Nationality1,
		Nationality2:                   r.Nationality2,
		PreviouslyKnownTerminationDate: r.PreviouslyKnownTerminationDate.Ptr(),
		SuspendedSentenceOrder:         boolOrFalse(r.SuspendedSentenceOrder),
		Breach:                         boolOrFalse(r.Breach),
		PreSentenceActivity:            boolOrFalse(r.PreSentenceActivity),
		AwaitingPsr:                    boolOrFalse(r.AwaitingPsr),
		ProbationStatus:                ProbationStatusOf(stringOrEmpty(r.ProbationStatus)).String(),
		Offences:                       defendantOffences,
	}
	if crn := stringOrEmpty(r.CRN); crn != "" {
		d.OffenderCRN = &crn
		d.Offender = &Offender{
			CRN:                            crn,
			ProbationStatus:                ProbationStatusOf(stringOrEmpty(r.ProbationStatus)),
			PreviouslyKnownTerminationDate: r.PreviouslyKnownTerminationDate.Ptr(),
			SuspendedSentenceOrder:         boolOrFalse(r.SuspendedSentenceOrder),
			Breach:                         boolOrFalse(r.Breach),
			PreSentenceActivity:            boolOrFalse(r.PreSentenceActivity),
			AwaitingPsr:                    boolOrFalse(r.AwaitingPsr),
		}
	}
	return d
}

// HearingRequest is one hearing of an extended payload
type HearingRequest struct {
	CourtCode        string        `json:"courtCode"`
	CourtRoom        string        `json:"courtRoom"`
	SessionStartTime LocalDateTime `json:"sessionStartTime"`
	ListNo           *string       `json:"listNo,omitempty"`
}

// DefendantRequest is one defendant of an extended payload
type DefendantRequest struct {
	DefendantID   string             `json:"defendantId"`
	DefendantName string             `json:"defendantName,omitempty"`
	Name          NameProperties     `json:"name"`
	Address       *AddressProperties `json:"address,omitempty"`
	DateOfBirth   *LocalDate         `json:"dateOfBirth,omitempty"`
	Sex           *string            `json:"sex,omitempty"`
	Type          DefendantType      `json:"type"`
	CRN           *string            `json:"crn,omitempty"`
	PNC           *string            `json:"pnc,omitempty"`
	CRO           *string            `json:"cro,omitempty"`
	Nationality1  *string            `json:"nationality1,omitempty"`
	Nationality2  *string            `json:"nationality2,omitempty"`

	ProbationStatus                *string    `json:"probationStatus,omitempty"`
	PreviouslyKnownTerminationDate *LocalDate `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         *bool      `json:"suspendedSentenceOrder,omitempty"`
	Breach                         *bool      `json:"breach,omitempty"`
	PreSentenceActivity            *bool      `json:"preSentenceActivity,omitempty"`
	AwaitingPsr                    *bool      `json:"awaitingPsr,omitempty"`

	Offences []OffenceRequest `json:"offences"`
}

// ExtendedCourtCaseRequest carries a whole case with any number of hearings and
// defendants. It is also the shape returned by GET /case/:caseId/extended.
type ExtendedCourtCaseRequest struct {
	CaseID     string             `json:"caseId"`
	CaseNo     *string            `json:"caseNo,omitempty"`
	Source     string             `json:"source,omitempty"`
	Hearings   []HearingRequest   `json:"hearings"`
	Defendants []DefendantRequest `json:"defendants"`
}

// Validate rejects payloads missing required fields
func (r *ExtendedCourtCaseRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" {
		return fmt.Errorf("%w: caseId is required", ErrInvalidRequest)
	}
	if len(r.Hearings) == 0 {
		return fmt.Errorf("%w: at least one hearing is required", ErrInvalidRequest)
	}
	if len(r.Defendants) == 0 {
		return fmt.Errorf("%w: at least one defendant is required", ErrInvalidRequest)
	}
	for i, h := range r.Hearings {
		if strings.TrimSpace(h.CourtCode) == "" || strings.TrimSpace(h.CourtRoom) == "" || h.SessionStartTime.IsZero() {
			return fmt.Errorf("%w: hearings[%d] requires courtCode, courtRoom and sessionStartTime", ErrInvalidRequest, i)
		}
	}
	for i, d := range r.Defendants {
		if strings.TrimSpace(d.DefendantID) == "" {
			return fmt.Errorf("%w: defendants[%d].defendantId is required", ErrInvalidRequest, i)
		}
		if !d.Type.IsValid() {
			return fmt.Errorf("%w: defendants[%d].type must be PERSON or ORGANISATION", ErrInvalidRequest, i)
		}
		if d.Name.FullName() == "" && strings.TrimSpace(d.DefendantName) == "" {
			return fmt.Errorf("%w: defendants[%d].name is required", ErrInvalidRequest, i)
		}
		for j, o := range d.Offences {
			if err := o.validate(j); err != nil {
				return fmt.Errorf("defendants[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// AsCourtCase builds a complete, unsaved case graph from the extended payload
func (r *ExtendedCourtCaseRequest) AsCourtCase() *CourtCase {
	hearings := make([]Hearing, len(r.Hearings))
	for i, h := range r.Hearings {
		hearings[i] = NewHearing(h.CourtCode, h.CourtRoom, h.SessionStartTime.Time(), h.ListNo)
	}

	defendants := make([]Defendant, len(r.Defendants))
	for i, d := range r.Defendants {
		defendants[i] = d.asEntity()
	}

	c := &CourtCase{
		CaseID:     r.CaseID,
		CaseNo:     r.CaseNo,
		SourceType: ParseSourceType(r.Source),
		Hearings:   hearings,
		Offences:   []Offence{},
		Defendants: defendants,
	}
	return c.Link()
}

func (d DefendantRequest) asEntity() Defendant {
	offences := make([]DefendantOffence, len(d.Offences))
	for i, o := range d.Offences {
		offences[i] = DefendantOffence{
			Sequence: i + 1,
			Title:    cleanText(o.OffenceTitle),
			Summary:  cleanText(o.OffenceSummary),
			Act:      o.Act,
		}
	}

	name := d.DefendantName
	if strings.TrimSpace(name) == "" {
		name = d.Name.FullName()
	}

	defendant := Defendant{
		DefendantID:                    d.DefendantID,
		DefendantName:                  name,
		Name:                           d.Name,
		Address:                        d.Address,
		Type:                           d.Type,
		PNC:                            d.PNC,
		CRO:                            d.CRO,
		DateOfBirth:                    d.DateOfBirth.Ptr(),
		Sex:                            ParseSex(d.Sex),
		Nationality1:                   d.Nationality1,
		Nationality2:                   d.Nationality2,
		PreviouslyKnownTerminationDate: d.PreviouslyKnownTerminationDate.Ptr(),
		SuspendedSentenceOrder:         boolOrFalse(d.SuspendedSentenceOrder),
		Breach:                         boolOrFalse(d.Breach),
		PreSentenceActivity:            boolOrFalse(d.PreSentenceActivity),
		AwaitingPsr:                    boolOrFalse(d.AwaitingPsr),
		ProbationStatus:                ProbationStatusOf(stringOrEmpty(d.ProbationStatus)).String(),
		Offences:                       offences,
	}
	if crn := stringOrEmpty(d.CRN); crn != "" {
		defendant.OffenderCRN = &crn
		defendant.Offender = &Offender{
			CRN:                            crn,
			ProbationStatus:                ProbationStatusOf(stringOrEmpty(d.ProbationStatus)),
			PreviouslyKnownTerminationDate: d.PreviouslyKnownTerminationDate.Ptr(),
			SuspendedSentenceOrder:         defendant.SuspendedSentenceOrder,
			Breach:                         defendant.Breach,
			PreSentenceActivity:            defendant.PreSentenceActivity,
			AwaitingPsr:                    defendant.AwaitingPsr,
		}
	}
	return defendant
}

// NewExtendedCourtCase renders a persisted case back into the extended shape
func NewExtendedCourtCase(c *CourtCase) ExtendedCourtCaseRequest {
	out := ExtendedCourtCaseRequest{
		CaseID:     c.CaseID,
		CaseNo:     c.CaseNo,
		Source:     string(c.SourceType),
		Hearings:   make([]HearingRequest, len(c.Hearings)),
		Defendants: make([]DefendantRequest, len(c.Defendants)),
	}
	for i, h := range c.Hearings {
		out.Hearings[i] = HearingRequest{
			CourtCode:        h.CourtCode,
			CourtRoom:        h.CourtRoom,
			SessionStartTime: LocalDateTime(h.SessionStartTime()),
			ListNo:           h.ListNo,
		}
	}
	for i := range c.Defendants {
		d := &c.Defendants[i]
		sex := string(d.Sex)
		status := d.ProbationStatus
		dr := DefendantRequest{
			DefendantID:                    d.DefendantID,
			DefendantName:                  d.DefendantName,
			Name:                           d.Name,
			Address:                        d.Address,
			DateOfBirth:                    NewLocalDate(d.DateOfBirth),
			Sex:                            &sex,
			Type:                           d.Type,
			PNC:                            d.PNC,
			CRO:                            d.CRO,
			Nationality1:                   d.Nationality1,
			Nationality2:                   d.Nationality2,
			ProbationStatus:                &status,
			PreviouslyKnownTerminationDate: NewLocalDate(d.PreviouslyKnownTerminationDate),
			SuspendedSentenceOrder:         &d.SuspendedSentenceOrder,
			Breach:                         &d.Breach,
			PreSentenceActivity:            &d.PreSentenceActivity,
			AwaitingPsr:                    &d.AwaitingPsr,
			Offences:                       make([]OffenceRequest, len(d.Offences)),
		}
		if crn := d.CRN(); crn != "" {
			dr.CRN = &crn
		}
		for j, o := range d.Offences {
			dr.Offences[j] = OffenceRequest{
				SequenceNumber: o.Sequence,
				OffenceTitle:   o.Title,
				OffenceSummary: o.Summary,
				Act:            o.Act,
			}
		}
		out.Defendants[i] = dr
	}
	return out
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
