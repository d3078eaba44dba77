package models

import (
	"sort"
	"time"
)

// OffenceResponse is a defendant offence as returned by the API
type OffenceResponse struct {
	SequenceNumber int     `json:"sequenceNumber"`
	OffenceTitle   string  `json:"offenceTitle"`
	OffenceSummary string  `json:"offenceSummary"`
	Act            *string `json:"act,omitempty"`
}

// CourtCaseResponse is the single-defendant view of a case
type CourtCaseResponse struct {
	CaseID           string        `json:"caseId"`
	CaseNo           *string       `json:"caseNo,omitempty"`
	CourtCode        string        `json:"courtCode"`
	CourtRoom        string        `json:"courtRoom"`
	Source           SourceType    `json:"source"`
	SessionStartTime LocalDateTime `json:"sessionStartTime"`
	Session          CourtSession  `json:"session"`
	ListNo           *string       `json:"listNo,omitempty"`

	Offences []OffenceResponse `json:"offences"`

	ProbationStatus                string     `json:"probationStatus"`
	ProbationStatusActual          *string    `json:"probationStatusActual"`
	PreviouslyKnownTerminationDate *LocalDate `json:"previouslyKnownTerminationDate,omitempty"`
	SuspendedSentenceOrder         bool       `json:"suspendedSentenceOrder"`
	Breach                         bool       `json:"breach"`
	PreSentenceActivity            bool       `json:"preSentenceActivity"`
	AwaitingPsr                    bool       `json:"awaitingPsr"`

	DefendantID      string             `json:"defendantId"`
	DefendantName    string             `json:"defendantName"`
	Name             NameProperties     `json:"name"`
	DefendantAddress *AddressProperties `json:"defendantAddress,omitempty"`
	DefendantDob     *LocalDate         `json:"defendantDob,omitempty"`
	DefendantSex     string             `json:"defendantSex"`
	DefendantType    DefendantType      `json:"defendantType"`
	CRN              *string            `json:"crn,omitempty"`
	PNC              *string            `json:"pnc,omitempty"`
	CRO              *string            `json:"cro,omitempty"`
	Nationality1     *string            `json:"nationality1,omitempty"`
	Nationality2     *string            `json:"nationality2,omitempty"`

	NumberOfPossibleMatches int `json:"numberOfPossibleMatches"`
}

// CaseListResponse wraps the rows of a court list
type CaseListResponse struct {
	Cases []CourtCaseResponse `json:"cases"`
}

// NewCourtCaseResponse renders one defendant of a case. hearing selects the sitting to
// report; nil means the earliest hearing of the case.
func NewCourtCaseResponse(c *CourtCase, d *Defendant, hearing *Hearing, possibleMatches int) CourtCaseResponse {
	if hearing == nil {
		hearing, _ = c.FirstHearing()
	}

	resp := CourtCaseResponse{
		CaseID:                  c.CaseID,
		CaseNo:                  c.CaseNo,
		Source:                  c.SourceType,
		DefendantID:             d.DefendantID,
		DefendantName:           d.DefendantName,
		Name:                    d.Name,
		DefendantAddress:        d.Address,
		DefendantDob:            NewLocalDate(d.DateOfBirth),
		DefendantSex:            d.Sex.ShortCode(),
		DefendantType:           d.Type,
		PNC:                     d.PNC,
		CRO:                     d.CRO,
		Nationality1:            d.Nationality1,
		Nationality2:            d.Nationality2,
		NumberOfPossibleMatches: possibleMatches,
		Offences:                make([]OffenceResponse, 0, len(d.Offences)),
	}

	if hearing != nil {
		start := hearing.SessionStartTime()
		resp.CourtCode = hearing.CourtCode
		resp.CourtRoom = hearing.CourtRoom
		resp.SessionStartTime = LocalDateTime(start)
		resp.Session = hearing.Session()
		resp.ListNo = hearing.ListNo
	}

	for _, o := range d.Offences {
		resp.Offences = append(resp.Offences, OffenceResponse{
			SequenceNumber: o.Sequence,
			OffenceTitle:   o.Title,
			OffenceSummary: o.Summary,
			Act:            o.Act,
		})
	}
	sort.SliceStable(resp.Offences, func(i, j int) bool {
		return resp.Offences[i].SequenceNumber < resp.Offences[j].SequenceNumber
	})

	crn := d.CRN()
	statusCode := d.ProbationStatus
	terminated := d.PreviouslyKnownTerminationDate
	resp.SuspendedSentenceOrder = d.SuspendedSentenceOrder
	resp.Breach = d.Breach
	resp.PreSentenceActivity = d.PreSentenceActivity
	resp.AwaitingPsr = d.AwaitingPsr
	if o := d.Offender; o != nil {
		// the defendant carries the reconciled status; the offender row only fills a gap
		if statusCode == "" {
			statusCode = o.ProbationStatus.String()
		}
		terminated = o.PreviouslyKnownTerminationDate
		resp.SuspendedSentenceOrder = o.SuspendedSentenceOrder
		resp.Breach = o.Breach
		resp.PreSentenceActivity = o.PreSentenceActivity
		resp.AwaitingPsr = o.AwaitingPsr
	}
	resp.PreviouslyKnownTerminationDate = NewLocalDate(terminated)
	resp.ProbationStatus = DeriveProbationStatus(crn, possibleMatches, statusCode).Name()
	if crn != "" {
		resp.CRN = &crn
		if statusCode != "" {
			actual := ProbationStatusOf(statusCode).String()
			resp.ProbationStatusActual = &actual
		}
	}
	return resp
}

// SortCaseList orders rows by court room, then session start, then defendant surname
func SortCaseList(rows []CourtCaseResponse) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.CourtRoom != b.CourtRoom {
			return a.CourtRoom < b.CourtRoom
		}
		at, bt := time.Time(a.SessionStartTime), time.Time(b.SessionStartTime)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return rowSurname(a) < rowSurname(b)
	})
}

func rowSurname(r CourtCaseResponse) string {
	d := Defendant{Name: r.Name, DefendantName: r.DefendantName}
	return d.Surname()
}
