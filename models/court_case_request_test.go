package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func buildRequest() *CourtCaseRequest {
	return &CourtCaseRequest{
		CaseID:           "1f93aa0a-7e46-4885-a1cb-f25a4be33a00",
		CaseNo:           strPtr("1600032952"),
		CourtCode:        "B10JQ",
		CourtRoom:        "01",
		SessionStartTime: LocalDateTime(time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)),
		ProbationStatus:  strPtr("CURRENT"),
		Breach:           boolPtr(true),
		Offences: []OffenceRequest{
			{OffenceTitle: "Theft from a shop", OffenceSummary: "On 01/01/2016 at Town, stole Article, to the value of £100.00", Act: strPtr("Contrary to section 1(1) and 7 of the Theft Act 1968.")},
			{OffenceTitle: "Theft <b>from</b> a person", OffenceSummary: "Stole &amp; ran"},
		},
		Name:          &NameProperties{Title: "Mr", Forename1: "Gordon", Surname: "BENNETT"},
		DefendantName: "Mr Gordon BENNETT",
		DefendantSex:  strPtr("male"),
		DefendantType: DefendantTypePerson,
		CRN:           strPtr("X340906"),
		PNC:           strPtr("A/1234560BA"),
	}
}

func TestCourtCaseRequest_AsEntity(t *testing.T) {
	req := buildRequest()

	c := req.AsEntity()

	assert.Equal(t, req.CaseID, c.CaseID)
	assert.Equal(t, SourceTypeLibra, c.SourceType)
	assert.Equal(t, "CURRENT", *c.ProbationStatus)
	assert.False(t, c.HasIdentity())

	require.Len(t, c.Hearings, 1)
	assert.Equal(t, "B10JQ", c.Hearings[0].CourtCode)
	assert.Equal(t, CourtSessionMorning, c.Hearings[0].Session())
	assert.Same(t, c, c.Hearings[0].CourtCase)

	require.Len(t, c.Offences, 2)
	for i, o := range c.Offences {
		assert.Equal(t, i+1, o.SequenceNumber)
		assert.Same(t, c, o.CourtCase)
	}
	assert.Equal(t, "Theft from a person", c.Offences[1].OffenceTitle)
	assert.Equal(t, "Stole & ran", c.Offences[1].OffenceSummary)

	require.Len(t, c.Defendants, 1)
	d := &c.Defendants[0]
	assert.Same(t, c, d.CourtCase)
	assert.NotEmpty(t, d.DefendantID)
	assert.Equal(t, SexMale, d.Sex)
	assert.Equal(t, "CURRENT", d.ProbationStatus)
	assert.True(t, d.Breach)
	assert.False(t, d.AwaitingPsr)

	require.Len(t, d.Offences, 2)
	for i, o := range d.Offences {
		assert.Equal(t, c.Offences[i].SequenceNumber, o.Sequence)
		assert.Equal(t, c.Offences[i].OffenceTitle, o.Title)
		assert.Equal(t, c.Offences[i].OffenceSummary, o.Summary)
		assert.Equal(t, c.Offences[i].Act, o.Act)
		assert.Same(t, d, o.Defendant)
	}

	require.NotNil(t, d.Offender)
	assert.Equal(t, "X340906", d.CRN())
	assert.Equal(t, ProbationStatusCurrent, d.Offender.ProbationStatus)
	assert.True(t, d.Offender.Breach)
	assert.False(t, d.Offender.SuspendedSentenceOrder)
	assert.False(t, d.Offender.PreSentenceActivity)
}

func TestCourtCaseRequest_AsEntityKeepsSuppliedDefendantID(t *testing.T) {
	req := buildRequest()
	req.DefendantID = strPtr("0048297a-fd9c-4c96-8c03-8122b802a54d")
	req.CRN = nil

	c := req.AsEntity()

	d := &c.Defendants[0]
	assert.Equal(t, "0048297a-fd9c-4c96-8c03-8122b802a54d", d.DefendantID)
	assert.Nil(t, d.Offender)
	assert.Empty(t, d.CRN())
}

func TestCourtCaseRequest_Validate(t *testing.T) {
	assert.NoError(t, buildRequest().Validate())

	noOffences := buildRequest()
	noOffences.Offences = nil
	assert.True(t, errors.Is(noOffences.Validate(), ErrInvalidRequest))

	noName := buildRequest()
	noName.Name = nil
	assert.ErrorIs(t, noName.Validate(), ErrInvalidRequest)

	badType := buildRequest()
	badType.DefendantType = "ALIEN"
	assert.ErrorIs(t, badType.Validate(), ErrInvalidRequest)
}

func TestCourtCaseRequest_UnmarshalLocalTimes(t *testing.T) {
	body := `{"caseId":"1","courtCode":"B10JQ","courtRoom":"01","sessionStartTime":"2021-03-01T14:15:00",
		"defendantDob":"1958-12-14","offences":[]}`

	var req CourtCaseRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, time.Date(2021, 3, 1, 14, 15, 0, 0, time.UTC), req.SessionStartTime.Time())
	assert.Equal(t, time.Date(1958, 12, 14, 0, 0, 0, 0, time.UTC), req.DefendantDob.Time())
}

func TestExtendedCourtCaseRequest_AsCourtCase(t *testing.T) {
	req := ExtendedCourtCaseRequest{
		CaseID: "case-1",
		Source: "COMMON_PLATFORM",
		Hearings: []HearingRequest{
			{CourtCode: "B10JQ", CourtRoom: "01", SessionStartTime: LocalDateTime(time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC))},
			{CourtCode: "B10JQ", CourtRoom: "02", SessionStartTime: LocalDateTime(time.Date(2021, 3, 2, 14, 0, 0, 0, time.UTC))},
		},
		Defendants: []DefendantRequest{
			{DefendantID: "d1", Name: NameProperties{Forename1: "Una", Surname: "STUBBS"}, Type: DefendantTypePerson, CRN: strPtr("D99999"),
				Offences: []OffenceRequest{{OffenceTitle: "Title", OffenceSummary: "Summary"}}},
			{DefendantID: "d2", DefendantName: "Acme Ltd", Type: DefendantTypeOrganisation},
		},
	}
	require.NoError(t, req.Validate())

	c := req.AsCourtCase()

	assert.Equal(t, SourceTypeCommonPlatform, c.SourceType)
	require.Len(t, c.Hearings, 2)
	require.Len(t, c.Defendants, 2)
	assert.Equal(t, "Una STUBBS", c.Defendants[0].DefendantName)
	assert.Equal(t, "D99999", c.Defendants[0].CRN())
	assert.Equal(t, 1, c.Defendants[0].Offences[0].Sequence)
	assert.Same(t, &c.Defendants[0], c.Defendants[0].Offences[0].Defendant)
	for i := range c.Defendants {
		assert.Same(t, c, c.Defendants[i].CourtCase)
	}

	back := NewExtendedCourtCase(c)
	assert.Equal(t, "case-1", back.CaseID)
	assert.Len(t, back.Defendants, 2)
	assert.Equal(t, "D99999", *back.Defendants[0].CRN)
	assert.Nil(t, back.Defendants[1].CRN)
}
