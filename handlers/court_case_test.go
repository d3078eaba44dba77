package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"court_case_service/middleware"
	"court_case_service/models"
	"court_case_service/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defendantBody is a single-defendant payload sitting at B10JQ on 2021-03-01
func defendantBody(caseID, surname, room, start, crn string) string {
	crnField := ""
	if crn != "" {
		crnField = fmt.Sprintf(`"crn": %q, "probationStatus": "CURRENT",`, crn)
	}
	return fmt.Sprintf(`{
		"caseId": %q,
		"caseNo": "1600032952",
		"courtCode": "B10JQ",
		"courtRoom": %q,
		"sessionStartTime": "2021-03-01T%s:00",
		"listNo": "1st",
		"offences": [{"offenceTitle": "Theft from a shop", "offenceSummary": "On 01/01/2021 at Shop, stole goods"}],
		"name": {"title": "Mr", "forename1": "Ken", "surname": %q},
		"defendantName": "Mr Ken %s",
		"defendantType": "PERSON",
		"defendantSex": "M",
		%s
		"pnc": "2004/0012345U"
	}`, caseID, room, start, surname, surname, crnField)
}

const extendedBody = `{
	"caseId": "C2",
	"caseNo": "1600011111",
	"source": "COMMON_PLATFORM",
	"hearings": [{"courtCode": "B10JQ", "courtRoom": "02", "sessionStartTime": "2021-03-01T14:00:00"}],
	"defendants": [
		{"defendantId": "D1", "name": {"forename1": "Una", "surname": "STUBBS"}, "type": "PERSON",
		 "offences": [{"offenceTitle": "Assault", "offenceSummary": "Assaulted a person"}]},
		{"defendantId": "D2", "defendantName": "ACME Ltd", "type": "ORGANISATION", "crn": "X111111", "probationStatus": "NOT_SENTENCED",
		 "offences": [{"offenceTitle": "Fraud", "offenceSummary": "False representation"}]}
	]
}`

func decode(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v))
}

func TestPutCaseForDefendant(t *testing.T) {
	s := setupServer(t, nil)

	rec := s.do(http.MethodPut, "/case/C1/defendant/D1", defendantBody("C1", "BARBER", "01", "09:30", "X320741"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.CourtCaseResponse
	decode(t, rec.Body.Bytes(), &resp)
	assert.Equal(t, "C1", resp.CaseID)
	assert.Equal(t, "D1", resp.DefendantID)
	assert.Equal(t, "B10JQ", resp.CourtCode)
	assert.Equal(t, models.CourtSessionMorning, resp.Session)
	assert.Equal(t, "Current", resp.ProbationStatus)
	require.NotNil(t, resp.ProbationStatusActual)
	assert.Equal(t, "CURRENT", *resp.ProbationStatusActual)
	assert.Equal(t, "M", resp.DefendantSex)
	require.Len(t, resp.Offences, 1)
	assert.Equal(t, 1, resp.Offences[0].SequenceNumber)
}

func TestPutCaseForDefendantRejectsBadRequests(t *testing.T) {
	s := setupServer(t, nil)

	t.Run("caseId mismatch", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/case/C1/defendant/D1", defendantBody("OTHER", "BARBER", "01", "09:30", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("defendantId mismatch", func(t *testing.T) {
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(defendantBody("C1", "BARBER", "01", "09:30", "")), &body))
		body["defendantId"] = "D2"
		raw, _ := json.Marshal(body)
		rec := s.do(http.MethodPut, "/case/C1/defendant/D1", string(raw))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing offences", func(t *testing.T) {
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(defendantBody("C1", "BARBER", "01", "09:30", "")), &body))
		delete(body, "offences")
		raw, _ := json.Marshal(body)
		rec := s.do(http.MethodPut, "/case/C1/defendant/D1", string(raw))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/case/C1/defendant/D1", `{"caseId":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown court", func(t *testing.T) {
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(defendantBody("C1", "BARBER", "01", "09:30", "")), &body))
		body["courtCode"] = "XXXXX"
		raw, _ := json.Marshal(body)
		rec := s.do(http.MethodPut, "/case/C1/defendant/D1", string(raw))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetCase(t *testing.T) {
	s := setupServer(t, nil)
	s.mustPut(t, "/case/C1/defendant/D1", defendantBody("C1", "BARBER", "01", "09:30", ""))

	rec := s.do(http.MethodGet, "/case/C1/defendant/D1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.CourtCaseResponse
	decode(t, rec.Body.Bytes(), &resp)
	assert.Equal(t, "No record", resp.ProbationStatus)
	assert.Nil(t, resp.ProbationStatusActual)

	rec = s.do(http.MethodGet, "/case/C1/defendant/D9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/court/B10JQ/case/1600032952", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec.Body.Bytes(), &resp)
	assert.Equal(t, "C1", resp.CaseID)

	rec = s.do(http.MethodGet, "/court/XXXXX/case/1600032952", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtendedCase(t *testing.T) {
	s := setupServer(t, nil)

	rec := s.do(http.MethodPut, "/case/C2/extended", extendedBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var echoed models.ExtendedCourtCaseRequest
	decode(t, rec.Body.Bytes(), &echoed)
	assert.Equal(t, "C2", echoed.CaseID)

	rec = s.do(http.MethodGet, "/case/C2/extended", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ExtendedCourtCaseRequest
	decode(t, rec.Body.Bytes(), &got)
	assert.Equal(t, "COMMON_PLATFORM", got.Source)
	require.Len(t, got.Hearings, 1)
	require.Len(t, got.Defendants, 2)
	ids := []string{got.Defendants[0].DefendantID, got.Defendants[1].DefendantID}
	assert.ElementsMatch(t, []string{"D1", "D2"}, ids)

	rec = s.do(http.MethodPut, "/case/OTHER/extended", extendedBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/case/MISSING/extended", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCaseList(t *testing.T) {
	s := setupServer(t, fixedMatches(2))
	s.mustPut(t, "/case/C1/defendant/D1", defendantBody("C1", "STUBBS", "01", "09:30", ""))
	s.mustPut(t, "/case/C3/defendant/D3", defendantBody("C3", "BARBER", "01", "09:30", "X320741"))
	s.mustPut(t, "/case/C4/defendant/D4", defendantBody("C4", "ADAMS", "01", "14:00", ""))
	s.mustPut(t, "/case/C5/defendant/D5", defendantBody("C5", "ZEBEDEE", "00", "15:00", ""))

	rec := s.do(http.MethodGet, "/court/B10JQ/cases?date=2021-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "max-age=1", rec.Header().Get("Cache-Control"))
	lastModified := rec.Header().Get(echo.HeaderLastModified)
	require.NotEmpty(t, lastModified)

	var list models.CaseListResponse
	decode(t, rec.Body.Bytes(), &list)
	require.Len(t, list.Cases, 4)
	var surnames []string
	for _, row := range list.Cases {
		surnames = append(surnames, row.Name.Surname)
	}
	assert.Equal(t, []string{"ZEBEDEE", "BARBER", "STUBBS", "ADAMS"}, surnames)
	assert.Equal(t, "Current", list.Cases[1].ProbationStatus)
	assert.Equal(t, "Possible NDelius record", list.Cases[2].ProbationStatus)
	assert.Equal(t, 2, list.Cases[2].NumberOfPossibleMatches)

	t.Run("not modified", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/court/B10JQ/cases?date=2021-03-01", "", "If-Modified-Since", lastModified)
		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("empty day uses default last modified", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/court/B10JQ/cases?date=2021-03-02", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Wed, 01 Jan 2020 00:00:00 GMT", rec.Header().Get(echo.HeaderLastModified))
		decode(t, rec.Body.Bytes(), &list)
		assert.Empty(t, list.Cases)
	})

	t.Run("creation window", func(t *testing.T) {
		after := time.Now().UTC().Add(time.Hour).Format("2006-01-02T15:04:05")
		rec := s.do(http.MethodGet, "/court/B10JQ/cases?date=2021-03-01&createdAfter="+after, "")
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec.Body.Bytes(), &list)
		assert.Empty(t, list.Cases)
	})

	t.Run("date is required", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/court/B10JQ/cases", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown court", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/court/XXXXX/cases?date=2021-03-01", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("export", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/court/B10JQ/cases/export?date=2021-03-01", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "court-list-B10JQ-2021-03-01.xlsx")
		assert.NotZero(t, rec.Body.Len())
	})
}

func TestCaseWithoutDefendantsIsAnError(t *testing.T) {
	s := setupServer(t, nil)
	store := services.NewGormStore(s.db)
	ctx := context.Background()
	err := store.Transaction(ctx, func(tx services.Store) error {
		_, err := tx.Cases().Save(ctx, &models.CourtCase{
			CaseID:   "EMPTY",
			Hearings: []models.Hearing{models.NewHearing("B10JQ", "01", time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC), nil)},
		})
		return err
	})
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/case/EMPTY/extended", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY")

	rec = s.do(http.MethodGet, "/court/B10JQ/cases?date=2021-03-01", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPayloadArchive(t *testing.T) {
	s := setupServer(t, nil)
	body := defendantBody("C1", "BARBER", "01", "09:30", "")
	s.mustPut(t, "/case/C1/defendant/D1", body)

	rec := s.do(http.MethodGet, "/case/C1/payloads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		CaseID   string   `json:"caseId"`
		Payloads []string `json:"payloads"`
	}
	decode(t, rec.Body.Bytes(), &listing)
	require.Len(t, listing.Payloads, 1)

	rec = s.do(http.MethodGet, "/case/C1/payloads/"+listing.Payloads[0], "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, body, rec.Body.String())

	rec = s.do(http.MethodGet, "/case/C1/payloads/missing.json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditLogEndpoints(t *testing.T) {
	s := setupServer(t, nil)
	rec := s.do(http.MethodPut, "/case/C1/defendant/D1", defendantBody("C1", "BARBER", "01", "09:30", ""),
		middleware.HeaderClientID, "crime-portal", middleware.HeaderUsername, "j.bloggs")
	require.Equal(t, http.StatusOK, rec.Code)

	var page AuditLogPage
	require.Eventually(t, func() bool {
		rec := s.do(http.MethodGet, "/audit-logs?client_id=crime-portal", "")
		if rec.Code != http.StatusOK {
			return false
		}
		decode(t, rec.Body.Bytes(), &page)
		return page.Total == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "C1", page.Logs[0].ResourceID)
	assert.Equal(t, "j.bloggs", page.Logs[0].Username)
	assert.Equal(t, models.AuditActionCreate, page.Logs[0].Action)

	rec = s.do(http.MethodGet, "/case/C1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.AuditLog
	decode(t, rec.Body.Bytes(), &history)
	assert.Len(t, history, 1)
}

func TestHealthHandler(t *testing.T) {
	s := setupServer(t, nil)
	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}
