package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"court_case_service/models"
	"court_case_service/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	dateLayout = "2006-01-02"
	// createdAfterWindow is how far before the list date cases are considered by default
	createdAfterWindow = 8 * 24 * time.Hour
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// defaultLastModified is reported for court lists with no cases
var defaultLastModified = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// CourtCaseHandler serves the court case API
type CourtCaseHandler struct {
	service *services.CourtCaseService
	matches services.MatchCounter
	archive *services.PayloadArchive
	logger  *zap.SugaredLogger
}

// NewCourtCaseHandler creates a CourtCaseHandler. matches and archive may be nil.
func NewCourtCaseHandler(service *services.CourtCaseService, matches services.MatchCounter, archive *services.PayloadArchive, logger *zap.SugaredLogger) *CourtCaseHandler {
	if matches == nil {
		matches = services.NoMatches{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CourtCaseHandler{service: service, matches: matches, archive: archive, logger: logger}
}

// Register mounts the routes on g
func (h *CourtCaseHandler) Register(g *echo.Group, reads, writes echo.MiddlewareFunc) {
	g.GET("/court/:courtCode/case/:caseNo", h.GetCaseByCaseNumber, reads)
	g.GET("/court/:courtCode/cases", h.GetCaseList, reads)
	g.GET("/court/:courtCode/cases/export", h.ExportCaseList, reads)
	g.GET("/case/:caseId/extended", h.GetExtendedCase, reads)
	g.GET("/case/:caseId/defendant/:defendantId", h.GetCaseForDefendant, reads)
	g.GET("/case/:caseId/payloads", h.ListPayloads, reads)
	g.GET("/case/:caseId/payloads/:name", h.GetPayload, reads)
	g.PUT("/case/:caseId/defendant/:defendantId", h.PutCaseForDefendant, writes)
	g.PUT("/case/:caseId/extended", h.PutExtendedCase, writes)
}

// GetCaseByCaseNumber returns a case by the number it is listed under at a court
func (h *CourtCaseHandler) GetCaseByCaseNumber(c echo.Context) error {
	ctx := c.Request().Context()
	cc, err := h.service.GetCaseByCaseNumber(ctx, c.Param("courtCode"), c.Param("caseNo"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	resp, err := h.respond(c, cc, &cc.Defendants[0], nil)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetExtendedCase returns the whole case graph in the extended request shape
func (h *CourtCaseHandler) GetExtendedCase(c echo.Context) error {
	cc, err := h.service.GetCaseByCaseID(c.Request().Context(), c.Param("caseId"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, models.NewExtendedCourtCase(cc))
}

// GetCaseForDefendant returns the view of a case for one of its defendants
func (h *CourtCaseHandler) GetCaseForDefendant(c echo.Context) error {
	defendantID := c.Param("defendantId")
	cc, err := h.service.GetCaseByCaseIDAndDefendantID(c.Request().Context(), c.Param("caseId"), defendantID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	d, ok := cc.FindDefendant(defendantID)
	if !ok {
		return h.errorResponse(c, models.NotFound("defendant %s on case %s", defendantID, cc.CaseID))
	}
	resp, err := h.respond(c, cc, d, nil)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// PutCaseForDefendant creates or updates a case from the view of one defendant
func (h *CourtCaseHandler) PutCaseForDefendant(c echo.Context) error {
	caseID := c.Param("caseId")
	defendantID := c.Param("defendantId")

	var req models.CourtCaseRequest
	if err := h.bindArchived(c, caseID, &req); err != nil {
		return err
	}
	if req.CaseID != caseID {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("caseId %q in body does not match path %q", req.CaseID, caseID))
	}
	if req.DefendantID == nil || strings.TrimSpace(*req.DefendantID) == "" {
		req.DefendantID = &defendantID
	} else if *req.DefendantID != defendantID {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("defendantId %q in body does not match path %q", *req.DefendantID, defendantID))
	}
	if err := req.Validate(); err != nil {
		return h.errorResponse(c, err)
	}

	saved, err := h.service.CreateOrUpdateForDefendant(c.Request().Context(), caseID, defendantID, req.AsEntity())
	if err != nil {
		return h.errorResponse(c, err)
	}
	d, ok := saved.FindDefendant(defendantID)
	if !ok {
		return h.errorResponse(c, models.NotFound("defendant %s on case %s", defendantID, caseID))
	}
	resp, err := h.respond(c, saved, d, nil)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// PutExtendedCase replaces a whole case
func (h *CourtCaseHandler) PutExtendedCase(c echo.Context) error {
	caseID := c.Param("caseId")

	var req models.ExtendedCourtCaseRequest
	if err := h.bindArchived(c, caseID, &req); err != nil {
		return err
	}
	if req.CaseID != caseID {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("caseId %q in body does not match path %q", req.CaseID, caseID))
	}
	if err := req.Validate(); err != nil {
		return h.errorResponse(c, err)
	}

	if _, err := h.service.CreateCase(c.Request().Context(), caseID, req.AsCourtCase()); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// GetCaseList returns one row per defendant of every case sitting at a court on a day
func (h *CourtCaseHandler) GetCaseList(c echo.Context) error {
	courtCode := c.Param("courtCode")
	day, createdAfter, createdBefore, err := listWindow(c)
	if err != nil {
		return err
	}

	lastModified, err := h.lastModified(c, courtCode, day)
	if err != nil {
		return h.errorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderLastModified, lastModified.Format(http.TimeFormat))
	c.Response().Header().Set("Cache-Control", "max-age=1")
	if notModified(c, lastModified) {
		return c.NoContent(http.StatusNotModified)
	}

	rows, err := h.caseList(c, courtCode, day, createdAfter, createdBefore)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, models.CaseListResponse{Cases: rows})
}

// ExportCaseList returns the court list as a spreadsheet
func (h *CourtCaseHandler) ExportCaseList(c echo.Context) error {
	courtCode := c.Param("courtCode")
	day, createdAfter, createdBefore, err := listWindow(c)
	if err != nil {
		return err
	}

	rows, err := h.caseList(c, courtCode, day, createdAfter, createdBefore)
	if err != nil {
		return h.errorResponse(c, err)
	}
	buf, err := services.ExportCourtList(courtCode, day, rows)
	if err != nil {
		return h.errorResponse(c, err)
	}

	filename := fmt.Sprintf("court-list-%s-%s.xlsx", strings.ToUpper(courtCode), day.Format(dateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListPayloads lists the archived request bodies of a case
func (h *CourtCaseHandler) ListPayloads(c echo.Context) error {
	names, err := h.archive.History(c.Request().Context(), c.Param("caseId"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"caseId": c.Param("caseId"), "payloads": names})
}

// GetPayload returns one archived request body
func (h *CourtCaseHandler) GetPayload(c echo.Context) error {
	reader, contentType, err := h.archive.Open(c.Request().Context(), c.Param("caseId"), c.Param("name"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	defer reader.Close()
	return c.Stream(http.StatusOK, contentType, reader)
}

// caseList builds the sorted rows of a court list
func (h *CourtCaseHandler) caseList(c echo.Context, courtCode string, day, createdAfter, createdBefore time.Time) ([]models.CourtCaseResponse, error) {
	cases, err := h.service.FilterCases(c.Request().Context(), courtCode, day, createdAfter, createdBefore)
	if err != nil {
		return nil, err
	}

	rows := make([]models.CourtCaseResponse, 0, len(cases))
	for i := range cases {
		cc := &cases[i]
		hearing := sittingOn(cc, courtCode, day)
		for j := range cc.Defendants {
			row, err := h.respond(c, cc, &cc.Defendants[j], hearing)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	models.SortCaseList(rows)
	return rows, nil
}

func (h *CourtCaseHandler) respond(c echo.Context, cc *models.CourtCase, d *models.Defendant, hearing *models.Hearing) (models.CourtCaseResponse, error) {
	matches, err := h.matches.MatchCount(c.Request().Context(), cc.CaseID, d.DefendantID)
	if err != nil {
		return models.CourtCaseResponse{}, err
	}
	return models.NewCourtCaseResponse(cc, d, hearing, matches), nil
}

func (h *CourtCaseHandler) lastModified(c echo.Context, courtCode string, day time.Time) (time.Time, error) {
	at, found, err := h.service.FilterCasesLastModified(c.Request().Context(), courtCode, day)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return defaultLastModified, nil
	}
	return at.UTC().Truncate(time.Second), nil
}

// bindArchived archives the raw body, then binds it into dst
func (h *CourtCaseHandler) bindArchived(c echo.Context, caseID string, dst interface{}) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	h.archive.Archive(req.Context(), caseID, body)

	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return nil
}

// errorResponse maps service errors to HTTP errors
func (h *CourtCaseHandler) errorResponse(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, models.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrEntityNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrStaleRecord):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrLockAcquisition):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage busy, please retry")
	case errors.Is(err, models.ErrNoDefendants), errors.Is(err, models.ErrDefendantNotFound):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Errorw("request failed", "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

// listWindow reads the date and creation window of a court list request
func listWindow(c echo.Context) (day, createdAfter, createdBefore time.Time, err error) {
	if day, err = services.ParseDate(c.QueryParam("date")); err != nil {
		return day, createdAfter, createdBefore, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	createdAfter = day.Add(-createdAfterWindow)
	if v := c.QueryParam("createdAfter"); v != "" {
		if createdAfter, err = services.ParseDateTime(v); err != nil {
			return day, createdAfter, createdBefore, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if v := c.QueryParam("createdBefore"); v != "" {
		if createdBefore, err = services.ParseDateTime(v); err != nil {
			return day, createdAfter, createdBefore, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return day, createdAfter, createdBefore, nil
}

// notModified reports whether the client copy is at least as new as lastModified
func notModified(c echo.Context, lastModified time.Time) bool {
	since := c.Request().Header.Get("If-Modified-Since")
	if since == "" {
		return false
	}
	t, err := http.ParseTime(since)
	if err != nil {
		return false
	}
	return !lastModified.After(t)
}

// sittingOn picks the hearing of cc at the court on the day, nil when there is none
func sittingOn(cc *models.CourtCase, courtCode string, day time.Time) *models.Hearing {
	want := models.HearingDayOf(day)
	for i := range cc.Hearings {
		h := &cc.Hearings[i]
		if strings.EqualFold(h.CourtCode, courtCode) && time.Time(h.HearingDay).Equal(time.Time(want)) {
			return h
		}
	}
	return nil
}
