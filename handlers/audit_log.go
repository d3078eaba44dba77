package handlers

import (
	"net/http"
	"strconv"
	"time"

	"court_case_service/db"
	"court_case_service/models"
	"court_case_service/services"

	"github.com/labstack/echo/v4"
)

// AuditLogPage is a page of audit log entries
type AuditLogPage struct {
	Logs     []models.AuditLog `json:"logs"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// GetAuditLogsHandler returns filtered and paginated audit logs
func GetAuditLogsHandler(c echo.Context) error {
	// Parse pagination
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	// Parse filters
	filters := services.AuditLogFilters{
		ClientID:     c.QueryParam("client_id"),
		ResourceType: c.QueryParam("resource_type"),
		Action:       c.QueryParam("action"),
	}

	if dateFrom := c.QueryParam("date_from"); dateFrom != "" {
		if t, err := time.Parse(dateLayout, dateFrom); err == nil {
			filters.DateFrom = t
		}
	}
	if dateTo := c.QueryParam("date_to"); dateTo != "" {
		if t, err := time.Parse(dateLayout, dateTo); err == nil {
			filters.DateTo = t.Add(24*time.Hour - time.Second) // End of day
		}
	}

	logs, total, err := services.GetAuditLogs(db.DB, filters, page, pageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch audit logs")
	}

	return c.JSON(http.StatusOK, AuditLogPage{Logs: logs, Total: total, Page: page, PageSize: pageSize})
}

// GetCaseHistoryHandler returns the audit history of a case, newest first
func GetCaseHistoryHandler(c echo.Context) error {
	logs, err := services.GetResourceAuditHistory(db.DB, models.AuditResourceCourtCase, c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch history")
	}
	return c.JSON(http.StatusOK, logs)
}
