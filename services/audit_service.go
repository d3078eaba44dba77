package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"court_case_service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditContext contains contextual information for audit logging
type AuditContext struct {
	ClientID  string
	Username  string
	IPAddress string
	UserAgent string
}

type auditContextKey struct{}

// WithAuditContext attaches ac to ctx
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	return context.WithValue(ctx, auditContextKey{}, ac)
}

// AuditContextFrom returns the AuditContext attached to ctx, if any
func AuditContextFrom(ctx context.Context) AuditContext {
	if ac, ok := ctx.Value(auditContextKey{}).(AuditContext); ok {
		return ac
	}
	return AuditContext{}
}

// Auditor records writes to cases
type Auditor interface {
	RecordCaseWrite(ctx context.Context, action models.AuditAction, caseID, defendantID, description string, oldValues, newValues interface{})
}

// GormAuditor writes audit rows in the background. Wait blocks until every write handed to
// it has finished, so the database can be closed after it returns.
type GormAuditor struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewGormAuditor creates an Auditor backed by db
func NewGormAuditor(db *gorm.DB, logger *zap.SugaredLogger) *GormAuditor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GormAuditor{db: db, logger: logger}
}

func (a *GormAuditor) RecordCaseWrite(ctx context.Context, action models.AuditAction, caseID, defendantID, description string, oldValues, newValues interface{}) {
	entry := NewAuditLog(AuditContextFrom(ctx), action, models.AuditResourceCourtCase, caseID, defendantID, description, oldValues, newValues)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.db.Create(&entry).Error; err != nil {
			a.logger.Errorw("failed to create audit log", "resourceId", caseID, "action", action, "error", err)
		}
	}()
}

// Wait blocks until pending audit writes are done
func (a *GormAuditor) Wait() {
	a.wg.Wait()
}

// NewAuditLog builds an audit entry; values are stored as JSON and nil values are left empty
func NewAuditLog(
	ctx AuditContext,
	action models.AuditAction,
	resourceType string,
	resourceID string,
	resourceName string,
	description string,
	oldValues interface{},
	newValues interface{},
) models.AuditLog {
	return models.AuditLog{
		ClientID:     ctx.ClientID,
		Username:     ctx.Username,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ResourceName: resourceName,
		Action:       action,
		Description:  description,
		OldValues:    auditJSON(oldValues),
		NewValues:    auditJSON(newValues),
		IPAddress:    ctx.IPAddress,
		UserAgent:    ctx.UserAgent,
	}
}

func auditJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	bytes, err := json.Marshal(v)
	if err != nil || string(bytes) == "null" {
		return ""
	}
	return string(bytes)
}

// GetResourceAuditHistory retrieves the audit history for a specific resource
func GetResourceAuditHistory(db *gorm.DB, resourceType, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// AuditLogFilters contains filter options for audit log queries
type AuditLogFilters struct {
	ClientID     string
	ResourceType string
	Action       string
	DateFrom     time.Time
	DateTo       time.Time
}

// GetAuditLogs retrieves paginated audit logs
func GetAuditLogs(db *gorm.DB, filters AuditLogFilters, page, pageSize int) ([]models.AuditLog, int64, error) {
	query := db.Model(&models.AuditLog{})

	if filters.ClientID != "" {
		query = query.Where("client_id = ?", filters.ClientID)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}
