package models

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction represents the type of operation performed
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionLink   AuditAction = "LINK"   // Defendant linked to an offender record
	AuditActionUnlink AuditAction = "UNLINK" // Offender linkage removed
)

// AuditResourceCourtCase is the resource type recorded for case writes
const AuditResourceCourtCase = "CourtCase"

// AuditLog represents an immutable record of a write to a case
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`

	// Calling system and the user acting through it, both as reported by the caller
	ClientID string `gorm:"index:idx_audit_client" json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Target resource
	ResourceType string `gorm:"not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   string `gorm:"not null;index:idx_audit_resource" json:"resource_id"` // caseId
	ResourceName string `json:"resource_name,omitempty"`                              // defendantId for defendant-scoped writes

	Action      AuditAction `gorm:"not null;index:idx_audit_action" json:"action"`
	Description string      `gorm:"type:text" json:"description,omitempty"`

	// JSON encoded summaries
	OldValues string `gorm:"type:text" json:"old_values,omitempty"`
	NewValues string `gorm:"type:text" json:"new_values,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// AuditChange represents a single field change
type AuditChange struct {
	Field string
	Old   interface{}
	New   interface{}
}

// Changes parses OldValues and NewValues into the fields that differ
func (a *AuditLog) Changes() []AuditChange {
	var changes []AuditChange
	oldMap := make(map[string]interface{})
	newMap := make(map[string]interface{})

	if a.OldValues != "" {
		_ = json.Unmarshal([]byte(a.OldValues), &oldMap)
	}
	if a.NewValues != "" {
		_ = json.Unmarshal([]byte(a.NewValues), &newMap)
	}

	keys := make(map[string]struct{})
	for k := range oldMap {
		keys[k] = struct{}{}
	}
	for k := range newMap {
		keys[k] = struct{}{}
	}

	for k := range keys {
		if o, n := oldMap[k], newMap[k]; !reflect.DeepEqual(o, n) {
			changes = append(changes, AuditChange{Field: k, Old: o, New: n})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// BeforeCreate generates the UUID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification of audit logs
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion of audit logs
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// CaseAuditSummary is the compact snapshot stored in audit old/new values
type CaseAuditSummary struct {
	CaseNo     string            `json:"caseNo,omitempty"`
	Hearings   []string          `json:"hearings,omitempty"`
	Defendants map[string]string `json:"defendants,omitempty"` // defendantId -> crn
	Statuses   map[string]string `json:"statuses,omitempty"`   // defendantId -> probation status
}

// NewCaseAuditSummary snapshots the parts of a case worth diffing; nil yields nil
func NewCaseAuditSummary(c *CourtCase) *CaseAuditSummary {
	if c == nil {
		return nil
	}
	s := &CaseAuditSummary{
		Defendants: make(map[string]string, len(c.Defendants)),
		Statuses:   make(map[string]string, len(c.Defendants)),
	}
	if c.CaseNo != nil {
		s.CaseNo = *c.CaseNo
	}
	for _, h := range c.Hearings {
		s.Hearings = append(s.Hearings, h.LoggableString())
	}
	for i := range c.Defendants {
		d := &c.Defendants[i]
		s.Defendants[d.DefendantID] = d.CRN()
		s.Statuses[d.DefendantID] = d.ProbationStatus
	}
	return s
}
