package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"court_case_service/models"

	"github.com/mattn/go-sqlite3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CourtRepository gives access to the court registry
type CourtRepository interface {
	FindByCourtCode(ctx context.Context, courtCode string) (*models.Court, error)
	Save(ctx context.Context, court *models.Court) error
	List(ctx context.Context) ([]models.Court, error)
}

// CourtCaseRepository loads and saves whole case graphs. Absent cases are reported as
// models.ErrEntityNotFound and lock contention as a *models.LockError.
type CourtCaseRepository interface {
	FindByCaseID(ctx context.Context, caseID string) (*models.CourtCase, error)
	FindByCourtCodeAndCaseNo(ctx context.Context, courtCode, caseNo string) (*models.CourtCase, error)
	FindByCaseIDAndDefendantID(ctx context.Context, caseID, defendantID string) (*models.CourtCase, error)
	// FindByCourtCodeAndHearingDay lists cases sitting at a court on a day. Zero bounds
	// leave the creation window open on that side.
	FindByCourtCodeAndHearingDay(ctx context.Context, courtCode string, day, createdAfter, createdBefore time.Time) ([]models.CourtCase, error)
	// FindLastModified returns the latest write to any case sitting at a court on a day
	FindLastModified(ctx context.Context, courtCode string, day time.Time) (time.Time, bool, error)
	// FindIncomplete returns case ids lacking a hearing or a defendant
	FindIncomplete(ctx context.Context) ([]string, error)
	Save(ctx context.Context, c *models.CourtCase) (*models.CourtCase, error)
}

// Store bundles the repositories and runs them inside one transaction
type Store interface {
	Courts() CourtRepository
	Cases() CourtCaseRepository
	Transaction(ctx context.Context, fn func(Store) error) error
}

// GormStore implements Store over gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Courts() CourtRepository {
	return &gormCourtRepository{db: s.db}
}

func (s *GormStore) Cases() CourtCaseRepository {
	return &gormCourtCaseRepository{db: s.db}
}

// Transaction commits when fn returns nil and rolls back otherwise
func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	return classifyStorageError(err)
}

// classifyStorageError turns sqlite and libsql lock contention into a *models.LockError.
// Everything else is returned as is.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var lockErr *models.LockError
	if errors.As(err, &lockErr) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return &models.LockError{Err: err}
	}
	// libsql reports over the wire, without a driver error type
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "SQLITE_LOCKED") {
		return &models.LockError{Err: err}
	}
	return err
}

type gormCourtRepository struct {
	db *gorm.DB
}

func (r *gormCourtRepository) FindByCourtCode(ctx context.Context, courtCode string) (*models.Court, error) {
	var court models.Court
	err := r.db.WithContext(ctx).Where("court_code = ?", strings.ToUpper(courtCode)).First(&court).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("court %s", courtCode)
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &court, nil
}

// Save inserts the court or renames the existing one with the same code
func (r *gormCourtRepository) Save(ctx context.Context, court *models.Court) error {
	court.CourtCode = strings.ToUpper(court.CourtCode)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "court_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(court).Error
	return classifyStorageError(err)
}

func (r *gormCourtRepository) List(ctx context.Context) ([]models.Court, error) {
	var courts []models.Court
	err := r.db.WithContext(ctx).Order("court_code").Find(&courts).Error
	return courts, classifyStorageError(err)
}

type gormCourtCaseRepository struct {
	db *gorm.DB
}

// withGraph preloads every owned collection in a stable order
func withGraph(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Hearings", func(db *gorm.DB) *gorm.DB { return db.Order("hearing_day, hearing_time, id") }).
		Preload("Offences", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number, id") }).
		Preload("Defendants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Defendants.Offences", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, id") }).
		Preload("Defendants.Offender")
}

func (r *gormCourtCaseRepository) first(ctx context.Context, describe string, query interface{}, args ...interface{}) (*models.CourtCase, error) {
	var c models.CourtCase
	err := withGraph(r.db.WithContext(ctx)).Where(query, args...).Order("id DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("%s", describe)
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if err := decodeGraph(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormCourtCaseRepository) FindByCaseID(ctx context.Context, caseID string) (*models.CourtCase, error) {
	return r.first(ctx, fmt.Sprintf("court case %s", caseID), "case_id = ?", caseID)
}

func (r *gormCourtCaseRepository) FindByCourtCodeAndCaseNo(ctx context.Context, courtCode, caseNo string) (*models.CourtCase, error) {
	return r.first(ctx, fmt.Sprintf("court case %s at court %s", caseNo, courtCode),
		"case_no = ? AND EXISTS (SELECT 1 FROM hearings h WHERE h.court_case_id = court_cases.id AND h.court_code = ?)",
		caseNo, strings.ToUpper(courtCode))
}

func (r *gormCourtCaseRepository) FindByCaseIDAndDefendantID(ctx context.Context, caseID, defendantID string) (*models.CourtCase, error) {
	return r.first(ctx, fmt.Sprintf("court case %s with defendant %s", caseID, defendantID),
		"case_id = ? AND EXISTS (SELECT 1 FROM defendants d WHERE d.court_case_id = court_cases.id AND d.defendant_id = ?)",
		caseID, defendantID)
}

// sittingAt restricts court_cases to those with a hearing at the court on the day
func sittingAt(q *gorm.DB, courtCode string, day time.Time) *gorm.DB {
	start := time.Time(models.HearingDayOf(day))
	end := start.AddDate(0, 0, 1)
	return q.Where(
		"EXISTS (SELECT 1 FROM hearings h WHERE h.court_case_id = court_cases.id AND h.court_code = ? AND h.hearing_day >= ? AND h.hearing_day < ?)",
		strings.ToUpper(courtCode), start, end)
}

func (r *gormCourtCaseRepository) FindByCourtCodeAndHearingDay(ctx context.Context, courtCode string, day, createdAfter, createdBefore time.Time) ([]models.CourtCase, error) {
	q := sittingAt(withGraph(r.db.WithContext(ctx)), courtCode, day)
	if !createdAfter.IsZero() {
		q = q.Where("court_cases.created_at >= ?", createdAfter.UTC())
	}
	if !createdBefore.IsZero() {
		q = q.Where("court_cases.created_at < ?", createdBefore.UTC())
	}

	var cases []models.CourtCase
	if err := q.Order("court_cases.id").Find(&cases).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	for i := range cases {
		if err := decodeGraph(&cases[i]); err != nil {
			return nil, err
		}
	}
	return cases, nil
}

func (r *gormCourtCaseRepository) FindLastModified(ctx context.Context, courtCode string, day time.Time) (time.Time, bool, error) {
	var latest []models.CourtCase
	err := sittingAt(r.db.WithContext(ctx).Select("id", "updated_at"), courtCode, day).
		Order("updated_at DESC").Limit(1).Find(&latest).Error
	if err != nil {
		return time.Time{}, false, classifyStorageError(err)
	}
	if len(latest) == 0 {
		return time.Time{}, false, nil
	}
	return latest[0].UpdatedAt, true, nil
}

func (r *gormCourtCaseRepository) FindIncomplete(ctx context.Context) ([]string, error) {
	var caseIDs []string
	err := r.db.WithContext(ctx).Model(&models.CourtCase{}).
		Where("NOT EXISTS (SELECT 1 FROM hearings h WHERE h.court_case_id = court_cases.id)").
		Or("NOT EXISTS (SELECT 1 FROM defendants d WHERE d.court_case_id = court_cases.id)").
		Order("case_id").
		Pluck("case_id", &caseIDs).Error
	return caseIDs, classifyStorageError(err)
}

// Save writes the whole graph. Records without a surrogate key are inserted, records with
// one are updated under an optimistic version check, and rows of the owned collections
// that are no longer in the graph are deleted. Run it inside Store.Transaction.
func (r *gormCourtCaseRepository) Save(ctx context.Context, c *models.CourtCase) (*models.CourtCase, error) {
	tx := r.db.WithContext(ctx)
	if err := r.save(tx, c); err != nil {
		return nil, classifyStorageError(err)
	}
	return c.Link(), nil
}

func (r *gormCourtCaseRepository) save(tx *gorm.DB, c *models.CourtCase) error {
	for i := range c.Defendants {
		if err := encodeDefendant(&c.Defendants[i]); err != nil {
			return err
		}
	}
	if err := saveOffenders(tx, c); err != nil {
		return err
	}

	if err := saveCase(tx, c); err != nil {
		return err
	}
	if err := saveHearings(tx, c); err != nil {
		return err
	}
	if err := saveOffences(tx, c); err != nil {
		return err
	}
	return saveDefendants(tx, c)
}

func saveCase(tx *gorm.DB, c *models.CourtCase) error {
	if !c.HasIdentity() {
		return tx.Omit(clause.Associations).Create(c).Error
	}
	return updateVersioned(tx, &models.CourtCase{}, &c.Identity, map[string]interface{}{
		"case_no":                           c.CaseNo,
		"source_type":                       c.SourceType,
		"probation_status":                  c.ProbationStatus,
		"previously_known_termination_date": c.PreviouslyKnownTerminationDate,
		"suspended_sentence_order":          c.SuspendedSentenceOrder,
		"breach":                            c.Breach,
		"pre_sentence_activity":             c.PreSentenceActivity,
		"awaiting_psr":                      c.AwaitingPsr,
	})
}

func saveHearings(tx *gorm.DB, c *models.CourtCase) error {
	keep := make([]uint, 0, len(c.Hearings))
	for _, h := range c.Hearings {
		if h.HasIdentity() {
			keep = append(keep, h.ID)
		}
	}
	if err := deleteOrphans(tx, &models.Hearing{}, "court_case_id", c.ID, keep); err != nil {
		return err
	}

	for i := range c.Hearings {
		h := &c.Hearings[i]
		h.CourtCaseID = c.ID
		if !h.HasIdentity() {
			if err := tx.Create(h).Error; err != nil {
				return err
			}
			continue
		}
		if err := updateVersioned(tx, &models.Hearing{}, &h.Identity, map[string]interface{}{
			"court_case_id": h.CourtCaseID,
			"hearing_day":   h.HearingDay,
			"hearing_time":  h.HearingTime,
			"court_code":    h.CourtCode,
			"court_room":    h.CourtRoom,
			"list_no":       h.ListNo,
		}); err != nil {
			return err
		}
	}
	return nil
}

func saveOffences(tx *gorm.DB, c *models.CourtCase) error {
	keep := make([]uint, 0, len(c.Offences))
	for _, o := range c.Offences {
		if o.HasIdentity() {
			keep = append(keep, o.ID)
		}
	}
	if err := deleteOrphans(tx, &models.Offence{}, "court_case_id", c.ID, keep); err != nil {
		return err
	}

	for i := range c.Offences {
		o := &c.Offences[i]
		o.CourtCaseID = c.ID
		if !o.HasIdentity() {
			if err := tx.Create(o).Error; err != nil {
				return err
			}
			continue
		}
		if err := updateVersioned(tx, &models.Offence{}, &o.Identity, map[string]interface{}{
			"court_case_id":   o.CourtCaseID,
			"sequence_number": o.SequenceNumber,
			"offence_title":   o.OffenceTitle,
			"offence_summary": o.OffenceSummary,
			"act":             o.Act,
		}); err != nil {
			return err
		}
	}
	return nil
}

func saveDefendants(tx *gorm.DB, c *models.CourtCase) error {
	keep := make([]uint, 0, len(c.Defendants))
	for _, d := range c.Defendants {
		if d.HasIdentity() {
			keep = append(keep, d.ID)
		}
	}

	// offences of removed defendants go first
	orphans := tx.Model(&models.Defendant{}).Select("id").Where("court_case_id = ?", c.ID)
	if len(keep) > 0 {
		orphans = orphans.Where("id NOT IN ?", keep)
	}
	if err := tx.Where("defendant_record_id IN (?)", orphans).Delete(&models.DefendantOffence{}).Error; err != nil {
		return err
	}
	if err := deleteOrphans(tx, &models.Defendant{}, "court_case_id", c.ID, keep); err != nil {
		return err
	}

	for i := range c.Defendants {
		d := &c.Defendants[i]
		d.CourtCaseID = c.ID
		if !d.HasIdentity() {
			if err := tx.Omit(clause.Associations).Create(d).Error; err != nil {
				return err
			}
		} else if err := updateVersioned(tx, &models.Defendant{}, &d.Identity, defendantColumns(d)); err != nil {
			return err
		}
		if err := saveDefendantOffences(tx, d); err != nil {
			return err
		}
	}
	return nil
}

func defendantColumns(d *models.Defendant) map[string]interface{} {
	return map[string]interface{}{
		"court_case_id":                     d.CourtCaseID,
		"defendant_id":                      d.DefendantID,
		"crn":                               d.OffenderCRN,
		"defendant_name":                    d.DefendantName,
		"name":                              d.NameJSON,
		"address":                           d.AddressJSON,
		"type":                              d.Type,
		"pnc":                               d.PNC,
		"cro":                               d.CRO,
		"date_of_birth":                     d.DateOfBirth,
		"sex":                               d.Sex,
		"nationality1":                      d.Nationality1,
		"nationality2":                      d.Nationality2,
		"previously_known_termination_date": d.PreviouslyKnownTerminationDate,
		"suspended_sentence_order":          d.SuspendedSentenceOrder,
		"breach":                            d.Breach,
		"pre_sentence_activity":             d.PreSentenceActivity,
		"awaiting_psr":                      d.AwaitingPsr,
		"probation_status":                  d.ProbationStatus,
	}
}

func saveDefendantOffences(tx *gorm.DB, d *models.Defendant) error {
	keep := make([]uint, 0, len(d.Offences))
	for _, o := range d.Offences {
		if o.HasIdentity() {
			keep = append(keep, o.ID)
		}
	}
	if err := deleteOrphans(tx, &models.DefendantOffence{}, "defendant_record_id", d.ID, keep); err != nil {
		return err
	}

	for i := range d.Offences {
		o := &d.Offences[i]
		o.DefendantRecordID = d.ID
		if !o.HasIdentity() {
			if err := tx.Create(o).Error; err != nil {
				return err
			}
			continue
		}
		if err := updateVersioned(tx, &models.DefendantOffence{}, &o.Identity, map[string]interface{}{
			"defendant_record_id": o.DefendantRecordID,
			"sequence":            o.Sequence,
			"title":               o.Title,
			"summary":             o.Summary,
			"act":                 o.Act,
		}); err != nil {
			return err
		}
	}
	return nil
}

// updateVersioned writes values when the stored version still matches and bumps it.
// A version mismatch or a missing row is reported as models.ErrStaleRecord.
func updateVersioned(tx *gorm.DB, model interface{}, id *models.Identity, values map[string]interface{}) error {
	now := tx.NowFunc()
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = now

	res := tx.Model(model).Where("id = ? AND version = ?", id.ID, id.Version).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %T %d at version %d", models.ErrStaleRecord, model, id.ID, id.Version)
	}
	id.Version++
	id.UpdatedAt = now
	return nil
}

// deleteOrphans removes the rows owned by parentID whose ids are not in keep
func deleteOrphans(tx *gorm.DB, model interface{}, parentColumn string, parentID uint, keep []uint) error {
	q := tx.Where(parentColumn+" = ?", parentID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(model).Error
}

// saveOffenders writes one linkage record per CRN and points every defendant holding the
// CRN at it. Defendants without a surrogate key were rebuilt from the incoming payload, so
// their copy wins over one loaded before the merge.
func saveOffenders(tx *gorm.DB, c *models.CourtCase) error {
	owners := make(map[string]*models.Defendant)
	var order []string
	for i := range c.Defendants {
		d := &c.Defendants[i]
		crn := d.CRN()
		if crn == "" {
			d.OffenderCRN = nil
			d.Offender = nil
			continue
		}
		d.OffenderCRN = &crn
		if d.Offender == nil {
			continue
		}
		current, seen := owners[crn]
		if !seen {
			order = append(order, crn)
		}
		if !seen || current.HasIdentity() || !d.HasIdentity() {
			owners[crn] = d
		}
	}

	written := make(map[string]*models.Offender, len(owners))
	for _, crn := range order {
		o, err := upsertOffender(tx, crn, owners[crn].Offender)
		if err != nil {
			return err
		}
		written[crn] = o
	}

	for i := range c.Defendants {
		d := &c.Defendants[i]
		if o, ok := written[d.CRN()]; ok {
			linked := *o
			d.Offender = &linked
		}
	}
	return nil
}

// upsertOffender writes the linkage record keyed by CRN
func upsertOffender(tx *gorm.DB, crn string, src *models.Offender) (*models.Offender, error) {
	o := *src
	o.Identity = models.Fresh()
	o.CRN = crn
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "crn"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"probation_status", "previously_known_termination_date", "suspended_sentence_order",
			"breach", "pre_sentence_activity", "awaiting_psr", "updated_at",
		}),
	}).Create(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// encodeDefendant serialises the structured name and address into their JSON columns
func encodeDefendant(d *models.Defendant) error {
	name, err := json.Marshal(d.Name)
	if err != nil {
		return fmt.Errorf("encode name of defendant %s: %w", d.DefendantID, err)
	}
	d.NameJSON = datatypes.JSON(name)

	d.AddressJSON = nil
	if d.Address != nil {
		address, err := json.Marshal(d.Address)
		if err != nil {
			return fmt.Errorf("encode address of defendant %s: %w", d.DefendantID, err)
		}
		d.AddressJSON = datatypes.JSON(address)
	}
	return nil
}

// decodeGraph restores the structured columns and links the loaded graph
func decodeGraph(c *models.CourtCase) error {
	for i := range c.Defendants {
		d := &c.Defendants[i]
		d.Name = models.NameProperties{}
		if len(d.NameJSON) > 0 {
			if err := json.Unmarshal(d.NameJSON, &d.Name); err != nil {
				return fmt.Errorf("decode name of defendant %s: %w", d.DefendantID, err)
			}
		}
		d.Address = nil
		if len(d.AddressJSON) > 0 && string(d.AddressJSON) != "null" {
			d.Address = &models.AddressProperties{}
			if err := json.Unmarshal(d.AddressJSON, d.Address); err != nil {
				return fmt.Errorf("decode address of defendant %s: %w", d.DefendantID, err)
			}
		}
	}
	c.Link()
	return nil
}
