package services

import (
	"fmt"
	"testing"
	"time"

	"court_case_service/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupCourtCaseTestDB opens a private shared-cache in-memory database with the case schema
func setupCourtCaseTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Court{},
		&models.CourtCase{},
		&models.Hearing{},
		&models.Offence{},
		&models.Offender{},
		&models.Defendant{},
		&models.DefendantOffence{},
		&models.AuditLog{},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// background audit writes share the single connection instead of racing for table locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Create(&models.Court{CourtCode: "B10JQ", Name: "North Tyneside"}).Error)
	return db
}

func strPtr(s string) *string { return &s }

var sittingAt0930 = time.Date(2021, 3, 1, 9, 30, 0, 0, time.UTC)

// newTestDefendant builds an unsaved defendant with one offence
func newTestDefendant(defendantID, surname, crn string) models.Defendant {
	d := models.Defendant{
		DefendantID:   defendantID,
		DefendantName: "Mr Ken " + surname,
		Name:          models.NameProperties{Title: "Mr", Forename1: "Ken", Surname: surname},
		Address:       &models.AddressProperties{Line1: "27", Line2: "Elm Place", Postcode: "AD21 5DR"},
		Type:          models.DefendantTypePerson,
		Sex:           models.SexMale,
		PNC:           strPtr("2004/0012345U"),
		Offences: []models.DefendantOffence{
			{Sequence: 1, Title: "Theft from a shop", Summary: "On 01/01/2021 at Shop, stole goods"},
		},
		ProbationStatus: models.ProbationStatusNoRecord.String(),
	}
	if crn != "" {
		d.OffenderCRN = strPtr(crn)
		d.Offender = &models.Offender{CRN: crn, ProbationStatus: models.ProbationStatusCurrent}
		d.ProbationStatus = models.ProbationStatusCurrent.String()
	}
	return d
}

// newTestCase builds an unsaved single-hearing case at B10JQ
func newTestCase(caseID string, defendants ...models.Defendant) *models.CourtCase {
	c := &models.CourtCase{
		CaseID:     caseID,
		CaseNo:     strPtr("1600032952"),
		SourceType: models.SourceTypeLibra,
		Hearings:   []models.Hearing{models.NewHearing("B10JQ", "01", sittingAt0930, strPtr("1st"))},
		Offences: []models.Offence{
			{SequenceNumber: 1, OffenceTitle: "Theft from a shop", OffenceSummary: "On 01/01/2021 at Shop, stole goods"},
		},
		Defendants: defendants,
	}
	return c.Link()
}
