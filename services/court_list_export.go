package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"court_case_service/models"

	"github.com/xuri/excelize/v2"
)

// courtListHeaders are the column titles of the exported court list
var courtListHeaders = []string{
	"Court room", "Session", "Start time", "List no", "Case id", "Case no",
	"Defendant", "Date of birth", "Sex", "CRN", "PNC", "Probation status", "Offences",
}

// ExportCourtList writes the rows of a court list as a single sheet workbook.
// Rows are expected in list order (see models.SortCaseList).
func ExportCourtList(courtCode string, day time.Time, rows []models.CourtCaseResponse) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := strings.ToUpper(courtCode)
	if sheet == "" {
		sheet = "Court list"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})

	f.SetCellValue(sheet, "A1", fmt.Sprintf("Court list %s %s", sheet, day.Format("2006-01-02")))
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	for i, header := range courtListHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(courtListHeaders), 3)
	f.SetCellStyle(sheet, "A3", lastHeader, headerStyle)

	for i, r := range rows {
		values := []interface{}{
			r.CourtRoom,
			string(r.Session),
			time.Time(r.SessionStartTime).Format("15:04"),
			stringOrBlank(r.ListNo),
			r.CaseID,
			stringOrBlank(r.CaseNo),
			r.DefendantName,
			dateOrBlank(r.DefendantDob),
			r.DefendantSex,
			stringOrBlank(r.CRN),
			stringOrBlank(r.PNC),
			r.ProbationStatus,
			offenceTitles(r.Offences),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+4)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "F", 12)
	f.SetColWidth(sheet, "G", "G", 30)
	f.SetColWidth(sheet, "H", "L", 16)
	f.SetColWidth(sheet, "M", "M", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func stringOrBlank(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOrBlank(d *models.LocalDate) string {
	if d == nil {
		return ""
	}
	return d.Time().Format("2006-01-02")
}

func offenceTitles(offences []models.OffenceResponse) string {
	titles := make([]string, 0, len(offences))
	for _, o := range offences {
		titles = append(titles, o.OffenceTitle)
	}
	return strings.Join(titles, "; ")
}
