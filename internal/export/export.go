// Package export renders partner registrations as XLSX workbooks so reviewers
// can work through applications offline.
package export

import (
	"bytes"
	"fmt"

	"github.com/sakif/blood-connect/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	NgoSheet      = "NGO Registrations"
	HospitalSheet = "Hospital Registrations"

	// ContentType is the MIME type handlers send with a workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const timeLayout = "2006-01-02 15:04:05"

type column struct {
	header string
	width  float64
}

var ngoColumns = []column{
	{"ID", 22}, {"Name", 30}, {"Type", 18}, {"Registration Number", 22},
	{"Contact Person", 22}, {"Contact Email", 28}, {"Contact Phone", 16},
	{"Address", 36}, {"City", 16}, {"State", 16}, {"Pincode", 10},
	{"12A Certificate", 18}, {"80G Certificate", 18}, {"PAN", 14},
	{"Activities", 40}, {"Collaboration Plan", 40}, {"Status", 12}, {"Submitted", 20},
}

var hospitalColumns = []column{
	{"ID", 22}, {"Name", 30}, {"Registration Number", 22},
	{"Contact Person", 22}, {"Contact Email", 28}, {"Contact Phone", 16},
	{"Address", 36}, {"City", 16}, {"State", 16}, {"Pincode", 10},
	{"Blood Bank Registration", 24}, {"Collaboration Details", 40},
	{"Specific Requirements", 40}, {"Status", 12}, {"Submitted", 20},
}

// NgoWorkbook returns an XLSX file with one row per NGO application, in the
// order given.
func NgoWorkbook(regs []model.NgoRegistration) ([]byte, error) {
	rows := make([][]any, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, []any{
			r.ID, r.Name, string(r.RegistrationType), r.RegistrationNumber,
			r.ContactPersonName, r.ContactPersonEmail, r.ContactPersonPhone,
			r.Address, r.City, r.State, r.Pincode,
			deref(r.Certificate12A), deref(r.Certificate80G), r.PanNumber,
			r.ActivitiesDescription, r.CollaborationPlan, string(r.Status),
			r.CreatedAt.Format(timeLayout),
		})
	}
	return workbook(NgoSheet, ngoColumns, rows)
}

// HospitalWorkbook returns an XLSX file with one row per hospital application.
func HospitalWorkbook(regs []model.HospitalRegistration) ([]byte, error) {
	rows := make([][]any, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, []any{
			r.ID, r.Name, deref(r.RegistrationNumber),
			r.ContactPersonName, r.ContactPersonEmail, r.ContactPersonPhone,
			r.Address, r.City, r.State, r.Pincode,
			deref(r.BloodBankRegistrationNumber), r.CollaborationDetails,
			deref(r.SpecificRequirements), string(r.Status),
			r.CreatedAt.Format(timeLayout),
		})
	}
	return workbook(HospitalSheet, hospitalColumns, rows)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// workbook writes a single-sheet file: bold header row, fixed column widths,
// frozen header.
func workbook(sheet string, cols []column, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close runs after the buffer is filled.
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("export: creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export: removing default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("export: locating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E2"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("export: creating header style: %w", err)
	}

	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return nil, fmt.Errorf("export: writing header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("export: styling header %s: %w", cell, err)
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("export: setting width of column %s: %w", name, err)
		}
	}

	for r, values := range rows {
		// Row 1 is the header.
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("export: writing row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("export: freezing header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export: writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
