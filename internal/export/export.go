// Package export renders request listings as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/labdesk/internal/models"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateTimeLayout = "2006-01-02 15:04:05"

type column struct {
	header string
	width  float64
}

var labColumns = []column{
	{"ID", 8},
	{"Created", 20},
	{"Client User ID", 14},
	{"Project", 30},
	{"Reference", 18},
	{"Client Name", 24},
	{"Location", 24},
	{"Sample By", 18},
	{"Receiving Date", 15},
	{"Status", 18},
	{"Verification Code", 18},
	{"Total", 12},
}

var consultancyColumns = []column{
	{"ID", 8},
	{"Created", 20},
	{"Client User ID", 14},
	{"Project", 30},
	{"Organization", 24},
	{"Location", 24},
	{"Reference", 18},
	{"Amount", 12},
	{"Status", 18},
	{"Verification Code", 18},
}

// LabWorkbook builds the lab request export.
func LabWorkbook(rows []models.LabTestSummary) ([]byte, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		var received any
		if r.ReceivingDate != nil {
			received = r.ReceivingDate.Format("02/01/2006")
		}
		data = append(data, []any{
			r.ID,
			r.CreatedAt.Format(dateTimeLayout),
			r.UserID,
			r.ProjectName,
			r.ReferenceNumber,
			r.ClientName,
			r.ProjectLocation,
			r.SampleBy,
			received,
			r.Status.Label(),
			deref(r.ReportVerificationCode),
			r.TotalAmount,
		})
	}
	return workbook("Lab Tests", labColumns, data)
}

// ConsultancyWorkbook builds the consultancy request export.
func ConsultancyWorkbook(rows []models.ConsultancyRequest) ([]byte, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		var amount any
		if r.Amount != nil {
			amount = *r.Amount
		}
		data = append(data, []any{
			r.ID,
			r.CreatedAt.Format(dateTimeLayout),
			r.UserID,
			r.ProjectName,
			r.Organization,
			r.Location,
			r.ReferenceNumber,
			amount,
			r.Status.Label(),
			deref(r.ReportVerificationCode),
		})
	}
	return workbook("Consultancy", consultancyColumns, data)
}

// Filename returns the attachment name for a family export.
func Filename(family models.Family, now time.Time) string {
	return fmt.Sprintf("%s-requests-%s.xlsx", family, now.Format("20060102"))
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func workbook(sheet string, cols []column, rows [][]any) (out []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("set width %s: %w", name, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for r, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
