package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/diewo77/labdesk/internal/models"
)

func readSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestLabWorkbook(t *testing.T) {
	code := "12345678"
	received := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	data, err := LabWorkbook([]models.LabTestSummary{{
		LabTestRequest: models.LabTestRequest{
			ID:                     4,
			CreatedAt:              time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			UserID:                 2,
			ProjectName:            "Bridge",
			ReceivingDate:          &received,
			Status:                 models.StatusReportDelivered,
			ReportVerificationCode: &code,
		},
		TotalAmount: 350,
	}})
	require.NoError(t, err)

	rows := readSheet(t, data, "Lab Tests")
	require.Len(t, rows, 2)
	assert.Equal(t, "Project", rows[0][3])
	assert.Equal(t, "Bridge", rows[1][3])
	assert.Equal(t, "05/03/2025", rows[1][8])
	assert.Equal(t, "Report Delivered", rows[1][9])
	assert.Equal(t, "12345678", rows[1][10])
	assert.Equal(t, "350", rows[1][11])
}

func TestConsultancyWorkbook_Empty(t *testing.T) {
	data, err := ConsultancyWorkbook(nil)
	require.NoError(t, err)
	rows := readSheet(t, data, "Consultancy")
	require.Len(t, rows, 1)
	assert.Equal(t, "Amount", rows[0][7])
}

func TestConsultancyWorkbook_Amount(t *testing.T) {
	amount := 199.99
	data, err := ConsultancyWorkbook([]models.ConsultancyRequest{{ID: 1, ProjectName: "Dam", Amount: &amount, Status: models.StatusRequested}})
	require.NoError(t, err)
	rows := readSheet(t, data, "Consultancy")
	require.Len(t, rows, 2)
	assert.Equal(t, "199.99", rows[1][7])
	assert.Equal(t, "Requested", rows[1][8])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "lab-requests-20250301.xlsx", Filename(models.FamilyLab, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}
