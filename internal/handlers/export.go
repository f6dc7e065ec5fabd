package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/labdesk/internal/export"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/services"
)

// ExportHandler streams Excel exports of either request family to staff.
type ExportHandler struct {
	Base
	requests *services.RequestService
	now      func() time.Time
}

func NewExportHandler(base Base, requests *services.RequestService) *ExportHandler {
	return &ExportHandler{Base: base, requests: requests, now: time.Now}
}

// Export serves /admin/export/{family}, where family is "lab" or
// "consultancy" with an optional .xlsx suffix.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	family := models.Family(strings.TrimSuffix(r.PathValue("family"), ".xlsx"))
	var (
		data []byte
		err  error
	)
	switch family {
	case models.FamilyLab:
		var rows []models.LabTestSummary
		if rows, err = h.requests.ExportLab(r.Context(), h.actor(r)); err == nil {
			data, err = export.LabWorkbook(rows)
		}
	case models.FamilyConsultancy:
		var rows []models.ConsultancyRequest
		if rows, err = h.requests.ExportConsultancy(r.Context(), h.actor(r)); err == nil {
			data, err = export.ConsultancyWorkbook(rows)
		}
	default:
		err = services.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(family, h.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
