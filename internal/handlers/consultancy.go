package handlers

import (
	"fmt"
	"net/http"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/i18n"
	"github.com/diewo77/labdesk/internal/services"
)

const consultancyListPath = "/dashboard/consultancy"

type ConsultancyHandler struct {
	Base
	requests *services.RequestService
	workflow *services.WorkflowService
}

func NewConsultancyHandler(base Base, requests *services.RequestService, workflow *services.WorkflowService) *ConsultancyHandler {
	return &ConsultancyHandler{Base: base, requests: requests, workflow: workflow}
}

func consultancyDetailPath(id uint) string { return fmt.Sprintf("%s/%d", consultancyListPath, id) }

func (h *ConsultancyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.requests.ListConsultancyRequests(r.Context(), h.actor(r), listFilter(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, page)
		return
	}
	h.render(w, r, http.StatusOK, "consultancy_list.html", map[string]any{"Page": page})
}

func (h *ConsultancyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, consultancyListPath)
		return
	}
	attachment, closeAttachment, err := formUpload(r, "attachment")
	if err != nil {
		h.writeError(w, r, err, consultancyListPath)
		return
	}
	defer closeAttachment()

	req, err := h.requests.CreateConsultancyRequest(r.Context(), h.actor(r), services.ConsultancyInput{
		ProjectName:     r.FormValue("project_name"),
		Organization:    r.FormValue("organization"),
		Location:        r.FormValue("location"),
		ReferenceNumber: r.FormValue("reference_number"),
		DescriptionHTML: r.FormValue("description_html"),
	}, attachment)
	if v, ok := services.AsViolations(err); ok && !httpx.WantsJSON(r) {
		page, listErr := h.requests.ListConsultancyRequests(r.Context(), h.actor(r), services.ListFilter{})
		if listErr != nil {
			h.writeError(w, r, listErr, "")
			return
		}
		h.render(w, r, http.StatusOK, "consultancy_list.html", map[string]any{"Page": page, "Errors": v})
		return
	}
	if err != nil {
		h.writeError(w, r, err, consultancyListPath)
		return
	}
	h.done(w, r, http.StatusCreated, req, "request_created", consultancyListPath)
}

func (h *ConsultancyHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	req, err := h.requests.GetConsultancyRequest(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, req)
		return
	}
	h.render(w, r, http.StatusOK, "consultancy_detail.html", map[string]any{"Request": req, "Title": req.ProjectName})
}

// UpdateStatus also saves the optional amount. An unparseable amount is
// reported as a warning next to the status result.
func (h *ConsultancyHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	back := safeNext(r, consultancyListPath)
	out, err := h.workflow.SetConsultancyStatus(r.Context(), h.actor(r), id, services.StatusChange{
		Status: r.FormValue("status"),
		Code:   r.FormValue("verification_code"),
		Amount: r.FormValue("amount"),
	})
	var warnings []string
	var warningFlashes []httpx.Flash
	if out != nil {
		for _, wrn := range out.Warnings {
			code := services.Code(wrn)
			warnings = append(warnings, code)
			warningFlashes = append(warningFlashes, httpx.Flash{Kind: "warning", Message: i18n.T(lang(r), code)})
		}
	}
	if err != nil {
		h.writeErrorWith(w, r, err, back, warningFlashes)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"request": out.Record, "warnings": warnings})
		return
	}
	flashes := append([]httpx.Flash{{Kind: "success", Message: i18n.T(lang(r), "status_updated")}}, warningFlashes...)
	httpx.SetFlash(w, flashes...)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *ConsultancyHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	back := safeNext(r, consultancyDetailPath(id))
	receipt, closeReceipt, err := formUpload(r, "payment_receipt")
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	defer closeReceipt()
	req, err := h.requests.UploadConsultancyReceipt(r.Context(), h.actor(r), id, receipt)
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	h.done(w, r, http.StatusOK, req, "receipt_uploaded", back)
}
