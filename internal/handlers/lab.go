package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
)

const labListPath = "/dashboard/lab-tests"

// LabHandler serves lab test requests, their status workflow and item pricing.
type LabHandler struct {
	Base
	requests *services.RequestService
	workflow *services.WorkflowService
	pricing  *services.PricingService
}

func NewLabHandler(base Base, requests *services.RequestService, workflow *services.WorkflowService, pricing *services.PricingService) *LabHandler {
	return &LabHandler{Base: base, requests: requests, workflow: workflow, pricing: pricing}
}

func listFilter(r *http.Request) services.ListFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return services.ListFilter{Status: q.Get("status"), Limit: limit, Offset: offset}
}

func labDetailPath(id uint) string { return fmt.Sprintf("%s/%d", labListPath, id) }

func (h *LabHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.requests.ListLabRequests(r.Context(), h.actor(r), listFilter(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, page)
		return
	}
	h.render(w, r, http.StatusOK, "lab_list.html", map[string]any{"Page": page})
}

func (h *LabHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, labListPath)
		return
	}
	spec, closeSpec, err := formUpload(r, "spec_document")
	if err != nil {
		h.writeError(w, r, err, labListPath)
		return
	}
	defer closeSpec()

	in := services.LabRequestInput{
		ProjectName:       r.FormValue("project_name"),
		ReferenceNumber:   r.FormValue("reference_number"),
		ClientName:        r.FormValue("client_name"),
		ProjectLocation:   r.FormValue("project_location"),
		DescriptionHTML:   r.FormValue("description_html"),
		SampleBy:          r.FormValue("sample_by"),
		ReceivingDate:     r.FormValue("receiving_date"),
		SampleDescription: r.FormValue("sample_description"),
		ItemsJSON:         r.FormValue("items_json"),
	}
	req, err := h.requests.CreateLabRequest(r.Context(), h.actor(r), in, spec)
	if v, ok := services.AsViolations(err); ok && !httpx.WantsJSON(r) {
		page, listErr := h.requests.ListLabRequests(r.Context(), h.actor(r), services.ListFilter{})
		if listErr != nil {
			h.writeError(w, r, listErr, "")
			return
		}
		h.render(w, r, http.StatusOK, "lab_list.html", map[string]any{"Page": page, "Errors": v})
		return
	}
	if err != nil {
		h.writeError(w, r, err, labListPath)
		return
	}
	h.done(w, r, http.StatusCreated, req, "request_created", labListPath)
}

func (h *LabHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	req, err := h.requests.GetLabRequest(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"request": req, "total": req.Total()})
		return
	}
	h.render(w, r, http.StatusOK, "lab_detail.html", map[string]any{
		"Request": req,
		"Total":   req.Total(),
		"Title":   req.ProjectName,
	})
}

// UpdateStatus is staff only. Success and failure both return to "next".
func (h *LabHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	back := safeNext(r, labListPath)
	out, err := h.workflow.SetLabStatus(r.Context(), h.actor(r), id, services.StatusChange{
		Status: r.FormValue("status"),
		Code:   r.FormValue("verification_code"),
	})
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	h.done(w, r, http.StatusOK, out.Record, "status_updated", back)
}

func (h *LabHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	back := safeNext(r, labDetailPath(id))
	receipt, closeReceipt, err := formUpload(r, "payment_receipt")
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	defer closeReceipt()
	req, err := h.requests.UploadLabReceipt(r.Context(), h.actor(r), id, receipt)
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	h.done(w, r, http.StatusOK, req, "receipt_uploaded", back)
}

// UpdateItemPrice is staff only and returns to the parent request.
func (h *LabHandler) UpdateItemPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	item, err := h.pricing.SetItemPrice(r.Context(), h.actor(r), id, r.FormValue("price"))
	back := labListPath
	if item != nil {
		back = labDetailPath(item.RequestID)
	}
	if err != nil {
		h.writeError(w, r, err, back)
		return
	}
	h.done(w, r, http.StatusOK, item, "price_updated", back)
}
