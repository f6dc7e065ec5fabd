package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/catalog"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/validation"
)

// ReceivingDateLayout is the accepted receiving date input format (dd/mm/yyyy).
const ReceivingDateLayout = "02/01/2006"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// LabRequestInput is the submitted lab request form.
type LabRequestInput struct {
	ProjectName       string
	ReferenceNumber   string
	ClientName        string
	ProjectLocation   string
	DescriptionHTML   string
	SampleBy          string
	ReceivingDate     string
	SampleDescription string
	ItemsJSON         string
}

// ConsultancyInput is the submitted consultancy request form.
type ConsultancyInput struct {
	ProjectName     string
	Organization    string
	Location        string
	ReferenceNumber string
	DescriptionHTML string
}

// ListFilter narrows and pages list queries.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultPageSize
	case f.Limit > maxPageSize:
		return maxPageSize
	}
	return f.Limit
}

// Page is one page of list results.
type Page[T any] struct {
	Rows   []T   `json:"rows"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Dashboard summarises the actor's visible requests.
type Dashboard struct {
	RecentLab            []models.LabTestRequest     `json:"recent_lab"`
	RecentConsultancy    []models.ConsultancyRequest `json:"recent_consultancy"`
	DeliveredLab         []models.LabTestRequest     `json:"delivered_lab"`
	DeliveredConsultancy []models.ConsultancyRequest `json:"delivered_consultancy"`
	CompletedCount       int64                       `json:"completed_count"`
	IsPrivileged         bool                        `json:"is_privileged"`
}

// RequestService handles creation, listing and documents of both request families.
type RequestService struct {
	db      *gorm.DB
	store   blob.Store
	catalog *catalog.Catalog
	log     *zap.Logger
	access  policy.Access
}

func NewRequestService(db *gorm.DB, store blob.Store, cat *catalog.Catalog, log *zap.Logger) *RequestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestService{db: db, store: store, catalog: cat, log: log}
}

// CreateLabRequest creates a request owned by the actor with status requested.
// Malformed items are dropped and logged; they never fail the creation.
func (s *RequestService) CreateLabRequest(ctx context.Context, actor policy.Actor, in LabRequestInput, spec *Upload) (*models.LabTestRequest, error) {
	if !s.access.CanCreate(actor) {
		return nil, ErrForbidden
	}
	v := validation.Violations{}
	validation.Required("project_name", in.ProjectName, v)
	var receiving *time.Time
	if raw := strings.TrimSpace(in.ReceivingDate); raw != "" {
		d, err := time.Parse(ReceivingDateLayout, raw)
		if err != nil {
			v.Add("receiving_date", "invalid_date")
		} else {
			receiving = &d
		}
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	req := models.LabTestRequest{
		UserID:            actor.UserID,
		ProjectName:       strings.TrimSpace(in.ProjectName),
		ReferenceNumber:   strings.TrimSpace(in.ReferenceNumber),
		ClientName:        strings.TrimSpace(in.ClientName),
		ProjectLocation:   strings.TrimSpace(in.ProjectLocation),
		DescriptionHTML:   in.DescriptionHTML,
		SampleBy:          strings.TrimSpace(in.SampleBy),
		ReceivingDate:     receiving,
		SampleDescription: in.SampleDescription,
		Status:            models.StatusRequested,
		Items:             s.parseItems(in.ItemsJSON),
	}
	key, err := storeUpload(ctx, s.store, PrefixSpecDocuments, spec)
	if err != nil {
		return nil, err
	}
	req.SpecDocument = key

	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		s.discard(ctx, key)
		return nil, fmt.Errorf("create lab request: %w", err)
	}
	s.log.Info("lab request created",
		zap.Uint("request_id", req.ID), zap.Uint("user_id", actor.UserID), zap.Int("items", len(req.Items)))
	return &req, nil
}

type itemPayload struct {
	Lab         string          `json:"lab"`
	Subcategory string          `json:"subcategory"`
	Name        string          `json:"name"`
	Price       json.RawMessage `json:"price"`
}

// parseItems decodes the items_json form field. Items without a name or with
// a negative or non-integer price are dropped. A missing price takes the
// catalog rate when the test is listed, otherwise 0.
func (s *RequestService) parseItems(raw string) []models.LabTestItem {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.log.Warn("dropping malformed items payload", zap.Error(err))
		return nil
	}
	items := make([]models.LabTestItem, 0, len(payload))
	for i, elem := range payload {
		var p itemPayload
		if err := json.Unmarshal(elem, &p); err != nil {
			s.log.Warn("dropping malformed item", zap.Int("index", i), zap.Error(err))
			continue
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			s.log.Warn("dropping item without name", zap.Int("index", i))
			continue
		}
		price, given, err := decodePrice(p.Price)
		if err != nil {
			s.log.Warn("dropping item with bad price", zap.Int("index", i), zap.String("name", name), zap.Error(err))
			continue
		}
		if !given {
			price, _ = s.catalog.Price(p.Lab, p.Subcategory, name)
		}
		items = append(items, models.LabTestItem{
			Lab:         strings.TrimSpace(p.Lab),
			Subcategory: strings.TrimSpace(p.Subcategory),
			TestName:    name,
			Price:       price,
		})
	}
	return items
}

// decodePrice accepts a JSON number, a numeric string, or null/empty meaning "not given".
func decodePrice(raw json.RawMessage) (int64, bool, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" || text == `""` {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f < 0 || f != math.Trunc(f) || f > 1e15 {
			return 0, false, ErrInvalidPrice
		}
		return int64(f), true, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false, ErrInvalidPrice
	}
	if strings.TrimSpace(str) == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil || n < 0 {
		return 0, false, ErrInvalidPrice
	}
	return n, true, nil
}

// CreateConsultancyRequest creates a consultancy request owned by the actor.
func (s *RequestService) CreateConsultancyRequest(ctx context.Context, actor policy.Actor, in ConsultancyInput, attachment *Upload) (*models.ConsultancyRequest, error) {
	if !s.access.CanCreate(actor) {
		return nil, ErrForbidden
	}
	v := validation.Violations{}
	validation.Required("project_name", in.ProjectName, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	req := models.ConsultancyRequest{
		UserID:          actor.UserID,
		ProjectName:     strings.TrimSpace(in.ProjectName),
		Organization:    strings.TrimSpace(in.Organization),
		Location:        strings.TrimSpace(in.Location),
		ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
		DescriptionHTML: in.DescriptionHTML,
		Status:          models.StatusRequested,
	}
	key, err := storeUpload(ctx, s.store, PrefixAttachments, attachment)
	if err != nil {
		return nil, err
	}
	req.Attachment = key
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		s.discard(ctx, key)
		return nil, fmt.Errorf("create consultancy request: %w", err)
	}
	s.log.Info("consultancy request created", zap.Uint("request_id", req.ID), zap.Uint("user_id", actor.UserID))
	return &req, nil
}

func (s *RequestService) discard(ctx context.Context, key string) {
	discardUpload(ctx, s.store, s.log, key)
}

// GetLabRequest returns a request with its items. Records the actor may not
// see are reported as ErrNotFound.
func (s *RequestService) GetLabRequest(ctx context.Context, actor policy.Actor, id uint) (*models.LabTestRequest, error) {
	var req models.LabTestRequest
	err := s.db.WithContext(ctx).Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).First(&req, id).Error
	if err != nil {
		return nil, notFound(err, "lab request")
	}
	if !s.access.CanView(actor, req.UserID) {
		return nil, ErrNotFound
	}
	return &req, nil
}

// GetConsultancyRequest returns a consultancy request visible to the actor.
func (s *RequestService) GetConsultancyRequest(ctx context.Context, actor policy.Actor, id uint) (*models.ConsultancyRequest, error) {
	var req models.ConsultancyRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "consultancy request")
	}
	if !s.access.CanView(actor, req.UserID) {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (s *RequestService) scoped(ctx context.Context, actor policy.Actor, model any, f ListFilter) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(model)
	if !s.access.CanListAll(actor) {
		q = q.Where("user_id = ?", actor.UserID)
	}
	if raw := strings.TrimSpace(f.Status); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", st)
	}
	return q, nil
}

const labTotalColumn = "(SELECT COALESCE(SUM(lab_test_items.price), 0) FROM lab_test_items WHERE lab_test_items.request_id = lab_test_requests.id) AS total_amount"

// ListLabRequests lists visible lab requests, newest first, with derived totals.
func (s *RequestService) ListLabRequests(ctx context.Context, actor policy.Actor, f ListFilter) (*Page[models.LabTestSummary], error) {
	if actor.Anonymous() {
		return nil, ErrForbidden
	}
	page := &Page[models.LabTestSummary]{Limit: f.limit(), Offset: max(f.Offset, 0)}
	q, err := s.scoped(ctx, actor, &models.LabTestRequest{}, f)
	if err != nil {
		return nil, err
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count lab requests: %w", err)
	}
	q, _ = s.scoped(ctx, actor, &models.LabTestRequest{}, f)
	err = q.Select("lab_test_requests.*, " + labTotalColumn).
		Order("created_at DESC, id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Scan(&page.Rows).Error
	if err != nil {
		return nil, fmt.Errorf("list lab requests: %w", err)
	}
	return page, nil
}

// ListConsultancyRequests lists visible consultancy requests, newest first.
func (s *RequestService) ListConsultancyRequests(ctx context.Context, actor policy.Actor, f ListFilter) (*Page[models.ConsultancyRequest], error) {
	if actor.Anonymous() {
		return nil, ErrForbidden
	}
	page := &Page[models.ConsultancyRequest]{Limit: f.limit(), Offset: max(f.Offset, 0)}
	q, err := s.scoped(ctx, actor, &models.ConsultancyRequest{}, f)
	if err != nil {
		return nil, err
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count consultancy requests: %w", err)
	}
	q, _ = s.scoped(ctx, actor, &models.ConsultancyRequest{}, f)
	err = q.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&page.Rows).Error
	if err != nil {
		return nil, fmt.Errorf("list consultancy requests: %w", err)
	}
	return page, nil
}

// UploadLabReceipt stores a payment receipt for a lab request.
func (s *RequestService) UploadLabReceipt(ctx context.Context, actor policy.Actor, id uint, up *Upload) (*models.LabTestRequest, error) {
	var req models.LabTestRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "lab request")
	}
	if err := s.attachReceipt(ctx, actor, req.UserID, &req, up); err != nil {
		return nil, err
	}
	return &req, nil
}

// UploadConsultancyReceipt stores a payment receipt for a consultancy request.
func (s *RequestService) UploadConsultancyReceipt(ctx context.Context, actor policy.Actor, id uint, up *Upload) (*models.ConsultancyRequest, error) {
	var req models.ConsultancyRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "consultancy request")
	}
	if err := s.attachReceipt(ctx, actor, req.UserID, &req, up); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *RequestService) attachReceipt(ctx context.Context, actor policy.Actor, owner uint, model any, up *Upload) error {
	if !s.access.CanView(actor, owner) {
		return ErrNotFound
	}
	if !s.access.CanUploadReceipt(actor, owner) {
		return ErrForbidden
	}
	if up == nil || up.Body == nil {
		return invalid(validation.Violations{"payment_receipt": "required"})
	}
	key, err := storeUpload(ctx, s.store, PrefixReceipts, up)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(model).Update("payment_receipt", key).Error; err != nil {
		s.discard(ctx, key)
		return fmt.Errorf("save receipt: %w", err)
	}
	s.log.Info("payment receipt uploaded", zap.String("key", key), zap.Uint("user_id", actor.UserID))
	return nil
}

// Dashboard returns recent undelivered requests (5 per family), delivered
// reports (20 per family) and the number of delivered reports.
func (s *RequestService) Dashboard(ctx context.Context, actor policy.Actor) (*Dashboard, error) {
	if actor.Anonymous() {
		return nil, ErrForbidden
	}
	d := &Dashboard{IsPrivileged: s.access.CanListAll(actor)}
	scope := func(model any) *gorm.DB {
		q := s.db.WithContext(ctx).Model(model)
		if !d.IsPrivileged {
			q = q.Where("user_id = ?", actor.UserID)
		}
		return q
	}
	delivered := models.StatusReportDelivered
	steps := []func() error{
		func() error {
			return scope(&models.LabTestRequest{}).Where("status <> ?", delivered).Order("created_at DESC, id DESC").Limit(5).Find(&d.RecentLab).Error
		},
		func() error {
			return scope(&models.ConsultancyRequest{}).Where("status <> ?", delivered).Order("created_at DESC, id DESC").Limit(5).Find(&d.RecentConsultancy).Error
		},
		func() error {
			return scope(&models.LabTestRequest{}).Where("status = ?", delivered).Order("created_at DESC, id DESC").Limit(20).Find(&d.DeliveredLab).Error
		},
		func() error {
			return scope(&models.ConsultancyRequest{}).Where("status = ?", delivered).Order("created_at DESC, id DESC").Limit(20).Find(&d.DeliveredConsultancy).Error
		},
		func() error {
			var lab, cons int64
			if err := scope(&models.LabTestRequest{}).Where("status = ?", delivered).Count(&lab).Error; err != nil {
				return err
			}
			if err := scope(&models.ConsultancyRequest{}).Where("status = ?", delivered).Count(&cons).Error; err != nil {
				return err
			}
			d.CompletedCount = lab + cons
			return nil
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}
	return d, nil
}

// OpenFile returns a stored document if the actor may see the record that
// references it. Unreferenced keys and foreign records give ErrNotFound.
func (s *RequestService) OpenFile(ctx context.Context, actor policy.Actor, key string) (blob.Info, io.ReadCloser, error) {
	owner, err := s.fileOwner(ctx, key)
	if err != nil {
		return blob.Info{}, nil, err
	}
	if !s.access.CanView(actor, owner) {
		return blob.Info{}, nil, ErrNotFound
	}
	info, rc, err := s.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, ErrNotFound
	}
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("open %s: %w", key, err)
	}
	return info, rc, nil
}

func (s *RequestService) fileOwner(ctx context.Context, key string) (uint, error) {
	if strings.TrimSpace(key) == "" {
		return 0, ErrNotFound
	}
	lookups := []struct {
		model any
		where string
	}{
		{&models.LabTestRequest{}, "spec_document = ? OR payment_receipt = ?"},
		{&models.ConsultancyRequest{}, "attachment = ? OR payment_receipt = ?"},
		{&models.Profile{}, "profile_image = ? OR profile_image = ?"},
	}
	for _, l := range lookups {
		var owners []uint
		if err := s.db.WithContext(ctx).Model(l.model).Where(l.where, key, key).Limit(1).Pluck("user_id", &owners).Error; err != nil {
			return 0, fmt.Errorf("find file owner: %w", err)
		}
		if len(owners) > 0 {
			return owners[0], nil
		}
	}
	return 0, ErrNotFound
}

// ExportLab returns every lab request with totals for staff exports.
func (s *RequestService) ExportLab(ctx context.Context, actor policy.Actor) ([]models.LabTestSummary, error) {
	if !s.access.CanExport(actor) {
		return nil, ErrForbidden
	}
	var rows []models.LabTestSummary
	err := s.db.WithContext(ctx).Model(&models.LabTestRequest{}).
		Select("lab_test_requests.*, " + labTotalColumn).
		Order("created_at DESC, id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export lab requests: %w", err)
	}
	return rows, nil
}

// ExportConsultancy returns every consultancy request for staff exports.
func (s *RequestService) ExportConsultancy(ctx context.Context, actor policy.Actor) ([]models.ConsultancyRequest, error) {
	if !s.access.CanExport(actor) {
		return nil, ErrForbidden
	}
	var rows []models.ConsultancyRequest
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("export consultancy requests: %w", err)
	}
	return rows, nil
}
