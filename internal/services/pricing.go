package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
)

// PricingService lets staff price individual lab test items.
type PricingService struct {
	db     *gorm.DB
	access policy.Access
	obs    Observer
}

func NewPricingService(db *gorm.DB, obs Observer) *PricingService {
	return &PricingService{db: db, obs: orNop(obs)}
}

// ParsePrice accepts a non-negative integer.
func ParsePrice(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return n, nil
}

// SetItemPrice updates one item. The returned item carries its request id so
// callers can redirect back to the parent.
func (s *PricingService) SetItemPrice(ctx context.Context, actor policy.Actor, itemID uint, newPrice string) (*models.LabTestItem, error) {
	if !s.access.CanSetItemPrice(actor) {
		return nil, ErrForbidden
	}
	var item models.LabTestItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, notFound(err, "lab item")
	}
	price, err := ParsePrice(newPrice)
	if err != nil {
		return &item, err
	}
	if err := s.db.WithContext(ctx).Model(&item).Update("price", price).Error; err != nil {
		return nil, fmt.Errorf("save price: %w", err)
	}
	s.obs.PriceChanged()
	item.Price = price
	return &item, nil
}
