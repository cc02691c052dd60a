package repository

import (
	"context"
	"errors"
	"time"

	"checkout-service/models"

	"gorm.io/gorm"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// CheckoutRepository defines data-access operations for checkout records.
type CheckoutRepository interface {
	// Insert assigns ID and, when zero, Timestamp, then persists the record.
	Insert(ctx context.Context, checkout *models.Checkout) error
	// ListAll returns every record in ascending ID order.
	ListAll(ctx context.Context) ([]models.Checkout, error)
	// FindByDedupKey returns nil, nil when no record matches.
	FindByDedupKey(ctx context.Context, email, cardNumber string) (*models.Checkout, error)
	Count(ctx context.Context) (int64, error)
}

// GormCheckoutRepository implements CheckoutRepository using GORM.
type GormCheckoutRepository struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

// NewGormCheckoutRepository creates a new GormCheckoutRepository. A
// non-positive timeout falls back to DefaultTimeout.
func NewGormCheckoutRepository(db *gorm.DB, timeout time.Duration) *GormCheckoutRepository {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GormCheckoutRepository{db: db, timeout: timeout, now: time.Now}
}

func (r *GormCheckoutRepository) Insert(ctx context.Context, checkout *models.Checkout) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if checkout.Timestamp.IsZero() {
		checkout.Timestamp = r.now().UTC()
	}
	checkout.ID = 0
	return r.db.WithContext(ctx).Create(checkout).Error
}

func (r *GormCheckoutRepository) ListAll(ctx context.Context) ([]models.Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var checkouts []models.Checkout
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&checkouts).Error; err != nil {
		return nil, err
	}
	return checkouts, nil
}

func (r *GormCheckoutRepository) FindByDedupKey(ctx context.Context, email, cardNumber string) (*models.Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var c models.Checkout
	err := r.db.WithContext(ctx).
		Where("email = ? AND card_number = ?", email, cardNumber).
		Order("id ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCheckoutRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Checkout{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
