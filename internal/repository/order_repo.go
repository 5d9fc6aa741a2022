package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID finds an order by its primary id, or nil when absent
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByUser lists a customer's orders, newest first
func (r *OrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkReturnRequested records a return against an order. The return_status
// guard keeps a concurrent second verification from overwriting an existing
// return.
func (r *OrderRepository) MarkReturnRequested(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND return_status IS NULL", id).
		Updates(map[string]interface{}{
			"return_status": model.ReturnStatusRequested,
			"updated_at":    now,
		}).Error
}
