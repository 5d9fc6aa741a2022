package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus defines where an order is in its fulfilment lifecycle
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ReturnStatus tracks a return request against a delivered order
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
)

// Order represents a customer order as seen by the storefront API
type Order struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Reference     string        `json:"reference" gorm:"size:32;uniqueIndex;not null"` // human-readable order number
	UserID        uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	Status        OrderStatus   `json:"status" gorm:"size:20;not null;default:'pending'"`
	ReturnStatus  *ReturnStatus `json:"return_status"` // NULL = no return on record
	CustomerEmail string        `json:"customer_email" gorm:"size:255;not null"`
	TotalCents    int64         `json:"total_cents" gorm:"not null;default:0"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsDelivered checks if the order is eligible for a return flow
func (o *Order) IsDelivered() bool {
	return o.Status == OrderStatusDelivered
}

// HasReturn checks if a return has already been recorded
func (o *Order) HasReturn() bool {
	return o.ReturnStatus != nil
}
