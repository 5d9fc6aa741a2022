package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Admin login OTP DTOs ==========

type AdminOTPRequest struct {
	Action string `json:"action" binding:"required,oneof=request verify"`
	Email  string `json:"email" binding:"omitempty,email"`
	OTP    string `json:"otp"`
}

// ========== Return OTP DTOs ==========

type ReturnOTPRequest struct {
	Action  string `json:"action" binding:"required,oneof=request resend verify"`
	OrderID string `json:"order_id" binding:"required,uuid"`
	OTP     string `json:"otp"`
}

// OTPResponse is the success envelope for both OTP endpoints
type OTPResponse struct {
	OK        bool       `json:"ok"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Throttled bool       `json:"throttled,omitempty"`
}

// ========== Assist DTOs ==========

type AssistMessage struct {
	Role     string `json:"role" binding:"required"`
	Content  string `json:"content" binding:"required"`
	ImageURL string `json:"image_url"`
}

type AssistRequest struct {
	Messages    []AssistMessage `json:"messages" binding:"required,min=1,dive"`
	Model       string          `json:"model"`
	Temperature *float64        `json:"temperature"`
}

type AssistResponse struct {
	Content string `json:"content"`
}

// ========== Order DTOs ==========

// OrderResponse is the customer-facing view of an order
type OrderResponse struct {
	ID           uuid.UUID     `json:"id"`
	Reference    string        `json:"reference"`
	Status       OrderStatus   `json:"status"`
	ReturnStatus *ReturnStatus `json:"return_status"`
	TotalCents   int64         `json:"total_cents"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ToResponse converts Order to its customer-facing view
func (o *Order) ToResponse() OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		Reference:    o.Reference,
		Status:       o.Status,
		ReturnStatus: o.ReturnStatus,
		TotalCents:   o.TotalCents,
		CreatedAt:    o.CreatedAt,
	}
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
