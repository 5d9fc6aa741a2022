package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/service"
	"github.com/gin-gonic/gin"
)

// respondError translates service failures into the JSON error envelope.
// Verification-domain failures keep the storefront's differentiated messages;
// store failures collapse into a generic 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAdminNotConfigured):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Missing ADMIN_OTP_EMAIL"})
	case errors.Is(err, service.ErrAdminEmailMismatch):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid admin email"})
	case errors.Is(err, service.ErrCodeMalformed), errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid OTP"})
	case errors.Is(err, service.ErrOTPExpired):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "OTP expired"})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Too many attempts. Please resend OTP."})
	case errors.Is(err, service.ErrDeliveryFailed):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to send OTP"})
	case errors.Is(err, service.ErrMailerNotConfigured):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Missing email configuration"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Order not found"})
	case errors.Is(err, service.ErrOrderForbidden):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "Forbidden"})
	case errors.Is(err, service.ErrOrderNotDelivered):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Order is not delivered"})
	case errors.Is(err, service.ErrReturnAlreadyRequested):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Return already requested"})
	case errors.Is(err, service.ErrMissingCustomerEmail):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Missing customer email"})
	default:
		log.Printf("❌ Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
	}
}
