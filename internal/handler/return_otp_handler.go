package handler

import (
	"net/http"
	"strings"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnOTPHandler handles the order return OTP endpoint
type ReturnOTPHandler struct {
	returnOTP *service.ReturnOTPService
}

func NewReturnOTPHandler(returnOTP *service.ReturnOTPService) *ReturnOTPHandler {
	return &ReturnOTPHandler{returnOTP: returnOTP}
}

// Handle godoc
// @Summary Request, resend, or verify an order return OTP
// @Tags Returns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.ReturnOTPRequest true "Return OTP request"
// @Success 200 {object} model.OTPResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /returns/otp [post]
func (h *ReturnOTPHandler) Handle(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req model.ReturnOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid order_id"})
		return
	}

	switch req.Action {
	case "request", "resend":
		res, err := h.returnOTP.RequestCode(c.Request.Context(), userID, orderID)
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Throttled {
			c.JSON(http.StatusOK, model.OTPResponse{OK: true, Throttled: true})
			return
		}
		c.JSON(http.StatusOK, model.OTPResponse{OK: true, ExpiresAt: &res.ExpiresAt})

	case "verify":
		otp := strings.TrimSpace(req.OTP)
		if otp == "" {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid OTP"})
			return
		}
		if err := h.returnOTP.VerifyCode(c.Request.Context(), userID, orderID, otp); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.OTPResponse{OK: true})
	}
}
