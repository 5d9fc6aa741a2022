package handler

import (
	"net/http"
	"strings"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminOTPHandler handles the admin login OTP endpoint
type AdminOTPHandler struct {
	adminOTP *service.AdminOTPService
}

func NewAdminOTPHandler(adminOTP *service.AdminOTPService) *AdminOTPHandler {
	return &AdminOTPHandler{adminOTP: adminOTP}
}

// Handle godoc
// @Summary Request or verify an admin login OTP
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body model.AdminOTPRequest true "Admin OTP request"
// @Success 200 {object} model.OTPResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /admin/login-otp [post]
func (h *AdminOTPHandler) Handle(c *gin.Context) {
	var req model.AdminOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	switch req.Action {
	case "request":
		meta := service.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if err := h.adminOTP.RequestLogin(c.Request.Context(), req.Email, meta); err != nil {
			respondError(c, err)
			return
		}
		// Throttled and fresh requests look identical to the caller.
		c.JSON(http.StatusOK, model.OTPResponse{OK: true})

	case "verify":
		otp := strings.TrimSpace(req.OTP)
		if len(otp) < 4 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid OTP"})
			return
		}
		if err := h.adminOTP.VerifyLogin(c.Request.Context(), req.Email, otp); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.OTPResponse{OK: true})
	}
}
