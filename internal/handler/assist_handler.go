package handler

import (
	"net/http"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/pkg/assist"
	"github.com/gin-gonic/gin"
)

// AssistHandler proxies storefront AI requests to the model provider
type AssistHandler struct {
	client *assist.Client
}

func NewAssistHandler(client *assist.Client) *AssistHandler {
	return &AssistHandler{client: client}
}

// Generate godoc
// @Summary Generate an AI answer for the customer profile assistant
// @Tags Assist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.AssistRequest true "Assist request"
// @Success 200 {object} model.AssistResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /assist [post]
func (h *AssistHandler) Generate(c *gin.Context) {
	if !h.client.Configured() {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Missing Gemini API key"})
		return
	}

	var req model.AssistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	messages := make([]assist.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, assist.Message{
			Role:     m.Role,
			Content:  m.Content,
			ImageURL: m.ImageURL,
		})
	}

	temperature := assist.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	content, err := h.client.GenerateContent(c.Request.Context(), messages, req.Model, temperature)
	if err != nil {
		c.JSON(http.StatusBadGateway, model.ErrorResponse{Error: "AI request failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.AssistResponse{Content: content})
}
