package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is used when the caller does not pick one
	DefaultModel = "gemini-3-flash-preview"

	// DefaultTemperature keeps storefront answers deterministic
	DefaultTemperature = 0.1

	maxOutputTokens = 1000
)

// Message is one turn of the conversation forwarded to the model. ImageURL,
// when set, must be a data URL; its base64 payload is passed through inline.
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// Client proxies generateContent calls to the Gemini API
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Gemini client. An empty API key disables the client;
// Configured reports that state.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent forwards a conversation to the model and returns the
// generated text. Temperature is clamped to the API's [0, 2] range.
func (c *Client) GenerateContent(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	if !c.Configured() {
		return "", errors.New("missing Gemini API key")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 2 {
		temperature = 2
	}

	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		// Gemini speaks "user" and "model", not "assistant".
		role := "model"
		if msg.Role == "user" {
			role = "user"
		}

		parts := []geminiPart{{Text: msg.Content}}
		if mime, data, ok := parseDataURL(msg.ImageURL); ok {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: data}})
		}

		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	payload, err := json.Marshal(generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("gemini error: %s", out.Error.Message)
		}
		return "", fmt.Errorf("gemini returned %s", res.Status)
	}

	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// parseDataURL splits a data:image/...;base64,... URL into mime type and payload
func parseDataURL(url string) (mime, data string, ok bool) {
	if !strings.HasPrefix(url, "data:image") {
		return "", "", false
	}
	header, payload, found := strings.Cut(url, ",")
	if !found {
		return "", "", false
	}
	mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, payload, true
}
