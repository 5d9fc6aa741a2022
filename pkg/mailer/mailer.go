package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

// Config holds the transactional email provider settings
type Config struct {
	APIKey  string
	From    string
	AppName string
	LogoURL string
	BaseURL string // override for tests
}

// Mailer sends transactional email through the Resend HTTP API
type Mailer struct {
	config Config
	client *http.Client
}

// New creates a new Mailer instance
func New(cfg Config) *Mailer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Mailer{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether the provider credentials are present
func (m *Mailer) Configured() bool {
	return m.config.APIKey != "" && m.config.From != ""
}

// SendAdminLoginOTP sends the admin login verification code
func (m *Mailer) SendAdminLoginOTP(to, code string, expiryMinutes int) error {
	subject := fmt.Sprintf("%s admin login OTP", m.config.AppName)

	body, err := m.renderAdminLoginTemplate(code, expiryMinutes)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(to, subject, body)
}

// SendReturnOTP sends the order return verification code
func (m *Mailer) SendReturnOTP(to, code, orderRef string, expiryMinutes int) error {
	subject := fmt.Sprintf("%s return OTP: %s", m.config.AppName, code)

	body, err := m.renderReturnTemplate(code, orderRef, expiryMinutes)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(to, subject, body)
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// send delivers a single email. Failures are never retried here; the resend
// action exists so the user can recover without risking duplicate codes.
func (m *Mailer) send(to, subject, htmlBody string) error {
	payload, err := json.Marshal(sendRequest{
		From:    m.config.From,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, m.config.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		log.Printf("❌ Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Printf("❌ Email provider rejected send to %s: %s", to, res.Status)
		return fmt.Errorf("failed to send email: provider returned %s", res.Status)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}

// renderAdminLoginTemplate returns the HTML body for the admin login email
func (m *Mailer) renderAdminLoginTemplate(code string, expiryMinutes int) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background:#f6f7fb;font-family:ui-sans-serif,system-ui,-apple-system,'Segoe UI',Roboto,Helvetica,Arial;">
    <div style="max-width:560px;margin:0 auto;padding:28px 16px;">
        <div style="background:#ffffff;border:1px solid #e7e9f2;border-radius:14px;overflow:hidden;">
            <div style="padding:22px;background:linear-gradient(135deg,#0f172a,#1e3a8a);color:#fff;">
                {{if .LogoURL}}<img src="{{.LogoURL}}" alt="" width="34" height="34" style="border-radius:8px;display:block;" />{{end}}
                <div style="font-size:18px;font-weight:700;">{{.AppName}}</div>
                <div style="margin-top:8px;font-size:14px;opacity:0.9;">Admin login verification code</div>
            </div>
            <div style="padding:22px;">
                <p style="margin:0 0 12px;font-size:14px;color:#0f172a;">
                    Use the OTP below to complete admin login. This code expires in <b>{{.ExpiryMinutes}} minutes</b>.
                </p>
                <div style="margin:18px 0 10px;padding:18px;border:1px dashed #c7cbe2;border-radius:12px;background:#f8fafc;text-align:center;">
                    <div style="font-size:28px;font-weight:800;letter-spacing:6px;color:#0f172a;">{{.Code}}</div>
                </div>
                <p style="margin:12px 0 0;font-size:12px;color:#475569;">
                    If you didn't request this, you can ignore this email.
                </p>
            </div>
        </div>
    </div>
</body>
</html>`

	t, err := template.New("admin-login").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = t.Execute(&buf, map[string]interface{}{
		"AppName":       m.config.AppName,
		"LogoURL":       m.config.LogoURL,
		"Code":          code,
		"ExpiryMinutes": expiryMinutes,
	})
	return buf.String(), err
}

// renderReturnTemplate returns the HTML body for the order return email
func (m *Mailer) renderReturnTemplate(code, orderRef string, expiryMinutes int) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background:#f0f9ff;font-family:ui-sans-serif,system-ui,-apple-system,'Segoe UI',Roboto,Helvetica,Arial;">
    <div style="max-width:480px;margin:0 auto;padding:32px 18px;">
        <div style="background:#ffffff;border-radius:20px;overflow:hidden;">
            <div style="padding:28px 24px;background:linear-gradient(135deg,#1e40af,#0ea5e9);text-align:center;">
                <div style="font-size:22px;font-weight:800;color:#ffffff;">{{.AppName}}</div>
                <div style="margin-top:6px;font-size:13px;color:rgba(255,255,255,0.85);">Secure Return Verification</div>
            </div>
            <div style="padding:32px 24px;text-align:center;">
                <p style="margin:0 0 8px;color:#1e3a5f;font-size:15px;">Verification code for your return request</p>
                <div style="margin:16px 0;padding:12px 16px;background:#eff6ff;border-radius:10px;display:inline-block;">
                    <span style="color:#64748b;font-size:14px;">Order: </span>
                    <span style="color:#1e40af;font-weight:700;font-size:13px;">{{.OrderRef}}</span>
                </div>
                <div style="margin:24px 0;padding:20px;background:linear-gradient(135deg,#1e40af,#0ea5e9);border-radius:16px;">
                    <div style="font-size:36px;letter-spacing:10px;font-weight:800;color:#ffffff;">{{.Code}}</div>
                </div>
                <p style="margin:0;color:#92400e;font-size:13px;">Valid for {{.ExpiryMinutes}} minutes only.</p>
            </div>
            <div style="padding:20px 24px;background:#f1f5f9;text-align:center;">
                <p style="color:#64748b;font-size:12px;margin:0;">If you did not request this, please ignore this email.</p>
            </div>
        </div>
    </div>
</body>
</html>`

	t, err := template.New("return").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = t.Execute(&buf, map[string]interface{}{
		"AppName":       m.config.AppName,
		"OrderRef":      orderRef,
		"Code":          code,
		"ExpiryMinutes": expiryMinutes,
	})
	return buf.String(), err
}
