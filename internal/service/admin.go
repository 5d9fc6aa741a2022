package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

var (
	ErrAdminNotConfigured = errors.New("admin otp email not configured")
	ErrAdminEmailMismatch = errors.New("invalid admin email")
)

// AdminMailer delivers admin login codes
type AdminMailer interface {
	Configured() bool
	SendAdminLoginOTP(to, code string, expiryMinutes int) error
}

// AdminOTPService guards the admin login OTP flow. The scope is a single
// operator email fixed by configuration; any other address is rejected before
// the core is touched.
type AdminOTPService struct {
	otp        *OTPService
	mailer     AdminMailer
	adminEmail string
}

func NewAdminOTPService(otp *OTPService, mailer AdminMailer, adminEmail string) *AdminOTPService {
	return &AdminOTPService{
		otp:        otp,
		mailer:     mailer,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

// authorize rejects any email that is not the configured operator address.
// An empty submitted email defaults to the configured one.
func (s *AdminOTPService) authorize(email string) error {
	if s.adminEmail == "" {
		return ErrAdminNotConfigured
	}
	if email == "" {
		return nil
	}
	if strings.ToLower(strings.TrimSpace(email)) != s.adminEmail {
		return ErrAdminEmailMismatch
	}
	return nil
}

// RequestLogin issues a fresh admin login code and emails it to the operator
func (s *AdminOTPService) RequestLogin(ctx context.Context, email string, meta RequestMeta) error {
	if err := s.authorize(email); err != nil {
		return err
	}

	minutes := int(s.otp.policy.TTL.Minutes())
	_, err := s.otp.RequestCode(ctx, s.adminEmail, meta, func(code string, _ time.Time) error {
		if !s.mailer.Configured() {
			// Mirror of the dev setup: without an email provider the code is
			// still persisted so operators can read it out of the store.
			log.Println("⚠️  Email provider not configured, admin OTP not delivered")
			return nil
		}
		return s.mailer.SendAdminLoginOTP(s.adminEmail, code, minutes)
	})
	return err
}

// VerifyLogin checks a submitted admin login code
func (s *AdminOTPService) VerifyLogin(ctx context.Context, email, code string) error {
	if err := s.authorize(email); err != nil {
		return err
	}
	return s.otp.VerifyCode(ctx, s.adminEmail, code)
}
