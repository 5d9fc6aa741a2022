package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderForbidden         = errors.New("order belongs to another user")
	ErrOrderNotDelivered      = errors.New("order is not delivered")
	ErrReturnAlreadyRequested = errors.New("return already requested")
	ErrMissingCustomerEmail   = errors.New("missing customer email")
	ErrMailerNotConfigured    = errors.New("email provider not configured")
)

// ReturnMailer delivers order return codes
type ReturnMailer interface {
	Configured() bool
	SendReturnOTP(to, code, orderRef string, expiryMinutes int) error
}

// OrderDirectory is the slice of the order store the return flow needs
type OrderDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	MarkReturnRequested(ctx context.Context, id uuid.UUID, now time.Time) error
}

// ReturnOTPService guards the order return OTP flow. Codes are scoped to the
// (customer, order) pair, and eligibility is re-checked on every action: the
// order must belong to the bearer subject, be delivered, and have no return
// on record yet.
type ReturnOTPService struct {
	otp    *OTPService
	orders OrderDirectory
	mailer ReturnMailer
	now    func() time.Time
}

func NewReturnOTPService(otp *OTPService, orders OrderDirectory, mailer ReturnMailer) *ReturnOTPService {
	return &ReturnOTPService{
		otp:    otp,
		orders: orders,
		mailer: mailer,
		now:    time.Now,
	}
}

// returnScope binds a code to one customer and one order
func returnScope(userID, orderID uuid.UUID) string {
	return userID.String() + ":" + orderID.String()
}

func (s *ReturnOTPService) eligibleOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderForbidden
	}
	if !order.IsDelivered() {
		return nil, ErrOrderNotDelivered
	}
	if order.HasReturn() {
		return nil, ErrReturnAlreadyRequested
	}
	return order, nil
}

// RequestCode issues a return code for an eligible order and emails it to the
// order's customer address. "request" and "resend" are the same operation;
// the cooldown keeps resends from piling up records.
func (s *ReturnOTPService) RequestCode(ctx context.Context, userID, orderID uuid.UUID) (*IssueResult, error) {
	if !s.mailer.Configured() {
		return nil, ErrMailerNotConfigured
	}

	order, err := s.eligibleOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	to := strings.ToLower(strings.TrimSpace(order.CustomerEmail))
	if to == "" {
		return nil, ErrMissingCustomerEmail
	}

	minutes := int(s.otp.policy.TTL.Minutes())
	return s.otp.RequestCode(ctx, returnScope(userID, orderID), RequestMeta{}, func(code string, _ time.Time) error {
		return s.mailer.SendReturnOTP(to, code, order.Reference, minutes)
	})
}

// VerifyCode checks a submitted return code and, on success, records the
// return request against the order.
func (s *ReturnOTPService) VerifyCode(ctx context.Context, userID, orderID uuid.UUID, code string) error {
	if _, err := s.eligibleOrder(ctx, userID, orderID); err != nil {
		return err
	}

	if err := s.otp.VerifyCode(ctx, returnScope(userID, orderID), code); err != nil {
		return err
	}

	return s.orders.MarkReturnRequested(ctx, orderID, s.now())
}
