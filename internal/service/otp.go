package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/repository"
)

// Verification-domain failures. Handlers map all of these to 400 with the
// message the storefront UI expects.
var (
	ErrCodeMalformed   = errors.New("malformed code")
	ErrOTPExpired      = errors.New("otp expired or missing")
	ErrInvalidCode     = errors.New("invalid code")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrDeliveryFailed  = errors.New("failed to send email")
)

// OTPPolicy fixes the issuance and verification rules for one integration
type OTPPolicy struct {
	CodeLength     int
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	MarkVerified   bool // record verified_at on success, distinct from consumption
}

// RequestMeta carries optional provenance captured at issuance
type RequestMeta struct {
	IP        string
	UserAgent string
}

// IssueResult reports the outcome of a code request
type IssueResult struct {
	Throttled bool
	ExpiresAt time.Time
}

// Delivery hands a freshly issued plaintext code to the out-of-band channel.
// A delivery error fails the whole request; the persisted record is only
// superseded by the next request, never silently resent.
type Delivery func(code string, expiresAt time.Time) error

// OTPService issues, rate-limits, and verifies short-lived numeric codes
// bound to an opaque scope key. It knows nothing about who owns a scope;
// caller authorization lives in the flow services wrapping it.
type OTPService struct {
	store  repository.OTPStore
	pepper string
	policy OTPPolicy
	now    func() time.Time
}

func NewOTPService(store repository.OTPStore, pepper string, policy OTPPolicy) *OTPService {
	return &OTPService{
		store:  store,
		pepper: pepper,
		policy: policy,
		now:    time.Now,
	}
}

// RequestCode issues a new code for scope and hands it to deliver.
//
// A request landing inside the cooldown window after the previous one is
// reported as throttled success: the active record is left untouched and no
// email goes out, so double-clicks neither spam the inbox nor reveal state.
// Supersession of the old code and insertion of the new one happen in a
// single transaction; losing the insert race to a concurrent request is
// folded into the throttled outcome.
func (s *OTPService) RequestCode(ctx context.Context, scope string, meta RequestMeta, deliver Delivery) (*IssueResult, error) {
	code, err := generateCode(s.policy.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	salt, err := generateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	now := s.now()
	result := &IssueResult{}

	err = s.store.Transaction(ctx, func(tx repository.OTPStore) error {
		last, err := tx.FindActive(ctx, scope)
		if err != nil {
			return err
		}
		if last != nil && now.Sub(last.CreatedAt) < s.policy.ResendCooldown {
			result.Throttled = true
			result.ExpiresAt = last.ExpiresAt
			return nil
		}

		if err := tx.ConsumeActive(ctx, scope, now); err != nil {
			return err
		}

		rec := &model.OTPRecord{
			ScopeKey:           scope,
			CodeHash:           hashCode(code, salt, s.pepper),
			CodeSalt:           salt,
			ExpiresAt:          now.Add(s.policy.TTL),
			RequesterIP:        meta.IP,
			RequesterUserAgent: meta.UserAgent,
			CreatedAt:          now,
		}
		if err := tx.Create(ctx, rec); err != nil {
			return err
		}
		result.ExpiresAt = rec.ExpiresAt
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateActiveCode) {
		// A concurrent request inserted first; its email is on the way.
		return &IssueResult{Throttled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Throttled {
		return result, nil
	}

	if err := deliver(code, result.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return result, nil
}

// VerifyCode checks a submitted code against the active record for scope.
//
// Only a syntactically valid guess consumes an attempt; malformed input is
// rejected before the store is touched. The read-check-write sequence runs in
// one transaction so concurrent guesses cannot exceed the attempt cap.
func (s *OTPService) VerifyCode(ctx context.Context, scope, code string) error {
	if !isDigits(code, s.policy.CodeLength) {
		return ErrCodeMalformed
	}

	now := s.now()

	return s.store.Transaction(ctx, func(tx repository.OTPStore) error {
		rec, err := tx.FindUsable(ctx, scope, now)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrOTPExpired
		}
		// Lockout normally consumes the record; this guards a record that
		// somehow reached the cap without being consumed.
		if rec.Attempts >= s.policy.MaxAttempts {
			return ErrTooManyAttempts
		}

		submitted := hashCode(code, rec.CodeSalt, s.pepper)
		if subtle.ConstantTimeCompare([]byte(submitted), []byte(rec.CodeHash)) != 1 {
			attempts := rec.Attempts + 1
			var lockedAt *time.Time
			if attempts >= s.policy.MaxAttempts {
				// The capping failure consumes the record; the right code no
				// longer helps and the user has to request a fresh one.
				lockedAt = &now
			}
			if err := tx.RecordFailure(ctx, rec.ID, attempts, lockedAt); err != nil {
				return err
			}
			if lockedAt != nil {
				return ErrTooManyAttempts
			}
			return ErrInvalidCode
		}

		return tx.Consume(ctx, rec.ID, now, s.policy.MarkVerified)
	})
}

// hashCode computes the stored digest: sha256 of code:salt:pepper, hex
// encoded. The pepper never leaves the server, so an exfiltrated table alone
// is not enough to forge codes.
func hashCode(code, salt, pepper string) string {
	sum := sha256.Sum256([]byte(code + ":" + salt + ":" + pepper))
	return hex.EncodeToString(sum[:])
}

// generateCode generates a cryptographically secure fixed-width digit string.
// Leading zeros are legitimate; codes are strings, not numbers.
func generateCode(length int) (string, error) {
	code := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code = append(code, byte('0'+n.Int64()))
	}
	return string(code), nil
}

// generateSalt returns 16 random bytes, URL-safe encoded
func generateSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
