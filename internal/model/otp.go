package model

import (
	"time"

	"github.com/google/uuid"
)

// OTP table names. The same record shape is instantiated twice so the admin
// login flow and the order return flow never share codes.
const (
	TableAdminLoginOTPs = "admin_login_otps"
	TableReturnOTPs     = "return_otps"
)

// OTPRecord represents one issued one-time password, bound to an opaque scope
// key. The plaintext code is never stored; only a salted, peppered digest.
type OTPRecord struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ScopeKey  string    `json:"scope_key" gorm:"size:255;not null"`
	CodeHash  string    `json:"-" gorm:"size:64;not null"`
	CodeSalt  string    `json:"-" gorm:"size:32;not null"`
	Attempts  int       `json:"attempts" gorm:"not null;default:0"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`

	ConsumedAt *time.Time `json:"consumed_at"` // NULL = still the active code for its scope
	VerifiedAt *time.Time `json:"verified_at"` // set only on successful verification

	RequesterIP        string `json:"-" gorm:"size:64"`
	RequesterUserAgent string `json:"-" gorm:"size:512"`

	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the code's validity window has passed
func (o *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsConsumed checks if the record has been spent, superseded, or locked out
func (o *OTPRecord) IsConsumed() bool {
	return o.ConsumedAt != nil
}

// IsUsable checks if the record can still be verified against
func (o *OTPRecord) IsUsable(now time.Time) bool {
	return !o.IsConsumed() && !o.IsExpired(now)
}
