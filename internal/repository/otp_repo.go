package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateActiveCode is returned by Create when another active record for
// the same scope already exists. The partial unique index on
// (scope_key) WHERE consumed_at IS NULL enforces the one-active-code
// invariant; hitting it means a concurrent request won the issuance race.
var ErrDuplicateActiveCode = errors.New("an active code already exists for this scope")

// OTPStore is the persistence surface the OTP service works against. Reads
// performed inside Transaction must lock the rows they return.
type OTPStore interface {
	Transaction(ctx context.Context, fn func(tx OTPStore) error) error
	FindActive(ctx context.Context, scope string) (*model.OTPRecord, error)
	FindUsable(ctx context.Context, scope string, now time.Time) (*model.OTPRecord, error)
	Create(ctx context.Context, rec *model.OTPRecord) error
	ConsumeActive(ctx context.Context, scope string, now time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lockedAt *time.Time) error
	Consume(ctx context.Context, id uuid.UUID, now time.Time, verified bool) error
}

// OTPRepository handles database operations for OTP records. The same
// implementation serves both OTP tables; the table name is fixed at
// construction time.
type OTPRepository struct {
	db    *gorm.DB
	table string
	inTx  bool
}

func NewOTPRepository(db *gorm.DB, table string) *OTPRepository {
	return &OTPRepository{db: db, table: table}
}

func (r *OTPRepository) scoped(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx).Table(r.table)
	if r.inTx {
		// Row locks make the read-then-write sequences in the service safe
		// against concurrent handlers.
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Transaction runs fn against a transaction-bound copy of the repository.
// Reads inside the transaction take FOR UPDATE row locks.
func (r *OTPRepository) Transaction(ctx context.Context, fn func(tx OTPStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&OTPRepository{db: tx, table: r.table, inTx: true})
	})
}

// FindActive returns the most recent unconsumed record for a scope,
// regardless of expiry, or nil if there is none.
func (r *OTPRepository) FindActive(ctx context.Context, scope string) (*model.OTPRecord, error) {
	var rec model.OTPRecord
	err := r.scoped(ctx).
		Where("scope_key = ? AND consumed_at IS NULL", scope).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindUsable returns the record a verification attempt should run against:
// unconsumed and not yet expired. Expired-but-unconsumed records are treated
// as absent.
func (r *OTPRepository) FindUsable(ctx context.Context, scope string, now time.Time) (*model.OTPRecord, error) {
	var rec model.OTPRecord
	err := r.scoped(ctx).
		Where("scope_key = ? AND consumed_at IS NULL AND expires_at > ?", scope, now).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new OTP record
func (r *OTPRepository) Create(ctx context.Context, rec *model.OTPRecord) error {
	err := r.scoped(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateActiveCode
	}
	return err
}

// ConsumeActive retires every unconsumed record for a scope (supersession)
func (r *OTPRepository) ConsumeActive(ctx context.Context, scope string, now time.Time) error {
	return r.scoped(ctx).
		Where("scope_key = ? AND consumed_at IS NULL", scope).
		Update("consumed_at", now).Error
}

// RecordFailure stores an incremented attempt count; when lockedAt is non-nil
// the record is also consumed, permanently invalidating further tries.
func (r *OTPRepository) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lockedAt *time.Time) error {
	updates := map[string]interface{}{"attempts": attempts}
	if lockedAt != nil {
		updates["consumed_at"] = *lockedAt
	}
	return r.scoped(ctx).Where("id = ?", id).Updates(updates).Error
}

// Consume marks a record as spent; verified additionally records positive
// confirmation (admin flow).
func (r *OTPRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time, verified bool) error {
	updates := map[string]interface{}{"consumed_at": now}
	if verified {
		updates["verified_at"] = now
	}
	return r.scoped(ctx).Where("id = ?", id).Updates(updates).Error
}
