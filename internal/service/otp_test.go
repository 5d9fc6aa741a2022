package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeOTPStore is an in-memory OTPStore. Transaction holds a mutex for the
// whole callback, which models the row locks the real repository takes.
type fakeOTPStore struct {
	mu   sync.Mutex
	recs []*model.OTPRecord
}

func (s *fakeOTPStore) Transaction(_ context.Context, fn func(tx repository.OTPStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&fakeOTPTx{s: s})
}

func (s *fakeOTPStore) FindActive(ctx context.Context, scope string) (*model.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).FindActive(ctx, scope)
}

func (s *fakeOTPStore) FindUsable(ctx context.Context, scope string, now time.Time) (*model.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).FindUsable(ctx, scope, now)
}

func (s *fakeOTPStore) Create(ctx context.Context, rec *model.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).Create(ctx, rec)
}

func (s *fakeOTPStore) ConsumeActive(ctx context.Context, scope string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).ConsumeActive(ctx, scope, now)
}

func (s *fakeOTPStore) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lockedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).RecordFailure(ctx, id, attempts, lockedAt)
}

func (s *fakeOTPStore) Consume(ctx context.Context, id uuid.UUID, now time.Time, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&fakeOTPTx{s: s}).Consume(ctx, id, now, verified)
}

func (s *fakeOTPStore) activeCount(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.recs {
		if r.ScopeKey == scope && r.ConsumedAt == nil {
			n++
		}
	}
	return n
}

// fakeOTPTx operates on the store without re-locking
type fakeOTPTx struct {
	s *fakeOTPStore
}

func (t *fakeOTPTx) Transaction(_ context.Context, fn func(tx repository.OTPStore) error) error {
	return fn(t)
}

func (t *fakeOTPTx) FindActive(_ context.Context, scope string) (*model.OTPRecord, error) {
	var latest *model.OTPRecord
	for _, r := range t.s.recs {
		if r.ScopeKey != scope || r.ConsumedAt != nil {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, nil
}

func (t *fakeOTPTx) FindUsable(ctx context.Context, scope string, now time.Time) (*model.OTPRecord, error) {
	rec, _ := t.FindActive(ctx, scope)
	if rec == nil || !rec.ExpiresAt.After(now) {
		return nil, nil
	}
	return rec, nil
}

func (t *fakeOTPTx) Create(ctx context.Context, rec *model.OTPRecord) error {
	if active, _ := t.FindActive(ctx, rec.ScopeKey); active != nil {
		return repository.ErrDuplicateActiveCode
	}
	rec.ID = uuid.New()
	t.s.recs = append(t.s.recs, rec)
	return nil
}

func (t *fakeOTPTx) ConsumeActive(_ context.Context, scope string, now time.Time) error {
	for _, r := range t.s.recs {
		if r.ScopeKey == scope && r.ConsumedAt == nil {
			at := now
			r.ConsumedAt = &at
		}
	}
	return nil
}

func (t *fakeOTPTx) RecordFailure(_ context.Context, id uuid.UUID, attempts int, lockedAt *time.Time) error {
	for _, r := range t.s.recs {
		if r.ID == id {
			r.Attempts = attempts
			if lockedAt != nil {
				at := *lockedAt
				r.ConsumedAt = &at
			}
		}
	}
	return nil
}

func (t *fakeOTPTx) Consume(_ context.Context, id uuid.UUID, now time.Time, verified bool) error {
	for _, r := range t.s.recs {
		if r.ID == id {
			at := now
			r.ConsumedAt = &at
			if verified {
				v := now
				r.VerifiedAt = &v
			}
		}
	}
	return nil
}

// fakeClock drives the service's injected time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// codeRecorder collects plaintext codes handed to the delivery channel
type codeRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (r *codeRecorder) deliver(code string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return nil
}

func (r *codeRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.codes) == 0 {
		return ""
	}
	return r.codes[len(r.codes)-1]
}

func (r *codeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

func defaultPolicy() OTPPolicy {
	return OTPPolicy{
		CodeLength:     6,
		TTL:            10 * time.Minute,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    5,
	}
}

func newTestOTPService(policy OTPPolicy) (*OTPService, *fakeOTPStore, *fakeClock) {
	store := &fakeOTPStore{}
	clock := newFakeClock()
	svc := NewOTPService(store, "test-pepper", policy)
	svc.now = clock.Now
	return svc, store, clock
}

func TestRequestCodeIssuesAndDelivers(t *testing.T) {
	svc, store, clock := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	res, err := svc.RequestCode(context.Background(), "admin@store.test", RequestMeta{IP: "1.2.3.4"}, rec.deliver)
	require.NoError(t, err)
	require.False(t, res.Throttled)
	require.Equal(t, clock.Now().Add(10*time.Minute), res.ExpiresAt)

	require.Equal(t, 1, rec.count())
	require.Len(t, rec.last(), 6)
	for _, c := range rec.last() {
		require.True(t, c >= '0' && c <= '9')
	}

	require.NoError(t, svc.VerifyCode(context.Background(), "admin@store.test", rec.last()))
	require.Equal(t, 0, store.activeCount("admin@store.test"))
}

func TestVerifiedCodeCannotBeReplayed(t *testing.T) {
	svc, _, _ := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyCode(context.Background(), "scope", rec.last()))
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", rec.last()), ErrOTPExpired)
}

func TestRequestCodeCooldownThrottles(t *testing.T) {
	svc, store, clock := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	first := rec.last()

	clock.Advance(30 * time.Second)
	res, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	require.True(t, res.Throttled)
	require.Equal(t, 1, rec.count(), "throttled request must not send another email")
	require.Equal(t, 1, store.activeCount("scope"))

	// The original code survives a throttled request.
	require.NoError(t, svc.VerifyCode(context.Background(), "scope", first))
}

func TestRequestCodeSupersedesAfterCooldown(t *testing.T) {
	svc, store, clock := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	first := rec.last()

	clock.Advance(61 * time.Second)
	res, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	require.False(t, res.Throttled)
	require.Equal(t, 2, rec.count())
	require.Equal(t, 1, store.activeCount("scope"))

	second := rec.last()
	if first == second {
		t.Skip("generated codes collided; nothing to assert")
	}

	// The superseded code burns an attempt against the new record and fails.
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", first), ErrInvalidCode)
	require.NoError(t, svc.VerifyCode(context.Background(), "scope", second))
}

func TestVerifyCodeLockoutAfterMaxAttempts(t *testing.T) {
	svc, store, _ := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	correct := rec.last()

	wrong := wrongCode(correct)
	for i := 0; i < 4; i++ {
		require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", wrong), ErrInvalidCode)
	}

	// The fifth failure locks the record out for good.
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", wrong), ErrTooManyAttempts)
	require.Equal(t, 0, store.activeCount("scope"))

	// Even the right code is refused now; the user has to start over.
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", correct), ErrOTPExpired)

	// A fresh request issues a working code again.
	_, err = svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyCode(context.Background(), "scope", rec.last()))
}

func TestVerifyCodeExpired(t *testing.T) {
	svc, _, clock := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", rec.last()), ErrOTPExpired)
}

func TestVerifyCodeMalformedConsumesNoAttempt(t *testing.T) {
	svc, store, _ := newTestOTPService(defaultPolicy())
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)

	for _, bad := range []string{"", "12345", "1234567", "12a456", "123 56", "абвгде"} {
		require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", bad), ErrCodeMalformed)
	}

	store.mu.Lock()
	require.Equal(t, 0, store.recs[0].Attempts, "malformed input must not count as a guess")
	store.mu.Unlock()

	require.NoError(t, svc.VerifyCode(context.Background(), "scope", rec.last()))
}

func TestVerifyCodeMissingRecord(t *testing.T) {
	svc, _, _ := newTestOTPService(defaultPolicy())
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope", "123456"), ErrOTPExpired)
}

func TestVerifyCodeMarkVerified(t *testing.T) {
	policy := defaultPolicy()
	policy.MarkVerified = true
	svc, store, _ := newTestOTPService(policy)
	rec := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyCode(context.Background(), "scope", rec.last()))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotNil(t, store.recs[0].ConsumedAt)
	require.NotNil(t, store.recs[0].VerifiedAt)
}

func TestRequestCodeDeliveryFailure(t *testing.T) {
	svc, store, _ := newTestOTPService(defaultPolicy())

	_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, func(string, time.Time) error {
		return context.DeadlineExceeded
	})
	require.ErrorIs(t, err, ErrDeliveryFailed)

	// The record is persisted regardless; the next request within cooldown is
	// throttled rather than issuing a new code.
	require.Equal(t, 1, store.activeCount("scope"))
}

func TestRequestCodeConcurrentKeepsOneActive(t *testing.T) {
	policy := defaultPolicy()
	policy.ResendCooldown = 0
	svc, store, _ := newTestOTPService(policy)
	rec := &codeRecorder{}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestCode(context.Background(), "scope", RequestMeta{}, rec.deliver)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, store.activeCount("scope"))
}

func TestScopesAreIsolated(t *testing.T) {
	svc, _, _ := newTestOTPService(defaultPolicy())
	recA := &codeRecorder{}
	recB := &codeRecorder{}

	_, err := svc.RequestCode(context.Background(), "scope-a", RequestMeta{}, recA.deliver)
	require.NoError(t, err)
	_, err = svc.RequestCode(context.Background(), "scope-b", RequestMeta{}, recB.deliver)
	require.NoError(t, err)

	if recA.last() == recB.last() {
		t.Skip("generated codes collided; nothing to assert")
	}
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "scope-a", recB.last()), ErrInvalidCode)
	require.NoError(t, svc.VerifyCode(context.Background(), "scope-b", recB.last()))
}

// wrongCode flips the last digit so the guess is valid-looking but wrong
func wrongCode(code string) string {
	last := code[len(code)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	return code[:len(code)-1] + string(flipped)
}

func TestGenerateCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		require.True(t, isDigits(code, 6))
		seen[code] = true
	}
	require.Greater(t, len(seen), 1, "codes must not be constant")
}

func TestDigestNoFalseAccepts(t *testing.T) {
	salt, err := generateSalt()
	require.NoError(t, err)
	stored := hashCode("428071", salt, "test-pepper")

	tried := 0
	for tried < 1000 {
		guess, err := generateCode(6)
		require.NoError(t, err)
		if guess == "428071" {
			continue
		}
		require.NotEqual(t, stored, hashCode(guess, salt, "test-pepper"))
		tried++
	}
}

func TestHashCodeDependsOnAllInputs(t *testing.T) {
	base := hashCode("123456", "salt", "pepper")
	require.Len(t, base, 64)
	require.NotEqual(t, base, hashCode("123457", "salt", "pepper"))
	require.NotEqual(t, base, hashCode("123456", "other", "pepper"))
	require.NotEqual(t, base, hashCode("123456", "salt", "other"))
	require.Equal(t, base, hashCode("123456", "salt", "pepper"))
}
