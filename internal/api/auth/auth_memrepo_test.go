package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

// memRepo is an in-memory AuthRepo with the same atomicity as the Postgres
// implementation: every method holds the lock for its whole duration.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*memUser
	refresh  map[string]*types.RefreshToken
	verify   []*types.VerificationToken
	resets   map[string]types.PasswordResetToken
	dbNow    func() time.Time
	failNext error
}

type memUser struct {
	profile types.UserProfile
	hash    string
}

var _ AuthRepo = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		users:   make(map[int64]*memUser),
		refresh: make(map[string]*types.RefreshToken),
		resets:  make(map[string]types.PasswordResetToken),
		dbNow:   time.Now,
	}
}

func (m *memRepo) byPhone(p string) *memUser {
	for _, u := range m.users {
		if u.profile.Phone == p {
			return u
		}
	}
	return nil
}

func (m *memRepo) byEmail(e string) *memUser {
	for _, u := range m.users {
		if u.profile.Email != nil && *u.profile.Email == e {
			return u
		}
	}
	return nil
}

func (m *memRepo) PhoneExists(_ context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPhone(phone) != nil, nil
}

func (m *memRepo) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail(email) != nil, nil
}

func (m *memRepo) CreatePendingUser(_ context.Context, nu types.NewUser, vt types.VerificationToken) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byPhone(nu.Phone) != nil {
		return 0, ErrDuplicatePhone
	}
	if nu.Email != nil && m.byEmail(*nu.Email) != nil {
		return 0, ErrDuplicateEmail
	}
	m.nextID++
	now := m.dbNow()
	m.users[m.nextID] = &memUser{
		hash: nu.PasswordHash,
		profile: types.UserProfile{
			ID: m.nextID, Email: nu.Email, Phone: nu.Phone,
			FirstName: nu.FirstName, LastName: nu.LastName,
			Role: nu.Role, Status: nu.Status, EmailVerified: nu.EmailVerified,
			Geography: nu.Geography, CreatedAt: now, UpdatedAt: now,
		},
	}
	vt.UserID = m.nextID
	vt.CreatedAt = now
	m.verify = append(m.verify, &vt)
	return m.nextID, nil
}

func (m *memRepo) copyProfile(u *memUser) *types.UserProfile {
	p := u.profile
	return &p
}

func (m *memRepo) GetUserByID(_ context.Context, userID int64) (*types.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", api.ErrNotFound)
	}
	return m.copyProfile(u), nil
}

func (m *memRepo) GetUserByPhone(_ context.Context, phone string) (*types.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byPhone(phone); u != nil {
		return m.copyProfile(u), nil
	}
	return nil, fmt.Errorf("user not found: %w", api.ErrNotFound)
}

func (m *memRepo) GetUserByEmail(_ context.Context, email string) (*types.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	if u := m.byEmail(email); u != nil {
		return m.copyProfile(u), nil
	}
	return nil, fmt.Errorf("user not found: %w", api.ErrNotFound)
}

func (m *memRepo) GetCredentials(_ context.Context, userID int64) (*types.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("credentials not found: %w", api.ErrNotFound)
	}
	return &types.CredentialRecord{UserID: userID, PasswordHash: u.hash}, nil
}

func (m *memRepo) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return api.ErrNotFound
	}
	u.profile.LastLoginAt = &at
	return nil
}

func (m *memRepo) StoreRefreshToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.refresh[token]; dup {
		return fmt.Errorf("duplicate refresh token: %w", api.ErrConflict)
	}
	m.refresh[token] = &types.RefreshToken{ID: uuid.New(), Token: token, UserID: userID, ExpiresAt: expiresAt, CreatedAt: m.dbNow()}
	return nil
}

func (m *memRepo) GetRefreshToken(_ context.Context, token string, userID int64) (*types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.refresh[token]
	if !ok || rt.UserID != userID {
		return nil, fmt.Errorf("refresh token not found: %w", api.ErrNotFound)
	}
	c := *rt
	return &c, nil
}

func (m *memRepo) RotateRefreshToken(_ context.Context, userID int64, oldToken, newToken string, newExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.refresh[oldToken]
	if !ok || rt.UserID != userID || !rt.ExpiresAt.After(m.dbNow()) {
		return fmt.Errorf("refresh token no longer live: %w", api.ErrNotFound)
	}
	delete(m.refresh, oldToken)
	rt.Token = newToken
	rt.ExpiresAt = newExpiresAt
	m.refresh[newToken] = rt
	return nil
}

func (m *memRepo) DeleteRefreshToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.refresh[token]
	delete(m.refresh, token)
	return ok, nil
}

func (m *memRepo) deleteAllRefresh(userID int64) int64 {
	var n int64
	for k, rt := range m.refresh {
		if rt.UserID == userID {
			delete(m.refresh, k)
			n++
		}
	}
	return n
}

func (m *memRepo) DeleteAllRefreshTokens(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAllRefresh(userID), nil
}

func (m *memRepo) IssueVerificationToken(_ context.Context, vt types.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verify {
		if t.UserID == vt.UserID && !t.Used {
			t.Used = true
		}
	}
	vt.CreatedAt = m.dbNow()
	m.verify = append(m.verify, &vt)
	return nil
}

func (m *memRepo) GetVerificationToken(_ context.Context, token string) (*types.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verify {
		if t.Token == token {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("verification token not found: %w", api.ErrNotFound)
}

func (m *memRepo) activate(userID int64) {
	u := m.users[userID]
	if u == nil {
		return
	}
	u.profile.EmailVerified = true
	if u.profile.Status != types.StatusSuspended {
		u.profile.Status = types.StatusActive
	}
}

func (m *memRepo) ConsumeVerificationCode(_ context.Context, userID int64, code string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verify {
		if t.UserID == userID && t.Code == code && !t.Used && t.ExpiresAt.After(now) {
			t.Used = true
			m.activate(userID)
			return nil
		}
	}
	return fmt.Errorf("verification code not found: %w", api.ErrNotFound)
}

func (m *memRepo) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verify {
		if t.Token == token && !t.Used && t.ExpiresAt.After(now) {
			t.Used = true
			m.activate(t.UserID)
			return t.UserID, nil
		}
	}
	return 0, fmt.Errorf("verification token not found: %w", api.ErrNotFound)
}

func (m *memRepo) CreatePasswordResetToken(_ context.Context, prt types.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[prt.Token] = prt
	return nil
}

func (m *memRepo) ResetPassword(_ context.Context, token, newHash string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prt, ok := m.resets[token]
	if !ok || !prt.ExpiresAt.After(now) {
		return 0, fmt.Errorf("reset token not found: %w", api.ErrNotFound)
	}
	delete(m.resets, token)
	m.users[prt.UserID].hash = newHash
	m.deleteAllRefresh(prt.UserID)
	return prt.UserID, nil
}

func (m *memRepo) ChangePassword(_ context.Context, userID int64, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return api.ErrNotFound
	}
	u.hash = newHash
	m.deleteAllRefresh(userID)
	return nil
}

func (m *memRepo) DeletePendingUsers(_ context.Context, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		p := u.profile
		if p.Status == types.StatusPending && !p.EmailVerified && p.CreatedAt.Before(createdBefore) {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

// helpers for tests

func (m *memRepo) setStatus(userID int64, s types.UserStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].profile.Status = s
}

func (m *memRepo) setCreatedAt(userID int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].profile.CreatedAt = at
}

func (m *memRepo) resetTokenFor(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, prt := range m.resets {
		if prt.UserID == userID {
			return tok
		}
	}
	return ""
}

func (m *memRepo) refreshCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rt := range m.refresh {
		if rt.UserID == userID {
			n++
		}
	}
	return n
}
