package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

type memoryAccounts struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	err   error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{users: map[uuid.UUID]*models.User{}}
}

func (r *memoryAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memoryAccounts) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryAccounts) SetVerifyOTP(_ context.Context, id uuid.UUID, code string, expiresAt int64) error {
	return r.update(id, func(u *models.User) {
		u.VerifyOTP, u.VerifyOTPExpire = code, expiresAt
	})
}

func (r *memoryAccounts) SetResetOTP(_ context.Context, id uuid.UUID, code string, expiresAt int64) error {
	return r.update(id, func(u *models.User) {
		u.ResetOTP, u.ResetOTPExpire = code, expiresAt
	})
}

func (r *memoryAccounts) ConsumeVerifyOTP(_ context.Context, id uuid.UUID, code string, now int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.VerifyOTP == "" || u.VerifyOTP != code || u.VerifyOTPExpire < now {
		return false, nil
	}
	u.IsVerified, u.VerifyOTP, u.VerifyOTPExpire = true, "", 0
	return true, nil
}

func (r *memoryAccounts) ConsumeResetOTP(_ context.Context, id uuid.UUID, code string, now int64, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.ResetOTP == "" || u.ResetOTP != code || u.ResetOTPExpire < now {
		return false, nil
	}
	u.PasswordHash, u.ResetOTP, u.ResetOTPExpire = hash, "", 0
	return true, nil
}

func (r *memoryAccounts) update(id uuid.UUID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *memoryAccounts) get(id uuid.UUID) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[id]
}

var errMailDown = errors.New("smtp unavailable")

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}
