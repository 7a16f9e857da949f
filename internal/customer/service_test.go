package customer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	byID map[int64]*Customer
	next int64
}

func newMemRepo() *memRepo { return &memRepo{byID: map[int64]*Customer{}} }

func (m *memRepo) Create(_ context.Context, c *Customer) error {
	for _, cur := range m.byID {
		if strings.EqualFold(cur.Email, c.Email) {
			return ErrAlreadyExist
		}
	}
	m.next++
	c.ID = m.next
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*Customer, error) {
	for _, c := range m.byID {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Name:     "Al",
		Phone:    "1199999999",
		Email:    " Al@Example.com ",
		Address:  "Rua A, 1",
		Password: "secret1",
	}
}

func TestRegister_HashesAndNormalizes(t *testing.T) {
	svc := NewService(newMemRepo())
	c, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "al@example.com", c.Email)
	assert.NotEqual(t, "secret1", c.PasswordHash)
	assert.True(t, CheckPassword(c.PasswordHash, "secret1"))
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newMemRepo())

	short := validRegistration()
	short.Name = "A"
	_, err := svc.Register(context.Background(), short)
	assert.ErrorIs(t, err, ErrInvalidInput)

	phone := validRegistration()
	phone.Phone = "119999999"
	_, err = svc.Register(context.Background(), phone)
	assert.ErrorIs(t, err, ErrInvalidInput)

	email := validRegistration()
	email.Email = "not-an-email"
	_, err = svc.Register(context.Background(), email)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegister_Duplicate(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, ErrAlreadyExist)
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(newMemRepo())
	reg, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	c, err := svc.Authenticate(context.Background(), LoginRequest{Email: "al@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, c.ID)

	_, err = svc.Authenticate(context.Background(), LoginRequest{Email: "al@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
