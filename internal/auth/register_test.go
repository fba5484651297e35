package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/microcommerce-backend/internal/users"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/security"
)

func newRegisterService(t *testing.T) (RegisterService, *users.Repository) {
	t.Helper()
	client := dbtest.NewClient(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: testPasswordConfig})
	require.NoError(t, err)
	return svc, users.NewRepository(client.DB())
}

func TestRegisterCreatesCustomer(t *testing.T) {
	svc, repo := newRegisterService(t)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		Email:    " New.Shopper@Example.com ",
		Password: "long-enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "new.shopper@example.com", dto.Email)
	assert.Equal(t, enums.UserRoleCustomer.String(), dto.Role)
	assert.True(t, dto.IsActive)

	stored, err := repo.FindByEmail(context.Background(), "new.shopper@example.com")
	require.NoError(t, err)
	ok, err := security.VerifyPassword("long-enough", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newRegisterService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "dup@example.com", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "DUP@example.com", Password: "another-one"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRegisterValidatesPassword(t *testing.T) {
	svc, _ := newRegisterService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "short@example.com", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "  ", Password: "long-enough"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _ := newRegisterService(t)

	admin, created, err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.UserRoleAdmin.String(), admin.Role)

	again, created, err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
}
