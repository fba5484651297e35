package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/internal/users"
	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/db"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/security"
)

// RegisterRequest is the sign-up body. Password rules are checked by security.ValidatePassword.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	EnsureAdmin(ctx context.Context, email, password string) (*users.UserDTO, bool, error)
}

type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	return s.create(ctx, req.Email, req.Password, enums.UserRoleCustomer)
}

// EnsureAdmin creates the admin account unless the email is already taken. The
// bool reports whether a row was created.
func (s *registerService) EnsureAdmin(ctx context.Context, email, password string) (*users.UserDTO, bool, error) {
	existing, err := users.NewRepository(s.db.DB()).FindByEmail(ctx, email)
	if err == nil {
		return users.FromModel(existing), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check admin email")
	}
	created, err := s.create(ctx, email, password, enums.UserRoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *registerService) create(ctx context.Context, rawEmail, password string, role enums.UserRole) (*users.UserDTO, error) {
	email := users.NormalizeEmail(rawEmail)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.ValidatePassword(password); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error()).
			WithDetails(map[string]string{"password": err.Error()})
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	// the unique index on email decides races between concurrent registrations
	user, err := users.NewRepository(s.db.DB()).Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	switch {
	case db.IsUniqueViolation(err, "ux_users_email"):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return users.FromModel(user), nil
}
