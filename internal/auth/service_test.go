package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	pkgAuth "github.com/angelmondragon/microcommerce-backend/pkg/auth"
	"github.com/angelmondragon/microcommerce-backend/pkg/auth/session"
	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "microcommerce",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesTokensAndMergesGuestCart(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	sessions := newStubSessionManager()
	merger := &stubCartMerger{result: &cart.MergeResult{MergedItems: 2}}
	repo := &stubUserRepository{user: user}

	svc := buildTestService(t, repo, sessions, merger)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Shopper@Example.com ",
		Password: "correct-horse",
	}, "guest-session")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if sessions.byAccess[claims.ID] != resp.RefreshToken {
		t.Fatalf("expected refresh token bound to jti %s", claims.ID)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 1800 {
		t.Fatalf("unexpected token metadata %+v", resp)
	}
	if resp.MergedItems != 2 {
		t.Fatalf("expected 2 merged items, got %d", resp.MergedItems)
	}
	if merger.calledWith != "guest-session" || merger.userID != user.ID {
		t.Fatalf("merge not invoked for guest session: %+v", merger)
	}
	if repo.lastLogin.IsZero() {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.User == nil || resp.User.Email != user.Email {
		t.Fatalf("unexpected user payload %+v", resp.User)
	}
}

func TestServiceLoginSkipsMergeWithoutSessionKey(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	merger := &stubCartMerger{result: &cart.MergeResult{MergedItems: 5}}
	svc := buildTestService(t, &stubUserRepository{user: user}, newStubSessionManager(), merger)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if merger.calls != 0 || resp.MergedItems != 0 {
		t.Fatalf("expected no merge, got %d calls and %d items", merger.calls, resp.MergedItems)
	}
}

func TestServiceLoginSurvivesMergeFailure(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	merger := &stubCartMerger{err: errors.New("cart store down")}
	svc := buildTestService(t, &stubUserRepository{user: user}, newStubSessionManager(), merger)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, "guest-session")
	if err != nil {
		t.Fatalf("merge failure must not block login: %v", err)
	}
	if resp.AccessToken == "" || resp.MergedItems != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	inactive := activeUser(t, "gone@example.com", "correct-horse")
	inactive.IsActive = false

	cases := []struct {
		name string
		repo *stubUserRepository
		req  LoginRequest
	}{
		{"unknown email", &stubUserRepository{}, LoginRequest{Email: "nobody@example.com", Password: "whatever1"}},
		{"wrong password", &stubUserRepository{user: user}, LoginRequest{Email: user.Email, Password: "wrong-pass"}},
		{"inactive user", &stubUserRepository{user: inactive}, LoginRequest{Email: inactive.Email, Password: "correct-horse"}},
		{"blank email", &stubUserRepository{user: user}, LoginRequest{Email: "  ", Password: "correct-horse"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := buildTestService(t, tc.repo, newStubSessionManager(), &stubCartMerger{})
			_, err := svc.Login(context.Background(), tc.req, "")
			assertCode(t, err, pkgerrors.CodeUnauthorized)
			if typed := pkgerrors.As(err); typed.Message() != invalidCredentialsMessage {
				t.Fatalf("expected generic message, got %q", typed.Message())
			}
		})
	}
}

func TestServiceLoginRehashesOutdatedPasswordHash(t *testing.T) {
	weaker := testPasswordConfig
	weaker.ArgonKeyLen = 16
	legacy, err := security.HashPassword("correct-horse", weaker)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := activeUser(t, "shopper@example.com", "correct-horse")
	user.PasswordHash = legacy
	repo := &stubUserRepository{user: user}
	svc := buildTestService(t, repo, newStubSessionManager(), &stubCartMerger{})

	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed == "" || security.NeedsRehash(repo.rehashed, testPasswordConfig) {
		t.Fatalf("expected hash upgraded to current params, got %q", repo.rehashed)
	}
	if ok, err := security.VerifyPassword("correct-horse", repo.rehashed); err != nil || !ok {
		t.Fatalf("upgraded hash must still verify: ok=%v err=%v", ok, err)
	}

	repo.rehashed = ""
	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, ""); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if repo.rehashed != "" {
		t.Fatal("current hash should not be rewritten")
	}
}

func TestServiceRefreshRotatesTokens(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	sessions := newStubSessionManager()
	svc := buildTestService(t, &stubUserRepository{user: user}, sessions, &stubCartMerger{})

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pair, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken == login.RefreshToken {
		t.Fatalf("expected a rotated refresh token")
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if sessions.byAccess[claims.ID] != pair.RefreshToken {
		t.Fatalf("new refresh token not bound to new jti")
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceRefreshAcceptsExpiredAccessToken(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	sessions := newStubSessionManager()
	svc := buildTestService(t, &stubUserRepository{user: user}, sessions, &stubCartMerger{})

	accessID := session.NewAccessID()
	expired, err := pkgAuth.MintAccessToken(testJWTConfig, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	refresh, err := sessions.Generate(context.Background(), user.ID, accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: expired, RefreshToken: refresh}); err != nil {
		t.Fatalf("refresh with expired access token: %v", err)
	}
}

func TestServiceRefreshRejectsMissingTokens(t *testing.T) {
	svc := buildTestService(t, &stubUserRepository{}, newStubSessionManager(), &stubCartMerger{})
	_, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: "", RefreshToken: "x"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: "not-a-jwt", RefreshToken: "x"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	sessions := newStubSessionManager()
	svc := buildTestService(t, &stubUserRepository{user: user}, sessions, &stubCartMerger{})

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-horse"}, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, login.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.byAccess[claims.ID]; ok {
		t.Fatalf("expected session to be revoked")
	}
	assertCode(t, svc.Logout(context.Background(), " "), pkgerrors.CodeUnauthorized)
}

func TestServiceMe(t *testing.T) {
	user := activeUser(t, "shopper@example.com", "correct-horse")
	svc := buildTestService(t, &stubUserRepository{user: user}, newStubSessionManager(), &stubCartMerger{})

	dto, err := svc.Me(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if dto.ID != user.ID || dto.Role != enums.UserRoleCustomer.String() {
		t.Fatalf("unexpected user %+v", dto)
	}

	_, err = svc.Me(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard})
	if _, err := NewService(ServiceParams{SessionManager: newStubSessionManager(), CartMerger: &stubCartMerger{}, Logger: logg}); err == nil {
		t.Fatalf("expected error without user repository")
	}
	if _, err := NewService(ServiceParams{UserRepo: &stubUserRepository{}, CartMerger: &stubCartMerger{}, Logger: logg}); err == nil {
		t.Fatalf("expected error without session manager")
	}
	if _, err := NewService(ServiceParams{UserRepo: &stubUserRepository{}, SessionManager: newStubSessionManager(), Logger: logg}); err == nil {
		t.Fatalf("expected error without cart merger")
	}
}

func buildTestService(t *testing.T, repo *stubUserRepository, sessions *stubSessionManager, merger *stubCartMerger) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		CartMerger:     merger,
		JWTConfig:      testJWTConfig,
		PasswordConfig: testPasswordConfig,
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func activeUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected %s, got %s", code, typed.Code())
	}
}

type stubUserRepository struct {
	user      *models.User
	lastLogin time.Time
	rehashed  string
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin = at
	return nil
}

func (s *stubUserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	s.rehashed = hash
	return nil
}

type stubSessionManager struct {
	byAccess map[string]string
	seq      int
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{byAccess: map[string]string{}}
}

func (s *stubSessionManager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	s.seq++
	token := "refresh-" + uuid.NewString()
	s.byAccess[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	current, ok := s.byAccess[oldAccessID]
	if !ok || current != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.byAccess, oldAccessID)
	newAccessID := session.NewAccessID()
	token, err := s.Generate(ctx, userID, newAccessID)
	return newAccessID, token, err
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(s.byAccess, accessID)
	return nil
}

type stubCartMerger struct {
	result     *cart.MergeResult
	err        error
	calls      int
	calledWith string
	userID     uuid.UUID
}

func (s *stubCartMerger) MergeGuestCart(ctx context.Context, userID uuid.UUID, sessionKey string) (*cart.MergeResult, error) {
	s.calls++
	s.calledWith = sessionKey
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &cart.MergeResult{}, nil
	}
	return s.result, nil
}
