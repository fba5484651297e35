package auth

import (
	"github.com/angelmondragon/microcommerce-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login,
// plus how many guest cart items were folded into the user's cart.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	User         *users.UserDTO `json:"user"`
	MergedItems  int            `json:"merged_items"`
}

// RefreshRequest carries the expired (or live) access token and its refresh token.
type RefreshRequest struct {
	AccessToken  string
	RefreshToken string
}

// TokenPair is returned by refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

const tokenTypeBearer = "Bearer"
