package cart

import (
	"strings"

	"github.com/google/uuid"
)

// Identity names who owns the cart for one request. A user id wins over a
// session key; the key is still used to find a guest cart to merge.
type Identity struct {
	UserID     *uuid.UUID
	SessionKey string
}

// IsAuthenticated reports whether the identity carries a user id.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

func (i Identity) sessionKey() string {
	return strings.TrimSpace(i.SessionKey)
}
