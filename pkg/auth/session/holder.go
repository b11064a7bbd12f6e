// Package session tracks who is signed in on this device.
package session

import (
	"errors"
	"sync"

	"github.com/angelmondragon/storefront-core/pkg/auth"
	"github.com/angelmondragon/storefront-core/pkg/config"
)

// ErrInvalidToken is returned by SignIn when the access token does not verify.
var ErrInvalidToken = errors.New("invalid access token")

// Session is the read-only view consumers gate on.
type Session interface {
	IsAuthenticated() bool
	CurrentUserID() (string, bool)
}

// Holder keeps the verified user of the current sign-in.
type Holder struct {
	cfg config.JWTConfig

	mu     sync.RWMutex
	userID string
}

// NewHolder returns a signed-out Holder verifying tokens against cfg.
func NewHolder(cfg config.JWTConfig) *Holder {
	return &Holder{cfg: cfg}
}

// SignIn verifies token and makes its user current. A bad token leaves the
// previous state untouched.
func (h *Holder) SignIn(token string) (string, error) {
	claims, err := auth.ParseAccessToken(h.cfg, token)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	h.mu.Lock()
	h.userID = claims.UserID
	h.mu.Unlock()
	return claims.UserID, nil
}

// SignOut clears the current user.
func (h *Holder) SignOut() {
	h.mu.Lock()
	h.userID = ""
	h.mu.Unlock()
}

func (h *Holder) IsAuthenticated() bool {
	_, ok := h.CurrentUserID()
	return ok
}

func (h *Holder) CurrentUserID() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userID, h.userID != ""
}

// Static is a fixed Session. The zero value is signed out.
type Static struct {
	UserID string
}

func (s Static) IsAuthenticated() bool { return s.UserID != "" }

func (s Static) CurrentUserID() (string, bool) { return s.UserID, s.UserID != "" }
