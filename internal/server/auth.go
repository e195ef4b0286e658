package server

import (
	"errors"

	"github.com/parley-chat/parley/internal/store"
)

// Authentication rejection reasons. Their messages travel back to the client
// in the AUTH_RESULT frame, so they stay short and user-facing.
var (
	ErrMissingCredentials = errors.New("invalid credentials")
	ErrUnknownUser        = errors.New("user not found")
	ErrBadSecret          = errors.New("wrong password")
	ErrBanned             = errors.New("you are banned")
)

// Gate validates a presented identity against the user store. It runs before
// a Session exists: an unauthenticated socket never reaches the registry.
// One attempt per connection; the server closes on rejection.
type Gate struct {
	users      store.UserStore
	moderation *Moderation
}

// NewGate creates a credential gate over the user store, consulting the
// moderation state for bans.
func NewGate(users store.UserStore, moderation *Moderation) *Gate {
	return &Gate{users: users, moderation: moderation}
}

// Authenticate checks a username/secret pair and returns the account role on
// success. The ban check runs first so a banned identity learns nothing
// about whether its credentials are still valid.
func (g *Gate) Authenticate(username, secret string) (string, error) {
	if username == "" || secret == "" {
		return "", ErrMissingCredentials
	}

	if g.moderation.IsBanned(username) {
		return "", ErrBanned
	}

	rec, err := g.users.Lookup(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownUser
		}
		return "", err
	}

	if !store.VerifyPassword(secret, rec.PasswordHash) {
		return "", ErrBadSecret
	}
	return store.NormalizeRole(rec.Role), nil
}
