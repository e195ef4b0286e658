// Package store provides the persistent user records and ban list backing
// the chat server. The server only depends on the UserStore and BanStore
// interfaces; file- and Redis-backed implementations live alongside them.
package store

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user record can carry.
const (
	RoleAdmin   = "admin"
	RoleRegular = "regular"
)

var (
	// ErrNotFound reports a lookup for a username with no record.
	ErrNotFound = errors.New("store: user not found")

	// ErrExists reports an attempt to create a record for a taken username.
	ErrExists = errors.New("store: user already exists")
)

// UserRecord is one entry of the user database. PasswordHash is a bcrypt
// hash; the plaintext secret never touches the store.
type UserRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
	Role         string `json:"role"`
}

// UserStore is the read-side contract the credential gate consumes, plus the
// Create operation used by provisioning tools. Implementations must be safe
// for concurrent use.
type UserStore interface {
	Lookup(username string) (*UserRecord, error)
	Create(rec *UserRecord) error
}

// BanRecord is one persisted ban list entry.
type BanRecord struct {
	Identity string    `json:"identity"`
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"banned_at"`
}

// BanStore persists the ban list across server restarts: Load at startup,
// Append/Remove on every admin mutation.
type BanStore interface {
	Load() ([]BanRecord, error)
	Append(rec BanRecord) error
	Remove(identity string) error
	Close() error
}

// HashPassword produces the bcrypt hash stored in a UserRecord.
func HashPassword(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext secret against a stored bcrypt hash.
func VerifyPassword(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// NormalizeRole maps unknown role strings to RoleRegular.
func NormalizeRole(role string) string {
	if role == RoleAdmin {
		return RoleAdmin
	}
	return RoleRegular
}
