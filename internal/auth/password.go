// Package auth: password hashing.
//
// HASH FORMAT:
// bcrypt.GenerateFromPassword returns one self-describing string, so the users table
// needs a single password_hash column:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// The salt is random per call: two accounts with the same password store different
// hashes. Verify reads cost and salt back out of the stored string, so raising
// DefaultCost later only affects hashes written after the change.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/moodmingle/internal/model"
)

// DefaultCost is the bcrypt work factor used outside tests.
const DefaultCost = 12

// ErrPasswordMismatch is returned by Verify for a wrong password.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService hashes and checks account passwords with bcrypt.
type PasswordService struct {
	cost int
}

// NewPasswordService uses DefaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultCost}
}

// NewPasswordServiceWithCost lets tests in other packages trade strength for speed.
// bcrypt.MinCost (4) keeps a hash in the low milliseconds.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt encoding of plaintext, salt and cost included.
// bcrypt ignores everything past 72 bytes, so longer input is refused.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > model.MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", model.MaxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrPasswordMismatch when it
// does not. A malformed hash yields a different, wrapped error.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}
