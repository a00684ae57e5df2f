// Package credential hashes and verifies user passwords.
package credential

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// MaxPasswordBytes is the longest password bcrypt accepts, in bytes
const MaxPasswordBytes = 72

// Store hashes passwords with bcrypt at a fixed cost
type Store struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewStore creates a store; out-of-range costs fall back to bcrypt.DefaultCost
func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{cost: cost}
}

// Hash returns a salted one-way hash of password
func (s *Store) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Mismatch and a corrupt hash
// both return false.
func (s *Store) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyVerify performs one comparison at the store's cost against a fixed
// hash, so a login for an unknown user takes as long as a wrong password.
func (s *Store) DummyVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Cost returns the bcrypt work factor in use
func (s *Store) Cost() int {
	return s.cost
}
