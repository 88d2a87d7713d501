package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/gridbase/internal/repository"
)

// BcryptCredentials hashes passwords with bcrypt. The same hash is stored
// in the tenant schema and the shared mirror, so a credential check works
// from either copy.
type BcryptCredentials struct {
	cost int
}

func NewBcryptCredentials() *BcryptCredentials {
	return &BcryptCredentials{cost: bcrypt.DefaultCost}
}

func (c *BcryptCredentials) Hash(plaintext string) (string, error) {
	if len(plaintext) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (c *BcryptCredentials) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

var _ repository.CredentialService = (*BcryptCredentials)(nil)
