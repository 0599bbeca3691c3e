package session

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the shared login password used when no hash is configured.
const DemoPassword = "12345"

// Verifier checks passwords against one bcrypt hash.
type Verifier struct {
	hash func() ([]byte, error)
}

// NewVerifier returns a Verifier for the configured bcrypt hash. An empty
// hash means DemoPassword, hashed on first use.
func NewVerifier(hash string) *Verifier {
	if hash != "" {
		h := []byte(hash)
		return &Verifier{hash: func() ([]byte, error) { return h, nil }}
	}
	return &Verifier{hash: sync.OnceValues(func() ([]byte, error) {
		return bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.MinCost)
	})}
}

// Verify reports whether password matches.
func (v *Verifier) Verify(password string) bool {
	hash, err := v.hash()
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
