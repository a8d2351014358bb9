package token

import (
	"crypto/sha256"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/random"
)

const (
	ScopeActivation = "activation"
	ScopeRecovery   = "recovery"
)

// Mailer delivers token emails. Implemented by the email package;
// tests plug in a no-op.
type Mailer interface {
	SendActivationToken(to string, token string) error
	SendRecoveryToken(to string, token string) error
}

type Token struct {
	Hash   []byte    `db:"token_hash"`
	UserID string    `db:"user_id"`
	Scope  string    `db:"scope"`
	Expiry time.Time `db:"expiry"`
}

// Generate returns the plaintext token for the user and the row holding
// its hash. Only the hash is ever stored.
func Generate(userID string, scope string, ttl time.Duration) (string, Token, error) {
	plain, err := random.StringSecure(26)
	if err != nil {
		return "", Token{}, err
	}

	hash := sha256.Sum256([]byte(plain))
	tk := Token{
		Hash:   hash[:],
		UserID: userID,
		Scope:  scope,
		Expiry: time.Now().UTC().Add(ttl),
	}
	return plain, tk, nil
}

func Hash(plain string) []byte {
	h := sha256.Sum256([]byte(plain))
	return h[:]
}
