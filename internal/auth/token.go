package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const bossSuffix = "BOSS"

// NewToken returns a random 32-byte session token, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the value stored for a session token.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NormalizeFamilyCode trims and upper-cases a family code. A trailing BOSS
// is stripped and reported as a request for the parent role. The returned
// code is empty when nothing usable remains.
func NormalizeFamilyCode(raw string) (code string, boss bool) {
	code = strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasSuffix(code, bossSuffix) {
		code = strings.TrimSpace(strings.TrimSuffix(code, bossSuffix))
		boss = true
	}
	return code, boss
}

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "chorechamp_session"
