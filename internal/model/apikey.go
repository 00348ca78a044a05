package model

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Scope is a permission granted to an API key.
type Scope string

const (
	ScopeAccountsRead  Scope = "accounts:read"
	ScopeAccountsWrite Scope = "accounts:write"
	ScopeWebhooksRead  Scope = "webhooks:read"
	ScopeWebhooksWrite Scope = "webhooks:write"
)

// KeyPrefixLen is the number of leading raw-key characters stored for
// display and lookup.
const KeyPrefixLen = 8

// Expiry bounds for new keys, in days.
const (
	MinExpiryDays = 1
	MaxExpiryDays = 365
)

var validScopes = map[Scope]bool{
	ScopeAccountsRead:  true,
	ScopeAccountsWrite: true,
	ScopeWebhooksRead:  true,
	ScopeWebhooksWrite: true,
}

var ErrNoScopes = errors.New("at least one scope must be provided")

// ValidateScopes checks that scopes is non-empty and contains only known
// scope values.
func ValidateScopes(scopes []Scope) error {
	if len(scopes) == 0 {
		return ErrNoScopes
	}
	for _, s := range scopes {
		if !validScopes[s] {
			return fmt.Errorf("invalid scope: %s", s)
		}
	}
	return nil
}

// ValidateExpiryDays checks the expiry bounds for a new key.
func ValidateExpiryDays(days int) error {
	if days < MinExpiryDays || days > MaxExpiryDays {
		return fmt.Errorf("expiry days must be between %d and %d", MinExpiryDays, MaxExpiryDays)
	}
	return nil
}

// ScopeList is a scope slice stored as a jsonb column.
type ScopeList []Scope

// Contains reports whether the list grants the given scope.
func (l ScopeList) Contains(scope Scope) bool {
	for _, s := range l {
		if s == scope {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (l ScopeList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ScopeList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unable to scan scopes from %T", src)
	}
}

// GenerateKey generates a new raw API key, its display prefix, and the hash
// stored in its place. The raw key is returned exactly once, at creation.
func GenerateKey() (raw, prefix, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("unable to generate key: %w", err)
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	prefix = raw[:KeyPrefixLen]
	hashed = HashKey(raw)
	return raw, prefix, hashed, nil
}

// HashKey returns the stored form of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyKey compares a presented raw key against a stored hash in constant
// time.
func VerifyKey(raw, hashed string) bool {
	sum := HashKey(raw)
	return subtle.ConstantTimeCompare([]byte(sum), []byte(hashed)) == 1
}
