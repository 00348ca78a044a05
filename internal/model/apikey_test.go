package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScopes(t *testing.T) {
	testCases := []struct {
		name   string
		scopes []Scope
		err    bool
	}{
		{
			name:   "single valid scope",
			scopes: []Scope{ScopeAccountsRead},
			err:    false,
		},
		{
			name:   "all valid scopes",
			scopes: []Scope{ScopeAccountsRead, ScopeAccountsWrite, ScopeWebhooksRead, ScopeWebhooksWrite},
			err:    false,
		},
		{
			name:   "empty",
			scopes: nil,
			err:    true,
		},
		{
			name:   "unknown scope",
			scopes: []Scope{ScopeAccountsRead, Scope("admin:everything")},
			err:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateScopes(tc.scopes)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateExpiryDays(t *testing.T) {
	assert.NoError(t, ValidateExpiryDays(1))
	assert.NoError(t, ValidateExpiryDays(365))
	assert.Error(t, ValidateExpiryDays(0))
	assert.Error(t, ValidateExpiryDays(366))
}

func TestGenerateKey(t *testing.T) {
	raw, prefix, hashed, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, prefix, KeyPrefixLen)
	assert.Equal(t, raw[:KeyPrefixLen], prefix)
	assert.NotEqual(t, raw, hashed)
	assert.True(t, VerifyKey(raw, hashed))
	assert.False(t, VerifyKey(raw+"x", hashed))

	// keys are unique
	raw2, _, _, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}

func TestScopeListScan(t *testing.T) {
	var scopes ScopeList
	err := scopes.Scan([]byte(`["accounts:read","webhooks:write"]`))
	require.NoError(t, err)
	assert.True(t, scopes.Contains(ScopeAccountsRead))
	assert.True(t, scopes.Contains(ScopeWebhooksWrite))
	assert.False(t, scopes.Contains(ScopeAccountsWrite))

	val, err := scopes.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `["accounts:read","webhooks:write"]`, string(val.([]byte)))

	assert.Error(t, scopes.Scan(42))
}

func TestAPIKeyUsable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	key := APIKey{IsActive: true, ExpiresAt: &future}
	assert.True(t, key.Usable(now))

	key.Revoked = true
	assert.False(t, key.Usable(now))

	key = APIKey{IsActive: true, ExpiresAt: &past}
	assert.False(t, key.Usable(now))

	key = APIKey{IsActive: false}
	assert.False(t, key.Usable(now))

	// no expiry means the key never expires
	key = APIKey{IsActive: true}
	assert.True(t, key.Usable(now))
}
