package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhunik-labs/adhunik/internal/model"
	"github.com/adhunik-labs/adhunik/internal/store"
)

type fakeUserStore struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, id uuid.UUID, email *string, fullName *string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if email != nil {
		user.Email = *email
	}
	if fullName != nil {
		user.FullName = fullName
	}
	return user, nil
}

type fakeItemStore struct {
	items map[uuid.UUID]*model.Item
}

func (f *fakeItemStore) Create(_ context.Context, item *model.Item) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemStore) ListByOwner(_ context.Context, ownerID uuid.UUID, skip, limit int) ([]*model.Item, int, error) {
	var items []*model.Item
	for _, item := range f.items {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	return items, len(items), nil
}

func (f *fakeItemStore) GetByID(_ context.Context, ownerID, id uuid.UUID) (*model.Item, error) {
	item, ok := f.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeItemStore) Update(_ context.Context, item *model.Item) error {
	existing, ok := f.items[item.ID]
	if !ok || existing.OwnerID != item.OwnerID {
		return store.ErrNotFound
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemStore) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	item, ok := f.items[id]
	if !ok || item.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeAPIKeyStore struct {
	keys map[uuid.UUID]*model.APIKey
}

func (f *fakeAPIKeyStore) Create(_ context.Context, key *model.APIKey) error {
	f.keys[key.ID] = key
	return nil
}

func (f *fakeAPIKeyStore) ListByOwner(_ context.Context, ownerID uuid.UUID, filter store.ListFilter) ([]*model.APIKey, int, error) {
	var keys []*model.APIKey
	for _, key := range f.keys {
		if key.OwnerID != ownerID {
			continue
		}
		if !filter.ShowRevoked && key.Revoked {
			continue
		}
		if !filter.ShowExpired && key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, len(keys), nil
}

func (f *fakeAPIKeyStore) GetByID(_ context.Context, ownerID, id uuid.UUID) (*model.APIKey, error) {
	key, ok := f.keys[id]
	if !ok || key.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return key, nil
}

func (f *fakeAPIKeyStore) GetByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	var keys []*model.APIKey
	for _, key := range f.keys {
		if key.KeyPrefix == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeAPIKeyStore) Revoke(_ context.Context, ownerID, id uuid.UUID, at time.Time) error {
	key, ok := f.keys[id]
	if !ok || key.OwnerID != ownerID {
		return store.ErrNotFound
	}
	key.Revoked = true
	key.RevokedAt = &at
	key.IsActive = false
	return nil
}

func (f *fakeAPIKeyStore) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	if key, ok := f.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

type testEnv struct {
	server *httptest.Server
	users  *fakeUserStore
	keys   *fakeAPIKeyStore
	items  *fakeItemStore
	user   *model.User
	rawKey string
}

func newTestEnv(t *testing.T, scopes ...model.Scope) *testEnv {
	t.Helper()

	users := &fakeUserStore{users: map[uuid.UUID]*model.User{}}
	items := &fakeItemStore{items: map[uuid.UUID]*model.Item{}}
	keys := &fakeAPIKeyStore{keys: map[uuid.UUID]*model.APIKey{}}

	user := &model.User{ID: uuid.New(), Email: "dev@example.com", IsActive: true}
	users.users[user.ID] = user

	raw, prefix, hashed, err := model.GenerateKey()
	require.NoError(t, err)

	expires := time.Now().Add(24 * time.Hour)
	key := &model.APIKey{
		ID:        uuid.New(),
		Name:      "test key",
		KeyPrefix: prefix,
		HashedKey: hashed,
		Scopes:    model.ScopeList(scopes),
		OwnerID:   user.ID,
		CreatedAt: time.Now(),
		ExpiresAt: &expires,
		IsActive:  true,
	}
	keys.keys[key.ID] = key

	logger := log.New()
	logger.SetOutput(io.Discard)
	srv := New(users, items, keys, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, users: users, keys: keys, items: items, user: user, rawKey: raw}
}

func (e *testEnv) request(t *testing.T, method, path, key string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthzRequiresNoAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead)

	t.Run("missing key", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/account", "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "ApiKey", resp.Header.Get("WWW-Authenticate"))
	})

	t.Run("wrong key", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/account", "not-a-real-key-at-all", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/account", env.rawKey, nil)
		var account accountPublic
		decode(t, resp, &account)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, env.user.Email, account.Email)
	})

	t.Run("successful use updates last_used_at", func(t *testing.T) {
		for _, key := range env.keys.keys {
			assert.NotNil(t, key.LastUsedAt)
		}
	})

	t.Run("revoked key is rejected", func(t *testing.T) {
		for _, key := range env.keys.keys {
			key.Revoked = true
		}
		resp := env.request(t, http.MethodGet, "/api/v1/account", env.rawKey, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestScopeEnforcement(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead)

	// read scope does not grant writes
	resp := env.request(t, http.MethodPatch, "/api/v1/account", env.rawKey, updateAccountRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAccountUpdate(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead, model.ScopeAccountsWrite)

	name := "Dev Eloper"
	resp := env.request(t, http.MethodPatch, "/api/v1/account", env.rawKey, updateAccountRequest{FullName: &name})
	var account accountPublic
	decode(t, resp, &account)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, account.FullName)
	assert.Equal(t, name, *account.FullName)

	resp = env.request(t, http.MethodPatch, "/api/v1/account", env.rawKey, updateAccountRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead, model.ScopeAccountsWrite)

	// create: the raw key appears exactly once, in the creation response
	resp := env.request(t, http.MethodPost, "/api/v1/api-keys", env.rawKey, createAPIKeyRequest{
		Name:       "ci key",
		Scopes:     []model.Scope{model.ScopeWebhooksRead},
		ExpiryDays: 30,
	})
	var created apiKeyResponse
	decode(t, resp, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created.Key)
	assert.Equal(t, created.Key[:model.KeyPrefixLen], created.KeyPrefix)

	stored := env.keys.keys[created.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, created.Key, stored.HashedKey)

	// list includes the new key but never the raw key material
	resp = env.request(t, http.MethodGet, "/api/v1/api-keys", env.rawKey, nil)
	var listed apiKeysPublic
	decode(t, resp, &listed)
	assert.Equal(t, 2, listed.Count)

	// get by id
	resp = env.request(t, http.MethodGet, "/api/v1/api-keys/"+created.ID.String(), env.rawKey, nil)
	var fetched apiKeyPublic
	decode(t, resp, &fetched)
	assert.Equal(t, "ci key", fetched.Name)
	assert.True(t, fetched.IsActive)

	// revoke
	resp = env.request(t, http.MethodDelete, "/api/v1/api-keys/"+created.ID.String(), env.rawKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, env.keys.keys[created.ID].Revoked)

	// revoked keys are hidden from the default listing
	resp = env.request(t, http.MethodGet, "/api/v1/api-keys", env.rawKey, nil)
	var afterRevoke apiKeysPublic
	decode(t, resp, &afterRevoke)
	assert.Equal(t, 1, afterRevoke.Count)

	// unknown id
	resp = env.request(t, http.MethodGet, "/api/v1/api-keys/"+uuid.NewString(), env.rawKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIKeyValidation(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead)

	testCases := []struct {
		name string
		req  createAPIKeyRequest
	}{
		{
			name: "no scopes",
			req:  createAPIKeyRequest{Name: "k", ExpiryDays: 30},
		},
		{
			name: "bad scope",
			req:  createAPIKeyRequest{Name: "k", Scopes: []model.Scope{"nope"}, ExpiryDays: 30},
		},
		{
			name: "expiry too long",
			req:  createAPIKeyRequest{Name: "k", Scopes: []model.Scope{model.ScopeAccountsRead}, ExpiryDays: 9999},
		},
		{
			name: "no name",
			req:  createAPIKeyRequest{Scopes: []model.Scope{model.ScopeAccountsRead}, ExpiryDays: 30},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.request(t, http.MethodPost, "/api/v1/api-keys", env.rawKey, tc.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestItemCRUD(t *testing.T) {
	env := newTestEnv(t, model.ScopeAccountsRead, model.ScopeAccountsWrite)

	desc := "first item"
	resp := env.request(t, http.MethodPost, "/api/v1/items", env.rawKey, itemRequest{Title: "one", Description: &desc})
	var created model.Item
	decode(t, resp, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, env.user.ID, created.OwnerID)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%s", created.ID), env.rawKey, nil)
	var fetched model.Item
	decode(t, resp, &fetched)
	assert.Equal(t, "one", fetched.Title)

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/v1/items/%s", created.ID), env.rawKey, itemRequest{Title: "renamed"})
	var updated model.Item
	decode(t, resp, &updated)
	assert.Equal(t, "renamed", updated.Title)

	resp = env.request(t, http.MethodGet, "/api/v1/items", env.rawKey, nil)
	var listed itemsPublic
	decode(t, resp, &listed)
	assert.Equal(t, 1, listed.Count)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/items/%s", created.ID), env.rawKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%s", created.ID), env.rawKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
