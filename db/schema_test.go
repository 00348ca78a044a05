package db_test

import (
	"testing"

	"github.com/adhunik-labs/adhunik/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel(t *testing.T) {
	model := db.Model()
	require.Len(t, model, 3)

	byName := make(map[string]db.Table)
	for _, table := range model {
		byName[table.Name] = table
	}

	users, ok := byName["users"]
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	assert.Equal(t, "public.users", users.QualifiedName())

	email, ok := users.Column("email")
	require.True(t, ok)
	assert.Equal(t, "text", email.Type)
	assert.False(t, email.Nullable)

	_, ok = users.Column("no_such_column")
	assert.False(t, ok)

	items, ok := byName["items"]
	require.True(t, ok)
	require.Len(t, items.ForeignKeys, 1)
	assert.Equal(t, "users", items.ForeignKeys[0].RefTable)
	assert.Equal(t, "CASCADE", items.ForeignKeys[0].OnDelete)

	keys, ok := byName["api_keys"]
	require.True(t, ok)
	scopes, ok := keys.Column("scopes")
	require.True(t, ok)
	assert.Equal(t, "jsonb", scopes.Type)
	expires, ok := keys.Column("expires_at")
	require.True(t, ok)
	assert.True(t, expires.Nullable)
}
