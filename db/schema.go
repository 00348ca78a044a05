package db

// Column describes a single column of a declared table. Type uses the
// spelling reported by information_schema (e.g. `text`, `uuid`,
// `timestamp with time zone`) so declared and introspected schemas compare
// directly.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

// ForeignKey describes a referential constraint on a declared table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Table describes a declared or introspected table.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column returns the named column and whether it exists.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// QualifiedName returns the table name prefixed with its schema.
func (t *Table) QualifiedName() string {
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	return schema + "." + t.Name
}

// Model returns the declared data model. Migration autogeneration diffs this
// model against the live database schema; changing a table here and running
// `adhunik migrate new` produces the corresponding revision.
func Model() []Table {
	return []Table{
		{
			Schema: "public",
			Name:   "users",
			Columns: []Column{
				{Name: "id", Type: "uuid"},
				{Name: "email", Type: "text"},
				{Name: "hashed_password", Type: "text"},
				{Name: "full_name", Type: "text", Nullable: true},
				{Name: "is_active", Type: "boolean", Default: "true"},
				{Name: "is_superuser", Type: "boolean", Default: "false"},
			},
			PrimaryKey: []string{"id"},
		},
		{
			Schema: "public",
			Name:   "items",
			Columns: []Column{
				{Name: "id", Type: "uuid"},
				{Name: "title", Type: "text"},
				{Name: "description", Type: "text", Nullable: true},
				{Name: "owner_id", Type: "uuid"},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{
				{Column: "owner_id", RefTable: "users", RefColumn: "id", OnDelete: "CASCADE"},
			},
		},
		{
			Schema: "public",
			Name:   "api_keys",
			Columns: []Column{
				{Name: "id", Type: "uuid"},
				{Name: "name", Type: "text"},
				{Name: "key_prefix", Type: "text"},
				{Name: "hashed_key", Type: "text"},
				{Name: "scopes", Type: "jsonb"},
				{Name: "owner_id", Type: "uuid"},
				{Name: "created_at", Type: "timestamp with time zone"},
				{Name: "expires_at", Type: "timestamp with time zone", Nullable: true},
				{Name: "last_used_at", Type: "timestamp with time zone", Nullable: true},
				{Name: "is_active", Type: "boolean", Default: "true"},
				{Name: "revoked", Type: "boolean", Default: "false"},
				{Name: "revoked_at", Type: "timestamp with time zone", Nullable: true},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{
				{Column: "owner_id", RefTable: "users", RefColumn: "id", OnDelete: "CASCADE"},
			},
		},
	}
}
