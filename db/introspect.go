package db

import (
	"fmt"
	"sort"

	"github.com/jackc/pgx"
)

// Introspect reads the live schema for all tables in the given Postgres
// schema. Tables listed in ignore (e.g. the migration tool's version table)
// are skipped.
func Introspect(conn *pgx.Conn, schema string, ignore []string) ([]Table, error) {
	ignored := make(map[string]bool)
	for _, name := range ignore {
		ignored[name] = true
	}

	rows, err := conn.Query(`
		SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = $1`, schema,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to list tables in schema '%s': %w", schema, err)
	}

	var names []string
	for rows.Next() {
		var t string
		if err = rows.Scan(&t); err != nil {
			rows.Close()
			return nil, err
		}
		if !ignored[t] {
			names = append(names, t)
		}
	}
	rows.Close()
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table, err := getTableDetails(conn, schema, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}

	return tables, nil
}

func getTableDetails(conn *pgx.Conn, schema, name string) (*Table, error) {
	table := Table{Schema: schema, Name: name}

	rows, err := conn.Query(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read columns for table '%s.%s': %w", schema, name, err)
	}

	for rows.Next() {
		var col Column
		var nullable string
		err = rows.Scan(&col.Name, &col.Type, &nullable, &col.Default)
		if err != nil {
			rows.Close()
			return nil, err
		}
		col.Nullable = nullable == "YES"
		table.Columns = append(table.Columns, col)
	}
	rows.Close()

	pkey, err := getPrimaryKey(conn, schema, name)
	if err != nil {
		return nil, err
	}
	table.PrimaryKey = pkey

	return &table, nil
}

func getPrimaryKey(conn *pgx.Conn, schema, name string) ([]string, error) {
	rows, err := conn.Query(`
		SELECT
			kcu.ordinal_position as position,
			kcu.column_name as key_column
		FROM information_schema.table_constraints tco
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tco.constraint_name
			AND kcu.constraint_schema = tco.constraint_schema
		WHERE tco.constraint_type = 'PRIMARY KEY'
			AND kcu.table_schema = $1
			AND kcu.table_name = $2
		ORDER BY position`, schema, name,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read primary key for table '%s.%s': %w", schema, name, err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var position int
		var column string
		if err = rows.Scan(&position, &column); err != nil {
			return nil, err
		}
		fields = append(fields, column)
	}
	return fields, nil
}
