package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adhunik-labs/adhunik/db"
)

// Changeset is the SQL delta between the declared model and the live schema.
type Changeset struct {
	Up   []string
	Down []string
}

// Empty reports whether the diff produced no statements.
func (c *Changeset) Empty() bool {
	return len(c.Up) == 0
}

// ErrNoChanges is returned by Generate when the declared model and the live
// schema already agree.
var ErrNoChanges = fmt.Errorf("no schema changes detected")

// Diff computes the changes needed to bring the actual schema in line with
// the declared model. Tables are created in declared order and dropped in
// reverse, so foreign-key dependencies between declared tables hold.
func Diff(declared, actual []db.Table) *Changeset {
	cs := &Changeset{}

	actualByName := make(map[string]*db.Table, len(actual))
	for i := range actual {
		actualByName[actual[i].Name] = &actual[i]
	}
	declaredByName := make(map[string]*db.Table, len(declared))
	for i := range declared {
		declaredByName[declared[i].Name] = &declared[i]
	}

	// new tables, in declared order
	for i := range declared {
		want := &declared[i]
		if _, ok := actualByName[want.Name]; !ok {
			cs.Up = append(cs.Up, createTableSQL(want))
			cs.Down = append([]string{fmt.Sprintf("DROP TABLE %s;", want.Name)}, cs.Down...)
		}
	}

	// changed tables
	for i := range declared {
		want := &declared[i]
		have, ok := actualByName[want.Name]
		if !ok {
			continue
		}
		diffColumns(cs, want, have)
	}

	// dropped tables, in reverse of live order
	for i := len(actual) - 1; i >= 0; i-- {
		have := &actual[i]
		if _, ok := declaredByName[have.Name]; !ok {
			cs.Up = append(cs.Up, fmt.Sprintf("DROP TABLE %s;", have.Name))
			cs.Down = append(cs.Down, createTableSQL(have))
		}
	}

	return cs
}

func diffColumns(cs *Changeset, want, have *db.Table) {
	for _, col := range want.Columns {
		existing, ok := have.Column(col.Name)
		if !ok {
			cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", want.Name, columnSQL(col)))
			cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", want.Name, col.Name))
			continue
		}

		if existing.Type != col.Type {
			cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
				want.Name, col.Name, col.Type))
			cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
				want.Name, col.Name, existing.Type))
		}

		if existing.Nullable != col.Nullable {
			if col.Nullable {
				cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", want.Name, col.Name))
				cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", want.Name, col.Name))
			} else {
				cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", want.Name, col.Name))
				cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", want.Name, col.Name))
			}
		}

		if existing.Default != col.Default {
			if col.Default == "" {
				cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", want.Name, col.Name))
				cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
					want.Name, col.Name, existing.Default))
			} else {
				cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
					want.Name, col.Name, col.Default))
				if existing.Default == "" {
					cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", want.Name, col.Name))
				} else {
					cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
						want.Name, col.Name, existing.Default))
				}
			}
		}
	}

	for _, col := range have.Columns {
		if _, ok := want.Column(col.Name); !ok {
			cs.Up = append(cs.Up, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", want.Name, col.Name))
			cs.Down = append(cs.Down, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", want.Name, columnSQL(col)))
		}
	}
}

func createTableSQL(t *db.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", t.Name)

	fks := make(map[string]db.ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		fks[fk.Column] = fk
	}

	for _, col := range t.Columns {
		b.WriteString("    ")
		b.WriteString(columnSQL(col))
		if fk, ok := fks[col.Name]; ok {
			fmt.Fprintf(&b, " REFERENCES %s (%s)", fk.RefTable, fk.RefColumn)
			if fk.OnDelete != "" {
				fmt.Fprintf(&b, " ON DELETE %s", fk.OnDelete)
			}
		}
		b.WriteString(",\n")
	}

	if len(t.PrimaryKey) > 0 {
		fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n", strings.Join(t.PrimaryKey, ", "))
	}

	b.WriteString(");")
	return b.String()
}

func columnSQL(col db.Column) string {
	var b strings.Builder
	b.WriteString(col.Name)
	b.WriteString(" ")
	b.WriteString(col.Type)
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		fmt.Fprintf(&b, " DEFAULT %s", col.Default)
	}
	return b.String()
}

// Render produces the contents of a migration file for the changeset.
func Render(cs *Changeset, message string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n", message)
	b.WriteString("-- +goose Up\n")
	for _, stmt := range cs.Up {
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	b.WriteString("-- +goose Down\n")
	for _, stmt := range cs.Down {
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a human-readable migration message into a filename slug.
func Slugify(message string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(message), "_")
	return strings.Trim(slug, "_")
}

// Filename returns the versioned filename for a new revision.
func Filename(now time.Time, message string) string {
	return fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), Slugify(message))
}

// Generate diffs the declared model against the live schema and writes a new
// revision to dir. It never applies the result. ErrNoChanges is returned
// when the schemas already agree.
func Generate(declared, actual []db.Table, dir, message string, now time.Time) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("a migration message is required")
	}

	cs := Diff(declared, actual)
	if cs.Empty() {
		return "", ErrNoChanges
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("unable to create migrations dir: %w", err)
	}

	path := filepath.Join(dir, Filename(now, message))
	if err := os.WriteFile(path, Render(cs, message), 0644); err != nil {
		return "", fmt.Errorf("unable to write migration: %w", err)
	}
	return path, nil
}
