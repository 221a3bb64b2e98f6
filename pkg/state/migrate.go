package state

import (
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ybox-project/ybox/pkg/ybox"
)

//go:embed schema
var schemaFS embed.FS

// BundledVersion is the schema version this build of ybox ships.
const BundledVersion = "1.0.0"

type version []int

func parseVersion(s string) (version, error) {
	parts := strings.Split(s, ".")
	v := make(version, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version component %q in %q", p, s)
		}
		v[i] = n
	}
	return v, nil
}

// compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a version) compare(b version) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

type creationScript struct {
	version  string
	filename string
}

type migrationScript struct {
	from, to string
	filename string
}

var migrationFilePattern = regexp.MustCompile(`^([0-9.]+):([0-9.]+)\.sql$`)
var creationFilePattern = regexp.MustCompile(`^([0-9.]+)-added\.sql$`)

func listCreationScripts() ([]creationScript, error) {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return nil, err
	}
	var scripts []creationScript
	for _, e := range entries {
		if m := creationFilePattern.FindStringSubmatch(e.Name()); m != nil {
			scripts = append(scripts, creationScript{version: m[1], filename: e.Name()})
		}
	}
	sort.Slice(scripts, func(i, j int) bool {
		vi, _ := parseVersion(scripts[i].version)
		vj, _ := parseVersion(scripts[j].version)
		return vi.compare(vj) < 0
	})
	return scripts, nil
}

func listMigrationScripts() ([]migrationScript, error) {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return nil, err
	}
	var scripts []migrationScript
	for _, e := range entries {
		if m := migrationFilePattern.FindStringSubmatch(e.Name()); m != nil {
			scripts = append(scripts, migrationScript{from: m[1], to: m[2], filename: e.Name()})
		}
	}
	return scripts, nil
}

// sourceDirective matches an embedded `SOURCE 'file.sql';` line, expanded
// by expandSource before execution.
var sourceDirective = regexp.MustCompile(`(?m)^\s*SOURCE\s+'([^']+)'\s*;\s*$`)

func expandSource(text string, visited map[string]bool) (string, error) {
	return sourceDirective.ReplaceAllStringFunc(text, func(line string) string {
		m := sourceDirective.FindStringSubmatch(line)
		filename := m[1]
		if visited[filename] {
			return "" // already expanded once in this script; avoid duplicate DDL
		}
		visited[filename] = true
		contents, err := schemaFS.ReadFile("schema/" + filename)
		if err != nil {
			return fmt.Sprintf("-- SOURCE error: %v\n", err)
		}
		expanded, err := expandSource(string(contents), visited)
		if err != nil {
			return fmt.Sprintf("-- SOURCE error: %v\n", err)
		}
		return expanded
	}), nil
}

func readScript(filename string) (string, error) {
	contents, err := schemaFS.ReadFile("schema/" + filename)
	if err != nil {
		return "", err
	}
	return expandSource(string(contents), map[string]bool{filename: true})
}

// migrate brings the database at the current schema version up to
// BundledVersion: creation scripts in order for a fresh database, or
// the chain of applicable <from>:<to>.sql migration scripts, each
// inside its own transaction, for an existing older database.
// Downgrade (current > bundled) fails with SchemaError/IncompatibleSchema.
func migrate(db *sql.DB) error {
	current, err := readSchemaVersion(db)
	if err != nil {
		return err
	}

	if current == "" {
		return createFresh(db)
	}

	currentV, err := parseVersion(current)
	if err != nil {
		return ybox.NewError(ybox.KindSchema, current, err)
	}
	bundledV, _ := parseVersion(BundledVersion)

	switch currentV.compare(bundledV) {
	case 0:
		return nil
	case 1:
		return ybox.NewError(ybox.KindSchema, current,
			fmt.Errorf("database schema %s is newer than this build's %s (incompatible, downgrade not supported)", current, BundledVersion))
	}

	migrations, err := listMigrationScripts()
	if err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}

	for {
		if current == BundledVersion {
			return nil
		}
		var next *migrationScript
		for i := range migrations {
			if migrations[i].from == current {
				next = &migrations[i]
				break
			}
		}
		if next == nil {
			return ybox.NewError(ybox.KindSchema, current,
				fmt.Errorf("no migration path from schema version %s to %s", current, BundledVersion))
		}

		if err := applyMigration(db, *next); err != nil {
			return err
		}
		current = next.to
	}
}

func applyMigration(db *sql.DB, m migrationScript) error {
	sqlText, err := readScript(m.filename)
	if err != nil {
		return ybox.NewError(ybox.KindSchema, m.filename, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return ybox.NewError(ybox.KindSchema, m.filename, err)
	}
	defer tx.Rollback()

	if err := execScript(tx, sqlText); err != nil {
		return ybox.NewError(ybox.KindSchema, m.filename, err)
	}

	if err := backfillLocalCopyType(tx, m.to); err != nil {
		return ybox.NewError(ybox.KindSchema, m.filename, err)
	}

	if err := writeSchemaVersion(tx, m.to); err != nil {
		return ybox.NewError(ybox.KindSchema, m.filename, err)
	}

	return tx.Commit()
}

func createFresh(db *sql.DB) error {
	scripts, err := listCreationScripts()
	if err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}
	defer tx.Rollback()

	for _, s := range scripts {
		sqlText, err := readScript(s.filename)
		if err != nil {
			return ybox.NewError(ybox.KindSchema, s.filename, err)
		}
		if err := execScript(tx, sqlText); err != nil {
			return ybox.NewError(ybox.KindSchema, s.filename, err)
		}
	}

	if err := writeSchemaVersion(tx, BundledVersion); err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}

	return tx.Commit()
}

func execScript(tx *sql.Tx, script string) error {
	for _, stmt := range splitStatements(script) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(stmt), err)
		}
	}
	return nil
}

// splitStatements is a deliberately simple ";"-terminated statement
// splitter: schema scripts are authored in-repo and never contain string
// literals with embedded semicolons.
func splitStatements(script string) []string {
	var out []string
	for _, line := range strings.Split(script, ";") {
		if strings.TrimSpace(line) != "" && !isCommentOnly(line) {
			out = append(out, line)
		}
	}
	return out
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			return false
		}
	}
	return true
}

func readSchemaVersion(db *sql.DB) (string, error) {
	row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`)
	var name string
	if err := row.Scan(&name); err != nil {
		return "", nil // table does not exist yet: fresh database
	}

	row = db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	var v string
	if err := row.Scan(&v); err != nil {
		return "", nil
	}
	return v, nil
}

func writeSchemaVersion(tx *sql.Tx, v string) error {
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v)
	return err
}

// backfillLocalCopyType is a best-effort legacy heuristic: when the
// local_copy_type column is introduced (schema 0.9.6), every pre-existing
// package row is inferred from substrings of its local_copies JSON array,
// rather than left at the column's default of 0 (CopyNone). This is lossy:
// a package whose only wrapper is a man-page symlink is indistinguishable
// from one with no wrappers at all under this heuristic.
func backfillLocalCopyType(tx *sql.Tx, toVersion string) error {
	if toVersion != "0.9.6" {
		return nil
	}

	rows, err := tx.Query(`SELECT name, container, local_copies FROM packages`)
	if err != nil {
		return err
	}
	type row struct{ name, container, copies string }
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.name, &r.container, &r.copies); err != nil {
			rows.Close()
			return err
		}
		all = append(all, r)
	}
	rows.Close()

	for _, r := range all {
		mask := 0
		if strings.Contains(r.copies, "/applications/") {
			mask |= 1
		}
		if strings.Contains(r.copies, "/.local/bin/") {
			mask |= 2
		}
		if mask == 0 {
			continue
		}
		if _, err := tx.Exec(`UPDATE packages SET local_copy_type = ? WHERE name = ? AND container = ?`,
			mask, r.name, r.container); err != nil {
			return err
		}
	}
	return nil
}
