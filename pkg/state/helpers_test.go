package state

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func ctxBG() context.Context {
	return context.Background()
}

// openLegacyAt090 creates a database containing only the 0.9.0 schema,
// mimicking a database last written by that version of ybox, without
// going through the migration engine.
func openLegacyAt090(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)

	script, err := readScript("0.9.0-added.sql")
	require.NoError(t, err)
	_, err = db.Exec(script)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO schema_version (version) VALUES ('0.9.0')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO containers (name, distribution, shared_root, configuration) VALUES ('c1', 'arch', '', '')`)
	require.NoError(t, err)

	return db
}

func seedLegacyPackage(db *sql.DB, name, container, localCopiesJSON string) error {
	_, err := db.Exec(`INSERT INTO packages (name, container, local_copies, flags, explicit)
		VALUES (?, ?, ?, '{}', 1)`, name, container, localCopiesJSON)
	return err
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir+"/state.db", dir+"/state.db.lock")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}
