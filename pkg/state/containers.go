package state

import (
	"context"
	"database/sql"
	"fmt"
)

// RegisterContainer inserts a new container row. Idempotent: calling it
// again for the same name with the same distribution/shared_root is a
// no-op; calling it for a name that already belongs to a different
// distribution or shared_root is an error.
func (s *Store) RegisterContainer(ctx context.Context, c Container) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		existing, err := getContainer(tx, c.Name)
		if err != nil && err != sql.ErrNoRows {
			return stateError(c.Name, err)
		}
		if err == nil {
			if existing.Distribution != c.Distribution || existing.SharedRoot != c.SharedRoot {
				return stateError(c.Name, fmt.Errorf("container %q already registered with a different distribution/shared_root", c.Name))
			}
			return nil
		}

		_, err = tx.Exec(`INSERT INTO containers (name, distribution, shared_root, configuration, destroyed)
			VALUES (?, ?, ?, ?, 0)`, c.Name, c.Distribution, c.SharedRoot, c.Configuration)
		return stateError(c.Name, err)
	})
}

func getContainer(tx *sql.Tx, name string) (Container, error) {
	var c Container
	var destroyed int
	row := tx.QueryRow(`SELECT name, distribution, shared_root, configuration, destroyed
		FROM containers WHERE name = ?`, name)
	err := row.Scan(&c.Name, &c.Distribution, &c.SharedRoot, &c.Configuration, &destroyed)
	c.Destroyed = destroyed != 0
	return c, err
}

// GetContainer returns the container row for name, or sql.ErrNoRows if
// none exists.
func (s *Store) GetContainer(ctx context.Context, name string) (Container, error) {
	var c Container
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		var destroyed int
		row := db.QueryRow(`SELECT name, distribution, shared_root, configuration, destroyed
			FROM containers WHERE name = ?`, name)
		if err := row.Scan(&c.Name, &c.Distribution, &c.SharedRoot, &c.Configuration, &destroyed); err != nil {
			return err
		}
		c.Destroyed = destroyed != 0
		return nil
	})
	if err != nil && err != sql.ErrNoRows {
		err = stateError(name, err)
	}
	return c, err
}

// ListContainers returns every non-destroyed container, or every
// container including tombstones if includeDestroyed is true.
func (s *Store) ListContainers(ctx context.Context, includeDestroyed bool) ([]Container, error) {
	var out []Container
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		query := `SELECT name, distribution, shared_root, configuration, destroyed FROM containers`
		if !includeDestroyed {
			query += ` WHERE destroyed = 0`
		}
		query += ` ORDER BY name`
		rows, err := db.Query(query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Container
			var destroyed int
			if err := rows.Scan(&c.Name, &c.Distribution, &c.SharedRoot, &c.Configuration, &destroyed); err != nil {
				return err
			}
			c.Destroyed = destroyed != 0
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, stateError("", err)
}

// MarkContainerDestroyed implements the tombstone rule: if the container
// still has package rows (it is shared-root referenced), the row is
// renamed to a generated unique tombstone name and destroyed=true;
// otherwise only the container row is removed outright (with no package
// rows left, no dependency edges can reference it).
func (s *Store) MarkContainerDestroyed(ctx context.Context, name, tombstoneName string) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM packages WHERE container = ?`, name).Scan(&count); err != nil {
			return stateError(name, err)
		}

		if count == 0 {
			if _, err := tx.Exec(`DELETE FROM containers WHERE name = ?`, name); err != nil {
				return stateError(name, err)
			}
			return nil
		}

		if _, err := tx.Exec(`UPDATE containers SET name = ?, destroyed = 1 WHERE name = ?`, tombstoneName, name); err != nil {
			return stateError(name, err)
		}
		if _, err := tx.Exec(`UPDATE packages SET container = ? WHERE container = ?`, tombstoneName, name); err != nil {
			return stateError(name, err)
		}
		if _, err := tx.Exec(`UPDATE package_deps SET container = ? WHERE container = ?`, tombstoneName, name); err != nil {
			return stateError(name, err)
		}
		return nil
	})
}

// PurgeDestroyedIfUnreferenced deletes every destroyed container row
// that no longer has any package referencing it.
func (s *Store) PurgeDestroyedIfUnreferenced(ctx context.Context) (int, error) {
	var purged int
	err := s.WithLock(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT name FROM containers WHERE destroyed = 1`)
		if err != nil {
			return stateError("", err)
		}
		var tombstones []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return stateError("", err)
			}
			tombstones = append(tombstones, n)
		}
		rows.Close()

		for _, name := range tombstones {
			var count int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM packages WHERE container = ?`, name).Scan(&count); err != nil {
				return stateError(name, err)
			}
			if count > 0 {
				continue
			}
			if _, err := tx.Exec(`DELETE FROM containers WHERE name = ?`, name); err != nil {
				return stateError(name, err)
			}
			purged++
		}
		return nil
	})
	return purged, err
}

// TransferOrphanPackages reassigns every package row (and its dependency
// edges) from a destroyed tombstone to a live container, implementing
// the --force-own-orphans path of orphan ownership transfer.
func (s *Store) TransferOrphanPackages(ctx context.Context, tombstone, newOwner string) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		if _, err := getContainer(tx, newOwner); err != nil {
			return stateError(newOwner, fmt.Errorf("target container does not exist: %w", err))
		}
		if _, err := tx.Exec(`UPDATE packages SET container = ? WHERE container = ?`, newOwner, tombstone); err != nil {
			return stateError(tombstone, err)
		}
		if _, err := tx.Exec(`UPDATE package_deps SET container = ? WHERE container = ?`, newOwner, tombstone); err != nil {
			return stateError(tombstone, err)
		}
		return nil
	})
}
