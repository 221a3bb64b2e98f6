package state

import (
	"context"
	"database/sql"
	"encoding/json"
)

// RecordPackage inserts or replaces a package row and its associated
// dependency edges within one transaction, covering the package row,
// dependency edges, local_copies, flags, and local_copy_type together.
// Idempotent: re-recording identical data changes nothing observable.
func (s *Store) RecordPackage(ctx context.Context, pkg Package, deps []PackageDep) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		return recordPackageTx(tx, pkg, deps)
	})
}

func recordPackageTx(tx *sql.Tx, pkg Package, deps []PackageDep) error {
	copiesJSON, err := json.Marshal(nonNilStrings(pkg.LocalCopies))
	if err != nil {
		return stateError(pkg.Name, err)
	}
	flagsJSON, err := json.Marshal(nonNilMap(pkg.Flags))
	if err != nil {
		return stateError(pkg.Name, err)
	}

	explicit := 0
	if pkg.Explicit {
		explicit = 1
	}

	_, err = tx.Exec(`INSERT INTO packages (name, container, local_copies, flags, local_copy_type, explicit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, container) DO UPDATE SET
			local_copies = excluded.local_copies,
			flags = excluded.flags,
			local_copy_type = excluded.local_copy_type,
			explicit = excluded.explicit`,
		pkg.Name, pkg.Container, string(copiesJSON), string(flagsJSON), int(pkg.LocalCopyType), explicit)
	if err != nil {
		return stateError(pkg.Name, err)
	}

	for _, d := range deps {
		if d.Name == d.Dependency {
			return stateError(pkg.Name, errSelfDependency(d.Dependency))
		}
		if _, err := tx.Exec(`INSERT INTO package_deps (name, container, dependency, dep_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name, container, dependency) DO UPDATE SET dep_type = excluded.dep_type`,
			d.Name, d.Container, d.Dependency, string(d.DepType)); err != nil {
			return stateError(pkg.Name, err)
		}
	}
	return nil
}

// RemovePackage deletes a package row and its outgoing dependency edges.
// Idempotent: removing a package that is not present succeeds with no
// effect.
func (s *Store) RemovePackage(ctx context.Context, name, container string) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM package_deps WHERE name = ? AND container = ?`, name, container); err != nil {
			return stateError(name, err)
		}
		if _, err := tx.Exec(`DELETE FROM packages WHERE name = ? AND container = ?`, name, container); err != nil {
			return stateError(name, err)
		}
		return nil
	})
}

// SetExplicit flips a package's explicit bit without touching its
// install state, for `ybox-pkg mark`: -e records the package as
// directly requested, -d demotes it back to "installed only as a
// dependency" so a future cascade-uninstall of its parent can remove it.
func (s *Store) SetExplicit(ctx context.Context, name, container string, explicit bool) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		v := 0
		if explicit {
			v = 1
		}
		_, err := tx.Exec(`UPDATE packages SET explicit = ? WHERE name = ? AND container = ?`, v, name, container)
		if err != nil {
			return stateError(name, err)
		}
		return nil
	})
}

// GetPackage returns a single package row, or sql.ErrNoRows if absent.
func (s *Store) GetPackage(ctx context.Context, name, container string) (Package, error) {
	var pkg Package
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		var copiesJSON, flagsJSON string
		var copyType, explicit int
		row := db.QueryRow(`SELECT name, container, local_copies, flags, local_copy_type, explicit
			FROM packages WHERE name = ? AND container = ?`, name, container)
		if err := row.Scan(&pkg.Name, &pkg.Container, &copiesJSON, &flagsJSON, &copyType, &explicit); err != nil {
			return err
		}
		pkg.LocalCopyType = LocalCopyType(copyType)
		pkg.Explicit = explicit != 0
		if err := json.Unmarshal([]byte(copiesJSON), &pkg.LocalCopies); err != nil {
			return err
		}
		return json.Unmarshal([]byte(flagsJSON), &pkg.Flags)
	})
	if err != nil && err != sql.ErrNoRows {
		err = stateError(name, err)
	}
	return pkg, err
}

// ListPackages returns every package row for a container. When
// includeDeps is true, the result also includes packages installed
// purely as dependencies of another package in the container.
func (s *Store) ListPackages(ctx context.Context, container string, includeDeps bool) ([]Package, error) {
	var out []Package
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		query := `SELECT name, container, local_copies, flags, local_copy_type, explicit FROM packages WHERE container = ?`
		if !includeDeps {
			query += ` AND explicit = 1`
		}
		query += ` ORDER BY name`
		rows, err := db.Query(query, container)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var pkg Package
			var copiesJSON, flagsJSON string
			var copyType, explicit int
			if err := rows.Scan(&pkg.Name, &pkg.Container, &copiesJSON, &flagsJSON, &copyType, &explicit); err != nil {
				return err
			}
			pkg.LocalCopyType = LocalCopyType(copyType)
			pkg.Explicit = explicit != 0
			if err := json.Unmarshal([]byte(copiesJSON), &pkg.LocalCopies); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(flagsJSON), &pkg.Flags); err != nil {
				return err
			}
			out = append(out, pkg)
		}
		return rows.Err()
	})
	return out, stateError(container, err)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
