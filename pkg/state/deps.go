package state

import (
	"context"
	"database/sql"
	"fmt"
)

func errSelfDependency(name string) error {
	return fmt.Errorf("dependency edge %q -> %q is self-referential", name, name)
}

// DependencyRefcount returns the number of surviving packages in
// container that depend on name. A dependency is only cascade
// uninstalled once this count reaches zero.
func (s *Store) DependencyRefcount(ctx context.Context, name, container string) (int, error) {
	var count int
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM package_deps WHERE dependency = ? AND container = ?`,
			name, container).Scan(&count)
	})
	return count, stateError(name, err)
}

// IncrementDepRefcount records that parent now depends on dependency,
// inserting the edge if it is not already present (ON CONFLICT is a
// no-op, keeping the call idempotent).
func (s *Store) IncrementDepRefcount(ctx context.Context, parent, container, dependency string, depType DepType) error {
	if parent == dependency {
		return stateError(parent, errSelfDependency(parent))
	}
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO package_deps (name, container, dependency, dep_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name, container, dependency) DO NOTHING`,
			parent, container, dependency, string(depType))
		return stateError(parent, err)
	})
}

// DecrementDepRefcount removes the edge from parent to dependency. It
// returns the dependency's remaining refcount after removal, so callers
// can decide whether to cascade-uninstall the dependency.
func (s *Store) DecrementDepRefcount(ctx context.Context, parent, container, dependency string) (int, error) {
	var remaining int
	err := s.WithLock(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM package_deps WHERE name = ? AND container = ? AND dependency = ?`,
			parent, container, dependency); err != nil {
			return err
		}
		return tx.QueryRow(`SELECT COUNT(*) FROM package_deps WHERE dependency = ? AND container = ?`,
			dependency, container).Scan(&remaining)
	})
	return remaining, stateError(parent, err)
}

// ListDependents returns every (name, dep_type) pair depending on
// dependency within container.
func (s *Store) ListDependents(ctx context.Context, dependency, container string) ([]PackageDep, error) {
	var out []PackageDep
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT name, container, dependency, dep_type FROM package_deps
			WHERE dependency = ? AND container = ?`, dependency, container)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d PackageDep
			var depType string
			if err := rows.Scan(&d.Name, &d.Container, &d.Dependency, &depType); err != nil {
				return err
			}
			d.DepType = DepType(depType)
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, stateError(dependency, err)
}

// ListDeps returns every (dependency, dep_type) edge that name itself
// depends on within container — the inverse of ListDependents. A caller
// about to remove name's package row (which cascades its outgoing
// edges away) must capture this first if it needs to know afterward
// what name used to depend on.
func (s *Store) ListDeps(ctx context.Context, name, container string) ([]PackageDep, error) {
	var out []PackageDep
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT name, container, dependency, dep_type FROM package_deps
			WHERE name = ? AND container = ?`, name, container)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d PackageDep
			var depType string
			if err := rows.Scan(&d.Name, &d.Container, &d.Dependency, &depType); err != nil {
				return err
			}
			d.DepType = DepType(depType)
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, stateError(name, err)
}
