package state

import (
	"context"
	"database/sql"
	"encoding/json"
)

// AddRepo inserts or replaces a repository record, idempotent by
// (name, container_or_root).
func (s *Store) AddRepo(ctx context.Context, r Repo) error {
	urlsJSON, err := json.Marshal(nonNilStrings(r.URLs))
	if err != nil {
		return stateError(r.Name, err)
	}
	withSource := 0
	if r.WithSourceRepo {
		withSource = 1
	}

	return s.WithLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO repos (name, container_or_root, urls, key, options, with_source_repo)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name, container_or_root) DO UPDATE SET
				urls = excluded.urls,
				key = excluded.key,
				options = excluded.options,
				with_source_repo = excluded.with_source_repo`,
			r.Name, r.ContainerOrRoot, string(urlsJSON), r.Key, r.Options, withSource)
		return stateError(r.Name, err)
	})
}

// RemoveRepo deletes a repository record. Idempotent.
func (s *Store) RemoveRepo(ctx context.Context, name, containerOrRoot string) error {
	return s.WithLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM repos WHERE name = ? AND container_or_root = ?`, name, containerOrRoot)
		return stateError(name, err)
	})
}

// ListRepos returns every repository row registered against
// containerOrRoot.
func (s *Store) ListRepos(ctx context.Context, containerOrRoot string) ([]Repo, error) {
	var out []Repo
	err := s.WithReadLock(ctx, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT name, container_or_root, urls, key, options, with_source_repo
			FROM repos WHERE container_or_root = ? ORDER BY name`, containerOrRoot)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r Repo
			var urlsJSON string
			var withSource int
			if err := rows.Scan(&r.Name, &r.ContainerOrRoot, &urlsJSON, &r.Key, &r.Options, &withSource); err != nil {
				return err
			}
			r.WithSourceRepo = withSource != 0
			if err := json.Unmarshal([]byte(urlsJSON), &r.URLs); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, stateError(containerOrRoot, err)
}
