package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/untoldecay/eventgraph/internal/ids"
	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// UpsertWorkspace returns the workspace for path, creating it if this
// is the first time the store has seen it.
func (s *Store) UpsertWorkspace(ctx context.Context, path, name string) (*types.Workspace, error) {
	var ws *types.Workspace
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getWorkspaceByPath(ctx, tx, path)
		if err != nil && !storeerr.Is(err, storeerr.NotFound) {
			return err
		}
		if existing != nil {
			now := s.Now()
			if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET last_activity_at = ? WHERE id = ?`, now, existing.ID); err != nil {
				return wrapStorageErr(err, "touching workspace %s", existing.ID)
			}
			existing.LastActivityAt = now
			ws = existing
			return nil
		}

		now := s.Now()
		w := &types.Workspace{
			ID:             ids.New(ids.Workspace),
			Path:           path,
			Name:           name,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, path, name, created_at, last_activity_at)
			VALUES (?, ?, ?, ?, ?)`,
			w.ID, w.Path, w.Name, w.CreatedAt, w.LastActivityAt)
		if err != nil {
			return wrapStorageErr(err, "creating workspace for %s", path)
		}
		ws = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func getWorkspaceByPath(ctx context.Context, tx *sql.Tx, path string) (*types.Workspace, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, path, name, created_at, last_activity_at
		FROM workspaces WHERE path = ?`, path)
	w := &types.Workspace{}
	err := row.Scan(&w.ID, &w.Path, &w.Name, &w.CreatedAt, &w.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeerr.New(storeerr.NotFound, "workspace with path %s not found", path)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading workspace %s", path)
	}
	return w, nil
}

// GetWorkspace loads a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*types.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, name, created_at, last_activity_at
		FROM workspaces WHERE id = ?`, id)
	w := &types.Workspace{}
	err := row.Scan(&w.ID, &w.Path, &w.Name, &w.CreatedAt, &w.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeerr.New(storeerr.NotFound, "workspace %s not found", id)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading workspace %s", id)
	}
	return w, nil
}

// ListWorkspaces returns every known workspace, most recently active
// first.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*types.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, name, created_at, last_activity_at
		FROM workspaces ORDER BY last_activity_at DESC`)
	if err != nil {
		return nil, wrapStorageErr(err, "listing workspaces")
	}
	defer rows.Close()

	var out []*types.Workspace
	for rows.Next() {
		w := &types.Workspace{}
		if err := rows.Scan(&w.ID, &w.Path, &w.Name, &w.CreatedAt, &w.LastActivityAt); err != nil {
			return nil, wrapStorageErr(err, "scanning workspace row")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
