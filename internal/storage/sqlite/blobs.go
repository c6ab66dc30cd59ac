package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/untoldecay/eventgraph/internal/ids"
	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// PutBlob stores content, deduplicating on its sha-256 hash: a second
// put of identical bytes bumps the existing row's ref_count instead of
// storing the bytes again.
func (s *Store) PutBlob(ctx context.Context, content []byte, mimeType string) (*types.Blob, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	var blob *types.Blob
	err := s.withImmediateTx(ctx, func(db *sql.DB) error {
		existing, err := getBlobByHash(ctx, db, hash)
		if err != nil && !storeerr.Is(err, storeerr.NotFound) {
			return err
		}
		if existing != nil {
			if _, err := db.ExecContext(ctx, `UPDATE blobs SET ref_count = ref_count + 1 WHERE id = ?`, existing.ID); err != nil {
				return wrapStorageErr(err, "incrementing ref count for blob %s", existing.ID)
			}
			existing.RefCount++
			blob = existing
			return nil
		}

		b := &types.Blob{
			ID:             ids.New(ids.Blob),
			ContentHash:    hash,
			Content:        content,
			MimeType:       mimeType,
			SizeOriginal:   len(content),
			SizeCompressed: len(content),
			Compression:    "none",
			RefCount:       1,
			CreatedAt:      s.Now(),
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO blobs (id, content_hash, content, mime_type, size_original, size_compressed, compression, ref_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.ContentHash, b.Content, b.MimeType, b.SizeOriginal, b.SizeCompressed, b.Compression, b.RefCount, b.CreatedAt)
		if err != nil {
			return wrapStorageErr(err, "storing blob")
		}
		blob = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func getBlobByHash(ctx context.Context, db *sql.DB, hash string) (*types.Blob, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, content_hash, content, mime_type, size_original, size_compressed, compression, ref_count, created_at
		FROM blobs WHERE content_hash = ?`, hash)
	return scanBlob(row)
}

func scanBlob(row interface{ Scan(...any) error }) (*types.Blob, error) {
	var b types.Blob
	err := row.Scan(&b.ID, &b.ContentHash, &b.Content, &b.MimeType, &b.SizeOriginal, &b.SizeCompressed, &b.Compression, &b.RefCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeerr.New(storeerr.NotFound, "blob not found")
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading blob")
	}
	return &b, nil
}

// GetBlob loads a blob's content by id.
func (s *Store) GetBlob(ctx context.Context, id string) (*types.Blob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, content, mime_type, size_original, size_compressed, compression, ref_count, created_at
		FROM blobs WHERE id = ?`, id)
	b, err := scanBlob(row)
	if err != nil {
		if storeerr.Is(err, storeerr.NotFound) {
			return nil, storeerr.New(storeerr.NotFound, "blob %s not found", id)
		}
		return nil, err
	}
	return b, nil
}

// ReleaseBlob decrements a blob's ref count, floored at zero. A
// ref_count of zero makes the row eligible for garbage collection but
// does not remove it: spec.md §4.1 leaves purging a ref_count=0 row
// out of the core's contract, so this never deletes.
func (s *Store) ReleaseBlob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE blobs SET ref_count = ref_count - 1 WHERE id = ? AND ref_count > 0`, id)
		if err != nil {
			return wrapStorageErr(err, "releasing blob %s", id)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		// ref_count was already zero (a no-op release) rather than
		// missing; distinguish the two by existence.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs WHERE id = ?`, id).Scan(&exists); err != nil {
			return wrapStorageErr(err, "checking blob %s", id)
		}
		if exists == 0 {
			return storeerr.New(storeerr.NotFound, "blob %s not found", id)
		}
		return nil
	})
}
