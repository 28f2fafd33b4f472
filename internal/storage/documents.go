package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rowriver/internal/domain"
)

// DocumentStore implements domain.DocumentStore using SQLite.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

// ── Document CRUD ──────────────────────────────────────────

func (s *DocumentStore) CreateDocument(ctx context.Context, d *domain.Document) error {
	now := time.Now()
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (collection, id) DO NOTHING`,
		d.Collection, d.ID, d.Body, now, now,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrDocumentExists, d.Collection, d.ID)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

func (s *DocumentStore) UpsertDocument(ctx context.Context, d *domain.Document) error {
	now := time.Now()
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		d.Collection, d.ID, d.Body, now, now,
	)
	if err != nil {
		return err
	}
	d.UpdatedAt = now
	return nil
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return err
}

func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (*domain.Document, error) {
	d := &domain.Document{}
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT collection, id, body, created_at, updated_at
		 FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&d.Collection, &d.ID, &d.Body, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	return d, err
}

// ListDocuments returns documents ordered by id. A limit <= 0 returns all of them.
func (s *DocumentStore) ListDocuments(ctx context.Context, collection string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT collection, id, body, created_at, updated_at
		 FROM documents WHERE collection = ? ORDER BY id ASC LIMIT ?`,
		collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.Collection, &d.ID, &d.Body, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ListCollections returns the distinct collection names that hold documents.
func (s *DocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
