// Package sqlite stores invoices in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/storage/sqlite/migrations"
)

// Store implements storage.Store on modernc.org/sqlite.
// Timestamps are stored as UTC unix nanoseconds.
type Store struct {
	db   *sql.DB
	path string
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database at path and migrates it
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "creating data directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(err, "creating schema_migrations table")
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return errors.Wrap(err, "getting current version")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return errors.Wrap(err, "reading migrations directory")
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", name)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return errors.Wrapf(err, "executing migration %s", name)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return errors.Wrapf(err, "recording migration %s", name)
		}
	}

	return nil
}

func (s *Store) Get(ctx context.Context, invoiceID string) (*storage.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT invoice_id, owner_id, xml, valid, created_at, updated_at
		FROM invoices WHERE invoice_id = ?
	`, invoiceID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(model.ErrNotFound, "invoice %s", invoiceID)
		}
		return nil, errors.Wrap(err, "scanning invoice")
	}

	if rec.SharedWith, err = s.shares(ctx, s.db, invoiceID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec *storage.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (invoice_id, owner_id, xml, valid, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(invoice_id) DO NOTHING
		`, rec.InvoiceID, rec.OwnerID, rec.XML, validOrDefault(rec.Valid), toNanos(created), toNanos(updated))
		if err != nil {
			return errors.Wrap(err, "inserting invoice")
		}

		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "inserting invoice")
		} else if n == 0 {
			return errors.Wrapf(model.ErrAlreadyExists, "invoice %s", rec.InvoiceID)
		}

		return replaceShares(ctx, tx, rec.InvoiceID, rec.SharedWith)
	})
}

func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE invoices SET owner_id = ?, xml = ?, valid = ?, updated_at = ?
			WHERE invoice_id = ?
		`, rec.OwnerID, rec.XML, validOrDefault(rec.Valid), toNanos(updated), rec.InvoiceID)
		if err != nil {
			return errors.Wrap(err, "updating invoice")
		}
		if err := requireRow(res, rec.InvoiceID); err != nil {
			return err
		}

		return replaceShares(ctx, tx, rec.InvoiceID, rec.SharedWith)
	})
}

func (s *Store) Delete(ctx context.Context, invoiceID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_shares WHERE invoice_id = ?", invoiceID); err != nil {
			return errors.Wrap(err, "deleting shares")
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE invoice_id = ?", invoiceID)
		if err != nil {
			return errors.Wrap(err, "deleting invoice")
		}
		return requireRow(res, invoiceID)
	})
}

func (s *Store) List(ctx context.Context, ownerID string, filter storage.Filter) ([]*storage.Record, error) {
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.invoice_id, i.owner_id, i.xml, i.valid, i.created_at, i.updated_at
		FROM invoices i
		WHERE (i.owner_id = ?1 OR (?2 AND EXISTS (
				SELECT 1 FROM invoice_shares s WHERE s.invoice_id = i.invoice_id AND s.user_id = ?1)))
		  AND (?3 = '' OR i.valid = ?3)
		ORDER BY i.created_at DESC, i.invoice_id
		LIMIT ?4 OFFSET ?5
	`, ownerID, filter.IncludeShared, string(filter.Valid), limit, filter.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing invoices")
	}
	defer rows.Close()

	out := []*storage.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning invoice")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing invoices")
	}

	for _, rec := range out {
		if rec.SharedWith, err = s.shares(ctx, s.db, rec.InvoiceID); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *Store) SetValid(ctx context.Context, invoiceID string, status model.ValidStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE invoices SET valid = ? WHERE invoice_id = ?", string(status), invoiceID)
	if err != nil {
		return errors.Wrap(err, "updating valid flag")
	}
	return requireRow(res, invoiceID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) shares(ctx context.Context, q querier, invoiceID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id FROM invoice_shares WHERE invoice_id = ? ORDER BY user_id", invoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "loading shares")
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errors.Wrap(err, "scanning share")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

func replaceShares(ctx context.Context, tx *sql.Tx, invoiceID string, users []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_shares WHERE invoice_id = ?", invoiceID); err != nil {
		return errors.Wrap(err, "clearing shares")
	}
	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO invoice_shares (invoice_id, user_id) VALUES (?, ?)", invoiceID, u); err != nil {
			return errors.Wrap(err, "inserting share")
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.Record, error) {
	var rec storage.Record
	var valid string
	var created, updated int64

	if err := row.Scan(&rec.InvoiceID, &rec.OwnerID, &rec.XML, &valid, &created, &updated); err != nil {
		return nil, err
	}

	rec.Valid = model.ValidStatus(valid)
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	return &rec, nil
}

func requireRow(res sql.Result, invoiceID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		return errors.Wrapf(model.ErrNotFound, "invoice %s", invoiceID)
	}
	return nil
}

func validOrDefault(v model.ValidStatus) string {
	if v == "" {
		return string(model.ValidStatusUnvalidated)
	}
	return string(v)
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
