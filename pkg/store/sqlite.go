package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/astromechza/record-editor/pkg/records"
)

// SQLiteStore keeps one automerge document per selector. Every save commits a change to the document and stores the
// whole document as a new snapshot row; the stores table points each selector at its latest snapshot.
type SQLiteStore struct {
	database *sql.DB
	actor    string
	cache    *sync.Map
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string, actor string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteStore{database: db, actor: hex.EncodeToString([]byte(actor)), cache: new(sync.Map)}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	if _, err := s.database.Exec(
		`CREATE TABLE IF NOT EXISTS snapshots (
		id text not null primary key,
		store_id text not null,
		content text not null,
		created_at integer not null
		)`,
	); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	if _, err := s.database.Exec(
		`CREATE TABLE IF NOT EXISTS stores (
		id text not null primary key,
		snapshot_id text not null references snapshots(id)
		)`,
	); err != nil {
		return fmt.Errorf("failed to create stores table: %w", err)
	}
	slog.Debug("ensured tables exist")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.database.Close()
}

func (s *SQLiteStore) loadDoc(ctx context.Context, q queryRower, selector string) (*automerge.Doc, error) {
	var rawContent string
	if err := q.QueryRowContext(
		ctx,
		`SELECT content FROM snapshots sn INNER JOIN stores st ON sn.id = st.snapshot_id WHERE st.id = ?`,
		selector,
	).Scan(&rawContent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "query", Selector: selector, Err: err}
	}
	decoded, err := base64.StdEncoding.DecodeString(rawContent)
	if err != nil {
		return nil, &IOError{Op: "decode", Selector: selector, Err: err}
	}
	doc, err := automerge.Load(decoded)
	if err != nil {
		return nil, &IOError{Op: "load doc", Selector: selector, Err: err}
	}
	return doc, nil
}

func (s *SQLiteStore) doc(ctx context.Context, selector string) (*automerge.Doc, error) {
	if raw, ok := s.cache.Load(selector); ok {
		return raw.(*automerge.Doc), nil
	}
	doc, err := s.loadDoc(ctx, s.database, selector)
	if err != nil {
		return nil, err
	}
	s.cache.Store(selector, doc)
	return doc, nil
}

func (s *SQLiteStore) Load(ctx context.Context, selector string) (records.Collection, error) {
	doc, err := s.doc(ctx, selector)
	if err != nil {
		return nil, err
	}
	c, err := ReadRecords(doc)
	if err != nil {
		return nil, &IOError{Op: "read", Selector: selector, Err: err}
	}
	return c, nil
}

func (s *SQLiteStore) History(ctx context.Context, selector string) ([]Revision, error) {
	doc, err := s.doc(ctx, selector)
	if err != nil {
		return nil, err
	}
	revs, err := Revisions(doc)
	if err != nil {
		return nil, &IOError{Op: "read history", Selector: selector, Err: err}
	}
	return revs, nil
}

// Doc returns a fork of the stored document for the selector.
func (s *SQLiteStore) Doc(ctx context.Context, selector string) (*automerge.Doc, error) {
	doc, err := s.doc(ctx, selector)
	if err != nil {
		return nil, err
	}
	fork, err := doc.Fork()
	if err != nil {
		return nil, &IOError{Op: "fork", Selector: selector, Err: err}
	}
	return fork, nil
}

func (s *SQLiteStore) Save(ctx context.Context, selector string, c records.Collection) (records.Collection, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save: %w", err)
	}

	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, &IOError{Op: "start tx", Selector: selector, Err: err}
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback", "selector", selector, "err", err)
		}
	}()

	// work on a fork so a failed save leaves the cached document untouched
	doc, err := s.loadDoc(ctx, tx, selector)
	if errors.Is(err, ErrNotFound) {
		doc = automerge.New()
	} else if err != nil {
		return nil, err
	} else if doc, err = doc.Fork(); err != nil {
		return nil, &IOError{Op: "fork", Selector: selector, Err: err}
	}
	if err := doc.SetActorID(s.actor); err != nil {
		return nil, &IOError{Op: "set actor", Selector: selector, Err: err}
	}
	if err := WriteRecords(doc, c); err != nil {
		return nil, &IOError{Op: "write", Selector: selector, Err: err}
	}
	if _, err := doc.Commit(fmt.Sprintf("save %d records", len(c)), automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return nil, &IOError{Op: "commit doc", Selector: selector, Err: err}
	}

	snapshotId := ulid.Make().String()
	content := base64.StdEncoding.EncodeToString(doc.Save())
	if _, err := tx.ExecContext(
		ctx, `INSERT INTO snapshots(id, store_id, content, created_at) VALUES (?, ?, ?, ?)`,
		snapshotId, selector, content, time.Now().UnixNano(),
	); err != nil {
		return nil, &IOError{Op: "insert snapshot", Selector: selector, Err: err}
	}
	if res, err := tx.ExecContext(
		ctx, `INSERT INTO stores(id, snapshot_id) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET snapshot_id = excluded.snapshot_id`,
		selector, snapshotId,
	); err != nil {
		return nil, &IOError{Op: "update store", Selector: selector, Err: err}
	} else if r, err := res.RowsAffected(); err != nil {
		return nil, &IOError{Op: "count rows of store update", Selector: selector, Err: err}
	} else if r == 0 {
		return nil, &IOError{Op: "update store", Selector: selector, Err: errors.New("no rows updated")}
	}
	if err := tx.Commit(); err != nil {
		return nil, &IOError{Op: "commit", Selector: selector, Err: err}
	}
	s.cache.Store(selector, doc)
	slog.Info("saved", "selector", selector, "snapshot", snapshotId, "records", len(c), "heads", doc.Heads())

	saved, err := ReadRecords(doc)
	if err != nil {
		return nil, &IOError{Op: "read back", Selector: selector, Err: err}
	}
	return saved, nil
}

// Prune deletes snapshots that are no longer the latest of any selector and are older than the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.database.ExecContext(
		ctx,
		`DELETE FROM snapshots WHERE created_at < ? AND id NOT IN (SELECT snapshot_id FROM stores)`,
		time.Now().Add(-olderThan).UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return n, nil
}
