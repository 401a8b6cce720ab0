package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// logRetention bounds how many change rows are kept once every watcher has seen them.
const logRetention = 1000

// SQLiteStore keeps items in a local sqlite database shared by every process using
// the same file. Changes are detected by polling the storage_log table.
type SQLiteStore struct {
	db       *sql.DB
	origin   string
	interval time.Duration
	log      zerolog.Logger
	hub      *hub

	pollOnce sync.Once
	pollErr  error
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSQLiteStore(path string, interval time.Duration, log zerolog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &SQLiteStore{
		db:       db,
		origin:   uuid.NewString(),
		interval: interval,
		log:      log.With().Str("component", "sqlite-storage").Logger(),
		hub:      newHub(),
		stop:     make(chan struct{}),
	}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	// m.Close would close db as well; the store owns it.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query item %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", key, err)
		}
		return s.appendLog(ctx, tx, key, false)
	})
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to delete item %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return s.appendLog(ctx, tx, key, true)
	})
}

func (s *SQLiteStore) appendLog(ctx context.Context, tx *sql.Tx, key string, removed bool) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO storage_log (key, origin, removed) VALUES (?, ?, ?)`,
		key, s.origin, removed)
	if err != nil {
		return fmt.Errorf("failed to log change: %w", err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Watch starts the change poller on first use. Only changes logged after that
// point are delivered.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan Change, error) {
	s.pollOnce.Do(func() {
		var lastID int64
		err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM storage_log`).Scan(&lastID)
		if err != nil {
			s.pollErr = fmt.Errorf("failed to read change log: %w", err)
			return
		}
		s.wg.Add(1)
		go s.pollLoop(lastID)
	})
	if s.pollErr != nil {
		return nil, s.pollErr
	}
	return s.hub.subscribe(ctx)
}

func (s *SQLiteStore) pollLoop(lastID int64) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			next, err := s.poll(lastID)
			if err != nil {
				s.log.Warn().Err(err).Msg("storage poll failed")
				continue
			}
			lastID = next
		}
	}
}

func (s *SQLiteStore) poll(lastID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, origin, removed FROM storage_log WHERE id > ? ORDER BY id`, lastID)
	if err != nil {
		return lastID, fmt.Errorf("failed to query change log: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			id      int64
			key     string
			origin  string
			removed bool
		)
		if err := rows.Scan(&id, &key, &origin, &removed); err != nil {
			return lastID, fmt.Errorf("failed to scan change: %w", err)
		}
		lastID = id
		if origin == s.origin {
			continue
		}
		changes = append(changes, Change{Key: key, Removed: removed})
	}
	if err := rows.Err(); err != nil {
		return lastID, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, c := range changes {
		s.hub.publish(c)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM storage_log WHERE id <= ?`, lastID-logRetention); err != nil {
		s.log.Debug().Err(err).Msg("prune change log")
	}
	return lastID, nil
}

func (s *SQLiteStore) Close() error {
	close(s.stop)
	s.wg.Wait()
	s.hub.close()
	return s.db.Close()
}
