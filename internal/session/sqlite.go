package session

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"io/fs"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists encoded states in a SQLite database so sessions
// survive restarts.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

// OpenSQLite opens (or creates) the database at path and applies pending
// schema migrations. A non-positive ttl means DefaultTTL.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := logger.GetGlobalLogger().WithComponent("session_store").WithField("db_path", path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.SessionError(errors.CodeStorageFailure, "", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	err = logger.TimedOperation("migrate session store", log, func() error {
		return migrate(ctx, db, log)
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.SessionError(errors.CodeStorageFailure, "", err).
			WithSuggestion("Check that the session database path is writable")
	}

	log.Info("Session store ready")
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now, logger: log}, nil
}

func migrate(ctx context.Context, db *sql.DB, log logger.Logger) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.WithFields(logger.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration.String(),
		}).Debug("Applied session store migration")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*State, error) {
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&data, &expiresAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.SessionError(errors.CodeSessionNotFound, id, nil)
	}
	if err != nil {
		return nil, errors.SessionError(errors.CodeStorageFailure, id, err)
	}

	if s.now().UnixMilli() >= expiresAt {
		if err := s.Delete(ctx, id); err != nil {
			s.logger.WithError(err).WithField("session_id", id).Warn("Failed to remove expired session")
		}
		return nil, errors.SessionError(errors.CodeSessionExpired, id, nil)
	}
	return Decode(data)
}

func (s *SQLiteStore) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO sessions (id, data, created_at, updated_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at,
		expires_at = excluded.expires_at
	`, st.ID, data, st.CreatedAt.UnixMilli(), now.UnixMilli(), now.Add(s.ttl).UnixMilli())
	if err != nil {
		return errors.SessionError(errors.CodeStorageFailure, st.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.SessionError(errors.CodeStorageFailure, id, err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, errors.SessionError(errors.CodeStorageFailure, "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.SessionError(errors.CodeStorageFailure, "", err)
	}
	if n > 0 {
		s.logger.WithField("removed", n).Info("Purged expired sessions")
	}
	return int(n), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
