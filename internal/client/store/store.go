package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/offlinekit/internal/client/migrations"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/deadletters"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/operations"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/users"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
	"github.com/dmitrijs2005/offlinekit/internal/filex"
	"github.com/dmitrijs2005/offlinekit/internal/logging"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Useful in tests.
const MemoryPath = ":memory:"

var pragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// Store owns the SQLite handle and the five collection repositories. The
// repositories are usable only between Initialize and Close.
type Store struct {
	path string
	log  logging.Logger

	mu      sync.RWMutex
	db      *sql.DB
	version int64

	users        *users.SQLiteRepository
	operations   *operations.SQLiteRepository
	securityLogs *securitylogs.SQLiteRepository
	deadLetters  *deadletters.SQLiteRepository
	metadata     *metadata.SQLiteRepository
}

// New returns an unopened store backed by the database file at path.
func New(path string, log logging.Logger) *Store {
	s := &Store{path: path, log: logging.OrNop(log).With("component", "store")}
	s.users = users.NewSQLiteRepository(s)
	s.operations = operations.NewSQLiteRepository(s)
	s.securityLogs = securitylogs.NewSQLiteRepository(s)
	s.deadLetters = deadletters.NewSQLiteRepository(s)
	s.metadata = metadata.NewSQLiteRepository(s)
	return s
}

// Open is New followed by Initialize.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	s := New(path, log)
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize opens the database and applies pending migrations. Calling it
// on an initialized store is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	dsn, err := s.dsn()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return s.classify("open", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: a
	// single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return s.classify("ping", err)
	}

	version, err := migrations.Apply(ctx, db)
	if err != nil {
		_ = db.Close()
		return s.classify("migrate", err)
	}

	s.db = db
	s.version = version
	s.log.Info(ctx, "local store ready", "path", s.path, "schema_version", version)
	return nil
}

func (s *Store) dsn() (string, error) {
	if s.path == MemoryPath || s.path == "" {
		return MemoryPath, nil
	}
	if strings.HasPrefix(s.path, "file:") {
		return s.path, nil
	}
	if _, err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		return "", err
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + s.path + "?" + q.Encode(), nil
}

func (s *Store) classify(stage string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%w: %s %s: %v", ErrStorageUnavailable, stage, s.path, err)
	}
	return fmt.Errorf("%s %s: %w", stage, s.path, err)
}

// DB implements dbx.Source.
func (s *Store) DB() (dbx.DBTX, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *Store) sqlDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// SchemaVersion is the migration version applied by Initialize, 0 before.
func (s *Store) SchemaVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Close releases the database. The store may be initialized again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.version = 0
	return err
}

// Users is the cached-user collection; the other accessors follow suit.
func (s *Store) Users() users.Repository               { return s.users }
func (s *Store) Operations() operations.Repository     { return s.operations }
func (s *Store) SecurityLogs() securitylogs.Repository { return s.securityLogs }
func (s *Store) DeadLetters() deadletters.Repository   { return s.deadLetters }
func (s *Store) Metadata() metadata.Repository         { return s.metadata }
