// Package store persists users, API keys, and admin accounts behind a small
// sqlx-backed interface. SQLite is the default engine; MySQL and PostgreSQL
// are supported through the same queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/keymint/keymint/internal/model"
)

// Supported driver names for Open.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Store wraps the database handle. All operations take a context and return
// ErrNotFound / ErrConflict sentinels where applicable; everything else is a
// wrapped driver error.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the given database and runs migrations. An empty driver
// selects SQLite; an empty DSN with SQLite opens an in-memory database,
// which is what the tests use.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	var db *sqlx.DB
	var err error

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:?_journal_mode=WAL"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
			_, err = db.Exec("PRAGMA foreign_keys = ON")
		}
	case DriverMySQL:
		// parseTime is required so DATETIME columns scan into time.Time.
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "parseTime=true"
		}
		db, err = sqlx.Connect("mysql", dsn)
	case DriverPostgres:
		db, err = sqlx.Connect("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insert runs a named INSERT and returns the generated row ID. PostgreSQL
// has no LastInsertId, so the query grows a RETURNING clause there.
func (s *Store) insert(ctx context.Context, query string, arg interface{}) (int64, error) {
	q, args, err := s.db.BindNamed(query, arg)
	if err != nil {
		return 0, fmt.Errorf("bind insert: %w", err)
	}

	if s.driver == DriverPostgres {
		var id int64
		if err := s.db.GetContext(ctx, &id, q+" RETURNING id", args...); err != nil {
			return 0, conflict(err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, conflict(err)
	}
	return res.LastInsertId()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		s.db.Rebind("SELECT * FROM users WHERE id = ?"), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns a user by exact email match.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		s.db.Rebind("SELECT * FROM users WHERE email = ?"), email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// UpsertUserByEmail resolves a user by email. An existing user gets its name
// fields overwritten (last-write-wins); otherwise a new user is inserted.
// The returned user always reflects the given names.
func (s *Store) UpsertUserByEmail(ctx context.Context, firstName, lastName, email string) (*model.User, error) {
	now := time.Now().UTC()

	existing, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		existing.FirstName = firstName
		existing.LastName = lastName
		existing.UpdatedAt = now
		_, err = s.db.ExecContext(ctx,
			s.db.Rebind("UPDATE users SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?"),
			firstName, lastName, now, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	u := &model.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := s.insert(ctx, `INSERT INTO users (first_name, last_name, email, created_at, updated_at)
		VALUES (:first_name, :last_name, :email, :created_at, :updated_at)`, u)
	if err != nil {
		if err == ErrConflict {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return u, nil
}

// SetUserCurrentKey updates the denormalized apikey pointer to the newest
// issued key for the user.
func (s *Store) SetUserCurrentKey(ctx context.Context, userID int64, token string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET apikey = ?, updated_at = ? WHERE id = ?"),
		token, now, userID)
	if err != nil {
		return fmt.Errorf("set user current key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all users with the number of keys ever issued to each,
// newest first.
func (s *Store) ListUsers(ctx context.Context) ([]model.UserWithKeyCount, error) {
	var users []model.UserWithKeyCount
	const q = `SELECT u.*, COUNT(a.id) AS total_apikeys
		FROM users u
		LEFT JOIN apikeys a ON a.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC`
	if err := s.db.SelectContext(ctx, &users, q); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListUserKeys returns all keys owned by a user, newest first.
func (s *Store) ListUserKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := s.db.SelectContext(ctx, &keys,
		s.db.Rebind("SELECT * FROM apikeys WHERE user_id = ? ORDER BY created_at DESC"), userID)
	if err != nil {
		return nil, fmt.Errorf("list user keys: %w", err)
	}
	return keys, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new key row. ID, CreatedAt, and UpdatedAt are
// populated after a successful insert. A duplicate token surfaces as
// ErrConflict rather than being retried.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now

	id, err := s.insert(ctx, `INSERT INTO apikeys
		(user_id, token, start_date, last_date, outofdate, status, created_at, updated_at)
		VALUES
		(:user_id, :token, :start_date, :last_date, :outofdate, :status, :created_at, :updated_at)`, key)
	if err != nil {
		if err == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	key.ID = id
	return nil
}

const keyWithOwnerColumns = `a.id, a.user_id, a.token, a.start_date, a.last_date,
	a.outofdate, a.status, a.created_at, a.updated_at,
	u.first_name, u.last_name, u.email`

// GetAPIKey returns a key by ID joined with its owner (owner fields nil for
// unassociated keys).
func (s *Store) GetAPIKey(ctx context.Context, id int64) (*model.KeyWithOwner, error) {
	var k model.KeyWithOwner
	q := `SELECT ` + keyWithOwnerColumns + `
		FROM apikeys a
		LEFT JOIN users u ON a.user_id = u.id
		WHERE a.id = ?`
	if err := s.db.GetContext(ctx, &k, s.db.Rebind(q), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

// GetAPIKeyByToken resolves a presented key string to its row and owning
// user. Keys without an associated user are treated as unknown, which is why
// this is an inner join.
func (s *Store) GetAPIKeyByToken(ctx context.Context, token string) (*model.KeyWithOwner, error) {
	var k model.KeyWithOwner
	q := `SELECT ` + keyWithOwnerColumns + `
		FROM apikeys a
		INNER JOIN users u ON a.user_id = u.id
		WHERE a.token = ?`
	if err := s.db.GetContext(ctx, &k, s.db.Rebind(q), token); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by token: %w", err)
	}
	return &k, nil
}

// GetUnassociatedKeyByToken resolves a key string regardless of ownership.
// Used by the associate-user flow to find generate-only keys.
func (s *Store) GetUnassociatedKeyByToken(ctx context.Context, token string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.GetContext(ctx, &k,
		s.db.Rebind("SELECT * FROM apikeys WHERE token = ?"), token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get key by token: %w", err)
	}
	return &k, nil
}

// ListAPIKeys returns all keys joined with their owners, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.KeyWithOwner, error) {
	var keys []model.KeyWithOwner
	q := `SELECT ` + keyWithOwnerColumns + `
		FROM apikeys a
		LEFT JOIN users u ON a.user_id = u.id
		ORDER BY a.created_at DESC`
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// UpdateAPIKeyStatus persists a new status for a key. Setting the current
// status again is a no-op success; a missing key is ErrNotFound. The
// existence check runs first because MySQL reports zero affected rows for
// value-preserving updates.
func (s *Store) UpdateAPIKeyStatus(ctx context.Context, id int64, status model.KeyStatus) error {
	var one int
	err := s.db.GetContext(ctx, &one,
		s.db.Rebind("SELECT 1 FROM apikeys WHERE id = ?"), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("check api key: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE apikeys SET status = ?, updated_at = ? WHERE id = ?"),
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update api key status: %w", err)
	}
	return nil
}

// SetAPIKeyUser assigns an owner to a key.
func (s *Store) SetAPIKeyUser(ctx context.Context, keyID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE apikeys SET user_id = ?, updated_at = ? WHERE id = ?"),
		userID, time.Now().UTC(), keyID)
	if err != nil {
		return fmt.Errorf("set api key user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey removes a key row by ID.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM apikeys WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. Password must already be hashed.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	id, err := s.insert(ctx, `INSERT INTO admins (email, password, created_at, updated_at)
		VALUES (:email, :password, :created_at, :updated_at)`, admin)
	if err != nil {
		if err == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	var a model.Admin
	err := s.db.GetContext(ctx, &a,
		s.db.Rebind("SELECT * FROM admins WHERE id = ?"), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	err := s.db.GetContext(ctx, &a,
		s.db.Rebind("SELECT * FROM admins WHERE email = ?"), email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &a, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// UpdateAdmin updates an admin's email and password hash. UpdatedAt is
// refreshed automatically; a duplicate email surfaces as ErrConflict.
func (s *Store) UpdateAdmin(ctx context.Context, admin *model.Admin) error {
	admin.UpdatedAt = time.Now().UTC()

	q, args, err := s.db.BindNamed(`UPDATE admins SET
		email = :email, password = :password, updated_at = :updated_at
		WHERE id = :id`, admin)
	if err != nil {
		return fmt.Errorf("bind admin update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if cerr := conflict(err); cerr == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("update admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAdmin removes an admin account by ID.
func (s *Store) DeleteAdmin(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM admins WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection at startup.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}
