package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserExists is returned by AddUser for a duplicate username.
var ErrUserExists = errors.New("user already exists")

// ErrNoSuchUser is returned when a username is not in the store.
var ErrNoSuchUser = errors.New("no such user")

const usersSchema = `
CREATE TABLE IF NOT EXISTS nntp_users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login TIMESTAMP,
	is_active INTEGER NOT NULL DEFAULT 1
)`

// User is one row of the user store. Password hashes never leave the
// store.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
	LastLogin sql.NullTime
	IsActive  bool
}

// Store keeps NNTP users in a sqlite database with bcrypt password
// hashes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the user database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open user database %s: %w", path, err)
	}
	if _, err := db.Exec(usersSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create nntp_users table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddUser inserts a user with a bcrypt-hashed password.
func (s *Store) AddUser(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO nntp_users (username, password) VALUES (?, ?)`,
		username, string(hashed))
	if err != nil {
		var exists int
		row := s.db.QueryRow(`SELECT COUNT(*) FROM nntp_users WHERE username = ?`, username)
		if scanErr := row.Scan(&exists); scanErr == nil && exists > 0 {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res, err := s.db.Exec(`UPDATE nntp_users SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`,
		string(hashed), username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNoSuchUser
	}
	return err
}

// DeleteUser permanently removes a user.
func (s *Store) DeleteUser(username string) error {
	res, err := s.db.Exec(`DELETE FROM nntp_users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNoSuchUser
	}
	return err
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, username, created_at, last_login, is_active
		FROM nntp_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.LastLogin, &u.IsActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// IsValidUser verifies the password against the stored bcrypt hash for an
// active user. A missing user and a wrong password are both reported as
// (false, nil) so the caller cannot distinguish them.
func (s *Store) IsValidUser(username, password string) (bool, error) {
	var hash string
	var id int64
	row := s.db.QueryRow(`SELECT id, password FROM nntp_users WHERE username = ? AND is_active = 1`, username)
	if err := row.Scan(&id, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return false, nil
	}
	// Login bookkeeping only; a failed update must not fail the login.
	s.db.Exec(`UPDATE nntp_users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return true, nil
}
