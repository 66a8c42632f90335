package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/userservice/internal/apperror"
)

// mysqlErrDuplicateEntry is MariaDB's ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

// ErrDuplicateEmail is returned by Save when the unique email index rejects
// the write. The service checks ExistsByEmail first; this catches the race
// between two concurrent registrations.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository defines the data access contract for accounts.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	// FindByEmail returns apperror.NotFound if no account has this exact email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// FindByID returns apperror.NotFound if no account has this ID.
	FindByID(ctx context.Context, id int64) (*User, error)

	// FindAllActive returns active accounts ordered by ID.
	FindAllActive(ctx context.Context) ([]User, error)

	// Save inserts the user when ID is zero, setting ID and CreatedAt, and
	// updates the mutable columns otherwise.
	Save(ctx context.Context, user *User) error

	// Delete removes the account. Deleting a missing account is NotFound.
	Delete(ctx context.Context, id int64) error
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, username, password_hash, role, active, created_at`

// FindByEmail retrieves an account by email. The column uses a binary
// collation, so the match is case-sensitive.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

// ExistsByEmail reports whether any account, active or not, has this email.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

// FindByID retrieves an account by ID.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

// FindAllActive lists active accounts.
func (r *userRepository) FindAllActive(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = TRUE ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// Save inserts or updates an account.
func (r *userRepository) Save(ctx context.Context, user *User) error {
	if user.ID == 0 {
		return r.insert(ctx, user)
	}

	query := `UPDATE users
	          SET email = ?, username = ?, password_hash = ?, role = ?, active = ?
	          WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, string(user.Role), user.Active, user.ID,
	)
	if isDuplicateEntry(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

func (r *userRepository) insert(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (email, username, password_hash, role, active, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, string(user.Role), user.Active, user.CreatedAt,
	)
	if isDuplicateEntry(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user id: %w", err)
	}
	user.ID = id
	return nil
}

// Delete hard-deletes an account.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var role string
	if err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.Active, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return u, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}
