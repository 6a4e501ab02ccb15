package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.FolderRepository  = (*Repository)(nil)
	_ repository.MessageRepository = (*Repository)(nil)
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateUser inserts a user. The unique index on username makes the
// duplicate check atomic with the insert.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, first_name, last_name, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Username, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetUserByUsername fetches a user by exact username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, first_name, last_name, email, created_at
		FROM users WHERE username = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, first_name, last_name, email, created_at
		FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SearchUsers returns users whose first and last names contain the given
// fragments, case-insensitively.
func (r *Repository) SearchUsers(ctx context.Context, firstName, lastName string) ([]domain.User, error) {
	const query = `SELECT id, username, password_hash, first_name, last_name, email, created_at
		FROM users
		WHERE first_name ILIKE '%' || $1 || '%' AND last_name ILIKE '%' || $2 || '%'
		ORDER BY username`
	rows, err := r.pool.Query(ctx, query, firstName, lastName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateFolder inserts a folder.
func (r *Repository) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	const query = `INSERT INTO folders (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, folder.ID, folder.UserID, folder.Name, folder.CreatedAt)
	return err
}

// GetFolderByID fetches a folder.
func (r *Repository) GetFolderByID(ctx context.Context, id string) (*domain.Folder, error) {
	const query = `SELECT id, user_id, name, created_at FROM folders WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var f domain.Folder
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// ListFoldersByUser returns the folders owned by a user.
func (r *Repository) ListFoldersByUser(ctx context.Context, userID string) ([]domain.Folder, error) {
	const query = `SELECT id, user_id, name, created_at FROM folders WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var folders []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CreateMessage inserts a message.
func (r *Repository) CreateMessage(ctx context.Context, message *domain.Message) error {
	const query = `INSERT INTO messages (id, folder_id, subject, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, message.ID, message.FolderID, message.Subject, message.Content, message.CreatedAt)
	return err
}

// GetMessageByID fetches a message.
func (r *Repository) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	const query = `SELECT id, folder_id, subject, content, created_at FROM messages WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var m domain.Message
	if err := row.Scan(&m.ID, &m.FolderID, &m.Subject, &m.Content, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListMessagesByFolder returns the messages in a folder, oldest first.
func (r *Repository) ListMessagesByFolder(ctx context.Context, folderID string) ([]domain.Message, error) {
	const query = `SELECT id, folder_id, subject, content, created_at FROM messages WHERE folder_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.FolderID, &m.Subject, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
