package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"admission/internal/admin/models"
	"admission/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists admin accounts in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed admin store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const adminColumns = `
	id, username, email, password_hash, full_name, role,
	permissions, is_active, last_login, profile_pic, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (
			id, username, email, password_hash, full_name, role,
			permissions, is_active, last_login, profile_pic, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		admin.ID, admin.Username, models.NormalizeEmail(admin.Email),
		admin.PasswordHash, admin.FullName, string(admin.Role),
		pq.Array(permissionStrings(admin.Permissions)), admin.IsActive,
		nullTime(admin.LastLogin), admin.ProfilePic, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
	return scanAdmin(s.db.QueryRowContext(ctx, query, id))
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE LOWER(username) = LOWER($1)`
	return scanAdmin(s.db.QueryRowContext(ctx, query, username))
}

func (s *Postgres) Update(ctx context.Context, admin *models.Admin) error {
	query := `
		UPDATE admins SET
			password_hash = $2, full_name = $3, role = $4, permissions = $5,
			is_active = $6, last_login = $7, profile_pic = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		admin.ID, admin.PasswordHash, admin.FullName, string(admin.Role),
		pq.Array(permissionStrings(admin.Permissions)), admin.IsActive,
		nullTime(admin.LastLogin), admin.ProfilePic, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []*models.Admin
	for rows.Next() {
		admin, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdminRow(rs rowScanner) (*models.Admin, error) {
	var (
		admin     models.Admin
		role      string
		perms     pq.StringArray
		lastLogin sql.NullTime
	)
	err := rs.Scan(
		&admin.ID, &admin.Username, &admin.Email, &admin.PasswordHash,
		&admin.FullName, &role, &perms, &admin.IsActive,
		&lastLogin, &admin.ProfilePic, &admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	admin.Role = models.Role(role)
	for _, p := range perms {
		if perm, ok := models.ParsePermission(p); ok {
			admin.Permissions = append(admin.Permissions, perm)
		}
	}
	if lastLogin.Valid {
		admin.LastLogin = &lastLogin.Time
	}
	return &admin, nil
}

func scanAdmin(row *sql.Row) (*models.Admin, error) {
	admin, err := scanAdminRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return admin, nil
}

func permissionStrings(perms []models.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
