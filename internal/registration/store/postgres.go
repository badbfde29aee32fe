package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"admission/internal/registration/models"
	"admission/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists registrations in PostgreSQL. The three data
// sections, the document map and the tracking block live in JSONB
// columns; the fields the store filters or constrains on (number,
// email, status, version, timestamps) are plain columns.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const registrationColumns = `
	id, registration_number, email, status,
	personal_data, parent_data, academic_data, documents,
	tracking, notifications, version, created_at
`

func (s *Postgres) Create(ctx context.Context, reg *models.Registration) error {
	row, err := toRow(reg)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO registrations (
			id, registration_number, email, status,
			personal_data, parent_data, academic_data, documents,
			tracking, notifications, version, created_at, last_updated
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		row.id, row.number, row.email, row.status,
		row.personal, row.parent, row.academic, row.documents,
		row.tracking, row.notifications, row.createdAt, row.lastUpdated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create registration: %w", err)
	}
	reg.Version = 1
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *Postgres) FindByNumber(ctx context.Context, number string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE registration_number = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, number))
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, emailKey(email)))
}

func (s *Postgres) Update(ctx context.Context, reg *models.Registration) error {
	row, err := toRow(reg)
	if err != nil {
		return err
	}
	query := `
		UPDATE registrations SET
			email = $2, status = $3,
			personal_data = $4, parent_data = $5, academic_data = $6,
			documents = $7, tracking = $8, notifications = $9,
			last_updated = $10, version = version + 1
		WHERE id = $1 AND version = $11
	`
	res, err := s.db.ExecContext(ctx, query,
		row.id, row.email, row.status,
		row.personal, row.parent, row.academic,
		row.documents, row.tracking, row.notifications,
		row.lastUpdated, reg.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, reg.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	reg.Version++
	return nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.Registration, int, error) {
	filter = filter.normalized()

	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(registration_number ILIKE $%d OR personal_data->>'fullName' ILIKE $%d OR email ILIKE $%d)",
			n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations`+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	order := map[string]string{
		SortCreatedAt: "created_at",
		SortFullName:  "personal_data->>'fullName'",
		SortNumber:    "registration_number",
		SortStatus:    "status",
	}[filter.SortBy]
	if order == "" {
		order = "created_at"
	}
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := fmt.Sprintf(
		`SELECT %s FROM registrations%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		registrationColumns, clause, order, direction, len(args)-1, len(args),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs, err := scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM registrations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count registrations by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count registrations by status: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE status = $1 AND last_updated < $2
		ORDER BY last_updated ASC`
	rows, err := s.db.QueryContext(ctx, query, string(models.StatusDraft), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

type registrationRow struct {
	id            uuid.UUID
	number        string
	email         string
	status        string
	personal      []byte
	parent        []byte
	academic      []byte
	documents     []byte
	tracking      []byte
	notifications []byte
	createdAt     time.Time
	lastUpdated   time.Time
}

func toRow(reg *models.Registration) (*registrationRow, error) {
	personal, err := json.Marshal(reg.PersonalData)
	if err != nil {
		return nil, fmt.Errorf("encode personal data: %w", err)
	}
	var parent, academic []byte
	if reg.ParentData != nil {
		if parent, err = json.Marshal(reg.ParentData); err != nil {
			return nil, fmt.Errorf("encode parent data: %w", err)
		}
	}
	if reg.AcademicData != nil {
		if academic, err = json.Marshal(reg.AcademicData); err != nil {
			return nil, fmt.Errorf("encode academic data: %w", err)
		}
	}
	documents, err := json.Marshal(reg.Documents)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	tracking, err := json.Marshal(reg.Tracking)
	if err != nil {
		return nil, fmt.Errorf("encode tracking: %w", err)
	}
	notifications, err := json.Marshal(reg.Notification)
	if err != nil {
		return nil, fmt.Errorf("encode notification state: %w", err)
	}
	return &registrationRow{
		id:            reg.ID,
		number:        reg.Number,
		email:         emailKey(reg.PersonalData.Email),
		status:        string(reg.Status),
		personal:      personal,
		parent:        parent,
		academic:      academic,
		documents:     documents,
		tracking:      tracking,
		notifications: notifications,
		createdAt:     reg.CreatedAt,
		lastUpdated:   reg.Tracking.LastUpdated,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(rs rowScanner) (*models.Registration, error) {
	var (
		reg           models.Registration
		status        string
		personal      []byte
		parent        []byte
		academic      []byte
		documents     []byte
		tracking      []byte
		notifications []byte
		email         string
	)
	err := rs.Scan(
		&reg.ID, &reg.Number, &email, &status,
		&personal, &parent, &academic, &documents,
		&tracking, &notifications, &reg.Version, &reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.Status = models.Status(status)
	if err := json.Unmarshal(personal, &reg.PersonalData); err != nil {
		return nil, fmt.Errorf("decode personal data: %w", err)
	}
	if len(parent) > 0 {
		reg.ParentData = &models.ParentData{}
		if err := json.Unmarshal(parent, reg.ParentData); err != nil {
			return nil, fmt.Errorf("decode parent data: %w", err)
		}
	}
	if len(academic) > 0 {
		reg.AcademicData = &models.AcademicData{}
		if err := json.Unmarshal(academic, reg.AcademicData); err != nil {
			return nil, fmt.Errorf("decode academic data: %w", err)
		}
	}
	reg.Documents = make(map[models.DocumentType]*models.Document)
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &reg.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}
	if err := json.Unmarshal(tracking, &reg.Tracking); err != nil {
		return nil, fmt.Errorf("decode tracking: %w", err)
	}
	if err := json.Unmarshal(notifications, &reg.Notification); err != nil {
		return nil, fmt.Errorf("decode notification state: %w", err)
	}
	return &reg, nil
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Registration, error) {
	reg, err := scanRegistration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func scanAll(rows *sql.Rows) ([]*models.Registration, error) {
	regs := make([]*models.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan registrations: %w", err)
	}
	return regs, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
