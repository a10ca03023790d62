package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-checkin/internal/utils"
)

// Staff roles.  Organizers manage tickets and settings; door staff only
// scan.
const (
	RoleOrganizer = "ORGANIZER"
	RoleDoor      = "DOOR"
)

// Staff mirrors the 'users' table.
type Staff struct {
	ID           uint64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// ErrStaffNotFound is returned when no account matches.
var ErrStaffNotFound = errors.New("staff not found")

type StaffRepo struct{ db *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{db: db} }

// Create hashes the password and inserts the account, returning its ID.
func (r *StaffRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if isDuplicateEntry(err) {
			return 0, ErrEmailExists
		}
		return 0, unavailable("create staff", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("create staff", err)
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (Staff, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at FROM users WHERE id=? LIMIT 1", id))
}

func (r *StaffRepo) scanOne(row *sql.Row) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Staff{}, ErrStaffNotFound
		}
		return Staff{}, unavailable("get staff", err)
	}
	return s, nil
}
