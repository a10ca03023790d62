package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStaffRepo_CreateNormalizesEmail(t *testing.T) {
	db, m := newMock(t)
	m.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role) VALUES (?,?,?)")).
		WithArgs("door@example.com", sqlmock.AnyArg(), RoleDoor).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := NewStaffRepo(db).Create(context.Background(), "  Door@Example.com ", "s3cret-pass", RoleDoor, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestStaffRepo_CreateDuplicate(t *testing.T) {
	db, m := newMock(t)
	m.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewStaffRepo(db).Create(context.Background(), "door@example.com", "s3cret-pass", RoleDoor, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestStaffRepo_Get(t *testing.T) {
	db, m := newMock(t)
	repo := NewStaffRepo(db)
	cols := []string{"id", "email", "password_hash", "role", "is_active", "created_at"}

	m.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("org@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "org@example.com", "hash", RoleOrganizer, true, created))
	s, err := repo.GetByEmail(context.Background(), "ORG@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleOrganizer, s.Role)
	assert.True(t, s.IsActive)

	m.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrStaffNotFound)
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	db, m := newMock(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	q := regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")

	m.ExpectQuery(q).WithArgs("live").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(time.Hour), nil))
	id, err := repo.ValidateRefresh(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)

	m.ExpectQuery(q).WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(-time.Minute), nil))
	_, err = repo.ValidateRefresh(ctx, "expired", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	m.ExpectQuery(q).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, now.Add(time.Hour), now.Add(-time.Minute)))
	_, err = repo.ValidateRefresh(ctx, "revoked", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	m.ExpectQuery(q).WithArgs("unknown").WillReturnError(sql.ErrNoRows)
	_, err = repo.ValidateRefresh(ctx, "unknown", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRepo_StoreAndRevoke(t *testing.T) {
	db, m := newMock(t)
	repo := NewTokenRepo(db)
	exp := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	m.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).WithArgs(uint64(3), "h", exp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.StoreRefresh(context.Background(), 3, "h", exp))

	m.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at")).WithArgs("h").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeByHash(context.Background(), "h"))
}
