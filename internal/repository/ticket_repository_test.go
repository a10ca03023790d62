package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
)

var created = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, m.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, m
}

func ticketRow(id string, status model.Status) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "gender", "age", "phone_number", "status", "created_at", "event_id"}).
		AddRow(id, "Asha Rao", "female", 31, "+91 98450 00000", string(status), created, "default")
}

func TestTicketRepo_Create(t *testing.T) {
	db, m := newMock(t)
	repo := NewTicketRepo(db)
	tk := model.Ticket{ID: "T-A", FullName: "Asha Rao", Gender: "female", Age: 31,
		PhoneNumber: "+91 98450 00000", Status: model.StatusBooked, CreatedAt: created, EventID: "default"}

	m.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("T-A", "Asha Rao", "female", 31, "+91 98450 00000", "booked", created, "default").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), tk))

	m.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'T-A' for key 'PRIMARY'"})
	assert.ErrorIs(t, repo.Create(context.Background(), tk), ErrDuplicateID)

	m.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).WillReturnError(errors.New("connection refused"))
	err := repo.Create(context.Background(), tk)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrDuplicateID)
}

func TestTicketRepo_Get(t *testing.T) {
	db, m := newMock(t)
	repo := NewTicketRepo(db)

	m.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("T-A").
		WillReturnRows(ticketRow("T-A", model.StatusBooked))
	got, err := repo.Get(context.Background(), "T-A")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.FullName)
	assert.Equal(t, model.StatusBooked, got.Status)
	assert.Equal(t, created, got.CreatedAt)

	m.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("T-X").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "T-X")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketRepo_ListAllNewestFirst(t *testing.T) {
	db, m := newMock(t)
	rows := ticketRow("T-B", model.StatusArrived).
		AddRow("T-A", "Ravi K", "male", 40, "+91 1", "booked", created.Add(-time.Hour), "default")
	m.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).WillReturnRows(rows)

	list, err := NewTicketRepo(db).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "T-B", list[0].ID)
	assert.Equal(t, "T-A", list[1].ID)
}

func TestTicketRepo_SetStatusGranted(t *testing.T) {
	db, m := newMock(t)
	m.ExpectBegin()
	m.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = ? WHERE id = ? AND status = ?")).
		WithArgs("arrived", "T-A", "booked").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("T-A").
		WillReturnRows(ticketRow("T-A", model.StatusArrived))
	m.ExpectCommit()

	got, err := NewTicketRepo(db).SetStatus(context.Background(), "T-A", model.StatusBooked, model.StatusArrived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)
}

func TestTicketRepo_SetStatusMismatchReturnsCurrent(t *testing.T) {
	db, m := newMock(t)
	m.ExpectBegin()
	m.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status")).
		WithArgs("arrived", "T-A", "booked").WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("T-A").
		WillReturnRows(ticketRow("T-A", model.StatusArrived))
	m.ExpectCommit()

	got, err := NewTicketRepo(db).SetStatus(context.Background(), "T-A", model.StatusBooked, model.StatusArrived)
	assert.ErrorIs(t, err, ErrStatusMismatch)
	assert.Equal(t, "T-A", got.ID)
	assert.Equal(t, model.StatusArrived, got.Status)
}

func TestTicketRepo_SetStatusNotFoundRollsBack(t *testing.T) {
	db, m := newMock(t)
	m.ExpectBegin()
	m.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).WithArgs("T-X").WillReturnError(sql.ErrNoRows)
	m.ExpectRollback()

	_, err := NewTicketRepo(db).SetStatus(context.Background(), "T-X", model.StatusBooked, model.StatusArrived)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketRepo_SetStatusUnavailable(t *testing.T) {
	db, m := newMock(t)
	m.ExpectBegin().WillReturnError(errors.New("bad connection"))

	_, err := NewTicketRepo(db).SetStatus(context.Background(), "T-A", model.StatusBooked, model.StatusArrived)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestTicketRepo_Delete(t *testing.T) {
	db, m := newMock(t)
	repo := NewTicketRepo(db)

	m.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).WithArgs("T-A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "T-A"))

	m.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).WithArgs("T-A").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "T-A"), ErrTicketNotFound)
}

func TestTicketRepo_DeleteMany(t *testing.T) {
	db, m := newMock(t)
	repo := NewTicketRepo(db)

	n, err := repo.DeleteMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	m.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id IN (?,?,?)")).
		WithArgs("T-A", "T-B", "T-X").WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.DeleteMany(context.Background(), []string{"T-A", "T-B", "T-X"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSettingsRepo(t *testing.T) {
	db, m := newMock(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	m.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE id = ?")).WithArgs(1).WillReturnError(sql.ErrNoRows)
	s, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), s)

	deadline := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)
	m.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).
		WithArgs(1, "Gala", "Hall A", "2026-03-01 19:30:00").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveSettings(ctx, model.EventSettings{EventName: "Gala", EventPlace: "Hall A", ArrivalDeadline: &deadline}))

	m.ExpectQuery(regexp.QuoteMeta("FROM settings WHERE id = ?")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"event_name", "event_place", "arrival_deadline"}).
			AddRow("Gala", "Hall A", deadline))
	s, err = repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Gala", s.EventName)
	require.NotNil(t, s.ArrivalDeadline)
	assert.True(t, deadline.Equal(*s.ArrivalDeadline))
}
