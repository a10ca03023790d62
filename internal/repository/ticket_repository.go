package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// TicketRepo is the remote TicketStore backed by the MySQL `tickets`
// table.  The primary key on tickets.id enforces id uniqueness
// server-side.  All timestamps are stored in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle for callers that need to ping it.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `id, full_name, gender, age, phone_number, status, created_at, event_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (model.Ticket, error) {
	var (
		t      model.Ticket
		status string
	)
	err := row.Scan(&t.ID, &t.FullName, &t.Gender, &t.Age, &t.PhoneNumber, &status, &t.CreatedAt, &t.EventID)
	if err != nil {
		return model.Ticket{}, err
	}
	t.Status = model.Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// Create inserts a ticket.  A plain INSERT is used on purpose: an
// existing id surfaces as ErrDuplicateID instead of being overwritten.
func (r *TicketRepo) Create(ctx context.Context, t model.Ticket) error {
	const q = `INSERT INTO tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.FullName, t.Gender, t.Age, t.PhoneNumber, string(t.Status), t.CreatedAt.UTC(), t.EventID)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateID
		}
		return unavailable("create ticket", err)
	}
	return nil
}

// Get fetches a single ticket by id.
func (r *TicketRepo) Get(ctx context.Context, id string) (model.Ticket, error) {
	return r.get(ctx, r.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TicketRepo) get(ctx context.Context, q queryRower, id string) (model.Ticket, error) {
	t, err := scanTicket(q.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? LIMIT 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, ErrTicketNotFound
		}
		return model.Ticket{}, unavailable("get ticket", err)
	}
	return t, nil
}

// ListAll returns every ticket ordered newest first.  Ties on
// created_at are broken by id so the order is stable across calls.
func (r *TicketRepo) ListAll(ctx context.Context) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, unavailable("list tickets", err)
	}
	defer rows.Close()
	tickets := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, unavailable("scan ticket", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list tickets", err)
	}
	return tickets, nil
}

// SetStatus performs the conditional transition from -> to inside one
// transaction.  The UPDATE only matches a row still in `from`, so when
// several devices race on the same id the row lock serialises them and
// exactly one sees an affected row.  The row is read back in the same
// transaction to return the committed state.
func (r *TicketRepo) SetStatus(ctx context.Context, id string, from, to model.Status) (model.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Ticket{}, unavailable("begin set status", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return model.Ticket{}, unavailable("set status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Ticket{}, unavailable("set status", err)
	}

	t, err := r.get(ctx, tx, id)
	if err != nil {
		return model.Ticket{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Ticket{}, unavailable("commit set status", err)
	}
	committed = true

	if affected != 1 {
		return t, ErrStatusMismatch
	}
	return t, nil
}

// Delete removes a ticket by id.
func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete ticket", err)
	}
	if n == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// DeleteMany removes the listed ids in a single statement.
func (r *TicketRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, unavailable("delete tickets", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete tickets", err)
	}
	return n, nil
}

// SettingsRepo stores EventSettings in the single `settings` row keyed
// by settingsRowID.
type SettingsRepo struct {
	db *sql.DB
}

// settingsRowID is the fixed primary key of the settings singleton.
const settingsRowID = 1

// NewSettingsRepo returns a SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// GetSettings returns the stored settings or model.DefaultSettings.
func (r *SettingsRepo) GetSettings(ctx context.Context) (model.EventSettings, error) {
	var (
		s        model.EventSettings
		deadline sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT event_name, event_place, arrival_deadline FROM settings WHERE id = ? LIMIT 1`,
		settingsRowID).Scan(&s.EventName, &s.EventPlace, &deadline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DefaultSettings(), nil
		}
		return model.EventSettings{}, unavailable("get settings", err)
	}
	if deadline.Valid {
		d := deadline.Time.UTC()
		s.ArrivalDeadline = &d
	}
	return s, nil
}

// SaveSettings upserts the singleton row.  Unlike tickets, overwriting
// is the intended behaviour here.
func (r *SettingsRepo) SaveSettings(ctx context.Context, s model.EventSettings) error {
	var deadline any
	if s.ArrivalDeadline != nil {
		deadline = s.ArrivalDeadline.UTC().Format(time.DateTime)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, event_name, event_place, arrival_deadline) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE event_name = VALUES(event_name), event_place = VALUES(event_place),
		 arrival_deadline = VALUES(arrival_deadline)`,
		settingsRowID, s.EventName, s.EventPlace, deadline)
	if err != nil {
		return unavailable("save settings", err)
	}
	return nil
}
