package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
)

func localTicket(id string, at time.Time) model.Ticket {
	return model.Ticket{
		ID: id, FullName: "Guest " + id, Gender: "other", Age: 25,
		PhoneNumber: "+1 555 0100", Status: model.StatusBooked, CreatedAt: at, EventID: model.DefaultEventID,
	}
}

func TestLocalStore_CreateGetList(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)

	list, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Create(ctx, localTicket("T-OLD", created)))
	require.NoError(t, s.Create(ctx, localTicket("T-NEW", created.Add(time.Minute))))
	assert.ErrorIs(t, s.Create(ctx, localTicket("T-OLD", created.Add(time.Hour))), ErrDuplicateID)

	got, err := s.Get(ctx, "T-OLD")
	require.NoError(t, err)
	assert.Equal(t, "Guest T-OLD", got.FullName)
	assert.True(t, created.Equal(got.CreatedAt), "duplicate create must not overwrite")

	_, err = s.Get(ctx, "T-NONE")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	list, err = s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "T-NEW", list[0].ID)
	assert.Equal(t, "T-OLD", list[1].ID)
}

func TestLocalStore_ListAllBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"T-B", "T-C", "T-A"} {
		require.NoError(t, s.Create(ctx, localTicket(id, created)))
	}
	require.NoError(t, s.Create(ctx, localTicket("T-0", created.Add(-time.Second))))

	list, err := s.ListAll(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(list))
	for _, tk := range list {
		got = append(got, tk.ID)
	}
	assert.Equal(t, []string{"T-C", "T-B", "T-A", "T-0"}, got)
}

func TestLocalStore_SetStatus(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, localTicket("T-A", created)))

	got, err := s.SetStatus(ctx, "T-A", model.StatusBooked, model.StatusArrived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)

	got, err = s.SetStatus(ctx, "T-A", model.StatusBooked, model.StatusArrived)
	assert.ErrorIs(t, err, ErrStatusMismatch)
	assert.Equal(t, model.StatusArrived, got.Status)

	_, err = s.SetStatus(ctx, "T-X", model.StatusBooked, model.StatusArrived)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestLocalStore_DeleteAndDeleteMany(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	for i, id := range []string{"T-A", "T-B", "T-C", "T-D"} {
		require.NoError(t, s.Create(ctx, localTicket(id, created.Add(time.Duration(i)*time.Minute))))
	}

	require.NoError(t, s.Delete(ctx, "T-A"))
	assert.ErrorIs(t, s.Delete(ctx, "T-A"), ErrTicketNotFound)

	n, err := s.DeleteMany(ctx, []string{"T-B", "T-C", "T-X"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteMany(ctx, []string{"T-X"})
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T-D", list[0].ID)
}

func TestLocalStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenLocalStore(dir)
	require.NoError(t, err)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), settings)

	require.NoError(t, s.Create(ctx, localTicket("T-A", created)))
	_, err = s.SetStatus(ctx, "T-A", model.StatusBooked, model.StatusArrived)
	require.NoError(t, err)
	require.NoError(t, s.SaveSettings(ctx, model.DefaultSettings().Merge(model.EventSettings{EventName: "Gala"})))

	reopened, err := OpenLocalStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "T-A")
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)

	settings, err = reopened.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Gala", settings.EventName)
	assert.Equal(t, "Event Venue", settings.EventPlace)

	_, err = os.Stat(filepath.Join(dir, TicketsKey+".json"))
	assert.NoError(t, err)
}

func TestLocalStore_CorruptDocumentIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TicketsKey+".json"), []byte("{not json"), 0o644))
	_, err := OpenLocalStore(dir)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
