package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (f *recordingFeed) Publish(_ context.Context, ev model.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SetStatus(ctx context.Context, id string, from, to model.Status) (model.Ticket, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func newLocalStore(t *testing.T) *repository.LocalStore {
	t.Helper()
	s, err := repository.OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s *repository.LocalStore, id string) model.Ticket {
	t.Helper()
	tk := model.Ticket{
		ID:          id,
		FullName:    "Asha Rao",
		Gender:      "female",
		Age:         31,
		PhoneNumber: "+91 98450 00000",
		Status:      model.StatusBooked,
		CreatedAt:   time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		EventID:     model.DefaultEventID,
	}
	require.NoError(t, s.Create(context.Background(), tk))
	return tk
}

func TestCheckIn_GrantedThenAlreadyArrived(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	seed(t, store, "T-AAAAAAAAA")
	feed := &recordingFeed{}
	m := New(store, feed, nil)

	first, err := m.CheckIn(ctx, "T-AAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeGranted, first.Kind)
	require.NotNil(t, first.Ticket)
	assert.Equal(t, model.StatusArrived, first.Ticket.Status)
	assert.Equal(t, "Welcome, Asha Rao!", first.Message())
	assert.Equal(t, "success", first.Tone())

	for i := 0; i < 3; i++ {
		again, err := m.CheckIn(ctx, "T-AAAAAAAAA")
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeAlreadyArrived, again.Kind)
		assert.Equal(t, "Already Used: Asha Rao", again.Message())
		assert.Equal(t, "error", again.Tone())
	}

	assert.Equal(t, 1, feed.count(), "only the granted transition is published")
	stored, err := store.Get(ctx, "T-AAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, stored.Status)
}

func TestCheckIn_NotFoundDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	seed(t, store, "T-BBBBBBBBB")
	feed := &recordingFeed{}
	m := New(store, feed, nil)

	before, err := store.ListAll(ctx)
	require.NoError(t, err)

	out, err := m.CheckIn(ctx, "T-NOPE")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, out.Kind)
	assert.Nil(t, out.Ticket)
	assert.Equal(t, "Invalid Ticket!", out.Message())

	after, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, feed.count())
}

func TestCheckIn_DeletedTicketIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	seed(t, store, "T-CCCCCCCCC")
	require.NoError(t, store.Delete(ctx, "T-CCCCCCCCC"))

	out, err := New(store, nil, nil).CheckIn(ctx, "T-CCCCCCCCC")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, out.Kind)
}

func TestCheckIn_BlankPayloadSkipsStore(t *testing.T) {
	store := new(MockStore)
	out, err := New(store, nil, nil).CheckIn(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, out.Kind)
	store.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckIn_StoreUnavailable(t *testing.T) {
	store := new(MockStore)
	boom := errors.Join(repository.ErrStoreUnavailable, errors.New("dial tcp: refused"))
	store.On("SetStatus", mock.Anything, "T-DDDDDDDDD", model.StatusBooked, model.StatusArrived).
		Return(model.Ticket{}, boom)

	_, err := New(store, nil, nil).CheckIn(context.Background(), "T-DDDDDDDDD")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	store.AssertExpectations(t)
}

func TestCheckIn_ConcurrentScansGrantOnce(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	seed(t, store, "T-EEEEEEEEE")
	feed := &recordingFeed{}
	m := New(store, feed, nil)

	const devices = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		kinds = map[model.OutcomeKind]int{}
	)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := m.CheckIn(ctx, "T-EEEEEEEEE")
			assert.NoError(t, err)
			mu.Lock()
			kinds[out.Kind]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, kinds[model.OutcomeGranted])
	assert.Equal(t, devices-1, kinds[model.OutcomeAlreadyArrived])
	assert.Zero(t, kinds[model.OutcomeNotFound])
	assert.Equal(t, 1, feed.count())
}
