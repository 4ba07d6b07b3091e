package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ewhitmore/driveline/internal/cache"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBookingRepo tracks backend call counts so tests can assert that
// cached reads never reach it
type mockBookingRepo struct {
	bookings []*models.Booking

	listCalls    int
	countCalls   int
	listAllCalls int

	listErr    error
	createdIDs int
}

func (m *mockBookingRepo) List(ctx context.Context, f repositories.BookingFilter) ([]*models.Booking, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.bookings, nil
}

func (m *mockBookingRepo) Count(ctx context.Context, f repositories.BookingFilter) (int, error) {
	m.countCalls++
	if m.listErr != nil {
		return 0, m.listErr
	}
	return len(m.bookings), nil
}

func (m *mockBookingRepo) ListAll(ctx context.Context) ([]*models.Booking, error) {
	m.listAllCalls++
	return m.bookings, nil
}

func (m *mockBookingRepo) ListByCar(ctx context.Context, carID string) ([]*models.Booking, error) {
	out := make([]*models.Booking, 0)
	for _, b := range m.bookings {
		if b.CarID == carID && !b.IsCancelled() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	for _, b := range m.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockBookingRepo) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	m.createdIDs++
	created := *b
	if created.ID == "" {
		created.ID = "booking-new"
	}
	if created.Status == "" {
		created.Status = models.BookingStatusPending
	}
	created.CreatedAt = time.Now()
	m.bookings = append(m.bookings, &created)
	return &created, nil
}

func (m *mockBookingRepo) Update(ctx context.Context, id string, upd repositories.BookingUpdate) (*models.Booking, error) {
	for _, b := range m.bookings {
		if b.ID == id {
			if upd.Status != nil {
				b.Status = *upd.Status
			}
			return b, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockBookingRepo) Delete(ctx context.Context, id string) error {
	for i, b := range m.bookings {
		if b.ID == id {
			m.bookings = append(m.bookings[:i], m.bookings[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *mockBookingRepo) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if m.Delete(ctx, id) == nil {
			deleted++
		}
	}
	return deleted, nil
}

type mockCarFetcher struct {
	cars map[string]*models.Car
}

func (m *mockCarFetcher) GetByID(ctx context.Context, id string) (*models.Car, error) {
	car, ok := m.cars[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return car, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newTestBookingService(repo *mockBookingRepo) (*BookingService, *cache.Store) {
	store := cache.NewStore(time.Minute)
	cars := &mockCarFetcher{cars: map[string]*models.Car{
		"car-1": {ID: "car-1", DailyRate: 50, Status: models.CarStatusAvailable},
		"car-2": {ID: "car-2", DailyRate: 80, Status: models.CarStatusMaintenance},
	}}
	return NewBookingService(repo, cars, store, nil, testLogger()), store
}

func sampleBookings() []*models.Booking {
	return []*models.Booking{
		{ID: "b1", CarID: "car-1", PickupDate: "2026-03-10", ReturnDate: "2026-03-12",
			Status: models.BookingStatusConfirmed, TotalPrice: 150, CustomerName: "Ada", CustomerEmail: "ada@example.com"},
		{ID: "b2", CarID: "car-1", PickupDate: "2026-02-01", ReturnDate: "2026-02-03",
			Status: models.BookingStatusCompleted, TotalPrice: 100, CustomerName: "Grace", CustomerEmail: "grace@example.com"},
		{ID: "b3", CarID: "car-1", PickupDate: "2026-01-05", ReturnDate: "2026-01-06",
			Status: models.BookingStatusCancelled, TotalPrice: 50, CustomerName: "Alan", CustomerEmail: "alan@example.com"},
	}
}

func TestList_SecondIdenticalCallServedFromCache(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	opts := ListOptions{Page: 1, Limit: 10, Status: "confirmed"}

	first, err := svc.List(context.Background(), opts)
	require.NoError(t, err)

	second, err := svc.List(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls, "second call must not hit the backend")
	assert.Equal(t, 1, repo.countCalls)
	assert.Same(t, first, second)
}

func TestList_DifferentParamsQuerySeparately(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	_, err := svc.List(context.Background(), ListOptions{Page: 1, Status: "confirmed"})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), ListOptions{Page: 2, Status: "confirmed"})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls)
}

func TestList_MutationForcesRequery(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	opts := ListOptions{Page: 1, Limit: 10}
	_, err := svc.List(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)

	status := models.BookingStatusActive
	_, err = svc.Update(context.Background(), "b1", repositories.BookingUpdate{Status: &status})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls, "update must invalidate the cached page")
	assert.Equal(t, models.BookingStatusActive, page.Bookings[0].Status)
}

func TestList_FailedFetchNotCached(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings(), listErr: errors.New("backend down")}
	svc, _ := newTestBookingService(repo)

	opts := ListOptions{Page: 1}
	_, err := svc.List(context.Background(), opts)
	require.Error(t, err)

	repo.listErr = nil
	page, err := svc.List(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls, "error result must not be cached")
	assert.Len(t, page.Bookings, 3)
}

func TestList_PaginationMetadata(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	page, err := svc.List(context.Background(), ListOptions{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
}

func TestStats_AggregatesAndCaches(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)
	svc.SetClock(func() time.Time {
		return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	// Cancelled b3 excluded from revenue
	assert.Equal(t, 250.0, stats.TotalRevenue)
	assert.Equal(t, 3, stats.TotalBookings)
	assert.Equal(t, 1, stats.ConfirmedBookings)
	assert.Equal(t, 1, stats.CompletedBookings)
	assert.Equal(t, 0, stats.ActiveBookings)
	// Only b1 picks up after Feb 15 in a live status
	assert.Equal(t, 1, stats.UpcomingBookings)

	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listAllCalls)
}

func TestCreate_OverlapRejected(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	_, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-03-11",
		ReturnDate: "2026-03-14",
	})

	assert.ErrorIs(t, err, models.ErrBookingConflict)
	assert.Equal(t, 0, repo.createdIDs, "conflicting booking must never reach the backend")
}

func TestCreate_TouchingRangesAllowed(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	// b1 occupies [2026-03-10, 2026-03-13); a pickup on the return day is fine
	created, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-03-13",
		ReturnDate: "2026-03-15",
	})

	require.NoError(t, err)
	assert.Equal(t, 150.0, created.TotalPrice, "3 rental days at 50/day")
}

func TestCreate_CancelledBookingsDoNotBlock(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	// Same dates as cancelled b3
	_, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-01-05",
		ReturnDate: "2026-01-06",
	})

	require.NoError(t, err)
}

func TestCreate_SameDayIsOneDayRental(t *testing.T) {
	repo := &mockBookingRepo{}
	svc, _ := newTestBookingService(repo)

	created, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-06-01",
		ReturnDate: "2026-06-01",
	})

	require.NoError(t, err)
	assert.Equal(t, 50.0, created.TotalPrice)
}

func TestCreate_ReturnBeforePickupRejected(t *testing.T) {
	repo := &mockBookingRepo{}
	svc, _ := newTestBookingService(repo)

	_, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-06-05",
		ReturnDate: "2026-06-01",
	})

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestCreate_UnavailableCarRejected(t *testing.T) {
	repo := &mockBookingRepo{}
	svc, _ := newTestBookingService(repo)

	_, err := svc.Create(context.Background(), &models.Booking{
		CarID:      "car-2",
		PickupDate: "2026-06-01",
		ReturnDate: "2026-06-03",
	})

	assert.ErrorIs(t, err, models.ErrCarUnavailable)
}

func TestCreate_InvalidatesCache(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, store := newTestBookingService(repo)

	_, err := svc.List(context.Background(), ListOptions{Page: 1})
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	_, err = svc.Create(context.Background(), &models.Booking{
		CarID:      "car-1",
		PickupDate: "2026-07-01",
		ReturnDate: "2026-07-03",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len())
}

func TestBulkDelete_NoMatchesKeepsCache(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, store := newTestBookingService(repo)

	_, err := svc.List(context.Background(), ListOptions{Page: 1})
	require.NoError(t, err)

	deleted, err := svc.BulkDelete(context.Background(), []string{"nope"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), deleted)
	assert.Equal(t, 1, store.Len(), "no-op delete should not invalidate")
}

func TestBookedDatesForCar_SkipsCancelled(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, _ := newTestBookingService(repo)

	ranges, err := svc.BookedDatesForCar(context.Background(), "car-1")
	require.NoError(t, err)

	// b3 is cancelled, so only b1 and b2 reserve dates
	require.Len(t, ranges, 2)
	assert.Equal(t, "2026-03-10", ranges[0].Start)
	assert.Equal(t, "2026-03-13", ranges[0].End)
}

func TestExportCSV(t *testing.T) {
	repo := &mockBookingRepo{bookings: []*models.Booking{
		{ID: "b1", CarID: "car-1", PickupDate: "2026-03-10", ReturnDate: "2026-03-12",
			Status: models.BookingStatusConfirmed, TotalPrice: 150,
			CustomerName: `Smith, "Ada"`, CustomerEmail: "ada@example.com"},
	}}
	svc, _ := newTestBookingService(repo)

	csv, err := svc.ExportCSV(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])
	assert.Contains(t, lines[1], `"Smith, ""Ada"""`)
}

func TestExportCSV_EmptyIsError(t *testing.T) {
	repo := &mockBookingRepo{}
	svc, _ := newTestBookingService(repo)

	_, err := svc.ExportCSV(context.Background())
	assert.ErrorIs(t, err, models.ErrNoDataToExport)
}

func TestClearCache(t *testing.T) {
	repo := &mockBookingRepo{bookings: sampleBookings()}
	svc, store := newTestBookingService(repo)

	_, err := svc.List(context.Background(), ListOptions{Page: 1})
	require.NoError(t, err)
	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	svc.ClearCache(statsCacheKey)
	assert.Equal(t, 1, store.Len())

	svc.ClearCache("")
	assert.Equal(t, 0, store.Len())
}
