package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ewhitmore/driveline/internal/cache"
	"github.com/ewhitmore/driveline/internal/daterange"
	"github.com/ewhitmore/driveline/internal/metrics"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/internal/repositories"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	statsCacheKey = "bookings:stats"
)

// BookingRepository defines the backend data operations the booking
// service depends on
type BookingRepository interface {
	List(ctx context.Context, f repositories.BookingFilter) ([]*models.Booking, error)
	Count(ctx context.Context, f repositories.BookingFilter) (int, error)
	ListAll(ctx context.Context) ([]*models.Booking, error)
	ListByCar(ctx context.Context, carID string) ([]*models.Booking, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, b *models.Booking) (*models.Booking, error)
	Update(ctx context.Context, id string, upd repositories.BookingUpdate) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}

// CarFetcher resolves cars for price calculation and availability gating
type CarFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Car, error)
}

// BookingEmailSender sends booking confirmations. Optional; may be nil.
type BookingEmailSender interface {
	SendBookingConfirmation(ctx context.Context, booking *models.Booking) error
}

// ListOptions are the admin booking-list query parameters
type ListOptions struct {
	Page      int
	Limit     int
	Search    string
	Status    string
	DateFrom  string // pickup date lower bound, YYYY-MM-DD
	DateTo    string // pickup date upper bound, YYYY-MM-DD
	SortBy    string
	SortOrder string
}

// BookingPage is one page of admin booking results
type BookingPage struct {
	Bookings    []*models.Booking `json:"bookings"`
	TotalCount  int               `json:"total_count"`
	TotalPages  int               `json:"total_pages"`
	CurrentPage int               `json:"current_page"`
}

// BookingService wraps backend booking queries with a TTL cache and
// enforces date-overlap integrity on creation. Every mutation clears
// the whole cache: stats and any filtered view may be affected by a
// single write, so correctness wins over precision.
type BookingService struct {
	repo   BookingRepository
	cars   CarFetcher
	store  *cache.Store
	email  BookingEmailSender
	logger *slog.Logger
	now    func() time.Time
}

// NewBookingService creates a BookingService. email may be nil.
func NewBookingService(repo BookingRepository, cars CarFetcher, store *cache.Store, email BookingEmailSender, logger *slog.Logger) *BookingService {
	return &BookingService{
		repo:   repo,
		cars:   cars,
		store:  store,
		email:  email,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultPageLimit
	}
	if o.Limit > maxPageLimit {
		o.Limit = maxPageLimit
	}
	if o.SortBy == "" {
		o.SortBy = "created_at"
	}
	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}
	return o
}

// signature derives the deterministic cache key for a list query.
func (o ListOptions) signature() string {
	return cache.Signature("bookings:list", map[string]string{
		"page":       strconv.Itoa(o.Page),
		"limit":      strconv.Itoa(o.Limit),
		"search":     o.Search,
		"status":     o.Status,
		"date_from":  o.DateFrom,
		"date_to":    o.DateTo,
		"sort_by":    o.SortBy,
		"sort_order": strings.ToLower(o.SortOrder),
	})
}

func (o ListOptions) filter() repositories.BookingFilter {
	return repositories.BookingFilter{
		Search:     o.Search,
		Status:     o.Status,
		PickupFrom: o.DateFrom,
		PickupTo:   o.DateTo,
		SortBy:     o.SortBy,
		SortOrder:  o.SortOrder,
		Limit:      o.Limit,
		Offset:     (o.Page - 1) * o.Limit,
	}
}

// List returns one page of bookings, served from cache when fresh.
// A failed backend read never populates a cache entry.
func (s *BookingService) List(ctx context.Context, opts ListOptions) (*BookingPage, error) {
	opts = opts.normalized()
	key := opts.signature()

	if cached, ok := s.store.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("list").Inc()
		return cached.(*BookingPage), nil
	}
	metrics.CacheMissesTotal.WithLabelValues("list").Inc()

	filter := opts.filter()
	bookings, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list bookings", slog.Any("error", err))
		return nil, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count bookings", slog.Any("error", err))
		return nil, err
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	page := &BookingPage{
		Bookings:    bookings,
		TotalCount:  total,
		TotalPages:  totalPages,
		CurrentPage: opts.Page,
	}

	s.store.Set(key, page)
	return page, nil
}

// Stats aggregates the admin dashboard numbers over all bookings in a
// single cached pass.
func (s *BookingService) Stats(ctx context.Context) (*models.BookingStats, error) {
	if cached, ok := s.store.Get(statsCacheKey); ok {
		metrics.CacheHitsTotal.WithLabelValues("stats").Inc()
		return cached.(*models.BookingStats), nil
	}
	metrics.CacheMissesTotal.WithLabelValues("stats").Inc()

	bookings, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to load bookings for stats", slog.Any("error", err))
		return nil, err
	}

	today := daterange.ToDayString(s.now())
	stats := &models.BookingStats{TotalBookings: len(bookings)}

	for _, b := range bookings {
		if !b.IsCancelled() {
			stats.TotalRevenue += b.TotalPrice
		}
		switch b.Status {
		case models.BookingStatusActive:
			stats.ActiveBookings++
		case models.BookingStatusConfirmed:
			stats.ConfirmedBookings++
		case models.BookingStatusCompleted:
			stats.CompletedBookings++
		}
		if b.PickupDate > today &&
			(b.Status == models.BookingStatusConfirmed || b.Status == models.BookingStatusActive) {
			stats.UpcomingBookings++
		}
	}

	s.store.Set(statsCacheKey, stats)
	return stats, nil
}

// Create validates the requested dates against existing bookings for
// the car, prices the rental, and writes through. Overlap is a
// structured ErrBookingConflict, surfaced inline on the form before the
// backend is ever asked to insert.
func (s *BookingService) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	requested, err := daterange.NormalizeDays(b.PickupDate, b.ReturnDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		return nil, err
	}
	if car.Status != models.CarStatusAvailable {
		return nil, models.ErrCarUnavailable
	}

	existing, err := s.repo.ListByCar(ctx, b.CarID)
	if err != nil {
		s.logger.Error("failed to load bookings for availability check",
			slog.String("car_id", b.CarID), slog.Any("error", err))
		return nil, err
	}

	for _, other := range existing {
		reserved, err := daterange.NormalizeDays(other.PickupDate, other.ReturnDate)
		if err != nil {
			s.logger.Warn("skipping booking with malformed dates",
				slog.String("booking_id", other.ID))
			continue
		}
		if requested.Overlaps(reserved) {
			metrics.BookingConflictsTotal.Inc()
			return nil, models.ErrBookingConflict
		}
	}

	days, err := requested.Days()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
	b.TotalPrice = float64(days) * car.DailyRate

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.logger.Info("booking created",
		slog.String("booking_id", created.ID),
		slog.String("car_id", created.CarID),
		slog.String("pickup", created.PickupDate),
		slog.String("return", created.ReturnDate))

	if s.email != nil {
		if err := s.email.SendBookingConfirmation(ctx, created); err != nil {
			// Confirmation mail is best-effort; the booking stands
			s.logger.Error("failed to send booking confirmation",
				slog.String("booking_id", created.ID), slog.Any("error", err))
		}
	}

	return created, nil
}

// Update writes through and clears the entire cache.
func (s *BookingService) Update(ctx context.Context, id string, upd repositories.BookingUpdate) (*models.Booking, error) {
	updated, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.logger.Info("booking updated", slog.String("booking_id", id))
	return updated, nil
}

// Delete removes one booking and clears the entire cache.
func (s *BookingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate()
	s.logger.Info("booking deleted", slog.String("booking_id", id))
	return nil
}

// BulkDelete removes many bookings and clears the entire cache.
func (s *BookingService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	deleted, err := s.repo.BulkDelete(ctx, ids)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.invalidate()
	}
	s.logger.Info("bookings bulk deleted", slog.Int64("count", deleted))
	return deleted, nil
}

// BookedDatesForCar returns the normalized reserved ranges for a car,
// excluding cancelled bookings, for availability calendars.
func (s *BookingService) BookedDatesForCar(ctx context.Context, carID string) ([]daterange.Range, error) {
	bookings, err := s.repo.ListByCar(ctx, carID)
	if err != nil {
		return nil, err
	}

	ranges := make([]daterange.Range, 0, len(bookings))
	for _, b := range bookings {
		r, err := daterange.NormalizeDays(b.PickupDate, b.ReturnDate)
		if err != nil {
			s.logger.Warn("skipping booking with malformed dates",
				slog.String("booking_id", b.ID))
			continue
		}
		ranges = append(ranges, r)
	}

	return ranges, nil
}

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"id", "car_id", "pickup_date", "return_date", "status",
	"total_price", "customer_name", "customer_email", "customer_phone", "created_at",
}

// ExportCSV serializes all bookings, ignoring pagination. An empty set
// is an explicit error so callers never ship a header-only file.
func (s *BookingService) ExportCSV(ctx context.Context) (string, error) {
	bookings, err := s.repo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	if len(bookings) == 0 {
		return "", models.ErrNoDataToExport
	}

	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteByte('\n')

	for _, booking := range bookings {
		fields := []string{
			booking.ID,
			booking.CarID,
			booking.PickupDate,
			booking.ReturnDate,
			booking.Status,
			strconv.FormatFloat(booking.TotalPrice, 'f', 2, 64),
			csvEscape(booking.CustomerName),
			csvEscape(booking.CustomerEmail),
			csvEscape(booking.CustomerPhone),
			booking.CreatedAt.UTC().Format(time.RFC3339),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}

	return b.String(), nil
}

// ClearCache drops one cached entry, or everything when key is empty.
func (s *BookingService) ClearCache(key string) {
	if key == "" {
		s.store.ClearAll()
		return
	}
	s.store.Clear(key)
}

func (s *BookingService) invalidate() {
	s.store.ClearAll()
	metrics.CacheInvalidationsTotal.Inc()
}

func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
