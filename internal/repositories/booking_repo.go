package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/ewhitmore/driveline/internal/database"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingFilter narrows admin booking queries.
type BookingFilter struct {
	Search     string // matches customer name, email, or booking id
	Status     string
	PickupFrom string // YYYY-MM-DD, inclusive
	PickupTo   string // YYYY-MM-DD, inclusive
	SortBy     string // created_at | pickup_date | total_price
	SortOrder  string // asc | desc
	Limit      int
	Offset     int
}

// BookingUpdate carries the partial fields of an admin booking update.
// Nil fields are left untouched.
type BookingUpdate struct {
	Status     *string
	PickupDate *string
	ReturnDate *string
	TotalPrice *float64
}

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{pool: db.Pool}
}

const bookingColumns = `id, car_id, pickup_date, return_date, status, total_price,
	customer_name, customer_email, customer_phone, created_at, updated_at`

// sortColumns whitelists sortable columns; anything else falls back to created_at.
var sortColumns = map[string]string{
	"created_at":  "created_at",
	"pickup_date": "pickup_date",
	"total_price": "total_price",
}

func scanBookingRow(scanner rowScanner) (*models.Booking, error) {
	var b models.Booking
	var phone *string

	err := scanner.Scan(
		&b.ID, &b.CarID, &b.PickupDate, &b.ReturnDate, &b.Status,
		&b.TotalPrice, &b.CustomerName, &b.CustomerEmail, &phone,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if phone != nil {
		b.CustomerPhone = *phone
	}

	return &b, nil
}

func scanBookingRows(rows pgx.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return bookings, nil
}

// whereClause builds the filter predicate shared by List and Count.
func whereClause(f BookingFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(customer_name ILIKE $%d OR customer_email ILIKE $%d OR id::text ILIKE $%d)", n, n, n))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.PickupFrom != "" {
		args = append(args, f.PickupFrom)
		conds = append(conds, fmt.Sprintf("pickup_date >= $%d", len(args)))
	}
	if f.PickupTo != "" {
		args = append(args, f.PickupTo)
		conds = append(conds, fmt.Sprintf("pickup_date <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of bookings matching the filter.
func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]*models.Booking, error) {
	where, args := whereClause(f)

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	args = append(args, f.Limit)
	limitPos := len(args)
	args = append(args, f.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		bookingColumns, where, sortCol, order, limitPos, offsetPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	return scanBookingRows(rows)
}

// Count returns the total number of bookings matching the filter.
func (r *BookingRepository) Count(ctx context.Context, f BookingFilter) (int, error) {
	where, args := whereClause(f)

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ListAll returns every booking, newest first, ignoring pagination.
// Used by stats aggregation and CSV export.
func (r *BookingRepository) ListAll(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	return scanBookingRows(rows)
}

// ListByCar returns non-cancelled bookings for a car, soonest pickup first.
func (r *BookingRepository) ListByCar(ctx context.Context, carID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE car_id = $1 AND status != $2 ORDER BY pickup_date ASC`

	rows, err := r.pool.Query(ctx, query, carID, models.BookingStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings for car: %w", err)
	}

	return scanBookingRows(rows)
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBookingRow(r.pool.QueryRow(ctx, query, id))
}

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}

	query := `
		INSERT INTO bookings (id, car_id, pickup_date, return_date, status, total_price,
			customer_name, customer_email, customer_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + bookingColumns

	created, err := scanBookingRow(r.pool.QueryRow(ctx, query,
		b.ID, b.CarID, b.PickupDate, b.ReturnDate, b.Status, b.TotalPrice,
		b.CustomerName, b.CustomerEmail, nullable(b.CustomerPhone),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return created, nil
}

// Update applies the non-nil fields of upd and returns the fresh record.
func (r *BookingRepository) Update(ctx context.Context, id string, upd BookingUpdate) (*models.Booking, error) {
	var sets []string
	var args []interface{}

	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.PickupDate != nil {
		add("pickup_date", *upd.PickupDate)
	}
	if upd.ReturnDate != nil {
		add("return_date", *upd.ReturnDate)
	}
	if upd.TotalPrice != nil {
		add("total_price", *upd.TotalPrice)
	}

	if len(sets) == 0 {
		return nil, models.ErrBadRequest
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), bookingColumns)

	return scanBookingRow(r.pool.QueryRow(ctx, query, args...))
}

func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BulkDelete removes all bookings in ids and returns how many were deleted.
func (r *BookingRepository) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
