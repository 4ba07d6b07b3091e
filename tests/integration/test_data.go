package integration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/pkg/auth"
)

// SeedUser inserts a test user with a hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password, role string) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, name, role, status)
		VALUES ($1, $2, 'Test User', $3, 'active')
		RETURNING id, email, password_hash, name, role, status, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, email, hashedPassword, role).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedCar inserts a test car and returns its id
func SeedCar(ctx context.Context, pool *pgxpool.Pool, dailyRate float64, status string) (string, error) {
	query := `
		INSERT INTO cars (make, model, year, category, transmission, seats, daily_rate, status)
		VALUES ('Toyota', 'Corolla', 2024, 'economy', 'automatic', 5, $1, $2)
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, dailyRate, status).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert car: %w", err)
	}

	return id, nil
}

// SeedBooking inserts a booking for a car and returns its id
func SeedBooking(ctx context.Context, pool *pgxpool.Pool, carID, pickupDate, returnDate, status string) (string, error) {
	query := `
		INSERT INTO bookings (car_id, pickup_date, return_date, status, total_price,
			customer_name, customer_email)
		VALUES ($1, $2, $3, $4, 100, 'Test Customer', 'customer@example.com')
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, carID, pickupDate, returnDate, status).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert booking: %w", err)
	}

	return id, nil
}
