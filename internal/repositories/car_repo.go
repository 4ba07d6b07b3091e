package repositories

import (
	"context"
	"fmt"

	"github.com/ewhitmore/driveline/internal/database"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CarRepository struct {
	pool *pgxpool.Pool
}

func NewCarRepository(db *database.DB) *CarRepository {
	return &CarRepository{pool: db.Pool}
}

const carColumns = `id, make, model, year, category, transmission, seats, daily_rate, image_url, status, created_at, updated_at`

func scanCarRow(scanner rowScanner) (*models.Car, error) {
	var car models.Car
	var imageURL *string

	err := scanner.Scan(
		&car.ID, &car.Make, &car.Model, &car.Year, &car.Category,
		&car.Transmission, &car.Seats, &car.DailyRate, &imageURL,
		&car.Status, &car.CreatedAt, &car.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if imageURL != nil {
		car.ImageURL = *imageURL
	}

	return &car, nil
}

func scanCarRows(rows pgx.Rows) ([]*models.Car, error) {
	defer rows.Close()

	cars := make([]*models.Car, 0)
	for rows.Next() {
		car, err := scanCarRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return cars, nil
}

func (r *CarRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1`
	return scanCarRow(r.pool.QueryRow(ctx, query, id))
}

// List returns cars, optionally filtered by status and category.
func (r *CarRepository) List(ctx context.Context, status, category string) ([]*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE 1=1`
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY daily_rate ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cars: %w", err)
	}

	return scanCarRows(rows)
}

func (r *CarRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE cars SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
