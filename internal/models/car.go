package models

import "time"

// Car statuses
const (
	CarStatusAvailable   = "available"
	CarStatusMaintenance = "maintenance"
	CarStatusRetired     = "retired"
)

type Car struct {
	ID           string
	Make         string
	Model        string
	Year         int
	Category     string // "economy", "suv", "luxury", ...
	Transmission string
	Seats        int
	DailyRate    float64
	ImageURL     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
