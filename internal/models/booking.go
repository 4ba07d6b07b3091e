package models

import "time"

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	ID            string
	CarID         string
	PickupDate    string // YYYY-MM-DD, inclusive
	ReturnDate    string // YYYY-MM-DD, inclusive
	Status        string
	TotalPrice    float64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsCancelled reports whether the booking no longer reserves dates.
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// BookingStats aggregates over all bookings for the admin dashboard.
type BookingStats struct {
	TotalRevenue      float64 `json:"total_revenue"`
	ActiveBookings    int     `json:"active_bookings"`
	ConfirmedBookings int     `json:"confirmed_bookings"`
	CompletedBookings int     `json:"completed_bookings"`
	UpcomingBookings  int     `json:"upcoming_bookings"`
	TotalBookings     int     `json:"total_bookings"`
}
