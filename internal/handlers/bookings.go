package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewhitmore/driveline/internal/auth"
	"github.com/ewhitmore/driveline/internal/daterange"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/internal/repositories"
	"github.com/ewhitmore/driveline/internal/services"
	pkghttp "github.com/ewhitmore/driveline/pkg/http"
	pkglogger "github.com/ewhitmore/driveline/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// BookingServiceInterface defines the interface for booking business logic
type BookingServiceInterface interface {
	List(ctx context.Context, opts services.ListOptions) (*services.BookingPage, error)
	Stats(ctx context.Context) (*models.BookingStats, error)
	Create(ctx context.Context, b *models.Booking) (*models.Booking, error)
	Update(ctx context.Context, id string, upd repositories.BookingUpdate) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int64, error)
	BookedDatesForCar(ctx context.Context, carID string) ([]daterange.Range, error)
	ExportCSV(ctx context.Context) (string, error)
	ClearCache(key string)
}

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	service     BookingServiceInterface
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(service BookingServiceInterface, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service:     service,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// CreateBookingRequest represents the request body for creating a booking
type CreateBookingRequest struct {
	CarID         string `json:"car_id" validate:"required,uuid4"`
	PickupDate    string `json:"pickup_date" validate:"required,datetime=2006-01-02"`
	ReturnDate    string `json:"return_date" validate:"required,datetime=2006-01-02"`
	CustomerName  string `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=30"`
}

// UpdateBookingRequest carries the partial fields of a booking update
type UpdateBookingRequest struct {
	Status     *string  `json:"status" validate:"omitempty,oneof=pending confirmed active completed cancelled"`
	PickupDate *string  `json:"pickup_date" validate:"omitempty,datetime=2006-01-02"`
	ReturnDate *string  `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
	TotalPrice *float64 `json:"total_price" validate:"omitempty,gte=0"`
}

// BulkDeleteRequest lists the booking IDs to remove
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid4"`
}

// Create handles public booking creation
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	booking := &models.Booking{
		CarID:         req.CarID,
		PickupDate:    req.PickupDate,
		ReturnDate:    req.ReturnDate,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
	}

	created, err := h.service.Create(r.Context(), booking)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBookingConflict):
			pkghttp.WriteErrorWithDetails(w, http.StatusConflict, "booking_conflict",
				"The selected dates are no longer available for this car", "")
		case errors.Is(err, models.ErrCarUnavailable):
			pkghttp.WriteConflict(w, "This car is not currently available for booking")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Car not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid booking dates")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.logger.Info("booking created via api",
		slog.String("booking_id", created.ID),
		slog.String("customer", pkglogger.SanitizedEmail(created.CustomerEmail)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// BookedDates returns the reserved date ranges for a car
func (h *BookingHandler) BookedDates(w http.ResponseWriter, r *http.Request) {
	carID := chi.URLParam(r, "id")
	if carID == "" {
		pkghttp.WriteBadRequest(w, "Missing car id")
		return
	}

	ranges, err := h.service.BookedDatesForCar(r.Context(), carID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"booked": ranges})
}

// List handles the admin booking list with filters and pagination
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	opts := services.ListOptions{
		Page:      page,
		Limit:     limit,
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	result, err := h.service.List(r.Context(), opts)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// Stats returns the admin dashboard aggregates
func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// Update applies a partial booking update
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), id, repositories.BookingUpdate{
		Status:     req.Status,
		PickupDate: req.PickupDate,
		ReturnDate: req.ReturnDate,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Booking not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "No fields to update")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.auditBooking(r, "booking_updated", id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(updated)
}

// Delete removes one booking
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Booking not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.auditBooking(r, "booking_deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete removes a batch of bookings
func (h *BookingHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.auditBooking(r, "bookings_bulk_deleted", strconv.FormatInt(deleted, 10))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

// Export streams all bookings as CSV
func (h *BookingHandler) Export(w http.ResponseWriter, r *http.Request) {
	csv, err := h.service.ExportCSV(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoDataToExport) {
			pkghttp.WriteNotFound(w, "No bookings to export")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(csv))
}

// ClearCache drops cached query results; an empty key clears everything
func (h *BookingHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	h.service.ClearCache(key)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Cache cleared"})
}

func (h *BookingHandler) auditBooking(r *http.Request, eventType, bookingID string) {
	actorID := ""
	if claims := auth.GetUserFromContext(r); claims != nil {
		actorID = claims.UserID
	}
	h.auditLogger.LogBookingAction(eventType, bookingID, actorID, nil)
}
