package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewhitmore/driveline/internal/models"
	pkghttp "github.com/ewhitmore/driveline/pkg/http"
	"github.com/go-chi/chi/v5"
)

// CarServiceInterface defines the car catalog operations
type CarServiceInterface interface {
	List(ctx context.Context, status, category string) ([]*models.Car, error)
	GetByID(ctx context.Context, id string) (*models.Car, error)
}

// CarStatusUpdater updates car availability (admin only)
type CarStatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) error
}

// CarHandler handles car catalog HTTP requests
type CarHandler struct {
	cars    CarServiceInterface
	updater CarStatusUpdater
}

// NewCarHandler creates a new CarHandler
func NewCarHandler(cars CarServiceInterface, updater CarStatusUpdater) *CarHandler {
	return &CarHandler{cars: cars, updater: updater}
}

// UpdateCarStatusRequest sets a car's availability
type UpdateCarStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available maintenance retired"`
}

// List returns the car catalog, optionally filtered
func (h *CarHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cars, err := h.cars.List(r.Context(), q.Get("status"), q.Get("category"))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"cars": cars})
}

// Get returns one car
func (h *CarHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	car, err := h.cars.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Car not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(car)
}

// UpdateStatus changes a car's availability status
func (h *CarHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCarStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.updater.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Car not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Car status updated"})
}
