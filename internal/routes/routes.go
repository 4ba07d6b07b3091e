package routes

import (
	"log/slog"

	"github.com/ewhitmore/driveline/internal/auth"
	"github.com/ewhitmore/driveline/internal/handlers"
	"github.com/ewhitmore/driveline/internal/middleware"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/internal/repositories"
	"github.com/ewhitmore/driveline/internal/security"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	bookingHandler *handlers.BookingHandler,
	carHandler *handlers.CarHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
	sessions *security.SessionTracker,
	csrfManager *security.CSRFManager,
	userRepo *repositories.UserRepository,
	logger *slog.Logger,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()
	bookingRateLimit := middleware.DefaultBookingRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/refresh", authHandler.RefreshToken)

	router.Get("/cars", carHandler.List)
	router.Get("/cars/{id}", carHandler.Get)
	router.Get("/cars/{id}/booked-dates", bookingHandler.BookedDates)
	router.With(middleware.RateLimitByIP(bookingRateLimit)).Post("/bookings", bookingHandler.Create)

	// Protected routes - authentication plus single-use CSRF tokens on
	// state-changing requests
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, sessions))
		r.Use(middleware.CSRFProtection(csrfManager, logger))

		r.Post("/auth/logout", authHandler.Logout)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin))

			r.Get("/admin/bookings", bookingHandler.List)
			r.Get("/admin/bookings/stats", bookingHandler.Stats)
			r.Get("/admin/bookings/export", bookingHandler.Export)
			r.Put("/admin/bookings/{id}", bookingHandler.Update)
			r.Delete("/admin/bookings/{id}", bookingHandler.Delete)
			r.Post("/admin/bookings/bulk-delete", bookingHandler.BulkDelete)
			r.Post("/admin/cache/clear", bookingHandler.ClearCache)

			r.Put("/admin/cars/{id}/status", carHandler.UpdateStatus)

			r.Get("/admin/security/limiter", securityHandler.Status)
			r.Post("/admin/security/limiter/lock", securityHandler.Lock)
			r.Post("/admin/security/limiter/unlock", securityHandler.Unlock)
		})
	})
}
