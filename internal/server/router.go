// Package server assembles the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/auth"
	"github.com/ukydev/fuel-delivery/internal/config"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/handlers"
	"github.com/ukydev/fuel-delivery/internal/middleware"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/services"
	"go.mongodb.org/mongo-driver/bson"
)

// Deps is everything the router serves.
type Deps struct {
	Config config.Config
	Auth   *auth.Service
	Users  db.UserCollection

	Orders        *services.OrderService
	Payments      *services.PaymentService
	Reports       *services.ReportService
	Subscriptions *services.SubscriptionService

	Vehicles       *services.Resource[models.Vehicle, *models.Vehicle]
	DriverEarnings *services.Resource[models.DriverEarning, *models.DriverEarning]
	Questions      *services.Resource[models.Question, *models.Question]
	Notifications  *services.Resource[models.Notification, *models.Notification]
	Locations      *services.Resource[models.Location, *models.Location]
	Packages       *services.Resource[models.Package, *models.Package]
	Discounts      *services.Resource[models.Discount, *models.Discount]

	DriverLocations db.DriverLocationCollection
	Ping            func(ctx context.Context) error
}

// NewRouter returns the API handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Payment-Id", "X-Session-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMW := middleware.NewAuthMiddleware(d.Auth)
	limiter := middleware.NewRateLimitMiddleware()
	rateLimit := limiter.RateLimit(d.Config.RateLimit.Requests, d.Config.RateLimit.Window)
	adminOnly := authMW.RequireRole(models.RoleAdmin)

	r.Get("/health", handlers.NewHealthHandler(d.Ping).Health)

	authH := handlers.NewAuthHandler(d.Auth, d.Users)
	orderH := handlers.NewOrderHandler(d.Orders)
	paymentH := handlers.NewPaymentHandler(d.Payments, d.Reports)
	trackingH := handlers.NewTrackingHandler(d.DriverLocations, d.Config.Geofence.RadiusMiles)
	subH := handlers.NewSubscriptionHandler(d.Subscriptions)

	vehicleH := handlers.NewResourceHandler("Vehicle", d.Vehicles)
	vehicleH.Scope = func(c services.Caller) bson.M { return c.Scope("userId", models.RoleDriver) }
	vehicleH.Prepare = func(c services.Caller, v *models.Vehicle) error {
		v.UserID = c.ID
		return nil
	}

	earningH := handlers.NewResourceHandler("Driver earning", d.DriverEarnings)
	earningH.Scope = func(c services.Caller) bson.M { return c.Scope("userId") }

	questionH := handlers.NewResourceHandler("Question", d.Questions)

	notificationH := handlers.NewResourceHandler("Notification", d.Notifications)
	notificationH.Scope = func(c services.Caller) bson.M { return bson.M{"receiver": c.ID} }

	locationH := handlers.NewResourceHandler("Location", d.Locations)
	locationH.Prepare = func(_ services.Caller, l *models.Location) error {
		if !l.Location.Valid() {
			return apperr.InvalidInput("invalid coordinates")
		}
		return nil
	}

	packageH := handlers.NewResourceHandler("Package", d.Packages)
	discountH := handlers.NewResourceHandler("Discount", d.Discounts)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW.Authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimit).Post("/register", authH.Register)
			r.With(rateLimit).Post("/login", authH.Login)
			r.Get("/profile", authH.GetProfile)
			r.Put("/profile", authH.UpdateProfile)
			r.Post("/change-password", authH.ChangePassword)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(authMW.RequirePermission("create_order")).Post("/create-orderFuel", orderH.Create)
			r.Get("/", orderH.List)
			r.Group(func(r chi.Router) {
				r.Use(authMW.RequireRole(models.RoleDriver))
				r.Get("/pending", orderH.ByStatus(models.OrderPending))
				r.Get("/in-progress", orderH.ByStatus(models.OrderInProgress))
				r.Get("/delivered", orderH.ByStatus(models.OrderDelivered))
			})
			r.Patch("/update/{id}", orderH.Update)
			r.Delete("/{id}", orderH.Delete)
			r.Get("/{id}", orderH.Get)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(authMW.RequirePermission("checkout")).Post("/checkout", paymentH.Checkout)
			r.With(authMW.RequirePermission("checkout")).Post("/checkout/qr", paymentH.CheckoutQR)
			r.Get("/confirm-payment", paymentH.Confirm)
			r.Get("/my-payments", paymentH.ListMine)
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", paymentH.List)
				r.Get("/earnings", paymentH.Earnings)
				r.Get("/earnings/export", paymentH.ExportEarnings)
				r.Get("/dashboard", paymentH.Dashboard)
				r.Get("/user/{userId}", paymentH.ListByUser)
				r.Patch("/update/{id}", paymentH.Update)
				r.Delete("/{id}", paymentH.Delete)
			})
			r.Get("/{id}", paymentH.Get)
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.With(authMW.RequirePermission("manage_own_vehicles")).Post("/create", vehicleH.Create)
			r.Patch("/update/{id}", vehicleH.Update)
			r.Delete("/{id}", vehicleH.Delete)
			r.Get("/{id}", vehicleH.Get)
			r.Get("/", vehicleH.List)
		})

		r.Route("/driver-earnings", func(r chi.Router) {
			r.Use(authMW.RequireRole(models.RoleDriver))
			r.With(adminOnly).Post("/create-driverEarning", earningH.Create)
			r.With(adminOnly).Patch("/update/{id}", earningH.Update)
			r.With(adminOnly).Delete("/{id}", earningH.Delete)
			r.Get("/{id}", earningH.Get)
			r.Get("/", earningH.List)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Post("/create-question", questionH.Create)
			r.With(authMW.RequirePermission("answer_questions")).Patch("/update/{id}", questionH.Update)
			r.With(adminOnly).Delete("/{id}", questionH.Delete)
			r.Get("/{id}", questionH.Get)
			r.Get("/", questionH.List)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.With(adminOnly).Post("/create-notification", notificationH.Create)
			r.Patch("/update/{id}", notificationH.Update)
			r.Delete("/{id}", notificationH.Delete)
			r.Get("/{id}", notificationH.Get)
			r.Get("/", notificationH.List)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/create-location", locationH.Create)
			r.Patch("/update/{id}", locationH.Update)
			r.Delete("/{id}", locationH.Delete)
			r.Get("/{id}", locationH.Get)
			r.Get("/", locationH.List)
		})

		r.Route("/packages", func(r chi.Router) {
			r.With(adminOnly).Post("/create-package", packageH.Create)
			r.With(adminOnly).Patch("/update/{id}", packageH.Update)
			r.With(adminOnly).Delete("/{id}", packageH.Delete)
			r.Get("/{id}", packageH.Get)
			r.Get("/", packageH.List)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/create-subscription", subH.Create)
			r.Delete("/{id}", subH.Delete)
			r.Get("/{id}", subH.Get)
			r.Get("/", subH.List)
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/create-discount", discountH.Create)
			r.Patch("/update/{id}", discountH.Update)
			r.Delete("/{id}", discountH.Delete)
			r.Get("/{id}", discountH.Get)
			r.Get("/", discountH.List)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/nearby", trackingH.Nearby)
			r.Get("/{id}/location", trackingH.Location)
		})
	})

	return r
}

// NewHTTPServer wraps the router with the process timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
