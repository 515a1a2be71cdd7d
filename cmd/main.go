package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/auth"
	"github.com/ukydev/fuel-delivery/internal/cache"
	"github.com/ukydev/fuel-delivery/internal/config"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/gateway"
	"github.com/ukydev/fuel-delivery/internal/logging"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/server"
	"github.com/ukydev/fuel-delivery/internal/services"
	"github.com/ukydev/fuel-delivery/internal/tracking"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, shutdown := server.NewShutdownManager(context.Background(), shutdownTimeout)
	shutdown.Listen()

	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	shutdown.Register("mongo", client.Disconnect)
	log.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")

	database := client.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	var reportCache cache.Cache = cache.Nop{}
	var broadcaster cache.Broadcaster = cache.Nop{}
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, report caching disabled")
		} else {
			reportCache, broadcaster = rc, rc
			shutdown.Register("redis", func(context.Context) error { return rc.Close() })
			log.Info("connected to Redis")
		}
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		log.WithError(err).Warn("event broker unavailable, events disabled")
		publisher = events.Nop{}
	}
	shutdown.Register("events", func(context.Context) error { return publisher.Close() })

	driverLocations := &db.MongoDriverLocationCollection{Collection: database.Collection(db.DriverLocationsCollection)}
	if cfg.Events.MQTTBrokerURL != "" {
		startTracking(ctx, cfg.Events, driverLocations, shutdown)
	}

	deps := buildDeps(cfg, database, reportCache, broadcaster, publisher)
	deps.DriverLocations = driverLocations
	deps.Ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }

	srv := server.NewHTTPServer(":"+cfg.Port, server.NewRouter(deps))
	shutdown.Register("http", srv.Shutdown)

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server stopped")
			shutdown.Shutdown()
		}
	}()

	<-shutdown.Done()
}

// startTracking subscribes to the driver location stream. Failure only
// disables live tracking.
func startTracking(ctx context.Context, cfg config.EventsConfig, locations db.DriverLocationCollection, shutdown *server.ShutdownManager) {
	mc, err := events.NewMQTTClient(cfg.MQTTBrokerURL, cfg.MQTTClientID+"-tracking")
	if err != nil {
		log.WithError(err).Warn("mqtt unavailable, driver tracking disabled")
		return
	}
	if err := tracking.NewSubscriber(locations).Subscribe(ctx, mc); err != nil {
		log.WithError(err).Warn("driver tracking disabled")
		mc.Disconnect(250)
		return
	}
	shutdown.Register("tracking", func(context.Context) error {
		mc.Disconnect(250)
		return nil
	})
}

func buildDeps(cfg *config.Config, database *mongo.Database, c cache.Cache, b cache.Broadcaster, publisher events.Publisher) server.Deps {
	users := &db.MongoUserCollection{Collection: database.Collection(db.UsersCollection)}
	orders := db.NewOrderCollection(database.Collection(db.OrdersCollection))
	payments := db.NewPaymentCollection(database.Collection(db.PaymentsCollection))
	subscriptions := db.NewSubscriptionCollection(database.Collection(db.SubscriptionsCollection))
	packages := db.NewPackageCollection(database.Collection(db.PackagesCollection))
	discounts := db.NewDiscountCollection(database.Collection(db.DiscountsCollection))
	locations := db.NewLocationCollection(database.Collection(db.LocationsCollection))
	notifications := db.NewStore[models.Notification](database.Collection(db.NotificationsCollection), false)

	reports := services.NewReportService(payments, users, c, cfg.Redis.CacheTTL)
	geofence := services.NewGeofence(locations, cfg.Geofence.RadiusMiles)
	subs := services.NewSubscriptionService(subscriptions, packages)

	return server.Deps{
		Config: *cfg,
		Auth:   auth.NewService(cfg.Auth),
		Users:  users,
		Orders: services.NewOrderService(orders, geofence, publisher),
		Payments: &services.PaymentService{
			Payments:      payments,
			Orders:        orders,
			Subscriptions: subscriptions,
			Packages:      packages,
			Discounts:     discounts,
			Users:         users,
			Gateway:       gateway.NewClient(cfg.Gateway),
			Notifier:      services.NewNotifier(notifications, b),
			Events:        publisher,
			Reports:       reports,
		},
		Reports:        reports,
		Subscriptions:  subs,
		Vehicles:       services.NewVehicleResource(db.NewStore[models.Vehicle](database.Collection(db.VehiclesCollection), true)),
		DriverEarnings: services.NewDriverEarningResource(db.NewStore[models.DriverEarning](database.Collection(db.DriverEarningsCollection), true)),
		Questions:      services.NewQuestionResource(db.NewStore[models.Question](database.Collection(db.QuestionsCollection), false)),
		Notifications:  services.NewNotificationResource(notifications),
		Locations:      services.NewLocationResource(locations),
		Packages:       services.NewPackageResource(packages),
		Discounts:      services.NewDiscountResource(discounts),
	}
}
