package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolbus-backend/internal/config"
	"schoolbus-backend/internal/database"
	"schoolbus-backend/internal/directions"
	"schoolbus-backend/internal/handlers"
	"schoolbus-backend/internal/middleware"
	"schoolbus-backend/internal/services"
	"schoolbus-backend/internal/store"
	"schoolbus-backend/internal/tracking"
	"schoolbus-backend/internal/websocket"

	firebase "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 SCHOOL BUS BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	log.Println("📂 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		fatal("Logging setup failed", err)
	}
	log.Printf("✅ Configuration loaded (record store: %s)", cfg.RecordStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		fatal("Database connection failed", err)
	}
	defer db.Close()

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		fatal("Database migrations failed", err)
	}
	log.Println("✅ Database migrations completed")

	if cfg.SeedDemoDriverID != "" {
		if err := database.SeedDemoTrip(db, cfg.SeedDemoDriverID); err != nil {
			fatal("Demo trip seeding failed", err)
		}
	}

	var app *firebase.App
	if cfg.FirebaseConfigured() {
		app, err = services.NewFirebaseApp(ctx, cfg.FirebaseDatabaseURL, cfg.FirebaseCredentialsBase64, cfg.FirebaseCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize Firebase: %v", err)
			app = nil
		} else {
			log.Println("✅ Firebase app initialized")
		}
	}

	records, err := newRecordStore(ctx, cfg, app)
	if err != nil {
		fatal("Record store setup failed", err)
	}

	repo := database.NewRepository(db)
	wsHub := websocket.NewHub()
	observers := tracking.Observers{wsHub, services.NewTripRecorder(repo)}

	var notifier *services.Notifier
	if app != nil {
		notifier, err = services.NewNotifier(ctx, app)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM: %v (push notifications disabled)", err)
		} else {
			observers = append(observers, notifier)
			log.Println("✅ Firebase Cloud Messaging initialized")
		}
	} else {
		log.Println("⚠️  No Firebase credentials - push notifications disabled")
	}

	dirClient := directions.NewClient(cfg.Tunables.Directions)
	var routes tracking.RouteProvider
	if cfg.GoogleMapsAPIKey != "" {
		routes = dirClient
	}

	manager := tracking.NewManager(cfg.Tunables.Tracking, records, routes, observers)
	wsHub.SetController(manager)
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	devices := func(driverID string) (tracking.Device, bool) {
		device, ok := wsHub.Device(driverID)
		if !ok {
			return nil, false
		}
		return device, true
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, cfg.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Get("/schools/{schoolID}/buses/{busID}/trips/{tripNumber}/location", handlers.GetBusLocation(records))
		r.Get("/directions", handlers.GetDirections(dirClient))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleDriver))

			r.Post("/driver/trip/start", handlers.StartTrip(repo, devices, manager))
			r.Post("/driver/trip/end", handlers.EndTrip(manager))
			r.Post("/driver/trip/confirm", handlers.ConfirmArrival(manager))
			r.Get("/driver/trip/status", handlers.GetTripStatus(manager))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.Get("/manager/active-trips", handlers.GetActiveTrips(manager, wsHub))
			r.Get("/manager/directions-stats", handlers.GetDirectionsStats(dirClient))
		})
	})

	server := &http.Server{
		Addr:              cfg.GetListenAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Server failed to start", err)
		}
	case <-ctx.Done():
		log.Println("🛑 Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP shutdown: %v", err)
	}

	manager.Shutdown()
	if notifier != nil {
		notifier.Wait()
	}
	log.Println("👋 Server stopped")
}

// newRecordStore opens the configured real-time location store
func newRecordStore(ctx context.Context, cfg config.Config, app *firebase.App) (tracking.RecordStore, error) {
	switch cfg.RecordStore {
	case config.StoreFirebase:
		if app == nil {
			return nil, services.ErrNoFirebaseCredentials
		}
		s, err := store.NewFirebaseStore(ctx, app)
		if err != nil {
			return nil, err
		}
		log.Println("✅ Firebase Realtime Database record store ready")
		return s, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, err
		}
		log.Printf("✅ Redis record store ready at %s", cfg.RedisAddr)
		return store.NewRedisStore(client, cfg.Tunables.RedisRecordTTL), nil

	default:
		log.Println("⚠️  Using in-memory record store - locations are not shared")
		return store.NewMemoryStore(), nil
	}
}

func fatal(what string, err error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("❌ FATAL ERROR: %s", what)
	log.Printf("   Error: %v", err)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Fatal(err)
}
