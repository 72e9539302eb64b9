package main // Entry point package

import (
	"context"   // shutdown deadlines
	"errors"    // http.ErrServerClosed check
	"log"       // Logging library
	"net/http"  // server sentinel errors
	"os"        // signal wiring
	"os/signal" // graceful shutdown on SIGINT/SIGTERM
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/fieldz-pro/slot-scheduler/internal/config"
	"github.com/fieldz-pro/slot-scheduler/internal/database"
	"github.com/fieldz-pro/slot-scheduler/internal/handler"
	"github.com/fieldz-pro/slot-scheduler/internal/obs"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
	"github.com/fieldz-pro/slot-scheduler/internal/repository"
	"github.com/fieldz-pro/slot-scheduler/internal/router"
	"github.com/fieldz-pro/slot-scheduler/internal/schedule"
	"github.com/fieldz-pro/slot-scheduler/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins

	cfg, err := config.Load() // Load environment config
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdown, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTelEndpoint, cfg.Env)
		if err != nil {
			log.Fatalf("tracing: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	// ---- Storage ----
	var (
		store      repository.SlotStore
		facilities repository.FacilityDirectory
		pingers    []handler.Pinger
	)
	switch cfg.StoreDriver {
	case "mysql":
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		store = repository.NewMySQLStore(db)
		facilities = repository.NewFacilityRepo(db)
		pingers = append(pingers, db)
	default:
		seed, err := repository.ParseFacilities(cfg.MemoryFacilities)
		if err != nil {
			log.Fatalf("MEMORY_FACILITIES: %v", err)
		}
		store = repository.NewMemoryStore()
		facilities = repository.NewMemoryFacilities(seed...)
		log.Printf("using in-memory store with %d facilities", len(seed))
	}

	// ---- Events ----
	var events service.Notifier = service.NopNotifier{}
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		d := queue.NewDispatcher(pub, cfg.EventBuffer)
		d.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.Close(sctx); err != nil {
				log.Printf("event drain: %v (dropped %d)", err, d.Dropped())
			}
		}()
		events = d
	} else {
		log.Printf("RABBITMQ_URL not set; scheduling events are discarded")
	}

	// ---- HTTP ----
	clock := schedule.SystemClock{}
	slots := service.NewSlotManager(store, facilities, clock, events)
	reservations := service.NewReservations(store, clock, events)

	rl, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatalf("rate limit config: %v", err)
	}
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	router.Register(e, router.Deps{ // Register application routes
		Slots:        handler.NewSlotHandler(slots),
		Reservations: handler.NewReservationHandler(reservations),
		Health:       handler.Health(pingers...),
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    rl,
		Redis:        rdb,
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
