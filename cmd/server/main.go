package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/hasthilk/ticketing/internal/config"
	"github.com/hasthilk/ticketing/internal/database"
	"github.com/hasthilk/ticketing/internal/handler"
	appmw "github.com/hasthilk/ticketing/internal/middleware"
	"github.com/hasthilk/ticketing/internal/queue"
	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/router"
	"github.com/hasthilk/ticketing/internal/service"
	"github.com/hasthilk/ticketing/internal/ticket"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	inventory := repository.NewEntryInventoryRepo(db)
	entries := repository.NewEntryBookingRepo(db)

	issuer := ticket.NewIssuer(cfg.TicketSecret)
	pub := service.NewAMQPPublisher()
	pricing := service.EntryPricing{
		LocalCents:   uint32(cfg.EntryLocalCents),
		ForeignCents: uint32(cfg.EntryForeignCents),
	}

	bookingSvc := service.NewBookingService(events, bookings, issuer, pub)
	entrySvc := service.NewEntryService(inventory, entries, issuer, pricing, pub)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	eventH := handler.NewEventHandler(events)
	bookingH := handler.NewBookingHandler(bookingSvc)
	entryH := handler.NewEntryHandler(entrySvc, inventory, pricing)

	limiter := appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterAPI(e, eventH, bookingH, entryH, cfg.JWTSecret, limiter)

	// Background consumer feeding the gate-office ticket log. Runs its own
	// reconnect loop and never takes the server down.
	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("ticket consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
