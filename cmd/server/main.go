/**
 * @description
 * This is the main entry point for the CASA ledger service. It initializes
 * configuration, the PostgreSQL connection pool, the RabbitMQ event
 * producer, the repository, the application service, and the HTTP server,
 * wires everything together, and handles graceful shutdown.
 *
 * @dependencies
 * - log, net/http, os/signal: Standard Go libraries.
 * - github.com/go-chi/chi/v5: HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/jackc/pgx-shopspring-decimal: NUMERIC <-> decimal.Decimal codec.
 * - internal/api, internal/app, internal/config, internal/store, pkg/rabbitmq.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casaops/casa-ledger-service/internal/api"
	"github.com/casaops/casa-ledger-service/internal/app"
	"github.com/casaops/casa-ledger-service/internal/config"
	"github.com/casaops/casa-ledger-service/internal/store"
	"github.com/casaops/casa-ledger-service/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting casa-ledger-service\" port=%s", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Register the shopspring codec so NUMERIC columns scan into
	// decimal.Decimal without loss.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// The event producer is best-effort infrastructure: when RabbitMQ is
	// unavailable at startup the service still serves transfers and drops
	// events via the noop producer.
	var producer rabbitmq.Publisher
	producer, err = rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; events will be dropped\" err=%v", err)
		producer = &rabbitmq.NoopProducer{}
	}
	defer producer.Close()

	repo := store.NewPostgresRepository(dbpool, time.Duration(cfg.LockTimeoutMillis)*time.Millisecond)
	ledgerService := app.NewService(repo, producer)
	handlers := api.NewLedgerHandlers(ledgerService)

	router := chi.NewRouter()
	router.Mount("/api/casa", api.LedgerRoutes(handlers))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
