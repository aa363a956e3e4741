package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"saga_fulfillment/internal/config"
	"saga_fulfillment/internal/logging"
	"saga_fulfillment/internal/order"
	"saga_fulfillment/internal/outbox"
	"saga_fulfillment/internal/sagalog"
	"saga_fulfillment/internal/sagamodel"
)

func main() {
	cfg := config.Load("3001")
	log := logging.Setup("order", cfg.LogLevel)

	db := connect(cfg.DatabaseURL, log)
	defer db.Close()

	migrate(db, sagalog.Schema, order.Schema, outbox.Schema)

	sagas := sagalog.New(db)
	ob := outbox.New(db, "order")
	repo := order.NewRepository(db)
	handler := order.NewHandler(db, repo, sagas, ob, log)

	publisher := outbox.NewPublisher(ob, serviceResolver(cfg), outbox.Config{
		BatchSize:      cfg.BatchSize,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		Concurrency:    cfg.PublisherConcurrency,
	}, log)

	r := gin.Default()
	api := r.Group("/api/v1")
	handler.Register(api)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := publisher.Start(ctx); err != nil {
			log.Error("outbox publisher stopped with error", "error", err)
		}
	}()

	go func() {
		log.Info("order service listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}
	cancel()
}

func connect(dbURL string, log interface{ Error(string, ...any) }) *sql.DB {
	var (
		db  *sql.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			return db
		}
		time.Sleep(2 * time.Second)
	}
	log.Error("failed to connect to database after 10 attempts", "error", err)
	os.Exit(1)
	return nil
}

func migrate(db *sql.DB, schemas ...string) {
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			panic(err)
		}
	}
}

func serviceResolver(cfg *config.Config) outbox.ServiceURLResolver {
	return func(service sagamodel.TargetService) string {
		return cfg.ServiceURL(string(service))
	}
}
