package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/rolodex/internal/config"
	"gitlab.com/dirk.krummacker/rolodex/internal/logger"
	"gitlab.com/dirk.krummacker/rolodex/internal/metrics"
	"gitlab.com/dirk.krummacker/rolodex/internal/service"
	"gitlab.com/dirk.krummacker/rolodex/internal/store"
	"gitlab.com/dirk.krummacker/rolodex/internal/tracing"
	"go.uber.org/zap"
)

const (
	serviceName     = "contacts-service"
	shutdownTimeout = 10 * time.Second
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > DBDRIVER=sqlite3 DBNAME=contacts.db DBAUTOMIGRATE=true go run main.go
func main() {
	os.Exit(runMain())
}

// runMain returns the exit code after all deferred cleanups have run.
func runMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Error("contacts service failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TraceStdout {
		shutdownTracing, err := tracing.Setup(ctx, serviceName, os.Stdout)
		if err != nil {
			return err
		}
		defer shutdownTracing(context.Background())
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler, cleanup, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setup connects to the database, creates the contacts table if DBAUTOMIGRATE is set, and
// builds the HTTP handler. The returned cleanup closes the store and then the database.
func setup(ctx context.Context, cfg *config.Config, log *zap.Logger) (http.Handler, func(), error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Info("connecting to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name))
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("database schema is up to date")
	}

	st, err := store.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := errors.Join(st.Close(), db.Close()); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}
	svc := service.New(st, log, metrics.New())
	return svc.SetupHttpRouter(cfg.HTTP.RequestLogging), cleanup, nil
}
