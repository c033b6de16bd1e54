// Command api runs the contractdesk HTTP server together with its two
// background loops: the reminder sweep and the outbox dispatcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contractdesk/access"
	"contractdesk/agreement"
	"contractdesk/auth"
	"contractdesk/config"
	"contractdesk/db"
	"contractdesk/department"
	"contractdesk/httpapi"
	"contractdesk/logging"
	"contractdesk/notify"
	"contractdesk/reminder"
	"contractdesk/vendors"
)

// dispatchInterval is how often the outbox dispatcher drains pending mail.
const dispatchInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	accessSvc := access.NewService(access.NewRepository(pool))

	outbox := notify.NewOutbox()
	agreementSvc := agreement.NewService(
		pool,
		agreement.NewRepository(pool),
		agreement.NewAllocator(logger),
		accessSvc,
		outbox,
		logger,
	)

	sweeper := reminder.NewSweeper(pool, reminder.NewRepository(pool), outbox, cfg.SweepWorkers, logger)

	var sender notify.Sender
	if cfg.SMTPAddr != "" {
		sender = notify.NewSMTPSender(cfg.SMTPAddr, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		logger.Warnw("no smtp server configured, notifications go to the log")
		sender = &notify.LogSender{Logger: logger}
	}
	dispatcher := notify.NewDispatcher(pool, sender, logger)

	router := httpapi.NewRouter(&httpapi.Handlers{
		Auth:        authSvc,
		Agreements:  agreementSvc,
		Access:      accessSvc,
		Departments: department.NewRepository(pool),
		Vendors:     vendors.NewRepository(pool),
		Types:       agreement.NewTypesRepository(pool),
		Sweeper:     sweeper,
		Logger:      logger,
	})

	go sweeper.Run(ctx, cfg.SweepInterval)
	go dispatcher.Run(ctx, dispatchInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infow("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
